// Package scan probes a registry of sites for one username at a time.
//
// A search dispatches one probe per enabled site. At most the concurrency
// limit is in flight at once; the dispatcher blocks on a semaphore rather than
// spawning waiting goroutines. Every outcome, disabled sites included, flows
// through a single aggregating goroutine that drives the Reporter.
package scan

import (
	"context"
	"io"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/emora-osint/emora/internal/httpx"
	"github.com/emora-osint/emora/internal/logger"
	"github.com/emora-osint/emora/internal/registry"
)

// drainBytes is how much of an unread body send discards before closing it.
const drainBytes = 4 << 10

type Scanner struct {
	client httpx.Doer
	cfg    Config
}

func NewScanner(client httpx.Doer, cfg Config) *Scanner {
	if cfg.UserAgent == "" {
		cfg.UserAgent = httpx.DefaultUserAgent
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if cfg.MaxConcurrency <= 0 || cfg.MaxConcurrency > MaxConcurrency {
		cfg.MaxConcurrency = MaxConcurrency
	}
	if cfg.Observer == nil {
		cfg.Observer = nopObserver{}
	}

	return &Scanner{
		client: client,
		cfg:    cfg,
	}
}

// DefaultLimit is one probe per CPU, clamped to [1, upper].
func DefaultLimit(upper int) int {
	return max(1, min(runtime.NumCPU(), upper))
}

// ResolveLimit validates a requested concurrency limit. Zero selects
// DefaultLimit.
func (s *Scanner) ResolveLimit(limit int) (int, error) {
	if limit == 0 {
		return DefaultLimit(s.cfg.MaxConcurrency), nil
	}
	if limit < 1 || limit > s.cfg.MaxConcurrency {
		return 0, errors.Wrapf(ErrInvalidConcurrency, "%d (want 1..%d)", limit, s.cfg.MaxConcurrency)
	}

	return limit, nil
}

// RunSearch runs a search to completion. See StartSearch.
func (s *Scanner) RunSearch(
	ctx context.Context,
	reg *registry.Registry,
	username string,
	limit int,
	reporter Reporter,
) (Summary, error) {
	session, err := s.StartSearch(ctx, reg, username, limit, reporter)
	if err != nil {
		return Summary{}, err
	}

	return session.Wait()
}

// StartSearch starts probing every site of reg for username and returns
// immediately. The username is trimmed and must not be empty; limit must be
// 0 (default) or within 1..MaxConcurrency. Cancelling ctx stops dispatching
// new probes and aborts those in flight; the session then ends with ctx.Err().
func (s *Scanner) StartSearch(
	ctx context.Context,
	reg *registry.Registry,
	username string,
	limit int,
	reporter Reporter,
) (*Session, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, ErrEmptyUsername
	}

	limit, err := s.ResolveLimit(limit)
	if err != nil {
		return nil, err
	}

	if reporter == nil {
		reporter = NopReporter{}
	}

	sites := reg.Entries()
	session := &Session{
		id:       uuid.NewString(),
		username: username,
		limit:    limit,
		total:    len(sites),
		started:  time.Now(),
		done:     make(chan struct{}),
	}

	ctx = logger.WithFields(ctx, logrus.Fields{
		"session":  session.id,
		"username": username,
	})
	logger.Info(ctx, "search started", logrus.Fields{"sites": len(sites), "limit": limit})

	outcomes := make(chan Outcome, limit)
	var dispatchErr error

	go session.aggregate(ctx, outcomes, reporter, &dispatchErr)
	go func() {
		defer close(outcomes)
		dispatchErr = s.dispatch(ctx, sites, username, limit, outcomes)
	}()

	return session, nil
}

func (s *Scanner) dispatch(
	ctx context.Context,
	sites []registry.Site,
	username string,
	limit int,
	outcomes chan<- Outcome,
) error {
	sem := semaphore.NewWeighted(int64(limit))

	var limiter *rate.Limiter
	if s.cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(s.cfg.RequestsPerSecond), 1)
	}

	var (
		wg  sync.WaitGroup
		err error
	)
	for _, site := range sites {
		// Sites that need no request are accounted for without a slot.
		if site.Disabled || !site.AcceptsUsername(username) {
			outcomes <- s.Probe(ctx, site, username)
			continue
		}

		if err = admit(ctx, sem, limiter); err != nil {
			break
		}

		wg.Add(1)
		go func(site registry.Site) {
			defer wg.Done()

			o := s.Probe(ctx, site, username)
			sem.Release(1)
			outcomes <- o
		}(site)
	}

	wg.Wait()

	if err != nil {
		return ctxErr(ctx, err)
	}

	return ctx.Err()
}

// admit waits for the pacing limiter, if any, then for a free slot.
func admit(ctx context.Context, sem *semaphore.Weighted, limiter *rate.Limiter) error {
	if limiter != nil {
		if err := limiter.Wait(ctx); err != nil {
			return err
		}
	}

	return sem.Acquire(ctx, 1)
}

// ctxErr prefers the context's own error over the one a waiter reported for
// it, e.g. a rate limiter refusing to wait past the deadline.
func ctxErr(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	return err
}

// Probe checks a single site. Disabled sites and usernames rejected by the
// site's regexCheck produce a non-matching outcome without any request.
func (s *Scanner) Probe(ctx context.Context, site registry.Site, username string) Outcome {
	o := Outcome{
		Site:       site.Name,
		ProfileURL: ProfileURL(site, username),
		Verdict:    NoMatch,
	}

	if site.Disabled {
		o.Skipped = true
		return o
	}
	if !site.AcceptsUsername(username) {
		return o
	}

	start := time.Now()
	s.cfg.Observer.ProbeStarted()

	o.Verdict, o.Err = s.send(ctx, site, username)
	o.Duration = time.Since(start)

	s.cfg.Observer.ProbeFinished(site.Name, o.Verdict, o.Duration)

	return o
}

func (s *Scanner) send(ctx context.Context, site registry.Site, username string) (Verdict, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.RequestTimeout)
	defer cancel()

	req, err := Build(site, username).HTTPRequest(ctx, s.cfg.UserAgent)
	if err != nil {
		return Failed, errors.Wrap(err, "build request")
	}

	resp, err := s.client.Do(req)
	if resp != nil && resp.Body != nil {
		defer func() {
			// Leftover bytes keep the connection out of the idle pool.
			_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, drainBytes))
			_ = resp.Body.Close()
		}()
	}

	return Classify(resp, err, site, s.cfg.MaxBodyBytes)
}
