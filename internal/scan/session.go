package scan

import (
	"context"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/emora-osint/emora/internal/logger"
)

// Session is a running search. Counters may be read at any time from any
// goroutine; they only ever increase.
type Session struct {
	id       string
	username string
	limit    int
	total    int
	started  time.Time

	checked atomic.Int64
	matches atomic.Int64
	elapsed atomic.Int64 // set once the search is over

	done    chan struct{}
	summary Summary
	err     error
}

func (s *Session) ID() string       { return s.id }
func (s *Session) Username() string { return s.username }
func (s *Session) Limit() int       { return s.limit }

// Total is the number of sites in the search, disabled ones included.
func (s *Session) Total() int { return s.total }

func (s *Session) Checked() int { return int(s.checked.Load()) }
func (s *Session) Matches() int { return int(s.matches.Load()) }

// Elapsed is the running time, frozen when the search completes.
func (s *Session) Elapsed() time.Duration {
	if d := s.elapsed.Load(); d > 0 {
		return time.Duration(d)
	}

	return time.Since(s.started)
}

// Done is closed after the last reporter call.
func (s *Session) Done() <-chan struct{} { return s.done }

// Wait blocks until the search is over. The error is non-nil only when the
// search context ended before every site was checked.
func (s *Session) Wait() (Summary, error) {
	<-s.done

	return s.summary, s.err
}

// aggregate is the only consumer of outcomes. It owns the reporter and the
// summary; the counters are atomics so they can also be read outside.
func (s *Session) aggregate(ctx context.Context, outcomes <-chan Outcome, reporter Reporter, dispatchErr *error) {
	defer close(s.done)

	sum := Summary{
		SessionID: s.id,
		Username:  s.username,
		Limit:     s.limit,
		Total:     s.total,
	}

	for o := range outcomes {
		switch {
		case o.Skipped:
			sum.Skipped++
		case o.Verdict == Failed:
			sum.Failed++
			if logger.IsDebug(ctx) {
				logger.Debug(ctx, "probe failed", logrus.Fields{
					"site":     o.Site,
					"error":    o.Err,
					"duration": o.Duration,
				})
			}
		case o.Verdict == Match:
			sum.Found = append(sum.Found, Found{Site: o.Site, ProfileURL: o.ProfileURL})
			s.matches.Add(1)
			reporter.OnSiteFound(o.Site, o.ProfileURL)
		}

		s.checked.Add(1)
		reporter.OnProgress(s.Checked(), s.total, s.Matches())
	}

	elapsed := time.Since(s.started)
	s.elapsed.Store(int64(elapsed))

	slices.SortFunc(sum.Found, func(a, b Found) int { return strings.Compare(a.Site, b.Site) })
	sum.Checked = s.Checked()
	sum.Matches = s.Matches()
	sum.Elapsed = elapsed
	s.summary = sum
	s.err = *dispatchErr

	logger.Info(ctx, "search complete", logrus.Fields{
		"checked": sum.Checked,
		"matches": sum.Matches,
		"failed":  sum.Failed,
		"elapsed": elapsed,
	})
	reporter.OnSearchComplete(sum.Matches, elapsed)
}
