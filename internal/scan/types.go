package scan

import (
	"time"

	"github.com/pkg/errors"
)

const (
	// MaxConcurrency is the largest concurrency limit a search accepts.
	MaxConcurrency = 50
	// DefaultRequestTimeout bounds one probe, connection through body read.
	DefaultRequestTimeout = 8 * time.Second
	// DefaultMaxBodyBytes caps how much of a body message checks read. A
	// larger body fails the check rather than being classified in part.
	DefaultMaxBodyBytes = 2 << 20
)

var (
	ErrEmptyUsername      = errors.New("username is empty")
	ErrInvalidConcurrency = errors.New("concurrency limit out of range")
	ErrBodyTooLarge       = errors.New("response body too large")
)

// Verdict is the classification of one probe.
type Verdict int

const (
	NoMatch Verdict = iota
	Match
	// Failed covers transport errors, timeouts and unreadable bodies. It is
	// reported as a non-match.
	Failed
)

func (v Verdict) String() string {
	switch v {
	case Match:
		return "match"
	case Failed:
		return "failed"
	default:
		return "no_match"
	}
}

// Outcome is the result of probing one site for one username.
type Outcome struct {
	Site       string
	ProfileURL string
	Verdict    Verdict
	// Skipped is set for disabled sites, which are never sent a request.
	Skipped bool
	// Err explains a Failed verdict. It is only surfaced in debug logs.
	Err      error
	Duration time.Duration
}

// Found is one matched site.
type Found struct {
	Site       string
	ProfileURL string
}

// Summary describes a finished (or cancelled) search.
type Summary struct {
	SessionID string
	Username  string
	Limit     int
	Total     int
	Checked   int
	Matches   int
	Failed    int
	Skipped   int
	// Found lists matches in site name order.
	Found   []Found
	Elapsed time.Duration
}

// Observer receives probe timings, e.g. for metrics. Calls come from many
// goroutines at once.
type Observer interface {
	ProbeStarted()
	ProbeFinished(site string, verdict Verdict, took time.Duration)
}

type nopObserver struct{}

func (nopObserver) ProbeStarted()                                {}
func (nopObserver) ProbeFinished(string, Verdict, time.Duration) {}

type Config struct {
	UserAgent      string
	RequestTimeout time.Duration
	MaxBodyBytes   int64
	// MaxConcurrency bounds the limit a search accepts; at most MaxConcurrency.
	MaxConcurrency int
	// RequestsPerSecond paces probe starts within one search; 0 disables pacing.
	RequestsPerSecond float64
	Observer          Observer
}
