package scan

import "time"

// Reporter receives the events of one search. Methods are called serially
// from a single goroutine, in the order the outcomes are aggregated.
//
//go:generate mockgen -package mock -source=reporter.go -destination=mock/mockscan.go Reporter
type Reporter interface {
	OnSiteFound(site, profileURL string)
	OnProgress(checked, total, matches int)
	OnSearchComplete(totalMatches int, elapsed time.Duration)
}

// NopReporter discards every event.
type NopReporter struct{}

func (NopReporter) OnSiteFound(string, string)          {}
func (NopReporter) OnProgress(int, int, int)            {}
func (NopReporter) OnSearchComplete(int, time.Duration) {}
