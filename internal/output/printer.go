// Package output renders search events for people (coloured or plain text)
// and for programs (newline-delimited JSON).
package output

import (
	"fmt"
	"io"
	"time"

	"github.com/bytedance/sonic"
	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"

	"github.com/emora-osint/emora/internal/scan"
)

type Options struct {
	Stdout io.Writer
	// Stderr receives the progress bar and notices in JSON mode.
	Stderr  io.Writer
	NoColor bool
	JSON    bool
	// Progress shows a progress bar on Stderr. It is ignored in JSON mode.
	Progress bool
}

type Printer struct {
	opts Options

	green, white, red, yellow, blue *color.Color
}

func NewPrinter(opts Options) *Printer {
	if opts.Stderr == nil {
		opts.Stderr = io.Discard
	}
	if opts.JSON {
		opts.Progress = false
	}

	p := &Printer{
		opts:   opts,
		green:  color.New(color.FgHiGreen),
		white:  color.New(color.FgHiWhite),
		red:    color.New(color.FgHiRed),
		yellow: color.New(color.FgHiYellow),
		blue:   color.New(color.FgHiBlue),
	}
	if opts.NoColor || opts.JSON {
		for _, c := range []*color.Color{p.green, p.white, p.red, p.yellow, p.blue} {
			c.DisableColor()
		}
	}

	return p
}

// Banner prints the program name line. Nothing is printed in JSON mode.
func (p *Printer) Banner() {
	if p.opts.JSON {
		return
	}
	fmt.Fprintln(p.opts.Stdout, "Emora - Find usernames across social networks.")
}

// Warn prints a "[!]" notice.
func (p *Printer) Warn(msg string) {
	if p.opts.JSON {
		fmt.Fprintf(p.opts.Stderr, "[!] %s\n", msg)
		return
	}
	fmt.Fprintf(p.opts.Stdout, "[%s] %s\n", p.red.Sprint("!"), p.yellow.Sprint(msg))
}

// Info prints an "[i]" notice.
func (p *Printer) Info(msg string) {
	if p.opts.JSON {
		fmt.Fprintf(p.opts.Stderr, "[i] %s\n", msg)
		return
	}
	fmt.Fprintf(p.opts.Stdout, "[%s] %s\n", p.blue.Sprint("i"), msg)
}

// Search returns the reporter for one username. total is the number of sites
// in the search and sizes the progress bar.
func (p *Printer) Search(username string, total int) *SearchReporter {
	r := &SearchReporter{p: p, username: username}

	if !p.opts.JSON {
		fmt.Fprintf(p.opts.Stdout, "\nInvestigating %s on:\n", p.green.Sprint(username))
	}

	if p.opts.Progress && total > 0 {
		r.bar = progressbar.NewOptions(total,
			progressbar.OptionSetWriter(p.opts.Stderr),
			progressbar.OptionSetDescription("Checking sites"),
			progressbar.OptionShowCount(),
			progressbar.OptionSetWidth(30),
			progressbar.OptionThrottle(65*time.Millisecond),
			progressbar.OptionClearOnFinish(),
			progressbar.OptionEnableColorCodes(!p.opts.NoColor),
		)
	}

	return r
}

// SearchReporter implements scan.Reporter for one username.
type SearchReporter struct {
	p        *Printer
	username string
	bar      *progressbar.ProgressBar
}

var _ scan.Reporter = (*SearchReporter)(nil)

type foundEvent struct {
	Event    string `json:"event"`
	Username string `json:"username"`
	Site     string `json:"site"`
	URL      string `json:"url"`
}

type completeEvent struct {
	Event     string  `json:"event"`
	Username  string  `json:"username"`
	Matches   int     `json:"matches"`
	ElapsedMS float64 `json:"elapsed_ms"`
}

func (r *SearchReporter) OnSiteFound(site, profileURL string) {
	if r.p.opts.JSON {
		r.p.emit(foundEvent{Event: "found", Username: r.username, Site: site, URL: profileURL})
		return
	}

	if r.bar != nil {
		_ = r.bar.Clear()
	}
	fmt.Fprintf(r.p.opts.Stdout, "[%s] %s: %s\n", r.p.green.Sprint("+"), r.p.white.Sprint(site), profileURL)
}

func (r *SearchReporter) OnProgress(checked, _, _ int) {
	if r.bar != nil {
		_ = r.bar.Set(checked)
	}
}

func (r *SearchReporter) OnSearchComplete(totalMatches int, elapsed time.Duration) {
	if r.bar != nil {
		_ = r.bar.Finish()
	}

	if r.p.opts.JSON {
		r.p.emit(completeEvent{
			Event:     "complete",
			Username:  r.username,
			Matches:   totalMatches,
			ElapsedMS: float64(elapsed.Microseconds()) / 1000,
		})
		return
	}

	fmt.Fprintf(r.p.opts.Stdout, "[%s] %s accounts found for %s in %.2f seconds\n",
		r.p.blue.Sprint("i"),
		r.p.green.Sprint(totalMatches),
		r.username,
		elapsed.Seconds(),
	)
}

func (p *Printer) emit(v any) {
	b, err := sonic.Marshal(v)
	if err != nil {
		fmt.Fprintf(p.opts.Stderr, "[!] encode event: %v\n", err)
		return
	}
	b = append(b, '\n')
	_, _ = p.opts.Stdout.Write(b)
}
