package registry

import (
	"github.com/dlclark/regexp2"
)

const (
	// URLPlaceholder is replaced with the username in URL and ProfileURL.
	URLPlaceholder = "{}"
	// BodyPlaceholder is replaced with the username in Body.
	BodyPlaceholder = "{USERNAME}"
)

// StrategyKind selects how a probe response is classified.
type StrategyKind int

const (
	// StrategyUnknown is any errorType the engine does not understand.
	// Sites using it never match.
	StrategyUnknown StrategyKind = iota
	// StrategyStatusCode matches on a 2xx status.
	StrategyStatusCode
	// StrategyMessage matches on the presence/absence of strings in the body.
	StrategyMessage
)

func (k StrategyKind) String() string {
	switch k {
	case StrategyStatusCode:
		return "status_code"
	case StrategyMessage:
		return "message"
	default:
		return "unknown"
	}
}

// Strategy is the classification rule of a site. ErrorMessage and
// SuccessMessage are only meaningful for StrategyMessage; an empty value
// means "not configured".
type Strategy struct {
	Kind           StrategyKind
	ErrorMessage   string
	SuccessMessage string
	// Raw is the errorType as written in the source, kept for diagnostics.
	Raw string
}

// Site is one probe definition. Sites are shared read-only by concurrent
// probes and must never be mutated after the registry is loaded.
type Site struct {
	Name       string
	URL        string
	ProfileURL string
	Method     string
	Body       string
	Headers    map[string]string
	Strategy   Strategy
	Disabled   bool

	// RegexCheck is the source expression; usernames it rejects are not probed.
	RegexCheck string
	regex      *regexp2.Regexp
}

// HasBody reports whether the site sends a request body.
func (s Site) HasBody() bool { return s.Body != "" }

// AcceptsUsername runs the site's regexCheck against username. Sites without a
// check accept every username; a check that errors (e.g. times out) rejects.
func (s Site) AcceptsUsername(username string) bool {
	if s.regex == nil {
		return true
	}
	ok, err := s.regex.MatchString(username)

	return err == nil && ok
}
