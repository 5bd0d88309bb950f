package registry

import (
	"strconv"

	"github.com/pkg/errors"
)

var (
	ErrMalformed          = errors.New("malformed site database")
	ErrDuplicateSite      = errors.New("duplicate site name")
	ErrMissingURL         = errors.New("missing url template")
	ErrInvalidRegex       = errors.New("invalid regexCheck")
	ErrUnsupportedVersion = errors.New("unsupported database version")
)

// LoadError is returned for any site database that cannot be read or is not
// valid. No search can run without a registry, so callers treat it as fatal.
type LoadError struct {
	// Source is the file path, or "<embedded>" / "<bytes>".
	Source string
	// Site is set when the problem is tied to a single entry.
	Site string
	Err  error
}

func (e *LoadError) Error() string {
	if e.Site != "" {
		return "load " + e.Source + ": site " + strconv.Quote(e.Site) + ": " + e.Err.Error()
	}

	return "load " + e.Source + ": " + e.Err.Error()
}

func (e *LoadError) Unwrap() error { return e.Err }
