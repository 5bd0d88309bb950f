package scan

import (
	"net/http"
	"strings"

	"github.com/pkg/errors"

	"github.com/emora-osint/emora/internal/registry"
)

var errNoResponse = errors.New("no response")

// Classify decides the verdict for one probe. err is the error returned by
// the client, if any. Classify reads, but does not close, the response body.
//
// Any error gives Failed. The status code strategy matches any 2xx status.
// The message strategy matches when the error message (if configured) is
// absent from the body and the success message (if configured) is present; a
// body that cannot be read gives Failed. Unknown strategies never match.
func Classify(resp *http.Response, err error, site registry.Site, maxBody int64) (Verdict, error) {
	if err != nil {
		return Failed, err
	}
	if resp == nil {
		return Failed, errNoResponse
	}

	switch site.Strategy.Kind {
	case registry.StrategyStatusCode:
		if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
			return Match, nil
		}

		return NoMatch, nil

	case registry.StrategyMessage:
		body, err := readBody(resp, maxBody)
		if err != nil {
			return Failed, err
		}

		return matchMessage(body, site.Strategy), nil

	default:
		return NoMatch, nil
	}
}

func matchMessage(body string, s registry.Strategy) Verdict {
	errorAbsent := s.ErrorMessage == "" || !strings.Contains(body, s.ErrorMessage)
	successPresent := s.SuccessMessage == "" || strings.Contains(body, s.SuccessMessage)

	if errorAbsent && successPresent {
		return Match
	}

	return NoMatch
}
