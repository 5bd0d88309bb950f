package scan

import (
	"context"
	"io"
	"net/http"
	"slices"
	"strings"

	"golang.org/x/net/http/httpguts"

	"github.com/emora-osint/emora/internal/registry"
)

// BodyContentType is sent with every request body, whatever the site headers say.
const BodyContentType = "application/json; charset=utf-8"

type Header struct {
	Name  string
	Value string
}

// Request is a fully substituted probe, independent of any HTTP client.
type Request struct {
	Method string
	URL    string
	Body   string
	// Headers are the site's headers in name order, verbatim.
	Headers []Header
}

// Build substitutes username into the site's templates. The username is
// inserted as is; no percent-encoding is applied.
func Build(site registry.Site, username string) Request {
	req := Request{
		Method: site.Method,
		URL:    strings.ReplaceAll(site.URL, registry.URLPlaceholder, username),
	}

	if site.HasBody() {
		req.Body = strings.ReplaceAll(site.Body, registry.BodyPlaceholder, username)
	}

	if req.Method == "" {
		if site.HasBody() {
			req.Method = http.MethodPost
		} else {
			req.Method = http.MethodGet
		}
	}

	if len(site.Headers) > 0 {
		req.Headers = make([]Header, 0, len(site.Headers))
		for name, value := range site.Headers {
			req.Headers = append(req.Headers, Header{Name: name, Value: value})
		}
		slices.SortFunc(req.Headers, func(a, b Header) int { return strings.Compare(a.Name, b.Name) })
	}

	return req
}

// ProfileURL is the link reported for a match: the profile template when the
// site has one, otherwise the probe URL.
func ProfileURL(site registry.Site, username string) string {
	tmpl := site.ProfileURL
	if tmpl == "" {
		tmpl = site.URL
	}

	return strings.ReplaceAll(tmpl, registry.URLPlaceholder, username)
}

// HTTPRequest converts r into a request bound to ctx. Headers with an invalid
// name or value are dropped. The user agent is applied last and wins over any
// site header.
func (r Request) HTTPRequest(ctx context.Context, userAgent string) (*http.Request, error) {
	var body io.Reader
	if r.Body != "" {
		body = strings.NewReader(r.Body)
	}

	req, err := http.NewRequestWithContext(ctx, r.Method, r.URL, body)
	if err != nil {
		return nil, err
	}

	for _, h := range r.Headers {
		if !httpguts.ValidHeaderFieldName(h.Name) || !httpguts.ValidHeaderFieldValue(h.Value) {
			continue
		}
		if http.CanonicalHeaderKey(h.Name) == "Host" {
			req.Host = h.Value
			continue
		}
		req.Header.Set(h.Name, h.Value)
	}

	if body != nil {
		req.Header.Set("Content-Type", BodyContentType)
	}
	if userAgent != "" {
		req.Header.Set("User-Agent", userAgent)
	}

	return req, nil
}
