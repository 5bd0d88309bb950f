// Package registry loads the site database: one probe definition per website,
// keyed by a unique site name. A Registry is immutable once loaded and safe to
// share between goroutines without synchronisation.
package registry

import (
	"os"
	"slices"
	"strings"
	"time"

	"github.com/dlclark/regexp2"
	"github.com/mcuadros/go-version"
	"github.com/pkg/errors"

	"github.com/emora-osint/emora/internal/assets"
)

const (
	// MinFormatVersion and MaxFormatVersion bound the accepted "$version".
	// A database without "$version" is assumed to be compatible.
	MinFormatVersion = "1.0"
	MaxFormatVersion = "2.0"

	EmbeddedSource = "<embedded>"

	regexMatchTimeout = time.Second
)

type Registry struct {
	version string
	sites   []Site         // sorted by name
	index   map[string]int // name -> position in sites
}

// Load reads a site database from path. JSON and YAML are supported, chosen
// by file extension.
func Load(path string) (*Registry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Source: path, Err: err}
	}

	return Parse(raw, FormatFromPath(path), path)
}

// Default returns the database embedded in the binary.
func Default() (*Registry, error) {
	return Parse(assets.Sites, FormatJSON, EmbeddedSource)
}

// Parse builds a registry from an encoded database. source only labels errors.
func Parse(data []byte, format Format, source string) (*Registry, error) {
	var (
		doc document
		err error
	)
	switch format {
	case FormatYAML:
		doc, err = decodeYAML(data)
	default:
		doc, err = decodeJSON(data)
	}
	if err != nil {
		return nil, withSource(err, source)
	}

	if doc.version != "" && !compatibleVersion(doc.version) {
		return nil, &LoadError{
			Source: source,
			Err:    errors.Wrapf(ErrUnsupportedVersion, "%s (want >= %s, < %s)", doc.version, MinFormatVersion, MaxFormatVersion),
		}
	}

	r := &Registry{
		version: doc.version,
		sites:   make([]Site, 0, len(doc.entries)),
		index:   make(map[string]int, len(doc.entries)),
	}

	seen := make(map[string]struct{}, len(doc.entries))
	for _, e := range doc.entries {
		if strings.TrimSpace(e.name) == "" {
			return nil, &LoadError{Source: source, Err: errors.Wrap(ErrMalformed, "empty site name")}
		}
		if _, dup := seen[e.name]; dup {
			return nil, &LoadError{Source: source, Site: e.name, Err: ErrDuplicateSite}
		}
		seen[e.name] = struct{}{}

		site, err := newSite(e)
		if err != nil {
			return nil, &LoadError{Source: source, Site: e.name, Err: err}
		}
		r.sites = append(r.sites, site)
	}

	slices.SortFunc(r.sites, func(a, b Site) int { return strings.Compare(a.Name, b.Name) })
	for i, s := range r.sites {
		r.index[s.Name] = i
	}

	return r, nil
}

func newSite(e rawEntry) (Site, error) {
	src := e.src
	site := Site{
		Name:       e.name,
		URL:        src.URL,
		ProfileURL: src.ProfileURL,
		Method:     strings.TrimSpace(src.Method),
		Body:       src.Data,
		Headers:    src.Headers,
		Strategy:   strategyOf(src),
		Disabled:   src.Disabled,
		RegexCheck: src.RegexCheck,
	}

	if !site.Disabled && strings.TrimSpace(site.URL) == "" {
		return Site{}, ErrMissingURL
	}

	if site.RegexCheck != "" {
		re, err := regexp2.Compile(site.RegexCheck, regexp2.None)
		if err != nil {
			return Site{}, errors.Wrapf(ErrInvalidRegex, "%v", err)
		}
		re.MatchTimeout = regexMatchTimeout
		site.regex = re
	}

	return site, nil
}

func compatibleVersion(v string) bool {
	v = version.Normalize(v)

	return version.Compare(v, version.Normalize(MinFormatVersion), ">=") &&
		version.Compare(v, version.Normalize(MaxFormatVersion), "<")
}

func withSource(err error, source string) error {
	var le *LoadError
	if errors.As(err, &le) {
		le.Source = source
		return le
	}

	return &LoadError{Source: source, Err: err}
}

// Version is the "$version" declared by the source, if any.
func (r *Registry) Version() string { return r.version }

// Len counts every site, enabled or not.
func (r *Registry) Len() int { return len(r.sites) }

// Enabled counts the sites that will be probed.
func (r *Registry) Enabled() int {
	n := 0
	for _, s := range r.sites {
		if !s.Disabled {
			n++
		}
	}

	return n
}

// Entries returns the sites in name order. The slice is a copy; the Site
// values share their Headers maps with the registry and must not be modified.
func (r *Registry) Entries() []Site {
	return slices.Clone(r.sites)
}

// Lookup finds a site by its exact name.
func (r *Registry) Lookup(name string) (Site, bool) {
	i, ok := r.index[name]
	if !ok {
		return Site{}, false
	}

	return r.sites[i], true
}

// Select returns a registry restricted to names, matched exactly first and
// then case-insensitively, and the names that matched nothing. Blank names
// are ignored.
func (r *Registry) Select(names []string) (*Registry, []string) {
	lut := make(map[string]int, len(r.sites))
	for i, s := range r.sites {
		lut[strings.ToLower(s.Name)] = i
	}

	out := &Registry{version: r.version, index: map[string]int{}}
	var unknown []string

	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		site, ok := r.Lookup(n)
		if !ok {
			i, found := lut[strings.ToLower(n)]
			if !found {
				unknown = append(unknown, n)
				continue
			}
			site = r.sites[i]
		}
		if _, dup := out.index[site.Name]; dup {
			continue
		}
		out.index[site.Name] = -1
		out.sites = append(out.sites, site)
	}

	slices.SortFunc(out.sites, func(a, b Site) int { return strings.Compare(a.Name, b.Name) })
	for i, s := range out.sites {
		out.index[s.Name] = i
	}

	return out, unknown
}
