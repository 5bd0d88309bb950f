// Package httpx builds the HTTP client shared by every probe.
package httpx

import (
	"context"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/net/proxy"
)

const (
	DefaultUserAgent   = "Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:147.0) Gecko/20100101 Firefox/147.0"
	DefaultTorProxyURL = "socks5://127.0.0.1:9050"
	DefaultTimeout     = 8 * time.Second
)

// Doer lets us accept *http.Client or a test double.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// DoerFunc adapts a function to Doer.
type DoerFunc func(req *http.Request) (*http.Response, error)

func (f DoerFunc) Do(req *http.Request) (*http.Response, error) { return f(req) }

type ClientConfig struct {
	// Timeout bounds a whole exchange, body included.
	Timeout     time.Duration
	WithTor     bool
	TorProxyURL string
}

// NewClient returns a client with no cookie jar and no proxy. Environment
// proxy variables are ignored; traffic only leaves through a proxy when Tor
// is enabled explicitly.
func NewClient(cfg ClientConfig) (*http.Client, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.TorProxyURL == "" {
		cfg.TorProxyURL = DefaultTorProxyURL
	}

	transport := &http.Transport{
		Proxy: nil,
		DialContext: (&net.Dialer{
			Timeout:   cfg.Timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,

		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   4,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   cfg.Timeout,
		ExpectContinueTimeout: 1 * time.Second,
	}

	if cfg.WithTor {
		dial, err := torDialer(cfg.TorProxyURL)
		if err != nil {
			return nil, err
		}
		transport.DialContext = dial
	}

	return &http.Client{
		Timeout:   cfg.Timeout,
		Transport: transport,
	}, nil
}

type dialFunc func(ctx context.Context, network, addr string) (net.Conn, error)

func torDialer(rawURL string) (dialFunc, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, errors.Wrap(err, "parse tor proxy url")
	}

	dialer, err := proxy.FromURL(u, proxy.Direct)
	if err != nil {
		return nil, errors.Wrap(err, "create tor dialer")
	}

	if cd, ok := dialer.(proxy.ContextDialer); ok {
		return cd.DialContext, nil
	}

	return func(_ context.Context, network, addr string) (net.Conn, error) {
		return dialer.Dial(network, addr)
	}, nil
}
