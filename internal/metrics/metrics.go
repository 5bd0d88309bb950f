// Package metrics exposes probe metrics in the Prometheus format while a run
// is in progress.
package metrics

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/emora-osint/emora/internal/logger"
	"github.com/emora-osint/emora/internal/scan"
)

const namespace = "emora"

// Collector records probe outcomes. It implements scan.Observer.
type Collector struct {
	registry *prometheus.Registry

	probes   *prometheus.CounterVec
	duration prometheus.Histogram
	inFlight prometheus.Gauge
}

var _ scan.Observer = (*Collector)(nil)

// New returns a collector with its own registry, so several collectors (one
// per test, say) never clash on registration.
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		probes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "probes_total",
			Help:      "Probes sent, by verdict.",
		}, []string{"verdict"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "probe_duration_seconds",
			Help:      "Time from request to verdict.",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2, 4, 8},
		}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "probes_in_flight",
			Help:      "Probes currently waiting on a response.",
		}),
	}

	c.registry.MustRegister(
		c.probes,
		c.duration,
		c.inFlight,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	// Every verdict is exported from the start, at zero.
	for _, v := range []scan.Verdict{scan.Match, scan.NoMatch, scan.Failed} {
		c.probes.WithLabelValues(v.String())
	}

	return c
}

func (c *Collector) ProbeStarted() {
	c.inFlight.Inc()
}

func (c *Collector) ProbeFinished(_ string, verdict scan.Verdict, took time.Duration) {
	c.inFlight.Dec()
	c.probes.WithLabelValues(verdict.String()).Inc()
	c.duration.Observe(took.Seconds())
}

// Registry is the registry the collector's metrics are registered with.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

type Options struct {
	// Addr is the TCP address to listen on, e.g. ":9090".
	Addr string
	// Path is where metrics are served. Defaults to /metrics.
	Path string
}

// Serve listens on opts.Addr and serves metrics until ctx is done. The
// listener is opened before Serve returns, so a bad address is reported
// synchronously; serving happens in the background.
func (c *Collector) Serve(ctx context.Context, opts Options) (net.Addr, error) {
	if opts.Path == "" {
		opts.Path = "/metrics"
	}

	mux := http.NewServeMux()
	mux.Handle(opts.Path, c.Handler())

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", opts.Addr)
	if err != nil {
		return nil, errors.Wrapf(err, "could not listen on %s", opts.Addr)
	}

	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error(ctx, "metrics server stopped", logrus.Fields{"error": err})
		}
	}()

	logger.Info(ctx, "serving metrics", logrus.Fields{"addr": ln.Addr().String(), "path": opts.Path})

	return ln.Addr(), nil
}
