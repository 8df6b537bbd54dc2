// Package metrics exposes scan lifecycle metrics for Prometheus scraping.
// All Recorder methods are safe on a nil receiver so callers can leave
// metrics disabled without guarding every call.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "scandash"

// Recorder owns a private registry (the default one is never touched).
type Recorder struct {
	registry *prometheus.Registry

	scansStarted   prometheus.Counter
	launchFailures prometheus.Counter
	scansFinished  *prometheus.CounterVec
	polls          *prometheus.CounterVec
	pollDuration   prometheus.Histogram
	liveScans      prometheus.Gauge
}

// New creates and registers all collectors.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		scansStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scans_started_total",
			Help:      "Scans successfully launched on the scanner backend",
		}),
		launchFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "launch_failures_total",
			Help:      "Scan launches rejected by or unreachable on the scanner backend",
		}),
		scansFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scans_finished_total",
			Help:      "Scans that reached a terminal state",
		}, []string{"status"}),
		polls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "polls_total",
			Help:      "Status polls issued against the scanner backend",
		}, []string{"result"}),
		pollDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "poll_duration_seconds",
			Help:      "Latency of status polls",
			Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}),
		liveScans: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "live_scans",
			Help:      "1 while a scan is being polled, 0 otherwise",
		}),
	}
	r.registry.MustRegister(
		r.scansStarted,
		r.launchFailures,
		r.scansFinished,
		r.polls,
		r.pollDuration,
		r.liveScans,
	)
	return r
}

// TrackRegistrySize exposes the registry entry count, read at scrape time.
func (r *Recorder) TrackRegistrySize(size func() int) {
	if r == nil {
		return
	}
	r.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "registry_scans",
		Help:      "Terminal scans held in the scan registry",
	}, func() float64 { return float64(size()) }))
}

// ScanStarted records a successful launch.
func (r *Recorder) ScanStarted() {
	if r == nil {
		return
	}
	r.scansStarted.Inc()
	r.liveScans.Set(1)
}

// LaunchFailed records a rejected launch.
func (r *Recorder) LaunchFailed() {
	if r == nil {
		return
	}
	r.launchFailures.Inc()
}

// ScanFinished records a terminal transition.
func (r *Recorder) ScanFinished(status string) {
	if r == nil {
		return
	}
	r.scansFinished.WithLabelValues(status).Inc()
	r.liveScans.Set(0)
}

// ScanAbandoned records a live scan dropped before reaching a terminal state.
func (r *Recorder) ScanAbandoned() {
	if r == nil {
		return
	}
	r.liveScans.Set(0)
}

// Poll records one poll and how long it took.
func (r *Recorder) Poll(err error, elapsed time.Duration) {
	if r == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	r.polls.WithLabelValues(result).Inc()
	r.pollDuration.Observe(elapsed.Seconds())
}

// Handler serves the private registry.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry for tests and embedding.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}
