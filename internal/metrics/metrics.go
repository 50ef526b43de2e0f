// Package metrics exposes Prometheus instruments for uploads and jobs.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"pkg.jsn.cam/logmate/pkg/logmate"
)

const namespace = "logmate"

// Job outcomes passed to the func returned by StartAttempt.
const (
	OutcomeCompleted = "completed"
	OutcomeRetried   = "retried"
	OutcomeFailed    = "failed"
)

// Metrics holds every logmate instrument on its own registry.
type Metrics struct {
	registry *prometheus.Registry

	jobs     *prometheus.CounterVec
	attempts prometheus.Counter
	lines    *prometheus.CounterVec
	bytes    prometheus.Counter
	uploads  *prometheus.CounterVec
	events   *prometheus.CounterVec
	duration prometheus.Histogram
	inflight prometheus.Gauge
}

// New creates and registers the instruments on a fresh registry, together
// with the Go runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		jobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_total",
			Help:      "Job attempts by outcome.",
		}, []string{"outcome"}),
		attempts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "job_attempts_total",
			Help:      "Job attempts started.",
		}),
		lines: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lines_total",
			Help:      "Log lines processed by completed jobs.",
		}, []string{"result"}),
		bytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_total",
			Help:      "Response bytes summed over completed jobs.",
		}),
		uploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "uploads_total",
			Help:      "Upload requests by HTTP status.",
		}, []string{"status"}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Progress events published by type.",
		}, []string{"event"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "job_duration_seconds",
			Help:      "Wall time of a job attempt.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 14),
		}),
		inflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "jobs_inflight",
			Help:      "Job attempts currently running.",
		}),
	}

	m.registry.MustRegister(
		m.jobs, m.attempts, m.lines, m.bytes, m.uploads, m.events, m.duration, m.inflight,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the /metrics scrape endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// StartAttempt marks an attempt as running. The returned func records its
// duration and outcome.
func (m *Metrics) StartAttempt() func(outcome string) {
	start := time.Now()
	m.attempts.Inc()
	m.inflight.Inc()

	return func(outcome string) {
		m.inflight.Dec()
		m.duration.Observe(time.Since(start).Seconds())
		m.jobs.WithLabelValues(outcome).Inc()
	}
}

// ObserveUpload counts an upload response.
func (m *Metrics) ObserveUpload(status int) {
	m.uploads.WithLabelValues(http.StatusText(status)).Inc()
}

// Notifier wraps next, counting each event and the line and byte totals of
// completed jobs.
func (m *Metrics) Notifier(next logmate.Notifier) logmate.Notifier {
	return logmate.NotifierFunc(func(ctx context.Context, group string, ev logmate.Event) error {
		m.events.WithLabelValues(string(ev.Type)).Inc()
		if ev.Type == logmate.EventComplete && ev.Result != nil {
			m.lines.WithLabelValues("parsed").Add(float64(ev.Result.ParsedLines))
			m.lines.WithLabelValues("skipped").Add(float64(ev.Result.SkippedLines))
			m.bytes.Add(float64(ev.Result.TotalBytes))
		}
		if next == nil {
			return nil
		}
		return next.Publish(ctx, group, ev)
	})
}
