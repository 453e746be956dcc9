// Package metrics exposes Prometheus instrumentation for link passes.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/plexlinker/plexlinker/internal/linker"
)

const namespace = "plexlinker"

// Pass results used as the "result" label.
const (
	ResultCompleted = "completed"
	ResultSkipped   = "skipped"
	ResultLocked    = "locked"
	ResultFailed    = "failed"
)

// Metrics holds the link pass instruments.
type Metrics struct {
	Passes        *prometheus.CounterVec
	LinksCreated  prometheus.Counter
	LinkErrors    prometheus.Counter
	ShowsSkipped  prometheus.Counter
	MoviesSkipped prometheus.Counter
	LinksPruned   prometheus.Counter
	RescanFailed  prometheus.Counter
	PassDuration  prometheus.Histogram
	LastPass      prometheus.Gauge
	Rules         prometheus.Gauge
}

// New creates and registers pass metrics with the given registry.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Passes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pass",
			Name:      "total",
			Help:      "Link passes by result.",
		}, []string{"result"}),
		LinksCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "links_created_total",
			Help:      "Symlinks created or replaced.",
		}),
		LinkErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "link_errors_total",
			Help:      "Show targets that failed with a service or filesystem error.",
		}),
		ShowsSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "shows_skipped_total",
			Help:      "Show targets skipped because the show, episode or source file was missing.",
		}),
		MoviesSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "movies_skipped_total",
			Help:      "Rules skipped because the movie is absent or not downloaded.",
		}),
		LinksPruned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "links_pruned_total",
			Help:      "Broken symlinks removed.",
		}),
		RescanFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rescan_failures_total",
			Help:      "Rescan or refresh commands that failed.",
		}),
		PassDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pass",
			Name:      "duration_seconds",
			Help:      "Duration of link passes.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}),
		LastPass: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "pass",
			Name:      "last_finished_timestamp_seconds",
			Help:      "Unix time the last completed pass finished.",
		}),
		Rules: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "rules",
			Help:      "Rules read by the last pass.",
		}),
	}

	reg.MustRegister(
		m.Passes,
		m.LinksCreated,
		m.LinkErrors,
		m.ShowsSkipped,
		m.MoviesSkipped,
		m.LinksPruned,
		m.RescanFailed,
		m.PassDuration,
		m.LastPass,
		m.Rules,
	)

	return m
}

// ObservePass records the outcome of one run. report may be nil when the
// run was refused or failed before the pass started.
func (m *Metrics) ObservePass(report *linker.PassReport, err error) {
	switch {
	case err != nil:
		m.Passes.WithLabelValues(ResultFailed).Inc()
		return
	case report == nil:
		m.Passes.WithLabelValues(ResultLocked).Inc()
		return
	case report.Skipped:
		m.Passes.WithLabelValues(ResultSkipped).Inc()
		return
	}

	m.Passes.WithLabelValues(ResultCompleted).Inc()
	m.LinksCreated.Add(float64(report.Linked))
	m.LinkErrors.Add(float64(report.Errors))
	m.ShowsSkipped.Add(float64(report.ShowsSkipped))
	m.MoviesSkipped.Add(float64(report.MoviesSkipped))
	m.LinksPruned.Add(float64(report.Pruned))
	m.RescanFailed.Add(float64(report.RescanFailed))
	m.Rules.Set(float64(report.Rules))
	m.PassDuration.Observe(report.Duration().Seconds())
	if !report.FinishedAt.IsZero() {
		m.LastPass.Set(float64(report.FinishedAt.Unix()))
	}
}

// Handler serves the registry in the Prometheus exposition format.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}
