// Package metrics provides Prometheus metrics for slalog runs.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ccollicutt/slalog/pkg/sla"
)

const (
	namespace = "slalog"
)

// Metrics holds the collectors of one run. It implements sla.Observer.
type Metrics struct {
	registry *prometheus.Registry

	// VerdictsTotal counts evaluated incidents by verdict.
	VerdictsTotal *prometheus.CounterVec

	// SegmentsTotal counts log segments by outcome.
	SegmentsTotal *prometheus.CounterVec

	// ManagementSeconds tracks measured management time per incident.
	ManagementSeconds prometheus.Histogram

	// DroppedEntriesTotal counts log entries the parser could not read.
	DroppedEntriesTotal prometheus.Counter

	// BatchDuration is the wall time of the last batch.
	BatchDuration prometheus.Gauge

	// SaveFailuresTotal counts results that could not be written back.
	SaveFailuresTotal prometheus.Counter

	// LastRun is the unix time the last batch finished.
	LastRun prometheus.Gauge
}

// New registers the collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		VerdictsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "evaluation",
				Name:      "verdicts_total",
				Help:      "Total evaluated incidents by verdict",
			},
			[]string{"verdict"},
		),
		SegmentsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "evaluation",
				Name:      "segments_total",
				Help:      "Total activity log segments by outcome",
			},
			[]string{"outcome"},
		),
		ManagementSeconds: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "evaluation",
				Name:      "management_seconds",
				Help:      "Business time spent managing measured incidents",
				Buckets:   []float64{900, 1800, 3600, 2 * 3600, 4 * 3600, 8 * 3600, 24 * 3600, 72 * 3600},
			},
		),
		DroppedEntriesTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "parser",
				Name:      "dropped_entries_total",
				Help:      "Total activity log entries dropped for an unreadable timestamp",
			},
		),
		BatchDuration: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "batch",
				Name:      "duration_seconds",
				Help:      "Wall time of the last batch in seconds",
			},
		),
		SaveFailuresTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "batch",
				Name:      "save_failures_total",
				Help:      "Total results that could not be written back to the store",
			},
		),
		LastRun: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "batch",
				Name:      "last_run_timestamp_seconds",
				Help:      "Unix time the last batch finished",
			},
		),
	}
}

// Registry returns the registry holding the collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// OnSegmentEvaluated counts one segment.
func (m *Metrics) OnSegmentEvaluated(_ *sla.Incident, seg sla.Segment) {
	m.SegmentsTotal.WithLabelValues(string(seg.Outcome)).Inc()
}

// OnVerdict counts one verdict and, for measured incidents, observes the
// management time.
func (m *Metrics) OnVerdict(_ *sla.Incident, res *sla.Result) {
	m.VerdictsTotal.WithLabelValues(string(res.Verdict)).Inc()
	m.DroppedEntriesTotal.Add(float64(len(res.Diagnostics)))
	if res.Verdict.Measured() {
		m.ManagementSeconds.Observe(res.Total.Seconds())
	}
}

// ObserveBatch records the outcome of a finished batch.
func (m *Metrics) ObserveBatch(duration time.Duration, saveFailures int, finished time.Time) {
	m.BatchDuration.Set(duration.Seconds())
	m.SaveFailuresTotal.Add(float64(saveFailures))
	m.LastRun.Set(float64(finished.Unix()))
}

// WriteTextfile writes the registry in the text exposition format, for
// pickup by the node exporter textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("writing metrics textfile: %w", err)
	}
	return nil
}
