// Package observability provides Prometheus metrics and in-process query
// statistics for the segment average engine.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "segavg"

// Query outcomes used as the "outcome" label.
const (
	OutcomeOK             = "ok"
	OutcomeUnknownSegment = "unknown_segment"
	OutcomeNoLineItems    = "no_line_items"
	OutcomeError          = "error"
)

// Metrics holds the engine's Prometheus collectors.
type Metrics struct {
	RecordsIngested *prometheus.CounterVec
	RangesTruncated *prometheus.CounterVec
	IngestDuration  *prometheus.HistogramVec
	QueriesTotal    *prometheus.CounterVec
	QueryDuration   prometheus.Histogram
	IndexEntries    *prometheus.GaugeVec
}

// NewMetrics creates the collectors and registers them with reg. A nil reg
// leaves them unregistered, which keeps tests independent of the default
// registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RecordsIngested: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "ingest",
				Name:      "records_total",
				Help:      "Total number of records ingested by table",
			},
			[]string{"table"},
		),
		RangesTruncated: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "ingest",
				Name:      "truncated_ranges_total",
				Help:      "Total number of chunk ranges cut short by a malformed record",
			},
			[]string{"table"},
		),
		IngestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "ingest",
				Name:      "duration_seconds",
				Help:      "Duration of table ingestion in seconds",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"table"},
		),
		QueriesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "query",
				Name:      "total",
				Help:      "Total number of segment average queries by outcome",
			},
			[]string{"outcome"},
		),
		QueryDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "query",
				Name:      "duration_seconds",
				Help:      "Duration of segment average queries in seconds",
				Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
			},
		),
		IndexEntries: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "index",
				Name:      "entries",
				Help:      "Number of keys held by each frozen index",
			},
			[]string{"index"},
		),
	}
}

// ObserveIngest records a completed table ingestion.
func (m *Metrics) ObserveIngest(table string, records, truncated int64, d time.Duration) {
	if m == nil {
		return
	}
	m.RecordsIngested.WithLabelValues(table).Add(float64(records))
	m.RangesTruncated.WithLabelValues(table).Add(float64(truncated))
	m.IngestDuration.WithLabelValues(table).Observe(d.Seconds())
}

// ObserveQuery records one query outcome.
func (m *Metrics) ObserveQuery(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.QueriesTotal.WithLabelValues(outcome).Inc()
	m.QueryDuration.Observe(d.Seconds())
}

// SetIndexEntries publishes the size of a frozen index.
func (m *Metrics) SetIndexEntries(name string, n int) {
	if m == nil {
		return
	}
	m.IndexEntries.WithLabelValues(name).Set(float64(n))
}
