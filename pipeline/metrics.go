package pipeline

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for ETL runs.
type Metrics struct {
	Registry        *prometheus.Registry
	RunsTotal       *prometheus.CounterVec
	RecordsTotal    *prometheus.CounterVec
	SuppressedTotal prometheus.Counter
	PriceFlagsTotal prometheus.Counter
	StageDuration   *prometheus.HistogramVec
	LastSuccess     prometheus.Gauge
}

// NewMetrics constructs and registers all metrics on a dedicated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	runs := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vehicle_etl_runs_total",
			Help: "ETL runs by mode and outcome.",
		},
		[]string{"mode", "outcome"},
	)
	records := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vehicle_etl_records_total",
			Help: "Records seen by the pipeline, by outcome.",
		},
		[]string{"outcome"},
	)
	suppressed := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "vehicle_etl_suppressed_values_total",
			Help: "Field values nulled for being outside their plausible range.",
		},
	)
	priceFlags := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "vehicle_etl_price_flags_total",
			Help: "Cleaned records whose exchange rate fell outside the accepted band.",
		},
	)
	stageDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vehicle_etl_stage_duration_seconds",
			Help:    "Wall time spent in each pipeline stage.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"stage"},
	)
	lastSuccess := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "vehicle_etl_last_success_timestamp_seconds",
			Help: "Unix time of the last run that completed.",
		},
	)

	registry.MustRegister(runs, records, suppressed, priceFlags, stageDuration, lastSuccess)

	return &Metrics{
		Registry:        registry,
		RunsTotal:       runs,
		RecordsTotal:    records,
		SuppressedTotal: suppressed,
		PriceFlagsTotal: priceFlags,
		StageDuration:   stageDuration,
		LastSuccess:     lastSuccess,
	}
}

// IncRun counts a finished run.
func (m *Metrics) IncRun(mode, outcome string) {
	if m == nil {
		return
	}
	m.RunsTotal.WithLabelValues(mode, outcome).Inc()
}

// AddRecords adds n records under an outcome label (input, output, rejected, duplicate).
func (m *Metrics) AddRecords(outcome string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.RecordsTotal.WithLabelValues(outcome).Add(float64(n))
}

// AddSuppressed adds suppressed field values.
func (m *Metrics) AddSuppressed(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.SuppressedTotal.Add(float64(n))
}

// AddPriceFlags adds flagged records.
func (m *Metrics) AddPriceFlags(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.PriceFlagsTotal.Add(float64(n))
}

// ObserveStage records how long a stage took.
func (m *Metrics) ObserveStage(stage State, d time.Duration) {
	if m == nil {
		return
	}
	m.StageDuration.WithLabelValues(stage.String()).Observe(d.Seconds())
}

// MarkSuccess stamps the last successful run time.
func (m *Metrics) MarkSuccess(t time.Time) {
	if m == nil {
		return
	}
	m.LastSuccess.Set(float64(t.Unix()))
}

// WriteTextfile dumps the registry in the node_exporter textfile format.
// An empty path is a no-op.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, m.Registry)
}
