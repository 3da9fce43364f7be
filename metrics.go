package corrstream

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics tracks pipeline activity for Prometheus scraping.
type Metrics struct {
	registry *prometheus.Registry

	cyclesRun     prometheus.Counter
	cyclesSkipped prometheus.Counter
	recordsRead   prometheus.Counter
	ingestErrors  *prometheus.CounterVec
	insightsTotal prometheus.Gauge
	lastCycleUnix prometheus.Gauge
	sourceUp      prometheus.Gauge
}

// NewMetrics creates and registers the pipeline metric set on a private
// registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		cyclesRun: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "corrstream_cycles_total",
			Help: "Number of completed ingestion cycles.",
		}),
		cyclesSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "corrstream_cycles_skipped_total",
			Help: "Number of poll ticks skipped because a cycle was still running.",
		}),
		recordsRead: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "corrstream_records_read_total",
			Help: "Number of record lines read from the source, whether or not they decoded.",
		}),
		ingestErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "corrstream_ingest_errors_total",
			Help: "Per-record ingestion errors by category.",
		}, []string{"category"}),
		insightsTotal: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "corrstream_insights",
			Help: "Number of insights currently held in the store.",
		}),
		lastCycleUnix: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "corrstream_last_cycle_timestamp_seconds",
			Help: "Unix time of the last completed ingestion cycle.",
		}),
		sourceUp: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "corrstream_source_up",
			Help: "1 when the last source read succeeded, 0 otherwise.",
		}),
	}

	m.registry.MustRegister(
		m.cyclesRun,
		m.cyclesSkipped,
		m.recordsRead,
		m.ingestErrors,
		m.insightsTotal,
		m.lastCycleUnix,
		m.sourceUp,
	)
	return m
}

// Handler returns an HTTP handler exposing the metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// recordIngestError increments the counter for one error category.
func (m *Metrics) recordIngestError(err *IngestError) {
	var category string
	switch err.Type {
	case IngestErrorTypeParse:
		category = "parse"
	case IngestErrorTypeUnknownType:
		category = "unknown_type"
	case IngestErrorTypeMissingField:
		category = "missing_field"
	default:
		category = "other"
	}
	m.ingestErrors.WithLabelValues(category).Inc()
}
