package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var HistogramBuckets = []float64{
	// --- Fast responses (0 - 500ms) ---
	25, 50, 75, 100, 150, 200, 300, 400, 500,

	// --- Medium responses around 700ms (500ms - 2s) ---
	750, 1000, 1250, 1500, 1750, 2000,

	// --- Slow responses (2s - 15s) ---
	2500, 3000, 4000, 5000, 7500, 10000, 15000,

	// --- Extended range: purchase flows wait on store events (15s - 120s) ---
	20000,
	30000,
	45000,
	60000,
	75000,
	90000,
	120000,
}

// Metric is a definition for the name, description, type, ID, and
// prometheus.Collector type (i.e. CounterVec, Summary, etc) of each metric
type Metric struct {
	MetricCollector prometheus.Collector
	ID              string
	Name            string
	Description     string
	Type            string
	Args            []string
}

// NewMetric associates prometheus.Collector based on Metric.Type
func NewMetric(m *Metric, subsystem string) prometheus.Collector {
	var metric prometheus.Collector
	switch m.Type {
	case "counter_vec":
		metric = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Subsystem: subsystem,
				Name:      m.Name,
				Help:      m.Description,
			},
			m.Args,
		)
	case "counter":
		metric = prometheus.NewCounter(
			prometheus.CounterOpts{
				Subsystem: subsystem,
				Name:      m.Name,
				Help:      m.Description,
			},
		)
	case "gauge_vec":
		metric = prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Subsystem: subsystem,
				Name:      m.Name,
				Help:      m.Description,
			},
			m.Args,
		)
	case "gauge":
		metric = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Subsystem: subsystem,
				Name:      m.Name,
				Help:      m.Description,
			},
		)
	case "histogram_vec":
		metric = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Subsystem: subsystem,
				Name:      m.Name,
				Help:      m.Description,
				Buckets:   HistogramBuckets,
			},
			m.Args,
		)
	case "histogram":
		metric = prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Subsystem: subsystem,
				Name:      m.Name,
				Help:      m.Description,
				Buckets:   HistogramBuckets,
			},
		)
	case "summary_vec":
		metric = prometheus.NewSummaryVec(
			prometheus.SummaryOpts{
				Subsystem: subsystem,
				Name:      m.Name,
				Help:      m.Description,
			},
			m.Args,
		)
	case "summary":
		metric = prometheus.NewSummary(
			prometheus.SummaryOpts{
				Subsystem: subsystem,
				Name:      m.Name,
				Help:      m.Description,
			},
		)
	}
	return metric
}

// MetricsPurchaseFlow times the purchase pipeline stages, partitioned by
// operation (purchase/restore/validate) and outcome.
var MetricsPurchaseFlow = &Metric{
	ID:          "iapDur",
	Name:        "iap_dur_ms",
	Description: "purchase pipeline latency in milliseconds",
	Type:        "histogram_vec",
	Args:        []string{"op", "outcome"},
}

var purchaseFlowOnce sync.Once

// ObservePurchaseFlow records one pipeline operation. Registration is lazy
// so tests and tools that never touch metrics pay nothing.
func ObservePurchaseFlow(op, outcome string, since time.Time) {
	purchaseFlowOnce.Do(func() {
		if c := NewMetric(MetricsPurchaseFlow, "paywall"); c != nil {
			if err := prometheus.Register(c); err == nil {
				MetricsPurchaseFlow.MetricCollector = c
			}
		}
	})
	if hv, ok := MetricsPurchaseFlow.MetricCollector.(*prometheus.HistogramVec); ok && hv != nil {
		hv.WithLabelValues(op, outcome).Observe(MillisecondsSince(since))
	}
}

// MillisecondsSince returns elapsed wall time in milliseconds.
func MillisecondsSince(t time.Time) float64 {
	return float64(time.Since(t).Nanoseconds()) / 1e6
}

const (
	RefererKey = "X-Referer"
)
