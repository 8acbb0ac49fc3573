package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the Prometheus instruments of the chat memory store.
// All methods are safe to call on a nil *Metrics.
type Metrics struct {
	StoreOperations *prometheus.CounterVec
	StoreLatency    *prometheus.HistogramVec
	DecodeFallbacks *prometheus.CounterVec
	TrimmedMessages prometheus.Counter
}

// NewMetrics registers the instruments on reg, or on the default registerer
// when reg is nil.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		StoreOperations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_operations_total",
			Help:      "List store operations by operation and result.",
		}, []string{"op", "result"}),
		StoreLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "store_operation_duration_seconds",
			Help:      "Latency of list store operations.",
			Buckets:   []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
		}, []string{"op"}),
		DecodeFallbacks: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decode_fallbacks_total",
			Help:      "Stored records decoded as USER because their type was missing or unknown.",
		}, []string{"reason"}),
		TrimmedMessages: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "trimmed_messages_total",
			Help:      "Messages dropped by the retention trimmer.",
		}),
	}
}

func (m *Metrics) ObserveStoreOp(op string, d time.Duration, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.StoreOperations.WithLabelValues(op, result).Inc()
	m.StoreLatency.WithLabelValues(op).Observe(d.Seconds())
}

func (m *Metrics) DecodeFallback(reason string) {
	if m == nil {
		return
	}
	m.DecodeFallbacks.WithLabelValues(reason).Inc()
}

func (m *Metrics) Trimmed(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.TrimmedMessages.Add(float64(n))
}

// Handler serves the metrics gathered by g, or the default gatherer when g
// is nil.
func Handler(g prometheus.Gatherer) http.Handler {
	if g == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
