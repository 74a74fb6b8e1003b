package backend

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks outbound calls to the shop backend.
type Metrics struct {
	Calls       *prometheus.CounterVec
	Latency     *prometheus.HistogramVec
	CircuitOpen prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Calls: f.NewCounterVec(prometheus.CounterOpts{
			Name: "milkadmin_backend_calls_total",
			Help: "Backend calls labeled by method, resource and outcome (ok or error kind)",
		}, []string{"method", "resource", "outcome"}),
		Latency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "milkadmin_backend_call_duration_seconds",
			Help:    "Backend call latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "resource"}),
		CircuitOpen: f.NewGauge(prometheus.GaugeOpts{
			Name: "milkadmin_backend_circuit_open",
			Help: "1 while the backend circuit breaker is open",
		}),
	}
}

func (m *Metrics) observe(method, path string, kind Kind, elapsed time.Duration) {
	if m == nil {
		return
	}
	resource := resourceOf(path)
	outcome := "ok"
	if kind != "" {
		outcome = string(kind)
	}
	m.Calls.WithLabelValues(method, resource, outcome).Inc()
	m.Latency.WithLabelValues(method, resource).Observe(elapsed.Seconds())
}

func (m *Metrics) setCircuitOpen(open bool) {
	if m == nil {
		return
	}
	if open {
		m.CircuitOpen.Set(1)
		return
	}
	m.CircuitOpen.Set(0)
}

// resourceOf keeps label cardinality bounded: "product/delete/12?x=1" -> "product".
func resourceOf(path string) string {
	path = strings.TrimPrefix(path, "/")
	if i := strings.IndexAny(path, "/?"); i >= 0 {
		path = path[:i]
	}
	if path == "" {
		return "root"
	}
	return path
}
