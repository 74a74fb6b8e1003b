package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the console-level Prometheus metrics.
type Metrics struct {
	// Session gate
	SessionAuthenticated prometheus.Gauge
	Logins               *prometheus.CounterVec
	TokenRefreshes       *prometheus.CounterVec
	LoginsThrottled      prometheus.Counter

	// Table views
	ViewFetches        *prometheus.CounterVec
	StaleViewResponses *prometheus.CounterVec
	Mutations          *prometheus.CounterVec
}

// New creates and registers all console metrics on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		SessionAuthenticated: f.NewGauge(prometheus.GaugeOpts{
			Name: "milkadmin_session_authenticated",
			Help: "1 while the operator session is authenticated, 0 otherwise",
		}),
		Logins: f.NewCounterVec(prometheus.CounterOpts{
			Name: "milkadmin_logins_total",
			Help: "Login attempts labeled by outcome",
		}, []string{"outcome"}),
		TokenRefreshes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "milkadmin_token_refreshes_total",
			Help: "Access token refreshes labeled by outcome",
		}, []string{"outcome"}),
		LoginsThrottled: f.NewCounter(prometheus.CounterOpts{
			Name: "milkadmin_logins_throttled_total",
			Help: "Login attempts rejected by the per-client limiter",
		}),
		ViewFetches: f.NewCounterVec(prometheus.CounterOpts{
			Name: "milkadmin_view_fetches_total",
			Help: "Page fetches issued by table views, labeled by entity and outcome",
		}, []string{"entity", "outcome"}),
		StaleViewResponses: f.NewCounterVec(prometheus.CounterOpts{
			Name: "milkadmin_view_stale_responses_total",
			Help: "Page responses discarded because a newer request was issued",
		}, []string{"entity"}),
		Mutations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "milkadmin_mutations_total",
			Help: "Create/update/delete calls labeled by entity, operation and outcome",
		}, []string{"entity", "op", "outcome"}),
	}
}

func (m *Metrics) SetAuthenticated(ok bool) {
	if m == nil {
		return
	}
	if ok {
		m.SessionAuthenticated.Set(1)
		return
	}
	m.SessionAuthenticated.Set(0)
}

func (m *Metrics) IncLogin(outcome string) {
	if m != nil {
		m.Logins.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) IncRefresh(outcome string) {
	if m != nil {
		m.TokenRefreshes.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) IncLoginThrottled() {
	if m != nil {
		m.LoginsThrottled.Inc()
	}
}

func (m *Metrics) IncViewFetch(entity, outcome string) {
	if m != nil {
		m.ViewFetches.WithLabelValues(entity, outcome).Inc()
	}
}

func (m *Metrics) IncStaleResponse(entity string) {
	if m != nil {
		m.StaleViewResponses.WithLabelValues(entity).Inc()
	}
}

func (m *Metrics) IncMutation(entity, op, outcome string) {
	if m != nil {
		m.Mutations.WithLabelValues(entity, op, outcome).Inc()
	}
}
