package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Allowlist refresh metrics
	AllowlistRefresh = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "inproxy_allowlist_refresh_total",
		Help: "Total number of allowlist refresh attempts by result (success, fetch_error, persist_error)",
	}, []string{"result"})
	AllowlistClients = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "inproxy_allowlist_clients",
		Help: "Number of clients in the active allowlist snapshot",
	})

	// Token endpoint decisions: allowed, soft_denied, denied, invalid_grant
	TokenRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "inproxy_token_requests_total",
		Help: "Total number of token requests by guard decision",
	}, []string{"decision"})

	LogoutValidationFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "inproxy_logout_validation_failures_total",
		Help: "Total number of rejected logout requests by reason",
	}, []string{"reason"})

	// Well-known cache lookups: hit, miss, error, stored, skipped
	WellKnownCache = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "inproxy_wellknown_cache_total",
		Help: "Total number of well-known response cache operations by result",
	}, []string{"result"})
)

func init() {
	prometheus.MustRegister(AllowlistRefresh)
	prometheus.MustRegister(AllowlistClients)
	prometheus.MustRegister(TokenRequests)
	prometheus.MustRegister(LogoutValidationFailures)
	prometheus.MustRegister(WellKnownCache)
}

// MetricsHandler returns an http.Handler exposing Prometheus metrics.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
