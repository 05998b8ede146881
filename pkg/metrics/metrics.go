// Package metrics provides Prometheus metrics for the knotscore service.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Manager holds the service's Prometheus collectors on a dedicated
// registry, keeping the default Go collectors out of the scrape.
type Manager struct {
	registry *prometheus.Registry

	attemptsRecorded prometheus.Counter
	attemptsAmended  prometheus.Counter
	tokensIssued     prometheus.Counter

	rankingQueryDuration *prometheus.HistogramVec

	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

// New creates a Manager with all collectors registered.
func New() *Manager {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Manager{
		registry: registry,
		attemptsRecorded: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "knotscore",
			Name:      "attempts_recorded_total",
			Help:      "Number of attempts accepted by the ledger.",
		}),
		attemptsAmended: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "knotscore",
			Name:      "attempts_amended_total",
			Help:      "Number of attempt corrections applied.",
		}),
		tokensIssued: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "knotscore",
			Name:      "tokens_issued_total",
			Help:      "Number of competitor access tokens issued or rotated.",
		}),
		rankingQueryDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "knotscore",
			Name:      "ranking_query_duration_seconds",
			Help:      "Time spent recomputing a derived ranking view.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"view"}),
		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "knotscore",
			Name:      "http_requests_total",
			Help:      "HTTP requests by method and status.",
		}, []string{"method", "status"}),
		httpRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "knotscore",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
	}
}

// Handler exposes the registry for scraping.
func (m *Manager) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// AttemptRecorded counts a successful ledger insert.
func (m *Manager) AttemptRecorded() {
	m.attemptsRecorded.Inc()
}

// AttemptAmended counts a successful correction.
func (m *Manager) AttemptAmended() {
	m.attemptsAmended.Inc()
}

// TokenIssued counts a token issuance or rotation.
func (m *Manager) TokenIssued() {
	m.tokensIssued.Inc()
}

// ObserveRankingQuery records how long one ranking view took to compute.
func (m *Manager) ObserveRankingQuery(view string, elapsed time.Duration) {
	m.rankingQueryDuration.WithLabelValues(view).Observe(elapsed.Seconds())
}

// ObserveHTTPRequest records one served request.
func (m *Manager) ObserveHTTPRequest(method, status string, elapsed time.Duration) {
	m.httpRequests.WithLabelValues(method, status).Inc()
	m.httpRequestDuration.WithLabelValues(method).Observe(elapsed.Seconds())
}
