// Package metrics holds the Prometheus instruments for the push webhook.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Label values shared by the instruments.
const (
	ResultOK       = "ok"
	ResultError    = "error"
	ResultEmpty    = "empty"
	ResultRejected = "rejected"
)

// Metrics groups all Prometheus instruments used across the service.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	WebhookRequests  *prometheus.CounterVec
	DirectoryLookups *prometheus.CounterVec
	TokenExchanges   *prometheus.CounterVec
	Deliveries       *prometheus.CounterVec
	DispatchDuration prometheus.Histogram
}

// New registers all instruments with reg. Use a dedicated registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		WebhookRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "push_webhook_requests_total",
			Help: "Webhook invocations by outcome.",
		}, []string{"outcome"}),

		DirectoryLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "push_directory_lookups_total",
			Help: "Endpoint directory lookups by result.",
		}, []string{"result"}),

		TokenExchanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "push_token_exchanges_total",
			Help: "Credential exchanges by result.",
		}, []string{"result"}),

		Deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "push_deliveries_total",
			Help: "Gateway delivery calls by result.",
		}, []string{"result"}),

		DispatchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "push_dispatch_duration_seconds",
			Help:    "Wall time of one fan-out to all endpoints of a record.",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		m.WebhookRequests,
		m.DirectoryLookups,
		m.TokenExchanges,
		m.Deliveries,
		m.DispatchDuration,
	)
	return m
}

func (m *Metrics) Request(outcome string) {
	if m == nil {
		return
	}
	m.WebhookRequests.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Lookup(result string) {
	if m == nil {
		return
	}
	m.DirectoryLookups.WithLabelValues(result).Inc()
}

func (m *Metrics) Exchange(result string) {
	if m == nil {
		return
	}
	m.TokenExchanges.WithLabelValues(result).Inc()
}

func (m *Metrics) Delivery(result string) {
	if m == nil {
		return
	}
	m.Deliveries.WithLabelValues(result).Inc()
}

func (m *Metrics) Dispatched(elapsed time.Duration) {
	if m == nil {
		return
	}
	m.DispatchDuration.Observe(elapsed.Seconds())
}

// Handler serves the scrape endpoint for the given gatherer.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
