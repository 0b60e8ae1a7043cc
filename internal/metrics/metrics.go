// Package metrics exposes Prometheus instrumentation for the proxy.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "tts_proxy"

// Request outcomes.
const (
	OutcomeOK            = "ok"
	OutcomeFavicon       = "favicon"
	OutcomeConfigError   = "config_error"
	OutcomeAuthError     = "auth_error"
	OutcomeNetworkError  = "network_error"
	OutcomeUpstreamError = "upstream_error"
	OutcomeDecodeError   = "decode_error"
	OutcomeInternalError = "internal_error"
)

// Metrics groups the collectors recorded by the proxy.
type Metrics struct {
	requestsTotal     *prometheus.CounterVec
	cacheLookupsTotal *prometheus.CounterVec
	synthesisDuration *prometheus.HistogramVec
	tokenExchanges    *prometheus.CounterVec
	gatherer          prometheus.Gatherer
}

// New creates the collectors and registers them on registry.
func New(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "requests_total",
				Help:      "Total number of proxied requests by outcome",
			},
			[]string{"outcome"},
		),
		cacheLookupsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_lookups_total",
				Help:      "Total number of response cache lookups by result",
			},
			[]string{"result"}, // hit, miss, error
		),
		synthesisDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "synthesis_duration_seconds",
				Help:      "Duration of token acquisition, synthesis and decoding in seconds",
				Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"status"}, // success, error
		),
		tokenExchanges: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "token_exchanges_total",
				Help:      "Total number of OAuth2 token exchanges",
			},
			[]string{"status"}, // success, error
		),
		gatherer: registry,
	}

	registry.MustRegister(m.requestsTotal, m.cacheLookupsTotal, m.synthesisDuration, m.tokenExchanges)

	return m
}

// ObserveRequest counts a finished request.
func (m *Metrics) ObserveRequest(outcome string) {
	m.requestsTotal.WithLabelValues(outcome).Inc()
}

// ObserveCacheLookup counts a cache lookup result.
func (m *Metrics) ObserveCacheLookup(result string) {
	m.cacheLookupsTotal.WithLabelValues(result).Inc()
}

// ObserveSynthesis records the duration of one synthesis.
func (m *Metrics) ObserveSynthesis(elapsed time.Duration, err error) {
	m.synthesisDuration.WithLabelValues(status(err)).Observe(elapsed.Seconds())
}

// ObserveTokenExchange counts a token exchange.
func (m *Metrics) ObserveTokenExchange(err error) {
	m.tokenExchanges.WithLabelValues(status(err)).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

func status(err error) string {
	if err != nil {
		return "error"
	}

	return "success"
}
