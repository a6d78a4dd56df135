// Package metrics exposes the gateway's Prometheus metrics.
//
// Metrics cover the request path end to end: per-dialect request counts
// and latencies, token throughput per resolved model and account, alias
// fallback activity, credential exchanges, and the forced refreshes taken
// by the single upstream auth retry.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/modelmux/modelmux/pkg/dialect"
)

const namespace = "modelmux"

// Collector owns the gateway's metric instruments and their registry.
type Collector struct {
	registry *prometheus.Registry

	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	tokensTotal     *prometheus.CounterVec
	fallbacksTotal  *prometheus.CounterVec
	authRetries     *prometheus.CounterVec
	tokenExchanges  *prometheus.CounterVec
	activeStreams   prometheus.Gauge
}

// NewCollector creates a collector with all instruments registered. A nil
// registry gets a fresh one.
func NewCollector(registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	c := &Collector{
		registry: registry,

		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "requests_total",
				Help:      "Total requests processed, by client dialect, resolved model, account, and status class",
			},
			[]string{"dialect", "model", "account", "status"},
		),

		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "request_duration_seconds",
				Help:      "Whole-call duration in seconds, streaming calls included",
				Buckets:   []float64{0.1, 0.25, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0, 60.0, 120.0},
			},
			[]string{"dialect", "model"},
		),

		tokensTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tokens_total",
				Help:      "Tokens processed, by resolved model, account, and direction (prompt or completion)",
			},
			[]string{"model", "account", "direction"},
		),

		fallbacksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "model_fallbacks_total",
				Help:      "Requests whose model name resolved through the alias fallback chain",
			},
			[]string{"requested", "resolved"},
		),

		authRetries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "auth_retries_total",
				Help:      "Upstream 401/403 responses that triggered the one-shot token refresh",
			},
			[]string{"account"},
		),

		tokenExchanges: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "token_exchanges_total",
				Help:      "Client-credentials token exchanges, by account and outcome",
			},
			[]string{"account", "outcome"},
		),

		activeStreams: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_streams",
				Help:      "Streaming calls currently in flight",
			},
		),
	}

	registry.MustRegister(
		c.requestsTotal,
		c.requestDuration,
		c.tokensTotal,
		c.fallbacksTotal,
		c.authRetries,
		c.tokenExchanges,
		c.activeStreams,
	)

	return c
}

// RecordRequest records one finished call.
func (c *Collector) RecordRequest(clientDialect, model, account, status string, duration time.Duration) {
	c.requestsTotal.WithLabelValues(clientDialect, model, account, status).Inc()
	c.requestDuration.WithLabelValues(clientDialect, model).Observe(duration.Seconds())
}

// RecordUsage records the token usage of one finished call.
func (c *Collector) RecordUsage(model, account string, usage dialect.Usage) {
	c.tokensTotal.WithLabelValues(model, account, "prompt").Add(float64(usage.PromptTokens))
	c.tokensTotal.WithLabelValues(model, account, "completion").Add(float64(usage.CompletionTokens))
}

// RecordFallback records one alias fallback resolution.
func (c *Collector) RecordFallback(requested, resolved string) {
	c.fallbacksTotal.WithLabelValues(requested, resolved).Inc()
}

// RecordAuthRetry records one forced token refresh.
func (c *Collector) RecordAuthRetry(account string) {
	c.authRetries.WithLabelValues(account).Inc()
}

// RecordTokenExchange records one token exchange attempt.
func (c *Collector) RecordTokenExchange(account string, err error) {
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	c.tokenExchanges.WithLabelValues(account, outcome).Inc()
}

// StreamStarted marks a streaming call as in flight; the returned func
// marks it finished.
func (c *Collector) StreamStarted() func() {
	c.activeStreams.Inc()
	return c.activeStreams.Dec
}

// Handler returns the HTTP handler serving the metrics endpoint.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(
		c.registry,
		promhttp.HandlerOpts{
			EnableOpenMetrics: true,
			ErrorHandling:     promhttp.ContinueOnError,
		},
	)
}
