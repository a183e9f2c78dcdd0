package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gemini2openai/api-proxy/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// llmBuckets covers LLM inference latencies from 100ms to 120s.
var llmBuckets = []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120}

// Metrics holds the proxy's Prometheus collectors. Each Server owns its own
// registry so that several servers can coexist in one process (tests).
type Metrics struct {
	registry *prometheus.Registry

	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	upstreamCalls   *prometheus.CounterVec
	upstreamLatency *prometheus.HistogramVec
	tokens          *prometheus.CounterVec
}

// NewMetrics creates and registers the proxy metrics with registry.
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		registry: registry,
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gemini2openai_requests_total",
				Help: "Inbound HTTP requests by route and status code",
			},
			[]string{"method", "route", "status"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gemini2openai_request_duration_seconds",
				Help:    "Inbound HTTP request duration",
				Buckets: llmBuckets,
			},
			[]string{"method", "route"},
		),
		upstreamCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gemini2openai_upstream_requests_total",
				Help: "Calls to the Gemini API by operation and outcome",
			},
			[]string{"operation", "outcome"},
		),
		upstreamLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gemini2openai_upstream_latency_seconds",
				Help:    "Gemini API call latency",
				Buckets: llmBuckets,
			},
			[]string{"operation"},
		),
		tokens: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gemini2openai_tokens_total",
				Help: "Tokens reported by Gemini usage metadata",
			},
			[]string{"model", "direction"},
		),
	}

	registry.MustRegister(
		m.requests,
		m.requestDuration,
		m.upstreamCalls,
		m.upstreamLatency,
		m.tokens,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Middleware records request counts and durations per matched route.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.requests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.requestDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

// ObserveUpstream records one Gemini call. outcome is the HTTP status code,
// or "error" when the call failed before a response arrived.
func (m *Metrics) ObserveUpstream(operation string, status int, err error, latency time.Duration) {
	outcome := strconv.Itoa(status)
	if err != nil {
		outcome = "error"
	}
	m.upstreamCalls.WithLabelValues(operation, outcome).Inc()
	m.upstreamLatency.WithLabelValues(operation).Observe(latency.Seconds())
}

// ObserveUsage adds a completion's token usage.
func (m *Metrics) ObserveUsage(model string, usage models.Usage) {
	m.tokens.WithLabelValues(model, "input").Add(float64(usage.PromptTokens))
	m.tokens.WithLabelValues(model, "output").Add(float64(usage.CompletionTokens))
}
