package observability

import (
	"net/http"
	"strconv"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "ragqa"

// Ask outcomes recorded by RecordAsk.
const (
	StatusSuccess          = "success"
	StatusValidation       = "validation_error"
	StatusStoreUnavailable = "store_unavailable"
	StatusError            = "error"
)

// Metrics collects pipeline metrics on a private registry. A nil *Metrics
// is valid and records nothing.
type Metrics struct {
	registry *prom.Registry

	askTotal            *prom.CounterVec
	askDuration         *prom.HistogramVec
	retrievalFailures   *prom.CounterVec
	contextChunks       prom.Histogram
	generationTokens    *prom.CounterVec
	interactionsDropped prom.Counter
	storeReloads        *prom.CounterVec
	httpRequests        *prom.CounterVec
}

// NewMetrics registers all collectors on a fresh registry.
func NewMetrics() *Metrics {
	registry := prom.NewRegistry()
	m := &Metrics{
		registry: registry,
		askTotal: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "ask_requests_total",
			Help:      "Questions answered, by outcome.",
		}, []string{"status"}),
		askDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "ask_duration_seconds",
			Help:      "Time spent per pipeline stage.",
			Buckets:   prom.DefBuckets,
		}, []string{"stage"}),
		retrievalFailures: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "retrieval_failures_total",
			Help:      "Retrieval faults absorbed by the orchestrator, by error kind.",
		}, []string{"error_kind"}),
		contextChunks: prom.NewHistogram(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "context_chunks",
			Help:      "Chunks handed to the generation model per question.",
			Buckets:   []float64{0, 1, 2, 3, 4, 6, 8, 12, 16},
		}),
		generationTokens: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "generation_tokens_total",
			Help:      "Tokens reported by the generation model.",
		}, []string{"kind"}),
		interactionsDropped: prom.NewCounter(prom.CounterOpts{
			Namespace: namespace,
			Name:      "interactions_dropped_total",
			Help:      "Interaction events dropped because the buffer was full.",
		}),
		storeReloads: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "store_reloads_total",
			Help:      "Vector store reload attempts, by result.",
		}, []string{"result"}),
		httpRequests: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests served, by route pattern, method and status code.",
		}, []string{"route", "method", "code"}),
	}
	registry.MustRegister(
		m.askTotal,
		m.askDuration,
		m.retrievalFailures,
		m.contextChunks,
		m.generationTokens,
		m.interactionsDropped,
		m.storeReloads,
		m.httpRequests,
	)
	return m
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prom.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("metrics disabled"))
		})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordAsk counts one question by outcome.
func (m *Metrics) RecordAsk(status string) {
	if m == nil {
		return
	}
	m.askTotal.WithLabelValues(status).Inc()
}

// ObserveStage records how long a pipeline stage took.
func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.askDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// RecordRetrievalFailure counts one absorbed retrieval fault.
func (m *Metrics) RecordRetrievalFailure(kind string) {
	if m == nil {
		return
	}
	m.retrievalFailures.WithLabelValues(kind).Inc()
}

// RecordContextChunks records the size of one bounded context.
func (m *Metrics) RecordContextChunks(n int) {
	if m == nil {
		return
	}
	m.contextChunks.Observe(float64(n))
}

// RecordTokens adds the usage reported for one completion.
func (m *Metrics) RecordTokens(prompt, completion int) {
	if m == nil {
		return
	}
	m.generationTokens.WithLabelValues("prompt").Add(float64(prompt))
	m.generationTokens.WithLabelValues("completion").Add(float64(completion))
}

// RecordInteractionDropped counts one dropped interaction event.
func (m *Metrics) RecordInteractionDropped() {
	if m == nil {
		return
	}
	m.interactionsDropped.Inc()
}

// RecordStoreReload counts one reload attempt.
func (m *Metrics) RecordStoreReload(ok bool) {
	if m == nil {
		return
	}
	result := "success"
	if !ok {
		result = "failure"
	}
	m.storeReloads.WithLabelValues(result).Inc()
}

// RecordHTTPRequest counts one served request. route is the matched
// pattern, not the raw path.
func (m *Metrics) RecordHTTPRequest(route, method string, status int) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
}
