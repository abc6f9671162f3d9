// Package metrics records facade, generation, retrieval and provisioning
// metrics on a private Prometheus registry.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kalambet/kbagent/internal/engine"
	"github.com/kalambet/kbagent/internal/provision"
)

const namespace = "kbagent"

// Metrics implements api.Instrumentation and agent.Observer.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	generationDuration *prometheus.HistogramVec
	generationTokens   *prometheus.CounterVec

	retrievalDuration *prometheus.HistogramVec
	retrievalResults  *prometheus.HistogramVec

	provisionSteps *prometheus.CounterVec
}

// New creates a registry with process and Go runtime collectors plus the
// kbagent metrics.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests served, by route and status code.",
		}, []string{"method", "route", "code"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		generationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "generation_duration_seconds",
			Help:      "Text generation latency by operation.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30},
		}, []string{"op", "status"}),
		generationTokens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generation_tokens_total",
			Help:      "Tokens reported by the generation backend.",
		}, []string{"op", "direction"}),
		retrievalDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "retrieval_duration_seconds",
			Help:      "Knowledge-base retrieval latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op", "status"}),
		retrievalResults: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "retrieval_results",
			Help:      "Chunks returned per retrieval.",
			Buckets:   []float64{0, 1, 2, 3, 5, 10, 20},
		}, []string{"op"}),
		provisionSteps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provision_steps_total",
			Help:      "Provisioning steps by outcome.",
		}, []string{"step", "outcome"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequests,
		m.httpDuration,
		m.generationDuration,
		m.generationTokens,
		m.retrievalDuration,
		m.retrievalResults,
		m.provisionSteps,
	)
	return m
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Middleware records count and latency per chi route pattern so path
// parameters do not explode label cardinality.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		code := ww.Status()
		if code == 0 {
			code = http.StatusOK
		}
		m.httpRequests.WithLabelValues(r.Method, route, strconv.Itoa(code)).Inc()
		m.httpDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

// ObserveGeneration implements agent.Observer.
func (m *Metrics) ObserveGeneration(op string, d time.Duration, gen engine.Generation, err error) {
	m.generationDuration.WithLabelValues(op, status(err)).Observe(d.Seconds())
	if err != nil {
		return
	}
	if gen.InputTokens > 0 {
		m.generationTokens.WithLabelValues(op, "input").Add(float64(gen.InputTokens))
	}
	if gen.OutputTokens > 0 {
		m.generationTokens.WithLabelValues(op, "output").Add(float64(gen.OutputTokens))
	}
}

// ObserveRetrieval implements agent.Observer.
func (m *Metrics) ObserveRetrieval(op string, d time.Duration, results int, err error) {
	m.retrievalDuration.WithLabelValues(op, status(err)).Observe(d.Seconds())
	if err == nil {
		m.retrievalResults.WithLabelValues(op).Observe(float64(results))
	}
}

// ObserveSteps counts the steps of a provisioning run.
func (m *Metrics) ObserveSteps(steps []provision.StepResult) {
	for _, s := range steps {
		m.provisionSteps.WithLabelValues(s.Step, string(s.Outcome)).Inc()
	}
}

// WriteTextfile writes the registry in the node-exporter textfile format.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
