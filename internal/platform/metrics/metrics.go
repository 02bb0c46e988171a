package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds Prometheus counters and gauges for the keyframe engine.
type Metrics struct {
	registry       *prometheus.Registry
	requestsTotal  prometheus.Counter
	errorsTotal    prometheus.Counter
	lookupsTotal   *prometheus.CounterVec
	mutationsTotal *prometheus.CounterVec
	formations     prometheus.Gauge
}

// New creates and registers Prometheus metrics on a private registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	requestsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "keyframe_requests_total",
		Help: "Total number of HTTP requests received",
	})
	errorsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "keyframe_errors_total",
		Help: "Total number of HTTP responses with error status (4xx or 5xx)",
	})
	lookupsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "keyframe_lookups_total",
		Help: "Formation lookups by result (exact, interpolated, none)",
	}, []string{"match"})
	mutationsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "keyframe_mutations_total",
		Help: "Persisted timeline mutations by operation",
	}, []string{"op"})
	formations := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "keyframe_formations",
		Help: "Number of keyframes in the timeline",
	})

	registry.MustRegister(
		requestsTotal,
		errorsTotal,
		lookupsTotal,
		mutationsTotal,
		formations,
	)

	return &Metrics{
		registry:       registry,
		requestsTotal:  requestsTotal,
		errorsTotal:    errorsTotal,
		lookupsTotal:   lookupsTotal,
		mutationsTotal: mutationsTotal,
		formations:     formations,
	}
}

// IncRequests increments the total request counter.
func (m *Metrics) IncRequests() {
	m.requestsTotal.Inc()
}

// IncErrors increments the errors counter.
func (m *Metrics) IncErrors() {
	m.errorsTotal.Inc()
}

// ObserveLookup counts one lookup with the given match kind.
func (m *Metrics) ObserveLookup(match string) {
	m.LookupCounter(match).Inc()
}

// IncMutations counts one persisted mutation of the given operation.
func (m *Metrics) IncMutations(op string) {
	m.MutationCounter(op).Inc()
}

// SetFormations sets the keyframe count gauge.
func (m *Metrics) SetFormations(n int) {
	m.formations.Set(float64(n))
}

// LookupCounter returns the lookup counter for a match kind.
func (m *Metrics) LookupCounter(match string) prometheus.Counter {
	return m.lookupsTotal.WithLabelValues(match)
}

// MutationCounter returns the mutation counter for an operation.
func (m *Metrics) MutationCounter(op string) prometheus.Counter {
	return m.mutationsTotal.WithLabelValues(op)
}

// Handler returns an http.Handler that serves Prometheus metrics.
// updateGauges is called before each scrape to refresh gauge values.
func (m *Metrics) Handler(updateGauges func()) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if updateGauges != nil {
			updateGauges()
		}
		promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}).ServeHTTP(w, r)
	})
}
