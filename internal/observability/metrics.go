package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Metrics groups the collectors the service exports. Each server owns its
// registry so tests can build as many as they need.
type Metrics struct {
	Registry *prometheus.Registry

	HTTPRequests  *prometheus.CounterVec
	HTTPDuration  *prometheus.HistogramVec
	ChunksIndexed prometheus.Counter
	Answers       *prometheus.CounterVec
}

// Answer outcomes.
const (
	OutcomeAnswered = "answered"
	OutcomeNoDocs   = "no_documents"
	OutcomeError    = "error"
)

func NewMetrics() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "docchat",
			Name:      "http_requests_total",
			Help:      "HTTP requests by route, method and status code.",
		}, []string{"route", "method", "code"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "docchat",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
		ChunksIndexed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "docchat",
			Name:      "chunks_indexed_total",
			Help:      "Document chunks written to the vector store.",
		}),
		Answers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "docchat",
			Name:      "answers_total",
			Help:      "Chat answers by outcome.",
		}, []string{"outcome"}),
	}

	m.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.HTTPRequests,
		m.HTTPDuration,
		m.ChunksIndexed,
		m.Answers,
	)
	return m
}

// ObserveAnswer is safe to call on a nil *Metrics.
func (m *Metrics) ObserveAnswer(outcome string) {
	if m == nil {
		return
	}
	m.Answers.WithLabelValues(outcome).Inc()
}

// ObserveChunks is safe to call on a nil *Metrics.
func (m *Metrics) ObserveChunks(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.ChunksIndexed.Add(float64(n))
}
