package jsonrpc

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics are the jsonrpc prometheus collectors
type Metrics struct {
	// Requests counts the dispatched requests per method
	Requests *prometheus.CounterVec

	// Errors counts the failed requests
	Errors prometheus.Counter

	// ResponseTime observes request handling seconds
	ResponseTime prometheus.Histogram
}

// GetPrometheusMetrics returns the jsonrpc metrics registered under the
// given namespace
func GetPrometheusMetrics(namespace string, constLabels prometheus.Labels) *Metrics {
	m := &Metrics{
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "jsonrpc",
			Name:        "requests_total",
			Help:        "Total number of dispatched requests.",
			ConstLabels: constLabels,
		}, []string{"method"}),
		Errors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "jsonrpc",
			Name:        "request_errors_total",
			Help:        "Total number of failed requests.",
			ConstLabels: constLabels,
		}),
		ResponseTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:   namespace,
			Subsystem:   "jsonrpc",
			Name:        "response_seconds",
			Help:        "Request handling time in seconds.",
			ConstLabels: constLabels,
			Buckets:     prometheus.DefBuckets,
		}),
	}

	prometheus.MustRegister(m.Requests, m.Errors, m.ResponseTime)

	return m
}

func newDummyMetrics(metrics *Metrics) *Metrics {
	if metrics != nil {
		return metrics
	}

	return &Metrics{
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "noop_jsonrpc_requests_total",
		}, []string{"method"}),
		Errors: prometheus.NewCounter(prometheus.CounterOpts{Name: "noop_jsonrpc_request_errors_total"}),
		ResponseTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name: "noop_jsonrpc_response_seconds",
		}),
	}
}

func (m *Metrics) requestInc(method string) {
	m.Requests.WithLabelValues(method).Inc()
}

func (m *Metrics) errorInc() {
	m.Errors.Inc()
}

func (m *Metrics) responseTimeObserve() func() {
	start := time.Now()

	return func() {
		m.ResponseTime.Observe(time.Since(start).Seconds())
	}
}
