package blockchain

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics are the blockchain prometheus collectors
type Metrics struct {
	// BlocksWritten counts the blocks appended to the chain
	BlocksWritten prometheus.Counter

	// BlockHeight tracks the current head number
	BlockHeight prometheus.Gauge

	// LogQueries counts the served eth_getLogs evaluations
	LogQueries prometheus.Counter
}

// GetPrometheusMetrics returns the blockchain metrics registered under the
// given namespace
func GetPrometheusMetrics(namespace string, constLabels prometheus.Labels) *Metrics {
	m := &Metrics{
		BlocksWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "blockchain",
			Name:        "blocks_written_total",
			Help:        "Total number of blocks appended to the chain.",
			ConstLabels: constLabels,
		}),
		BlockHeight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "blockchain",
			Name:        "block_height",
			Help:        "Current head block number.",
			ConstLabels: constLabels,
		}),
		LogQueries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "blockchain",
			Name:        "log_queries_total",
			Help:        "Total number of evaluated log queries.",
			ConstLabels: constLabels,
		}),
	}

	prometheus.MustRegister(m.BlocksWritten, m.BlockHeight, m.LogQueries)

	return m
}

// newDummyMetrics never registers anything; used when metrics are disabled
func newDummyMetrics(metrics *Metrics) *Metrics {
	if metrics != nil {
		return metrics
	}

	return &Metrics{
		BlocksWritten: prometheus.NewCounter(prometheus.CounterOpts{Name: "noop_blocks_written_total"}),
		BlockHeight:   prometheus.NewGauge(prometheus.GaugeOpts{Name: "noop_block_height"}),
		LogQueries:    prometheus.NewCounter(prometheus.CounterOpts{Name: "noop_log_queries_total"}),
	}
}

func (m *Metrics) blockWrittenInc() {
	m.BlocksWritten.Inc()
}

func (m *Metrics) setBlockHeight(height uint64) {
	m.BlockHeight.Set(float64(height))
}

func (m *Metrics) logQueryInc() {
	m.LogQueries.Inc()
}
