package observability

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// MarketMetrics records ledger operation activity for the scrape endpoint.
type MarketMetrics struct {
	operations *prometheus.CounterVec
	latency    *prometheus.HistogramVec
	flashFees  prometheus.Counter
}

var (
	marketMetricsOnce sync.Once
	marketRegistry    *MarketMetrics
)

// Market returns the lazily-initialised market metrics registry.
func Market() *MarketMetrics {
	marketMetricsOnce.Do(func() {
		marketRegistry = &MarketMetrics{
			operations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "capmarket",
				Subsystem: "market",
				Name:      "operations_total",
				Help:      "Total ledger operations segmented by operation and outcome.",
			}, []string{"operation", "outcome"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "capmarket",
				Subsystem: "market",
				Name:      "operation_duration_seconds",
				Help:      "Latency distribution for ledger operations.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"operation"}),
			flashFees: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "capmarket",
				Subsystem: "market",
				Name:      "flash_loan_fees_total",
				Help:      "Cumulative flash-loan fees collected, in the asset's smallest unit.",
			}),
		}
		prometheus.MustRegister(
			marketRegistry.operations,
			marketRegistry.latency,
			marketRegistry.flashFees,
		)
	})
	return marketRegistry
}

// Observe records a completed operation with its outcome and duration.
func (m *MarketMetrics) Observe(operation string, err error, duration time.Duration) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.operations.WithLabelValues(operation, outcome).Inc()
	m.latency.WithLabelValues(operation).Observe(duration.Seconds())
}

// AddFlashFee accumulates a collected flash-loan fee.
func (m *MarketMetrics) AddFlashFee(fee float64) {
	if m == nil || fee <= 0 {
		return
	}
	m.flashFees.Add(fee)
}
