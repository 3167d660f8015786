package metrics

import (
	"time"

	"mercator-hq/rulesengine/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// StoreMetrics tracks rule store operations.
type StoreMetrics struct {
	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	activeRules       *prometheus.GaugeVec
}

// NewStoreMetrics creates and registers store metrics.
func NewStoreMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *StoreMetrics {
	sm := &StoreMetrics{
		operationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "store_operations_total",
				Help:      "Total number of rule store operations",
			},
			[]string{"operation", "status"},
		),

		operationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "store_operation_duration_seconds",
				Help:      "Duration of rule store operations in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8), // 100µs to ~1.6s
			},
			[]string{"operation"},
		),

		activeRules: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "active_rules",
				Help:      "Number of active rules by category",
			},
			[]string{"category"},
		),
	}

	registry.MustRegister(sm.operationsTotal, sm.operationDuration, sm.activeRules)
	return sm
}

// RecordOperation records one store operation.
func (sm *StoreMetrics) RecordOperation(operation, status string, duration time.Duration) {
	sm.operationsTotal.WithLabelValues(operation, status).Inc()
	sm.operationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// SetActiveRules replaces the active rule gauge. Categories missing from
// counts are reset.
func (sm *StoreMetrics) SetActiveRules(counts map[string]int) {
	sm.activeRules.Reset()
	for category, n := range counts {
		sm.activeRules.WithLabelValues(category).Set(float64(n))
	}
}
