package metrics

import (
	"mercator-hq/rulesengine/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// AuditMetrics tracks the audit trail.
//
// Metrics:
//   - rulesengine_audit_writes_total{status}: writes by "success", "error" or "dropped"
//   - rulesengine_audit_prune_runs_total{status}
//   - rulesengine_audit_pruned_records_total
type AuditMetrics struct {
	writesTotal    *prometheus.CounterVec
	pruneRunsTotal *prometheus.CounterVec
	prunedTotal    prometheus.Counter
}

// NewAuditMetrics creates and registers audit metrics.
func NewAuditMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *AuditMetrics {
	am := &AuditMetrics{
		writesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "audit_writes_total",
				Help:      "Total number of audit record writes",
			},
			[]string{"status"},
		),

		pruneRunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "audit_prune_runs_total",
				Help:      "Total number of audit retention runs",
			},
			[]string{"status"},
		),

		prunedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "audit_pruned_records_total",
				Help:      "Total number of audit records deleted by retention",
			},
		),
	}

	registry.MustRegister(am.writesTotal, am.pruneRunsTotal, am.prunedTotal)
	return am
}

// RecordWrite counts an audit write.
func (am *AuditMetrics) RecordWrite(status string) {
	am.writesTotal.WithLabelValues(status).Inc()
}

// RecordPrune records a retention run.
func (am *AuditMetrics) RecordPrune(n int64, err error) {
	am.pruneRunsTotal.WithLabelValues(statusOf(err)).Inc()
	if n > 0 {
		am.prunedTotal.Add(float64(n))
	}
}

func statusOf(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
