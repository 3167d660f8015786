package metrics

import (
	"mercator-hq/rulesengine/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// SyncMetrics tracks rule definition syncs from files and git.
type SyncMetrics struct {
	syncsTotal   *prometheus.CounterVec
	rulesChanged *prometheus.CounterVec
}

// NewSyncMetrics creates and registers sync metrics.
func NewSyncMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *SyncMetrics {
	sm := &SyncMetrics{
		syncsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "rule_syncs_total",
				Help:      "Total number of rule definition syncs",
			},
			[]string{"source", "status"},
		),

		rulesChanged: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "rule_sync_rules_total",
				Help:      "Rules seen by syncs, by outcome",
			},
			[]string{"source", "outcome"},
		),
	}

	registry.MustRegister(sm.syncsTotal, sm.rulesChanged)
	return sm
}

// RecordSync records one sync and its per-rule outcomes.
func (sm *SyncMetrics) RecordSync(source string, added, updated, unchanged int, err error) {
	sm.syncsTotal.WithLabelValues(source, statusOf(err)).Inc()
	if err != nil {
		return
	}
	sm.rulesChanged.WithLabelValues(source, "added").Add(float64(added))
	sm.rulesChanged.WithLabelValues(source, "updated").Add(float64(updated))
	sm.rulesChanged.WithLabelValues(source, "unchanged").Add(float64(unchanged))
}
