package metrics

import (
	"strconv"
	"time"

	"mercator-hq/rulesengine/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// EvaluationMetrics tracks engine evaluations.
//
// Metrics:
//   - rulesengine_evaluations_total{category,stopped}
//   - rulesengine_evaluation_duration_seconds{category}
//   - rulesengine_evaluation_rules_evaluated{category}
//   - rulesengine_evaluation_rules_matched{category}
//   - rulesengine_rule_matches_total{rule_id}
type EvaluationMetrics struct {
	evaluationsTotal   *prometheus.CounterVec
	evaluationDuration *prometheus.HistogramVec
	rulesEvaluated     *prometheus.HistogramVec
	rulesMatched       *prometheus.HistogramVec
	ruleMatchesTotal   *prometheus.CounterVec
}

// NewEvaluationMetrics creates and registers evaluation metrics.
func NewEvaluationMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *EvaluationMetrics {
	ruleCounts := []float64{0, 1, 5, 10, 25, 50, 100, 250, 1000}

	em := &EvaluationMetrics{
		evaluationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "evaluations_total",
				Help:      "Total number of rule evaluations",
			},
			[]string{"category", "stopped"},
		),

		evaluationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "evaluation_duration_seconds",
				Help:      "Duration of rule evaluation in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 10), // 10µs to ~2.6s
			},
			[]string{"category"},
		),

		rulesEvaluated: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "evaluation_rules_evaluated",
				Help:      "Number of rules evaluated per call",
				Buckets:   ruleCounts,
			},
			[]string{"category"},
		),

		rulesMatched: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "evaluation_rules_matched",
				Help:      "Number of rules matched per call",
				Buckets:   ruleCounts,
			},
			[]string{"category"},
		),

		ruleMatchesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "rule_matches_total",
				Help:      "Total number of times a rule matched",
			},
			[]string{"rule_id"},
		),
	}

	registry.MustRegister(
		em.evaluationsTotal,
		em.evaluationDuration,
		em.rulesEvaluated,
		em.rulesMatched,
		em.ruleMatchesTotal,
	)

	return em
}

// RecordEvaluation records one evaluation call.
func (em *EvaluationMetrics) RecordEvaluation(category string, duration time.Duration, evaluated, matched int, stopped bool) {
	em.evaluationsTotal.WithLabelValues(category, strconv.FormatBool(stopped)).Inc()
	em.evaluationDuration.WithLabelValues(category).Observe(duration.Seconds())
	em.rulesEvaluated.WithLabelValues(category).Observe(float64(evaluated))
	em.rulesMatched.WithLabelValues(category).Observe(float64(matched))
}

// RecordRuleMatch counts a match of ruleID.
func (em *EvaluationMetrics) RecordRuleMatch(ruleID string) {
	em.ruleMatchesTotal.WithLabelValues(ruleID).Inc()
}
