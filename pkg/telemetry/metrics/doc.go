// Package metrics exposes Prometheus metrics for the rules engine.
//
// A Collector registers every metric in its own registry and implements the
// metrics hooks of the engine, the rule store and the audit recorder:
//
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
//	eng.SetMetrics(collector)
//	st.SetMetrics(collector)
//	rec.SetMetrics(collector)
//	router.Handle("/metrics", collector.Handler())
//
// # Metrics
//
//	rulesengine_evaluations_total{category,stopped}
//	rulesengine_evaluation_duration_seconds{category}
//	rulesengine_evaluation_rules_evaluated{category}
//	rulesengine_evaluation_rules_matched{category}
//	rulesengine_rule_matches_total{rule_id}
//	rulesengine_store_operations_total{operation,status}
//	rulesengine_store_operation_duration_seconds{operation}
//	rulesengine_active_rules{category}
//	rulesengine_audit_writes_total{status}
//	rulesengine_audit_prune_runs_total{status}
//	rulesengine_audit_pruned_records_total
//	rulesengine_rule_syncs_total{source,status}
//	rulesengine_rule_sync_rules_total{source,outcome}
//
// The rule_id label is capped at 10,000 distinct values; further rule ids
// are counted under "other".
//
// When MetricsConfig.Enabled is false every Record method is a no-op.
package metrics
