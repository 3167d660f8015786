package metrics

import (
	"sync"
	"time"

	"mercator-hq/rulesengine/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// maxRuleLabels bounds the number of distinct rule_id label values.
const maxRuleLabels = 10000

// otherLabel replaces label values past the cardinality limit.
const otherLabel = "other"

// Collector owns every Prometheus metric of the rules engine. It implements
// the metrics hooks of the engine, the rule store and the audit recorder, so
// a single instance can be handed to each of them.
type Collector struct {
	config   *config.MetricsConfig
	registry *prometheus.Registry

	evaluation *EvaluationMetrics
	store      *StoreMetrics
	audit      *AuditMetrics
	sync       *SyncMetrics

	ruleLabels *CardinalityLimiter
}

// NewCollector creates a collector and registers its metrics with registry.
// A nil registry gets a fresh one, never the global default.
//
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
//	eng.SetMetrics(collector)
//	st.SetMetrics(collector)
func NewCollector(cfg *config.MetricsConfig, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	if cfg.Namespace == "" {
		cfg.Namespace = config.DefaultMetricsNamespace
	}

	return &Collector{
		config:     cfg,
		registry:   registry,
		evaluation: NewEvaluationMetrics(cfg, registry),
		store:      NewStoreMetrics(cfg, registry),
		audit:      NewAuditMetrics(cfg, registry),
		sync:       NewSyncMetrics(cfg, registry),
		ruleLabels: NewCardinalityLimiter(maxRuleLabels),
	}
}

// RecordEvaluation records one engine evaluation call.
func (c *Collector) RecordEvaluation(category string, duration time.Duration, evaluated, matched int, stopped bool) {
	if !c.config.Enabled {
		return
	}
	if category == "" {
		category = "all"
	}
	c.evaluation.RecordEvaluation(category, duration, evaluated, matched, stopped)
}

// RecordRuleMatch counts a matching rule. Rule ids past the cardinality
// limit are folded into "other".
func (c *Collector) RecordRuleMatch(ruleID string) {
	if !c.config.Enabled {
		return
	}
	if !c.ruleLabels.Allow(ruleID) {
		ruleID = otherLabel
	}
	c.evaluation.RecordRuleMatch(ruleID)
}

// RecordStoreOperation records one rule store operation.
func (c *Collector) RecordStoreOperation(operation, status string, duration time.Duration) {
	if !c.config.Enabled {
		return
	}
	c.store.RecordOperation(operation, status, duration)
}

// RecordAuditWrite counts an audit write by status.
func (c *Collector) RecordAuditWrite(status string) {
	if !c.config.Enabled {
		return
	}
	c.audit.RecordWrite(status)
}

// RecordAuditPrune records a retention run that deleted n records.
func (c *Collector) RecordAuditPrune(n int64, err error) {
	if !c.config.Enabled {
		return
	}
	c.audit.RecordPrune(n, err)
}

// RecordSync records a rules sync from source ("file" or "git").
func (c *Collector) RecordSync(source string, added, updated, unchanged int, err error) {
	if !c.config.Enabled {
		return
	}
	c.sync.RecordSync(source, added, updated, unchanged, err)
}

// SetActiveRules sets the number of active rules per category.
func (c *Collector) SetActiveRules(counts map[string]int) {
	if !c.config.Enabled {
		return
	}
	c.store.SetActiveRules(counts)
}

// Registry returns the registry the collector's metrics live in.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// CardinalityLimiter caps the number of unique values admitted for a label.
type CardinalityLimiter struct {
	maxCardinality int
	current        map[string]struct{}
	mu             sync.RWMutex
}

// NewCardinalityLimiter creates a limiter admitting at most maxCardinality values.
func NewCardinalityLimiter(maxCardinality int) *CardinalityLimiter {
	return &CardinalityLimiter{
		maxCardinality: maxCardinality,
		current:        make(map[string]struct{}),
	}
}

// Allow reports whether value is already admitted or can still be.
func (cl *CardinalityLimiter) Allow(value string) bool {
	cl.mu.RLock()
	if _, exists := cl.current[value]; exists {
		cl.mu.RUnlock()
		return true
	}
	cl.mu.RUnlock()

	cl.mu.Lock()
	defer cl.mu.Unlock()

	if _, exists := cl.current[value]; exists {
		return true
	}
	if len(cl.current) >= cl.maxCardinality {
		return false
	}
	cl.current[value] = struct{}{}
	return true
}

// Count returns the number of admitted values.
func (cl *CardinalityLimiter) Count() int {
	cl.mu.RLock()
	defer cl.mu.RUnlock()
	return len(cl.current)
}
