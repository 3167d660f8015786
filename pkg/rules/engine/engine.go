package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"mercator-hq/rulesengine/pkg/rules"
	"mercator-hq/rulesengine/pkg/telemetry/logging"
)

// RuleSource provides tenant-scoped rules to the engine.
// *store.RuleStore implements this interface.
type RuleSource interface {
	// TenantID returns the tenant the source is scoped to.
	TenantID() string

	// GetRules returns copies of the tenant's rules matching the filter.
	GetRules(ctx context.Context, filter rules.RuleFilter) ([]*rules.BusinessRule, error)

	// GetRule returns a copy of one rule or a NotFoundError.
	GetRule(ctx context.Context, id string) (*rules.BusinessRule, error)

	// GetGroup returns a copy of one group or a NotFoundError.
	GetGroup(ctx context.Context, id string) (*rules.RuleGroup, error)

	// UpdateRule applies a patch and stores a new version.
	UpdateRule(ctx context.Context, id string, patch rules.RulePatch, meta rules.ChangeMeta) (*rules.BusinessRule, error)
}

// MetricsRecorder receives evaluation measurements.
// *metrics.Collector implements this interface.
type MetricsRecorder interface {
	// RecordEvaluation records one evaluation call.
	RecordEvaluation(category string, duration time.Duration, evaluated, matched int, stopped bool)

	// RecordRuleMatch records a matching rule.
	RecordRuleMatch(ruleID string)
}

// RulesEngine evaluates a tenant's rules against contexts in priority order.
//
// The engine holds no rule state of its own: every call fetches copies of
// the current rules from its source and evaluates them without locks, so a
// concurrent update never changes the outcome of a call already in flight.
type RulesEngine struct {
	source  RuleSource
	matcher *RuleMatcher
	config  *Config
	metrics MetricsRecorder
	tracer  trace.Tracer
	logger  *slog.Logger
}

// New creates a rules engine for the source's tenant.
func New(source RuleSource, config *Config, logger *slog.Logger) (*RulesEngine, error) {
	if source == nil {
		return nil, fmt.Errorf("rule source cannot be nil")
	}

	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "rules_engine", "tenant_id", source.TenantID())

	conditions := NewConditionEvaluator(logger)
	matcher := NewRuleMatcher(NewGroupEvaluator(conditions), NewActionExecutor(logger), config.Clock)

	return &RulesEngine{
		source:  source,
		matcher: matcher,
		config:  config,
		tracer:  noop.NewTracerProvider().Tracer("rulesengine"),
		logger:  logger,
	}, nil
}

// SetMetrics attaches a metrics recorder. It must be called before the
// engine is shared between goroutines.
func (e *RulesEngine) SetMetrics(m MetricsRecorder) {
	e.metrics = m
}

// SetTracer attaches a tracer. It must be called before the engine is
// shared between goroutines.
func (e *RulesEngine) SetTracer(t trace.Tracer) {
	if t != nil {
		e.tracer = t
	}
}

// TenantID returns the tenant the engine evaluates rules for.
func (e *RulesEngine) TenantID() string {
	return e.source.TenantID()
}

// Source returns the rule source the engine reads from.
func (e *RulesEngine) Source() RuleSource {
	return e.source
}

// Matcher returns the rule matcher used by the engine.
func (e *RulesEngine) Matcher() *RuleMatcher {
	return e.matcher
}

// Evaluate evaluates the tenant's active rules against input.
// A non-empty category restricts evaluation to that category.
func (e *RulesEngine) Evaluate(ctx context.Context, input rules.Context, category string) (*rules.EvaluationResult, error) {
	ctx, span := e.tracer.Start(ctx, "rules.evaluate", trace.WithAttributes(
		attribute.String("rules.tenant_id", e.source.TenantID()),
		attribute.String("rules.category", category),
	))
	defer span.End()

	ruleset, err := e.source.GetRules(ctx, rules.RuleFilter{
		Category: category,
		Status:   rules.StatusActive,
	})
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to load rules: %w", err)
	}

	result, err := e.evaluate(ctx, ruleset, input, category)
	recordSpan(span, result, err)
	return result, err
}

// EvaluateGroup evaluates the active rules of a rule group against input.
// Members that are not active, or no longer exist, are skipped.
func (e *RulesEngine) EvaluateGroup(ctx context.Context, groupID string, input rules.Context) (*rules.EvaluationResult, error) {
	ctx, span := e.tracer.Start(ctx, "rules.evaluate_group", trace.WithAttributes(
		attribute.String("rules.tenant_id", e.source.TenantID()),
		attribute.String("rules.group_id", groupID),
	))
	defer span.End()

	group, err := e.source.GetGroup(ctx, groupID)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	ruleset := make([]*rules.BusinessRule, 0, len(group.RuleIDs))
	for _, id := range group.RuleIDs {
		rule, err := e.source.GetRule(ctx, id)
		if err != nil {
			if errors.Is(err, rules.ErrNotFound) {
				e.logger.Warn("group member not found, skipping",
					"group_id", groupID,
					"rule_id", id,
				)
				continue
			}
			span.SetStatus(codes.Error, err.Error())
			return nil, fmt.Errorf("failed to load group member %s: %w", id, err)
		}
		if rule.Status != rules.StatusActive {
			continue
		}
		ruleset = append(ruleset, rule)
	}

	result, err := e.evaluate(ctx, ruleset, input, group.Category)
	recordSpan(span, result, err)
	return result, err
}

// EvaluateRuleSet evaluates an explicit set of rules against input with the
// same ordering and short-circuit semantics as Evaluate. The caller's slice
// is not modified.
func (e *RulesEngine) EvaluateRuleSet(ctx context.Context, ruleset []*rules.BusinessRule, input rules.Context) (*rules.EvaluationResult, error) {
	return e.evaluate(ctx, ruleset, input, "")
}

// ActivateRule sets a rule's status to active.
func (e *RulesEngine) ActivateRule(ctx context.Context, id, actor string) (*rules.BusinessRule, error) {
	return e.setStatus(ctx, id, rules.StatusActive, actor, "activate")
}

// DeactivateRule sets a rule's status to inactive.
func (e *RulesEngine) DeactivateRule(ctx context.Context, id, actor string) (*rules.BusinessRule, error) {
	return e.setStatus(ctx, id, rules.StatusInactive, actor, "deactivate")
}

func (e *RulesEngine) setStatus(ctx context.Context, id string, status rules.RuleStatus, actor, action string) (*rules.BusinessRule, error) {
	rule, err := e.source.UpdateRule(ctx, id, rules.StatusPatch(status), rules.ChangeMeta{
		Actor:  actor,
		Reason: action,
		Action: action,
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("rule status changed",
		"rule_id", id,
		"status", status,
		"version", rule.Version,
	)
	return rule, nil
}

// evaluation accumulates the state of one evaluation call.
type evaluation struct {
	result  *rules.EvaluationResult
	stopped bool
}

// stop short-circuits the evaluation on behalf of a rule.
func (ev *evaluation) stop(ruleID string) {
	ev.stopped = true
	ev.result.ProcessingStopped = true
	ev.result.StoppedByRule = ruleID
}

// evaluate runs the priority ordered loop over ruleset.
func (e *RulesEngine) evaluate(ctx context.Context, ruleset []*rules.BusinessRule, input rules.Context, category string) (*rules.EvaluationResult, error) {
	if e.config.MaxRules > 0 && len(ruleset) > e.config.MaxRules {
		return nil, fmt.Errorf("rule set of %d rules exceeds the limit of %d", len(ruleset), e.config.MaxRules)
	}

	if e.config.EvaluationTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.config.EvaluationTimeout)
		defer cancel()
	}

	ctx = logging.WithEvaluationID(ctx, uuid.NewString())

	start := time.Now()
	ev := &evaluation{
		result: &rules.EvaluationResult{
			MatchedRuleIDs: []string{},
			EvaluatedAt:    start,
		},
	}

	ruleset = append([]*rules.BusinessRule(nil), ruleset...)
	SortRulesByPriority(ruleset)

	for _, rule := range ruleset {
		if err := ctx.Err(); err != nil {
			if errors.Is(err, context.DeadlineExceeded) && e.config.EvaluationTimeout > 0 {
				return nil, &TimeoutError{
					RulesEvaluated: ev.result.RulesEvaluated,
					Timeout:        e.config.EvaluationTimeout,
					Cause:          err,
				}
			}
			return nil, err
		}

		ev.result.RulesEvaluated++
		if !e.matcher.Evaluate(rule, input) {
			continue
		}

		ev.result.RulesMatched++
		ev.result.MatchedRuleIDs = append(ev.result.MatchedRuleIDs, rule.ID)
		if e.metrics != nil {
			e.metrics.RecordRuleMatch(rule.ID)
		}

		effects, err := e.matcher.ExecuteActions(rule, input)
		if err != nil {
			return nil, &EvaluationError{RuleID: rule.ID, Message: "action execution failed", Cause: err}
		}
		for _, effect := range effects {
			ev.result.Effects = append(ev.result.Effects, rules.RuleEffect{RuleID: rule.ID, Effect: effect})
		}

		e.logger.DebugContext(ctx, "rule matched",
			"rule_id", rule.ID,
			"priority", rule.Priority,
			"actions", len(effects),
			"stop_processing", rule.StopProcessing,
		)

		if rule.StopProcessing {
			ev.stop(rule.ID)
			break
		}
	}

	ev.result.Duration = time.Since(start)
	if e.metrics != nil {
		e.metrics.RecordEvaluation(category, ev.result.Duration, ev.result.RulesEvaluated, ev.result.RulesMatched, ev.stopped)
	}

	e.logger.DebugContext(ctx, "evaluation completed",
		"category", category,
		"rules_evaluated", ev.result.RulesEvaluated,
		"rules_matched", ev.result.RulesMatched,
		"processing_stopped", ev.result.ProcessingStopped,
		"duration_us", ev.result.Duration.Microseconds(),
	)

	return ev.result, nil
}

// recordSpan copies the outcome of an evaluation onto its span.
func recordSpan(span trace.Span, result *rules.EvaluationResult, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return
	}
	span.SetAttributes(
		attribute.Int("rules.evaluated", result.RulesEvaluated),
		attribute.Int("rules.matched", result.RulesMatched),
		attribute.Bool("rules.processing_stopped", result.ProcessingStopped),
	)
	if result.StoppedByRule != "" {
		span.SetAttributes(attribute.String("rules.stopped_by_rule", result.StoppedByRule))
	}
	span.SetStatus(codes.Ok, "")
}
