package engine

import (
	"log/slog"

	"mercator-hq/rulesengine/pkg/rules"
)

// ConditionEvaluator evaluates single conditions against a context.
// It is stateless apart from its logger and safe for concurrent use.
type ConditionEvaluator struct {
	logger *slog.Logger
}

// NewConditionEvaluator creates a new condition evaluator.
func NewConditionEvaluator(logger *slog.Logger) *ConditionEvaluator {
	if logger == nil {
		logger = slog.Default()
	}
	return &ConditionEvaluator{logger: logger}
}

// Evaluate reports whether the condition matches the context.
// Missing fields and type mismatches do not match; they are never errors.
func (e *ConditionEvaluator) Evaluate(cond rules.Condition, input rules.Context) bool {
	actual, found := resolveField(cond.Field, input)
	matched := evaluateOperator(cond.Operator, actual, found, cond.Value)

	e.logger.Debug("condition evaluated",
		"field", cond.Field,
		"operator", cond.Operator,
		"found", found,
		"matched", matched,
	)

	return matched
}

// GroupEvaluator evaluates condition groups recursively.
type GroupEvaluator struct {
	conditions *ConditionEvaluator
}

// NewGroupEvaluator creates a group evaluator backed by a condition evaluator.
func NewGroupEvaluator(conditions *ConditionEvaluator) *GroupEvaluator {
	if conditions == nil {
		conditions = NewConditionEvaluator(nil)
	}
	return &GroupEvaluator{conditions: conditions}
}

// Evaluate reports whether the group matches the context.
//
// Direct conditions and nested groups form one list of members combined by
// the group's logical operator. An empty group matches. An unknown logical
// operator never matches.
func (g *GroupEvaluator) Evaluate(group rules.ConditionGroup, input rules.Context) bool {
	if group.IsEmpty() {
		return true
	}

	switch group.LogicalOperator {
	case rules.LogicalAnd, "":
		return g.matchAll(group, input)
	case rules.LogicalOr:
		return g.matchAny(group, input)
	default:
		return false
	}
}

// matchAll short-circuits on the first member that does not match.
func (g *GroupEvaluator) matchAll(group rules.ConditionGroup, input rules.Context) bool {
	for _, cond := range group.Conditions {
		if !g.conditions.Evaluate(cond, input) {
			return false
		}
	}
	for _, nested := range group.NestedGroups {
		if !g.Evaluate(nested, input) {
			return false
		}
	}
	return true
}

// matchAny short-circuits on the first member that matches.
func (g *GroupEvaluator) matchAny(group rules.ConditionGroup, input rules.Context) bool {
	for _, cond := range group.Conditions {
		if g.conditions.Evaluate(cond, input) {
			return true
		}
	}
	for _, nested := range group.NestedGroups {
		if g.Evaluate(nested, input) {
			return true
		}
	}
	return false
}
