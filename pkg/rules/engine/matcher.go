package engine

import (
	"fmt"
	"time"

	"mercator-hq/rulesengine/pkg/rules"
)

// RuleMatcher decides whether a single rule applies to a context and runs
// its actions.
type RuleMatcher struct {
	groups   *GroupEvaluator
	executor *ActionExecutor
	now      func() time.Time
}

// NewRuleMatcher creates a rule matcher. A nil clock uses time.Now.
func NewRuleMatcher(groups *GroupEvaluator, executor *ActionExecutor, clock func() time.Time) *RuleMatcher {
	if groups == nil {
		groups = NewGroupEvaluator(nil)
	}
	if executor == nil {
		executor = NewActionExecutor(nil)
	}
	if clock == nil {
		clock = time.Now
	}
	return &RuleMatcher{
		groups:   groups,
		executor: executor,
		now:      clock,
	}
}

// IsActive reports whether the rule is active at now: its status is active
// and now falls inside the inclusive effective window.
func IsActive(rule *rules.BusinessRule, now time.Time) bool {
	if rule == nil || rule.Status != rules.StatusActive {
		return false
	}
	if rule.EffectiveFrom != nil && now.Before(*rule.EffectiveFrom) {
		return false
	}
	if rule.EffectiveUntil != nil && now.After(*rule.EffectiveUntil) {
		return false
	}
	return true
}

// IsActive reports whether the rule is active at the matcher's current time.
func (m *RuleMatcher) IsActive(rule *rules.BusinessRule) bool {
	return IsActive(rule, m.now())
}

// Evaluate reports whether the rule is active and its conditions match.
func (m *RuleMatcher) Evaluate(rule *rules.BusinessRule, input rules.Context) bool {
	if !m.IsActive(rule) {
		return false
	}
	return m.groups.Evaluate(rule.ConditionGroup, input)
}

// Matches evaluates the rule's conditions only, ignoring status and window.
func (m *RuleMatcher) Matches(rule *rules.BusinessRule, input rules.Context) bool {
	return m.groups.Evaluate(rule.ConditionGroup, input)
}

// ExecuteActions executes every action of the rule in declaration order.
func (m *RuleMatcher) ExecuteActions(rule *rules.BusinessRule, input rules.Context) ([]rules.Effect, error) {
	effects := make([]rules.Effect, 0, len(rule.Actions))
	for i, action := range rule.Actions {
		effect, err := m.executor.Execute(action, input)
		if err != nil {
			if cerr, ok := err.(*rules.ConfigurationError); ok {
				cerr.RuleID = rule.ID
				cerr.Field = fmt.Sprintf("actions[%d].%s", i, cerr.Field)
			}
			return nil, err
		}
		effects = append(effects, *effect)
	}
	return effects, nil
}

// Now returns the matcher's current time.
func (m *RuleMatcher) Now() time.Time {
	return m.now()
}
