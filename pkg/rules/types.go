package rules

import (
	"encoding/json"
	"time"
)

// Context is the event or record a rule is evaluated against.
// Nested objects are represented as map[string]interface{} values and are
// addressed with dot-separated field paths.
type Context map[string]interface{}

// Operator is a condition comparison operator.
type Operator string

const (
	// OperatorEquals matches when the field value equals the condition value.
	OperatorEquals Operator = "equals"

	// OperatorNotEquals matches when the field value differs from the condition value.
	OperatorNotEquals Operator = "not_equals"

	// OperatorGreaterThan matches when the numeric field value is greater than the condition value.
	OperatorGreaterThan Operator = "greater_than"

	// OperatorLessThan matches when the numeric field value is less than the condition value.
	OperatorLessThan Operator = "less_than"

	// OperatorContains matches when the field value is a collection containing the condition value.
	OperatorContains Operator = "contains"

	// OperatorIn matches when the condition value is a collection containing the field value.
	OperatorIn Operator = "in"

	// OperatorIsNull matches when the field is absent or explicitly null.
	OperatorIsNull Operator = "is_null"

	// OperatorBetween matches when low <= field value <= high for a [low, high] condition value.
	OperatorBetween Operator = "between"
)

// Operators returns every supported operator.
func Operators() []Operator {
	return []Operator{
		OperatorEquals,
		OperatorNotEquals,
		OperatorGreaterThan,
		OperatorLessThan,
		OperatorContains,
		OperatorIn,
		OperatorIsNull,
		OperatorBetween,
	}
}

// IsValid reports whether the operator is one of the supported operators.
func (o Operator) IsValid() bool {
	switch o {
	case OperatorEquals, OperatorNotEquals, OperatorGreaterThan, OperatorLessThan,
		OperatorContains, OperatorIn, OperatorIsNull, OperatorBetween:
		return true
	default:
		return false
	}
}

// LogicalOperator combines the members of a condition group.
type LogicalOperator string

const (
	// LogicalAnd requires every member of the group to match.
	LogicalAnd LogicalOperator = "AND"

	// LogicalOr requires at least one member of the group to match.
	LogicalOr LogicalOperator = "OR"
)

// IsValid reports whether the logical operator is supported.
// The empty value is accepted and treated as AND.
func (l LogicalOperator) IsValid() bool {
	switch l {
	case "", LogicalAnd, LogicalOr:
		return true
	default:
		return false
	}
}

// Condition is a single field comparison.
type Condition struct {
	// Field is a dot-separated path into the context (e.g. "issue.severity").
	Field string `json:"field" yaml:"field"`

	// Operator is the comparison operator.
	Operator Operator `json:"operator" yaml:"operator"`

	// Value is the expected value. Ignored by is_null.
	Value interface{} `json:"value,omitempty" yaml:"value,omitempty"`
}

// ConditionGroup is a tree of conditions. Direct conditions and nested
// groups are combined together under the group's logical operator, each
// nested group contributing a single boolean.
type ConditionGroup struct {
	// Conditions are the leaf comparisons of this group.
	Conditions []Condition `json:"conditions,omitempty" yaml:"conditions,omitempty"`

	// NestedGroups are evaluated recursively.
	NestedGroups []ConditionGroup `json:"nested_groups,omitempty" yaml:"nested_groups,omitempty"`

	// LogicalOperator is AND or OR. Empty means AND.
	LogicalOperator LogicalOperator `json:"logical_operator,omitempty" yaml:"logical_operator,omitempty"`
}

// IsEmpty reports whether the group has neither conditions nor nested groups.
func (g ConditionGroup) IsEmpty() bool {
	return len(g.Conditions) == 0 && len(g.NestedGroups) == 0
}

// ActionType identifies the kind of action a rule performs on match.
type ActionType string

const (
	// ActionSetValue proposes a new value for a target field.
	ActionSetValue ActionType = "set_value"

	// ActionEscalate raises an escalation.
	ActionEscalate ActionType = "escalate"

	// ActionNotify requests a notification.
	ActionNotify ActionType = "notify"

	// ActionBlock blocks the operation described by the context.
	ActionBlock ActionType = "block_action"

	// ActionLogEvent records a log entry.
	ActionLogEvent ActionType = "log_event"
)

// ActionTypes returns every supported action type.
func ActionTypes() []ActionType {
	return []ActionType{ActionSetValue, ActionEscalate, ActionNotify, ActionBlock, ActionLogEvent}
}

// IsValid reports whether the action type is supported.
func (a ActionType) IsValid() bool {
	switch a {
	case ActionSetValue, ActionEscalate, ActionNotify, ActionBlock, ActionLogEvent:
		return true
	default:
		return false
	}
}

// Action is a stateless action descriptor attached to a rule.
type Action struct {
	// ActionType selects the effect produced on match.
	ActionType ActionType `json:"action_type" yaml:"action_type"`

	// TargetField is the field changed by set_value.
	TargetField string `json:"target_field,omitempty" yaml:"target_field,omitempty"`

	// Value is the value proposed by set_value.
	Value interface{} `json:"value,omitempty" yaml:"value,omitempty"`

	// Parameters carries action specific settings (level, reason, recipients, ...).
	Parameters map[string]interface{} `json:"parameters,omitempty" yaml:"parameters,omitempty"`
}

// GetStringParameter returns a string parameter or the default value.
func (a Action) GetStringParameter(name, defaultValue string) string {
	if v, ok := a.Parameters[name].(string); ok {
		return v
	}
	return defaultValue
}

// Effect is the side-effect free result of executing one action.
// Only the fields relevant to ActionType are populated.
type Effect struct {
	// ActionType is the type of the action that produced this effect.
	ActionType ActionType `json:"action_type"`

	// Changes maps target fields to proposed values (set_value).
	Changes map[string]interface{} `json:"changes,omitempty"`

	// Escalation holds level, reason and passthrough parameters (escalate).
	Escalation map[string]interface{} `json:"escalation,omitempty"`

	// Notification holds recipients, message, channel and passthrough parameters (notify).
	Notification map[string]interface{} `json:"notification,omitempty"`

	// Blocked is true for block_action effects.
	Blocked bool `json:"blocked,omitempty"`

	// BlockReason explains a block (block_action).
	BlockReason string `json:"block_reason,omitempty"`

	// Logged holds the parameters of a log_event action.
	Logged map[string]interface{} `json:"logged,omitempty"`
}

// RuleStatus is the lifecycle status of a rule.
type RuleStatus string

const (
	// StatusDraft rules are being authored and never match.
	StatusDraft RuleStatus = "draft"

	// StatusActive rules match within their effective window.
	StatusActive RuleStatus = "active"

	// StatusInactive rules are disabled.
	StatusInactive RuleStatus = "inactive"

	// StatusArchived rules are deleted. Archiving is reversible by an update.
	StatusArchived RuleStatus = "archived"
)

// IsValid reports whether the status is known.
func (s RuleStatus) IsValid() bool {
	switch s {
	case StatusDraft, StatusActive, StatusInactive, StatusArchived:
		return true
	default:
		return false
	}
}

// BusinessRule is a versioned rule owned by a RuleStore.
// Callers always receive copies; mutating a returned rule has no effect on
// the stored rule.
type BusinessRule struct {
	// ID identifies the rule. It never changes.
	ID string `json:"id" yaml:"id"`

	// Name is the human readable rule name.
	Name string `json:"name" yaml:"name"`

	// Description documents the rule.
	Description string `json:"description,omitempty" yaml:"description,omitempty"`

	// Category groups rules for filtered evaluation.
	Category string `json:"category,omitempty" yaml:"category,omitempty"`

	// Priority orders evaluation. Lower numbers are evaluated first.
	Priority int `json:"priority" yaml:"priority"`

	// Status is the lifecycle status.
	Status RuleStatus `json:"status" yaml:"status"`

	// ConditionGroup is the condition tree. An empty group always matches.
	ConditionGroup ConditionGroup `json:"condition_group" yaml:"condition_group"`

	// Actions run in declaration order when the rule matches.
	Actions []Action `json:"actions,omitempty" yaml:"actions,omitempty"`

	// EffectiveFrom is the inclusive start of the activity window.
	EffectiveFrom *time.Time `json:"effective_from,omitempty" yaml:"effective_from,omitempty"`

	// EffectiveUntil is the inclusive end of the activity window.
	EffectiveUntil *time.Time `json:"effective_until,omitempty" yaml:"effective_until,omitempty"`

	// StopProcessing halts evaluation of lower priority rules when this rule matches.
	StopProcessing bool `json:"stop_processing" yaml:"stop_processing"`

	// TenantID is assigned by the store.
	TenantID string `json:"tenant_id" yaml:"-"`

	// Version starts at 1 and increases by one on every change.
	Version int `json:"version" yaml:"-"`

	// CreatedAt is when version 1 was stored.
	CreatedAt time.Time `json:"created_at" yaml:"-"`

	// UpdatedAt is when the current version was stored.
	UpdatedAt time.Time `json:"updated_at" yaml:"-"`

	// CreatedBy is the actor that added the rule.
	CreatedBy string `json:"created_by,omitempty" yaml:"-"`

	// UpdatedBy is the actor that stored the current version.
	UpdatedBy string `json:"updated_by,omitempty" yaml:"-"`
}

// RuleVersion is an immutable snapshot of a rule at one version.
type RuleVersion struct {
	// RuleID is the rule the snapshot belongs to.
	RuleID string `json:"rule_id"`

	// Version is the snapshot version number.
	Version int `json:"version"`

	// Content is the full rule at this version.
	Content BusinessRule `json:"content"`

	// CreatedAt is when the snapshot was taken.
	CreatedAt time.Time `json:"created_at"`

	// CreatedBy is the actor responsible for the change.
	CreatedBy string `json:"created_by,omitempty"`

	// ChangeReason describes the change.
	ChangeReason string `json:"change_reason,omitempty"`
}

// RuleGroup is a named, ordered set of rule ids.
type RuleGroup struct {
	// ID identifies the group.
	ID string `json:"id" yaml:"id"`

	// Name is the human readable group name.
	Name string `json:"name" yaml:"name"`

	// Category is informational.
	Category string `json:"category,omitempty" yaml:"category,omitempty"`

	// TenantID is assigned by the store.
	TenantID string `json:"tenant_id" yaml:"-"`

	// RuleIDs lists member rules in insertion order without duplicates.
	RuleIDs []string `json:"rules" yaml:"rules"`
}

// HasRule reports whether the group contains the rule id.
func (g *RuleGroup) HasRule(ruleID string) bool {
	for _, id := range g.RuleIDs {
		if id == ruleID {
			return true
		}
	}
	return false
}

// AddRule appends a rule id unless it is already a member.
// It reports whether the group changed.
func (g *RuleGroup) AddRule(ruleID string) bool {
	if g.HasRule(ruleID) {
		return false
	}
	g.RuleIDs = append(g.RuleIDs, ruleID)
	return true
}

// RemoveRule removes a rule id. It reports whether the group changed.
func (g *RuleGroup) RemoveRule(ruleID string) bool {
	for i, id := range g.RuleIDs {
		if id == ruleID {
			g.RuleIDs = append(g.RuleIDs[:i:i], g.RuleIDs[i+1:]...)
			return true
		}
	}
	return false
}

// RuleFilter selects rules from a repository.
// Empty fields do not filter.
type RuleFilter struct {
	TenantID string
	Category string
	Status   RuleStatus
}

// Matches reports whether the rule passes the filter.
func (f RuleFilter) Matches(rule *BusinessRule) bool {
	if f.TenantID != "" && rule.TenantID != f.TenantID {
		return false
	}
	if f.Category != "" && rule.Category != f.Category {
		return false
	}
	if f.Status != "" && rule.Status != f.Status {
		return false
	}
	return true
}

// ChangeMeta describes who made a change and why.
type ChangeMeta struct {
	// Actor is recorded as created_by / updated_by and as the audit actor.
	Actor string

	// Reason is stored as the version change reason.
	Reason string

	// Action overrides the audit action name (defaults to the store operation).
	Action string
}

// RuleEffect is an effect attributed to the rule that produced it.
type RuleEffect struct {
	RuleID string `json:"rule_id"`
	Effect Effect `json:"effect"`
}

// EvaluationResult summarises one evaluation of a rule set.
type EvaluationResult struct {
	// RulesEvaluated counts rules actually tested.
	RulesEvaluated int `json:"rules_evaluated"`

	// RulesMatched counts matching rules.
	RulesMatched int `json:"rules_matched"`

	// MatchedRuleIDs lists matching rules in evaluation order.
	MatchedRuleIDs []string `json:"matched_rule_ids"`

	// ProcessingStopped is true when a stop_processing rule matched.
	ProcessingStopped bool `json:"processing_stopped"`

	// StoppedByRule is the id of the rule that stopped processing.
	StoppedByRule string `json:"stopped_by_rule,omitempty"`

	// Effects lists action effects in execution order.
	Effects []RuleEffect `json:"effects,omitempty"`

	// EvaluatedAt is when evaluation started.
	EvaluatedAt time.Time `json:"evaluated_at"`

	// Duration is the wall time spent evaluating.
	Duration time.Duration `json:"duration"`
}

// FieldChange is one difference between two rule versions.
type FieldChange struct {
	// Field is the top level rule field name (json name).
	Field string `json:"field"`

	// Type is added, removed or modified.
	Type string `json:"type"`

	// OldValue is the JSON encoding of the old value.
	OldValue json.RawMessage `json:"old_value,omitempty"`

	// NewValue is the JSON encoding of the new value.
	NewValue json.RawMessage `json:"new_value,omitempty"`
}
