package rules

import (
	"fmt"
	"reflect"
	"strings"
)

// ValidateRule checks a rule before it is stored.
//
// Authoring errors (unknown operator, unknown action type, malformed between
// bound, missing set_value target) are returned as *ConfigurationError.
// Structural problems (missing name, unknown status or logical operator,
// inverted effective window) are collected into a *ValidationError.
func ValidateRule(rule *BusinessRule) error {
	if rule == nil {
		return &ValidationError{Errors: []string{"rule cannot be nil"}}
	}

	if err := validateGroupConfig(rule.ID, "condition_group", rule.ConditionGroup); err != nil {
		return err
	}

	for i, action := range rule.Actions {
		field := fmt.Sprintf("actions[%d]", i)
		if !action.ActionType.IsValid() {
			return &ConfigurationError{
				RuleID:  rule.ID,
				Field:   field + ".action_type",
				Message: fmt.Sprintf("unknown action type %q", action.ActionType),
			}
		}
		if action.ActionType == ActionSetValue && action.TargetField == "" {
			return &ConfigurationError{
				RuleID:  rule.ID,
				Field:   field + ".target_field",
				Message: "set_value requires a target field",
			}
		}
	}

	var problems []string
	if strings.TrimSpace(rule.Name) == "" {
		problems = append(problems, "name is required")
	}
	if !rule.Status.IsValid() {
		problems = append(problems, fmt.Sprintf("invalid status %q", rule.Status))
	}
	problems = append(problems, validateGroupStructure("condition_group", rule.ConditionGroup)...)
	if rule.EffectiveFrom != nil && rule.EffectiveUntil != nil && rule.EffectiveUntil.Before(*rule.EffectiveFrom) {
		problems = append(problems, "effective_until is before effective_from")
	}

	if len(problems) > 0 {
		return &ValidationError{RuleID: rule.ID, Errors: problems}
	}
	return nil
}

// ValidateGroup checks a rule group before it is stored.
func ValidateGroup(group *RuleGroup) error {
	if group == nil {
		return &ValidationError{Errors: []string{"group cannot be nil"}}
	}
	if strings.TrimSpace(group.Name) == "" {
		return &ValidationError{Errors: []string{fmt.Sprintf("group %s: name is required", group.ID)}}
	}
	return nil
}

// validateGroupConfig walks the condition tree looking for authoring errors.
func validateGroupConfig(ruleID, path string, group ConditionGroup) error {
	for i, cond := range group.Conditions {
		field := fmt.Sprintf("%s.conditions[%d]", path, i)
		if err := validateCondition(ruleID, field, cond); err != nil {
			return err
		}
	}
	for i, nested := range group.NestedGroups {
		if err := validateGroupConfig(ruleID, fmt.Sprintf("%s.nested_groups[%d]", path, i), nested); err != nil {
			return err
		}
	}
	return nil
}

// validateCondition checks operator and value shape of a single condition.
func validateCondition(ruleID, field string, cond Condition) error {
	if !cond.Operator.IsValid() {
		return &ConfigurationError{
			RuleID:  ruleID,
			Field:   field + ".operator",
			Message: fmt.Sprintf("unknown operator %q", cond.Operator),
		}
	}

	switch cond.Operator {
	case OperatorBetween:
		if !isCollection(cond.Value) || reflect.ValueOf(cond.Value).Len() != 2 {
			return &ConfigurationError{
				RuleID:  ruleID,
				Field:   field + ".value",
				Message: "between requires a two element [low, high] value",
			}
		}
	case OperatorIn:
		if !isCollection(cond.Value) && !isString(cond.Value) {
			return &ConfigurationError{
				RuleID:  ruleID,
				Field:   field + ".value",
				Message: "in requires a list value",
			}
		}
	}
	return nil
}

// validateGroupStructure reports field and logical operator problems.
func validateGroupStructure(path string, group ConditionGroup) []string {
	var problems []string
	if !group.LogicalOperator.IsValid() {
		problems = append(problems, fmt.Sprintf("%s: invalid logical operator %q", path, group.LogicalOperator))
	}
	for i, cond := range group.Conditions {
		if strings.TrimSpace(cond.Field) == "" {
			problems = append(problems, fmt.Sprintf("%s.conditions[%d]: field is required", path, i))
		}
	}
	for i, nested := range group.NestedGroups {
		problems = append(problems, validateGroupStructure(fmt.Sprintf("%s.nested_groups[%d]", path, i), nested)...)
	}
	return problems
}

func isCollection(v interface{}) bool {
	if v == nil {
		return false
	}
	kind := reflect.ValueOf(v).Kind()
	return kind == reflect.Slice || kind == reflect.Array
}

func isString(v interface{}) bool {
	_, ok := v.(string)
	return ok
}
