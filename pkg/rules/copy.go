package rules

import "time"

// Clone returns a deep copy of the rule.
func (r *BusinessRule) Clone() *BusinessRule {
	if r == nil {
		return nil
	}
	c := *r
	c.ConditionGroup = r.ConditionGroup.Clone()
	if r.Actions != nil {
		c.Actions = make([]Action, len(r.Actions))
		for i, a := range r.Actions {
			c.Actions[i] = a.Clone()
		}
	}
	c.EffectiveFrom = cloneTime(r.EffectiveFrom)
	c.EffectiveUntil = cloneTime(r.EffectiveUntil)
	return &c
}

// Clone returns a deep copy of the group tree.
func (g ConditionGroup) Clone() ConditionGroup {
	c := ConditionGroup{LogicalOperator: g.LogicalOperator}
	if g.Conditions != nil {
		c.Conditions = make([]Condition, len(g.Conditions))
		for i, cond := range g.Conditions {
			c.Conditions[i] = Condition{
				Field:    cond.Field,
				Operator: cond.Operator,
				Value:    CopyValue(cond.Value),
			}
		}
	}
	if g.NestedGroups != nil {
		c.NestedGroups = make([]ConditionGroup, len(g.NestedGroups))
		for i, nested := range g.NestedGroups {
			c.NestedGroups[i] = nested.Clone()
		}
	}
	return c
}

// Clone returns a deep copy of the action.
func (a Action) Clone() Action {
	c := a
	c.Value = CopyValue(a.Value)
	c.Parameters = CopyMap(a.Parameters)
	return c
}

// Clone returns a deep copy of the version.
func (v *RuleVersion) Clone() *RuleVersion {
	if v == nil {
		return nil
	}
	c := *v
	c.Content = *v.Content.Clone()
	return &c
}

// Clone returns a copy of the group.
func (g *RuleGroup) Clone() *RuleGroup {
	if g == nil {
		return nil
	}
	c := *g
	if g.RuleIDs != nil {
		c.RuleIDs = append([]string(nil), g.RuleIDs...)
	}
	return &c
}

// CopyMap deep copies a map of generic values. A nil map stays nil.
func CopyMap(m map[string]interface{}) map[string]interface{} {
	if m == nil {
		return nil
	}
	c := make(map[string]interface{}, len(m))
	for k, v := range m {
		c[k] = CopyValue(v)
	}
	return c
}

// CopyValue deep copies maps and slices produced by JSON or YAML decoding.
// Other values are returned as is.
func CopyValue(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		return CopyMap(val)
	case Context:
		return Context(CopyMap(val))
	case []interface{}:
		c := make([]interface{}, len(val))
		for i, elem := range val {
			c[i] = CopyValue(elem)
		}
		return c
	case []string:
		return append([]string(nil), val...)
	default:
		return v
	}
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
