package rules

import "time"

// RulePatch is a partial update of a rule. Nil fields are left unchanged.
type RulePatch struct {
	Name           *string
	Description    *string
	Category       *string
	Priority       *int
	Status         *RuleStatus
	ConditionGroup *ConditionGroup
	StopProcessing *bool

	// Actions replaces the action list when non-nil. An empty, non-nil
	// slice removes every action.
	Actions []Action

	EffectiveFrom  *time.Time
	EffectiveUntil *time.Time

	// ClearEffectiveFrom and ClearEffectiveUntil remove the window bounds.
	ClearEffectiveFrom  bool
	ClearEffectiveUntil bool
}

// StatusPatch returns a patch that only changes the status.
func StatusPatch(status RuleStatus) RulePatch {
	return RulePatch{Status: &status}
}

// IsEmpty reports whether the patch changes nothing.
func (p RulePatch) IsEmpty() bool {
	return p.Name == nil && p.Description == nil && p.Category == nil &&
		p.Priority == nil && p.Status == nil && p.ConditionGroup == nil &&
		p.StopProcessing == nil && p.Actions == nil &&
		p.EffectiveFrom == nil && p.EffectiveUntil == nil &&
		!p.ClearEffectiveFrom && !p.ClearEffectiveUntil
}

// Apply writes the patch onto rule. Identity and bookkeeping fields
// (ID, TenantID, Version, timestamps) are never touched.
func (p RulePatch) Apply(rule *BusinessRule) {
	if p.Name != nil {
		rule.Name = *p.Name
	}
	if p.Description != nil {
		rule.Description = *p.Description
	}
	if p.Category != nil {
		rule.Category = *p.Category
	}
	if p.Priority != nil {
		rule.Priority = *p.Priority
	}
	if p.Status != nil {
		rule.Status = *p.Status
	}
	if p.ConditionGroup != nil {
		rule.ConditionGroup = p.ConditionGroup.Clone()
	}
	if p.StopProcessing != nil {
		rule.StopProcessing = *p.StopProcessing
	}
	if p.Actions != nil {
		rule.Actions = make([]Action, len(p.Actions))
		for i, a := range p.Actions {
			rule.Actions[i] = a.Clone()
		}
	}
	if p.ClearEffectiveFrom {
		rule.EffectiveFrom = nil
	} else if p.EffectiveFrom != nil {
		rule.EffectiveFrom = cloneTime(p.EffectiveFrom)
	}
	if p.ClearEffectiveUntil {
		rule.EffectiveUntil = nil
	} else if p.EffectiveUntil != nil {
		rule.EffectiveUntil = cloneTime(p.EffectiveUntil)
	}
}

// ContentPatch returns a patch that makes a rule's content equal to src.
// It is used to restore a historical snapshot.
func ContentPatch(src *BusinessRule) RulePatch {
	c := src.Clone()
	actions := c.Actions
	if actions == nil {
		actions = []Action{}
	}
	return RulePatch{
		Name:                &c.Name,
		Description:         &c.Description,
		Category:            &c.Category,
		Priority:            &c.Priority,
		Status:              &c.Status,
		ConditionGroup:      &c.ConditionGroup,
		StopProcessing:      &c.StopProcessing,
		Actions:             actions,
		EffectiveFrom:       c.EffectiveFrom,
		EffectiveUntil:      c.EffectiveUntil,
		ClearEffectiveFrom:  c.EffectiveFrom == nil,
		ClearEffectiveUntil: c.EffectiveUntil == nil,
	}
}
