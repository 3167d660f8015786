package store

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"mercator-hq/rulesengine/pkg/audit"
	"mercator-hq/rulesengine/pkg/rules"
)

// CreateGroup stores a new rule group. Every member must be an existing
// rule of the tenant; duplicate members are dropped.
func (s *RuleStore) CreateGroup(ctx context.Context, group *rules.RuleGroup, actor string) (result *rules.RuleGroup, err error) {
	defer s.observe("create_group", time.Now(), &err)

	if group == nil {
		return nil, &rules.ValidationError{Errors: []string{"group cannot be nil"}}
	}

	g := &rules.RuleGroup{
		ID:       group.ID,
		Name:     group.Name,
		Category: group.Category,
		TenantID: s.tenantID,
	}
	if g.ID == "" {
		g.ID = s.newID()
	}
	for _, id := range group.RuleIDs {
		g.AddRule(id)
	}

	if err := rules.ValidateGroup(g); err != nil {
		return nil, err
	}
	for _, id := range g.RuleIDs {
		if _, err := s.loadRule(ctx, id); err != nil {
			return nil, err
		}
	}

	unlock := s.locks.Lock(groupKey(g.ID))
	defer unlock()

	if _, err := s.repo.GetGroup(ctx, g.ID); err == nil {
		return nil, &rules.ValidationError{Errors: []string{fmt.Sprintf("group %s already exists", g.ID)}}
	} else if !errors.Is(err, rules.ErrNotFound) {
		return nil, fmt.Errorf("failed to check group %s: %w", g.ID, err)
	}

	if err := s.repo.PutGroup(ctx, g); err != nil {
		return nil, fmt.Errorf("failed to store group %s: %w", g.ID, err)
	}

	s.logger.Info("group created", "group_id", g.ID, "name", g.Name, "rules", len(g.RuleIDs))
	s.record(ctx, actor, audit.ActionGroupCreate, audit.EntityGroup, g.ID, nil, g, "")

	return g.Clone(), nil
}

// GetGroup returns a copy of a rule group.
func (s *RuleStore) GetGroup(ctx context.Context, id string) (*rules.RuleGroup, error) {
	return s.loadGroup(ctx, id)
}

// AddRuleToGroup appends ruleID to a group's members. Adding a rule that is
// already a member changes nothing and records nothing.
func (s *RuleStore) AddRuleToGroup(ctx context.Context, groupID, ruleID, actor string) (result *rules.RuleGroup, err error) {
	defer s.observe("add_rule_to_group", time.Now(), &err)

	if _, err := s.loadRule(ctx, ruleID); err != nil {
		return nil, err
	}
	return s.modifyGroup(ctx, groupID, actor, fmt.Sprintf("added rule %s", ruleID), func(g *rules.RuleGroup) bool {
		return g.AddRule(ruleID)
	})
}

// RemoveRuleFromGroup removes ruleID from a group's members.
func (s *RuleStore) RemoveRuleFromGroup(ctx context.Context, groupID, ruleID, actor string) (result *rules.RuleGroup, err error) {
	defer s.observe("remove_rule_from_group", time.Now(), &err)

	return s.modifyGroup(ctx, groupID, actor, fmt.Sprintf("removed rule %s", ruleID), func(g *rules.RuleGroup) bool {
		return g.RemoveRule(ruleID)
	})
}

// SetGroupRules replaces a group's members with ruleIDs, keeping their
// order and dropping duplicates. Every id must be an existing rule of the
// tenant. An identical member list changes nothing and records nothing.
func (s *RuleStore) SetGroupRules(ctx context.Context, groupID string, ruleIDs []string, actor string) (result *rules.RuleGroup, err error) {
	defer s.observe("set_group_rules", time.Now(), &err)

	members := &rules.RuleGroup{}
	for _, id := range ruleIDs {
		if members.AddRule(id) {
			if _, err := s.loadRule(ctx, id); err != nil {
				return nil, err
			}
		}
	}
	return s.modifyGroup(ctx, groupID, actor, "replaced members", func(g *rules.RuleGroup) bool {
		if slices.Equal(g.RuleIDs, members.RuleIDs) {
			return false
		}
		g.RuleIDs = members.RuleIDs
		return true
	})
}

func (s *RuleStore) modifyGroup(ctx context.Context, groupID, actor, reason string, mutate func(g *rules.RuleGroup) bool) (*rules.RuleGroup, error) {
	unlock := s.locks.Lock(groupKey(groupID))
	defer unlock()

	current, err := s.loadGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}

	next := current.Clone()
	if !mutate(next) {
		return next, nil
	}

	if err := s.repo.PutGroup(ctx, next); err != nil {
		return nil, fmt.Errorf("failed to store group %s: %w", groupID, err)
	}

	s.logger.Info("group modified", "group_id", groupID, "reason", reason)
	s.record(ctx, actor, audit.ActionGroupModify, audit.EntityGroup, groupID, current, next, reason)

	return next.Clone(), nil
}

func (s *RuleStore) loadGroup(ctx context.Context, id string) (*rules.RuleGroup, error) {
	group, err := s.repo.GetGroup(ctx, id)
	if err != nil {
		if errors.Is(err, rules.ErrNotFound) {
			return nil, rules.NewGroupNotFound(id)
		}
		return nil, fmt.Errorf("failed to load group %s: %w", id, err)
	}
	if group.TenantID != s.tenantID {
		return nil, rules.NewGroupNotFound(id)
	}
	return group, nil
}
