package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"mercator-hq/rulesengine/pkg/rules"
)

// MemoryRepository keeps rules, versions and groups in maps guarded by a
// single RWMutex. Values are copied on the way in and on the way out.
type MemoryRepository struct {
	mu       sync.RWMutex
	rules    map[string]*rules.BusinessRule
	versions map[string][]*rules.RuleVersion
	groups   map[string]*rules.RuleGroup
	closed   bool
}

// NewMemoryRepository creates an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		rules:    make(map[string]*rules.BusinessRule),
		versions: make(map[string][]*rules.RuleVersion),
		groups:   make(map[string]*rules.RuleGroup),
	}
}

// PutRule inserts or replaces a rule.
func (m *MemoryRepository) PutRule(ctx context.Context, rule *rules.BusinessRule) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.check("put_rule"); err != nil {
		return err
	}
	m.rules[rule.ID] = rule.Clone()
	return nil
}

// GetRule returns a copy of a rule.
func (m *MemoryRepository) GetRule(ctx context.Context, id string) (*rules.BusinessRule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if err := m.check("get_rule"); err != nil {
		return nil, err
	}
	rule, ok := m.rules[id]
	if !ok {
		return nil, rules.NewRuleNotFound(id)
	}
	return rule.Clone(), nil
}

// DeleteRule removes a rule and its history.
func (m *MemoryRepository) DeleteRule(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.check("delete_rule"); err != nil {
		return err
	}
	if _, ok := m.rules[id]; !ok {
		return rules.NewRuleNotFound(id)
	}
	delete(m.rules, id)
	delete(m.versions, id)
	return nil
}

// AppendVersion appends a snapshot to a rule's history. Version numbers
// must be unique per rule.
func (m *MemoryRepository) AppendVersion(ctx context.Context, version *rules.RuleVersion) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.check("append_version"); err != nil {
		return err
	}
	if err := m.checkVersion("append_version", version); err != nil {
		return err
	}
	m.versions[version.RuleID] = append(m.versions[version.RuleID], version.Clone())
	return nil
}

// CommitVersion appends version and replaces the current rule under one
// lock, so neither write is visible without the other.
func (m *MemoryRepository) CommitVersion(ctx context.Context, rule *rules.BusinessRule, version *rules.RuleVersion) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.check("commit_version"); err != nil {
		return err
	}
	if err := m.checkVersion("commit_version", version); err != nil {
		return err
	}
	m.versions[version.RuleID] = append(m.versions[version.RuleID], version.Clone())
	m.rules[rule.ID] = rule.Clone()
	return nil
}

func (m *MemoryRepository) checkVersion(op string, version *rules.RuleVersion) error {
	for _, v := range m.versions[version.RuleID] {
		if v.Version == version.Version {
			return newStorageError("memory", op,
				fmt.Errorf("version %d of rule %s already exists", version.Version, version.RuleID))
		}
	}
	return nil
}

// ListVersions returns copies of a rule's versions in ascending order.
// A rule without history yields an empty slice.
func (m *MemoryRepository) ListVersions(ctx context.Context, ruleID string) ([]*rules.RuleVersion, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if err := m.check("list_versions"); err != nil {
		return nil, err
	}
	history := m.versions[ruleID]
	result := make([]*rules.RuleVersion, 0, len(history))
	for _, v := range history {
		result = append(result, v.Clone())
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Version < result[j].Version
	})
	return result, nil
}

// ListRules returns copies of the rules passing filter, ordered by id.
func (m *MemoryRepository) ListRules(ctx context.Context, filter rules.RuleFilter) ([]*rules.BusinessRule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if err := m.check("list_rules"); err != nil {
		return nil, err
	}
	result := make([]*rules.BusinessRule, 0, len(m.rules))
	for _, rule := range m.rules {
		if filter.Matches(rule) {
			result = append(result, rule.Clone())
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].ID < result[j].ID
	})
	return result, nil
}

// PutGroup inserts or replaces a group.
func (m *MemoryRepository) PutGroup(ctx context.Context, group *rules.RuleGroup) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.check("put_group"); err != nil {
		return err
	}
	m.groups[group.ID] = group.Clone()
	return nil
}

// GetGroup returns a copy of a group.
func (m *MemoryRepository) GetGroup(ctx context.Context, id string) (*rules.RuleGroup, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if err := m.check("get_group"); err != nil {
		return nil, err
	}
	group, ok := m.groups[id]
	if !ok {
		return nil, rules.NewGroupNotFound(id)
	}
	return group.Clone(), nil
}

// Ping reports an error once the repository is closed.
func (m *MemoryRepository) Ping(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.check("ping")
}

// Close marks the repository closed. Later calls fail.
func (m *MemoryRepository) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *MemoryRepository) check(operation string) error {
	if m.closed {
		return newStorageError("memory", operation, fmt.Errorf("repository closed"))
	}
	return nil
}
