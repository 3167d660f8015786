package store

import (
	"context"

	"mercator-hq/rulesengine/pkg/rules"
)

// Repository persists rules, rule versions and groups.
//
// Implementations must be safe for concurrent use and must never hand out
// references to their internal state: rules passed in are copied before
// they are kept, rules returned are copies. Lookups of unknown ids return
// an error matching rules.ErrNotFound.
type Repository interface {
	// PutRule inserts or replaces the current state of a rule.
	PutRule(ctx context.Context, rule *rules.BusinessRule) error

	// GetRule returns the current state of a rule.
	GetRule(ctx context.Context, id string) (*rules.BusinessRule, error)

	// DeleteRule physically removes a rule. The store archives instead of
	// deleting; this exists for repository maintenance.
	DeleteRule(ctx context.Context, id string) error

	// AppendVersion appends an immutable snapshot to a rule's history.
	AppendVersion(ctx context.Context, version *rules.RuleVersion) error

	// CommitVersion appends version and stores rule as the current state
	// atomically: either both writes take effect or neither does.
	CommitVersion(ctx context.Context, rule *rules.BusinessRule, version *rules.RuleVersion) error

	// ListVersions returns a rule's history ordered by ascending version.
	ListVersions(ctx context.Context, ruleID string) ([]*rules.RuleVersion, error)

	// ListRules returns the rules passing the filter.
	ListRules(ctx context.Context, filter rules.RuleFilter) ([]*rules.BusinessRule, error)

	// PutGroup inserts or replaces a group.
	PutGroup(ctx context.Context, group *rules.RuleGroup) error

	// GetGroup returns a group.
	GetGroup(ctx context.Context, id string) (*rules.RuleGroup, error)

	// Ping checks that the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases resources held by the repository.
	Close() error
}
