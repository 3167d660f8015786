package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"mercator-hq/rulesengine/pkg/audit"
	"mercator-hq/rulesengine/pkg/rules"
	"mercator-hq/rulesengine/pkg/telemetry/logging"
)

// MetricsRecorder receives store operation measurements.
// *metrics.Collector implements this interface.
type MetricsRecorder interface {
	// RecordStoreOperation records one store operation and its outcome
	// ("success", "not_found", "invalid", "error").
	RecordStoreOperation(operation, status string, duration time.Duration)
}

// RuleStore is the versioned, tenant-scoped store of business rules.
//
// Every change appends an immutable RuleVersion and replaces the current
// rule with the next version. Writes are serialized per rule id (and per
// group id); writes to different ids proceed in parallel. Reads return
// copies taken from the repository and never wait on writers for longer
// than the repository read itself.
type RuleStore struct {
	tenantID string
	repo     Repository
	audit    audit.Sink
	locks    *keyedMutex
	metrics  MetricsRecorder
	now      func() time.Time
	newID    func() string
	logger   *slog.Logger
}

// New creates a rule store for tenantID backed by repo.
// A nil sink discards audit entries.
func New(tenantID string, repo Repository, sink audit.Sink, logger *slog.Logger) *RuleStore {
	if sink == nil {
		sink = audit.NopSink{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RuleStore{
		tenantID: tenantID,
		repo:     repo,
		audit:    sink,
		locks:    newKeyedMutex(),
		now:      func() time.Time { return time.Now().UTC() },
		newID:    func() string { return uuid.New().String() },
		logger:   logger.With("component", "rule_store", "tenant_id", tenantID),
	}
}

// SetMetrics attaches a metrics recorder. It must be called before the
// store is shared between goroutines.
func (s *RuleStore) SetMetrics(m MetricsRecorder) {
	s.metrics = m
}

// SetClock replaces the clock used for timestamps. It must be called
// before the store is shared between goroutines.
func (s *RuleStore) SetClock(clock func() time.Time) {
	s.now = clock
}

// TenantID returns the tenant the store is scoped to.
func (s *RuleStore) TenantID() string {
	return s.tenantID
}

// Repository returns the underlying repository.
func (s *RuleStore) Repository() Repository {
	return s.repo
}

// AddRule stores a new rule at version 1 and returns a copy of it.
// An empty id is replaced by a generated UUID and an empty status by draft.
func (s *RuleStore) AddRule(ctx context.Context, rule *rules.BusinessRule, actor string) (result *rules.BusinessRule, err error) {
	defer s.observe("add_rule", time.Now(), &err)

	if rule == nil {
		return nil, &rules.ValidationError{Errors: []string{"rule cannot be nil"}}
	}
	return s.add(ctx, rule.Clone(), actor, audit.ActionCreate, "")
}

// add stores r, which the caller no longer references, as version 1.
func (s *RuleStore) add(ctx context.Context, r *rules.BusinessRule, actor, action, reason string) (*rules.BusinessRule, error) {
	if r.ID == "" {
		r.ID = s.newID()
	}
	if r.Status == "" {
		r.Status = rules.StatusDraft
	}
	now := s.now()
	r.TenantID = s.tenantID
	r.Version = 1
	r.CreatedAt = now
	r.UpdatedAt = now
	r.CreatedBy = actor
	r.UpdatedBy = actor

	if err := rules.ValidateRule(r); err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(ruleKey(r.ID))
	defer unlock()

	if _, err := s.repo.GetRule(ctx, r.ID); err == nil {
		return nil, &rules.ValidationError{RuleID: r.ID, Errors: []string{"rule already exists"}}
	} else if !errors.Is(err, rules.ErrNotFound) {
		return nil, fmt.Errorf("failed to check rule %s: %w", r.ID, err)
	}

	if err := s.persist(ctx, r, actor, reason); err != nil {
		return nil, err
	}

	s.logger.Info("rule added", "rule_id", r.ID, "name", r.Name, "status", r.Status)
	s.record(ctx, actor, action, audit.EntityRule, r.ID, nil, r, reason)

	return r.Clone(), nil
}

// GetRule returns a copy of the current version of a rule.
func (s *RuleStore) GetRule(ctx context.Context, id string) (*rules.BusinessRule, error) {
	return s.loadRule(ctx, id)
}

// UpdateRule applies patch to a copy of the current rule and stores it as
// the next version with meta.Reason as change reason.
func (s *RuleStore) UpdateRule(ctx context.Context, id string, patch rules.RulePatch, meta rules.ChangeMeta) (result *rules.BusinessRule, err error) {
	defer s.observe("update_rule", time.Now(), &err)

	return s.commit(ctx, id, audit.ActionUpdate, meta, func(next *rules.BusinessRule) error {
		patch.Apply(next)
		return nil
	})
}

// DeleteRule archives a rule. It reports false when the rule does not exist.
func (s *RuleStore) DeleteRule(ctx context.Context, id, actor string) (deleted bool, err error) {
	defer s.observe("delete_rule", time.Now(), &err)

	_, err = s.commit(ctx, id, audit.ActionDelete, rules.ChangeMeta{Actor: actor, Reason: "deleted"}, func(next *rules.BusinessRule) error {
		next.Status = rules.StatusArchived
		return nil
	})
	if errors.Is(err, rules.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// RollbackRule restores the content of targetVersion as a new version.
// Version numbers are never reused.
func (s *RuleStore) RollbackRule(ctx context.Context, id string, targetVersion int, actor string) (result *rules.BusinessRule, err error) {
	defer s.observe("rollback_rule", time.Now(), &err)

	meta := rules.ChangeMeta{
		Actor:  actor,
		Reason: fmt.Sprintf("rollback to version %d", targetVersion),
	}
	return s.commit(ctx, id, audit.ActionRollback, meta, func(next *rules.BusinessRule) error {
		versions, err := s.repo.ListVersions(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to list versions of rule %s: %w", id, err)
		}
		for _, v := range versions {
			if v.Version == targetVersion {
				rules.ContentPatch(&v.Content).Apply(next)
				return nil
			}
		}
		return rules.NewVersionNotFound(id, targetVersion)
	})
}

// GetRuleVersions returns the full history of a rule in ascending version order.
func (s *RuleStore) GetRuleVersions(ctx context.Context, id string) ([]*rules.RuleVersion, error) {
	if _, err := s.loadRule(ctx, id); err != nil {
		return nil, err
	}

	versions, err := s.repo.ListVersions(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list versions of rule %s: %w", id, err)
	}
	sort.Slice(versions, func(i, j int) bool {
		return versions[i].Version < versions[j].Version
	})
	return versions, nil
}

// GetRuleAtTime returns the rule content of the latest version created at
// or before ts. It returns nil without error when the rule did not exist
// at that time.
func (s *RuleStore) GetRuleAtTime(ctx context.Context, id string, ts time.Time) (*rules.BusinessRule, error) {
	versions, err := s.GetRuleVersions(ctx, id)
	if errors.Is(err, rules.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var latest *rules.RuleVersion
	for _, v := range versions {
		if !v.CreatedAt.After(ts) {
			latest = v
		}
	}
	if latest == nil {
		return nil, nil
	}
	return latest.Content.Clone(), nil
}

// DiffVersions compares the content of two versions of a rule.
func (s *RuleStore) DiffVersions(ctx context.Context, id string, from, to int) ([]rules.FieldChange, error) {
	versions, err := s.GetRuleVersions(ctx, id)
	if err != nil {
		return nil, err
	}

	var oldVersion, newVersion *rules.RuleVersion
	for _, v := range versions {
		switch v.Version {
		case from:
			oldVersion = v
		case to:
			newVersion = v
		}
	}
	if oldVersion == nil {
		return nil, rules.NewVersionNotFound(id, from)
	}
	if newVersion == nil {
		return nil, rules.NewVersionNotFound(id, to)
	}
	return rules.DiffContent(&oldVersion.Content, &newVersion.Content)
}

// GetRules returns the tenant's rules, optionally filtered by category and
// status. The filter's tenant is always the store's tenant.
func (s *RuleStore) GetRules(ctx context.Context, filter rules.RuleFilter) (result []*rules.BusinessRule, err error) {
	defer s.observe("get_rules", time.Now(), &err)

	filter.TenantID = s.tenantID
	result, err = s.repo.ListRules(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list rules: %w", err)
	}
	return result, nil
}

// CloneRule copies a rule's content into a new draft rule at version 1.
func (s *RuleStore) CloneRule(ctx context.Context, id, newName, actor string) (result *rules.BusinessRule, err error) {
	defer s.observe("clone_rule", time.Now(), &err)

	src, err := s.loadRule(ctx, id)
	if err != nil {
		return nil, err
	}

	clone := src.Clone()
	clone.ID = ""
	clone.Name = newName
	clone.Status = rules.StatusDraft

	return s.add(ctx, clone, actor, audit.ActionClone, fmt.Sprintf("cloned from %s", id))
}

// commit loads the current rule under its lock, lets mutate change a copy
// and stores the copy as the next version.
func (s *RuleStore) commit(ctx context.Context, id, action string, meta rules.ChangeMeta, mutate func(next *rules.BusinessRule) error) (*rules.BusinessRule, error) {
	unlock := s.locks.Lock(ruleKey(id))
	defer unlock()

	current, err := s.loadRule(ctx, id)
	if err != nil {
		return nil, err
	}

	next := current.Clone()
	if err := mutate(next); err != nil {
		return nil, err
	}

	next.ID = current.ID
	next.TenantID = current.TenantID
	next.CreatedAt = current.CreatedAt
	next.CreatedBy = current.CreatedBy
	next.Version = current.Version + 1
	next.UpdatedAt = s.now()
	next.UpdatedBy = meta.Actor

	if err := rules.ValidateRule(next); err != nil {
		return nil, err
	}

	if err := s.persist(ctx, next, meta.Actor, meta.Reason); err != nil {
		return nil, err
	}

	if meta.Action != "" {
		action = meta.Action
	}
	s.logger.Info("rule changed",
		"rule_id", id,
		"action", action,
		"version", next.Version,
		"reason", meta.Reason,
	)
	s.record(ctx, meta.Actor, action, audit.EntityRule, id, current, next, meta.Reason)

	return next.Clone(), nil
}

// persist stores the version snapshot and the current rule in one repository commit.
func (s *RuleStore) persist(ctx context.Context, r *rules.BusinessRule, actor, reason string) error {
	version := &rules.RuleVersion{
		RuleID:       r.ID,
		Version:      r.Version,
		Content:      *r.Clone(),
		CreatedAt:    r.UpdatedAt,
		CreatedBy:    actor,
		ChangeReason: reason,
	}
	if err := s.repo.CommitVersion(ctx, r, version); err != nil {
		return fmt.Errorf("failed to store version %d of rule %s: %w", r.Version, r.ID, err)
	}
	return nil
}

// loadRule returns the rule if it exists and belongs to the store's tenant.
func (s *RuleStore) loadRule(ctx context.Context, id string) (*rules.BusinessRule, error) {
	rule, err := s.repo.GetRule(ctx, id)
	if err != nil {
		if errors.Is(err, rules.ErrNotFound) {
			return nil, rules.NewRuleNotFound(id)
		}
		return nil, fmt.Errorf("failed to load rule %s: %w", id, err)
	}
	if rule.TenantID != s.tenantID {
		return nil, rules.NewRuleNotFound(id)
	}
	return rule, nil
}

// record reports a mutation to the audit sink. Audit failures are logged;
// the mutation has already been persisted.
func (s *RuleStore) record(ctx context.Context, actor, action, entityType, entityID string, before, after interface{}, reason string) {
	entry := &audit.Entry{
		TenantID:   s.tenantID,
		Actor:      actor,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Before:     before,
		After:      after,
		Reason:     reason,
	}
	if err := s.audit.Record(ctx, entry); err != nil {
		s.logger.ErrorContext(logging.WithActor(ctx, actor), "failed to record audit entry",
			"action", action,
			"entity_type", entityType,
			"entity_id", entityID,
			"error", err,
		)
	}
}

// observe reports an operation outcome to the metrics recorder.
func (s *RuleStore) observe(operation string, start time.Time, errp *error) {
	if s.metrics == nil {
		return
	}
	s.metrics.RecordStoreOperation(operation, operationStatus(*errp), time.Since(start))
}

func operationStatus(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, rules.ErrNotFound):
		return "not_found"
	case errors.Is(err, rules.ErrValidation), errors.Is(err, rules.ErrConfiguration):
		return "invalid"
	default:
		return "error"
	}
}

func ruleKey(id string) string {
	return "rule:" + id
}

func groupKey(id string) string {
	return "group:" + id
}
