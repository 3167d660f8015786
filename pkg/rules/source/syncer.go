package source

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"mercator-hq/rulesengine/pkg/rules"
	"mercator-hq/rulesengine/pkg/rules/store"
)

// DefaultActor is recorded on changes made by a sync when no actor is set.
const DefaultActor = "rules-sync"

// SyncResult lists what a sync changed, by id.
type SyncResult struct {
	Origin    string   `json:"origin"`
	Added     []string `json:"added"`
	Updated   []string `json:"updated"`
	Unchanged []string `json:"unchanged"`

	// Groups lists groups that were created or whose membership changed.
	Groups []string `json:"groups"`
}

// Changed reports whether the sync modified the store.
func (r *SyncResult) Changed() bool {
	return len(r.Added) > 0 || len(r.Updated) > 0 || len(r.Groups) > 0
}

// Syncer applies bundles to a rule store.
type Syncer struct {
	store  *store.RuleStore
	actor  string
	logger *slog.Logger
}

// NewSyncer creates a syncer writing to st as actor.
func NewSyncer(st *store.RuleStore, actor string, logger *slog.Logger) *Syncer {
	if actor == "" {
		actor = DefaultActor
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Syncer{
		store:  st,
		actor:  actor,
		logger: logger.With("component", "rules-sync", "tenant_id", st.TenantID()),
	}
}

// Apply makes the store's rules and groups match the bundle.
//
// Missing rules are added. Rules whose content differs are updated with the
// change reason "sync from <origin>", which creates a new version. Rules
// whose content is identical are left alone and keep their version. A rule
// without a status keeps its stored status, or starts as draft. Groups are
// created when missing; existing groups get their membership reconciled.
// Rules and groups that are absent from the bundle are not deleted.
//
// The bundle is validated first and nothing is written when it is invalid.
// A store failure stops the sync; the result reports what was applied
// before the failure.
func (s *Syncer) Apply(ctx context.Context, bundle *Bundle, origin string) (*SyncResult, error) {
	if err := bundle.Validate(); err != nil {
		return nil, err
	}

	result := &SyncResult{
		Origin:    origin,
		Added:     []string{},
		Updated:   []string{},
		Unchanged: []string{},
		Groups:    []string{},
	}
	reason := fmt.Sprintf("sync from %s", origin)

	for _, def := range bundle.Rules {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if err := s.applyRule(ctx, def, reason, result); err != nil {
			return result, err
		}
	}

	for _, def := range bundle.Groups {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if err := s.applyGroup(ctx, def, result); err != nil {
			return result, err
		}
	}

	s.logger.Info("rules synced",
		"origin", origin,
		"added", len(result.Added),
		"updated", len(result.Updated),
		"unchanged", len(result.Unchanged),
		"groups", len(result.Groups),
	)
	return result, nil
}

// SyncPath loads the rules file or directory at path and applies it with
// path as the origin.
func (s *Syncer) SyncPath(ctx context.Context, path string) (*SyncResult, error) {
	bundle, err := Load(path)
	if err != nil {
		return nil, err
	}
	return s.Apply(ctx, bundle, path)
}

func (s *Syncer) applyRule(ctx context.Context, def *rules.BusinessRule, reason string, result *SyncResult) error {
	existing, err := s.store.GetRule(ctx, def.ID)
	if err != nil {
		if !rules.IsNotFound(err) {
			return fmt.Errorf("failed to load rule %s: %w", def.ID, err)
		}
		if _, err := s.store.AddRule(ctx, def, s.actor); err != nil {
			return fmt.Errorf("failed to add rule %s: %w", def.ID, err)
		}
		result.Added = append(result.Added, def.ID)
		return nil
	}

	candidate := def.Clone()
	if candidate.Status == "" {
		candidate.Status = existing.Status
	}
	if rules.SameContent(existing, candidate) {
		result.Unchanged = append(result.Unchanged, def.ID)
		return nil
	}

	meta := rules.ChangeMeta{Actor: s.actor, Reason: reason}
	updated, err := s.store.UpdateRule(ctx, def.ID, rules.ContentPatch(candidate), meta)
	if err != nil {
		return fmt.Errorf("failed to update rule %s: %w", def.ID, err)
	}
	s.logger.Debug("rule updated from source", "rule_id", def.ID, "version", updated.Version)
	result.Updated = append(result.Updated, def.ID)
	return nil
}

func (s *Syncer) applyGroup(ctx context.Context, def *rules.RuleGroup, result *SyncResult) error {
	existing, err := s.store.GetGroup(ctx, def.ID)
	if err != nil {
		if !rules.IsNotFound(err) {
			return fmt.Errorf("failed to load group %s: %w", def.ID, err)
		}
		if _, err := s.store.CreateGroup(ctx, def, s.actor); err != nil {
			return fmt.Errorf("failed to create group %s: %w", def.ID, err)
		}
		result.Groups = append(result.Groups, def.ID)
		return nil
	}

	updated, err := s.store.SetGroupRules(ctx, def.ID, def.RuleIDs, s.actor)
	if err != nil {
		return fmt.Errorf("failed to update members of group %s: %w", def.ID, err)
	}
	changed := !slices.Equal(existing.RuleIDs, updated.RuleIDs)

	if existing.Name != def.Name || existing.Category != def.Category {
		s.logger.Warn("group name and category are not synced",
			"group_id", def.ID,
			"stored_name", existing.Name,
			"source_name", def.Name,
		)
	}

	if changed {
		result.Groups = append(result.Groups, def.ID)
	}
	return nil
}
