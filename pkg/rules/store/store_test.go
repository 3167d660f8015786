package store_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"mercator-hq/rulesengine/pkg/audit"
	"mercator-hq/rulesengine/pkg/rules"
	"mercator-hq/rulesengine/pkg/rules/engine"
	"mercator-hq/rulesengine/pkg/rules/repository"
	"mercator-hq/rulesengine/pkg/rules/store"
)

var (
	_ store.Repository  = (*repository.MemoryRepository)(nil)
	_ store.Repository  = (*repository.SQLiteRepository)(nil)
	_ store.Repository  = (*repository.PostgresRepository)(nil)
	_ engine.RuleSource = (*store.RuleStore)(nil)
	_ audit.Sink        = (*recordingSink)(nil)
)

type recordingSink struct {
	mu      sync.Mutex
	entries []*audit.Entry
	err     error
}

func (s *recordingSink) Record(ctx context.Context, entry *audit.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
	return s.err
}

func (s *recordingSink) actions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.entries))
	for i, e := range s.entries {
		out[i] = e.Action
	}
	return out
}

// fakeClock advances one minute on every call.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Minute)
	return c.now
}

type fakeMetrics struct {
	mu  sync.Mutex
	ops map[string]int
}

func (m *fakeMetrics) RecordStoreOperation(operation, status string, d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ops == nil {
		m.ops = make(map[string]int)
	}
	m.ops[operation+"/"+status]++
}

func newTestStore(t *testing.T) (*store.RuleStore, *recordingSink, *fakeClock) {
	t.Helper()
	sink := &recordingSink{}
	clock := &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	s := store.New("tenant-a", repository.NewMemoryRepository(), sink, nil)
	s.SetClock(clock.Now)
	return s, sink, clock
}

func sampleRule(name string) *rules.BusinessRule {
	return &rules.BusinessRule{
		Name:     name,
		Category: "orders",
		Priority: 10,
		Status:   rules.StatusActive,
		ConditionGroup: rules.ConditionGroup{
			Conditions: []rules.Condition{
				{Field: "order.total", Operator: rules.OperatorGreaterThan, Value: 1000},
			},
		},
		Actions: []rules.Action{
			{ActionType: rules.ActionSetValue, TargetField: "review", Value: true},
		},
	}
}

func intPtr(i int) *int { return &i }

func strPtr(s string) *string { return &s }

func TestRuleStore_AddRule(t *testing.T) {
	ctx := context.Background()
	s, sink, _ := newTestStore(t)

	rule, err := s.AddRule(ctx, sampleRule("large order"), "alice")
	if err != nil {
		t.Fatalf("AddRule() error = %v", err)
	}

	if rule.ID == "" {
		t.Error("AddRule() did not assign an id")
	}
	if rule.Version != 1 {
		t.Errorf("Version = %d, want 1", rule.Version)
	}
	if rule.TenantID != "tenant-a" {
		t.Errorf("TenantID = %q, want tenant-a", rule.TenantID)
	}
	if rule.CreatedBy != "alice" || rule.UpdatedBy != "alice" {
		t.Errorf("CreatedBy/UpdatedBy = %q/%q, want alice", rule.CreatedBy, rule.UpdatedBy)
	}

	versions, err := s.GetRuleVersions(ctx, rule.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(versions) != 1 || versions[0].Version != 1 {
		t.Fatalf("versions = %+v, want a single version 1", versions)
	}

	if got := sink.actions(); len(got) != 1 || got[0] != audit.ActionCreate {
		t.Errorf("audit actions = %v, want [create]", got)
	}
}

func TestRuleStore_AddRule_Defaults(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newTestStore(t)

	r := sampleRule("draft rule")
	r.Status = ""
	r.ID = "fixed-id"

	rule, err := s.AddRule(ctx, r, "alice")
	if err != nil {
		t.Fatal(err)
	}
	if rule.ID != "fixed-id" {
		t.Errorf("ID = %q, want fixed-id", rule.ID)
	}
	if rule.Status != rules.StatusDraft {
		t.Errorf("Status = %q, want draft", rule.Status)
	}
	if r.Version != 0 || r.TenantID != "" {
		t.Error("AddRule() modified the caller's rule")
	}
}

func TestRuleStore_AddRule_Errors(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		mutate  func(r *rules.BusinessRule)
		wantErr error
	}{
		{
			name:    "missing name",
			mutate:  func(r *rules.BusinessRule) { r.Name = "" },
			wantErr: rules.ErrValidation,
		},
		{
			name: "unknown operator",
			mutate: func(r *rules.BusinessRule) {
				r.ConditionGroup.Conditions[0].Operator = "matches"
			},
			wantErr: rules.ErrConfiguration,
		},
		{
			name: "unknown action type",
			mutate: func(r *rules.BusinessRule) {
				r.Actions[0].ActionType = "explode"
			},
			wantErr: rules.ErrConfiguration,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, sink, _ := newTestStore(t)
			r := sampleRule("rule")
			tt.mutate(r)

			_, err := s.AddRule(ctx, r, "alice")
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("AddRule() error = %v, want %v", err, tt.wantErr)
			}
			if len(sink.actions()) != 0 {
				t.Error("failed AddRule() was audited")
			}
		})
	}
}

func TestRuleStore_AddRule_DuplicateID(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newTestStore(t)

	r := sampleRule("first")
	r.ID = "dup"
	if _, err := s.AddRule(ctx, r, "alice"); err != nil {
		t.Fatal(err)
	}

	r2 := sampleRule("second")
	r2.ID = "dup"
	if _, err := s.AddRule(ctx, r2, "alice"); !errors.Is(err, rules.ErrValidation) {
		t.Errorf("AddRule() with duplicate id error = %v, want ErrValidation", err)
	}
}

func TestRuleStore_UpdateRule(t *testing.T) {
	ctx := context.Background()
	s, sink, _ := newTestStore(t)

	rule, err := s.AddRule(ctx, sampleRule("large order"), "alice")
	if err != nil {
		t.Fatal(err)
	}

	updated, err := s.UpdateRule(ctx, rule.ID,
		rules.RulePatch{Priority: intPtr(1), Description: strPtr("lowered")},
		rules.ChangeMeta{Actor: "bob", Reason: "tuning"},
	)
	if err != nil {
		t.Fatalf("UpdateRule() error = %v", err)
	}

	if updated.Version != 2 {
		t.Errorf("Version = %d, want 2", updated.Version)
	}
	if updated.Priority != 1 || updated.Description != "lowered" {
		t.Errorf("patch not applied: %+v", updated)
	}
	if updated.CreatedBy != "alice" || updated.UpdatedBy != "bob" {
		t.Errorf("CreatedBy/UpdatedBy = %q/%q", updated.CreatedBy, updated.UpdatedBy)
	}
	if !updated.UpdatedAt.After(updated.CreatedAt) {
		t.Error("UpdatedAt not advanced")
	}

	versions, err := s.GetRuleVersions(ctx, rule.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(versions) != 2 {
		t.Fatalf("len(versions) = %d, want 2", len(versions))
	}
	if versions[0].Content.Priority != 10 {
		t.Errorf("version 1 priority = %d, want 10", versions[0].Content.Priority)
	}
	if versions[1].ChangeReason != "tuning" || versions[1].CreatedBy != "bob" {
		t.Errorf("version 2 = %+v", versions[1])
	}

	if got := sink.actions(); len(got) != 2 || got[1] != audit.ActionUpdate {
		t.Errorf("audit actions = %v, want [create update]", got)
	}
}

func TestRuleStore_UpdateRule_NotFound(t *testing.T) {
	s, _, _ := newTestStore(t)

	_, err := s.UpdateRule(context.Background(), "missing", rules.RulePatch{Priority: intPtr(1)}, rules.ChangeMeta{Actor: "bob"})
	var nf *rules.NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("UpdateRule() error = %v, want NotFoundError", err)
	}
	if nf.ID != "missing" {
		t.Errorf("NotFoundError.ID = %q", nf.ID)
	}
}

func TestRuleStore_UpdateRule_InvalidPatchKeepsVersion(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newTestStore(t)

	rule, err := s.AddRule(ctx, sampleRule("rule"), "alice")
	if err != nil {
		t.Fatal(err)
	}

	_, err = s.UpdateRule(ctx, rule.ID, rules.RulePatch{Name: strPtr("  ")}, rules.ChangeMeta{Actor: "bob"})
	if !errors.Is(err, rules.ErrValidation) {
		t.Fatalf("UpdateRule() error = %v, want ErrValidation", err)
	}

	current, err := s.GetRule(ctx, rule.ID)
	if err != nil {
		t.Fatal(err)
	}
	if current.Version != 1 {
		t.Errorf("Version = %d after rejected update, want 1", current.Version)
	}
}

func TestRuleStore_RollbackRule(t *testing.T) {
	ctx := context.Background()
	s, sink, _ := newTestStore(t)

	rule, err := s.AddRule(ctx, sampleRule("rule"), "alice")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.UpdateRule(ctx, rule.ID, rules.RulePatch{Priority: intPtr(1)}, rules.ChangeMeta{Actor: "bob"}); err != nil {
		t.Fatal(err)
	}

	restored, err := s.RollbackRule(ctx, rule.ID, 1, "carol")
	if err != nil {
		t.Fatalf("RollbackRule() error = %v", err)
	}

	if restored.Version != 3 {
		t.Errorf("Version = %d, want 3", restored.Version)
	}
	if restored.Priority != 10 {
		t.Errorf("Priority = %d, want 10", restored.Priority)
	}

	versions, err := s.GetRuleVersions(ctx, rule.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(versions) != 3 {
		t.Fatalf("len(versions) = %d, want 3", len(versions))
	}
	if got := versions[2].ChangeReason; got != "rollback to version 1" {
		t.Errorf("ChangeReason = %q", got)
	}
	if got := sink.actions(); got[len(got)-1] != audit.ActionRollback {
		t.Errorf("last audit action = %s, want rollback", got[len(got)-1])
	}
}

func TestRuleStore_RollbackRule_UnknownVersion(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newTestStore(t)

	rule, err := s.AddRule(ctx, sampleRule("rule"), "alice")
	if err != nil {
		t.Fatal(err)
	}

	_, err = s.RollbackRule(ctx, rule.ID, 7, "carol")
	var nf *rules.NotFoundError
	if !errors.As(err, &nf) || nf.Version != 7 {
		t.Fatalf("RollbackRule() error = %v, want version 7 not found", err)
	}

	versions, _ := s.GetRuleVersions(ctx, rule.ID)
	if len(versions) != 1 {
		t.Errorf("failed rollback created a version: %d versions", len(versions))
	}
}

func TestRuleStore_GetRuleAtTime(t *testing.T) {
	ctx := context.Background()
	s, _, clock := newTestStore(t)

	start := clock.now
	rule, err := s.AddRule(ctx, sampleRule("rule"), "alice") // start+1m
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.UpdateRule(ctx, rule.ID, rules.RulePatch{Priority: intPtr(2)}, rules.ChangeMeta{Actor: "bob"}); err != nil { // start+2m
		t.Fatal(err)
	}
	if _, err := s.UpdateRule(ctx, rule.ID, rules.RulePatch{Priority: intPtr(3)}, rules.ChangeMeta{Actor: "bob"}); err != nil { // start+3m
		t.Fatal(err)
	}

	tests := []struct {
		name         string
		at           time.Time
		wantNil      bool
		wantPriority int
	}{
		{"before creation", start, true, 0},
		{"exactly at creation", start.Add(time.Minute), false, 10},
		{"between versions", start.Add(90 * time.Second), false, 10},
		{"at second version", start.Add(2 * time.Minute), false, 2},
		{"after last version", start.Add(time.Hour), false, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.GetRuleAtTime(ctx, rule.ID, tt.at)
			if err != nil {
				t.Fatalf("GetRuleAtTime() error = %v", err)
			}
			if tt.wantNil {
				if got != nil {
					t.Errorf("GetRuleAtTime() = %+v, want nil", got)
				}
				return
			}
			if got == nil {
				t.Fatal("GetRuleAtTime() = nil")
			}
			if got.Priority != tt.wantPriority {
				t.Errorf("Priority = %d, want %d", got.Priority, tt.wantPriority)
			}
		})
	}

	got, err := s.GetRuleAtTime(ctx, "missing", start.Add(time.Hour))
	if err != nil || got != nil {
		t.Errorf("GetRuleAtTime(missing) = %v, %v; want nil, nil", got, err)
	}
}

func TestRuleStore_DeleteRule(t *testing.T) {
	ctx := context.Background()
	s, sink, _ := newTestStore(t)

	rule, err := s.AddRule(ctx, sampleRule("rule"), "alice")
	if err != nil {
		t.Fatal(err)
	}

	deleted, err := s.DeleteRule(ctx, rule.ID, "bob")
	if err != nil || !deleted {
		t.Fatalf("DeleteRule() = %v, %v; want true, nil", deleted, err)
	}

	current, err := s.GetRule(ctx, rule.ID)
	if err != nil {
		t.Fatalf("archived rule not retrievable: %v", err)
	}
	if current.Status != rules.StatusArchived || current.Version != 2 {
		t.Errorf("after delete: status %s version %d, want archived 2", current.Status, current.Version)
	}
	if got := sink.actions(); got[len(got)-1] != audit.ActionDelete {
		t.Errorf("last audit action = %s, want delete", got[len(got)-1])
	}

	deleted, err = s.DeleteRule(ctx, "missing", "bob")
	if err != nil || deleted {
		t.Errorf("DeleteRule(missing) = %v, %v; want false, nil", deleted, err)
	}
}

func TestRuleStore_GetRules(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newTestStore(t)

	fixtures := []struct {
		category string
		status   rules.RuleStatus
	}{
		{"orders", rules.StatusActive},
		{"orders", rules.StatusInactive},
		{"billing", rules.StatusActive},
	}
	for i, f := range fixtures {
		r := sampleRule(fmt.Sprintf("rule %d", i))
		r.Category = f.category
		r.Status = f.status
		if _, err := s.AddRule(ctx, r, "alice"); err != nil {
			t.Fatal(err)
		}
	}

	tests := []struct {
		name   string
		filter rules.RuleFilter
		want   int
	}{
		{"all", rules.RuleFilter{}, 3},
		{"category", rules.RuleFilter{Category: "orders"}, 2},
		{"status", rules.RuleFilter{Status: rules.StatusActive}, 2},
		{"category and status", rules.RuleFilter{Category: "orders", Status: rules.StatusActive}, 1},
		{"foreign tenant ignored", rules.RuleFilter{TenantID: "tenant-b"}, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.GetRules(ctx, tt.filter)
			if err != nil {
				t.Fatal(err)
			}
			if len(got) != tt.want {
				t.Errorf("GetRules() returned %d rules, want %d", len(got), tt.want)
			}
		})
	}
}

func TestRuleStore_TenantIsolation(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemoryRepository()
	a := store.New("tenant-a", repo, nil, nil)
	b := store.New("tenant-b", repo, nil, nil)

	rule, err := a.AddRule(ctx, sampleRule("a rule"), "alice")
	if err != nil {
		t.Fatal(err)
	}

	if _, err := b.GetRule(ctx, rule.ID); !errors.Is(err, rules.ErrNotFound) {
		t.Errorf("tenant-b GetRule() error = %v, want ErrNotFound", err)
	}
	if _, err := b.UpdateRule(ctx, rule.ID, rules.RulePatch{Priority: intPtr(1)}, rules.ChangeMeta{Actor: "mallory"}); !errors.Is(err, rules.ErrNotFound) {
		t.Errorf("tenant-b UpdateRule() error = %v, want ErrNotFound", err)
	}
	if _, err := b.GetRuleVersions(ctx, rule.ID); !errors.Is(err, rules.ErrNotFound) {
		t.Errorf("tenant-b GetRuleVersions() error = %v, want ErrNotFound", err)
	}

	list, err := b.GetRules(ctx, rules.RuleFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 0 {
		t.Errorf("tenant-b sees %d rules, want 0", len(list))
	}
}

func TestRuleStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newTestStore(t)

	rule, err := s.AddRule(ctx, sampleRule("rule"), "alice")
	if err != nil {
		t.Fatal(err)
	}

	rule.Name = "mutated"
	rule.ConditionGroup.Conditions[0].Value = 1

	current, err := s.GetRule(ctx, rule.ID)
	if err != nil {
		t.Fatal(err)
	}
	if current.Name != "rule" {
		t.Errorf("Name = %q, stored rule was mutated through returned copy", current.Name)
	}

	versions, _ := s.GetRuleVersions(ctx, rule.ID)
	versions[0].Content.Priority = 99
	again, _ := s.GetRuleVersions(ctx, rule.ID)
	if again[0].Content.Priority != 10 {
		t.Error("version history was mutated through returned copy")
	}
}

func TestRuleStore_CloneRule(t *testing.T) {
	ctx := context.Background()
	s, sink, _ := newTestStore(t)

	src, err := s.AddRule(ctx, sampleRule("original"), "alice")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.UpdateRule(ctx, src.ID, rules.RulePatch{Priority: intPtr(3)}, rules.ChangeMeta{Actor: "alice"}); err != nil {
		t.Fatal(err)
	}

	clone, err := s.CloneRule(ctx, src.ID, "copy", "bob")
	if err != nil {
		t.Fatalf("CloneRule() error = %v", err)
	}

	if clone.ID == src.ID {
		t.Error("clone kept the source id")
	}
	if clone.Name != "copy" || clone.Status != rules.StatusDraft || clone.Version != 1 {
		t.Errorf("clone = name %q status %s version %d", clone.Name, clone.Status, clone.Version)
	}
	if clone.Priority != 3 {
		t.Errorf("clone priority = %d, want 3", clone.Priority)
	}
	if got := sink.actions(); got[len(got)-1] != audit.ActionClone {
		t.Errorf("last audit action = %s, want clone", got[len(got)-1])
	}

	if _, err := s.CloneRule(ctx, "missing", "x", "bob"); !errors.Is(err, rules.ErrNotFound) {
		t.Errorf("CloneRule(missing) error = %v", err)
	}
}

func TestRuleStore_DiffVersions(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newTestStore(t)

	rule, err := s.AddRule(ctx, sampleRule("rule"), "alice")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.UpdateRule(ctx, rule.ID, rules.RulePatch{Priority: intPtr(1)}, rules.ChangeMeta{Actor: "bob"}); err != nil {
		t.Fatal(err)
	}

	changes, err := s.DiffVersions(ctx, rule.ID, 1, 2)
	if err != nil {
		t.Fatalf("DiffVersions() error = %v", err)
	}
	if len(changes) != 1 || changes[0].Field != "priority" {
		t.Errorf("changes = %+v, want a single priority change", changes)
	}

	if _, err := s.DiffVersions(ctx, rule.ID, 1, 5); !errors.Is(err, rules.ErrNotFound) {
		t.Errorf("DiffVersions() with unknown version error = %v", err)
	}
}

func TestRuleStore_AuditFailureDoesNotFailMutation(t *testing.T) {
	ctx := context.Background()
	sink := &recordingSink{err: errors.New("audit backend down")}
	s := store.New("tenant-a", repository.NewMemoryRepository(), sink, nil)

	rule, err := s.AddRule(ctx, sampleRule("rule"), "alice")
	if err != nil {
		t.Fatalf("AddRule() error = %v", err)
	}
	if _, err := s.GetRule(ctx, rule.ID); err != nil {
		t.Errorf("rule not stored: %v", err)
	}
}

func TestRuleStore_Metrics(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newTestStore(t)
	m := &fakeMetrics{}
	s.SetMetrics(m)

	if _, err := s.AddRule(ctx, sampleRule("rule"), "alice"); err != nil {
		t.Fatal(err)
	}
	s.UpdateRule(ctx, "missing", rules.RulePatch{}, rules.ChangeMeta{})
	s.AddRule(ctx, &rules.BusinessRule{}, "alice")

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, key := range []string{"add_rule/success", "update_rule/not_found", "add_rule/invalid"} {
		if m.ops[key] != 1 {
			t.Errorf("ops[%s] = %d, want 1 (all: %v)", key, m.ops[key], m.ops)
		}
	}
}

func TestRuleStore_ConcurrentUpdates(t *testing.T) {
	ctx := context.Background()
	s := store.New("tenant-a", repository.NewMemoryRepository(), nil, nil)

	rule, err := s.AddRule(ctx, sampleRule("rule"), "alice")
	if err != nil {
		t.Fatal(err)
	}

	const writers = 50
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := s.UpdateRule(ctx, rule.ID,
				rules.RulePatch{Priority: intPtr(i)},
				rules.ChangeMeta{Actor: fmt.Sprintf("writer-%d", i)},
			)
			if err != nil {
				errs <- err
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("UpdateRule() error = %v", err)
	}

	current, err := s.GetRule(ctx, rule.ID)
	if err != nil {
		t.Fatal(err)
	}
	if current.Version != writers+1 {
		t.Errorf("Version = %d, want %d", current.Version, writers+1)
	}

	versions, err := s.GetRuleVersions(ctx, rule.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(versions) != writers+1 {
		t.Fatalf("len(versions) = %d, want %d", len(versions), writers+1)
	}
	for i, v := range versions {
		if v.Version != i+1 {
			t.Fatalf("versions[%d].Version = %d; history has a gap or duplicate", i, v.Version)
		}
	}
}

func TestRuleStore_ConcurrentDistinctRules(t *testing.T) {
	ctx := context.Background()
	s := store.New("tenant-a", repository.NewMemoryRepository(), nil, nil)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r, err := s.AddRule(ctx, sampleRule(fmt.Sprintf("rule %d", i)), "alice")
			if err != nil {
				t.Error(err)
				return
			}
			for j := 0; j < 5; j++ {
				if _, err := s.UpdateRule(ctx, r.ID, rules.RulePatch{Priority: intPtr(j)}, rules.ChangeMeta{Actor: "alice"}); err != nil {
					t.Error(err)
				}
				if _, err := s.GetRules(ctx, rules.RuleFilter{}); err != nil {
					t.Error(err)
				}
			}
		}(i)
	}
	wg.Wait()

	all, err := s.GetRules(ctx, rules.RuleFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 20 {
		t.Fatalf("len(rules) = %d, want 20", len(all))
	}
	for _, r := range all {
		if r.Version != 6 {
			t.Errorf("rule %s version = %d, want 6", r.ID, r.Version)
		}
	}
}

// flakyRepository fails the next failCommits commits.
type flakyRepository struct {
	*repository.MemoryRepository
	failCommits int
}

func (r *flakyRepository) CommitVersion(ctx context.Context, rule *rules.BusinessRule, version *rules.RuleVersion) error {
	if r.failCommits > 0 {
		r.failCommits--
		return errors.New("disk full")
	}
	return r.MemoryRepository.CommitVersion(ctx, rule, version)
}

func TestRuleStore_FailedCommitLeavesRuleWritable(t *testing.T) {
	ctx := context.Background()
	repo := &flakyRepository{MemoryRepository: repository.NewMemoryRepository()}
	s := store.New("tenant-a", repo, nil, nil)

	rule, err := s.AddRule(ctx, sampleRule("discount"), "alice")
	if err != nil {
		t.Fatal(err)
	}
	original := rule.Priority

	repo.failCommits = 1
	if _, err := s.UpdateRule(ctx, rule.ID, rules.RulePatch{Priority: intPtr(original + 7)}, rules.ChangeMeta{Actor: "bob"}); err == nil {
		t.Fatal("UpdateRule() succeeded while the repository was failing")
	}

	got, err := s.GetRule(ctx, rule.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Version != 1 || got.Priority != original {
		t.Errorf("rule after failed update = version %d priority %d", got.Version, got.Priority)
	}
	versions, err := s.GetRuleVersions(ctx, rule.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(versions) != 1 {
		t.Fatalf("history has %d versions after failed update, want 1", len(versions))
	}

	updated, err := s.UpdateRule(ctx, rule.ID, rules.RulePatch{Priority: intPtr(original + 7)}, rules.ChangeMeta{Actor: "bob"})
	if err != nil {
		t.Fatalf("UpdateRule() retry error = %v", err)
	}
	if updated.Version != 2 {
		t.Errorf("Version = %d, want 2", updated.Version)
	}
	if _, err := s.RollbackRule(ctx, rule.ID, 1, "bob"); err != nil {
		t.Fatalf("RollbackRule() error = %v", err)
	}
	deleted, err := s.DeleteRule(ctx, rule.ID, "bob")
	if err != nil || !deleted {
		t.Fatalf("DeleteRule() = %v, %v", deleted, err)
	}
}
