package store_test

import (
	"context"
	"errors"
	"testing"

	"mercator-hq/rulesengine/pkg/audit"
	"mercator-hq/rulesengine/pkg/rules"
)

func TestRuleStore_Groups(t *testing.T) {
	ctx := context.Background()
	s, sink, _ := newTestStore(t)

	r1, err := s.AddRule(ctx, sampleRule("one"), "alice")
	if err != nil {
		t.Fatal(err)
	}
	r2, err := s.AddRule(ctx, sampleRule("two"), "alice")
	if err != nil {
		t.Fatal(err)
	}

	group, err := s.CreateGroup(ctx, &rules.RuleGroup{
		ID:      "checkout",
		Name:    "Checkout rules",
		RuleIDs: []string{r1.ID, r1.ID},
	}, "alice")
	if err != nil {
		t.Fatalf("CreateGroup() error = %v", err)
	}
	if group.TenantID != "tenant-a" {
		t.Errorf("TenantID = %q", group.TenantID)
	}
	if len(group.RuleIDs) != 1 {
		t.Errorf("RuleIDs = %v, duplicates not dropped", group.RuleIDs)
	}

	group, err = s.AddRuleToGroup(ctx, "checkout", r2.ID, "bob")
	if err != nil {
		t.Fatalf("AddRuleToGroup() error = %v", err)
	}
	if len(group.RuleIDs) != 2 || group.RuleIDs[1] != r2.ID {
		t.Errorf("RuleIDs = %v, want [%s %s]", group.RuleIDs, r1.ID, r2.ID)
	}

	// Re-adding a member is a no-op and is not audited.
	before := len(sink.actions())
	if _, err := s.AddRuleToGroup(ctx, "checkout", r2.ID, "bob"); err != nil {
		t.Fatal(err)
	}
	if len(sink.actions()) != before {
		t.Error("no-op membership change was audited")
	}

	group, err = s.RemoveRuleFromGroup(ctx, "checkout", r1.ID, "bob")
	if err != nil {
		t.Fatalf("RemoveRuleFromGroup() error = %v", err)
	}
	if len(group.RuleIDs) != 1 || group.RuleIDs[0] != r2.ID {
		t.Errorf("RuleIDs = %v, want [%s]", group.RuleIDs, r2.ID)
	}

	got, err := s.GetGroup(ctx, "checkout")
	if err != nil {
		t.Fatal(err)
	}
	if len(got.RuleIDs) != 1 {
		t.Errorf("GetGroup().RuleIDs = %v", got.RuleIDs)
	}

	actions := sink.actions()
	want := []string{audit.ActionCreate, audit.ActionCreate, audit.ActionGroupCreate, audit.ActionGroupModify, audit.ActionGroupModify}
	if len(actions) != len(want) {
		t.Fatalf("audit actions = %v, want %v", actions, want)
	}
	for i := range want {
		if actions[i] != want[i] {
			t.Errorf("actions[%d] = %s, want %s", i, actions[i], want[i])
		}
	}
}

func TestRuleStore_GroupErrors(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newTestStore(t)

	r, err := s.AddRule(ctx, sampleRule("one"), "alice")
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		run     func() error
		wantErr error
	}{
		{
			name: "unknown member",
			run: func() error {
				_, err := s.CreateGroup(ctx, &rules.RuleGroup{Name: "g", RuleIDs: []string{"missing"}}, "alice")
				return err
			},
			wantErr: rules.ErrNotFound,
		},
		{
			name: "missing name",
			run: func() error {
				_, err := s.CreateGroup(ctx, &rules.RuleGroup{RuleIDs: []string{r.ID}}, "alice")
				return err
			},
			wantErr: rules.ErrValidation,
		},
		{
			name: "unknown group",
			run: func() error {
				_, err := s.GetGroup(ctx, "missing")
				return err
			},
			wantErr: rules.ErrNotFound,
		},
		{
			name: "add unknown rule",
			run: func() error {
				if _, err := s.CreateGroup(ctx, &rules.RuleGroup{ID: "g1", Name: "g1"}, "alice"); err != nil {
					return err
				}
				_, err := s.AddRuleToGroup(ctx, "g1", "missing", "alice")
				return err
			},
			wantErr: rules.ErrNotFound,
		},
		{
			name: "add to unknown group",
			run: func() error {
				_, err := s.AddRuleToGroup(ctx, "missing", r.ID, "alice")
				return err
			},
			wantErr: rules.ErrNotFound,
		},
		{
			name: "duplicate group id",
			run: func() error {
				if _, err := s.CreateGroup(ctx, &rules.RuleGroup{ID: "g2", Name: "g2"}, "alice"); err != nil {
					return err
				}
				_, err := s.CreateGroup(ctx, &rules.RuleGroup{ID: "g2", Name: "again"}, "alice")
				return err
			},
			wantErr: rules.ErrValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.run(); !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestRuleStore_SetGroupRules(t *testing.T) {
	ctx := context.Background()
	s, sink, _ := newTestStore(t)

	var ids []string
	for _, name := range []string{"one", "two", "three"} {
		r, err := s.AddRule(ctx, sampleRule(name), "alice")
		if err != nil {
			t.Fatal(err)
		}
		ids = append(ids, r.ID)
	}
	if _, err := s.CreateGroup(ctx, &rules.RuleGroup{ID: "g", Name: "G", RuleIDs: ids}, "alice"); err != nil {
		t.Fatal(err)
	}

	want := []string{ids[2], ids[0]}
	group, err := s.SetGroupRules(ctx, "g", []string{ids[2], ids[0], ids[2]}, "bob")
	if err != nil {
		t.Fatalf("SetGroupRules() error = %v", err)
	}
	if len(group.RuleIDs) != 2 || group.RuleIDs[0] != want[0] || group.RuleIDs[1] != want[1] {
		t.Errorf("RuleIDs = %v, want %v", group.RuleIDs, want)
	}

	modifies := func() int {
		n := 0
		for _, a := range sink.actions() {
			if a == audit.ActionGroupModify {
				n++
			}
		}
		return n
	}
	if got := modifies(); got != 1 {
		t.Errorf("group_modify entries = %d, want 1", got)
	}
	if _, err := s.SetGroupRules(ctx, "g", want, "bob"); err != nil {
		t.Fatal(err)
	}
	if got := modifies(); got != 1 {
		t.Errorf("identical member list recorded a change: %d entries", got)
	}

	if _, err := s.SetGroupRules(ctx, "g", []string{"ghost"}, "bob"); !errors.Is(err, rules.ErrNotFound) {
		t.Errorf("SetGroupRules(unknown rule) error = %v, want ErrNotFound", err)
	}
	stored, err := s.GetGroup(ctx, "g")
	if err != nil {
		t.Fatal(err)
	}
	if len(stored.RuleIDs) != 2 {
		t.Errorf("members changed by a rejected call: %v", stored.RuleIDs)
	}
}
