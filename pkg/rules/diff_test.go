package rules

import "testing"

// TestDiffContent tests field level differences between rule versions
func TestDiffContent(t *testing.T) {
	oldRule := validRule()
	newRule := oldRule.Clone()
	newRule.Priority = 1
	newRule.Description = "added"
	newRule.Version = 7

	changes, err := DiffContent(oldRule, newRule)
	if err != nil {
		t.Fatalf("DiffContent() error = %v", err)
	}

	if len(changes) != 2 {
		t.Fatalf("expected 2 changes, got %d: %+v", len(changes), changes)
	}
	if changes[0].Field != "description" || changes[0].Type != "added" {
		t.Errorf("changes[0] = %s/%s, want description/added", changes[0].Field, changes[0].Type)
	}
	if changes[1].Field != "priority" || changes[1].Type != "modified" {
		t.Errorf("changes[1] = %s/%s, want priority/modified", changes[1].Field, changes[1].Type)
	}
	if string(changes[1].OldValue) != "10" || string(changes[1].NewValue) != "1" {
		t.Errorf("priority values = %s -> %s, want 10 -> 1", changes[1].OldValue, changes[1].NewValue)
	}
}

// TestSameContent_NumericKinds tests that decoded numbers compare equal to literals
func TestSameContent_NumericKinds(t *testing.T) {
	a := validRule()
	a.ConditionGroup.Conditions[0].Value = 5
	b := a.Clone()
	b.ConditionGroup.Conditions[0].Value = float64(5)

	if !SameContent(a, b) {
		t.Error("SameContent() = false for int vs float64 of equal value")
	}
}
