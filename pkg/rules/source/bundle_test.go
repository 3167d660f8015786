package source

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"mercator-hq/rulesengine/pkg/rules"
)

const orderRules = `
rules:
  - id: high-value
    name: High value order
    category: orders
    priority: 100
    status: active
    stop_processing: true
    effective_from: 2024-01-01T00:00:00Z
    condition_group:
      logical_operator: AND
      conditions:
        - field: order.total
          operator: greater_than
          value: 1000
      nested_groups:
        - logical_operator: OR
          conditions:
            - field: customer.tier
              operator: in
              value: [gold, platinum]
    actions:
      - action_type: escalate
        parameters:
          level: manager
  - id: big-basket
    name: Big basket
    priority: 50
    condition_group:
      conditions:
        - field: order.items
          operator: between
          value: [10, 20]
groups:
  - id: orders
    name: Order rules
    rules: [high-value, big-basket]
`

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

// TestLoadFile tests decoding of a full rules document
func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "orders.yaml")
	writeFile(t, path, orderRules)

	bundle, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if len(bundle.Rules) != 2 || len(bundle.Groups) != 1 {
		t.Fatalf("got %d rules, %d groups", len(bundle.Rules), len(bundle.Groups))
	}
	if len(bundle.Files) != 1 || bundle.Files[0] != path {
		t.Errorf("Files = %v", bundle.Files)
	}

	hv := bundle.Rules[0]
	if hv.ID != "high-value" || hv.Priority != 100 || hv.Status != rules.StatusActive || !hv.StopProcessing {
		t.Errorf("rule = %+v", hv)
	}
	if hv.EffectiveFrom == nil || !hv.EffectiveFrom.Equal(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("EffectiveFrom = %v", hv.EffectiveFrom)
	}
	if hv.ConditionGroup.LogicalOperator != rules.LogicalAnd || len(hv.ConditionGroup.NestedGroups) != 1 {
		t.Errorf("ConditionGroup = %+v", hv.ConditionGroup)
	}
	if hv.ConditionGroup.Conditions[0].Operator != rules.OperatorGreaterThan {
		t.Errorf("operator = %s", hv.ConditionGroup.Conditions[0].Operator)
	}
	if len(hv.Actions) != 1 || hv.Actions[0].Parameters["level"] != "manager" {
		t.Errorf("Actions = %+v", hv.Actions)
	}
	if bundle.Rules[1].Status != "" {
		t.Errorf("omitted status decoded as %q", bundle.Rules[1].Status)
	}
	if err := bundle.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

// TestLoadFile_Errors tests the failure modes of LoadFile
func TestLoadFile_Errors(t *testing.T) {
	dir := t.TempDir()
	unknown := filepath.Join(dir, "unknown.yaml")
	writeFile(t, unknown, "rules:\n  - id: a\n    name: A\n    priorty: 5\n")
	broken := filepath.Join(dir, "broken.yaml")
	writeFile(t, broken, "rules: [\n")
	binary := filepath.Join(dir, "binary.yaml")
	if err := os.WriteFile(binary, []byte{0xff, 0xfe, 0xfd}, 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		path    string
		message string
	}{
		{"missing", filepath.Join(dir, "nope.yaml"), "file not found"},
		{"directory", dir, "not a regular file"},
		{"unknown field", unknown, "YAML parsing failed"},
		{"syntax error", broken, "YAML parsing failed"},
		{"invalid utf-8", binary, "invalid UTF-8"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFile(tt.path)
			var lerr *LoadError
			if !errors.As(err, &lerr) {
				t.Fatalf("LoadFile() error = %v, want LoadError", err)
			}
			if !strings.Contains(lerr.Message, tt.message) {
				t.Errorf("Message = %q, want it to contain %q", lerr.Message, tt.message)
			}
		})
	}
}

// TestParse_Empty tests that an empty document is an empty bundle
func TestParse_Empty(t *testing.T) {
	bundle, err := Parse([]byte("# nothing yet\n"))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(bundle.Rules) != 0 || len(bundle.Groups) != 0 {
		t.Errorf("bundle = %+v", bundle)
	}
}

// TestLoadDir tests recursive loading in lexical order
func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "b.yml"), "rules:\n  - id: b\n    name: B\n")
	writeFile(t, filepath.Join(dir, "a.yaml"), "rules:\n  - id: a\n    name: A\n")
	writeFile(t, filepath.Join(dir, "nested", "c.yaml"), "rules:\n  - id: c\n    name: C\n")
	writeFile(t, filepath.Join(dir, ".hidden.yaml"), "rules:\n  - id: hidden\n    name: H\n")
	writeFile(t, filepath.Join(dir, ".git", "x.yaml"), "rules:\n  - id: x\n    name: X\n")
	writeFile(t, filepath.Join(dir, "README.md"), "# rules\n")

	bundle, err := LoadDir(dir)
	if err != nil {
		t.Fatalf("LoadDir() error = %v", err)
	}

	var ids []string
	for _, r := range bundle.Rules {
		ids = append(ids, r.ID)
	}
	if strings.Join(ids, ",") != "a,b,c" {
		t.Errorf("rule ids = %v, want [a b c]", ids)
	}
	if len(bundle.Files) != 3 {
		t.Errorf("Files = %v", bundle.Files)
	}
}

// TestLoadDir_Errors tests empty directories and partially broken ones
func TestLoadDir_Errors(t *testing.T) {
	empty := t.TempDir()
	if _, err := LoadDir(empty); err == nil {
		t.Error("LoadDir() on an empty directory succeeded")
	}

	mixed := t.TempDir()
	writeFile(t, filepath.Join(mixed, "good.yaml"), "rules:\n  - id: a\n    name: A\n")
	writeFile(t, filepath.Join(mixed, "bad.yaml"), "rules: [\n")
	bundle, err := LoadDir(mixed)
	if err == nil {
		t.Fatalf("LoadDir() = %+v, want error", bundle)
	}
	var lerr *LoadError
	if !errors.As(err, &lerr) || !strings.HasSuffix(lerr.Path, "bad.yaml") {
		t.Errorf("error = %v, want LoadError for bad.yaml", err)
	}

	if _, err := LoadDir(filepath.Join(mixed, "good.yaml")); err == nil {
		t.Error("LoadDir() on a file succeeded")
	}
}

// TestBundle_Validate tests bundle level consistency checks
func TestBundle_Validate(t *testing.T) {
	rule := func(id string) *rules.BusinessRule {
		return &rules.BusinessRule{ID: id, Name: "rule " + id}
	}

	tests := []struct {
		name    string
		bundle  Bundle
		wantErr string
	}{
		{
			name:   "valid",
			bundle: Bundle{Rules: []*rules.BusinessRule{rule("a")}, Groups: []*rules.RuleGroup{{ID: "g", Name: "G", RuleIDs: []string{"a"}}}},
		},
		{
			name:    "missing rule id",
			bundle:  Bundle{Rules: []*rules.BusinessRule{rule("")}},
			wantErr: "id is required",
		},
		{
			name:    "duplicate rule id",
			bundle:  Bundle{Rules: []*rules.BusinessRule{rule("a"), rule("a")}},
			wantErr: "duplicate rule id",
		},
		{
			name:    "invalid rule",
			bundle:  Bundle{Rules: []*rules.BusinessRule{{ID: "a"}}},
			wantErr: "rule a validation failed",
		},
		{
			name:    "missing group id",
			bundle:  Bundle{Groups: []*rules.RuleGroup{{Name: "G"}}},
			wantErr: "id is required",
		},
		{
			name:    "duplicate group id",
			bundle:  Bundle{Groups: []*rules.RuleGroup{{ID: "g", Name: "G"}, {ID: "g", Name: "G"}}},
			wantErr: "duplicate group id",
		},
		{
			name:    "undefined member",
			bundle:  Bundle{Groups: []*rules.RuleGroup{{ID: "g", Name: "G", RuleIDs: []string{"ghost"}}}},
			wantErr: "member ghost is not defined",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.bundle.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Validate() error = %v, want %q", err, tt.wantErr)
			}
			if !errors.Is(err, rules.ErrValidation) {
				t.Errorf("Validate() error does not match ErrValidation")
			}
		})
	}
}
