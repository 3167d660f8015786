package engine_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"mercator-hq/rulesengine/pkg/rules"
	"mercator-hq/rulesengine/pkg/rules/engine"
	"mercator-hq/rulesengine/pkg/rules/repository"
	"mercator-hq/rulesengine/pkg/rules/store"
	"mercator-hq/rulesengine/pkg/telemetry/logging"
)

type ruleOpt func(r *rules.BusinessRule)

func withCategory(c string) ruleOpt { return func(r *rules.BusinessRule) { r.Category = c } }

func withStatus(s rules.RuleStatus) ruleOpt { return func(r *rules.BusinessRule) { r.Status = s } }

func withStop() ruleOpt { return func(r *rules.BusinessRule) { r.StopProcessing = true } }

func withCondition(c rules.Condition) ruleOpt {
	return func(r *rules.BusinessRule) {
		r.ConditionGroup.Conditions = append(r.ConditionGroup.Conditions, c)
	}
}

func withWindow(from, until *time.Time) ruleOpt {
	return func(r *rules.BusinessRule) {
		r.EffectiveFrom = from
		r.EffectiveUntil = until
	}
}

func newRule(id string, priority int, opts ...ruleOpt) *rules.BusinessRule {
	r := &rules.BusinessRule{
		ID:       id,
		Name:     "rule " + id,
		Category: "orders",
		Priority: priority,
		Status:   rules.StatusActive,
		Actions: []rules.Action{
			{ActionType: rules.ActionSetValue, TargetField: "matched_by", Value: id},
		},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func setup(t *testing.T, config *engine.Config, ruleset ...*rules.BusinessRule) (*engine.RulesEngine, *store.RuleStore) {
	t.Helper()
	st := store.New("tenant-a", repository.NewMemoryRepository(), nil, nil)
	for _, r := range ruleset {
		if _, err := st.AddRule(context.Background(), r, "test"); err != nil {
			t.Fatalf("AddRule(%s) error = %v", r.ID, err)
		}
	}
	eng, err := engine.New(st, config, nil)
	if err != nil {
		t.Fatalf("engine.New() error = %v", err)
	}
	return eng, st
}

var highValue = rules.Condition{Field: "order.total", Operator: rules.OperatorGreaterThan, Value: 1000}

func orderContext(total float64) rules.Context {
	return rules.Context{"order": map[string]interface{}{"total": total, "country": "US"}}
}

func TestRulesEngine_PriorityOrder(t *testing.T) {
	eng, _ := setup(t, nil,
		newRule("c", 30, withCondition(highValue)),
		newRule("a", 10, withCondition(highValue)),
		newRule("b", 10, withCondition(highValue)),
		newRule("d", 20),
	)

	result, err := eng.Evaluate(context.Background(), orderContext(1500), "")
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}

	want := []string{"a", "b", "d", "c"}
	if len(result.MatchedRuleIDs) != len(want) {
		t.Fatalf("MatchedRuleIDs = %v, want %v", result.MatchedRuleIDs, want)
	}
	for i := range want {
		if result.MatchedRuleIDs[i] != want[i] {
			t.Errorf("MatchedRuleIDs[%d] = %s, want %s", i, result.MatchedRuleIDs[i], want[i])
		}
	}
	if result.RulesEvaluated != 4 || result.RulesMatched != 4 {
		t.Errorf("evaluated/matched = %d/%d, want 4/4", result.RulesEvaluated, result.RulesMatched)
	}
	if len(result.Effects) != 4 || result.Effects[0].RuleID != "a" {
		t.Errorf("Effects = %+v", result.Effects)
	}
	if result.ProcessingStopped {
		t.Error("ProcessingStopped = true without a stopping rule")
	}
}

func TestRulesEngine_StopProcessing(t *testing.T) {
	tests := []struct {
		name          string
		ruleset       []*rules.BusinessRule
		total         float64
		wantEvaluated int
		wantMatched   []string
		wantStoppedBy string
	}{
		{
			name: "first matching rule stops",
			ruleset: []*rules.BusinessRule{
				newRule("r1", 1, withCondition(highValue), withStop()),
				newRule("r2", 2, withCondition(highValue)),
				newRule("r3", 3),
			},
			total:         1500,
			wantEvaluated: 1,
			wantMatched:   []string{"r1"},
			wantStoppedBy: "r1",
		},
		{
			name: "non matching stop rule does not stop",
			ruleset: []*rules.BusinessRule{
				newRule("r1", 1, withCondition(highValue), withStop()),
				newRule("r2", 2),
				newRule("r3", 3),
			},
			total:         10,
			wantEvaluated: 3,
			wantMatched:   []string{"r2", "r3"},
		},
		{
			name: "stop in the middle",
			ruleset: []*rules.BusinessRule{
				newRule("r1", 1),
				newRule("r2", 2, withStop()),
				newRule("r3", 3),
			},
			total:         10,
			wantEvaluated: 2,
			wantMatched:   []string{"r1", "r2"},
			wantStoppedBy: "r2",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eng, _ := setup(t, nil, tt.ruleset...)

			result, err := eng.Evaluate(context.Background(), orderContext(tt.total), "orders")
			if err != nil {
				t.Fatalf("Evaluate() error = %v", err)
			}
			if result.RulesEvaluated != tt.wantEvaluated {
				t.Errorf("RulesEvaluated = %d, want %d", result.RulesEvaluated, tt.wantEvaluated)
			}
			if len(result.MatchedRuleIDs) != len(tt.wantMatched) {
				t.Fatalf("MatchedRuleIDs = %v, want %v", result.MatchedRuleIDs, tt.wantMatched)
			}
			for i := range tt.wantMatched {
				if result.MatchedRuleIDs[i] != tt.wantMatched[i] {
					t.Errorf("MatchedRuleIDs[%d] = %s, want %s", i, result.MatchedRuleIDs[i], tt.wantMatched[i])
				}
			}
			if result.ProcessingStopped != (tt.wantStoppedBy != "") {
				t.Errorf("ProcessingStopped = %v", result.ProcessingStopped)
			}
			if result.StoppedByRule != tt.wantStoppedBy {
				t.Errorf("StoppedByRule = %q, want %q", result.StoppedByRule, tt.wantStoppedBy)
			}
		})
	}
}

func TestRulesEngine_CategoryAndStatus(t *testing.T) {
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	past := now.Add(-24 * time.Hour)
	future := now.Add(24 * time.Hour)

	config := engine.DefaultConfig().WithClock(func() time.Time { return now })
	eng, _ := setup(t, config,
		newRule("orders-active", 1),
		newRule("billing-active", 1, withCategory("billing")),
		newRule("orders-draft", 1, withStatus(rules.StatusDraft)),
		newRule("orders-inactive", 1, withStatus(rules.StatusInactive)),
		newRule("orders-expired", 1, withWindow(nil, &past)),
		newRule("orders-future", 1, withWindow(&future, nil)),
		newRule("orders-window", 1, withWindow(&past, &future)),
	)

	result, err := eng.Evaluate(context.Background(), orderContext(1), "orders")
	if err != nil {
		t.Fatal(err)
	}

	want := map[string]bool{"orders-active": true, "orders-window": true}
	if len(result.MatchedRuleIDs) != len(want) {
		t.Fatalf("MatchedRuleIDs = %v, want %v", result.MatchedRuleIDs, want)
	}
	for _, id := range result.MatchedRuleIDs {
		if !want[id] {
			t.Errorf("unexpected match %s", id)
		}
	}

	all, err := eng.Evaluate(context.Background(), orderContext(1), "")
	if err != nil {
		t.Fatal(err)
	}
	if all.RulesMatched != 3 {
		t.Errorf("RulesMatched across categories = %d, want 3", all.RulesMatched)
	}
}

func TestRulesEngine_NoRules(t *testing.T) {
	eng, _ := setup(t, nil)

	result, err := eng.Evaluate(context.Background(), rules.Context{}, "orders")
	if err != nil {
		t.Fatal(err)
	}
	if result.RulesEvaluated != 0 || result.RulesMatched != 0 {
		t.Errorf("result = %+v", result)
	}
	if result.MatchedRuleIDs == nil {
		t.Error("MatchedRuleIDs is nil, want empty slice")
	}
}

func TestRulesEngine_DoesNotMutateContext(t *testing.T) {
	eng, _ := setup(t, nil, newRule("r1", 1, withCondition(highValue)))

	input := orderContext(5000)
	if _, err := eng.Evaluate(context.Background(), input, ""); err != nil {
		t.Fatal(err)
	}

	order := input["order"].(map[string]interface{})
	if len(input) != 1 || len(order) != 2 || order["total"] != 5000.0 {
		t.Errorf("context was modified: %v", input)
	}
}

func TestRulesEngine_EvaluateGroup(t *testing.T) {
	ctx := context.Background()
	eng, st := setup(t, nil,
		newRule("r1", 2, withCondition(highValue)),
		newRule("r2", 1),
		newRule("r3", 0),
	)

	if _, err := st.CreateGroup(ctx, &rules.RuleGroup{ID: "g1", Name: "group", RuleIDs: []string{"r1", "r2"}}, "test"); err != nil {
		t.Fatal(err)
	}

	result, err := eng.EvaluateGroup(ctx, "g1", orderContext(2000))
	if err != nil {
		t.Fatalf("EvaluateGroup() error = %v", err)
	}
	if result.RulesEvaluated != 2 {
		t.Errorf("RulesEvaluated = %d, want 2", result.RulesEvaluated)
	}
	if len(result.MatchedRuleIDs) != 2 || result.MatchedRuleIDs[0] != "r2" || result.MatchedRuleIDs[1] != "r1" {
		t.Errorf("MatchedRuleIDs = %v, want [r2 r1]", result.MatchedRuleIDs)
	}

	if _, err := eng.EvaluateGroup(ctx, "missing", orderContext(1)); !errors.Is(err, rules.ErrNotFound) {
		t.Errorf("EvaluateGroup(missing) error = %v, want ErrNotFound", err)
	}
}

func TestRulesEngine_ActivateDeactivate(t *testing.T) {
	ctx := context.Background()
	eng, st := setup(t, nil, newRule("r1", 1, withStatus(rules.StatusDraft)))

	result, err := eng.Evaluate(ctx, orderContext(1), "")
	if err != nil {
		t.Fatal(err)
	}
	if result.RulesMatched != 0 {
		t.Fatalf("draft rule matched")
	}

	rule, err := eng.ActivateRule(ctx, "r1", "alice")
	if err != nil {
		t.Fatalf("ActivateRule() error = %v", err)
	}
	if rule.Status != rules.StatusActive || rule.Version != 2 {
		t.Errorf("after activate: status %s version %d", rule.Status, rule.Version)
	}

	result, err = eng.Evaluate(ctx, orderContext(1), "")
	if err != nil {
		t.Fatal(err)
	}
	if result.RulesMatched != 1 {
		t.Errorf("RulesMatched = %d after activation, want 1", result.RulesMatched)
	}

	rule, err = eng.DeactivateRule(ctx, "r1", "alice")
	if err != nil {
		t.Fatalf("DeactivateRule() error = %v", err)
	}
	if rule.Status != rules.StatusInactive || rule.Version != 3 {
		t.Errorf("after deactivate: status %s version %d", rule.Status, rule.Version)
	}

	versions, err := st.GetRuleVersions(ctx, "r1")
	if err != nil {
		t.Fatal(err)
	}
	if versions[1].ChangeReason != "activate" || versions[2].ChangeReason != "deactivate" {
		t.Errorf("change reasons = %q, %q", versions[1].ChangeReason, versions[2].ChangeReason)
	}

	if _, err := eng.ActivateRule(ctx, "missing", "alice"); !errors.Is(err, rules.ErrNotFound) {
		t.Errorf("ActivateRule(missing) error = %v, want ErrNotFound", err)
	}
}

func TestRulesEngine_Limits(t *testing.T) {
	ctx := context.Background()

	t.Run("max rules", func(t *testing.T) {
		eng, _ := setup(t, engine.DefaultConfig().WithMaxRules(1), newRule("r1", 1), newRule("r2", 2))
		if _, err := eng.Evaluate(ctx, rules.Context{}, ""); err == nil {
			t.Error("Evaluate() over the rule limit succeeded")
		}
	})

	t.Run("cancelled context", func(t *testing.T) {
		eng, _ := setup(t, nil, newRule("r1", 1))
		cctx, cancel := context.WithCancel(ctx)
		cancel()

		ruleset := []*rules.BusinessRule{newRule("x", 1)}
		if _, err := eng.EvaluateRuleSet(cctx, ruleset, rules.Context{}); !errors.Is(err, context.Canceled) {
			t.Errorf("EvaluateRuleSet() error = %v, want context.Canceled", err)
		}
	})

	t.Run("invalid config", func(t *testing.T) {
		st := store.New("tenant-a", repository.NewMemoryRepository(), nil, nil)
		_, err := engine.New(st, engine.DefaultConfig().WithMaxRules(-1), nil)
		if !errors.Is(err, engine.ErrInvalidConfig) {
			t.Errorf("New() error = %v, want ErrInvalidConfig", err)
		}
	})

	t.Run("nil source", func(t *testing.T) {
		if _, err := engine.New(nil, nil, nil); err == nil {
			t.Error("New(nil) succeeded")
		}
	})
}

type fakeMetrics struct {
	mu          sync.Mutex
	evaluations int
	matches     map[string]int
	lastStopped bool
}

func (m *fakeMetrics) RecordEvaluation(category string, d time.Duration, evaluated, matched int, stopped bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.evaluations++
	m.lastStopped = stopped
}

func (m *fakeMetrics) RecordRuleMatch(ruleID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.matches == nil {
		m.matches = make(map[string]int)
	}
	m.matches[ruleID]++
}

func TestRulesEngine_Metrics(t *testing.T) {
	eng, _ := setup(t, nil, newRule("r1", 1, withStop()), newRule("r2", 2))
	m := &fakeMetrics{}
	eng.SetMetrics(m)

	for i := 0; i < 3; i++ {
		if _, err := eng.Evaluate(context.Background(), rules.Context{}, ""); err != nil {
			t.Fatal(err)
		}
	}

	if m.evaluations != 3 {
		t.Errorf("evaluations = %d, want 3", m.evaluations)
	}
	if m.matches["r1"] != 3 || m.matches["r2"] != 0 {
		t.Errorf("matches = %v", m.matches)
	}
	if !m.lastStopped {
		t.Error("stopped flag not recorded")
	}
}

func TestRulesEngine_Tracing(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	defer provider.Shutdown(context.Background())

	eng, _ := setup(t, nil, newRule("r1", 1, withStop()))
	eng.SetTracer(provider.Tracer("test"))

	if _, err := eng.Evaluate(context.Background(), rules.Context{}, "orders"); err != nil {
		t.Fatal(err)
	}

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("recorded %d spans, want 1", len(spans))
	}
	span := spans[0]
	if span.Name() != "rules.evaluate" {
		t.Errorf("span name = %q", span.Name())
	}

	attrs := make(map[string]interface{})
	for _, kv := range span.Attributes() {
		attrs[string(kv.Key)] = kv.Value.AsInterface()
	}
	if attrs["rules.tenant_id"] != "tenant-a" || attrs["rules.category"] != "orders" {
		t.Errorf("attributes = %v", attrs)
	}
	if attrs["rules.matched"] != int64(1) || attrs["rules.stopped_by_rule"] != "r1" {
		t.Errorf("attributes = %v", attrs)
	}
}

func TestRulesEngine_ConcurrentEvaluateAndUpdate(t *testing.T) {
	ctx := context.Background()
	eng, st := setup(t, nil,
		newRule("r1", 1, withCondition(highValue)),
		newRule("r2", 2),
	)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				result, err := eng.Evaluate(ctx, orderContext(2000), "")
				if err != nil {
					t.Error(err)
					return
				}
				if result.RulesEvaluated != 2 {
					t.Errorf("RulesEvaluated = %d, want 2", result.RulesEvaluated)
				}
			}
		}()
		go func(i int) {
			defer wg.Done()
			p := 5 + i
			if _, err := st.UpdateRule(ctx, "r2", rules.RulePatch{Priority: &p}, rules.ChangeMeta{Actor: "writer"}); err != nil {
				t.Error(err)
			}
		}(i)
	}
	wg.Wait()

	current, err := st.GetRule(ctx, "r2")
	if err != nil {
		t.Fatal(err)
	}
	if current.Version != 11 {
		t.Errorf("Version = %d, want 11", current.Version)
	}
}

func TestRulesEngine_LogsEvaluationID(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Config{Level: "debug", Format: "json", Writer: &buf})
	if err != nil {
		t.Fatal(err)
	}

	st := store.New("tenant-a", repository.NewMemoryRepository(), nil, nil)
	if _, err := st.AddRule(context.Background(), newRule("a", 1, withCondition(highValue)), "test"); err != nil {
		t.Fatal(err)
	}
	eng, err := engine.New(st, nil, logger)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := eng.Evaluate(context.Background(), orderContext(1500), ""); err != nil {
		t.Fatal(err)
	}

	var ids []string
	for _, line := range bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n")) {
		var entry map[string]interface{}
		if err := json.Unmarshal(line, &entry); err != nil {
			t.Fatalf("invalid log line %q: %v", line, err)
		}
		if entry["msg"] != "rule matched" && entry["msg"] != "evaluation completed" {
			continue
		}
		id, _ := entry["evaluation_id"].(string)
		if id == "" || entry["tenant_id"] != "tenant-a" {
			t.Errorf("log entry missing evaluation fields: %v", entry)
		}
		ids = append(ids, id)
	}
	if len(ids) != 2 || ids[0] != ids[1] {
		t.Errorf("evaluation ids = %v, want two equal ids", ids)
	}
}

func TestRulesEngine_EvaluateGroupSkipsInactiveMembers(t *testing.T) {
	ctx := context.Background()
	eng, st := setup(t, nil,
		newRule("on", 1),
		newRule("off", 2, withStatus(rules.StatusInactive)),
	)
	if _, err := st.CreateGroup(ctx, &rules.RuleGroup{ID: "g1", Name: "group", RuleIDs: []string{"on", "off"}}, "test"); err != nil {
		t.Fatal(err)
	}

	all, err := eng.Evaluate(ctx, orderContext(10), "")
	if err != nil {
		t.Fatal(err)
	}
	group, err := eng.EvaluateGroup(ctx, "g1", orderContext(10))
	if err != nil {
		t.Fatal(err)
	}
	if all.RulesEvaluated != 1 || group.RulesEvaluated != 1 {
		t.Errorf("RulesEvaluated: Evaluate = %d, EvaluateGroup = %d, want 1 and 1", all.RulesEvaluated, group.RulesEvaluated)
	}
	if len(group.MatchedRuleIDs) != 1 || group.MatchedRuleIDs[0] != "on" {
		t.Errorf("MatchedRuleIDs = %v, want [on]", group.MatchedRuleIDs)
	}
}

func TestRulesEngine_EvaluateRuleSetKeepsInputOrder(t *testing.T) {
	eng, _ := setup(t, nil)
	ruleset := []*rules.BusinessRule{newRule("c", 30), newRule("a", 10), newRule("b", 20)}

	result, err := eng.EvaluateRuleSet(context.Background(), ruleset, orderContext(10))
	if err != nil {
		t.Fatal(err)
	}
	if got := result.MatchedRuleIDs; len(got) != 3 || got[0] != "a" || got[1] != "b" || got[2] != "c" {
		t.Errorf("MatchedRuleIDs = %v, want [a b c]", got)
	}
	if ruleset[0].ID != "c" || ruleset[1].ID != "a" || ruleset[2].ID != "b" {
		t.Errorf("input reordered to [%s %s %s]", ruleset[0].ID, ruleset[1].ID, ruleset[2].ID)
	}
}
