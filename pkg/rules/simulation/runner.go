package simulation

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"mercator-hq/rulesengine/pkg/rules"
	"mercator-hq/rulesengine/pkg/rules/engine"
)

// Runner runs test cases, simulations and impact analyses against the rules
// of one engine. It only reads from the engine's rule source.
type Runner struct {
	engine *engine.RulesEngine
	logger *slog.Logger
}

// New creates a runner for eng.
func New(eng *engine.RulesEngine, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		engine: eng,
		logger: logger.With("component", "simulation", "tenant_id", eng.TenantID()),
	}
}

// RunTestCase evaluates the test case's rule against its input context.
// It passes when the match outcome equals ExpectedMatch and, for a match,
// the executed action types equal ExpectedActions as a multiset.
func (r *Runner) RunTestCase(ctx context.Context, tc TestCase) (bool, *TestDetails, error) {
	rule, err := r.engine.Source().GetRule(ctx, tc.RuleID)
	if err != nil {
		return false, nil, err
	}

	matcher := r.engine.Matcher()
	details := &TestDetails{
		RuleID:          tc.RuleID,
		Name:            tc.Name,
		Matched:         matcher.Evaluate(rule, tc.InputContext),
		ExpectedActions: tc.ExpectedActions,
		ActionsCorrect:  true,
	}
	details.MatchCorrect = details.Matched == tc.ExpectedMatch

	if details.Matched {
		effects, err := matcher.ExecuteActions(rule, tc.InputContext)
		if err != nil {
			return false, details, err
		}
		details.Effects = effects
		for _, e := range effects {
			details.ActualActions = append(details.ActualActions, e.ActionType)
		}
		details.ActionsCorrect = sameActionTypes(details.ActualActions, tc.ExpectedActions)
	}

	passed := details.MatchCorrect && details.ActionsCorrect
	r.logger.Debug("test case run",
		"rule_id", tc.RuleID,
		"name", tc.Name,
		"passed", passed,
		"matched", details.Matched,
	)
	return passed, details, nil
}

// RunSuite runs every test case and keeps going after failures and errors.
func (r *Runner) RunSuite(ctx context.Context, cases []TestCase) *SuiteResult {
	result := &SuiteResult{Total: len(cases), Outcomes: make([]TestOutcome, 0, len(cases))}
	for _, tc := range cases {
		passed, details, err := r.RunTestCase(ctx, tc)
		outcome := TestOutcome{Passed: passed && err == nil, Details: details}
		if err != nil {
			outcome.Error = err.Error()
		}
		if outcome.Passed {
			result.Passed++
		} else {
			result.Failed++
		}
		result.Outcomes = append(result.Outcomes, outcome)
	}
	return result
}

// RunSimulation evaluates the selected rules against every sample context.
// Each context is evaluated independently with the engine's ordering and
// stop_processing semantics. Results keep the input order.
func (r *Runner) RunSimulation(ctx context.Context, sim Simulation) (*SimulationResult, error) {
	ruleset, err := r.loadRules(ctx, sim.RuleIDs)
	if err != nil {
		return nil, err
	}

	result := &SimulationResult{
		SimulationID:  sim.ID,
		Name:          sim.Name,
		TotalContexts: len(sim.SampleContexts),
		Results:       make([]ContextResult, 0, len(sim.SampleContexts)),
		StartedAt:     r.engine.Matcher().Now(),
	}

	for _, sample := range sim.SampleContexts {
		eval, err := r.engine.EvaluateRuleSet(ctx, ruleset, sample.Context)
		if err != nil {
			result.Status = StatusCancelled
			result.CompletedAt = r.engine.Matcher().Now()
			return result, fmt.Errorf("simulation %s: context %s: %w", sim.ID, sample.ID, err)
		}

		result.Results = append(result.Results, ContextResult{
			ContextID:         sample.ID,
			MatchedRules:      eval.MatchedRuleIDs,
			RulesEvaluated:    eval.RulesEvaluated,
			ProcessingStopped: eval.ProcessingStopped,
			StoppedByRule:     eval.StoppedByRule,
		})
		if eval.RulesMatched > 0 {
			result.ContextsMatched++
		}
	}

	result.Status = StatusCompleted
	result.CompletedAt = r.engine.Matcher().Now()

	r.logger.Info("simulation completed",
		"simulation_id", sim.ID,
		"rules", len(ruleset),
		"contexts", result.TotalContexts,
		"contexts_matched", result.ContextsMatched,
	)
	return result, nil
}

// AnalyzeImpact counts how many samples the rule matches now and how many
// it would match after the hypothetical change named by analysisType
// ("deactivate" or "activate"). The stored rule is never modified.
func (r *Runner) AnalyzeImpact(ctx context.Context, ruleID, analysisType string, samples []SampleContext) (*ImpactAnalysisResult, error) {
	rule, err := r.engine.Source().GetRule(ctx, ruleID)
	if err != nil {
		return nil, err
	}

	hypothetical := rule.Clone()
	switch analysisType {
	case AnalysisDeactivate:
		hypothetical.Status = rules.StatusInactive
	case AnalysisActivate:
		hypothetical.Status = rules.StatusActive
	default:
		return nil, &rules.ConfigurationError{
			RuleID:  ruleID,
			Field:   "analysis_type",
			Message: fmt.Sprintf("unsupported analysis type %q", analysisType),
		}
	}

	matcher := r.engine.Matcher()
	result := &ImpactAnalysisResult{
		RuleID:           ruleID,
		AnalysisType:     analysisType,
		TotalContexts:    len(samples),
		AffectedContexts: []string{},
	}
	for _, sample := range samples {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		current := matcher.Evaluate(rule, sample.Context)
		projected := matcher.Evaluate(hypothetical, sample.Context)
		if current {
			result.CurrentMatches++
		}
		if projected {
			result.ProjectedMatches++
		}
		if current != projected {
			result.AffectedContexts = append(result.AffectedContexts, sample.ID)
		}
	}
	result.Delta = result.ProjectedMatches - result.CurrentMatches

	r.logger.Info("impact analysis completed",
		"rule_id", ruleID,
		"analysis_type", analysisType,
		"current_matches", result.CurrentMatches,
		"projected_matches", result.ProjectedMatches,
	)
	return result, nil
}

// loadRules returns the rules named by ids, or every tenant rule when ids is empty.
func (r *Runner) loadRules(ctx context.Context, ids []string) ([]*rules.BusinessRule, error) {
	source := r.engine.Source()
	if len(ids) == 0 {
		return source.GetRules(ctx, rules.RuleFilter{})
	}

	ruleset := make([]*rules.BusinessRule, 0, len(ids))
	for _, id := range ids {
		rule, err := source.GetRule(ctx, id)
		if err != nil {
			return nil, err
		}
		ruleset = append(ruleset, rule)
	}
	return ruleset, nil
}

func sameActionTypes(actual, expected []rules.ActionType) bool {
	if len(actual) != len(expected) {
		return false
	}
	a := append([]rules.ActionType(nil), actual...)
	e := append([]rules.ActionType(nil), expected...)
	sort.Slice(a, func(i, j int) bool { return a[i] < a[j] })
	sort.Slice(e, func(i, j int) bool { return e[i] < e[j] })
	for i := range a {
		if a[i] != e[i] {
			return false
		}
	}
	return true
}
