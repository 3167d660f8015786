package simulation

import (
	"time"

	"mercator-hq/rulesengine/pkg/rules"
)

// TestCase pairs an input context with the expected outcome of one rule.
type TestCase struct {
	RuleID          string             `json:"rule_id" yaml:"rule_id"`
	Name            string             `json:"name" yaml:"name"`
	InputContext    rules.Context      `json:"input_context" yaml:"input_context"`
	ExpectedMatch   bool               `json:"expected_match" yaml:"expected_match"`
	ExpectedActions []rules.ActionType `json:"expected_actions,omitempty" yaml:"expected_actions,omitempty"`
}

// TestDetails explains the outcome of a test case.
type TestDetails struct {
	RuleID string `json:"rule_id"`
	Name   string `json:"name"`

	// Matched is the actual match outcome.
	Matched bool `json:"matched"`

	// MatchCorrect reports whether Matched equals the expectation,
	// independently of the action comparison.
	MatchCorrect bool `json:"match_correct"`

	// ActionsCorrect reports whether the executed action types equal the
	// expected ones as a multiset. It is true when the rule did not match.
	ActionsCorrect bool `json:"actions_correct"`

	ExpectedActions []rules.ActionType `json:"expected_actions,omitempty"`
	ActualActions   []rules.ActionType `json:"actual_actions,omitempty"`
	Effects         []rules.Effect     `json:"effects,omitempty"`
}

// TestOutcome is the result of one test case in a suite run.
type TestOutcome struct {
	Passed  bool         `json:"passed"`
	Details *TestDetails `json:"details,omitempty"`
	Error   string       `json:"error,omitempty"`
}

// SuiteResult summarizes a suite run.
type SuiteResult struct {
	Total    int           `json:"total"`
	Passed   int           `json:"passed"`
	Failed   int           `json:"failed"`
	Outcomes []TestOutcome `json:"outcomes"`
}

// SampleContext is a context tagged with a caller supplied id.
type SampleContext struct {
	ID      string        `json:"id" yaml:"id"`
	Context rules.Context `json:"context" yaml:"context"`
}

// Simulation is a named batch of contexts evaluated against a set of rules.
// An empty RuleIDs list selects every rule of the tenant.
type Simulation struct {
	ID             string          `json:"id" yaml:"id"`
	Name           string          `json:"name" yaml:"name"`
	RuleIDs        []string        `json:"rule_ids,omitempty" yaml:"rule_ids,omitempty"`
	SampleContexts []SampleContext `json:"sample_contexts" yaml:"sample_contexts"`
}

// Simulation statuses.
const (
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
)

// ContextResult is the outcome for one sample context.
type ContextResult struct {
	ContextID         string   `json:"context_id"`
	MatchedRules      []string `json:"matched_rules"`
	RulesEvaluated    int      `json:"rules_evaluated"`
	ProcessingStopped bool     `json:"processing_stopped"`
	StoppedByRule     string   `json:"stopped_by_rule,omitempty"`
}

// SimulationResult holds one ContextResult per sample context, in input order.
type SimulationResult struct {
	SimulationID    string          `json:"simulation_id"`
	Name            string          `json:"name"`
	Status          string          `json:"status"`
	Results         []ContextResult `json:"results"`
	TotalContexts   int             `json:"total_contexts"`
	ContextsMatched int             `json:"contexts_matched"`
	StartedAt       time.Time       `json:"started_at"`
	CompletedAt     time.Time       `json:"completed_at"`
}

// Impact analysis types.
const (
	AnalysisDeactivate = "deactivate"
	AnalysisActivate   = "activate"
)

// ImpactAnalysisResult compares how many contexts a rule matches now with
// how many it would match after a hypothetical change.
type ImpactAnalysisResult struct {
	RuleID           string `json:"rule_id"`
	AnalysisType     string `json:"analysis_type"`
	TotalContexts    int    `json:"total_contexts"`
	CurrentMatches   int    `json:"current_matches"`
	ProjectedMatches int    `json:"projected_matches"`

	// Delta is ProjectedMatches - CurrentMatches.
	Delta int `json:"delta"`

	// AffectedContexts lists the ids of contexts whose outcome changes.
	AffectedContexts []string `json:"affected_contexts"`
}
