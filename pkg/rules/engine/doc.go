// Package engine evaluates business rules against event contexts.
//
// The package is an interpreter over the data model in package rules. It is
// built from small, independently usable parts:
//
//   - ConditionEvaluator resolves a dot-separated field path in a context and
//     applies one operator. Missing fields and type mismatches are "no match",
//     never errors.
//   - GroupEvaluator combines the conditions and nested groups of a
//     ConditionGroup with AND or OR. Empty groups match.
//   - ActionExecutor turns an Action into an Effect. Unknown action types
//     fail with a *rules.ConfigurationError.
//   - RuleMatcher combines status, effective window and conditions for a
//     single rule and runs its actions in declaration order.
//   - RulesEngine evaluates a tenant's rule set in priority order.
//
// # Evaluation Flow
//
//  1. Fetch copies of the tenant's active rules (optionally one category)
//  2. Sort by ascending priority, ties broken by rule id
//  3. For each rule: check activity and conditions; on match record the rule,
//     execute its actions and collect their effects
//  4. Stop immediately when a matching rule has stop_processing set
//
// RulesEvaluated counts only the rules actually tested before a stop.
//
// # Basic Usage
//
//	st := store.New("tenant-a", repository.NewMemoryRepository(), nil, logger)
//	eng, err := engine.New(st, engine.DefaultConfig(), logger)
//	if err != nil {
//	    return err
//	}
//	result, err := eng.Evaluate(ctx, rules.Context{"type": "test"}, "")
//
// # Thread Safety
//
// RulesEngine is safe for concurrent use once constructed. Evaluation holds
// no locks; it works on rule copies fetched at the start of each call.
package engine
