// Package simulation runs rules against sample data without side effects.
//
// A Runner wraps an engine and offers three read-only tools:
//
//   - RunTestCase checks one rule against an input context and the
//     expected match and action types.
//   - RunSimulation evaluates a set of rules against many contexts with
//     the engine's ordering and stop_processing semantics.
//   - AnalyzeImpact projects how many contexts a rule would match after a
//     hypothetical activation or deactivation.
//
// None of them modify the rule store.
package simulation
