// Package rules defines the data model of the business rules engine.
//
// A BusinessRule pairs a tree of conditions (ConditionGroup) with an ordered
// list of actions. Conditions are matched against a Context, an arbitrary
// map of field names to values, using a closed set of operators. Actions are
// never performed by the engine: executing an action yields an Effect, a
// plain data record that callers apply to their own systems.
//
// # Conditions
//
// A Condition names a dot-separated field path into the context, an operator
// and an expected value:
//
//	rules.Condition{Field: "issue.severity", Operator: rules.OperatorEquals, Value: "critical"}
//
// Supported operators are equals, not_equals, greater_than, less_than,
// contains, in, is_null and between. A ConditionGroup combines its direct
// conditions and its nested groups with a single logical operator (AND/OR).
//
// # Lifecycle
//
// Rules move through draft, active, inactive and archived statuses. Every
// change creates a new immutable RuleVersion snapshot; the current rule is
// always the highest version. Deleting a rule archives it.
//
// # Validation
//
// ValidateRule is applied whenever a rule is added or updated. Author errors
// such as an unknown operator or action type, or a malformed between bound,
// are reported as ConfigurationError. Missing required fields are reported
// as ValidationError.
package rules
