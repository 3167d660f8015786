package engine

import (
	"fmt"
	"time"
)

// EvaluationError wraps a failure raised while evaluating a rule.
type EvaluationError struct {
	RuleID  string
	Message string
	Cause   error
}

// Error returns the error message.
func (e *EvaluationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("rule %s: %s: %v", e.RuleID, e.Message, e.Cause)
	}
	return fmt.Sprintf("rule %s: %s", e.RuleID, e.Message)
}

// Unwrap returns the underlying cause.
func (e *EvaluationError) Unwrap() error {
	return e.Cause
}

// TimeoutError indicates an evaluation exceeded the configured timeout.
type TimeoutError struct {
	RulesEvaluated int
	Timeout        time.Duration
	Cause          error
}

// Error returns the error message.
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("evaluation timeout after %v (%d rules evaluated)", e.Timeout, e.RulesEvaluated)
}

// Unwrap returns the underlying cause.
func (e *TimeoutError) Unwrap() error {
	return e.Cause
}
