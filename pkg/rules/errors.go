package rules

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors matched with errors.Is.
var (
	// ErrNotFound indicates an unknown rule, group or version.
	ErrNotFound = errors.New("not found")

	// ErrConfiguration indicates a rule authoring error such as an unknown
	// action type or operator.
	ErrConfiguration = errors.New("configuration error")

	// ErrValidation indicates a rule is missing required fields or holds
	// invalid values.
	ErrValidation = errors.New("validation error")
)

// NotFoundError indicates that a rule, group or rule version does not exist.
type NotFoundError struct {
	// Entity is "rule", "group" or "version".
	Entity string

	// ID is the rule or group id.
	ID string

	// Version is set for missing rule versions.
	Version int
}

// Error returns the error message.
func (e *NotFoundError) Error() string {
	if e.Entity == "version" {
		return fmt.Sprintf("rule %s version %d not found", e.ID, e.Version)
	}
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// Is reports whether target is ErrNotFound.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// NewRuleNotFound returns a NotFoundError for a rule id.
func NewRuleNotFound(id string) *NotFoundError {
	return &NotFoundError{Entity: "rule", ID: id}
}

// NewGroupNotFound returns a NotFoundError for a group id.
func NewGroupNotFound(id string) *NotFoundError {
	return &NotFoundError{Entity: "group", ID: id}
}

// NewVersionNotFound returns a NotFoundError for a rule version.
func NewVersionNotFound(id string, version int) *NotFoundError {
	return &NotFoundError{Entity: "version", ID: id, Version: version}
}

// ConfigurationError indicates a malformed rule definition: an unknown
// action type or operator, or a condition value of the wrong shape.
type ConfigurationError struct {
	// RuleID is the offending rule, when known.
	RuleID string

	// Field locates the problem (e.g. "actions[1].action_type").
	Field string

	// Message describes the problem.
	Message string

	// Cause is the underlying error, if any.
	Cause error
}

// Error returns the error message.
func (e *ConfigurationError) Error() string {
	var b strings.Builder
	b.WriteString("configuration error")
	if e.RuleID != "" {
		fmt.Fprintf(&b, " in rule %s", e.RuleID)
	}
	if e.Field != "" {
		fmt.Fprintf(&b, " at %s", e.Field)
	}
	b.WriteString(": ")
	b.WriteString(e.Message)
	if e.Cause != nil {
		fmt.Fprintf(&b, ": %v", e.Cause)
	}
	return b.String()
}

// Unwrap returns the underlying cause.
func (e *ConfigurationError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is ErrConfiguration.
func (e *ConfigurationError) Is(target error) bool {
	return target == ErrConfiguration
}

// ValidationError indicates a rule failed validation.
type ValidationError struct {
	// RuleID is the offending rule, when known.
	RuleID string

	// Errors lists every validation problem found.
	Errors []string
}

// Error returns the error message.
func (e *ValidationError) Error() string {
	if e.RuleID == "" {
		return fmt.Sprintf("validation failed: %s", strings.Join(e.Errors, "; "))
	}
	return fmt.Sprintf("rule %s validation failed: %s", e.RuleID, strings.Join(e.Errors, "; "))
}

// Is reports whether target is ErrValidation.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// IsNotFound reports whether err is or wraps a NotFoundError.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
