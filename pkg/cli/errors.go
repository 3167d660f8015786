package cli

import (
	"errors"
	"fmt"
)

// Exit codes returned by the rulesengine command.
const (
	ExitOK      = 0
	ExitError   = 1
	ExitFailure = 2
)

// ConfigError reports an invalid flag or flag combination.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error in %s: %s", e.Field, e.Message)
}

// NewConfigError creates a ConfigError.
func NewConfigError(field, message string) *ConfigError {
	return &ConfigError{Field: field, Message: message}
}

// CommandError wraps the failure of a subcommand.
type CommandError struct {
	Command string
	Err     error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("command %s failed: %v", e.Command, e.Err)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// NewCommandError creates a CommandError.
func NewCommandError(command string, err error) *CommandError {
	return &CommandError{Command: command, Err: err}
}

// FailureError signals that a command ran correctly but its subject did
// not pass: lint found invalid rules, or a test suite had failures. It maps
// to ExitFailure.
type FailureError struct {
	Message string
}

func (e *FailureError) Error() string {
	return e.Message
}

// Failuref creates a FailureError.
func Failuref(format string, args ...any) *FailureError {
	return &FailureError{Message: fmt.Sprintf(format, args...)}
}

// ExitCode maps an error returned by a command to a process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var failure *FailureError
	if errors.As(err, &failure) {
		return ExitFailure
	}
	return ExitError
}
