package source

import "fmt"

// LoadError reports a rules file or directory that could not be read or parsed.
type LoadError struct {
	// Path is the file or directory that failed to load.
	Path string

	// Message describes the failure.
	Message string

	// Cause is the underlying error, if any.
	Cause error
}

// Error implements the error interface.
func (e *LoadError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("failed to load rules from %q: %s: %v", e.Path, e.Message, e.Cause)
	}
	return fmt.Sprintf("failed to load rules from %q: %s", e.Path, e.Message)
}

// Unwrap returns the underlying error.
func (e *LoadError) Unwrap() error {
	return e.Cause
}

// GitError reports a failed git operation.
type GitError struct {
	Operation  string
	Repository string
	Cause      error
}

// Error implements the error interface.
func (e *GitError) Error() string {
	return fmt.Sprintf("git %s failed for %s: %v", e.Operation, e.Repository, e.Cause)
}

// Unwrap returns the underlying error.
func (e *GitError) Unwrap() error {
	return e.Cause
}
