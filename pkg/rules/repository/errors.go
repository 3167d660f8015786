package repository

import "fmt"

// StorageError represents a failure of a repository backend.
type StorageError struct {
	Backend   string // "memory", "sqlite", "postgres"
	Operation string // e.g. "put_rule", "list_versions"
	Cause     error
}

// Error implements the error interface.
func (e *StorageError) Error() string {
	return fmt.Sprintf("repository error [backend=%s, operation=%s]: %v", e.Backend, e.Operation, e.Cause)
}

// Unwrap returns the underlying cause error.
func (e *StorageError) Unwrap() error {
	return e.Cause
}

func newStorageError(backend, operation string, cause error) *StorageError {
	return &StorageError{Backend: backend, Operation: operation, Cause: cause}
}
