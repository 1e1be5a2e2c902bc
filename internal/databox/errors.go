package databox

import (
	"context"
	"errors"
	"fmt"
)

// Sentinel errors. Every typed error below matches exactly one of these with errors.Is.
var (
	ErrValidation      = errors.New("validation failed")
	ErrNotFound        = errors.New("not found")
	ErrIndexOutOfRange = errors.New("row index out of range")
	ErrPersistence     = errors.New("persistence failed")
	ErrStaleVersion    = errors.New("stale version")
	ErrNoTenant        = errors.New("no authenticated tenant")

	// ErrDuplicateKey is only returned by the credential manager when token
	// generation keeps colliding, which means the generator is broken.
	ErrDuplicateKey = errors.New("duplicate api key")
)

// ValidationError reports a value or schema that violates a column or project rule.
// Column is empty for errors that are not tied to a single column.
type ValidationError struct {
	Column string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Column == "" {
		return fmt.Sprintf("validation failed: %s", e.Reason)
	}
	return fmt.Sprintf("validation failed for %q: %s", e.Column, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func invalid(column, format string, args ...any) error {
	return &ValidationError{Column: column, Reason: fmt.Sprintf(format, args...)}
}

// NotFoundError reports a missing project, table, key, policy or bucket.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// IndexOutOfRangeError reports a positional row reference outside [0, Len).
type IndexOutOfRangeError struct {
	Index int
	Len   int
}

func (e *IndexOutOfRangeError) Error() string {
	return fmt.Sprintf("row index %d out of range [0, %d)", e.Index, e.Len)
}

func (e *IndexOutOfRangeError) Is(target error) bool { return target == ErrIndexOutOfRange }

// PersistenceError wraps a failed load or save of a tenant graph.
type PersistenceError struct {
	Op     string // "load" or "save"
	Tenant TenantID
	Err    error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s tenant %s: %v", e.Op, e.Tenant, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

func (e *PersistenceError) Is(target error) bool { return target == ErrPersistence }

// Timeout reports whether the operation failed because its deadline expired.
func (e *PersistenceError) Timeout() bool {
	return errors.Is(e.Err, context.DeadlineExceeded)
}
