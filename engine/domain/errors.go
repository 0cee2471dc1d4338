package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for configuration and validation failures.
var (
	ErrNoKeywords     = errors.New("no keywords configured")
	ErrUnknownSource  = errors.New("unknown source")
	ErrMissingField   = errors.New("missing required field")
	ErrAllSourcesFail = errors.New("all sources failed")
	ErrNotFound       = errors.New("not found")
)

// ValidationError wraps a sentinel with the offending field.
type ValidationError struct {
	Field   string
	Value   string
	Wrapped error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s: %s (value=%q)", e.Wrapped, e.Field, e.Value)
}

func (e *ValidationError) Unwrap() error { return e.Wrapped }

// NewValidationError creates a ValidationError.
func NewValidationError(field, value string, wrapped error) *ValidationError {
	return &ValidationError{Field: field, Value: value, Wrapped: wrapped}
}

// FetchError records a single feed adapter failure. It is contained in
// per-source statistics and never aborts an aggregation run.
type FetchError struct {
	Source  SourceName
	Wrapped error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.Source, e.Wrapped)
}

func (e *FetchError) Unwrap() error { return e.Wrapped }

// AnalysisError records an AI analysis failure for a post. The post is kept
// as a raw Post; the error never fails the run.
type AnalysisError struct {
	PostID  string
	Wrapped error
}

func (e *AnalysisError) Error() string {
	return fmt.Sprintf("analyze %s: %v", e.PostID, e.Wrapped)
}

func (e *AnalysisError) Unwrap() error { return e.Wrapped }

// PersistenceError wraps a durable-storage failure. Unlike fetch and
// analysis errors it escalates to the pipeline caller.
type PersistenceError struct {
	Op      string
	Wrapped error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Wrapped)
}

func (e *PersistenceError) Unwrap() error { return e.Wrapped }
