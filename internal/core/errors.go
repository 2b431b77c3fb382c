package core

import (
	"errors"
	"fmt"
	"strings"
)

// ErrBackendUnavailable is wrapped by every failure of the semantic backend.
var ErrBackendUnavailable = errors.New("semantic backend unavailable")

var ErrNotFound = errors.New("item not found")

// ValidationError reports malformed input to a tool-like operation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "invalid input: " + e.Reason
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// StoreError wraps a failure of the underlying store.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

func NewStoreError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StoreError{Op: op, Err: err}
}

// PartialFailure is reported when some inserts of a batch failed
// while the rest were stored.
type PartialFailure struct {
	Stored int
	Failed int
	Errs   []error
}

func (e *PartialFailure) Error() string {
	msgs := make([]string, 0, len(e.Errs))
	for _, err := range e.Errs {
		msgs = append(msgs, err.Error())
	}
	return fmt.Sprintf("stored %d, failed %d: %s", e.Stored, e.Failed, strings.Join(msgs, "; "))
}

func (e *PartialFailure) Unwrap() []error {
	return e.Errs
}
