package utils

import (
	"errors"
	"fmt"
)

var ErrorRecordNotFound = errors.New("record not found")

// ValidationError reports malformed or missing input. Nothing has been
// written when one is returned.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

func NewValidationError(format string, args ...any) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// ConflictError reports a state conflict: insufficient stock, a duplicate
// reference, re-applying an already-applied ledger effect, or a status
// transition the transition table does not allow.
type ConflictError struct {
	Entity string
	Id     int
	Reason string
}

func (e *ConflictError) Error() string {
	if e.Id > 0 {
		return fmt.Sprintf("%s %d: %s", e.Entity, e.Id, e.Reason)
	}
	return fmt.Sprintf("%s: %s", e.Entity, e.Reason)
}

func NewConflictError(entity string, id int, format string, args ...any) error {
	return &ConflictError{Entity: entity, Id: id, Reason: fmt.Sprintf(format, args...)}
}

func IsConflictError(err error) bool {
	var ce *ConflictError
	return errors.As(err, &ce)
}

// ConsistencyError means an invariant no longer holds after deltas were
// computed (e.g. an account rollup mismatch). It aborts the unit of work
// and must never be silently corrected.
type ConsistencyError struct {
	Reason string
}

func (e *ConsistencyError) Error() string { return e.Reason }

func NewConsistencyError(format string, args ...any) error {
	return &ConsistencyError{Reason: fmt.Sprintf(format, args...)}
}

func IsConsistencyError(err error) bool {
	var ce *ConsistencyError
	return errors.As(err, &ce)
}

func ErrorPanic(err error) {
	if err != nil {
		panic(err)
	}
}
