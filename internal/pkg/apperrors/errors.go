package apperrors

import (
	"errors"
	"fmt"
	"strings"
)

// Taxonomy sentinels. Every typed error below unwraps to exactly one of these
// so callers can branch with errors.Is.
var (
	ErrValidation        = errors.New("validation failed")
	ErrNotFound          = errors.New("resource not found")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrConflict          = errors.New("conflict")
	ErrStorage           = errors.New("storage failure")
	ErrPermissionDenied  = errors.New("permission denied")
)

// ValidationError describes malformed or out-of-range input. Nothing is
// persisted when one is returned.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// NewValidationError creates a ValidationError for a single field
func NewValidationError(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// NotFoundError reports a referenced entity that does not exist
type NotFoundError struct {
	Entity string
	ID     any
}

func (e *NotFoundError) Error() string {
	if e.ID == nil {
		return fmt.Sprintf("%s not found", e.Entity)
	}
	return fmt.Sprintf("%s %v not found", e.Entity, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// NewNotFoundError creates a NotFoundError
func NewNotFoundError(entity string, id any) error {
	return &NotFoundError{Entity: entity, ID: id}
}

// InvalidTransitionError is returned when a requested status change is not an
// edge of the intervention state machine, or when an operation requires a
// status the entity is not in.
type InvalidTransitionError struct {
	Entity  string
	ID      int64
	From    string
	To      string
	// Op is set instead of To when an operation requires one of Allowed
	Op      string
	Allowed []string
}

func (e *InvalidTransitionError) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("cannot %s %s %d in status %s; requires: %s", e.Op, e.Entity, e.ID, e.From, strings.Join(e.Allowed, ", "))
	}
	allowed := "none (terminal state)"
	if len(e.Allowed) > 0 {
		allowed = strings.Join(e.Allowed, ", ")
	}
	return fmt.Sprintf("cannot move %s %d from %s to %s; allowed: %s", e.Entity, e.ID, e.From, e.To, allowed)
}

func (e *InvalidTransitionError) Unwrap() error { return ErrInvalidTransition }

// ConflictError reports that a concurrent writer won the race on an invariant
type ConflictError struct {
	Message string
	Err     error
}

func (e *ConflictError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ConflictError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrConflict, e.Err}
	}
	return []error{ErrConflict}
}

// NewConflictError creates a ConflictError
func NewConflictError(message string, err error) error {
	return &ConflictError{Message: message, Err: err}
}

// StorageError wraps a transaction or connection failure. It is always
// surfaced to the caller and never retried inside the core.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error during %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() []error { return []error{ErrStorage, e.Err} }

// NewStorageError wraps err as a StorageError unless it already belongs to the taxonomy
func NewStorageError(op string, err error) error {
	if err == nil {
		return nil
	}
	if IsBusiness(err) || errors.Is(err, ErrStorage) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}

// NewPermissionError creates a permission denied error with a message
func NewPermissionError(message string) error {
	return fmt.Errorf("%w: %s", ErrPermissionDenied, message)
}

// IsBusiness reports whether err is one of the caller-actionable business
// errors. Those are returned synchronously and never logged as failures.
func IsBusiness(err error) bool {
	return Is(err, ErrValidation, ErrNotFound, ErrInvalidTransition, ErrConflict, ErrPermissionDenied)
}

// Is returns whether err matches target or any of the errors in errList
func Is(err, target error, errList ...error) bool {
	if errors.Is(err, target) {
		return true
	}

	for _, e := range errList {
		if errors.Is(err, e) {
			return true
		}
	}

	return false
}
