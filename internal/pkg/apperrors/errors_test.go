package apperrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTypedErrorsUnwrapToSentinels(t *testing.T) {
	assert.ErrorIs(t, NewValidationError("successRating", "must be between 1 and 5"), ErrValidation)
	assert.ErrorIs(t, NewNotFoundError("student", int64(42)), ErrNotFound)
	assert.ErrorIs(t, &InvalidTransitionError{From: "Cancelled", To: "Completed"}, ErrInvalidTransition)
	assert.ErrorIs(t, NewConflictError("lost race", nil), ErrConflict)
	assert.ErrorIs(t, NewPermissionError("nope"), ErrPermissionDenied)

	cause := errors.New("dial tcp: refused")
	se := NewStorageError("begin", cause)
	assert.ErrorIs(t, se, ErrStorage)
	assert.ErrorIs(t, se, cause)
}

func TestInvalidTransitionError_Message(t *testing.T) {
	err := &InvalidTransitionError{Entity: "intervention", ID: 9, From: "Scheduled", To: "Completed", Allowed: []string{"In Progress", "Cancelled", "No Show"}}
	assert.Equal(t, "cannot move intervention 9 from Scheduled to Completed; allowed: In Progress, Cancelled, No Show", err.Error())

	terminal := &InvalidTransitionError{Entity: "intervention", ID: 9, From: "Cancelled", To: "Completed"}
	assert.Contains(t, terminal.Error(), "none (terminal state)")

	op := &InvalidTransitionError{Entity: "intervention", ID: 3, From: "Scheduled", Op: "schedule a follow-up for", Allowed: []string{"Completed"}}
	assert.Equal(t, "cannot schedule a follow-up for intervention 3 in status Scheduled; requires: Completed", op.Error())
}

func TestNewStorageError_KeepsTaxonomy(t *testing.T) {
	nf := NewNotFoundError("term", "2024F")
	assert.Same(t, nf, NewStorageError("op", nf))
	assert.Nil(t, NewStorageError("op", nil))

	wrapped := fmt.Errorf("outer: %w", NewStorageError("inner", errors.New("x")))
	assert.Same(t, wrapped, NewStorageError("again", wrapped))
}

func TestIsBusiness(t *testing.T) {
	assert.True(t, IsBusiness(fmt.Errorf("ctx: %w", NewValidationError("f", "bad"))))
	assert.False(t, IsBusiness(NewStorageError("op", errors.New("x"))))
	assert.False(t, IsBusiness(errors.New("plain")))
}
