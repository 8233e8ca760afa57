package dberrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"github.com/yigit/earlyalert/internal/pkg/apperrors"
)

func TestClassify(t *testing.T) {
	fk := &pgconn.PgError{Code: "23503", ConstraintName: "risk_assessments_student_id_fkey"}
	err := Classify("insert", "risk assessment", fmt.Errorf("exec: %w", fk))
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	var nf *apperrors.NotFoundError
	assert.True(t, errors.As(err, &nf))
	assert.Equal(t, "student", nf.Entity)

	dup := &pgconn.PgError{Code: "23505", ConstraintName: "risk_assessments_one_current_idx"}
	assert.ErrorIs(t, Classify("insert", "risk assessment", dup), apperrors.ErrConflict)
	assert.True(t, IsDuplicateConstraintError(dup, "risk_assessments_one_current_idx"))
	assert.False(t, IsDuplicateConstraintError(dup, "other"))

	serial := &pgconn.PgError{Code: "40001"}
	assert.ErrorIs(t, Classify("commit", "transaction", serial), apperrors.ErrConflict)

	other := errors.New("connection reset")
	classified := Classify("select", "student", other)
	assert.ErrorIs(t, classified, apperrors.ErrStorage)
	assert.ErrorIs(t, classified, other)

	assert.NoError(t, Classify("noop", "x", nil))
}

func TestClassify_PassesBusinessErrorsThrough(t *testing.T) {
	orig := apperrors.NewNotFoundError("intervention", int64(5))
	assert.Same(t, orig, Classify("get", "intervention", orig))
}

func TestIsNoRows(t *testing.T) {
	assert.True(t, IsNoRows(fmt.Errorf("scan: %w", pgx.ErrNoRows)))
	assert.False(t, IsNoRows(errors.New("x")))
}
