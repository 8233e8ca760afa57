package dberrors

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn" // Import pgconn for PgError

	"github.com/yigit/earlyalert/internal/pkg/apperrors"
)

// PostgreSQL SQLSTATE codes we classify
const (
	codeForeignKeyViolation  = "23503"
	codeUniqueViolation      = "23505"
	codeCheckViolation       = "23514"
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
)

// IsDuplicateConstraintError checks if the error is a PostgreSQL unique violation error
// for a specific constraint.
func IsDuplicateConstraintError(err error, constraintName string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == codeUniqueViolation && pgErr.ConstraintName == constraintName
}

// IsUniqueViolation checks if the error is any unique constraint violation.
func IsUniqueViolation(err error) bool {
	return hasCode(err, codeUniqueViolation)
}

// IsForeignKeyViolation checks if the error is a foreign key violation.
func IsForeignKeyViolation(err error) bool {
	return hasCode(err, codeForeignKeyViolation)
}

// IsNoRows checks if the error is a "no rows" error.
func IsNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

// Classify maps a raw driver error onto the application error taxonomy.
// entity names the thing being written so FK failures read well.
func Classify(op, entity string, err error) error {
	if err == nil {
		return nil
	}
	if apperrors.IsBusiness(err) {
		return err
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeForeignKeyViolation:
			return apperrors.NewNotFoundError(referencedEntity(pgErr.ConstraintName, entity), nil)
		case codeUniqueViolation:
			return apperrors.NewConflictError(entity+" violates uniqueness constraint "+pgErr.ConstraintName, err)
		case codeCheckViolation:
			return apperrors.NewValidationError(pgErr.ColumnName, "check constraint "+pgErr.ConstraintName+" failed")
		case codeSerializationFailure, codeDeadlockDetected:
			return apperrors.NewConflictError("concurrent update on "+entity, err)
		}
	}

	return apperrors.NewStorageError(op, err)
}

// referencedEntity guesses the referenced table from our FK naming convention
// (<table>_<column>_fkey).
func referencedEntity(constraint, fallback string) string {
	switch constraint {
	case "risk_assessments_student_id_fkey", "interventions_student_id_fkey":
		return "student"
	case "risk_assessments_term_id_fkey":
		return "term"
	case "interventions_advisor_id_fkey", "notifications_user_id_fkey":
		return "user"
	case "interventions_intervention_type_id_fkey":
		return "intervention type"
	case "interventions_follow_up_of_fkey":
		return "intervention"
	}
	return fallback
}

func hasCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}
