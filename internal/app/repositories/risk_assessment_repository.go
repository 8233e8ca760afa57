package repositories

import (
	"context"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/yigit/earlyalert/internal/app/models"
	"github.com/yigit/earlyalert/internal/pkg/apperrors"
	"github.com/yigit/earlyalert/internal/pkg/dberrors"
)

const currentAssessmentIndex = "risk_assessments_one_current_idx"

var assessmentColumns = []string{
	"assessment_id", "student_id", "term_id",
	"overall_score", "academic_score", "engagement_score", "financial_score", "wellness_score",
	"risk_category", "risk_pathway", "model_version", "confidence", "is_current", "calculated_at",
}

// PostgresRiskAssessmentRepository is the append-only assessment ledger
type PostgresRiskAssessmentRepository struct {
	db Querier
}

// NewPostgresRiskAssessmentRepository creates a new PostgresRiskAssessmentRepository
func NewPostgresRiskAssessmentRepository(db Querier) *PostgresRiskAssessmentRepository {
	return &PostgresRiskAssessmentRepository{db: db}
}

func scanAssessment(row pgx.Row) (*models.RiskAssessment, error) {
	a := &models.RiskAssessment{}
	err := row.Scan(
		&a.ID, &a.StudentID, &a.TermID,
		&a.Scores.Overall, &a.Scores.Academic, &a.Scores.Engagement, &a.Scores.Financial, &a.Scores.Wellness,
		&a.Category, &a.RiskPathway, &a.ModelVersion, &a.Confidence, &a.IsCurrent, &a.CalculatedAt,
	)
	return a, err
}

func (r *PostgresRiskAssessmentRepository) queryOne(ctx context.Context, op string, q squirrel.SelectBuilder, key any) (*models.RiskAssessment, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, buildFailed(op, err)
	}
	a, err := scanAssessment(r.db.QueryRow(ctx, sql, args...))
	if err != nil {
		if dberrors.IsNoRows(err) {
			return nil, apperrors.NewNotFoundError("current risk assessment", key)
		}
		return nil, fail(op, "risk assessment", err)
	}
	return a, nil
}

func (r *PostgresRiskAssessmentRepository) GetCurrentForTerm(ctx context.Context, studentID int64, termID string) (*models.RiskAssessment, error) {
	q := psql.Select(assessmentColumns...).
		From("risk_assessments").
		Where(squirrel.Eq{"student_id": studentID, "term_id": termID, "is_current": true}).
		Limit(1)
	return r.queryOne(ctx, "get current assessment for term", q, studentID)
}

func (r *PostgresRiskAssessmentRepository) GetCurrent(ctx context.Context, studentID int64) (*models.RiskAssessment, error) {
	q := psql.Select(assessmentColumns...).
		From("risk_assessments").
		Where(squirrel.Eq{"student_id": studentID, "is_current": true}).
		OrderBy("calculated_at DESC", "assessment_id DESC").
		Limit(1)
	return r.queryOne(ctx, "get current assessment", q, studentID)
}

func (r *PostgresRiskAssessmentRepository) ClearCurrent(ctx context.Context, studentID int64, termID string) (int64, error) {
	sql, args, err := psql.Update("risk_assessments").
		Set("is_current", false).
		Where(squirrel.Eq{"student_id": studentID, "term_id": termID, "is_current": true}).
		ToSql()
	if err != nil {
		return 0, buildFailed("supersede assessment", err)
	}

	tag, err := r.db.Exec(ctx, sql, args...)
	if err != nil {
		return 0, fail("supersede assessment", "risk assessment", err)
	}
	return tag.RowsAffected(), nil
}

func (r *PostgresRiskAssessmentRepository) Insert(ctx context.Context, a *models.RiskAssessment) (int64, error) {
	sql, args, err := psql.Insert("risk_assessments").
		Columns("student_id", "term_id",
			"overall_score", "academic_score", "engagement_score", "financial_score", "wellness_score",
			"risk_category", "risk_pathway", "model_version", "confidence", "is_current", "calculated_at").
		Values(a.StudentID, a.TermID,
			a.Scores.Overall, a.Scores.Academic, a.Scores.Engagement, a.Scores.Financial, a.Scores.Wellness,
			a.Category, a.RiskPathway, a.ModelVersion, a.Confidence, a.IsCurrent, a.CalculatedAt).
		Suffix("RETURNING assessment_id").
		ToSql()
	if err != nil {
		return 0, buildFailed("insert assessment", err)
	}

	if err := r.db.QueryRow(ctx, sql, args...).Scan(&a.ID); err != nil {
		if dberrors.IsDuplicateConstraintError(err, currentAssessmentIndex) {
			return 0, apperrors.NewConflictError("another current assessment was recorded concurrently", err)
		}
		return 0, fail("insert assessment", "risk assessment", err)
	}
	return a.ID, nil
}

func (r *PostgresRiskAssessmentRepository) ListByStudent(ctx context.Context, studentID int64, offset uint64, limit int) ([]*models.RiskAssessment, int64, error) {
	where := squirrel.Eq{"student_id": studentID}

	total, err := count(ctx, r.db, "count assessments", psql.Select("COUNT(*)").From("risk_assessments").Where(where))
	if err != nil {
		return nil, 0, err
	}

	sql, args, err := psql.Select(assessmentColumns...).
		From("risk_assessments").
		Where(where).
		OrderBy("calculated_at DESC", "assessment_id DESC").
		Offset(offset).
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, 0, buildFailed("list assessments", err)
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, 0, fail("list assessments", "risk assessment", err)
	}
	defer rows.Close()

	out := []*models.RiskAssessment{}
	for rows.Next() {
		a, err := scanAssessment(rows)
		if err != nil {
			return nil, 0, fail("scan assessment", "risk assessment", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fail("iterate assessments", "risk assessment", err)
	}
	return out, total, nil
}

func (r *PostgresRiskAssessmentRepository) CountCurrent(ctx context.Context, studentID int64, termID string) (int, error) {
	n, err := count(ctx, r.db, "count current assessments", psql.Select("COUNT(*)").
		From("risk_assessments").
		Where(squirrel.Eq{"student_id": studentID, "term_id": termID, "is_current": true}))
	return int(n), err
}
