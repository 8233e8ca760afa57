package repositories

import (
	"context"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/yigit/earlyalert/internal/app/models"
	"github.com/yigit/earlyalert/internal/pkg/apperrors"
	"github.com/yigit/earlyalert/internal/pkg/dberrors"
)

var studentColumns = []string{
	"student_id", "banner_id", "first_name", "last_name", "email", "phone",
	"classification", "declared_major", "enrollment_status",
	"first_generation", "international", "veteran", "disability",
	"primary_advisor_id", "user_id", "created_at", "updated_at",
}

// PostgresStudentRepository handles student database operations
type PostgresStudentRepository struct {
	db Querier
}

// NewPostgresStudentRepository creates a new PostgresStudentRepository
func NewPostgresStudentRepository(db Querier) *PostgresStudentRepository {
	return &PostgresStudentRepository{db: db}
}

func scanStudent(row pgx.Row) (*models.Student, error) {
	s := &models.Student{}
	err := row.Scan(
		&s.ID, &s.BannerID, &s.FirstName, &s.LastName, &s.Email, &s.Phone,
		&s.Classification, &s.DeclaredMajor, &s.EnrollmentStatus,
		&s.FirstGeneration, &s.International, &s.Veteran, &s.Disability,
		&s.PrimaryAdvisorID, &s.UserID, &s.CreatedAt, &s.UpdatedAt,
	)
	return s, err
}

func (r *PostgresStudentRepository) Create(ctx context.Context, s *models.Student) (int64, error) {
	sql, args, err := psql.Insert("students").
		Columns("banner_id", "first_name", "last_name", "email", "phone",
			"classification", "declared_major", "enrollment_status",
			"first_generation", "international", "veteran", "disability",
			"primary_advisor_id", "user_id").
		Values(s.BannerID, s.FirstName, s.LastName, s.Email, s.Phone,
			s.Classification, s.DeclaredMajor, s.EnrollmentStatus,
			s.FirstGeneration, s.International, s.Veteran, s.Disability,
			s.PrimaryAdvisorID, s.UserID).
		Suffix("RETURNING student_id, created_at, updated_at").
		ToSql()
	if err != nil {
		return 0, buildFailed("create student", err)
	}

	if err := r.db.QueryRow(ctx, sql, args...).Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt); err != nil {
		if dberrors.IsDuplicateConstraintError(err, "students_banner_id_key") {
			return 0, apperrors.NewConflictError("a student with banner id "+s.BannerID+" already exists", err)
		}
		return 0, fail("create student", "student", err)
	}
	return s.ID, nil
}

func (r *PostgresStudentRepository) GetByID(ctx context.Context, id int64) (*models.Student, error) {
	return r.getOne(ctx, "get student", squirrel.Eq{"student_id": id}, id, "")
}

func (r *PostgresStudentRepository) GetByIDForUpdate(ctx context.Context, id int64) (*models.Student, error) {
	return r.getOne(ctx, "lock student", squirrel.Eq{"student_id": id}, id, "FOR UPDATE")
}

func (r *PostgresStudentRepository) GetByUserID(ctx context.Context, userID int64) (*models.Student, error) {
	return r.getOne(ctx, "get student by user", squirrel.Eq{"user_id": userID}, userID, "")
}

func (r *PostgresStudentRepository) getOne(ctx context.Context, op string, where squirrel.Sqlizer, key any, suffix string) (*models.Student, error) {
	q := psql.Select(studentColumns...).From("students").Where(where).Limit(1)
	if suffix != "" {
		q = q.Suffix(suffix)
	}
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, buildFailed(op, err)
	}

	s, err := scanStudent(r.db.QueryRow(ctx, sql, args...))
	if err != nil {
		if dberrors.IsNoRows(err) {
			return nil, apperrors.NewNotFoundError("student", key)
		}
		return nil, fail(op, "student", err)
	}
	return s, nil
}

// studentPredicate turns a StudentFilter into a squirrel predicate
func studentPredicate(f StudentFilter) squirrel.And {
	where := squirrel.And{}
	if f.EnrollmentStatus != "" {
		where = append(where, squirrel.Eq{"enrollment_status": f.EnrollmentStatus})
	}
	if f.PrimaryAdvisorID != nil {
		where = append(where, squirrel.Eq{"primary_advisor_id": *f.PrimaryAdvisorID})
	}
	if f.Classification != "" {
		where = append(where, squirrel.Eq{"classification": f.Classification})
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		like := "%" + s + "%"
		where = append(where, squirrel.Or{
			squirrel.ILike{"first_name": like},
			squirrel.ILike{"last_name": like},
			squirrel.ILike{"banner_id": like},
			squirrel.ILike{"email": like},
		})
	}
	return where
}

func (r *PostgresStudentRepository) List(ctx context.Context, f StudentFilter, offset uint64, limit int) ([]*models.Student, int64, error) {
	where := studentPredicate(f)

	total, err := count(ctx, r.db, "count students", psql.Select("COUNT(*)").From("students").Where(where))
	if err != nil {
		return nil, 0, err
	}

	sql, args, err := psql.Select(studentColumns...).
		From("students").
		Where(where).
		OrderBy("last_name ASC", "first_name ASC", "student_id ASC").
		Offset(offset).
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, 0, buildFailed("list students", err)
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, 0, fail("list students", "student", err)
	}
	defer rows.Close()

	students := []*models.Student{}
	for rows.Next() {
		s, err := scanStudent(rows)
		if err != nil {
			return nil, 0, fail("scan student", "student", err)
		}
		students = append(students, s)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fail("iterate students", "student", err)
	}
	return students, total, nil
}

func (r *PostgresStudentRepository) UpdateEnrollmentStatus(ctx context.Context, id int64, status models.EnrollmentStatus, at time.Time) error {
	sql, args, err := psql.Update("students").
		Set("enrollment_status", status).
		Set("updated_at", at).
		Where(squirrel.Eq{"student_id": id}).
		ToSql()
	if err != nil {
		return buildFailed("update enrollment status", err)
	}

	tag, err := r.db.Exec(ctx, sql, args...)
	if err != nil {
		return fail("update enrollment status", "student", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NewNotFoundError("student", id)
	}
	return nil
}
