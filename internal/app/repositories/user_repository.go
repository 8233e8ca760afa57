package repositories

import (
	"context"

	"github.com/Masterminds/squirrel"

	"github.com/yigit/earlyalert/internal/app/models"
	"github.com/yigit/earlyalert/internal/pkg/apperrors"
	"github.com/yigit/earlyalert/internal/pkg/dberrors"
)

var userColumns = []string{"user_id", "email", "first_name", "last_name", "role", "is_active", "created_at"}

// PostgresUserRepository handles user database operations
type PostgresUserRepository struct {
	db Querier
}

// NewPostgresUserRepository creates a new PostgresUserRepository
func NewPostgresUserRepository(db Querier) *PostgresUserRepository {
	return &PostgresUserRepository{db: db}
}

func (r *PostgresUserRepository) Create(ctx context.Context, user *models.User) (int64, error) {
	sql, args, err := psql.Insert("users").
		Columns("email", "first_name", "last_name", "role", "is_active").
		Values(user.Email, user.FirstName, user.LastName, user.Role, user.IsActive).
		Suffix("RETURNING user_id, created_at").
		ToSql()
	if err != nil {
		return 0, buildFailed("create user", err)
	}

	if err := r.db.QueryRow(ctx, sql, args...).Scan(&user.ID, &user.CreatedAt); err != nil {
		if dberrors.IsUniqueViolation(err) {
			return 0, apperrors.NewConflictError("a user with this email already exists", err)
		}
		return 0, fail("create user", "user", err)
	}
	return user.ID, nil
}

func (r *PostgresUserRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	return r.getOne(ctx, "get user", squirrel.Eq{"user_id": id}, id)
}

func (r *PostgresUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.getOne(ctx, "get user by email", squirrel.Eq{"email": email}, email)
}

func (r *PostgresUserRepository) getOne(ctx context.Context, op string, where squirrel.Sqlizer, key any) (*models.User, error) {
	sql, args, err := psql.Select(userColumns...).From("users").Where(where).Limit(1).ToSql()
	if err != nil {
		return nil, buildFailed(op, err)
	}

	u := &models.User{}
	err = r.db.QueryRow(ctx, sql, args...).
		Scan(&u.ID, &u.Email, &u.FirstName, &u.LastName, &u.Role, &u.IsActive, &u.CreatedAt)
	if err != nil {
		if dberrors.IsNoRows(err) {
			return nil, apperrors.NewNotFoundError("user", key)
		}
		return nil, fail(op, "user", err)
	}
	return u, nil
}

// PostgresTermRepository handles term database operations
type PostgresTermRepository struct {
	db Querier
}

// NewPostgresTermRepository creates a new PostgresTermRepository
func NewPostgresTermRepository(db Querier) *PostgresTermRepository {
	return &PostgresTermRepository{db: db}
}

func (r *PostgresTermRepository) Upsert(ctx context.Context, term *models.Term) error {
	sql, args, err := psql.Insert("terms").
		Columns("term_id", "name", "start_date", "end_date").
		Values(term.ID, term.Name, term.StartDate, term.EndDate).
		Suffix("ON CONFLICT (term_id) DO UPDATE SET name = EXCLUDED.name, start_date = EXCLUDED.start_date, end_date = EXCLUDED.end_date").
		ToSql()
	if err != nil {
		return buildFailed("upsert term", err)
	}
	if _, err := r.db.Exec(ctx, sql, args...); err != nil {
		return fail("upsert term", "term", err)
	}
	return nil
}

func (r *PostgresTermRepository) GetByID(ctx context.Context, id string) (*models.Term, error) {
	sql, args, err := psql.Select("term_id", "name", "start_date", "end_date").
		From("terms").
		Where(squirrel.Eq{"term_id": id}).
		ToSql()
	if err != nil {
		return nil, buildFailed("get term", err)
	}

	t := &models.Term{}
	if err := r.db.QueryRow(ctx, sql, args...).Scan(&t.ID, &t.Name, &t.StartDate, &t.EndDate); err != nil {
		if dberrors.IsNoRows(err) {
			return nil, apperrors.NewNotFoundError("term", id)
		}
		return nil, fail("get term", "term", err)
	}
	return t, nil
}

func (r *PostgresTermRepository) List(ctx context.Context) ([]*models.Term, error) {
	sql, args, err := psql.Select("term_id", "name", "start_date", "end_date").
		From("terms").
		OrderBy("start_date DESC").
		ToSql()
	if err != nil {
		return nil, buildFailed("list terms", err)
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fail("list terms", "term", err)
	}
	defer rows.Close()

	terms := []*models.Term{}
	for rows.Next() {
		t := &models.Term{}
		if err := rows.Scan(&t.ID, &t.Name, &t.StartDate, &t.EndDate); err != nil {
			return nil, fail("scan term", "term", err)
		}
		terms = append(terms, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fail("iterate terms", "term", err)
	}
	return terms, nil
}
