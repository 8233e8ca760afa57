package repositories

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/yigit/earlyalert/internal/db"
	"github.com/yigit/earlyalert/internal/pkg/apperrors"
	"github.com/yigit/earlyalert/internal/pkg/dberrors"
	"github.com/yigit/earlyalert/internal/pkg/logger"
)

// psql is the shared statement builder; every query uses $n placeholders
var psql = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

// PostgresStore implements Store on top of a pgx pool
type PostgresStore struct {
	db    *db.PostgresDB
	repos *Repositories
}

// NewPostgresStore creates a Store backed by PostgreSQL
func NewPostgresStore(database *db.PostgresDB) *PostgresStore {
	return &PostgresStore{
		db:    database,
		repos: NewRepositories(database.Pool),
	}
}

// NewRepositories binds every repository to q (a pool or a transaction)
func NewRepositories(q Querier) *Repositories {
	return &Repositories{
		Users:             NewPostgresUserRepository(q),
		Terms:             NewPostgresTermRepository(q),
		Students:          NewPostgresStudentRepository(q),
		Assessments:       NewPostgresRiskAssessmentRepository(q),
		InterventionTypes: NewPostgresInterventionTypeRepository(q),
		Interventions:     NewPostgresInterventionRepository(q),
		Notifications:     NewPostgresNotificationRepository(q),
		Emails:            NewPostgresEmailRepository(q),
		Audit:             NewPostgresAuditRepository(q),
	}
}

// Repos returns pool-bound repositories (autocommit, committed reads)
func (s *PostgresStore) Repos() *Repositories {
	return s.repos
}

// WithTx runs fn inside one database transaction
func (s *PostgresStore) WithTx(ctx context.Context, fn func(ctx context.Context, r *Repositories) error) error {
	err := s.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		return fn(ctx, NewRepositories(tx))
	})
	if err == nil || apperrors.IsBusiness(err) || errors.Is(err, apperrors.ErrStorage) {
		return err
	}
	// Begin/commit failures, including serialization failures surfaced at commit
	classified := dberrors.Classify("transaction", "transaction", err)
	if errors.Is(classified, apperrors.ErrStorage) {
		logger.Error().Err(err).Msg("Transaction failed")
	}
	return classified
}

// fail maps a driver error onto the taxonomy and logs it when it is a real
// storage failure. Business outcomes such as FK violations are not logged.
func fail(op, entity string, err error) error {
	classified := dberrors.Classify(op, entity, err)
	if errors.Is(classified, apperrors.ErrStorage) {
		logger.Error().Err(err).Str("op", op).Msg("Storage error")
	}
	return classified
}

// buildFailed wraps a squirrel ToSql error
func buildFailed(op string, err error) error {
	logger.Error().Err(err).Str("op", op).Msg("Error building SQL")
	return apperrors.NewStorageError(op, err)
}

// jsonArg converts an optional JSON document to a bind argument (NULL when empty)
func jsonArg(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}

// count runs a SELECT COUNT(*) built from base
func count(ctx context.Context, q Querier, op string, base squirrel.SelectBuilder) (int64, error) {
	sql, args, err := base.ToSql()
	if err != nil {
		return 0, buildFailed(op, err)
	}
	var total int64
	if err := q.QueryRow(ctx, sql, args...).Scan(&total); err != nil {
		return 0, fail(op, "count", err)
	}
	return total, nil
}
