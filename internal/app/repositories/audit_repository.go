package repositories

import (
	"context"
	"encoding/json"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/yigit/earlyalert/internal/app/models"
)

var auditColumns = []string{
	"audit_id", "actor_id", "action", "entity_type", "entity_id", "before_value", "after_value", "created_at",
}

// PostgresAuditRepository appends to and reads the audit_log table
type PostgresAuditRepository struct {
	db Querier
}

// NewPostgresAuditRepository creates a new PostgresAuditRepository
func NewPostgresAuditRepository(db Querier) *PostgresAuditRepository {
	return &PostgresAuditRepository{db: db}
}

func scanAudit(row pgx.Row) (*models.AuditLogEntry, error) {
	e := &models.AuditLogEntry{}
	var before, after []byte
	if err := row.Scan(&e.ID, &e.ActorID, &e.Action, &e.EntityType, &e.EntityID, &before, &after, &e.CreatedAt); err != nil {
		return nil, err
	}
	if len(before) > 0 {
		e.Before = json.RawMessage(before)
	}
	if len(after) > 0 {
		e.After = json.RawMessage(after)
	}
	return e, nil
}

func (r *PostgresAuditRepository) Append(ctx context.Context, e *models.AuditLogEntry) (int64, error) {
	sql, args, err := psql.Insert("audit_log").
		Columns("actor_id", "action", "entity_type", "entity_id", "before_value", "after_value", "created_at").
		Values(e.ActorID, e.Action, e.EntityType, e.EntityID, jsonArg(e.Before), jsonArg(e.After), e.CreatedAt).
		Suffix("RETURNING audit_id").
		ToSql()
	if err != nil {
		return 0, buildFailed("append audit entry", err)
	}

	if err := r.db.QueryRow(ctx, sql, args...).Scan(&e.ID); err != nil {
		return 0, fail("append audit entry", "audit entry", err)
	}
	return e.ID, nil
}

func (r *PostgresAuditRepository) ListForEntity(ctx context.Context, entityType models.EntityType, entityID int64) ([]*models.AuditLogEntry, error) {
	sql, args, err := psql.Select(auditColumns...).
		From("audit_log").
		Where(squirrel.Eq{"entity_type": entityType, "entity_id": entityID}).
		OrderBy("created_at ASC", "audit_id ASC").
		ToSql()
	if err != nil {
		return nil, buildFailed("list audit for entity", err)
	}
	return r.query(ctx, "list audit for entity", sql, args)
}

func auditPredicate(f AuditFilter) squirrel.And {
	where := squirrel.And{}
	if f.ActorID != nil {
		where = append(where, squirrel.Eq{"actor_id": *f.ActorID})
	}
	if f.EntityType != "" {
		where = append(where, squirrel.Eq{"entity_type": f.EntityType})
	}
	if f.Action != "" {
		where = append(where, squirrel.Eq{"action": f.Action})
	}
	if f.From != nil {
		where = append(where, squirrel.GtOrEq{"created_at": *f.From})
	}
	if f.To != nil {
		where = append(where, squirrel.Lt{"created_at": *f.To})
	}
	return where
}

func (r *PostgresAuditRepository) List(ctx context.Context, f AuditFilter, offset uint64, limit int) ([]*models.AuditLogEntry, int64, error) {
	where := auditPredicate(f)

	total, err := count(ctx, r.db, "count audit entries", psql.Select("COUNT(*)").From("audit_log").Where(where))
	if err != nil {
		return nil, 0, err
	}

	sql, args, err := psql.Select(auditColumns...).
		From("audit_log").
		Where(where).
		OrderBy("created_at DESC", "audit_id DESC").
		Offset(offset).
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, 0, buildFailed("list audit entries", err)
	}

	entries, err := r.query(ctx, "list audit entries", sql, args)
	if err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

func (r *PostgresAuditRepository) query(ctx context.Context, op, sql string, args []interface{}) ([]*models.AuditLogEntry, error) {
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fail(op, "audit entry", err)
	}
	defer rows.Close()

	out := []*models.AuditLogEntry{}
	for rows.Next() {
		e, err := scanAudit(rows)
		if err != nil {
			return nil, fail(op, "audit entry", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fail(op, "audit entry", err)
	}
	return out, nil
}
