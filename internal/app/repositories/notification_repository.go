package repositories

import (
	"context"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/yigit/earlyalert/internal/app/models"
	"github.com/yigit/earlyalert/internal/pkg/apperrors"
	"github.com/yigit/earlyalert/internal/pkg/dberrors"
)

var notificationColumns = []string{
	"notification_id", "user_id", "notification_type", "title", "message", "priority",
	"related_entity_type", "related_entity_id", "is_read", "read_at", "created_at",
}

// PostgresNotificationRepository handles notification database operations
type PostgresNotificationRepository struct {
	db Querier
}

// NewPostgresNotificationRepository creates a new PostgresNotificationRepository
func NewPostgresNotificationRepository(db Querier) *PostgresNotificationRepository {
	return &PostgresNotificationRepository{db: db}
}

func scanNotification(row pgx.Row) (*models.Notification, error) {
	n := &models.Notification{}
	var relType *string
	var relID *int64
	err := row.Scan(&n.ID, &n.UserID, &n.Type, &n.Title, &n.Message, &n.Priority,
		&relType, &relID, &n.IsRead, &n.ReadAt, &n.CreatedAt)
	if err != nil {
		return nil, err
	}
	if relType != nil && relID != nil {
		n.Related = &models.EntityRef{Type: models.EntityType(*relType), ID: *relID}
	}
	return n, nil
}

func (r *PostgresNotificationRepository) Create(ctx context.Context, n *models.Notification) (int64, error) {
	var relType, relID any
	if n.Related != nil {
		relType, relID = string(n.Related.Type), n.Related.ID
	}

	sql, args, err := psql.Insert("notifications").
		Columns("user_id", "notification_type", "title", "message", "priority",
			"related_entity_type", "related_entity_id", "created_at").
		Values(n.UserID, n.Type, n.Title, n.Message, n.Priority, relType, relID, n.CreatedAt).
		Suffix("RETURNING notification_id").
		ToSql()
	if err != nil {
		return 0, buildFailed("create notification", err)
	}

	if err := r.db.QueryRow(ctx, sql, args...).Scan(&n.ID); err != nil {
		return 0, fail("create notification", "user", err)
	}
	return n.ID, nil
}

func (r *PostgresNotificationRepository) GetByID(ctx context.Context, id int64) (*models.Notification, error) {
	sql, args, err := psql.Select(notificationColumns...).
		From("notifications").
		Where(squirrel.Eq{"notification_id": id}).
		ToSql()
	if err != nil {
		return nil, buildFailed("get notification", err)
	}

	n, err := scanNotification(r.db.QueryRow(ctx, sql, args...))
	if err != nil {
		if dberrors.IsNoRows(err) {
			return nil, apperrors.NewNotFoundError("notification", id)
		}
		return nil, fail("get notification", "notification", err)
	}
	return n, nil
}

func (r *PostgresNotificationRepository) MarkRead(ctx context.Context, id int64, at time.Time) (bool, error) {
	sql, args, err := psql.Update("notifications").
		Set("is_read", true).
		Set("read_at", at).
		Where(squirrel.Eq{"notification_id": id, "is_read": false}).
		ToSql()
	if err != nil {
		return false, buildFailed("mark notification read", err)
	}

	tag, err := r.db.Exec(ctx, sql, args...)
	if err != nil {
		return false, fail("mark notification read", "notification", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *PostgresNotificationRepository) MarkAllRead(ctx context.Context, userID int64, at time.Time) (int64, error) {
	sql, args, err := psql.Update("notifications").
		Set("is_read", true).
		Set("read_at", at).
		Where(squirrel.Eq{"user_id": userID, "is_read": false}).
		ToSql()
	if err != nil {
		return 0, buildFailed("mark all notifications read", err)
	}

	tag, err := r.db.Exec(ctx, sql, args...)
	if err != nil {
		return 0, fail("mark all notifications read", "notification", err)
	}
	return tag.RowsAffected(), nil
}

func (r *PostgresNotificationRepository) ListUnread(ctx context.Context, userID int64, limit int) ([]*models.Notification, error) {
	q := psql.Select(notificationColumns...).
		From("notifications").
		Where(squirrel.Eq{"user_id": userID, "is_read": false}).
		OrderBy("created_at DESC", "notification_id DESC")
	if limit > 0 {
		q = q.Limit(uint64(limit))
	}
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, buildFailed("list unread notifications", err)
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fail("list unread notifications", "notification", err)
	}
	defer rows.Close()

	out := []*models.Notification{}
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fail("scan notification", "notification", err)
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fail("iterate notifications", "notification", err)
	}
	return out, nil
}
