package repositories

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/yigit/earlyalert/internal/app/models"
	"github.com/yigit/earlyalert/internal/pkg/apperrors"
	"github.com/yigit/earlyalert/internal/pkg/dberrors"
)

const emailPriorityRankSQL = "CASE priority WHEN 'Urgent' THEN 4 WHEN 'High' THEN 3 WHEN 'Normal' THEN 2 ELSE 1 END"

var emailColumns = []string{
	"email_id", "notification_id", "dedup_key", "to_email", "subject", "body_html", "body_text",
	"priority", "status", "attempts", "last_error", "leased_until", "created_at", "sent_at",
}

// PostgresEmailRepository is the outbound email queue
type PostgresEmailRepository struct {
	db Querier
}

// NewPostgresEmailRepository creates a new PostgresEmailRepository
func NewPostgresEmailRepository(db Querier) *PostgresEmailRepository {
	return &PostgresEmailRepository{db: db}
}

func scanEmail(row pgx.Row) (*models.EmailMessage, error) {
	m := &models.EmailMessage{}
	err := row.Scan(&m.ID, &m.NotificationID, &m.DedupKey, &m.ToEmail, &m.Subject, &m.BodyHTML, &m.BodyText,
		&m.Priority, &m.Status, &m.Attempts, &m.LastError, &m.LeasedUntil, &m.CreatedAt, &m.SentAt)
	return m, err
}

// Enqueue inserts a Pending message. A repeated dedup key is ignored and
// returns the id of the message already queued.
func (r *PostgresEmailRepository) Enqueue(ctx context.Context, m *models.EmailMessage) (int64, error) {
	sql, args, err := psql.Insert("email_queue").
		Columns("notification_id", "dedup_key", "to_email", "subject", "body_html", "body_text",
			"priority", "status", "attempts", "created_at").
		Values(m.NotificationID, m.DedupKey, m.ToEmail, m.Subject, m.BodyHTML, m.BodyText,
			m.Priority, models.EmailPending, 0, m.CreatedAt).
		Suffix("ON CONFLICT (dedup_key) DO UPDATE SET dedup_key = EXCLUDED.dedup_key RETURNING email_id").
		ToSql()
	if err != nil {
		return 0, buildFailed("enqueue email", err)
	}

	if err := r.db.QueryRow(ctx, sql, args...).Scan(&m.ID); err != nil {
		return 0, fail("enqueue email", "email", err)
	}
	m.Status = models.EmailPending
	return m.ID, nil
}

func (r *PostgresEmailRepository) GetByID(ctx context.Context, id int64) (*models.EmailMessage, error) {
	sql, args, err := psql.Select(emailColumns...).From("email_queue").Where(squirrel.Eq{"email_id": id}).ToSql()
	if err != nil {
		return nil, buildFailed("get email", err)
	}
	m, err := scanEmail(r.db.QueryRow(ctx, sql, args...))
	if err != nil {
		if dberrors.IsNoRows(err) {
			return nil, apperrors.NewNotFoundError("email", id)
		}
		return nil, fail("get email", "email", err)
	}
	return m, nil
}

// buildClaimBatch leases rows in a single statement; SKIP LOCKED lets several
// mailer processes drain the queue without handing out the same message.
func buildClaimBatch(limit int, now time.Time, lease time.Duration) (string, []interface{}, error) {
	pick, pickArgs, err := squirrel.Select("email_id").
		From("email_queue").
		Where(squirrel.Or{
			squirrel.Eq{"status": models.EmailPending},
			squirrel.And{squirrel.Eq{"status": models.EmailSending}, squirrel.Lt{"leased_until": now}},
		}).
		OrderBy(emailPriorityRankSQL+" DESC", "created_at ASC", "email_id ASC").
		Limit(uint64(limit)).
		Suffix("FOR UPDATE SKIP LOCKED").
		ToSql()
	if err != nil {
		return "", nil, err
	}

	return psql.Update("email_queue").
		Set("status", models.EmailSending).
		Set("leased_until", now.Add(lease)).
		Where(squirrel.Expr("email_id IN ("+pick+")", pickArgs...)).
		Suffix("RETURNING " + strings.Join(emailColumns, ", ")).
		ToSql()
}

func (r *PostgresEmailRepository) ClaimBatch(ctx context.Context, limit int, now time.Time, lease time.Duration) ([]*models.EmailMessage, error) {
	sql, args, err := buildClaimBatch(limit, now, lease)
	if err != nil {
		return nil, buildFailed("claim emails", err)
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fail("claim emails", "email", err)
	}
	defer rows.Close()

	out := []*models.EmailMessage{}
	for rows.Next() {
		m, err := scanEmail(rows)
		if err != nil {
			return nil, fail("scan email", "email", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fail("iterate emails", "email", err)
	}

	// RETURNING does not preserve the subquery order
	SortEmailsForDelivery(out)
	return out, nil
}

// SortEmailsForDelivery orders by priority (Urgent first) then age
func SortEmailsForDelivery(msgs []*models.EmailMessage) {
	sort.SliceStable(msgs, func(i, j int) bool {
		pi, pj := msgs[i].Priority.Rank(), msgs[j].Priority.Rank()
		if pi != pj {
			return pi > pj
		}
		if !msgs[i].CreatedAt.Equal(msgs[j].CreatedAt) {
			return msgs[i].CreatedAt.Before(msgs[j].CreatedAt)
		}
		return msgs[i].ID < msgs[j].ID
	})
}

func (r *PostgresEmailRepository) MarkSent(ctx context.Context, id int64, at time.Time) error {
	sql, args, err := psql.Update("email_queue").
		Set("status", models.EmailSent).
		Set("sent_at", at).
		Set("attempts", squirrel.Expr("attempts + 1")).
		Set("leased_until", nil).
		Set("last_error", "").
		Where(squirrel.Eq{"email_id": id}).
		ToSql()
	if err != nil {
		return buildFailed("mark email sent", err)
	}
	tag, err := r.db.Exec(ctx, sql, args...)
	if err != nil {
		return fail("mark email sent", "email", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NewNotFoundError("email", id)
	}
	return nil
}

func (r *PostgresEmailRepository) MarkAttemptFailed(ctx context.Context, id int64, lastError string, maxAttempts int) (models.EmailStatus, error) {
	sql, args, err := psql.Update("email_queue").
		Set("attempts", squirrel.Expr("attempts + 1")).
		Set("last_error", lastError).
		Set("leased_until", nil).
		Set("status", squirrel.Expr("CASE WHEN attempts + 1 >= ? THEN ? ELSE ? END",
			maxAttempts, models.EmailFailed, models.EmailPending)).
		Where(squirrel.Eq{"email_id": id}).
		Suffix("RETURNING status").
		ToSql()
	if err != nil {
		return "", buildFailed("mark email attempt failed", err)
	}

	var status models.EmailStatus
	if err := r.db.QueryRow(ctx, sql, args...).Scan(&status); err != nil {
		if dberrors.IsNoRows(err) {
			return "", apperrors.NewNotFoundError("email", id)
		}
		return "", fail("mark email attempt failed", "email", err)
	}
	return status, nil
}

func (r *PostgresEmailRepository) CountByStatus(ctx context.Context) (map[models.EmailStatus]int64, error) {
	sql, args, err := psql.Select("status", "COUNT(*)").From("email_queue").GroupBy("status").ToSql()
	if err != nil {
		return nil, buildFailed("count emails", err)
	}
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fail("count emails", "email", err)
	}
	defer rows.Close()

	out := map[models.EmailStatus]int64{}
	for rows.Next() {
		var s models.EmailStatus
		var n int64
		if err := rows.Scan(&s, &n); err != nil {
			return nil, fail("scan email count", "email", err)
		}
		out[s] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fail("iterate email counts", "email", err)
	}
	return out, nil
}
