package memory

import (
	"context"
	"sort"
	"time"

	"github.com/yigit/earlyalert/internal/app/models"
	"github.com/yigit/earlyalert/internal/app/repositories"
	"github.com/yigit/earlyalert/internal/pkg/apperrors"
)

type notificationRepo struct{ sc *scope }

func (r *notificationRepo) Create(_ context.Context, n *models.Notification) (int64, error) {
	err := r.sc.write("notifications.create", func(st *state) error {
		if _, ok := st.users[n.UserID]; !ok {
			return apperrors.NewNotFoundError("user", n.UserID)
		}
		n.ID = st.next("notifications")
		st.notifications[n.ID] = *n
		return nil
	})
	return n.ID, err
}

func (r *notificationRepo) GetByID(_ context.Context, id int64) (*models.Notification, error) {
	var out *models.Notification
	err := r.sc.read(func(st *state) error {
		n, ok := st.notifications[id]
		if !ok {
			return apperrors.NewNotFoundError("notification", id)
		}
		out = &n
		return nil
	})
	return out, err
}

func (r *notificationRepo) MarkRead(_ context.Context, id int64, at time.Time) (bool, error) {
	changed := false
	err := r.sc.write("notifications.mark_read", func(st *state) error {
		n, ok := st.notifications[id]
		if !ok || n.IsRead {
			return nil
		}
		n.IsRead = true
		readAt := at
		n.ReadAt = &readAt
		st.notifications[id] = n
		changed = true
		return nil
	})
	return changed, err
}

func (r *notificationRepo) MarkAllRead(_ context.Context, userID int64, at time.Time) (int64, error) {
	var count int64
	err := r.sc.write("notifications.mark_all_read", func(st *state) error {
		for id, n := range st.notifications {
			if n.UserID != userID || n.IsRead {
				continue
			}
			n.IsRead = true
			readAt := at
			n.ReadAt = &readAt
			st.notifications[id] = n
			count++
		}
		return nil
	})
	return count, err
}

func (r *notificationRepo) ListUnread(_ context.Context, userID int64, limit int) ([]*models.Notification, error) {
	out := []*models.Notification{}
	err := r.sc.read(func(st *state) error {
		for _, n := range st.notifications {
			if n.UserID == userID && !n.IsRead {
				n := n
				out = append(out, &n)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return page(out, 0, limit), err
}

type emailRepo struct{ sc *scope }

func (r *emailRepo) Enqueue(_ context.Context, m *models.EmailMessage) (int64, error) {
	err := r.sc.write("emails.enqueue", func(st *state) error {
		for id, existing := range st.emails {
			if existing.DedupKey == m.DedupKey {
				m.ID = id
				m.Status = existing.Status
				return nil
			}
		}
		m.ID = st.next("emails")
		m.Status = models.EmailPending
		m.Attempts = 0
		st.emails[m.ID] = *m
		return nil
	})
	return m.ID, err
}

func (r *emailRepo) GetByID(_ context.Context, id int64) (*models.EmailMessage, error) {
	var out *models.EmailMessage
	err := r.sc.read(func(st *state) error {
		m, ok := st.emails[id]
		if !ok {
			return apperrors.NewNotFoundError("email", id)
		}
		out = &m
		return nil
	})
	return out, err
}

func (r *emailRepo) ClaimBatch(_ context.Context, limit int, now time.Time, lease time.Duration) ([]*models.EmailMessage, error) {
	claimed := []*models.EmailMessage{}
	err := r.sc.write("emails.claim", func(st *state) error {
		candidates := []*models.EmailMessage{}
		for _, m := range st.emails {
			expired := m.Status == models.EmailSending && m.LeasedUntil != nil && m.LeasedUntil.Before(now)
			if m.Status == models.EmailPending || expired {
				m := m
				candidates = append(candidates, &m)
			}
		}
		repositories.SortEmailsForDelivery(candidates)
		leasedUntil := now.Add(lease)
		for _, m := range page(candidates, 0, limit) {
			m.Status = models.EmailSending
			until := leasedUntil
			m.LeasedUntil = &until
			st.emails[m.ID] = *m
			claimed = append(claimed, m)
		}
		return nil
	})
	return claimed, err
}

func (r *emailRepo) MarkSent(_ context.Context, id int64, at time.Time) error {
	return r.sc.write("emails.mark_sent", func(st *state) error {
		m, ok := st.emails[id]
		if !ok {
			return apperrors.NewNotFoundError("email", id)
		}
		m.Status = models.EmailSent
		m.Attempts++
		sentAt := at
		m.SentAt = &sentAt
		m.LeasedUntil = nil
		m.LastError = ""
		st.emails[id] = m
		return nil
	})
}

func (r *emailRepo) MarkAttemptFailed(_ context.Context, id int64, lastError string, maxAttempts int) (models.EmailStatus, error) {
	var status models.EmailStatus
	err := r.sc.write("emails.mark_failed", func(st *state) error {
		m, ok := st.emails[id]
		if !ok {
			return apperrors.NewNotFoundError("email", id)
		}
		m.Attempts++
		m.LastError = lastError
		m.LeasedUntil = nil
		if m.Attempts >= maxAttempts {
			m.Status = models.EmailFailed
		} else {
			m.Status = models.EmailPending
		}
		st.emails[id] = m
		status = m.Status
		return nil
	})
	return status, err
}

func (r *emailRepo) CountByStatus(_ context.Context) (map[models.EmailStatus]int64, error) {
	out := map[models.EmailStatus]int64{}
	err := r.sc.read(func(st *state) error {
		for _, m := range st.emails {
			out[m.Status]++
		}
		return nil
	})
	return out, err
}

type auditRepo struct{ sc *scope }

func (r *auditRepo) Append(_ context.Context, e *models.AuditLogEntry) (int64, error) {
	err := r.sc.write("audit.append", func(st *state) error {
		e.ID = st.next("audit")
		st.audit = append(st.audit, *e)
		return nil
	})
	return e.ID, err
}

func (r *auditRepo) ListForEntity(_ context.Context, entityType models.EntityType, entityID int64) ([]*models.AuditLogEntry, error) {
	out := []*models.AuditLogEntry{}
	err := r.sc.read(func(st *state) error {
		for _, e := range st.audit {
			if e.EntityType == entityType && e.EntityID == entityID {
				e := e
				out = append(out, &e)
			}
		}
		return nil
	})
	return out, err
}

func matchAudit(f repositories.AuditFilter, e models.AuditLogEntry) bool {
	if f.ActorID != nil && (e.ActorID == nil || *e.ActorID != *f.ActorID) {
		return false
	}
	if f.EntityType != "" && e.EntityType != f.EntityType {
		return false
	}
	if f.Action != "" && e.Action != f.Action {
		return false
	}
	if f.From != nil && e.CreatedAt.Before(*f.From) {
		return false
	}
	if f.To != nil && !e.CreatedAt.Before(*f.To) {
		return false
	}
	return true
}

func (r *auditRepo) List(_ context.Context, f repositories.AuditFilter, offset uint64, limit int) ([]*models.AuditLogEntry, int64, error) {
	all := []*models.AuditLogEntry{}
	err := r.sc.read(func(st *state) error {
		// newest first; the slice is already in append order
		for i := len(st.audit) - 1; i >= 0; i-- {
			if e := st.audit[i]; matchAudit(f, e) {
				all = append(all, &e)
			}
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	return page(all, offset, limit), int64(len(all)), nil
}
