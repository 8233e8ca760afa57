package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/yigit/earlyalert/internal/app/auth"
	"github.com/yigit/earlyalert/internal/app/models"
	"github.com/yigit/earlyalert/internal/app/repositories"
	"github.com/yigit/earlyalert/internal/pkg/apperrors"
	"github.com/yigit/earlyalert/internal/pkg/email"
)

const defaultUnreadLimit = 50

// NotifyRequest describes one notification to create
type NotifyRequest struct {
	UserID   int64
	Type     string
	Title    string
	Message  string
	Priority models.NotificationPriority
	Related  *models.EntityRef
	// Email additionally queues an outbound message to the user's address
	Email bool
	// EmailKey identifies the logical event behind the email; an event that is
	// enqueued twice for the same user yields one message. Defaults to the
	// notification id.
	EmailKey string
}

// Dispatch collects the notifications created inside one unit of work so
// they can be pushed to live clients once it has committed.
type Dispatch struct {
	created []*models.Notification
}

// Created returns the notifications collected so far
func (d *Dispatch) Created() []*models.Notification {
	if d == nil {
		return nil
	}
	return d.created
}

// NotificationService defines the interface for notification operations
type NotificationService interface {
	// NotifyTx creates a notification inside the caller's unit of work
	NotifyTx(ctx context.Context, repos *repositories.Repositories, d *Dispatch, req NotifyRequest) (*models.Notification, error)
	// Flush publishes d's notifications; call only after commit
	Flush(ctx context.Context, d *Dispatch)

	Notify(ctx context.Context, actor auth.Actor, req NotifyRequest) (int64, error)
	Broadcast(ctx context.Context, actor auth.Actor, userIDs []int64, req NotifyRequest) ([]int64, error)
	MarkRead(ctx context.Context, actor auth.Actor, notificationID int64) error
	MarkAllRead(ctx context.Context, actor auth.Actor) (int64, error)
	UnreadFor(ctx context.Context, actor auth.Actor, userID int64, limit int) ([]*models.Notification, error)
}

type notificationServiceImpl struct {
	store        repositories.Store
	authz        *auth.AuthorizationService
	audit        AuditService
	publisher    Publisher
	emailEnabled bool
	now          Clock
	logger       zerolog.Logger
}

// NewNotificationService creates a new NotificationService. publisher may be nil.
func NewNotificationService(
	store repositories.Store,
	authz *auth.AuthorizationService,
	audit AuditService,
	publisher Publisher,
	emailEnabled bool,
	logger zerolog.Logger,
) NotificationService {
	return &notificationServiceImpl{
		store:        store,
		authz:        authz,
		audit:        audit,
		publisher:    publisher,
		emailEnabled: emailEnabled,
		now:          systemClock,
		logger:       logger,
	}
}

func validateNotifyRequest(req *NotifyRequest) error {
	if err := requirePositiveID("userId", req.UserID); err != nil {
		return err
	}
	req.Type = strings.TrimSpace(req.Type)
	req.Title = strings.TrimSpace(req.Title)
	if req.Type == "" {
		return apperrors.NewValidationError("type", "is required")
	}
	if req.Title == "" {
		return apperrors.NewValidationError("title", "is required")
	}
	if req.Priority == "" {
		req.Priority = models.NotificationNormal
	}
	if !req.Priority.Valid() {
		return apperrors.NewValidationError("priority", "must be one of Low, Normal, High, Urgent")
	}
	return nil
}

func (s *notificationServiceImpl) NotifyTx(ctx context.Context, repos *repositories.Repositories, d *Dispatch, req NotifyRequest) (*models.Notification, error) {
	if err := validateNotifyRequest(&req); err != nil {
		return nil, err
	}

	n := &models.Notification{
		UserID:    req.UserID,
		Type:      req.Type,
		Title:     req.Title,
		Message:   req.Message,
		Priority:  req.Priority,
		Related:   req.Related,
		CreatedAt: s.now(),
	}
	if _, err := repos.Notifications.Create(ctx, n); err != nil {
		return nil, err
	}

	if req.Email && s.emailEnabled {
		key := fmt.Sprintf("notification:%d", n.ID)
		if req.EmailKey != "" {
			key = fmt.Sprintf("%s:user:%d", req.EmailKey, n.UserID)
		}
		if err := s.enqueueEmail(ctx, repos, n, key); err != nil {
			return nil, err
		}
	}

	if d != nil {
		d.created = append(d.created, n)
	}
	return n, nil
}

// enqueueEmail writes the outbound message in the same unit of work; delivery
// happens later in the mailer and never affects this transaction.
func (s *notificationServiceImpl) enqueueEmail(ctx context.Context, repos *repositories.Repositories, n *models.Notification, dedupKey string) error {
	user, err := repos.Users.GetByID(ctx, n.UserID)
	if err != nil {
		return err
	}
	if user.Email == "" || !user.IsActive {
		return nil
	}

	subject, htmlBody, textBody := email.Render(email.Content{
		RecipientName: user.FullName(),
		Title:         n.Title,
		Message:       n.Message,
		Priority:      string(n.Priority),
	})
	notificationID := n.ID
	_, err = repos.Emails.Enqueue(ctx, &models.EmailMessage{
		NotificationID: &notificationID,
		DedupKey:       dedupKey,
		ToEmail:        user.Email,
		Subject:        subject,
		BodyHTML:       htmlBody,
		BodyText:       textBody,
		Priority:       n.Priority,
		CreatedAt:      s.now(),
	})
	return err
}

func (s *notificationServiceImpl) Flush(ctx context.Context, d *Dispatch) {
	if s.publisher == nil {
		return
	}
	for _, n := range d.Created() {
		if err := s.publisher.Publish(ctx, n); err != nil {
			// best effort; the notification is already committed and will show as unread
			s.logger.Warn().Err(err).Int64("notificationID", n.ID).Msg("Failed to publish notification")
		}
	}
}

func (s *notificationServiceImpl) Notify(ctx context.Context, actor auth.Actor, req NotifyRequest) (int64, error) {
	ids, err := s.Broadcast(ctx, actor, []int64{req.UserID}, req)
	if err != nil {
		return 0, err
	}
	return ids[0], nil
}

func (s *notificationServiceImpl) Broadcast(ctx context.Context, actor auth.Actor, userIDs []int64, req NotifyRequest) ([]int64, error) {
	if err := s.authz.Require(actor, auth.CapNotify); err != nil {
		return nil, err
	}
	if len(userIDs) == 0 {
		return nil, apperrors.NewValidationError("userIds", "at least one recipient is required")
	}

	d := &Dispatch{}
	ids := make([]int64, 0, len(userIDs))
	err := s.store.WithTx(ctx, func(ctx context.Context, r *repositories.Repositories) error {
		for _, userID := range userIDs {
			one := req
			one.UserID = userID
			n, err := s.NotifyTx(ctx, r, d, one)
			if err != nil {
				return err
			}
			ids = append(ids, n.ID)

			if err := s.audit.RecordTx(ctx, r, AuditRecord{
				Actor:      actor,
				Action:     models.ActionNotificationSent,
				EntityType: models.EntityNotification,
				EntityID:   n.ID,
				After:      map[string]any{"userId": n.UserID, "type": n.Type, "title": n.Title, "priority": n.Priority},
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.Flush(ctx, d)
	s.logger.Info().Int("count", len(ids)).Str("type", req.Type).Msg("Notifications sent")
	return ids, nil
}

func (s *notificationServiceImpl) MarkRead(ctx context.Context, actor auth.Actor, notificationID int64) error {
	if err := s.authz.RequireAny(actor, auth.CapReadOwnNotifications); err != nil {
		return err
	}

	return s.store.WithTx(ctx, func(ctx context.Context, r *repositories.Repositories) error {
		n, err := r.Notifications.GetByID(ctx, notificationID)
		if err != nil {
			return err
		}
		if n.UserID != actor.UserID {
			// do not reveal other users' notifications
			return apperrors.NewNotFoundError("notification", notificationID)
		}

		changed, err := r.Notifications.MarkRead(ctx, notificationID, s.now())
		if err != nil || !changed {
			return err
		}
		return s.audit.RecordTx(ctx, r, AuditRecord{
			Actor:      actor,
			Action:     models.ActionNotificationRead,
			EntityType: models.EntityNotification,
			EntityID:   notificationID,
			Before:     map[string]any{"isRead": false},
			After:      map[string]any{"isRead": true},
		})
	})
}

func (s *notificationServiceImpl) MarkAllRead(ctx context.Context, actor auth.Actor) (int64, error) {
	if err := s.authz.RequireAny(actor, auth.CapReadOwnNotifications); err != nil {
		return 0, err
	}

	var count int64
	err := s.store.WithTx(ctx, func(ctx context.Context, r *repositories.Repositories) error {
		var err error
		count, err = r.Notifications.MarkAllRead(ctx, actor.UserID, s.now())
		if err != nil || count == 0 {
			return err
		}
		return s.audit.RecordTx(ctx, r, AuditRecord{
			Actor:      actor,
			Action:     models.ActionNotificationsBulkRead,
			EntityType: models.EntityUser,
			EntityID:   actor.UserID,
			After:      map[string]any{"marked": count},
		})
	})
	return count, err
}

func (s *notificationServiceImpl) UnreadFor(ctx context.Context, actor auth.Actor, userID int64, limit int) ([]*models.Notification, error) {
	if err := s.authz.RequireAny(actor, auth.CapReadOwnNotifications); err != nil {
		return nil, err
	}
	if userID != actor.UserID && actor.Role != models.RoleAdmin {
		return nil, apperrors.NewPermissionError("notifications of other users are private")
	}
	if limit <= 0 || limit > 200 {
		limit = defaultUnreadLimit
	}

	items, err := s.store.Repos().Notifications.ListUnread(ctx, userID, limit)
	if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
		return nil, err
	}
	return items, nil
}
