// Package services holds the business operations. Every mutating operation
// runs as one unit of work through repositories.Store: its notifications,
// queued emails and audit entries commit or roll back together with it.
//
// Services defined in this package:
//   - RiskLedgerService: versioned risk assessments with a single current row per (student, term)
//   - InterventionService: intervention state machine, follow-ups and advisor queues
//   - NotificationService: in-app notifications, email enqueue and realtime push
//   - AuditService: append-only audit trail
//   - StudentService, UserService: supporting registries
//   - EmailOutboxService: drains the email queue (mailer process)
package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/yigit/earlyalert/internal/app/models"
	"github.com/yigit/earlyalert/internal/pkg/apperrors"
	"github.com/yigit/earlyalert/internal/pkg/helpers"
)

// Publisher pushes committed notifications to connected clients
type Publisher interface {
	Publish(ctx context.Context, n *models.Notification) error
}

// Clock returns the current time; tests substitute a fixed one
type Clock func() time.Time

func systemClock() time.Time {
	return time.Now().UTC()
}

// snapshot encodes an audit before/after value; nil stays empty
func snapshot(v any) (json.RawMessage, error) {
	if v == nil {
		return nil, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, apperrors.NewStorageError("encode audit snapshot", err)
	}
	return raw, nil
}

// pageBounds converts a 1-based page request into offset/limit
func pageBounds(page, size int) (uint64, int) {
	return helpers.CalculateOffsetLimit(page, size)
}

func requirePositiveID(field string, id int64) error {
	if id <= 0 {
		return apperrors.NewValidationError(field, "must be a positive id")
	}
	return nil
}
