package models

import (
	"encoding/json"
	"time"
)

// NotificationType values emitted by the lifecycle
const (
	NotifyInterventionScheduled = "intervention_scheduled"
	NotifyInterventionRequested = "intervention_requested"
	NotifyInterventionCompleted = "intervention_completed"
	NotifyInterventionCancelled = "intervention_cancelled"
	NotifyInterventionMissed    = "intervention_missed"
	NotifyInterventionReminder  = "intervention_reminder"
	NotifyRequestDeclined       = "request_declined"
	NotifyHighRiskAlert         = "high_risk_alert"
	NotifyAnnouncement          = "announcement"
)

// NotificationPriority of an in-app notification
type NotificationPriority string

const (
	NotificationLow    NotificationPriority = "Low"
	NotificationNormal NotificationPriority = "Normal"
	NotificationHigh   NotificationPriority = "High"
	NotificationUrgent NotificationPriority = "Urgent"
)

func (p NotificationPriority) Valid() bool {
	return p.Rank() > 0
}

func (p NotificationPriority) Rank() int {
	switch p {
	case NotificationLow:
		return 1
	case NotificationNormal:
		return 2
	case NotificationHigh:
		return 3
	case NotificationUrgent:
		return 4
	}
	return 0
}

// EntityRef is a weak, lookup-only pointer to another row
type EntityRef struct {
	Type EntityType `json:"type"`
	ID   int64      `json:"id"`
}

// Notification belongs to one user. Only the read flag ever changes.
type Notification struct {
	ID        int64                `json:"id" db:"notification_id"`
	UserID    int64                `json:"userId" db:"user_id"`
	Type      string               `json:"type" db:"notification_type"`
	Title     string               `json:"title" db:"title"`
	Message   string               `json:"message" db:"message"`
	Priority  NotificationPriority `json:"priority" db:"priority"`
	Related   *EntityRef           `json:"related,omitempty"`
	IsRead    bool                 `json:"isRead" db:"is_read"`
	ReadAt    *time.Time           `json:"readAt,omitempty" db:"read_at"`
	CreatedAt time.Time            `json:"createdAt" db:"created_at"`
}

// EmailStatus tracks an outbound message through the queue
type EmailStatus string

const (
	EmailPending EmailStatus = "Pending"
	// EmailSending marks a message leased by a mailer worker
	EmailSending EmailStatus = "Sending"
	EmailSent    EmailStatus = "Sent"
	EmailFailed  EmailStatus = "Failed"
)

// EmailMessage is a row of the email_queue table
type EmailMessage struct {
	ID             int64                `json:"id" db:"email_id"`
	NotificationID *int64               `json:"notificationId,omitempty" db:"notification_id"`
	DedupKey       string               `json:"dedupKey" db:"dedup_key"`
	ToEmail        string               `json:"toEmail" db:"to_email"`
	Subject        string               `json:"subject" db:"subject"`
	BodyHTML       string               `json:"bodyHtml" db:"body_html"`
	BodyText       string               `json:"bodyText" db:"body_text"`
	Priority       NotificationPriority `json:"priority" db:"priority"`
	Status         EmailStatus          `json:"status" db:"status"`
	Attempts       int                  `json:"attempts" db:"attempts"`
	LastError      string               `json:"lastError,omitempty" db:"last_error"`
	LeasedUntil    *time.Time           `json:"leasedUntil,omitempty" db:"leased_until"`
	CreatedAt      time.Time            `json:"createdAt" db:"created_at"`
	SentAt         *time.Time           `json:"sentAt,omitempty" db:"sent_at"`
}

// Audit action names
const (
	ActionRiskAssessmentRecorded = "RISK_ASSESSMENT_RECORDED"
	ActionInterventionCreated    = "INTERVENTION_CREATED"
	ActionInterventionRequested  = "INTERVENTION_REQUESTED"
	ActionInterventionTransition = "INTERVENTION_STATUS_CHANGED"
	ActionFollowUpScheduled      = "FOLLOW_UP_SCHEDULED"
	ActionNotificationSent       = "NOTIFICATION_SENT"
	ActionNotificationRead       = "NOTIFICATION_READ"
	ActionNotificationsBulkRead  = "NOTIFICATIONS_MARKED_READ"
	ActionStudentCreated         = "STUDENT_CREATED"
	ActionStudentStatusChanged   = "STUDENT_STATUS_CHANGED"
	ActionUserCreated            = "USER_CREATED"
)

// AuditLogEntry is append-only. ActorID is nil for system-initiated actions.
type AuditLogEntry struct {
	ID         int64           `json:"id" db:"audit_id"`
	ActorID    *int64          `json:"actorId,omitempty" db:"actor_id"`
	Action     string          `json:"action" db:"action"`
	EntityType EntityType      `json:"entityType" db:"entity_type"`
	EntityID   int64           `json:"entityId" db:"entity_id"`
	Before     json.RawMessage `json:"before,omitempty" db:"before_value"`
	After      json.RawMessage `json:"after,omitempty" db:"after_value"`
	CreatedAt  time.Time       `json:"createdAt" db:"created_at"`
}
