package repositories

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/yigit/earlyalert/internal/app/models"
)

// Querier is satisfied by both *pgxpool.Pool and pgx.Tx so every repository
// runs unchanged inside or outside a transaction.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store is the unit-of-work boundary. Repos() reads committed state; WithTx
// hands fn a set of repositories bound to one transaction that commits only
// if fn returns nil.
type Store interface {
	Repos() *Repositories
	WithTx(ctx context.Context, fn func(ctx context.Context, r *Repositories) error) error
}

// Repositories holds all the repository instances of one scope
type Repositories struct {
	Users             UserRepository
	Terms             TermRepository
	Students          StudentRepository
	Assessments       RiskAssessmentRepository
	InterventionTypes InterventionTypeRepository
	Interventions     InterventionRepository
	Notifications     NotificationRepository
	Emails            EmailRepository
	Audit             AuditRepository
}

type UserRepository interface {
	Create(ctx context.Context, user *models.User) (int64, error)
	GetByID(ctx context.Context, id int64) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
}

type TermRepository interface {
	Upsert(ctx context.Context, term *models.Term) error
	GetByID(ctx context.Context, id string) (*models.Term, error)
	List(ctx context.Context) ([]*models.Term, error)
}

// StudentFilter is the typed predicate for student listings
type StudentFilter struct {
	Search           string
	EnrollmentStatus models.EnrollmentStatus
	PrimaryAdvisorID *int64
	Classification   string
}

type StudentRepository interface {
	Create(ctx context.Context, student *models.Student) (int64, error)
	GetByID(ctx context.Context, id int64) (*models.Student, error)
	// GetByIDForUpdate locks the student row until the transaction ends
	GetByIDForUpdate(ctx context.Context, id int64) (*models.Student, error)
	GetByUserID(ctx context.Context, userID int64) (*models.Student, error)
	List(ctx context.Context, filter StudentFilter, offset uint64, limit int) ([]*models.Student, int64, error)
	UpdateEnrollmentStatus(ctx context.Context, id int64, status models.EnrollmentStatus, at time.Time) error
}

type RiskAssessmentRepository interface {
	GetCurrentForTerm(ctx context.Context, studentID int64, termID string) (*models.RiskAssessment, error)
	// ClearCurrent flips is_current off for (student, term) and reports how many rows changed
	ClearCurrent(ctx context.Context, studentID int64, termID string) (int64, error)
	Insert(ctx context.Context, a *models.RiskAssessment) (int64, error)
	GetCurrent(ctx context.Context, studentID int64) (*models.RiskAssessment, error)
	ListByStudent(ctx context.Context, studentID int64, offset uint64, limit int) ([]*models.RiskAssessment, int64, error)
	CountCurrent(ctx context.Context, studentID int64, termID string) (int, error)
}

type InterventionTypeRepository interface {
	Create(ctx context.Context, t *models.InterventionType) (int64, error)
	GetByID(ctx context.Context, id int64) (*models.InterventionType, error)
	GetByName(ctx context.Context, name string) (*models.InterventionType, error)
	List(ctx context.Context, activeOnly bool) ([]*models.InterventionType, error)
}

// InterventionOrder selects the sort applied to intervention listings
type InterventionOrder int

const (
	// OrderNewest sorts by creation time, newest first
	OrderNewest InterventionOrder = iota
	// OrderPriority sorts by priority (Critical first) then scheduled time
	OrderPriority
	// OrderScheduled sorts by scheduled time, earliest first
	OrderScheduled
	// OrderFollowUpDate sorts by follow-up date, earliest first
	OrderFollowUpDate
)

// InterventionFilter is the typed predicate for intervention listings.
// Zero values mean "no constraint".
type InterventionFilter struct {
	StudentID        *int64
	AdvisorID        *int64
	Statuses         []models.InterventionStatus
	ScheduledFrom    *time.Time
	ScheduledBefore  *time.Time
	// ReminderDue keeps interventions whose current schedule was not reminded yet
	ReminderDue      bool
	FollowUpRequired *bool
	FollowUpDueBy    *time.Time
	// WithoutFollowUp drops interventions that already have a linked follow-up
	WithoutFollowUp  bool
	IsStudentRequest *bool
	CreatedFrom      *time.Time
	CreatedTo        *time.Time
	Order            InterventionOrder
}

// StatsFilter narrows intervention statistics
type StatsFilter struct {
	AdvisorID *int64
	From      *time.Time
	To        *time.Time
}

type InterventionRepository interface {
	Create(ctx context.Context, i *models.Intervention) (int64, error)
	GetByID(ctx context.Context, id int64) (*models.Intervention, error)
	// GetByIDForUpdate locks the intervention row until the transaction ends
	GetByIDForUpdate(ctx context.Context, id int64) (*models.Intervention, error)
	Update(ctx context.Context, i *models.Intervention) error
	List(ctx context.Context, filter InterventionFilter, offset uint64, limit int) ([]*models.Intervention, int64, error)
	FindFollowUp(ctx context.Context, originalID int64) (*models.Intervention, error)
	Stats(ctx context.Context, filter StatsFilter) (*models.InterventionStats, error)
}

type NotificationRepository interface {
	Create(ctx context.Context, n *models.Notification) (int64, error)
	GetByID(ctx context.Context, id int64) (*models.Notification, error)
	// MarkRead is a no-op on an already read notification
	MarkRead(ctx context.Context, id int64, at time.Time) (bool, error)
	MarkAllRead(ctx context.Context, userID int64, at time.Time) (int64, error)
	ListUnread(ctx context.Context, userID int64, limit int) ([]*models.Notification, error)
}

type EmailRepository interface {
	Enqueue(ctx context.Context, m *models.EmailMessage) (int64, error)
	GetByID(ctx context.Context, id int64) (*models.EmailMessage, error)
	// ClaimBatch leases up to limit deliverable messages: Pending ones plus
	// Sending ones whose lease expired. Concurrent claimers never share a row.
	ClaimBatch(ctx context.Context, limit int, now time.Time, lease time.Duration) ([]*models.EmailMessage, error)
	MarkSent(ctx context.Context, id int64, at time.Time) error
	// MarkAttemptFailed bumps attempts and moves the message to Failed once maxAttempts is reached
	MarkAttemptFailed(ctx context.Context, id int64, lastError string, maxAttempts int) (models.EmailStatus, error)
	CountByStatus(ctx context.Context) (map[models.EmailStatus]int64, error)
}

// AuditFilter is the typed predicate for audit listings
type AuditFilter struct {
	ActorID    *int64
	EntityType models.EntityType
	Action     string
	From       *time.Time
	To         *time.Time
}

// AuditRepository has no update or delete by contract
type AuditRepository interface {
	Append(ctx context.Context, e *models.AuditLogEntry) (int64, error)
	ListForEntity(ctx context.Context, entityType models.EntityType, entityID int64) ([]*models.AuditLogEntry, error)
	List(ctx context.Context, filter AuditFilter, offset uint64, limit int) ([]*models.AuditLogEntry, int64, error)
}
