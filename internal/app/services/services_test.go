package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/yigit/earlyalert/internal/app/auth"
	"github.com/yigit/earlyalert/internal/app/models"
	"github.com/yigit/earlyalert/internal/app/repositories/memory"
)

// recordingPublisher captures everything pushed after commit
type recordingPublisher struct {
	mu        sync.Mutex
	published []*models.Notification
}

func (p *recordingPublisher) Publish(_ context.Context, n *models.Notification) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.published = append(p.published, n)
	return nil
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.published)
}

type fixture struct {
	t     *testing.T
	ctx   context.Context
	store *memory.Store
	pub   *recordingPublisher
	now   time.Time

	audit         AuditService
	notifications NotificationService
	ledger        RiskLedgerService
	interventions InterventionService
	students      StudentService
	users         UserService

	admin        auth.Actor
	advisor      auth.Actor
	studentActor auth.Actor

	studentID      int64
	otherStudentID int64
	templateID     int64
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		t:     t,
		ctx:   context.Background(),
		store: memory.New(),
		pub:   &recordingPublisher{},
		now:   time.Date(2024, 10, 1, 9, 0, 0, 0, time.UTC),
	}
	clock := func() time.Time { return f.now }
	log := zerolog.Nop()
	repos := f.store.Repos()
	ctx := f.ctx

	adminID, err := repos.Users.Create(ctx, &models.User{Email: "admin@example.edu", FirstName: "Ada", LastName: "Admin", Role: models.RoleAdmin, IsActive: true})
	require.NoError(t, err)
	advisorID, err := repos.Users.Create(ctx, &models.User{Email: "advisor@example.edu", FirstName: "Jane", LastName: "Doe", Role: models.RoleAdvisor, IsActive: true})
	require.NoError(t, err)
	studentUserID, err := repos.Users.Create(ctx, &models.User{Email: "ana@example.edu", FirstName: "Ana", LastName: "Diaz", Role: models.RoleStudent, IsActive: true})
	require.NoError(t, err)

	require.NoError(t, repos.Terms.Upsert(ctx, &models.Term{
		ID:        "2024F",
		Name:      "Fall 2024",
		StartDate: time.Date(2024, 8, 26, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2024, 12, 20, 0, 0, 0, 0, time.UTC),
	}))

	f.studentID, err = repos.Students.Create(ctx, &models.Student{
		BannerID: "B00000042", FirstName: "Ana", LastName: "Diaz", Email: "ana@example.edu",
		EnrollmentStatus: models.EnrollmentActive, PrimaryAdvisorID: &advisorID, UserID: &studentUserID,
	})
	require.NoError(t, err)
	f.otherStudentID, err = repos.Students.Create(ctx, &models.Student{
		BannerID: "B00000043", FirstName: "Bo", LastName: "Eng",
		EnrollmentStatus: models.EnrollmentActive, PrimaryAdvisorID: &advisorID,
	})
	require.NoError(t, err)

	duration := 30
	f.templateID, err = repos.InterventionTypes.Create(ctx, &models.InterventionType{
		Name: "Academic Check-In", Category: "Academic", Description: "Review grades and study plan",
		DefaultPriority: models.PriorityMedium, DefaultDurationMinutes: &duration, IsActive: true,
	})
	require.NoError(t, err)

	f.admin = auth.Actor{UserID: adminID, Role: models.RoleAdmin}
	f.advisor = auth.Actor{UserID: advisorID, Role: models.RoleAdvisor}
	f.studentActor = auth.Actor{UserID: studentUserID, Role: models.RoleStudent}

	authz := auth.NewAuthorizationService(repos.Students)

	audit := NewAuditService(f.store, authz, log).(*auditServiceImpl)
	audit.now = clock
	notifications := NewNotificationService(f.store, authz, audit, f.pub, true, log).(*notificationServiceImpl)
	notifications.now = clock
	ledger := NewRiskLedgerService(f.store, authz, notifications, audit, models.DefaultRiskThresholds, log).(*riskLedgerServiceImpl)
	ledger.now = clock
	interventions := NewInterventionService(f.store, authz, notifications, audit, 7, log).(*interventionServiceImpl)
	interventions.now = clock
	students := NewStudentService(f.store, authz, audit, log).(*studentServiceImpl)
	students.now = clock
	users := NewUserService(f.store, authz, audit, log).(*userServiceImpl)
	users.now = clock

	f.audit = audit
	f.notifications = notifications
	f.ledger = ledger
	f.interventions = interventions
	f.students = students
	f.users = users
	return f
}

func (f *fixture) auditFor(entityType models.EntityType, id int64) []*models.AuditLogEntry {
	f.t.Helper()
	entries, err := f.store.Repos().Audit.ListForEntity(f.ctx, entityType, id)
	require.NoError(f.t, err)
	return entries
}

func (f *fixture) inbox(userID int64) []*models.Notification {
	f.t.Helper()
	items, err := f.store.Repos().Notifications.ListUnread(f.ctx, userID, 0)
	require.NoError(f.t, err)
	return items
}

func (f *fixture) intervention(id int64) *models.Intervention {
	f.t.Helper()
	i, err := f.store.Repos().Interventions.GetByID(f.ctx, id)
	require.NoError(f.t, err)
	return i
}

func (f *fixture) emailCount() int64 {
	f.t.Helper()
	counts, err := f.store.Repos().Emails.CountByStatus(f.ctx)
	require.NoError(f.t, err)
	var total int64
	for _, n := range counts {
		total += n
	}
	return total
}

// scheduled creates an advisor intervention for the fixture student
func (f *fixture) scheduled(at *time.Time) int64 {
	f.t.Helper()
	templateID := f.templateID
	id, err := f.interventions.Create(f.ctx, f.advisor, CreateInterventionRequest{
		StudentID:      f.studentID,
		AdvisorID:      f.advisor.UserID,
		TypeTemplateID: &templateID,
		ScheduledAt:    at,
	})
	require.NoError(f.t, err)
	return id
}

func (f *fixture) transition(id int64, to models.InterventionStatus) {
	f.t.Helper()
	require.NoError(f.t, f.interventions.Transition(f.ctx, f.advisor, TransitionRequest{InterventionID: id, NewStatus: to}))
}

func (f *fixture) completed() int64 {
	f.t.Helper()
	id := f.scheduled(nil)
	f.transition(id, models.StatusInProgress)
	rating := 4
	require.NoError(f.t, f.interventions.Complete(f.ctx, f.advisor, id, CompletionDetails{
		OutcomeAssessment: "Agreed on a tutoring plan",
		SuccessRating:     &rating,
	}, ""))
	return id
}

func ptr[T any](v T) *T {
	return &v
}
