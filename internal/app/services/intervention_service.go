package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/yigit/earlyalert/internal/app/auth"
	"github.com/yigit/earlyalert/internal/app/models"
	"github.com/yigit/earlyalert/internal/app/repositories"
	"github.com/yigit/earlyalert/internal/pkg/apperrors"
	"github.com/yigit/earlyalert/internal/pkg/validation"
)

const noteTimeLayout = "2006-01-02 15:04:05"

// CreateInterventionRequest creates an advisor-initiated intervention.
// Zero fields inherit from the type template when one is given.
type CreateInterventionRequest struct {
	StudentID              int64
	AdvisorID              int64
	Title                  string
	Description            string
	Priority               models.Priority
	ScheduledAt            *time.Time
	TypeTemplateID         *int64
	Method                 models.Method
	Location               string
	PlannedDurationMinutes *int
	Notes                  string
}

// StudentRequest is a student asking for an appointment
type StudentRequest struct {
	Title       string
	Reason      string
	PreferredAt *time.Time
	Method      models.Method
}

// CompletionDetails are required when moving to Completed
type CompletionDetails struct {
	OutcomeAssessment string
	SuccessRating     *int
	StudentResponse   string
	DurationMinutes   *int
}

// TransitionRequest moves an intervention along the state machine
type TransitionRequest struct {
	InterventionID int64
	NewStatus      models.InterventionStatus
	Notes          string
	// Completion must be set when NewStatus is Completed
	Completion *CompletionDetails
}

// FollowUpRequest creates the follow-up intervention of a completed one
type FollowUpRequest struct {
	OriginalID  int64
	Title       string
	Description string
	Priority    models.Priority
	// ScheduledAt defaults to the original's follow-up date
	ScheduledAt *time.Time
	Notes       string
}

// BulkCreateRequest creates one intervention per student from a template
type BulkCreateRequest struct {
	StudentIDs     []int64
	AdvisorID      int64
	TypeTemplateID int64
	Priority       models.Priority
	ScheduledAt    *time.Time
}

// InterventionService defines the interface for the intervention lifecycle
type InterventionService interface {
	Create(ctx context.Context, actor auth.Actor, req CreateInterventionRequest) (int64, error)
	RequestIntervention(ctx context.Context, actor auth.Actor, req StudentRequest) (int64, error)
	Transition(ctx context.Context, actor auth.Actor, req TransitionRequest) error
	Complete(ctx context.Context, actor auth.Actor, interventionID int64, details CompletionDetails, notes string) error
	ScheduleFollowUp(ctx context.Context, actor auth.Actor, interventionID int64, followUpDate time.Time, notes string) error
	CreateFollowUp(ctx context.Context, actor auth.Actor, req FollowUpRequest) (int64, error)
	BulkCreate(ctx context.Context, actor auth.Actor, req BulkCreateRequest) ([]int64, error)

	Get(ctx context.Context, actor auth.Actor, interventionID int64) (*models.Intervention, error)
	ListForStudent(ctx context.Context, actor auth.Actor, studentID int64, status *models.InterventionStatus) ([]*models.Intervention, error)
	ListForAdvisor(ctx context.Context, actor auth.Actor, advisorID int64, filter repositories.InterventionFilter, page, size int) ([]*models.Intervention, int64, error)
	PendingFor(ctx context.Context, actor auth.Actor, advisorID int64) ([]*models.Intervention, error)
	OverdueFor(ctx context.Context, actor auth.Actor, advisorID int64) ([]*models.Intervention, error)
	FollowUpsDueFor(ctx context.Context, actor auth.Actor, advisorID int64, withinDays *int) ([]*models.Intervention, error)
	Statistics(ctx context.Context, actor auth.Actor, filter repositories.StatsFilter) (*models.InterventionStats, error)
	ListTypes(ctx context.Context, actor auth.Actor) ([]*models.InterventionType, error)
}

type interventionServiceImpl struct {
	store             repositories.Store
	authz             *auth.AuthorizationService
	notifications     NotificationService
	audit             AuditService
	defaultWindowDays int
	now               Clock
	logger            zerolog.Logger
}

// NewInterventionService creates a new InterventionService
func NewInterventionService(
	store repositories.Store,
	authz *auth.AuthorizationService,
	notifications NotificationService,
	audit AuditService,
	defaultWindowDays int,
	logger zerolog.Logger,
) InterventionService {
	if defaultWindowDays <= 0 {
		defaultWindowDays = 7
	}
	return &interventionServiceImpl{
		store:             store,
		authz:             authz,
		notifications:     notifications,
		audit:             audit,
		defaultWindowDays: defaultWindowDays,
		now:               systemClock,
		logger:            logger,
	}
}

// appendNote adds a timestamped entry to the log; prior entries are kept verbatim
func appendNote(existing string, at time.Time, header, note string) string {
	entry := fmt.Sprintf("[%s] %s", at.Format(noteTimeLayout), header)
	if note = strings.TrimSpace(note); note != "" {
		entry += "\n" + note
	}
	if existing == "" {
		return entry
	}
	return existing + "\n\n" + entry
}

func transitionError(i *models.Intervention, to models.InterventionStatus) error {
	allowed := i.Status.AllowedNext()
	names := make([]string, len(allowed))
	for k, s := range allowed {
		names[k] = string(s)
	}
	return &apperrors.InvalidTransitionError{
		Entity:  "intervention",
		ID:      i.ID,
		From:    string(i.Status),
		To:      string(to),
		Allowed: names,
	}
}

func requireStatus(i *models.Intervention, op string, required models.InterventionStatus) error {
	if i.Status == required {
		return nil
	}
	return &apperrors.InvalidTransitionError{
		Entity:  "intervention",
		ID:      i.ID,
		From:    string(i.Status),
		Op:      op,
		Allowed: []string{string(required)},
	}
}

func validateCompletion(c *CompletionDetails) error {
	if c == nil {
		return apperrors.NewValidationError("outcomeAssessment", "is required to complete an intervention")
	}
	c.OutcomeAssessment = strings.TrimSpace(c.OutcomeAssessment)
	if c.OutcomeAssessment == "" {
		return apperrors.NewValidationError("outcomeAssessment", "is required to complete an intervention")
	}
	if c.SuccessRating == nil {
		return apperrors.NewValidationError("successRating", "is required to complete an intervention")
	}
	if *c.SuccessRating < 1 || *c.SuccessRating > 5 {
		return apperrors.NewValidationError("successRating", "must be between 1 and 5")
	}
	if c.DurationMinutes != nil && *c.DurationMinutes < 0 {
		return apperrors.NewValidationError("durationMinutes", "cannot be negative")
	}
	return nil
}

// studentUserNotice notifies the student's own account, when one is linked
func (s *interventionServiceImpl) studentUserNotice(ctx context.Context, r *repositories.Repositories, d *Dispatch, studentID int64, i *models.Intervention, notifType, title, message string) error {
	student, err := r.Students.GetByID(ctx, studentID)
	if err != nil {
		return err
	}
	if student.UserID == nil {
		return nil
	}
	_, err = s.notifications.NotifyTx(ctx, r, d, NotifyRequest{
		UserID:   *student.UserID,
		Type:     notifType,
		Title:    title,
		Message:  message,
		Priority: notificationPriorityFor(i.Priority),
		Related:  &models.EntityRef{Type: models.EntityIntervention, ID: i.ID},
		Email:    true,
	})
	return err
}

func notificationPriorityFor(p models.Priority) models.NotificationPriority {
	switch p {
	case models.PriorityCritical:
		return models.NotificationUrgent
	case models.PriorityHigh:
		return models.NotificationHigh
	case models.PriorityLow:
		return models.NotificationLow
	default:
		return models.NotificationNormal
	}
}

func describeSchedule(at *time.Time) string {
	if at == nil {
		return "Your advisor will contact you with a time."
	}
	return "Scheduled for " + at.UTC().Format("Mon Jan 2, 2006 15:04 MST") + "."
}

// buildIntervention applies template defaults and validates the result
func buildIntervention(ctx context.Context, r *repositories.Repositories, req CreateInterventionRequest) (*models.Intervention, error) {
	if err := requirePositiveID("studentId", req.StudentID); err != nil {
		return nil, err
	}
	if err := requirePositiveID("advisorId", req.AdvisorID); err != nil {
		return nil, err
	}

	i := &models.Intervention{
		StudentID:              req.StudentID,
		AdvisorID:              req.AdvisorID,
		InterventionTypeID:     req.TypeTemplateID,
		Title:                  strings.TrimSpace(req.Title),
		Description:            strings.TrimSpace(req.Description),
		Priority:               req.Priority,
		Method:                 req.Method,
		Location:               strings.TrimSpace(req.Location),
		ScheduledAt:            req.ScheduledAt,
		PlannedDurationMinutes: req.PlannedDurationMinutes,
	}

	if req.TypeTemplateID != nil {
		tmpl, err := r.InterventionTypes.GetByID(ctx, *req.TypeTemplateID)
		if err != nil {
			return nil, err
		}
		if !tmpl.IsActive {
			return nil, apperrors.NewValidationError("typeTemplateId", "intervention type "+tmpl.Name+" is inactive")
		}
		if i.Title == "" {
			i.Title = tmpl.Name
		}
		if i.Description == "" {
			i.Description = tmpl.Description
		}
		if i.Priority == "" {
			i.Priority = tmpl.DefaultPriority
		}
		if i.PlannedDurationMinutes == nil && tmpl.DefaultDurationMinutes != nil {
			d := *tmpl.DefaultDurationMinutes
			i.PlannedDurationMinutes = &d
		}
	}

	if msg := validation.NewStringValidation(i.Title).WithMaxLength(validation.TitleMaxLength).Validate(); msg != "" {
		return nil, apperrors.NewValidationError("title", msg)
	}
	if i.Priority == "" {
		i.Priority = models.PriorityMedium
	}
	if !i.Priority.Valid() {
		return nil, apperrors.NewValidationError("priority", "must be one of Low, Medium, High, Critical")
	}
	if i.Method == "" {
		i.Method = models.MethodInPerson
	}
	if !i.Method.Valid() {
		return nil, apperrors.NewValidationError("method", "must be one of In-person, Virtual, Phone, Email")
	}
	if i.PlannedDurationMinutes != nil && *i.PlannedDurationMinutes <= 0 {
		return nil, apperrors.NewValidationError("plannedDurationMinutes", "must be positive")
	}
	if i.ScheduledAt != nil {
		at := i.ScheduledAt.UTC()
		i.ScheduledAt = &at
	}
	return i, nil
}

// createTx inserts a Scheduled intervention with its notification and audit entry
func (s *interventionServiceImpl) createTx(ctx context.Context, r *repositories.Repositories, d *Dispatch, actor auth.Actor, i *models.Intervention, notes string) error {
	if _, err := r.Students.GetByID(ctx, i.StudentID); err != nil {
		return err
	}
	advisor, err := r.Users.GetByID(ctx, i.AdvisorID)
	if err != nil {
		return err
	}
	if advisor.Role != models.RoleAdvisor && advisor.Role != models.RoleAdmin {
		return apperrors.NewValidationError("advisorId", fmt.Sprintf("user %d is not an advisor", advisor.ID))
	}

	now := s.now()
	i.Status = models.StatusScheduled
	i.CreatedBy = actor.AuditID()
	i.CreatedAt, i.UpdatedAt = now, now
	if notes = strings.TrimSpace(notes); notes != "" {
		i.Notes = appendNote("", now, "Created", notes)
	}

	if _, err := r.Interventions.Create(ctx, i); err != nil {
		return err
	}

	if err := s.studentUserNotice(ctx, r, d, i.StudentID, i, models.NotifyInterventionScheduled,
		"Intervention Scheduled",
		fmt.Sprintf("Your advisor has scheduled \"%s\". %s", i.Title, describeSchedule(i.ScheduledAt))); err != nil {
		return err
	}

	return s.audit.RecordTx(ctx, r, AuditRecord{
		Actor:      actor,
		Action:     models.ActionInterventionCreated,
		EntityType: models.EntityIntervention,
		EntityID:   i.ID,
		After:      i.Snapshot(),
	})
}

func (s *interventionServiceImpl) Create(ctx context.Context, actor auth.Actor, req CreateInterventionRequest) (int64, error) {
	if err := s.authz.Require(actor, auth.CapManageInterventions); err != nil {
		return 0, err
	}

	var created *models.Intervention
	d := &Dispatch{}
	err := s.store.WithTx(ctx, func(ctx context.Context, r *repositories.Repositories) error {
		i, err := buildIntervention(ctx, r, req)
		if err != nil {
			return err
		}
		if err := s.createTx(ctx, r, d, actor, i, req.Notes); err != nil {
			return err
		}
		created = i
		return nil
	})
	if err != nil {
		return 0, err
	}

	s.notifications.Flush(ctx, d)
	s.logger.Info().
		Int64("interventionID", created.ID).
		Int64("studentID", created.StudentID).
		Int64("advisorID", created.AdvisorID).
		Msg("Intervention created")
	return created.ID, nil
}

// RequestIntervention records a student's own appointment request as Pending
// for triage by their primary advisor.
func (s *interventionServiceImpl) RequestIntervention(ctx context.Context, actor auth.Actor, req StudentRequest) (int64, error) {
	if err := s.authz.RequireAny(actor, auth.CapRequestIntervention); err != nil {
		return 0, err
	}
	title := strings.TrimSpace(req.Title)
	if msg := validation.NewStringValidation(title).WithMaxLength(validation.TitleMaxLength).Validate(); msg != "" {
		return 0, apperrors.NewValidationError("title", msg)
	}
	method := req.Method
	if method == "" {
		method = models.MethodInPerson
	}
	if !method.Valid() {
		return 0, apperrors.NewValidationError("method", "must be one of In-person, Virtual, Phone, Email")
	}

	var created *models.Intervention
	d := &Dispatch{}
	err := s.store.WithTx(ctx, func(ctx context.Context, r *repositories.Repositories) error {
		student, err := r.Students.GetByUserID(ctx, actor.UserID)
		if err != nil {
			if errors.Is(err, apperrors.ErrNotFound) {
				return apperrors.NewPermissionError("no student profile is linked to this account")
			}
			return err
		}
		if student.PrimaryAdvisorID == nil {
			return apperrors.NewValidationError("advisorId", "no primary advisor is assigned; contact the advising office")
		}

		now := s.now()
		i := &models.Intervention{
			StudentID:        student.ID,
			AdvisorID:        *student.PrimaryAdvisorID,
			Title:            title,
			Description:      strings.TrimSpace(req.Reason),
			Priority:         models.PriorityMedium,
			Status:           models.StatusPending,
			Method:           method,
			ScheduledAt:      req.PreferredAt,
			IsStudentRequest: true,
			CreatedBy:        actor.AuditID(),
			CreatedAt:        now,
			UpdatedAt:        now,
		}
		if _, err := r.Interventions.Create(ctx, i); err != nil {
			return err
		}

		if _, err := s.notifications.NotifyTx(ctx, r, d, NotifyRequest{
			UserID:   i.AdvisorID,
			Type:     models.NotifyInterventionRequested,
			Title:    "New Appointment Request",
			Message:  fmt.Sprintf("%s requested \"%s\".", student.FullName(), i.Title),
			Priority: models.NotificationNormal,
			Related:  &models.EntityRef{Type: models.EntityIntervention, ID: i.ID},
			Email:    true,
		}); err != nil {
			return err
		}

		created = i
		return s.audit.RecordTx(ctx, r, AuditRecord{
			Actor:      actor,
			Action:     models.ActionInterventionRequested,
			EntityType: models.EntityIntervention,
			EntityID:   i.ID,
			After:      i.Snapshot(),
		})
	})
	if err != nil {
		return 0, err
	}

	s.notifications.Flush(ctx, d)
	s.logger.Info().
		Int64("interventionID", created.ID).
		Int64("studentID", created.StudentID).
		Msg("Intervention requested by student")
	return created.ID, nil
}

// transitionNotice picks the student notification for an edge, if any
func transitionNotice(from, to models.InterventionStatus, i *models.Intervention) (notifType, title, message string) {
	switch {
	case from == models.StatusPending && to == models.StatusScheduled:
		return models.NotifyInterventionScheduled, "Request Approved",
			fmt.Sprintf("Your request \"%s\" was approved. %s", i.Title, describeSchedule(i.ScheduledAt))
	case from == models.StatusPending && to == models.StatusCancelled:
		return models.NotifyRequestDeclined, "Request Declined",
			fmt.Sprintf("Your request \"%s\" was declined. Please contact your advisor for options.", i.Title)
	case to == models.StatusCancelled:
		return models.NotifyInterventionCancelled, "Intervention Cancelled",
			fmt.Sprintf("\"%s\" has been cancelled.", i.Title)
	case to == models.StatusNoShow:
		return models.NotifyInterventionMissed, "Missed Appointment",
			fmt.Sprintf("You missed \"%s\". Please contact your advisor to reschedule.", i.Title)
	case to == models.StatusCompleted:
		return models.NotifyInterventionCompleted, "Intervention Completed",
			fmt.Sprintf("Your intervention \"%s\" has been completed. Please check the outcome notes.", i.Title)
	}
	return "", "", ""
}

// Transition validates the edge against the locked row, so of two concurrent
// callers the later one sees the winner's status and fails instead of
// overwriting it.
func (s *interventionServiceImpl) Transition(ctx context.Context, actor auth.Actor, req TransitionRequest) error {
	if err := s.authz.Require(actor, auth.CapManageInterventions); err != nil {
		return err
	}
	if !req.NewStatus.Valid() {
		return apperrors.NewValidationError("status", fmt.Sprintf("unknown status %q", req.NewStatus))
	}

	var updated *models.Intervention
	var from models.InterventionStatus
	d := &Dispatch{}
	err := s.store.WithTx(ctx, func(ctx context.Context, r *repositories.Repositories) error {
		i, err := r.Interventions.GetByIDForUpdate(ctx, req.InterventionID)
		if err != nil {
			return err
		}
		if !i.Status.CanTransitionTo(req.NewStatus) {
			return transitionError(i, req.NewStatus)
		}

		before := i.Snapshot()
		from = i.Status
		now := s.now()

		if req.NewStatus == models.StatusCompleted {
			if err := validateCompletion(req.Completion); err != nil {
				return err
			}
			c := req.Completion
			completedAt := now
			i.CompletedAt = &completedAt
			i.OutcomeAssessment = c.OutcomeAssessment
			i.SuccessRating = c.SuccessRating
			i.StudentResponse = strings.TrimSpace(c.StudentResponse)
			i.DurationMinutes = c.DurationMinutes
		}

		i.Status = req.NewStatus
		i.Notes = appendNote(i.Notes, now, "Status changed to "+string(req.NewStatus), req.Notes)
		i.UpdatedAt = now
		if err := r.Interventions.Update(ctx, i); err != nil {
			return err
		}

		if notifType, title, message := transitionNotice(from, req.NewStatus, i); notifType != "" {
			if err := s.studentUserNotice(ctx, r, d, i.StudentID, i, notifType, title, message); err != nil {
				return err
			}
		}

		after := i.Snapshot()
		if note := strings.TrimSpace(req.Notes); note != "" {
			after["note"] = note
		}
		updated = i
		return s.audit.RecordTx(ctx, r, AuditRecord{
			Actor:      actor,
			Action:     models.ActionInterventionTransition,
			EntityType: models.EntityIntervention,
			EntityID:   i.ID,
			Before:     before,
			After:      after,
		})
	})
	if err != nil {
		return err
	}

	s.notifications.Flush(ctx, d)
	s.logger.Info().
		Int64("interventionID", updated.ID).
		Str("from", string(from)).
		Str("to", string(updated.Status)).
		Msg("Intervention status changed")
	return nil
}

func (s *interventionServiceImpl) Complete(ctx context.Context, actor auth.Actor, interventionID int64, details CompletionDetails, notes string) error {
	return s.Transition(ctx, actor, TransitionRequest{
		InterventionID: interventionID,
		NewStatus:      models.StatusCompleted,
		Notes:          notes,
		Completion:     &details,
	})
}

// ScheduleFollowUp flags a completed intervention for follow-up. The
// follow-up itself is created separately with CreateFollowUp.
func (s *interventionServiceImpl) ScheduleFollowUp(ctx context.Context, actor auth.Actor, interventionID int64, followUpDate time.Time, notes string) error {
	if err := s.authz.Require(actor, auth.CapManageInterventions); err != nil {
		return err
	}
	if followUpDate.IsZero() {
		return apperrors.NewValidationError("followUpDate", "is required")
	}

	return s.store.WithTx(ctx, func(ctx context.Context, r *repositories.Repositories) error {
		i, err := r.Interventions.GetByIDForUpdate(ctx, interventionID)
		if err != nil {
			return err
		}
		if err := requireStatus(i, "schedule a follow-up for", models.StatusCompleted); err != nil {
			return err
		}
		if _, err := r.Interventions.FindFollowUp(ctx, i.ID); err == nil {
			return apperrors.NewConflictError(fmt.Sprintf("intervention %d already has a follow-up", i.ID), nil)
		} else if !errors.Is(err, apperrors.ErrNotFound) {
			return err
		}

		before := i.Snapshot()
		now := s.now()
		date := followUpDate.UTC()
		i.FollowUpRequired = true
		i.FollowUpDate = &date
		i.Notes = appendNote(i.Notes, now, "Follow-up scheduled for "+date.Format("2006-01-02"), notes)
		i.UpdatedAt = now
		if err := r.Interventions.Update(ctx, i); err != nil {
			return err
		}

		return s.audit.RecordTx(ctx, r, AuditRecord{
			Actor:      actor,
			Action:     models.ActionFollowUpScheduled,
			EntityType: models.EntityIntervention,
			EntityID:   i.ID,
			Before:     before,
			After:      i.Snapshot(),
		})
	})
}

// CreateFollowUp creates the linked follow-up intervention. The original is
// read but not modified; at most one follow-up exists per original.
func (s *interventionServiceImpl) CreateFollowUp(ctx context.Context, actor auth.Actor, req FollowUpRequest) (int64, error) {
	if err := s.authz.Require(actor, auth.CapManageInterventions); err != nil {
		return 0, err
	}

	var created *models.Intervention
	d := &Dispatch{}
	err := s.store.WithTx(ctx, func(ctx context.Context, r *repositories.Repositories) error {
		original, err := r.Interventions.GetByIDForUpdate(ctx, req.OriginalID)
		if err != nil {
			return err
		}
		if err := requireStatus(original, "create a follow-up for", models.StatusCompleted); err != nil {
			return err
		}
		if !original.FollowUpRequired {
			return apperrors.NewValidationError("followUpRequired", "schedule a follow-up on the original intervention first")
		}
		if _, err := r.Interventions.FindFollowUp(ctx, original.ID); err == nil {
			return apperrors.NewConflictError(fmt.Sprintf("intervention %d already has a follow-up", original.ID), nil)
		} else if !errors.Is(err, apperrors.ErrNotFound) {
			return err
		}

		title := strings.TrimSpace(req.Title)
		if title == "" {
			title = "Follow-up: " + original.Title
		}
		priority := req.Priority
		if priority == "" {
			priority = original.Priority
		}
		scheduledAt := req.ScheduledAt
		if scheduledAt == nil {
			scheduledAt = original.FollowUpDate
		}

		i, err := buildIntervention(ctx, r, CreateInterventionRequest{
			StudentID:      original.StudentID,
			AdvisorID:      original.AdvisorID,
			Title:          title,
			Description:    req.Description,
			Priority:       priority,
			ScheduledAt:    scheduledAt,
			TypeTemplateID: original.InterventionTypeID,
			Method:         original.Method,
			Location:       original.Location,
		})
		if err != nil {
			return err
		}
		originalID := original.ID
		i.FollowUpOf = &originalID

		if err := s.createTx(ctx, r, d, actor, i, req.Notes); err != nil {
			return err
		}
		created = i
		return nil
	})
	if err != nil {
		return 0, err
	}

	s.notifications.Flush(ctx, d)
	s.logger.Info().
		Int64("interventionID", created.ID).
		Int64("followUpOf", req.OriginalID).
		Msg("Follow-up intervention created")
	return created.ID, nil
}

// BulkCreate creates one intervention per distinct student in a single unit
// of work; either all are created or none.
func (s *interventionServiceImpl) BulkCreate(ctx context.Context, actor auth.Actor, req BulkCreateRequest) ([]int64, error) {
	if err := s.authz.Require(actor, auth.CapManageInterventions); err != nil {
		return nil, err
	}
	if len(req.StudentIDs) == 0 {
		return nil, apperrors.NewValidationError("studentIds", "at least one student is required")
	}
	if err := requirePositiveID("typeTemplateId", req.TypeTemplateID); err != nil {
		return nil, err
	}

	seen := make(map[int64]bool, len(req.StudentIDs))
	studentIDs := make([]int64, 0, len(req.StudentIDs))
	for _, id := range req.StudentIDs {
		if !seen[id] {
			seen[id] = true
			studentIDs = append(studentIDs, id)
		}
	}

	ids := make([]int64, 0, len(studentIDs))
	d := &Dispatch{}
	err := s.store.WithTx(ctx, func(ctx context.Context, r *repositories.Repositories) error {
		templateID := req.TypeTemplateID
		for _, studentID := range studentIDs {
			i, err := buildIntervention(ctx, r, CreateInterventionRequest{
				StudentID:      studentID,
				AdvisorID:      req.AdvisorID,
				Priority:       req.Priority,
				ScheduledAt:    req.ScheduledAt,
				TypeTemplateID: &templateID,
			})
			if err != nil {
				return err
			}
			if err := s.createTx(ctx, r, d, actor, i, ""); err != nil {
				return err
			}
			ids = append(ids, i.ID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notifications.Flush(ctx, d)
	s.logger.Info().Int("count", len(ids)).Int64("advisorID", req.AdvisorID).Msg("Bulk interventions created")
	return ids, nil
}

func (s *interventionServiceImpl) Get(ctx context.Context, actor auth.Actor, interventionID int64) (*models.Intervention, error) {
	if err := s.authz.RequireAny(actor, auth.CapReadInterventions); err != nil {
		return nil, err
	}
	i, err := s.store.Repos().Interventions.GetByID(ctx, interventionID)
	if err != nil {
		return nil, err
	}
	if err := s.authz.RequireForStudent(ctx, actor, auth.CapReadInterventions, i.StudentID); err != nil {
		return nil, err
	}
	return i, nil
}

func (s *interventionServiceImpl) ListForStudent(ctx context.Context, actor auth.Actor, studentID int64, status *models.InterventionStatus) ([]*models.Intervention, error) {
	if err := s.authz.RequireForStudent(ctx, actor, auth.CapReadInterventions, studentID); err != nil {
		return nil, err
	}
	filter := repositories.InterventionFilter{StudentID: &studentID, Order: repositories.OrderNewest}
	if status != nil {
		if !status.Valid() {
			return nil, apperrors.NewValidationError("status", fmt.Sprintf("unknown status %q", *status))
		}
		filter.Statuses = []models.InterventionStatus{*status}
	}
	items, _, err := s.store.Repos().Interventions.List(ctx, filter, 0, 0)
	return items, err
}

func (s *interventionServiceImpl) ListForAdvisor(ctx context.Context, actor auth.Actor, advisorID int64, filter repositories.InterventionFilter, page, size int) ([]*models.Intervention, int64, error) {
	if err := s.authz.Require(actor, auth.CapReadInterventions); err != nil {
		return nil, 0, err
	}
	filter.AdvisorID = &advisorID
	offset, limit := pageBounds(page, size)
	return s.store.Repos().Interventions.List(ctx, filter, offset, limit)
}

// PendingFor lists the advisor's open work: requests awaiting triage and
// scheduled or running meetings, most urgent first.
func (s *interventionServiceImpl) PendingFor(ctx context.Context, actor auth.Actor, advisorID int64) ([]*models.Intervention, error) {
	if err := s.authz.Require(actor, auth.CapReadInterventions); err != nil {
		return nil, err
	}
	items, _, err := s.store.Repos().Interventions.List(ctx, repositories.InterventionFilter{
		AdvisorID: &advisorID,
		Statuses:  []models.InterventionStatus{models.StatusPending, models.StatusScheduled, models.StatusInProgress},
		Order:     repositories.OrderPriority,
	}, 0, 0)
	return items, err
}

// OverdueFor is computed at read time; overdue interventions stay Scheduled
func (s *interventionServiceImpl) OverdueFor(ctx context.Context, actor auth.Actor, advisorID int64) ([]*models.Intervention, error) {
	if err := s.authz.Require(actor, auth.CapReadInterventions); err != nil {
		return nil, err
	}
	now := s.now()
	items, _, err := s.store.Repos().Interventions.List(ctx, repositories.InterventionFilter{
		AdvisorID:       &advisorID,
		Statuses:        []models.InterventionStatus{models.StatusScheduled},
		ScheduledBefore: &now,
		Order:           repositories.OrderScheduled,
	}, 0, 0)
	return items, err
}

// FollowUpsDueFor lists completed interventions whose follow-up date falls
// within the window and whose follow-up has not been created yet. A nil
// window uses the configured default; zero means due by now.
func (s *interventionServiceImpl) FollowUpsDueFor(ctx context.Context, actor auth.Actor, advisorID int64, withinDays *int) ([]*models.Intervention, error) {
	if err := s.authz.Require(actor, auth.CapReadInterventions); err != nil {
		return nil, err
	}
	days := s.defaultWindowDays
	if withinDays != nil {
		days = *withinDays
	}
	if days < 0 {
		return nil, apperrors.NewValidationError("withinDays", "cannot be negative")
	}

	dueBy := s.now().AddDate(0, 0, days)
	required := true
	items, _, err := s.store.Repos().Interventions.List(ctx, repositories.InterventionFilter{
		AdvisorID:        &advisorID,
		Statuses:         []models.InterventionStatus{models.StatusCompleted},
		FollowUpRequired: &required,
		FollowUpDueBy:    &dueBy,
		WithoutFollowUp:  true,
		Order:            repositories.OrderFollowUpDate,
	}, 0, 0)
	return items, err
}

func (s *interventionServiceImpl) Statistics(ctx context.Context, actor auth.Actor, filter repositories.StatsFilter) (*models.InterventionStats, error) {
	if err := s.authz.Require(actor, auth.CapReadInterventions); err != nil {
		return nil, err
	}
	if filter.From != nil && filter.To != nil && !filter.From.Before(*filter.To) {
		return nil, apperrors.NewValidationError("from", "must be before to")
	}
	return s.store.Repos().Interventions.Stats(ctx, filter)
}

func (s *interventionServiceImpl) ListTypes(ctx context.Context, actor auth.Actor) ([]*models.InterventionType, error) {
	if err := s.authz.RequireAny(actor, auth.CapReadInterventions); err != nil {
		return nil, err
	}
	return s.store.Repos().InterventionTypes.List(ctx, true)
}
