package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/yigit/earlyalert/internal/app/auth"
	"github.com/yigit/earlyalert/internal/app/models"
	"github.com/yigit/earlyalert/internal/app/repositories"
	"github.com/yigit/earlyalert/internal/pkg/apperrors"
)

// RecordAssessmentRequest is one scoring result from the external model
type RecordAssessmentRequest struct {
	StudentID    int64
	TermID       string
	Scores       models.RiskScores
	ModelVersion string
	RiskPathway  string
	Confidence   *float64
	// CalculatedAt defaults to now
	CalculatedAt *time.Time
}

// RiskLedgerService defines the interface for the risk assessment ledger
type RiskLedgerService interface {
	RecordAssessment(ctx context.Context, actor auth.Actor, req RecordAssessmentRequest) (int64, error)
	GetCurrent(ctx context.Context, actor auth.Actor, studentID int64) (*models.RiskAssessment, error)
	GetCurrentForTerm(ctx context.Context, actor auth.Actor, studentID int64, termID string) (*models.RiskAssessment, error)
	GetHistory(ctx context.Context, actor auth.Actor, studentID int64, page, size int) ([]*models.RiskAssessment, int64, error)
}

type riskLedgerServiceImpl struct {
	store         repositories.Store
	authz         *auth.AuthorizationService
	notifications NotificationService
	audit         AuditService
	thresholds    models.RiskThresholds
	now           Clock
	logger        zerolog.Logger
}

// NewRiskLedgerService creates a new RiskLedgerService
func NewRiskLedgerService(
	store repositories.Store,
	authz *auth.AuthorizationService,
	notifications NotificationService,
	audit AuditService,
	thresholds models.RiskThresholds,
	logger zerolog.Logger,
) RiskLedgerService {
	return &riskLedgerServiceImpl{
		store:         store,
		authz:         authz,
		notifications: notifications,
		audit:         audit,
		thresholds:    thresholds,
		now:           systemClock,
		logger:        logger,
	}
}

func validateScore(field string, v float64) error {
	if math.IsNaN(v) || v < 0 || v > 1 {
		return apperrors.NewValidationError(field, fmt.Sprintf("score %v is outside [0,1]", v))
	}
	return nil
}

func validateAssessment(req *RecordAssessmentRequest) error {
	if err := requirePositiveID("studentId", req.StudentID); err != nil {
		return err
	}
	req.TermID = strings.TrimSpace(req.TermID)
	if req.TermID == "" {
		return apperrors.NewValidationError("termId", "is required")
	}
	req.ModelVersion = strings.TrimSpace(req.ModelVersion)
	if req.ModelVersion == "" {
		return apperrors.NewValidationError("modelVersion", "is required")
	}

	scores := []struct {
		field string
		value float64
	}{
		{"scores.overall", req.Scores.Overall},
		{"scores.academic", req.Scores.Academic},
		{"scores.engagement", req.Scores.Engagement},
		{"scores.financial", req.Scores.Financial},
		{"scores.wellness", req.Scores.Wellness},
	}
	for _, sc := range scores {
		if err := validateScore(sc.field, sc.value); err != nil {
			return err
		}
	}
	if req.Confidence != nil {
		if err := validateScore("confidence", *req.Confidence); err != nil {
			return err
		}
	}
	return nil
}

// RecordAssessment supersedes the current assessment of (student, term) and
// inserts the new one as current, in that order, inside one unit of work.
func (s *riskLedgerServiceImpl) RecordAssessment(ctx context.Context, actor auth.Actor, req RecordAssessmentRequest) (int64, error) {
	if err := s.authz.Require(actor, auth.CapRecordAssessment); err != nil {
		return 0, err
	}
	if err := validateAssessment(&req); err != nil {
		return 0, err
	}

	calculatedAt := s.now()
	if req.CalculatedAt != nil {
		calculatedAt = req.CalculatedAt.UTC()
	}

	assessment := &models.RiskAssessment{
		StudentID:    req.StudentID,
		TermID:       req.TermID,
		Scores:       req.Scores,
		Category:     s.thresholds.Categorize(req.Scores.Overall),
		RiskPathway:  strings.TrimSpace(req.RiskPathway),
		ModelVersion: req.ModelVersion,
		Confidence:   req.Confidence,
		IsCurrent:    true,
		CalculatedAt: calculatedAt,
	}

	d := &Dispatch{}
	err := s.store.WithTx(ctx, func(ctx context.Context, r *repositories.Repositories) error {
		// the row lock serializes concurrent writers for this student
		student, err := r.Students.GetByIDForUpdate(ctx, req.StudentID)
		if err != nil {
			return asMissingReference(err)
		}
		if _, err := r.Terms.GetByID(ctx, req.TermID); err != nil {
			return asMissingReference(err)
		}

		previous, err := r.Assessments.GetCurrentForTerm(ctx, req.StudentID, req.TermID)
		if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
			return err
		}

		if _, err := r.Assessments.ClearCurrent(ctx, req.StudentID, req.TermID); err != nil {
			return err
		}
		if _, err := r.Assessments.Insert(ctx, assessment); err != nil {
			return asMissingReference(err)
		}

		if err := s.escalate(ctx, r, d, student, previous, assessment); err != nil {
			return err
		}

		var before any
		if previous != nil {
			previous.IsCurrent = false
			before = previous.Summary()
		}
		return s.audit.RecordTx(ctx, r, AuditRecord{
			Actor:      actor,
			Action:     models.ActionRiskAssessmentRecorded,
			EntityType: models.EntityRiskAssessment,
			EntityID:   assessment.ID,
			Before:     before,
			After:      assessment.Summary(),
		})
	})
	if err != nil {
		return 0, err
	}

	s.notifications.Flush(ctx, d)
	s.logger.Info().
		Int64("studentID", req.StudentID).
		Str("termID", req.TermID).
		Int64("assessmentID", assessment.ID).
		Str("category", string(assessment.Category)).
		Msg("Risk assessment recorded")
	return assessment.ID, nil
}

// escalate alerts the primary advisor when a student newly enters High or Critical
func (s *riskLedgerServiceImpl) escalate(ctx context.Context, r *repositories.Repositories, d *Dispatch, student *models.Student, previous, current *models.RiskAssessment) error {
	if current.Category.Rank() < models.RiskHigh.Rank() || student.PrimaryAdvisorID == nil {
		return nil
	}
	if previous != nil && previous.Category.Rank() >= current.Category.Rank() {
		return nil
	}

	priority := models.NotificationHigh
	if current.Category == models.RiskCritical {
		priority = models.NotificationUrgent
	}
	_, err := s.notifications.NotifyTx(ctx, r, d, NotifyRequest{
		UserID:   *student.PrimaryAdvisorID,
		Type:     models.NotifyHighRiskAlert,
		Title:    fmt.Sprintf("%s risk: %s", current.Category, student.FullName()),
		Message:  fmt.Sprintf("%s (%s) was assessed at %.2f for term %s.", student.FullName(), student.BannerID, current.Scores.Overall, current.TermID),
		Priority: priority,
		Related:  &models.EntityRef{Type: models.EntityRiskAssessment, ID: current.ID},
		Email:    true,
	})
	return err
}

// asMissingReference reports an absent student or term as invalid input
func asMissingReference(err error) error {
	var nf *apperrors.NotFoundError
	if !errors.As(err, &nf) {
		return err
	}
	field := "studentId"
	if nf.Entity == "term" {
		field = "termId"
	}
	return apperrors.NewValidationError(field, nf.Error())
}

func (s *riskLedgerServiceImpl) GetCurrent(ctx context.Context, actor auth.Actor, studentID int64) (*models.RiskAssessment, error) {
	if err := s.authz.RequireForStudent(ctx, actor, auth.CapReadAssessments, studentID); err != nil {
		return nil, err
	}
	return s.store.Repos().Assessments.GetCurrent(ctx, studentID)
}

func (s *riskLedgerServiceImpl) GetCurrentForTerm(ctx context.Context, actor auth.Actor, studentID int64, termID string) (*models.RiskAssessment, error) {
	if err := s.authz.RequireForStudent(ctx, actor, auth.CapReadAssessments, studentID); err != nil {
		return nil, err
	}
	return s.store.Repos().Assessments.GetCurrentForTerm(ctx, studentID, strings.TrimSpace(termID))
}

// GetHistory returns the full ledger of a student, newest first
func (s *riskLedgerServiceImpl) GetHistory(ctx context.Context, actor auth.Actor, studentID int64, page, size int) ([]*models.RiskAssessment, int64, error) {
	if err := s.authz.RequireForStudent(ctx, actor, auth.CapReadAssessments, studentID); err != nil {
		return nil, 0, err
	}
	repos := s.store.Repos()
	if _, err := repos.Students.GetByID(ctx, studentID); err != nil {
		return nil, 0, err
	}
	offset, limit := pageBounds(page, size)
	return repos.Assessments.ListByStudent(ctx, studentID, offset, limit)
}
