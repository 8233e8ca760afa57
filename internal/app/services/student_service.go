package services

import (
	"context"
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

// CreateStudentRequest registers a student
type CreateStudentRequest struct {
	BannerID         string
	FirstName        string
	LastName         string
	Email            string
	Phone            string
	Classification   string
	DeclaredMajor    string
	FirstGeneration  bool
	International    bool
	Veteran          bool
	Disability       bool
	PrimaryAdvisorID *int64
	UserID           *int64
}

// StudentService defines the interface for the student registry
type StudentService interface {
	Create(ctx context.Context, actor auth.Actor, req CreateStudentRequest) (int64, error)
	Get(ctx context.Context, actor auth.Actor, studentID int64) (*models.Student, error)
	List(ctx context.Context, actor auth.Actor, filter repositories.StudentFilter, page, size int) ([]*models.Student, int64, error)
	// SetEnrollmentStatus soft-deactivates a student; students are never deleted
	SetEnrollmentStatus(ctx context.Context, actor auth.Actor, studentID int64, status models.EnrollmentStatus) error
	ListTerms(ctx context.Context, actor auth.Actor) ([]*models.Term, error)
	UpsertTerm(ctx context.Context, actor auth.Actor, term models.Term) error
}

type studentServiceImpl struct {
	store  repositories.Store
	authz  *auth.AuthorizationService
	audit  AuditService
	now    Clock
	logger zerolog.Logger
}

// NewStudentService creates a new StudentService
func NewStudentService(store repositories.Store, authz *auth.AuthorizationService, audit AuditService, logger zerolog.Logger) StudentService {
	return &studentServiceImpl{
		store:  store,
		authz:  authz,
		audit:  audit,
		now:    systemClock,
		logger: logger,
	}
}

func validateEmail(field, address string, required bool) error {
	if msg := validation.Email(address, required).Validate(); msg != "" {
		if msg == "has an invalid format" {
			msg = "is not a valid email address"
		}
		return apperrors.NewValidationError(field, msg)
	}
	return nil
}

type namedRule struct {
	name string
	rule *validation.StringValidation
}

// validateFields returns the first rule broken by the named values, in order
func validateFields(fields ...namedRule) error {
	for _, f := range fields {
		if msg := f.rule.Validate(); msg != "" {
			return apperrors.NewValidationError(f.name, msg)
		}
	}
	return nil
}

func (s *studentServiceImpl) Create(ctx context.Context, actor auth.Actor, req CreateStudentRequest) (int64, error) {
	if err := s.authz.Require(actor, auth.CapManageStudents); err != nil {
		return 0, err
	}

	student := &models.Student{
		BannerID:         strings.TrimSpace(req.BannerID),
		FirstName:        strings.TrimSpace(req.FirstName),
		LastName:         strings.TrimSpace(req.LastName),
		Email:            strings.TrimSpace(req.Email),
		Phone:            strings.TrimSpace(req.Phone),
		Classification:   strings.TrimSpace(req.Classification),
		DeclaredMajor:    strings.TrimSpace(req.DeclaredMajor),
		EnrollmentStatus: models.EnrollmentActive,
		FirstGeneration:  req.FirstGeneration,
		International:    req.International,
		Veteran:          req.Veteran,
		Disability:       req.Disability,
		PrimaryAdvisorID: req.PrimaryAdvisorID,
		UserID:           req.UserID,
	}
	if err := validateFields(
		namedRule{"bannerId", validation.NewStringValidation(student.BannerID).WithMaxLength(validation.BannerIDMaxLength)},
		namedRule{"firstName", validation.Name(student.FirstName)},
		namedRule{"lastName", validation.Name(student.LastName)},
		namedRule{"phone", validation.NewStringValidation(student.Phone).WithRequired(false).WithMaxLength(validation.PhoneMaxLength)},
	); err != nil {
		return 0, err
	}
	if err := validateEmail("email", student.Email, false); err != nil {
		return 0, err
	}

	err := s.store.WithTx(ctx, func(ctx context.Context, r *repositories.Repositories) error {
		if student.PrimaryAdvisorID != nil {
			advisor, err := r.Users.GetByID(ctx, *student.PrimaryAdvisorID)
			if err != nil {
				return asMissingUser("primaryAdvisorId", err)
			}
			if advisor.Role != models.RoleAdvisor && advisor.Role != models.RoleAdmin {
				return apperrors.NewValidationError("primaryAdvisorId", fmt.Sprintf("user %d is not an advisor", advisor.ID))
			}
		}
		if student.UserID != nil {
			login, err := r.Users.GetByID(ctx, *student.UserID)
			if err != nil {
				return asMissingUser("userId", err)
			}
			if login.Role != models.RoleStudent {
				return apperrors.NewValidationError("userId", fmt.Sprintf("user %d is not a student account", login.ID))
			}
		}

		if _, err := r.Students.Create(ctx, student); err != nil {
			return err
		}
		return s.audit.RecordTx(ctx, r, AuditRecord{
			Actor:      actor,
			Action:     models.ActionStudentCreated,
			EntityType: models.EntityStudent,
			EntityID:   student.ID,
			After: map[string]any{
				"bannerId":         student.BannerID,
				"enrollmentStatus": student.EnrollmentStatus,
				"primaryAdvisorId": student.PrimaryAdvisorID,
			},
		})
	})
	if err != nil {
		return 0, err
	}

	s.logger.Info().Int64("studentID", student.ID).Str("bannerID", student.BannerID).Msg("Student created")
	return student.ID, nil
}

func asMissingUser(field string, err error) error {
	if apperrors.Is(err, apperrors.ErrNotFound) {
		return apperrors.NewValidationError(field, err.Error())
	}
	return err
}

func (s *studentServiceImpl) Get(ctx context.Context, actor auth.Actor, studentID int64) (*models.Student, error) {
	if err := s.authz.RequireForStudent(ctx, actor, auth.CapReadInterventions, studentID); err != nil {
		return nil, err
	}
	return s.store.Repos().Students.GetByID(ctx, studentID)
}

func (s *studentServiceImpl) List(ctx context.Context, actor auth.Actor, filter repositories.StudentFilter, page, size int) ([]*models.Student, int64, error) {
	if err := s.authz.Require(actor, auth.CapReadInterventions); err != nil {
		return nil, 0, err
	}
	if filter.EnrollmentStatus != "" && !filter.EnrollmentStatus.Valid() {
		return nil, 0, apperrors.NewValidationError("enrollmentStatus", fmt.Sprintf("unknown status %q", filter.EnrollmentStatus))
	}
	offset, limit := pageBounds(page, size)
	return s.store.Repos().Students.List(ctx, filter, offset, limit)
}

func (s *studentServiceImpl) SetEnrollmentStatus(ctx context.Context, actor auth.Actor, studentID int64, status models.EnrollmentStatus) error {
	if err := s.authz.Require(actor, auth.CapManageStudents); err != nil {
		return err
	}
	if !status.Valid() {
		return apperrors.NewValidationError("enrollmentStatus", fmt.Sprintf("unknown status %q", status))
	}

	return s.store.WithTx(ctx, func(ctx context.Context, r *repositories.Repositories) error {
		student, err := r.Students.GetByIDForUpdate(ctx, studentID)
		if err != nil {
			return err
		}
		if student.EnrollmentStatus == status {
			return nil
		}
		if err := r.Students.UpdateEnrollmentStatus(ctx, studentID, status, s.now()); err != nil {
			return err
		}
		return s.audit.RecordTx(ctx, r, AuditRecord{
			Actor:      actor,
			Action:     models.ActionStudentStatusChanged,
			EntityType: models.EntityStudent,
			EntityID:   studentID,
			Before:     map[string]any{"enrollmentStatus": student.EnrollmentStatus},
			After:      map[string]any{"enrollmentStatus": status},
		})
	})
}

func (s *studentServiceImpl) ListTerms(ctx context.Context, actor auth.Actor) ([]*models.Term, error) {
	if err := s.authz.RequireAny(actor, auth.CapReadAssessments); err != nil {
		return nil, err
	}
	return s.store.Repos().Terms.List(ctx)
}

func (s *studentServiceImpl) UpsertTerm(ctx context.Context, actor auth.Actor, term models.Term) error {
	if err := s.authz.Require(actor, auth.CapManageStudents); err != nil {
		return err
	}
	term.ID = strings.TrimSpace(term.ID)
	term.Name = strings.TrimSpace(term.Name)
	if term.ID == "" {
		return apperrors.NewValidationError("id", "is required")
	}
	if term.Name == "" {
		return apperrors.NewValidationError("name", "is required")
	}
	if term.StartDate.IsZero() || term.EndDate.IsZero() || !term.StartDate.Before(term.EndDate) {
		return apperrors.NewValidationError("endDate", "must be after startDate")
	}
	term.StartDate = truncateDay(term.StartDate)
	term.EndDate = truncateDay(term.EndDate)
	return s.store.Repos().Terms.Upsert(ctx, &term)
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
