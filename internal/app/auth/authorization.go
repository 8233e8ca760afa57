package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/yigit/earlyalert/internal/app/models"
	"github.com/yigit/earlyalert/internal/app/repositories"
	"github.com/yigit/earlyalert/internal/pkg/apperrors"
	"github.com/yigit/earlyalert/internal/pkg/logger"
)

// Actor is the acting identity supplied by the identity provider. It is
// trusted as given; the zero UserID denotes the system itself.
type Actor struct {
	UserID int64
	Role   models.RoleType
}

// System is the actor used by batch jobs and internal side effects
func System() Actor {
	return Actor{Role: models.RoleSystem}
}

func (a Actor) IsSystem() bool {
	return a.Role == models.RoleSystem
}

// AuditID is the actor reference stored in the audit log; nil for the system
func (a Actor) AuditID() *int64 {
	if a.UserID == 0 {
		return nil
	}
	id := a.UserID
	return &id
}

// Capability is one permitted operation group
type Capability string

const (
	CapRecordAssessment     Capability = "record_assessment"
	CapReadAssessments      Capability = "read_assessments"
	CapManageInterventions  Capability = "manage_interventions"
	CapRequestIntervention  Capability = "request_intervention"
	CapReadInterventions    Capability = "read_interventions"
	CapNotify               Capability = "notify"
	CapReadOwnNotifications Capability = "read_own_notifications"
	CapManageStudents       Capability = "manage_students"
	CapManageUsers          Capability = "manage_users"
	CapReadAudit            Capability = "read_audit"
)

// scope says how far a granted capability reaches
type scope int

const (
	scopeNone scope = iota
	// scopeOwn limits a student to records of their own student profile
	scopeOwn
	scopeAll
)

var capabilities = map[models.RoleType]map[Capability]scope{
	models.RoleStudent: {
		CapReadAssessments:      scopeOwn,
		CapRequestIntervention:  scopeOwn,
		CapReadInterventions:    scopeOwn,
		CapReadOwnNotifications: scopeAll,
	},
	models.RoleAdvisor: {
		CapReadAssessments:      scopeAll,
		CapManageInterventions:  scopeAll,
		CapReadInterventions:    scopeAll,
		CapNotify:               scopeAll,
		CapReadOwnNotifications: scopeAll,
	},
	models.RoleAdmin: {
		CapRecordAssessment:     scopeAll,
		CapReadAssessments:      scopeAll,
		CapManageInterventions:  scopeAll,
		CapReadInterventions:    scopeAll,
		CapNotify:               scopeAll,
		CapReadOwnNotifications: scopeAll,
		CapManageStudents:       scopeAll,
		CapManageUsers:          scopeAll,
		CapReadAudit:            scopeAll,
	},
	models.RoleSystem: {
		CapRecordAssessment: scopeAll,
		CapReadAssessments:  scopeAll,
		CapNotify:           scopeAll,
	},
}

func lookup(role models.RoleType, c Capability) scope {
	return capabilities[role][c]
}

// Allows reports whether role holds c in any scope
func Allows(role models.RoleType, c Capability) bool {
	return lookup(role, c) != scopeNone
}

// AuthorizationService performs the capability check once at the service boundary
type AuthorizationService struct {
	students repositories.StudentRepository
}

// NewAuthorizationService creates a new AuthorizationService
func NewAuthorizationService(students repositories.StudentRepository) *AuthorizationService {
	return &AuthorizationService{students: students}
}

func denied(actor Actor, c Capability) error {
	return apperrors.NewPermissionError(fmt.Sprintf("role %q may not %s", actor.Role, c))
}

// Require fails unless the actor holds c for every record
func (s *AuthorizationService) Require(actor Actor, c Capability) error {
	if lookup(actor.Role, c) != scopeAll {
		return denied(actor, c)
	}
	return nil
}

// RequireAny fails unless the actor holds c at least for its own records
func (s *AuthorizationService) RequireAny(actor Actor, c Capability) error {
	if !Allows(actor.Role, c) {
		return denied(actor, c)
	}
	return nil
}

// RequireForStudent checks c against the records of one student. Own-scoped
// actors pass only when studentID is their linked student profile.
func (s *AuthorizationService) RequireForStudent(ctx context.Context, actor Actor, c Capability, studentID int64) error {
	switch lookup(actor.Role, c) {
	case scopeAll:
		return nil
	case scopeOwn:
		own, err := s.OwnStudent(ctx, actor)
		if err != nil {
			return err
		}
		if own.ID != studentID {
			return denied(actor, c)
		}
		return nil
	default:
		return denied(actor, c)
	}
}

// OwnStudent resolves the student profile linked to the actor's user account
func (s *AuthorizationService) OwnStudent(ctx context.Context, actor Actor) (*models.Student, error) {
	student, err := s.students.GetByUserID(ctx, actor.UserID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NewPermissionError("no student profile is linked to this account")
		}
		logger.Error().Err(err).Int64("userID", actor.UserID).Msg("Error resolving student profile for actor")
		return nil, err
	}
	return student, nil
}
