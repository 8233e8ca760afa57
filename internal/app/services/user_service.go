package services

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/yigit/earlyalert/internal/app/auth"
	"github.com/yigit/earlyalert/internal/app/models"
	"github.com/yigit/earlyalert/internal/app/repositories"
	"github.com/yigit/earlyalert/internal/pkg/apperrors"
	"github.com/yigit/earlyalert/internal/pkg/validation"
)

// CreateUserRequest registers an account known to the identity provider
type CreateUserRequest struct {
	Email     string
	FirstName string
	LastName  string
	Role      models.RoleType
}

// UserService defines the interface for user operations
type UserService interface {
	Create(ctx context.Context, actor auth.Actor, req CreateUserRequest) (int64, error)
	GetByID(ctx context.Context, actor auth.Actor, userID int64) (*models.User, error)
}

// userServiceImpl implements UserService
type userServiceImpl struct {
	store  repositories.Store
	authz  *auth.AuthorizationService
	audit  AuditService
	now    Clock
	logger zerolog.Logger
}

// NewUserService creates a new UserService
func NewUserService(store repositories.Store, authz *auth.AuthorizationService, audit AuditService, logger zerolog.Logger) UserService {
	return &userServiceImpl{
		store:  store,
		authz:  authz,
		audit:  audit,
		now:    systemClock,
		logger: logger,
	}
}

func (s *userServiceImpl) Create(ctx context.Context, actor auth.Actor, req CreateUserRequest) (int64, error) {
	if err := s.authz.Require(actor, auth.CapManageUsers); err != nil {
		return 0, err
	}

	user := &models.User{
		Email:     strings.ToLower(strings.TrimSpace(req.Email)),
		FirstName: strings.TrimSpace(req.FirstName),
		LastName:  strings.TrimSpace(req.LastName),
		Role:      req.Role,
		IsActive:  true,
	}
	if err := validateEmail("email", user.Email, true); err != nil {
		return 0, err
	}
	if err := validateFields(
		namedRule{"firstName", validation.Name(user.FirstName)},
		namedRule{"lastName", validation.Name(user.LastName)},
	); err != nil {
		return 0, err
	}
	if !user.Role.Valid() || user.Role == models.RoleSystem {
		return 0, apperrors.NewValidationError("role", "must be one of student, advisor, admin")
	}

	err := s.store.WithTx(ctx, func(ctx context.Context, r *repositories.Repositories) error {
		user.CreatedAt = s.now()
		if _, err := r.Users.Create(ctx, user); err != nil {
			return err
		}
		return s.audit.RecordTx(ctx, r, AuditRecord{
			Actor:      actor,
			Action:     models.ActionUserCreated,
			EntityType: models.EntityUser,
			EntityID:   user.ID,
			After:      map[string]any{"email": user.Email, "role": user.Role},
		})
	})
	if err != nil {
		return 0, err
	}

	s.logger.Info().Int64("userID", user.ID).Str("role", string(user.Role)).Msg("User created")
	return user.ID, nil
}

// GetByID returns a user to an administrator or to the user themselves
func (s *userServiceImpl) GetByID(ctx context.Context, actor auth.Actor, userID int64) (*models.User, error) {
	if actor.UserID != userID {
		if err := s.authz.Require(actor, auth.CapManageUsers); err != nil {
			return nil, err
		}
	}
	return s.store.Repos().Users.GetByID(ctx, userID)
}
