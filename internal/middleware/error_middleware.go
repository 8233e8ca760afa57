package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yigit/earlyalert/internal/app/models"
	"github.com/yigit/earlyalert/internal/app/models/dto"
	"github.com/yigit/earlyalert/internal/pkg/apperrors"
	"github.com/yigit/earlyalert/internal/pkg/logger"
)

// HandleAPIError maps the error taxonomy onto HTTP responses
func HandleAPIError(c *gin.Context, err error) {
	status, detail := errorDetailFor(c, err)
	if status >= http.StatusInternalServerError {
		logger.Error().
			Err(err).
			Str("requestID", c.GetString(ContextRequestID)).
			Str("path", c.FullPath()).
			Msg("Request failed")
	}
	c.AbortWithStatusJSON(status, dto.NewErrorResponse(detail))
}

func errorDetailFor(c *gin.Context, err error) (int, *dto.ErrorDetail) {
	var (
		validationErr *apperrors.ValidationError
		transitionErr *apperrors.InvalidTransitionError
		conflictErr   *apperrors.ConflictError
		storageErr    *apperrors.StorageError
	)

	switch {
	case errors.As(err, &validationErr):
		return http.StatusBadRequest,
			dto.NewErrorDetail(dto.ErrorCodeValidationFailed, validationErr.Reason).WithField(validationErr.Field)
	case errors.Is(err, apperrors.ErrValidation):
		return http.StatusBadRequest, dto.NewErrorDetail(dto.ErrorCodeValidationFailed, err.Error())

	case errors.Is(err, apperrors.ErrNotFound):
		return http.StatusNotFound, dto.NewErrorDetail(dto.ErrorCodeResourceNotFound, err.Error())

	case errors.As(err, &transitionErr):
		return http.StatusConflict,
			dto.NewErrorDetail(dto.ErrorCodeInvalidTransition, transitionErr.Error()).
				WithDetails(dto.TransitionDetails{Current: transitionErr.From, Allowed: nonNil(transitionErr.Allowed)})

	case errors.As(err, &conflictErr):
		return http.StatusConflict, dto.NewErrorDetail(dto.ErrorCodeConflict, conflictErr.Message)
	case errors.Is(err, apperrors.ErrConflict):
		return http.StatusConflict, dto.NewErrorDetail(dto.ErrorCodeConflict, err.Error())

	case errors.Is(err, apperrors.ErrPermissionDenied):
		return http.StatusForbidden, dto.NewErrorDetail(dto.ErrorCodeForbidden, err.Error())
	}

	if !errors.As(err, &storageErr) {
		return http.StatusInternalServerError,
			dto.NewErrorDetail(dto.ErrorCodeInternalServer, "Internal server error").WithSeverity(dto.ErrorSeverityCritical)
	}
	detail := dto.NewErrorDetail(dto.ErrorCodeDatabaseError, "Internal server error").
		WithSeverity(dto.ErrorSeverityCritical)
	// Staff get the failing operation so they can report it; students never do
	if actor, ok := ActorFromContext(c); ok && actor.Role != models.RoleStudent {
		detail = detail.WithDetails(gin.H{"operation": storageErr.Op})
	}
	return http.StatusInternalServerError, detail
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
