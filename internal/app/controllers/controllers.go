package controllers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yigit/earlyalert/internal/app/auth"
	"github.com/yigit/earlyalert/internal/app/models/dto"
	"github.com/yigit/earlyalert/internal/middleware"
	"github.com/yigit/earlyalert/internal/pkg/helpers"
)

// requireActor returns the caller resolved by the JWT middleware
func requireActor(ctx *gin.Context) (auth.Actor, bool) {
	actor, ok := middleware.ActorFromContext(ctx)
	if !ok {
		errorDetail := dto.NewErrorDetail(dto.ErrorCodeUnauthorized, "Authentication required").
			WithDetails("User information not found")
		ctx.AbortWithStatusJSON(http.StatusUnauthorized, dto.NewErrorResponse(errorDetail))
	}
	return actor, ok
}

// parseIDParam reads a positive int64 path parameter
func parseIDParam(ctx *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(ctx.Param(name), 10, 64)
	if err != nil || id <= 0 {
		errorDetail := dto.NewErrorDetail(dto.ErrorCodeValidationFailed, "Invalid "+name).
			WithField(name).
			WithDetails(name + " must be a positive number")
		ctx.AbortWithStatusJSON(http.StatusBadRequest, dto.NewErrorResponse(errorDetail))
		return 0, false
	}
	return id, true
}

// parseIntQuery reads an optional integer query parameter
func parseIntQuery(ctx *gin.Context, name string, def int) (int, bool) {
	raw := ctx.Query(name)
	if raw == "" {
		return def, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		badQuery(ctx, name, name+" must be an integer")
		return 0, false
	}
	return v, true
}

// parseOptionalIDQuery reads an optional positive id query parameter
func parseOptionalIDQuery(ctx *gin.Context, name string) (*int64, bool) {
	raw := ctx.Query(name)
	if raw == "" {
		return nil, true
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v <= 0 {
		badQuery(ctx, name, name+" must be a positive number")
		return nil, false
	}
	return &v, true
}

func parseTimeRange(ctx *gin.Context) (from, to *time.Time, ok bool) {
	fromT, err := helpers.ParseOptionalTime(ctx.Query("from"))
	if err != nil {
		badQuery(ctx, "from", err.Error())
		return nil, nil, false
	}
	toT, err := helpers.ParseOptionalTime(ctx.Query("to"))
	if err != nil {
		badQuery(ctx, "to", err.Error())
		return nil, nil, false
	}
	return fromT, toT, true
}

func badQuery(ctx *gin.Context, field, details string) {
	errorDetail := dto.NewErrorDetail(dto.ErrorCodeValidationFailed, "Invalid query parameter").
		WithField(field).
		WithDetails(details)
	ctx.AbortWithStatusJSON(http.StatusBadRequest, dto.NewErrorResponse(errorDetail))
}

func respondOK(ctx *gin.Context, data interface{}) {
	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(data))
}

func respondCreated(ctx *gin.Context, id int64) {
	ctx.JSON(http.StatusCreated, dto.NewSuccessResponse(dto.IDResponse{ID: id}))
}

func respondPage(ctx *gin.Context, items interface{}, total int64, page, size int) {
	respondOK(ctx, dto.PaginatedResponse{
		Items:      items,
		Pagination: helpers.NewPaginationInfo(total, page, size),
	})
}
