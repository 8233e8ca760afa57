package controllers

import (
	"github.com/gin-gonic/gin"

	"github.com/yigit/earlyalert/internal/app/models"
	"github.com/yigit/earlyalert/internal/app/repositories"
	"github.com/yigit/earlyalert/internal/app/services"
	"github.com/yigit/earlyalert/internal/middleware"
	"github.com/yigit/earlyalert/internal/pkg/helpers"
)

// AuditController exposes the read side of the audit trail
type AuditController struct {
	auditService services.AuditService
}

// NewAuditController creates a new AuditController
func NewAuditController(auditService services.AuditService) *AuditController {
	return &AuditController{auditService: auditService}
}

// ListRecent lists audit entries, newest first
// @Summary Recent audit entries
// @Tags audit
// @Produce json
// @Security BearerAuth
// @Param actorId query int false "Acting user"
// @Param entityType query string false "student, user, risk_assessment, intervention or notification"
// @Param action query string false "Action, e.g. INTERVENTION_STATUS_CHANGED"
// @Param from query string false "RFC3339 or YYYY-MM-DD"
// @Param to query string false "RFC3339 or YYYY-MM-DD"
// @Param page query int false "Page number" default(1)
// @Param size query int false "Page size" default(10)
// @Success 200 {object} dto.APIResponse{data=dto.PaginatedResponse{items=[]models.AuditLogEntry}}
// @Router /audit [get]
func (c *AuditController) ListRecent(ctx *gin.Context) {
	actor, ok := requireActor(ctx)
	if !ok {
		return
	}
	actorID, ok := parseOptionalIDQuery(ctx, "actorId")
	if !ok {
		return
	}
	from, to, ok := parseTimeRange(ctx)
	if !ok {
		return
	}
	page, size := helpers.ParsePaginationParams(ctx)

	entries, total, err := c.auditService.ListRecent(ctx.Request.Context(), actor, repositories.AuditFilter{
		ActorID:    actorID,
		EntityType: models.EntityType(ctx.Query("entityType")),
		Action:     ctx.Query("action"),
		From:       from,
		To:         to,
	}, page, size)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	respondPage(ctx, entries, total, page, size)
}

// ListForEntity returns the full trail of one entity, oldest first
// @Summary Audit trail of an entity
// @Tags audit
// @Produce json
// @Security BearerAuth
// @Param entityType path string true "Entity type"
// @Param entityId path int true "Entity ID"
// @Success 200 {object} dto.APIResponse{data=[]models.AuditLogEntry}
// @Router /audit/{entityType}/{entityId} [get]
func (c *AuditController) ListForEntity(ctx *gin.Context) {
	actor, ok := requireActor(ctx)
	if !ok {
		return
	}
	entityID, ok := parseIDParam(ctx, "entityId")
	if !ok {
		return
	}

	entries, err := c.auditService.ListForEntity(ctx.Request.Context(), actor, models.EntityType(ctx.Param("entityType")), entityID)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	respondOK(ctx, entries)
}
