package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yigit/earlyalert/internal/app/models"
	"github.com/yigit/earlyalert/internal/app/models/dto"
	"github.com/yigit/earlyalert/internal/app/services"
	"github.com/yigit/earlyalert/internal/middleware"
)

// NotificationController handles in-app notifications
type NotificationController struct {
	notificationService services.NotificationService
}

// NewNotificationController creates a new NotificationController
func NewNotificationController(notificationService services.NotificationService) *NotificationController {
	return &NotificationController{
		notificationService: notificationService,
	}
}

// Notify sends one notification
// @Summary Send a notification
// @Tags notifications
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.NotifyRequest true "Notification"
// @Success 201 {object} dto.APIResponse{data=dto.IDResponse}
// @Router /notifications [post]
func (c *NotificationController) Notify(ctx *gin.Context) {
	actor, ok := requireActor(ctx)
	if !ok {
		return
	}
	var req dto.NotifyRequest
	if !middleware.BindJSON(ctx, &req) {
		return
	}

	n := services.NotifyRequest{
		UserID:   req.UserID,
		Type:     req.Type,
		Title:    req.Title,
		Message:  req.Message,
		Priority: models.NotificationPriority(req.Priority),
		Email:    req.Email,
	}
	if req.RelatedEntityType != "" && req.RelatedEntityID != nil {
		n.Related = &models.EntityRef{Type: models.EntityType(req.RelatedEntityType), ID: *req.RelatedEntityID}
	}

	id, err := c.notificationService.Notify(ctx.Request.Context(), actor, n)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	respondCreated(ctx, id)
}

// Broadcast sends the same notification to many users in one transaction
// @Summary Broadcast a notification
// @Tags notifications
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.BroadcastRequest true "Broadcast"
// @Success 201 {object} dto.APIResponse{data=dto.IDsResponse}
// @Router /notifications/broadcast [post]
func (c *NotificationController) Broadcast(ctx *gin.Context) {
	actor, ok := requireActor(ctx)
	if !ok {
		return
	}
	var req dto.BroadcastRequest
	if !middleware.BindJSON(ctx, &req) {
		return
	}

	ids, err := c.notificationService.Broadcast(ctx.Request.Context(), actor, req.UserIDs, services.NotifyRequest{
		Type:     req.Type,
		Title:    req.Title,
		Message:  req.Message,
		Priority: models.NotificationPriority(req.Priority),
		Email:    req.Email,
	})
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusCreated, dto.NewSuccessResponse(dto.IDsResponse{IDs: ids}))
}

// Unread returns the caller's unread notifications, newest first
// @Summary Unread notifications
// @Tags notifications
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Maximum items" default(50)
// @Success 200 {object} dto.APIResponse{data=[]models.Notification}
// @Router /notifications/unread [get]
func (c *NotificationController) Unread(ctx *gin.Context) {
	actor, ok := requireActor(ctx)
	if !ok {
		return
	}
	limit, ok := parseIntQuery(ctx, "limit", 0)
	if !ok {
		return
	}

	items, err := c.notificationService.UnreadFor(ctx.Request.Context(), actor, actor.UserID, limit)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	respondOK(ctx, items)
}

// MarkRead marks one of the caller's notifications read
// @Summary Mark a notification read
// @Tags notifications
// @Produce json
// @Security BearerAuth
// @Param id path int true "Notification ID"
// @Success 200 {object} dto.APIResponse
// @Router /notifications/{id}/read [post]
func (c *NotificationController) MarkRead(ctx *gin.Context) {
	actor, ok := requireActor(ctx)
	if !ok {
		return
	}
	id, ok := parseIDParam(ctx, "id")
	if !ok {
		return
	}

	if err := c.notificationService.MarkRead(ctx.Request.Context(), actor, id); err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewMessageResponse("Notification marked as read"))
}

// MarkAllRead marks every unread notification of the caller read
// @Summary Mark all notifications read
// @Tags notifications
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.APIResponse{data=dto.CountResponse}
// @Router /notifications/read-all [post]
func (c *NotificationController) MarkAllRead(ctx *gin.Context) {
	actor, ok := requireActor(ctx)
	if !ok {
		return
	}

	n, err := c.notificationService.MarkAllRead(ctx.Request.Context(), actor)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	respondOK(ctx, dto.CountResponse{Count: n})
}
