package controllers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yigit/earlyalert/internal/app/auth"
	"github.com/yigit/earlyalert/internal/app/models"
	"github.com/yigit/earlyalert/internal/app/models/dto"
	"github.com/yigit/earlyalert/internal/app/repositories"
	"github.com/yigit/earlyalert/internal/app/services"
	"github.com/yigit/earlyalert/internal/middleware"
	"github.com/yigit/earlyalert/internal/pkg/helpers"
)

// InterventionController handles the intervention lifecycle
type InterventionController struct {
	interventionService services.InterventionService
}

// NewInterventionController creates a new InterventionController
func NewInterventionController(interventionService services.InterventionService) *InterventionController {
	return &InterventionController{
		interventionService: interventionService,
	}
}

// CreateIntervention creates an advisor-initiated intervention
// @Summary Create an intervention
// @Description Starts in Scheduled. Zero fields inherit from the type template.
// @Tags interventions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.CreateInterventionRequest true "Intervention"
// @Success 201 {object} dto.APIResponse{data=dto.IDResponse}
// @Failure 400 {object} dto.ErrorResponse "Invalid request data"
// @Failure 403 {object} dto.ErrorResponse "Forbidden"
// @Router /interventions [post]
func (c *InterventionController) CreateIntervention(ctx *gin.Context) {
	actor, ok := requireActor(ctx)
	if !ok {
		return
	}
	var req dto.CreateInterventionRequest
	if !middleware.BindJSON(ctx, &req) {
		return
	}

	id, err := c.interventionService.Create(ctx.Request.Context(), actor, services.CreateInterventionRequest{
		StudentID:              req.StudentID,
		AdvisorID:              req.AdvisorID,
		Title:                  req.Title,
		Description:            req.Description,
		Priority:               models.Priority(req.Priority),
		ScheduledAt:            req.ScheduledAt,
		TypeTemplateID:         req.TypeTemplateID,
		Method:                 models.Method(req.Method),
		Location:               req.Location,
		PlannedDurationMinutes: req.PlannedDurationMinutes,
		Notes:                  req.Notes,
	})
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	respondCreated(ctx, id)
}

// BulkCreateInterventions creates one intervention per student in a single transaction
// @Summary Bulk create interventions from a template
// @Tags interventions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.BulkCreateInterventionsRequest true "Students and template"
// @Success 201 {object} dto.APIResponse{data=dto.IDsResponse}
// @Router /interventions/bulk [post]
func (c *InterventionController) BulkCreateInterventions(ctx *gin.Context) {
	actor, ok := requireActor(ctx)
	if !ok {
		return
	}
	var req dto.BulkCreateInterventionsRequest
	if !middleware.BindJSON(ctx, &req) {
		return
	}

	ids, err := c.interventionService.BulkCreate(ctx.Request.Context(), actor, services.BulkCreateRequest{
		StudentIDs:     req.StudentIDs,
		AdvisorID:      req.AdvisorID,
		TypeTemplateID: req.TypeTemplateID,
		Priority:       models.Priority(req.Priority),
		ScheduledAt:    req.ScheduledAt,
	})
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusCreated, dto.NewSuccessResponse(dto.IDsResponse{IDs: ids}))
}

// RequestIntervention lets a student ask their primary advisor for a meeting
// @Summary Request an appointment
// @Tags interventions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.StudentInterventionRequest true "Request"
// @Success 201 {object} dto.APIResponse{data=dto.IDResponse}
// @Router /interventions/requests [post]
func (c *InterventionController) RequestIntervention(ctx *gin.Context) {
	actor, ok := requireActor(ctx)
	if !ok {
		return
	}
	var req dto.StudentInterventionRequest
	if !middleware.BindJSON(ctx, &req) {
		return
	}

	id, err := c.interventionService.RequestIntervention(ctx.Request.Context(), actor, services.StudentRequest{
		Title:       req.Title,
		Reason:      req.Reason,
		PreferredAt: req.PreferredAt,
		Method:      models.Method(req.Method),
	})
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	respondCreated(ctx, id)
}

// GetIntervention returns one intervention
// @Summary Get an intervention
// @Tags interventions
// @Produce json
// @Security BearerAuth
// @Param id path int true "Intervention ID"
// @Success 200 {object} dto.APIResponse{data=models.Intervention}
// @Failure 404 {object} dto.ErrorResponse "Intervention not found"
// @Router /interventions/{id} [get]
func (c *InterventionController) GetIntervention(ctx *gin.Context) {
	actor, ok := requireActor(ctx)
	if !ok {
		return
	}
	id, ok := parseIDParam(ctx, "id")
	if !ok {
		return
	}

	i, err := c.interventionService.Get(ctx.Request.Context(), actor, id)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	respondOK(ctx, i)
}

// TransitionIntervention moves an intervention along the state machine
// @Summary Change intervention status
// @Description Completion details are required when status is Completed.
// @Tags interventions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Intervention ID"
// @Param request body dto.TransitionRequest true "Transition"
// @Success 200 {object} dto.APIResponse{data=models.Intervention}
// @Failure 409 {object} dto.ErrorResponse "Illegal transition; details list the allowed states"
// @Router /interventions/{id}/transitions [post]
func (c *InterventionController) TransitionIntervention(ctx *gin.Context) {
	actor, ok := requireActor(ctx)
	if !ok {
		return
	}
	id, ok := parseIDParam(ctx, "id")
	if !ok {
		return
	}
	var req dto.TransitionRequest
	if !middleware.BindJSON(ctx, &req) {
		return
	}

	tr := services.TransitionRequest{
		InterventionID: id,
		NewStatus:      models.InterventionStatus(req.Status),
		Notes:          req.Notes,
	}
	if req.Completion != nil {
		tr.Completion = &services.CompletionDetails{
			OutcomeAssessment: req.Completion.OutcomeAssessment,
			SuccessRating:     req.Completion.SuccessRating,
			StudentResponse:   req.Completion.StudentResponse,
			DurationMinutes:   req.Completion.DurationMinutes,
		}
	}

	if err := c.interventionService.Transition(ctx.Request.Context(), actor, tr); err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	c.respondCurrent(ctx, id)
}

// respondCurrent re-reads the intervention after a committed change
func (c *InterventionController) respondCurrent(ctx *gin.Context, id int64) {
	actor, _ := middleware.ActorFromContext(ctx)
	i, err := c.interventionService.Get(ctx.Request.Context(), actor, id)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	respondOK(ctx, i)
}

// ScheduleFollowUp marks a completed intervention as needing a follow-up
// @Summary Schedule a follow-up
// @Tags interventions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Intervention ID"
// @Param request body dto.ScheduleFollowUpRequest true "Follow-up date"
// @Success 200 {object} dto.APIResponse{data=models.Intervention}
// @Failure 409 {object} dto.ErrorResponse "Intervention is not Completed"
// @Router /interventions/{id}/follow-up [post]
func (c *InterventionController) ScheduleFollowUp(ctx *gin.Context) {
	actor, ok := requireActor(ctx)
	if !ok {
		return
	}
	id, ok := parseIDParam(ctx, "id")
	if !ok {
		return
	}
	var req dto.ScheduleFollowUpRequest
	if !middleware.BindJSON(ctx, &req) {
		return
	}

	if err := c.interventionService.ScheduleFollowUp(ctx.Request.Context(), actor, id, req.FollowUpDate, req.Notes); err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	c.respondCurrent(ctx, id)
}

// CreateFollowUp creates the follow-up intervention of a completed one
// @Summary Create the follow-up intervention
// @Tags interventions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Original intervention ID"
// @Param request body dto.CreateFollowUpRequest false "Overrides"
// @Success 201 {object} dto.APIResponse{data=dto.IDResponse}
// @Failure 409 {object} dto.ErrorResponse "Follow-up already exists"
// @Router /interventions/{id}/follow-ups [post]
func (c *InterventionController) CreateFollowUp(ctx *gin.Context) {
	actor, ok := requireActor(ctx)
	if !ok {
		return
	}
	id, ok := parseIDParam(ctx, "id")
	if !ok {
		return
	}
	var req dto.CreateFollowUpRequest
	if ctx.Request.ContentLength != 0 && !middleware.BindJSON(ctx, &req) {
		return
	}

	newID, err := c.interventionService.CreateFollowUp(ctx.Request.Context(), actor, services.FollowUpRequest{
		OriginalID:  id,
		Title:       req.Title,
		Description: req.Description,
		Priority:    models.Priority(req.Priority),
		ScheduledAt: req.ScheduledAt,
		Notes:       req.Notes,
	})
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	respondCreated(ctx, newID)
}

// ListTypes returns the active intervention templates
// @Summary List intervention types
// @Tags interventions
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.APIResponse{data=[]models.InterventionType}
// @Router /interventions/types [get]
func (c *InterventionController) ListTypes(ctx *gin.Context) {
	actor, ok := requireActor(ctx)
	if !ok {
		return
	}

	types, err := c.interventionService.ListTypes(ctx.Request.Context(), actor)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	respondOK(ctx, types)
}

// Statistics aggregates interventions
// @Summary Intervention statistics
// @Tags interventions
// @Produce json
// @Security BearerAuth
// @Param advisorId query int false "Advisor"
// @Param from query string false "RFC3339 or YYYY-MM-DD"
// @Param to query string false "RFC3339 or YYYY-MM-DD"
// @Success 200 {object} dto.APIResponse{data=models.InterventionStats}
// @Router /interventions/stats [get]
func (c *InterventionController) Statistics(ctx *gin.Context) {
	actor, ok := requireActor(ctx)
	if !ok {
		return
	}
	advisorID, ok := parseOptionalIDQuery(ctx, "advisorId")
	if !ok {
		return
	}
	from, to, ok := parseTimeRange(ctx)
	if !ok {
		return
	}

	stats, err := c.interventionService.Statistics(ctx.Request.Context(), actor, repositories.StatsFilter{
		AdvisorID: advisorID,
		From:      from,
		To:        to,
	})
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	respondOK(ctx, stats)
}

// ListForStudent returns a student's interventions, newest first
// @Summary A student's interventions
// @Tags interventions
// @Produce json
// @Security BearerAuth
// @Param id path int true "Student ID"
// @Param status query string false "Status"
// @Success 200 {object} dto.APIResponse{data=[]models.Intervention}
// @Router /students/{id}/interventions [get]
func (c *InterventionController) ListForStudent(ctx *gin.Context) {
	actor, ok := requireActor(ctx)
	if !ok {
		return
	}
	studentID, ok := parseIDParam(ctx, "id")
	if !ok {
		return
	}
	var status *models.InterventionStatus
	if raw := ctx.Query("status"); raw != "" {
		s := models.InterventionStatus(raw)
		status = &s
	}

	items, err := c.interventionService.ListForStudent(ctx.Request.Context(), actor, studentID, status)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	respondOK(ctx, items)
}

// ListForAdvisor returns an advisor's caseload
// @Summary An advisor's interventions
// @Tags advisors
// @Produce json
// @Security BearerAuth
// @Param id path int true "Advisor user ID"
// @Param status query []string false "Statuses" collectionFormat(multi)
// @Param studentRequests query bool false "Only student requests"
// @Param page query int false "Page number" default(1)
// @Param size query int false "Page size" default(10)
// @Success 200 {object} dto.APIResponse{data=dto.PaginatedResponse{items=[]models.Intervention}}
// @Router /advisors/{id}/interventions [get]
func (c *InterventionController) ListForAdvisor(ctx *gin.Context) {
	actor, ok := requireActor(ctx)
	if !ok {
		return
	}
	advisorID, ok := parseIDParam(ctx, "id")
	if !ok {
		return
	}
	filter := repositories.InterventionFilter{Order: repositories.OrderNewest}
	for _, raw := range ctx.QueryArray("status") {
		s := models.InterventionStatus(raw)
		if !s.Valid() {
			badQuery(ctx, "status", "unknown status "+raw)
			return
		}
		filter.Statuses = append(filter.Statuses, s)
	}
	switch ctx.Query("studentRequests") {
	case "true":
		v := true
		filter.IsStudentRequest = &v
	case "false":
		v := false
		filter.IsStudentRequest = &v
	}
	page, size := helpers.ParsePaginationParams(ctx)

	items, total, err := c.interventionService.ListForAdvisor(ctx.Request.Context(), actor, advisorID, filter, page, size)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	respondPage(ctx, items, total, page, size)
}

// PendingForAdvisor lists open work, most urgent first
// @Summary Pending interventions
// @Tags advisors
// @Produce json
// @Security BearerAuth
// @Param id path int true "Advisor user ID"
// @Success 200 {object} dto.APIResponse{data=[]models.Intervention}
// @Router /advisors/{id}/interventions/pending [get]
func (c *InterventionController) PendingForAdvisor(ctx *gin.Context) {
	c.advisorQueue(ctx, c.interventionService.PendingFor)
}

// OverdueForAdvisor lists scheduled interventions whose time has passed
// @Summary Overdue interventions
// @Tags advisors
// @Produce json
// @Security BearerAuth
// @Param id path int true "Advisor user ID"
// @Success 200 {object} dto.APIResponse{data=[]models.Intervention}
// @Router /advisors/{id}/interventions/overdue [get]
func (c *InterventionController) OverdueForAdvisor(ctx *gin.Context) {
	c.advisorQueue(ctx, c.interventionService.OverdueFor)
}

// FollowUpsDueForAdvisor lists follow-ups due within the window
// @Summary Follow-ups due
// @Tags advisors
// @Produce json
// @Security BearerAuth
// @Param id path int true "Advisor user ID"
// @Param withinDays query int false "Window in days (default from configuration)"
// @Success 200 {object} dto.APIResponse{data=[]models.Intervention}
// @Router /advisors/{id}/interventions/follow-ups [get]
func (c *InterventionController) FollowUpsDueForAdvisor(ctx *gin.Context) {
	actor, ok := requireActor(ctx)
	if !ok {
		return
	}
	advisorID, ok := parseIDParam(ctx, "id")
	if !ok {
		return
	}
	var withinDays *int
	if _, given := ctx.GetQuery("withinDays"); given {
		days, ok := parseIntQuery(ctx, "withinDays", 0)
		if !ok {
			return
		}
		withinDays = &days
	}

	items, err := c.interventionService.FollowUpsDueFor(ctx.Request.Context(), actor, advisorID, withinDays)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	respondOK(ctx, items)
}

type advisorQuery func(ctx context.Context, actor auth.Actor, advisorID int64) ([]*models.Intervention, error)

func (c *InterventionController) advisorQueue(ctx *gin.Context, query advisorQuery) {
	actor, ok := requireActor(ctx)
	if !ok {
		return
	}
	advisorID, ok := parseIDParam(ctx, "id")
	if !ok {
		return
	}

	items, err := query(ctx.Request.Context(), actor, advisorID)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	respondOK(ctx, items)
}
