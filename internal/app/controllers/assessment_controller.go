package controllers

import (
	"github.com/gin-gonic/gin"

	"github.com/yigit/earlyalert/internal/app/models"
	"github.com/yigit/earlyalert/internal/app/models/dto"
	"github.com/yigit/earlyalert/internal/app/services"
	"github.com/yigit/earlyalert/internal/middleware"
	"github.com/yigit/earlyalert/internal/pkg/helpers"
)

// AssessmentController exposes the risk assessment ledger
type AssessmentController struct {
	ledger services.RiskLedgerService
}

// NewAssessmentController creates a new AssessmentController
func NewAssessmentController(ledger services.RiskLedgerService) *AssessmentController {
	return &AssessmentController{ledger: ledger}
}

// RecordAssessment stores a new scoring result and supersedes the current one
// @Summary Record a risk assessment
// @Description Supersedes the student's current assessment for the term. Escalations notify the primary advisor.
// @Tags assessments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Student ID"
// @Param request body dto.RecordAssessmentRequest true "Scores"
// @Success 201 {object} dto.APIResponse{data=dto.IDResponse}
// @Failure 400 {object} dto.ErrorResponse "Score out of range or unknown term"
// @Failure 409 {object} dto.ErrorResponse "Concurrent assessment for the same term"
// @Router /students/{id}/assessments [post]
func (c *AssessmentController) RecordAssessment(ctx *gin.Context) {
	actor, ok := requireActor(ctx)
	if !ok {
		return
	}
	studentID, ok := parseIDParam(ctx, "id")
	if !ok {
		return
	}
	var req dto.RecordAssessmentRequest
	if !middleware.BindJSON(ctx, &req) {
		return
	}

	id, err := c.ledger.RecordAssessment(ctx.Request.Context(), actor, services.RecordAssessmentRequest{
		StudentID: studentID,
		TermID:    req.TermID,
		Scores: models.RiskScores{
			Overall:    *req.Scores.Overall,
			Academic:   *req.Scores.Academic,
			Engagement: *req.Scores.Engagement,
			Financial:  *req.Scores.Financial,
			Wellness:   *req.Scores.Wellness,
		},
		ModelVersion: req.ModelVersion,
		RiskPathway:  req.RiskPathway,
		Confidence:   req.Confidence,
		CalculatedAt: req.CalculatedAt,
	})
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	respondCreated(ctx, id)
}

// ListAssessments returns the student's assessment history, newest first
// @Summary Assessment history
// @Tags assessments
// @Produce json
// @Security BearerAuth
// @Param id path int true "Student ID"
// @Param page query int false "Page number" default(1)
// @Param size query int false "Page size" default(10)
// @Success 200 {object} dto.APIResponse{data=dto.PaginatedResponse{items=[]models.RiskAssessment}}
// @Router /students/{id}/assessments [get]
func (c *AssessmentController) ListAssessments(ctx *gin.Context) {
	actor, ok := requireActor(ctx)
	if !ok {
		return
	}
	studentID, ok := parseIDParam(ctx, "id")
	if !ok {
		return
	}
	page, size := helpers.ParsePaginationParams(ctx)

	items, total, err := c.ledger.GetHistory(ctx.Request.Context(), actor, studentID, page, size)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	respondPage(ctx, items, total, page, size)
}

// GetCurrentAssessment returns the current assessment
// @Summary Current assessment
// @Description Without termId, the most recent current assessment across terms.
// @Tags assessments
// @Produce json
// @Security BearerAuth
// @Param id path int true "Student ID"
// @Param termId query string false "Term code"
// @Success 200 {object} dto.APIResponse{data=models.RiskAssessment}
// @Failure 404 {object} dto.ErrorResponse "No current assessment"
// @Router /students/{id}/assessments/current [get]
func (c *AssessmentController) GetCurrentAssessment(ctx *gin.Context) {
	actor, ok := requireActor(ctx)
	if !ok {
		return
	}
	studentID, ok := parseIDParam(ctx, "id")
	if !ok {
		return
	}

	var (
		current *models.RiskAssessment
		err     error
	)
	if termID := ctx.Query("termId"); termID != "" {
		current, err = c.ledger.GetCurrentForTerm(ctx.Request.Context(), actor, studentID, termID)
	} else {
		current, err = c.ledger.GetCurrent(ctx.Request.Context(), actor, studentID)
	}
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	respondOK(ctx, current)
}
