package controllers

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yigit/earlyalert/internal/app/models"
	"github.com/yigit/earlyalert/internal/app/models/dto"
	"github.com/yigit/earlyalert/internal/app/repositories"
	"github.com/yigit/earlyalert/internal/app/services"
	"github.com/yigit/earlyalert/internal/middleware"
	"github.com/yigit/earlyalert/internal/pkg/helpers"
)

// StudentController handles the student registry and the term list
type StudentController struct {
	studentService services.StudentService
}

// NewStudentController creates a new StudentController
func NewStudentController(studentService services.StudentService) *StudentController {
	return &StudentController{
		studentService: studentService,
	}
}

// CreateStudent registers a student
// @Summary Register a student
// @Tags students
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.CreateStudentRequest true "Student"
// @Success 201 {object} dto.APIResponse{data=dto.IDResponse}
// @Failure 400 {object} dto.ErrorResponse "Invalid request data"
// @Failure 403 {object} dto.ErrorResponse "Forbidden"
// @Failure 409 {object} dto.ErrorResponse "Banner ID already registered"
// @Router /students [post]
func (c *StudentController) CreateStudent(ctx *gin.Context) {
	actor, ok := requireActor(ctx)
	if !ok {
		return
	}
	var req dto.CreateStudentRequest
	if !middleware.BindJSON(ctx, &req) {
		return
	}

	id, err := c.studentService.Create(ctx.Request.Context(), actor, services.CreateStudentRequest{
		BannerID:         req.BannerID,
		FirstName:        req.FirstName,
		LastName:         req.LastName,
		Email:            req.Email,
		Phone:            req.Phone,
		Classification:   req.Classification,
		DeclaredMajor:    req.DeclaredMajor,
		FirstGeneration:  req.FirstGeneration,
		International:    req.International,
		Veteran:          req.Veteran,
		Disability:       req.Disability,
		PrimaryAdvisorID: req.PrimaryAdvisorID,
		UserID:           req.UserID,
	})
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	respondCreated(ctx, id)
}

// ListStudents lists students
// @Summary List students
// @Tags students
// @Produce json
// @Security BearerAuth
// @Param search query string false "Matches name, banner id or email"
// @Param enrollmentStatus query string false "Active, Inactive, Graduated or Withdrawn"
// @Param advisorId query int false "Primary advisor"
// @Param classification query string false "Classification"
// @Param page query int false "Page number" default(1)
// @Param size query int false "Page size" default(10)
// @Success 200 {object} dto.APIResponse{data=dto.PaginatedResponse{items=[]models.Student}}
// @Router /students [get]
func (c *StudentController) ListStudents(ctx *gin.Context) {
	actor, ok := requireActor(ctx)
	if !ok {
		return
	}
	var q dto.StudentFilterRequest
	if !middleware.BindQuery(ctx, &q) {
		return
	}
	page, size := helpers.ParsePaginationParams(ctx)

	students, total, err := c.studentService.List(ctx.Request.Context(), actor, repositories.StudentFilter{
		Search:           strings.TrimSpace(q.Search),
		EnrollmentStatus: models.EnrollmentStatus(q.EnrollmentStatus),
		PrimaryAdvisorID: q.PrimaryAdvisorID,
		Classification:   q.Classification,
	}, page, size)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	respondPage(ctx, students, total, page, size)
}

// GetStudent returns one student
// @Summary Get a student
// @Tags students
// @Produce json
// @Security BearerAuth
// @Param id path int true "Student ID"
// @Success 200 {object} dto.APIResponse{data=models.Student}
// @Failure 404 {object} dto.ErrorResponse "Student not found"
// @Router /students/{id} [get]
func (c *StudentController) GetStudent(ctx *gin.Context) {
	actor, ok := requireActor(ctx)
	if !ok {
		return
	}
	id, ok := parseIDParam(ctx, "id")
	if !ok {
		return
	}

	student, err := c.studentService.Get(ctx.Request.Context(), actor, id)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	respondOK(ctx, student)
}

// DeactivateStudent marks a student Inactive; students are never deleted
// @Summary Deactivate a student
// @Tags students
// @Produce json
// @Security BearerAuth
// @Param id path int true "Student ID"
// @Success 200 {object} dto.APIResponse
// @Router /students/{id} [delete]
func (c *StudentController) DeactivateStudent(ctx *gin.Context) {
	c.setEnrollment(ctx, models.EnrollmentInactive)
}

// UpdateEnrollment sets a student's enrollment status
// @Summary Change enrollment status
// @Tags students
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Student ID"
// @Param request body dto.UpdateEnrollmentRequest true "New status"
// @Success 200 {object} dto.APIResponse
// @Router /students/{id}/enrollment [put]
func (c *StudentController) UpdateEnrollment(ctx *gin.Context) {
	var req dto.UpdateEnrollmentRequest
	if !middleware.BindJSON(ctx, &req) {
		return
	}
	c.setEnrollment(ctx, models.EnrollmentStatus(req.EnrollmentStatus))
}

func (c *StudentController) setEnrollment(ctx *gin.Context, status models.EnrollmentStatus) {
	actor, ok := requireActor(ctx)
	if !ok {
		return
	}
	id, ok := parseIDParam(ctx, "id")
	if !ok {
		return
	}

	if err := c.studentService.SetEnrollmentStatus(ctx.Request.Context(), actor, id, status); err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	respondOK(ctx, gin.H{"id": id, "enrollmentStatus": status})
}

// ListTerms returns all terms, newest first
// @Summary List terms
// @Tags terms
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.APIResponse{data=[]models.Term}
// @Router /terms [get]
func (c *StudentController) ListTerms(ctx *gin.Context) {
	actor, ok := requireActor(ctx)
	if !ok {
		return
	}

	terms, err := c.studentService.ListTerms(ctx.Request.Context(), actor)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	respondOK(ctx, terms)
}

// UpsertTerm creates or replaces a term
// @Summary Create or replace a term
// @Tags terms
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Term code, e.g. 2024F"
// @Param request body dto.UpsertTermRequest true "Term"
// @Success 200 {object} dto.APIResponse{data=models.Term}
// @Router /terms/{id} [put]
func (c *StudentController) UpsertTerm(ctx *gin.Context) {
	actor, ok := requireActor(ctx)
	if !ok {
		return
	}
	var req dto.UpsertTermRequest
	if !middleware.BindJSON(ctx, &req) {
		return
	}

	term := models.Term{
		ID:        strings.TrimSpace(ctx.Param("id")),
		Name:      req.Name,
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
	}
	if err := c.studentService.UpsertTerm(ctx.Request.Context(), actor, term); err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	respondOK(ctx, term)
}
