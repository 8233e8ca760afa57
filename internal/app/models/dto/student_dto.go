package dto

import "time"

// CreateStudentRequest represents student registration data
type CreateStudentRequest struct {
	BannerID         string `json:"bannerId" binding:"required,max=32" example:"B00012345"`
	FirstName        string `json:"firstName" binding:"required,max=100"`
	LastName         string `json:"lastName" binding:"required,max=100"`
	Email            string `json:"email" binding:"omitempty,email"`
	Phone            string `json:"phone,omitempty" binding:"omitempty,max=32"`
	Classification   string `json:"classification,omitempty" example:"Sophomore"`
	DeclaredMajor    string `json:"declaredMajor,omitempty"`
	FirstGeneration  bool   `json:"firstGeneration"`
	International    bool   `json:"international"`
	Veteran          bool   `json:"veteran"`
	Disability       bool   `json:"disability"`
	PrimaryAdvisorID *int64 `json:"primaryAdvisorId,omitempty" binding:"omitempty,gt=0"`
	UserID           *int64 `json:"userId,omitempty" binding:"omitempty,gt=0"`
}

// StudentFilterRequest binds the query of GET /students
type StudentFilterRequest struct {
	Search           string `form:"search"`
	EnrollmentStatus string `form:"enrollmentStatus" binding:"omitempty,oneof=Active Inactive Graduated Withdrawn"`
	PrimaryAdvisorID *int64 `form:"advisorId" binding:"omitempty,gt=0"`
	Classification   string `form:"classification"`
}

// UpdateEnrollmentRequest changes a student's enrollment status
type UpdateEnrollmentRequest struct {
	EnrollmentStatus string `json:"enrollmentStatus" binding:"required,oneof=Active Inactive Graduated Withdrawn" example:"Withdrawn"`
}

// RiskScoresRequest holds the model's scores; each in [0,1]
type RiskScoresRequest struct {
	Overall    *float64 `json:"overall" binding:"required,min=0,max=1" example:"0.82"`
	Academic   *float64 `json:"academic" binding:"required,min=0,max=1" example:"0.9"`
	Engagement *float64 `json:"engagement" binding:"required,min=0,max=1" example:"0.7"`
	Financial  *float64 `json:"financial" binding:"required,min=0,max=1" example:"0.6"`
	Wellness   *float64 `json:"wellness" binding:"required,min=0,max=1" example:"0.5"`
}

// RecordAssessmentRequest is posted by the scoring job
type RecordAssessmentRequest struct {
	TermID       string            `json:"termId" binding:"required" example:"2024F"`
	Scores       RiskScoresRequest `json:"scores" binding:"required"`
	ModelVersion string            `json:"modelVersion" binding:"required" example:"v2.1"`
	RiskPathway  string            `json:"riskPathway,omitempty" example:"academic"`
	Confidence   *float64          `json:"confidence,omitempty" binding:"omitempty,min=0,max=1" example:"0.87"`
	CalculatedAt *time.Time        `json:"calculatedAt,omitempty"`
}

// UpsertTermRequest creates or replaces a term
type UpsertTermRequest struct {
	Name      string    `json:"name" binding:"required" example:"Fall 2024"`
	StartDate time.Time `json:"startDate" binding:"required" example:"2024-08-26T00:00:00Z"`
	EndDate   time.Time `json:"endDate" binding:"required" example:"2024-12-20T00:00:00Z"`
}
