package dto

import "time"

// CreateInterventionRequest is an advisor-initiated intervention. Fields left
// empty inherit from the type template.
type CreateInterventionRequest struct {
	StudentID              int64      `json:"studentId" binding:"required,gt=0" example:"42"`
	AdvisorID              int64      `json:"advisorId" binding:"required,gt=0" example:"7"`
	Title                  string     `json:"title" binding:"max=200" example:"Academic check-in"`
	Description            string     `json:"description,omitempty"`
	Priority               string     `json:"priority,omitempty" binding:"omitempty,oneof=Low Medium High Critical" example:"High"`
	ScheduledAt            *time.Time `json:"scheduledAt,omitempty"`
	TypeTemplateID         *int64     `json:"typeTemplateId,omitempty" binding:"omitempty,gt=0"`
	Method                 string     `json:"method,omitempty" binding:"omitempty,oneof=In-person Virtual Phone Email" example:"Virtual"`
	Location               string     `json:"location,omitempty"`
	PlannedDurationMinutes *int       `json:"plannedDurationMinutes,omitempty" binding:"omitempty,gt=0" example:"30"`
	Notes                  string     `json:"notes,omitempty"`
}

// StudentInterventionRequest is a student asking for an appointment
type StudentInterventionRequest struct {
	Title       string     `json:"title" binding:"required,max=200" example:"Help with course load"`
	Reason      string     `json:"reason,omitempty"`
	PreferredAt *time.Time `json:"preferredAt,omitempty"`
	Method      string     `json:"method,omitempty" binding:"omitempty,oneof=In-person Virtual Phone Email"`
}

// CompletionRequest carries the outcome recorded on completion. It is checked
// by the lifecycle after the transition itself, so it has no binding rules.
type CompletionRequest struct {
	OutcomeAssessment string `json:"outcomeAssessment" example:"Student agreed to a tutoring plan"`
	SuccessRating     *int   `json:"successRating" example:"4"`
	StudentResponse   string `json:"studentResponse,omitempty"`
	DurationMinutes   *int   `json:"durationMinutes,omitempty" example:"35"`
}

// TransitionRequest moves an intervention to a new status
type TransitionRequest struct {
	Status     string             `json:"status" binding:"required" example:"Completed"`
	Notes      string             `json:"notes,omitempty"`
	Completion *CompletionRequest `json:"completion,omitempty"`
}

// ScheduleFollowUpRequest marks a completed intervention as needing a follow-up
type ScheduleFollowUpRequest struct {
	FollowUpDate time.Time `json:"followUpDate" binding:"required" example:"2024-10-15T00:00:00Z"`
	Notes        string    `json:"notes,omitempty"`
}

// CreateFollowUpRequest creates the follow-up intervention itself
type CreateFollowUpRequest struct {
	Title       string     `json:"title,omitempty" binding:"max=200"`
	Description string     `json:"description,omitempty"`
	Priority    string     `json:"priority,omitempty" binding:"omitempty,oneof=Low Medium High Critical"`
	ScheduledAt *time.Time `json:"scheduledAt,omitempty"`
	Notes       string     `json:"notes,omitempty"`
}

// BulkCreateInterventionsRequest creates one intervention per student
type BulkCreateInterventionsRequest struct {
	StudentIDs     []int64    `json:"studentIds" binding:"required,min=1,dive,gt=0"`
	AdvisorID      int64      `json:"advisorId" binding:"required,gt=0"`
	TypeTemplateID int64      `json:"typeTemplateId" binding:"required,gt=0"`
	Priority       string     `json:"priority,omitempty" binding:"omitempty,oneof=Low Medium High Critical"`
	ScheduledAt    *time.Time `json:"scheduledAt,omitempty"`
}
