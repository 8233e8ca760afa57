package models

import "time"

// InterventionStatus is a node of the intervention state machine
type InterventionStatus string

const (
	StatusPending    InterventionStatus = "Pending"
	StatusScheduled  InterventionStatus = "Scheduled"
	StatusInProgress InterventionStatus = "In Progress"
	StatusCompleted  InterventionStatus = "Completed"
	StatusCancelled  InterventionStatus = "Cancelled"
	StatusNoShow     InterventionStatus = "No Show"
)

// AllInterventionStatuses in lifecycle order
var AllInterventionStatuses = []InterventionStatus{
	StatusPending, StatusScheduled, StatusInProgress, StatusCompleted, StatusCancelled, StatusNoShow,
}

// interventionTransitions is the complete edge set. Terminal states have no entry.
var interventionTransitions = map[InterventionStatus][]InterventionStatus{
	StatusPending:    {StatusScheduled, StatusCancelled},
	StatusScheduled:  {StatusInProgress, StatusCancelled, StatusNoShow},
	StatusInProgress: {StatusCompleted, StatusCancelled},
}

func (s InterventionStatus) Valid() bool {
	for _, v := range AllInterventionStatuses {
		if v == s {
			return true
		}
	}
	return false
}

// AllowedNext lists the statuses reachable from s in one step
func (s InterventionStatus) AllowedNext() []InterventionStatus {
	next := interventionTransitions[s]
	out := make([]InterventionStatus, len(next))
	copy(out, next)
	return out
}

// CanTransitionTo reports whether s -> to is an edge of the state machine
func (s InterventionStatus) CanTransitionTo(to InterventionStatus) bool {
	for _, n := range interventionTransitions[s] {
		if n == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no transition leaves s
func (s InterventionStatus) IsTerminal() bool {
	return s.Valid() && len(interventionTransitions[s]) == 0
}

// IsOpen is true for statuses an advisor still has to act on
func (s InterventionStatus) IsOpen() bool {
	return s == StatusPending || s == StatusScheduled || s == StatusInProgress
}

// Priority of an intervention
type Priority string

const (
	PriorityLow      Priority = "Low"
	PriorityMedium   Priority = "Medium"
	PriorityHigh     Priority = "High"
	PriorityCritical Priority = "Critical"
)

func (p Priority) Valid() bool {
	return p.Rank() > 0
}

// Rank orders priorities Low < Medium < High < Critical
func (p Priority) Rank() int {
	switch p {
	case PriorityLow:
		return 1
	case PriorityMedium:
		return 2
	case PriorityHigh:
		return 3
	case PriorityCritical:
		return 4
	}
	return 0
}

// Method is how the meeting takes place
type Method string

const (
	MethodInPerson Method = "In-person"
	MethodVirtual  Method = "Virtual"
	MethodPhone    Method = "Phone"
	MethodEmail    Method = "Email"
)

func (m Method) Valid() bool {
	switch m {
	case MethodInPerson, MethodVirtual, MethodPhone, MethodEmail:
		return true
	}
	return false
}

// InterventionType is a reusable template carrying defaults
type InterventionType struct {
	ID                     int64    `json:"id" db:"intervention_type_id"`
	Name                   string   `json:"name" db:"name" example:"Academic Check-In"`
	Category               string   `json:"category" db:"category" example:"Academic"`
	Description            string   `json:"description" db:"description"`
	DefaultPriority        Priority `json:"defaultPriority" db:"default_priority" example:"Medium"`
	DefaultDurationMinutes *int     `json:"defaultDurationMinutes,omitempty" db:"default_duration_minutes"`
	IsActive               bool     `json:"isActive" db:"is_active"`
}

// Intervention is a discrete advising action for one student by one advisor
type Intervention struct {
	ID                 int64              `json:"id" db:"intervention_id"`
	StudentID          int64              `json:"studentId" db:"student_id"`
	AdvisorID          int64              `json:"advisorId" db:"advisor_id"`
	InterventionTypeID *int64             `json:"interventionTypeId,omitempty" db:"intervention_type_id"`
	Title              string             `json:"title" db:"title"`
	Description        string             `json:"description" db:"description"`
	Priority           Priority           `json:"priority" db:"priority"`
	Status             InterventionStatus `json:"status" db:"status"`
	Method             Method             `json:"method" db:"method"`
	Location           string             `json:"location,omitempty" db:"location"`

	ScheduledAt            *time.Time `json:"scheduledAt,omitempty" db:"scheduled_at"`
	PlannedDurationMinutes *int       `json:"plannedDurationMinutes,omitempty" db:"planned_duration_minutes"`
	CompletedAt            *time.Time `json:"completedAt,omitempty" db:"completed_at"`

	OutcomeAssessment string `json:"outcomeAssessment,omitempty" db:"outcome_assessment"`
	SuccessRating     *int   `json:"successRating,omitempty" db:"success_rating"`
	StudentResponse   string `json:"studentResponse,omitempty" db:"student_response"`
	DurationMinutes   *int   `json:"durationMinutes,omitempty" db:"duration_minutes"`

	FollowUpRequired bool       `json:"followUpRequired" db:"follow_up_required"`
	FollowUpDate     *time.Time `json:"followUpDate,omitempty" db:"follow_up_date"`
	// FollowUpOf points at the completed intervention this one follows up
	FollowUpOf *int64 `json:"followUpOf,omitempty" db:"follow_up_of"`

	// RemindedFor is the ScheduledAt the advisor reminder was sent for
	RemindedFor *time.Time `json:"remindedFor,omitempty" db:"reminded_for"`

	IsStudentRequest bool `json:"isStudentRequest" db:"is_student_request"`
	// Notes is an append-only log; entries are never rewritten
	Notes string `json:"notes,omitempty" db:"notes"`

	CreatedBy *int64    `json:"createdBy,omitempty" db:"created_by"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// ReminderDue reports whether the current schedule has not been reminded yet
func (i *Intervention) ReminderDue() bool {
	if i.ScheduledAt == nil {
		return false
	}
	return i.RemindedFor == nil || !i.RemindedFor.Equal(*i.ScheduledAt)
}

// Snapshot is the audit view of the mutable lifecycle fields
func (i *Intervention) Snapshot() map[string]any {
	s := map[string]any{
		"status":           i.Status,
		"priority":         i.Priority,
		"followUpRequired": i.FollowUpRequired,
	}
	if i.ScheduledAt != nil {
		s["scheduledAt"] = i.ScheduledAt.UTC()
	}
	if i.CompletedAt != nil {
		s["completedAt"] = i.CompletedAt.UTC()
	}
	if i.SuccessRating != nil {
		s["successRating"] = *i.SuccessRating
	}
	if i.OutcomeAssessment != "" {
		s["outcomeAssessment"] = i.OutcomeAssessment
	}
	if i.FollowUpDate != nil {
		s["followUpDate"] = i.FollowUpDate.UTC()
	}
	if i.FollowUpOf != nil {
		s["followUpOf"] = *i.FollowUpOf
	}
	return s
}

// InterventionStats aggregates intervention counts for reporting
type InterventionStats struct {
	Total              int64                        `json:"total"`
	ByStatus           map[InterventionStatus]int64 `json:"byStatus"`
	UniqueStudents     int64                        `json:"uniqueStudents"`
	AvgSuccessRating   *float64                     `json:"avgSuccessRating,omitempty"`
	AvgDurationMinutes *float64                     `json:"avgDurationMinutes,omitempty"`
	// CompletionRate is completed / (total - pending), 0 when nothing was actionable
	CompletionRate float64 `json:"completionRate"`
	// ByType is keyed by template name; interventions without one count as "Custom"
	ByType     map[string]int64   `json:"byType"`
	ByPriority map[Priority]int64 `json:"byPriority"`
	// Monthly counts interventions by creation month, oldest first
	Monthly []MonthlyCount `json:"monthly"`
}

// CustomInterventionType labels interventions created without a template
const CustomInterventionType = "Custom"

// MonthlyCount is one point of the intervention trend
type MonthlyCount struct {
	Month string `json:"month" example:"2024-10"`
	Count int64  `json:"count"`
}

// NewInterventionStats returns empty stats with every breakdown initialised
func NewInterventionStats() *InterventionStats {
	return &InterventionStats{
		ByStatus:   map[InterventionStatus]int64{},
		ByType:     map[string]int64{},
		ByPriority: map[Priority]int64{},
		Monthly:    []MonthlyCount{},
	}
}
