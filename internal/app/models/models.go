package models

import "time"

// RoleType defines the acting user's role
type RoleType string

const (
	RoleStudent RoleType = "student"
	RoleAdvisor RoleType = "advisor"
	RoleAdmin   RoleType = "admin"
	// RoleSystem is used by batch jobs such as the risk scorer
	RoleSystem RoleType = "system"
)

// Valid reports whether r is a known role
func (r RoleType) Valid() bool {
	switch r {
	case RoleStudent, RoleAdvisor, RoleAdmin, RoleSystem:
		return true
	}
	return false
}

// Term defines an academic term referenced by risk assessments
type Term struct {
	ID        string    `json:"id" db:"term_id" example:"2024F"`
	Name      string    `json:"name" db:"name" example:"Fall 2024"`
	StartDate time.Time `json:"startDate" db:"start_date"`
	EndDate   time.Time `json:"endDate" db:"end_date"`
}

// EntityType names the tables that notifications and audit entries point at
type EntityType string

const (
	EntityStudent        EntityType = "student"
	EntityUser           EntityType = "user"
	EntityRiskAssessment EntityType = "risk_assessment"
	EntityIntervention   EntityType = "intervention"
	EntityNotification   EntityType = "notification"
)
