package models

import "time"

// RiskCategory is the ordinal bucket derived from an overall score
type RiskCategory string

const (
	RiskLow      RiskCategory = "Low"
	RiskMedium   RiskCategory = "Medium"
	RiskHigh     RiskCategory = "High"
	RiskCritical RiskCategory = "Critical"
)

// Rank orders categories Low < Medium < High < Critical. Unknown values rank 0.
func (c RiskCategory) Rank() int {
	switch c {
	case RiskLow:
		return 1
	case RiskMedium:
		return 2
	case RiskHigh:
		return 3
	case RiskCritical:
		return 4
	}
	return 0
}

// RiskThresholds are the inclusive lower bounds for each non-Low category
type RiskThresholds struct {
	Critical float64
	High     float64
	Medium   float64
}

// DefaultRiskThresholds are used when nothing is configured
var DefaultRiskThresholds = RiskThresholds{Critical: 0.70, High: 0.50, Medium: 0.30}

// Categorize maps a score in [0,1] onto a category
func (t RiskThresholds) Categorize(score float64) RiskCategory {
	switch {
	case score >= t.Critical:
		return RiskCritical
	case score >= t.High:
		return RiskHigh
	case score >= t.Medium:
		return RiskMedium
	default:
		return RiskLow
	}
}

// RiskScores are the inputs produced by the external scoring job
type RiskScores struct {
	Overall    float64 `json:"overall" example:"0.82"`
	Academic   float64 `json:"academic" example:"0.9"`
	Engagement float64 `json:"engagement" example:"0.7"`
	Financial  float64 `json:"financial" example:"0.6"`
	Wellness   float64 `json:"wellness" example:"0.5"`
}

// RiskAssessment is one row in the per (student, term) ledger
type RiskAssessment struct {
	ID           int64        `json:"id" db:"assessment_id"`
	StudentID    int64        `json:"studentId" db:"student_id"`
	TermID       string       `json:"termId" db:"term_id"`
	Scores       RiskScores   `json:"scores"`
	Category     RiskCategory `json:"category" db:"risk_category"`
	RiskPathway  string       `json:"riskPathway,omitempty" db:"risk_pathway"`
	ModelVersion string       `json:"modelVersion" db:"model_version"`
	Confidence   *float64     `json:"confidence,omitempty" db:"confidence"`
	IsCurrent    bool         `json:"isCurrent" db:"is_current"`
	CalculatedAt time.Time    `json:"calculatedAt" db:"calculated_at"`
}

// Summary is the snapshot written to audit entries
func (a *RiskAssessment) Summary() map[string]any {
	return map[string]any{
		"assessmentId": a.ID,
		"termId":       a.TermID,
		"overall":      a.Scores.Overall,
		"category":     a.Category,
		"modelVersion": a.ModelVersion,
		"isCurrent":    a.IsCurrent,
	}
}
