package models

import "time"

// EnrollmentStatus is how students are soft-deactivated; they are never deleted
type EnrollmentStatus string

const (
	EnrollmentActive    EnrollmentStatus = "Active"
	EnrollmentInactive  EnrollmentStatus = "Inactive"
	EnrollmentGraduated EnrollmentStatus = "Graduated"
	EnrollmentWithdrawn EnrollmentStatus = "Withdrawn"
)

func (s EnrollmentStatus) Valid() bool {
	switch s {
	case EnrollmentActive, EnrollmentInactive, EnrollmentGraduated, EnrollmentWithdrawn:
		return true
	}
	return false
}

// Student defines the student model based on the 'students' table.
// It is the root aggregate for assessment and intervention history.
type Student struct {
	ID               int64            `json:"id" db:"student_id" example:"42"`
	BannerID         string           `json:"bannerId" db:"banner_id" example:"B00012345"`
	FirstName        string           `json:"firstName" db:"first_name"`
	LastName         string           `json:"lastName" db:"last_name"`
	Email            string           `json:"email" db:"email"`
	Phone            string           `json:"phone,omitempty" db:"phone"`
	Classification   string           `json:"classification,omitempty" db:"classification" example:"Sophomore"`
	DeclaredMajor    string           `json:"declaredMajor,omitempty" db:"declared_major"`
	EnrollmentStatus EnrollmentStatus `json:"enrollmentStatus" db:"enrollment_status" example:"Active"`

	// Equity reporting flags
	FirstGeneration bool `json:"firstGeneration" db:"first_generation"`
	International   bool `json:"international" db:"international"`
	Veteran         bool `json:"veteran" db:"veteran"`
	Disability      bool `json:"disability" db:"disability"`

	PrimaryAdvisorID *int64 `json:"primaryAdvisorId,omitempty" db:"primary_advisor_id"`
	// UserID links the student's own login, when one exists
	UserID *int64 `json:"userId,omitempty" db:"user_id"`

	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// FullName returns "First Last"
func (s *Student) FullName() string {
	return s.FirstName + " " + s.LastName
}
