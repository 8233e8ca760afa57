package dto

// CreateUserRequest registers an advisor, admin or student login
type CreateUserRequest struct {
	Email     string `json:"email" binding:"required,email" example:"advisor@university.edu"`
	FirstName string `json:"firstName" binding:"required,max=100" example:"Jane"`
	LastName  string `json:"lastName" binding:"required,max=100" example:"Doe"`
	Role      string `json:"role" binding:"required,oneof=student advisor admin" example:"advisor"`
}
