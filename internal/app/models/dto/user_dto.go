package dto

import "github.com/yigit/classmarket/internal/app/models"

// CreateUserRequest registers the caller on first sign-in
type CreateUserRequest struct {
	Name     string `json:"name" binding:"max=120" example:"Jane Doe"`
	Email    string `json:"email" binding:"required,email" example:"jane@example.com"`
	PhotoURL string `json:"photo" binding:"omitempty,url"`
}

// CreateUserResponse returns the stored user and whether it already existed
type CreateUserResponse struct {
	Message string       `json:"message,omitempty" example:"user already existing"`
	User    *models.User `json:"user"`
}

// RoleCheckResponse answers a role query for one email
type RoleCheckResponse map[string]bool
