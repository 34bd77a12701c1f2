package models

import (
	"time"
)

// RoleType is the role stored on a user record
type RoleType string

// Role values. RoleNone is the zero value for users without any role.
const (
	RoleNone       RoleType = ""
	RoleStudent    RoleType = "student"
	RoleInstructor RoleType = "instructor"
	RoleAdmin      RoleType = "admin"
)

// Valid reports whether r is one of the known roles
func (r RoleType) Valid() bool {
	switch r {
	case RoleNone, RoleStudent, RoleInstructor, RoleAdmin:
		return true
	}
	return false
}

// User defines the user model based on the 'users' collection
type User struct {
	ID               string    `json:"_id" example:"6f1c2d4e-8a3b-4c5d-9e6f-7a8b9c0d1e2f"`
	Name             string    `json:"name" example:"Jane Doe"`
	Email            string    `json:"email" example:"jane@example.com"`
	PhotoURL         string    `json:"photo,omitempty"`
	Role             RoleType  `json:"role,omitempty" example:"student"`
	StudentsEnrolled int       `json:"studentsEnrolled"` // instructors only: total enrollments across their classes
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}
