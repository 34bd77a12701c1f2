package models

import "time"

// ClassStatus is the approval state of a class listing
type ClassStatus string

const (
	ClassStatusPending  ClassStatus = "pending"
	ClassStatusApproved ClassStatus = "approved"
	ClassStatusDenied   ClassStatus = "deny"
)

// Class defines a listed class and its seat ledger.
// SpotsAvailable + StudentsEnrolled is the class capacity.
type Class struct {
	ID               string      `json:"_id"`
	Name             string      `json:"name" example:"Watercolor Basics"`
	ImageURL         string      `json:"image,omitempty"`
	InstructorName   string      `json:"instructorName"`
	InstructorEmail  string      `json:"instructorEmail"`
	Price            float64     `json:"price" example:"49.99"`
	SpotsAvailable   int         `json:"spotsAvailable" example:"20"`
	StudentsEnrolled int         `json:"studentsEnrolled" example:"0"`
	Status           ClassStatus `json:"status" example:"pending"`
	CreatedAt        time.Time   `json:"createdAt"`
	UpdatedAt        time.Time   `json:"updatedAt"`
}

// ClassFieldsUpdate carries the fields an instructor may edit after creation
type ClassFieldsUpdate struct {
	Price            float64
	SpotsAvailable   int
	StudentsEnrolled int
}
