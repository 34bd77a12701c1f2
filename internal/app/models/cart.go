package models

import "time"

// CartItem is a pending class selection owned by one user
type CartItem struct {
	ID              string    `json:"_id"`
	ClassID         string    `json:"classId"`
	Email           string    `json:"email"`
	Name            string    `json:"name"`
	ImageURL        string    `json:"image,omitempty"`
	Price           float64   `json:"price"`
	InstructorEmail string    `json:"instructorEmail,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
}
