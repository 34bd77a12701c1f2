package models

import "time"

// Instructor is a public instructor profile
type Instructor struct {
	ID           string   `json:"_id"`
	Name         string   `json:"name"`
	Email        string   `json:"email"`
	ImageURL     string   `json:"image,omitempty"`
	ClassesTaken int      `json:"classesTaken"`
	Classes      []string `json:"classes,omitempty"`
}

// Review is a student testimonial shown on the landing page
type Review struct {
	ID        string    `json:"_id"`
	Name      string    `json:"name"`
	Email     string    `json:"email,omitempty"`
	Rating    float64   `json:"rating"`
	Comment   string    `json:"comment"`
	CreatedAt time.Time `json:"createdAt"`
}
