// Package memory implements the repositories on process memory. It backs the
// "memory" store driver and the test suites.
package memory

import (
	"slices"

	"github.com/google/uuid"

	"github.com/yigit/classmarket/internal/app/repositories"
)

// NewRepositories initializes all in-memory repositories
func NewRepositories() *repositories.Repositories {
	return &repositories.Repositories{
		UserRepository:       NewUserRepository(),
		ClassRepository:      NewClassRepository(),
		CartRepository:       NewCartRepository(),
		PaymentRepository:    NewPaymentRepository(),
		EnrollmentRepository: NewEnrollmentRepository(),
		InstructorRepository: NewInstructorRepository(),
		ReviewRepository:     NewReviewRepository(),
	}
}

func newID() string {
	return uuid.NewString()
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	return slices.Clone(s)
}
