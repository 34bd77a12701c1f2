package memory

import (
	"context"
	"sync"

	"github.com/yigit/classmarket/internal/app/models"
)

// InstructorRepository holds instructor profiles loaded at startup
type InstructorRepository struct {
	mu          sync.RWMutex
	instructors []*models.Instructor
}

// NewInstructorRepository creates an InstructorRepository seeded with instructors
func NewInstructorRepository(instructors ...*models.Instructor) *InstructorRepository {
	return &InstructorRepository{instructors: instructors}
}

func (r *InstructorRepository) List(ctx context.Context) ([]*models.Instructor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*models.Instructor, 0, len(r.instructors))
	for _, in := range r.instructors {
		clone := *in
		clone.Classes = cloneStrings(in.Classes)
		out = append(out, &clone)
	}
	return out, nil
}

// Add appends an instructor profile
func (r *InstructorRepository) Add(in *models.Instructor) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if in.ID == "" {
		in.ID = newID()
	}
	r.instructors = append(r.instructors, in)
}

// ReviewRepository holds reviews loaded at startup
type ReviewRepository struct {
	mu      sync.RWMutex
	reviews []*models.Review
}

// NewReviewRepository creates a ReviewRepository seeded with reviews
func NewReviewRepository(reviews ...*models.Review) *ReviewRepository {
	return &ReviewRepository{reviews: reviews}
}

func (r *ReviewRepository) List(ctx context.Context) ([]*models.Review, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*models.Review, 0, len(r.reviews))
	for _, rv := range r.reviews {
		clone := *rv
		out = append(out, &clone)
	}
	return out, nil
}

// Add appends a review
func (r *ReviewRepository) Add(rv *models.Review) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if rv.ID == "" {
		rv.ID = newID()
	}
	r.reviews = append(r.reviews, rv)
}
