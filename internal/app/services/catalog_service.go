package services

import (
	"context"
	"fmt"

	"github.com/yigit/classmarket/internal/app/models"
	"github.com/yigit/classmarket/internal/app/repositories"
)

// CatalogService serves the read-only landing page data
type CatalogService interface {
	ListInstructors(ctx context.Context) ([]*models.Instructor, error)
	ListReviews(ctx context.Context) ([]*models.Review, error)
}

type catalogServiceImpl struct {
	instructorRepo repositories.InstructorRepository
	reviewRepo     repositories.ReviewRepository
}

// NewCatalogService creates a new CatalogService
func NewCatalogService(instructorRepo repositories.InstructorRepository, reviewRepo repositories.ReviewRepository) CatalogService {
	return &catalogServiceImpl{instructorRepo: instructorRepo, reviewRepo: reviewRepo}
}

func (s *catalogServiceImpl) ListInstructors(ctx context.Context) ([]*models.Instructor, error) {
	instructors, err := s.instructorRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("error listing instructors: %w", err)
	}
	return instructors, nil
}

func (s *catalogServiceImpl) ListReviews(ctx context.Context) ([]*models.Review, error) {
	reviews, err := s.reviewRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("error listing reviews: %w", err)
	}
	return reviews, nil
}
