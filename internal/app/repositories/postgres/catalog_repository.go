package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/yigit/classmarket/internal/app/models"
	"github.com/yigit/classmarket/internal/pkg/dberrors"
)

// InstructorRepository reads instructor profiles
type InstructorRepository struct {
	db *pgxpool.Pool
}

// NewInstructorRepository creates a new InstructorRepository
func NewInstructorRepository(db *pgxpool.Pool) *InstructorRepository {
	return &InstructorRepository{db: db}
}

// List returns all instructors, most booked first
func (r *InstructorRepository) List(ctx context.Context) ([]*models.Instructor, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, name, email, image_url, classes_taken, classes
		FROM instructors ORDER BY classes_taken DESC, name ASC`)
	if err != nil {
		return nil, dberrors.Upstream("list instructors", err)
	}
	defer rows.Close()

	out := []*models.Instructor{}
	for rows.Next() {
		in := &models.Instructor{}
		if err := rows.Scan(&in.ID, &in.Name, &in.Email, &in.ImageURL, &in.ClassesTaken, &in.Classes); err != nil {
			return nil, dberrors.Upstream("scan instructor", err)
		}
		out = append(out, in)
	}
	return out, dberrors.Upstream("iterate instructors", rows.Err())
}

// ReviewRepository reads reviews
type ReviewRepository struct {
	db *pgxpool.Pool
}

// NewReviewRepository creates a new ReviewRepository
func NewReviewRepository(db *pgxpool.Pool) *ReviewRepository {
	return &ReviewRepository{db: db}
}

// List returns all reviews, newest first
func (r *ReviewRepository) List(ctx context.Context) ([]*models.Review, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, name, email, rating, comment, created_at FROM reviews ORDER BY created_at DESC`)
	if err != nil {
		return nil, dberrors.Upstream("list reviews", err)
	}
	defer rows.Close()

	out := []*models.Review{}
	for rows.Next() {
		rv := &models.Review{}
		if err := rows.Scan(&rv.ID, &rv.Name, &rv.Email, &rv.Rating, &rv.Comment, &rv.CreatedAt); err != nil {
			return nil, dberrors.Upstream("scan review", err)
		}
		out = append(out, rv)
	}
	return out, dberrors.Upstream("iterate reviews", rows.Err())
}
