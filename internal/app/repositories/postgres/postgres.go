// Package postgres implements the repositories on PostgreSQL through pgx.
package postgres

import (
	"errors"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/yigit/classmarket/internal/app/repositories"
	"github.com/yigit/classmarket/internal/pkg/dberrors"
)

// NewRepositories initializes all PostgreSQL repositories on one pool
func NewRepositories(db *pgxpool.Pool) *repositories.Repositories {
	return &repositories.Repositories{
		UserRepository:       NewUserRepository(db),
		ClassRepository:      NewClassRepository(db),
		CartRepository:       NewCartRepository(db),
		PaymentRepository:    NewPaymentRepository(db),
		EnrollmentRepository: NewEnrollmentRepository(db),
		InstructorRepository: NewInstructorRepository(db),
		ReviewRepository:     NewReviewRepository(db),
	}
}

// psql builds statements with $n placeholders
var psql = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

func newID() string {
	return uuid.NewString()
}

// translate maps pgx.ErrNoRows to notFound and wraps anything else as an upstream failure
func translate(op string, err error, notFound error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return notFound
	}
	return dberrors.Upstream(op, err)
}
