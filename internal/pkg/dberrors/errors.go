package dberrors

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/yigit/classmarket/internal/pkg/apperrors"
)

// uniqueViolation is the PostgreSQL SQLSTATE for unique_violation.
const uniqueViolation = "23505"

// IsDuplicateConstraintError checks if the error is a PostgreSQL unique violation error
// for a specific constraint.
func IsDuplicateConstraintError(err error, constraintName string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation && pgErr.ConstraintName == constraintName
}

// IsDuplicateKeyError reports a unique violation from either supported store.
func IsDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return true
	}
	return mongo.IsDuplicateKeyError(err)
}

// Upstream wraps a driver error as an upstream failure. Context cancellation and
// deadline errors stay visible in the chain so callers can tell a timeout apart.
func Upstream(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return apperrors.NewUpstreamError(fmt.Sprintf("%s: store call timed out: %v", op, err), err)
	}
	return apperrors.NewUpstreamError(fmt.Sprintf("%s: %v", op, err), err)
}
