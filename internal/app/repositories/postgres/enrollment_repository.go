package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/yigit/classmarket/internal/app/models"
	"github.com/yigit/classmarket/internal/pkg/apperrors"
	"github.com/yigit/classmarket/internal/pkg/dberrors"
)

const enrollmentColumns = `key, email, amount, transaction_id, class_ids, cart_item_ids, state, payment_id,
	instructors_credited, result, failure_reason, locked_until, fence, created_at, updated_at, expires_at`

// EnrollmentRepository handles the enrollment idempotency ledger
type EnrollmentRepository struct {
	db *pgxpool.Pool
}

// NewEnrollmentRepository creates a new EnrollmentRepository
func NewEnrollmentRepository(db *pgxpool.Pool) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

func scanEnrollment(row pgx.Row) (*models.EnrollmentRecord, error) {
	rec := &models.EnrollmentRecord{}
	var state string
	err := row.Scan(&rec.Key, &rec.Email, &rec.Amount, &rec.TransactionID, &rec.ClassIDs, &rec.CartItemIDs, &state,
		&rec.PaymentID, &rec.InstructorsCredited, &rec.Result, &rec.FailureReason, &rec.LockedUntil,
		&rec.Fence, &rec.CreatedAt, &rec.UpdatedAt, &rec.ExpiresAt)
	if err != nil {
		return nil, err
	}
	rec.State = models.EnrollmentState(state)
	return rec, nil
}

// Reserve inserts the record or returns the one already stored under its key
func (r *EnrollmentRepository) Reserve(ctx context.Context, record *models.EnrollmentRecord) (*models.EnrollmentRecord, bool, error) {
	tag, err := r.db.Exec(ctx, `
		INSERT INTO enrollments (key, email, amount, transaction_id, class_ids, cart_item_ids, state, payment_id,
			instructors_credited, result, failure_reason, locked_until, fence, created_at, updated_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (key) DO NOTHING`,
		record.Key, record.Email, record.Amount, record.TransactionID, nonNil(record.ClassIDs), nonNil(record.CartItemIDs),
		string(record.State), record.PaymentID, record.InstructorsCredited, record.Result, record.FailureReason,
		record.LockedUntil, record.Fence, record.CreatedAt, record.UpdatedAt, record.ExpiresAt)
	if err != nil {
		return nil, false, dberrors.Upstream("reserve enrollment", err)
	}
	if tag.RowsAffected() == 1 {
		return record, true, nil
	}

	existing, err := r.FindByKey(ctx, record.Key)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

// Acquire moves the lease and bumps the fence only if nobody touched them since they were read
func (r *EnrollmentRepository) Acquire(ctx context.Context, key string, fence int64, expected, lockedUntil time.Time) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE enrollments SET locked_until = $4, fence = fence + 1, updated_at = NOW()
		WHERE key = $1 AND fence = $2 AND locked_until = $3`, key, fence, expected, lockedUntil)
	if err != nil {
		return false, dberrors.Upstream("acquire enrollment", err)
	}
	return tag.RowsAffected() == 1, nil
}

// Save writes the progress fields while the caller's fence is still current
func (r *EnrollmentRepository) Save(ctx context.Context, record *models.EnrollmentRecord) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE enrollments
		SET state = $3, payment_id = $4, instructors_credited = $5, result = $6, failure_reason = $7,
		    locked_until = $8, updated_at = $9, expires_at = $10
		WHERE key = $1 AND fence = $2`,
		record.Key, record.Fence, string(record.State), record.PaymentID, record.InstructorsCredited, record.Result,
		record.FailureReason, record.LockedUntil, record.UpdatedAt, record.ExpiresAt)
	if err != nil {
		return dberrors.Upstream("save enrollment", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	if _, err := r.FindByKey(ctx, record.Key); err != nil {
		return err
	}
	return apperrors.NewLeaseLostError()
}

// FindByKey retrieves a record by idempotency key
func (r *EnrollmentRepository) FindByKey(ctx context.Context, key string) (*models.EnrollmentRecord, error) {
	rec, err := scanEnrollment(r.db.QueryRow(ctx, `SELECT `+enrollmentColumns+` FROM enrollments WHERE key = $1`, key))
	if err != nil {
		return nil, translate("find enrollment", err, apperrors.ErrResourceNotFound)
	}
	return rec, nil
}

// DeleteExpired purges finished records past their expiry
func (r *EnrollmentRepository) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, `
		DELETE FROM enrollments WHERE state IN ($1, $2) AND expires_at < $3`,
		string(models.EnrollmentCompleted), string(models.EnrollmentFailed), cutoff)
	if err != nil {
		return 0, dberrors.Upstream("purge enrollments", err)
	}
	return tag.RowsAffected(), nil
}
