package memory

import (
	"context"
	"sync"
	"time"

	"github.com/yigit/classmarket/internal/app/models"
	"github.com/yigit/classmarket/internal/pkg/apperrors"
)

// EnrollmentRepository keeps enrollment records keyed by idempotency key
type EnrollmentRepository struct {
	mu      sync.Mutex
	records map[string]*models.EnrollmentRecord
}

// NewEnrollmentRepository creates an empty EnrollmentRepository
func NewEnrollmentRepository() *EnrollmentRepository {
	return &EnrollmentRepository{records: make(map[string]*models.EnrollmentRecord)}
}

func (r *EnrollmentRepository) Reserve(ctx context.Context, record *models.EnrollmentRecord) (*models.EnrollmentRecord, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.records[record.Key]; ok {
		return cloneRecord(existing), false, nil
	}
	r.records[record.Key] = cloneRecord(record)
	return cloneRecord(record), true, nil
}

func (r *EnrollmentRepository) Acquire(ctx context.Context, key string, fence int64, expected, lockedUntil time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[key]
	if !ok {
		return false, apperrors.ErrResourceNotFound
	}
	if rec.Fence != fence || !rec.LockedUntil.Equal(expected) {
		return false, nil
	}
	rec.Fence++
	rec.LockedUntil = lockedUntil
	rec.UpdatedAt = time.Now().UTC()
	return true, nil
}

func (r *EnrollmentRepository) Save(ctx context.Context, record *models.EnrollmentRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[record.Key]
	if !ok {
		return apperrors.ErrResourceNotFound
	}
	if rec.Fence != record.Fence {
		return apperrors.NewLeaseLostError()
	}
	rec.State = record.State
	rec.PaymentID = record.PaymentID
	rec.InstructorsCredited = record.InstructorsCredited
	rec.FailureReason = record.FailureReason
	rec.LockedUntil = record.LockedUntil
	rec.UpdatedAt = record.UpdatedAt
	rec.ExpiresAt = record.ExpiresAt
	if record.Result != nil {
		result := *record.Result
		rec.Result = &result
	} else {
		rec.Result = nil
	}
	return nil
}

func (r *EnrollmentRepository) FindByKey(ctx context.Context, key string) (*models.EnrollmentRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[key]
	if !ok {
		return nil, apperrors.ErrResourceNotFound
	}
	return cloneRecord(rec), nil
}

func (r *EnrollmentRepository) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for key, rec := range r.records {
		if rec.Terminal() && rec.ExpiresAt.Before(cutoff) {
			delete(r.records, key)
			n++
		}
	}
	return n, nil
}

func cloneRecord(rec *models.EnrollmentRecord) *models.EnrollmentRecord {
	if rec == nil {
		return nil
	}
	clone := *rec
	clone.ClassIDs = cloneStrings(rec.ClassIDs)
	clone.CartItemIDs = cloneStrings(rec.CartItemIDs)
	if rec.Result != nil {
		result := *rec.Result
		clone.Result = &result
	}
	return &clone
}
