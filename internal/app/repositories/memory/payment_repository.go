package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/yigit/classmarket/internal/app/models"
	"github.com/yigit/classmarket/internal/pkg/apperrors"
)

// PaymentRepository keeps payments with a unique idempotency index
type PaymentRepository struct {
	mu            sync.RWMutex
	payments      map[string]*models.Payment
	byIdempotency map[string]string
}

// NewPaymentRepository creates an empty PaymentRepository
func NewPaymentRepository() *PaymentRepository {
	return &PaymentRepository{
		payments:      make(map[string]*models.Payment),
		byIdempotency: make(map[string]string),
	}
}

func (r *PaymentRepository) Create(ctx context.Context, payment *models.Payment) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, dup := r.byIdempotency[payment.IdempotencyKey]; dup {
		return apperrors.ErrResourceAlreadyExists
	}
	payment.ID = newID()
	r.payments[payment.ID] = clonePayment(payment)
	r.byIdempotency[payment.IdempotencyKey] = payment.ID
	return nil
}

func (r *PaymentRepository) FindByIdempotencyKey(ctx context.Context, key string) (*models.Payment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byIdempotency[key]
	if !ok {
		return nil, apperrors.ErrResourceNotFound
	}
	return clonePayment(r.payments[id]), nil
}

func (r *PaymentRepository) ListByPayer(ctx context.Context, email string) ([]*models.Payment, error) {
	return r.filter(func(p *models.Payment) bool { return p.Email == email }), nil
}

func (r *PaymentRepository) List(ctx context.Context) ([]*models.Payment, error) {
	return r.filter(func(*models.Payment) bool { return true }), nil
}

func (r *PaymentRepository) filter(keep func(*models.Payment) bool) []*models.Payment {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*models.Payment, 0)
	for _, p := range r.payments {
		if keep(p) {
			out = append(out, clonePayment(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (r *PaymentRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.payments[id]
	if !ok {
		return apperrors.ErrResourceNotFound
	}
	delete(r.byIdempotency, p.IdempotencyKey)
	delete(r.payments, id)
	return nil
}

func clonePayment(p *models.Payment) *models.Payment {
	if p == nil {
		return nil
	}
	clone := *p
	clone.ClassIDs = cloneStrings(p.ClassIDs)
	clone.CartItemIDs = cloneStrings(p.CartItemIDs)
	clone.ClassNames = cloneStrings(p.ClassNames)
	return &clone
}
