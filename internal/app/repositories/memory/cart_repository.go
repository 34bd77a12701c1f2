package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/yigit/classmarket/internal/app/models"
	"github.com/yigit/classmarket/internal/pkg/apperrors"
)

// CartRepository keeps cart items keyed by ID
type CartRepository struct {
	mu    sync.RWMutex
	items map[string]*models.CartItem
}

// NewCartRepository creates an empty CartRepository
func NewCartRepository() *CartRepository {
	return &CartRepository{items: make(map[string]*models.CartItem)}
}

func (r *CartRepository) ListByOwner(ctx context.Context, email string) ([]*models.CartItem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*models.CartItem, 0)
	for _, item := range r.items {
		if item.Email == email {
			clone := *item
			out = append(out, &clone)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *CartRepository) FindByID(ctx context.Context, id string) (*models.CartItem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	item, ok := r.items[id]
	if !ok {
		return nil, apperrors.ErrCartItemNotFound
	}
	clone := *item
	return &clone, nil
}

func (r *CartRepository) Create(ctx context.Context, item *models.CartItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	item.ID = newID()
	item.CreatedAt = time.Now().UTC()
	clone := *item
	r.items[item.ID] = &clone
	return nil
}

func (r *CartRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.items[id]; !ok {
		return apperrors.ErrCartItemNotFound
	}
	delete(r.items, id)
	return nil
}

func (r *CartRepository) DeleteMany(ctx context.Context, email string, ids []string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for _, id := range ids {
		if item, ok := r.items[id]; ok && item.Email == email {
			delete(r.items, id)
			n++
		}
	}
	return n, nil
}
