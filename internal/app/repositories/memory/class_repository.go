package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/yigit/classmarket/internal/app/models"
	"github.com/yigit/classmarket/internal/pkg/apperrors"
)

// ClassRepository keeps classes and their seat reservations. A single mutex
// guards both, so every seat change is a compare-and-update under the lock.
type ClassRepository struct {
	mu           sync.RWMutex
	classes      map[string]*models.Class
	reservations map[string]map[string]struct{} // class id -> reservation keys
}

// NewClassRepository creates an empty ClassRepository
func NewClassRepository() *ClassRepository {
	return &ClassRepository{
		classes:      make(map[string]*models.Class),
		reservations: make(map[string]map[string]struct{}),
	}
}

func (r *ClassRepository) List(ctx context.Context) ([]*models.Class, error) {
	return r.filter(func(*models.Class) bool { return true }), nil
}

func (r *ClassRepository) ListByStatus(ctx context.Context, status models.ClassStatus) ([]*models.Class, error) {
	return r.filter(func(c *models.Class) bool { return c.Status == status }), nil
}

func (r *ClassRepository) filter(keep func(*models.Class) bool) []*models.Class {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*models.Class, 0, len(r.classes))
	for _, c := range r.classes {
		if keep(c) {
			out = append(out, cloneClass(c))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (r *ClassRepository) FindByID(ctx context.Context, id string) (*models.Class, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.classes[id]
	if !ok {
		return nil, apperrors.ErrClassNotFound
	}
	return cloneClass(c), nil
}

func (r *ClassRepository) Create(ctx context.Context, class *models.Class) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	class.ID = newID()
	class.CreatedAt, class.UpdatedAt = now, now
	r.classes[class.ID] = cloneClass(class)
	return nil
}

func (r *ClassRepository) UpdateFields(ctx context.Context, id string, fields models.ClassFieldsUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.classes[id]
	if !ok {
		return apperrors.ErrClassNotFound
	}
	c.Price = fields.Price
	c.SpotsAvailable = fields.SpotsAvailable
	c.StudentsEnrolled = fields.StudentsEnrolled
	c.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *ClassRepository) SetStatus(ctx context.Context, id string, status models.ClassStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.classes[id]
	if !ok {
		return apperrors.ErrClassNotFound
	}
	c.Status = status
	c.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *ClassRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.classes[id]; !ok {
		return apperrors.ErrClassNotFound
	}
	delete(r.classes, id)
	delete(r.reservations, id)
	return nil
}

func (r *ClassRepository) ReserveSeat(ctx context.Context, classID, key string, strict bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.classes[classID]
	if !ok {
		return apperrors.ErrClassNotFound
	}
	held := r.reservations[classID]
	if _, dup := held[key]; dup {
		return nil
	}
	if strict && c.SpotsAvailable <= 0 {
		return apperrors.ErrSeatsExhausted
	}

	if held == nil {
		held = make(map[string]struct{})
		r.reservations[classID] = held
	}
	held[key] = struct{}{}
	c.SpotsAvailable--
	c.StudentsEnrolled++
	c.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *ClassRepository) ReleaseSeat(ctx context.Context, classID, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.classes[classID]
	if !ok {
		return apperrors.ErrClassNotFound
	}
	held := r.reservations[classID]
	if _, ok := held[key]; !ok {
		return nil
	}

	delete(held, key)
	c.SpotsAvailable++
	c.StudentsEnrolled--
	c.UpdatedAt = time.Now().UTC()
	return nil
}

func cloneClass(c *models.Class) *models.Class {
	if c == nil {
		return nil
	}
	clone := *c
	return &clone
}
