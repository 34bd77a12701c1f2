package services

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/yigit/classmarket/internal/app/models"
	"github.com/yigit/classmarket/internal/app/models/dto"
	"github.com/yigit/classmarket/internal/app/repositories"
	"github.com/yigit/classmarket/internal/pkg/apperrors"
)

// CartService manages owner-scoped cart items
type CartService interface {
	ListForOwner(ctx context.Context, callerEmail, email string) ([]*models.CartItem, error)
	Add(ctx context.Context, callerEmail string, req *dto.AddCartItemRequest) (*models.CartItem, error)
	Remove(ctx context.Context, callerEmail, id string) error
	RemoveMany(ctx context.Context, email string, ids []string) (int64, error)
}

type cartServiceImpl struct {
	cartRepo     repositories.CartRepository
	storeTimeout time.Duration
	logger       zerolog.Logger
}

// NewCartService creates a new CartService
func NewCartService(cartRepo repositories.CartRepository, storeTimeout time.Duration, logger zerolog.Logger) CartService {
	return &cartServiceImpl{
		cartRepo:     cartRepo,
		storeTimeout: storeTimeout,
		logger:       logger,
	}
}

// ListForOwner returns the cart of email; only its owner may read it
func (s *cartServiceImpl) ListForOwner(ctx context.Context, callerEmail, email string) ([]*models.CartItem, error) {
	email = normalizeEmail(email)
	if email == "" {
		return []*models.CartItem{}, nil
	}
	if email != normalizeEmail(callerEmail) {
		return nil, apperrors.NewForbiddenError("forbidden access")
	}

	items, err := s.cartRepo.ListByOwner(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("error listing cart: %w", err)
	}
	return items, nil
}

// Add puts a class into the caller's cart. The same class may be added twice.
func (s *cartServiceImpl) Add(ctx context.Context, callerEmail string, req *dto.AddCartItemRequest) (*models.CartItem, error) {
	owner := normalizeEmail(callerEmail)
	if req.Email != "" && normalizeEmail(req.Email) != owner {
		return nil, apperrors.NewForbiddenError("forbidden access")
	}

	item := &models.CartItem{
		ClassID:         req.ClassID,
		Email:           owner,
		Name:            req.Name,
		ImageURL:        req.ImageURL,
		Price:           req.Price,
		InstructorEmail: normalizeEmail(req.InstructorEmail),
	}
	if err := s.cartRepo.Create(ctx, item); err != nil {
		return nil, fmt.Errorf("error adding cart item: %w", err)
	}
	return item, nil
}

// Remove deletes one of the caller's items
func (s *cartServiceImpl) Remove(ctx context.Context, callerEmail, id string) error {
	item, err := s.cartRepo.FindByID(ctx, id)
	if err != nil {
		return fmt.Errorf("error finding cart item: %w", err)
	}
	if item.Email != normalizeEmail(callerEmail) {
		return apperrors.NewForbiddenError("forbidden access")
	}

	if err := s.cartRepo.Delete(ctx, id); err != nil {
		return fmt.Errorf("error removing cart item: %w", err)
	}
	return nil
}

// RemoveMany deletes the owner's items among ids; ids already gone are ignored
func (s *cartServiceImpl) RemoveMany(ctx context.Context, email string, ids []string) (int64, error) {
	ctx, cancel := bounded(ctx, s.storeTimeout)
	defer cancel()

	n, err := s.cartRepo.DeleteMany(ctx, normalizeEmail(email), ids)
	if err != nil {
		return 0, fmt.Errorf("error removing cart items: %w", err)
	}
	return n, nil
}
