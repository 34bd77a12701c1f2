package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	appAuth "github.com/yigit/classmarket/internal/app/auth"
	"github.com/yigit/classmarket/internal/app/models"
	"github.com/yigit/classmarket/internal/app/models/dto"
	"github.com/yigit/classmarket/internal/app/repositories"
	"github.com/yigit/classmarket/internal/pkg/apperrors"
)

// UserService defines the interface for user operations
type UserService interface {
	List(ctx context.Context) ([]*models.User, error)
	Register(ctx context.Context, callerEmail string, req *dto.CreateUserRequest) (*models.User, bool, error)
	HasRole(ctx context.Context, callerEmail, email string, role models.RoleType) (bool, error)
	Promote(ctx context.Context, id string, role models.RoleType) error
}

type userServiceImpl struct {
	userRepo repositories.UserRepository
	gate     *appAuth.RoleGate
	logger   zerolog.Logger
}

// NewUserService creates a new UserService
func NewUserService(userRepo repositories.UserRepository, gate *appAuth.RoleGate, logger zerolog.Logger) UserService {
	return &userServiceImpl{
		userRepo: userRepo,
		gate:     gate,
		logger:   logger,
	}
}

// List returns every user
func (s *userServiceImpl) List(ctx context.Context) ([]*models.User, error) {
	users, err := s.userRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("error listing users: %w", err)
	}
	return users, nil
}

// Register creates the caller's user record on first sign-in. It returns the
// stored record and true when a new one was created.
func (s *userServiceImpl) Register(ctx context.Context, callerEmail string, req *dto.CreateUserRequest) (*models.User, bool, error) {
	email := normalizeEmail(req.Email)
	if email != normalizeEmail(callerEmail) {
		return nil, false, apperrors.NewForbiddenError("forbidden access")
	}

	existing, err := s.userRepo.FindByEmail(ctx, email)
	switch {
	case err == nil:
		return existing, false, nil
	case !errors.Is(err, apperrors.ErrUserNotFound):
		return nil, false, fmt.Errorf("error finding user: %w", err)
	}

	user := &models.User{
		Name:     req.Name,
		Email:    email,
		PhotoURL: req.PhotoURL,
		Role:     models.RoleStudent,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		// A concurrent first sign-in won the insert.
		if errors.Is(err, apperrors.ErrEmailAlreadyExists) {
			existing, ferr := s.userRepo.FindByEmail(ctx, email)
			if ferr != nil {
				return nil, false, fmt.Errorf("error finding user: %w", ferr)
			}
			return existing, false, nil
		}
		return nil, false, fmt.Errorf("error creating user: %w", err)
	}

	s.logger.Info().Str("email", email).Msg("User registered")
	return user, true, nil
}

// HasRole answers whether email holds role. Callers may only ask about themselves;
// asking about anyone else is answered with false.
func (s *userServiceImpl) HasRole(ctx context.Context, callerEmail, email string, role models.RoleType) (bool, error) {
	email = normalizeEmail(email)
	if email == "" || email != normalizeEmail(callerEmail) {
		return false, nil
	}
	return s.gate.HasRole(ctx, email, role)
}

// Promote sets the role of the user with id
func (s *userServiceImpl) Promote(ctx context.Context, id string, role models.RoleType) error {
	if !role.Valid() {
		return apperrors.NewBadRequestError(fmt.Sprintf("unknown role %q", role))
	}
	if err := s.userRepo.SetRole(ctx, id, role); err != nil {
		return fmt.Errorf("error updating role: %w", err)
	}

	s.logger.Info().Str("userId", id).Str("role", string(role)).Msg("User role changed")
	return nil
}
