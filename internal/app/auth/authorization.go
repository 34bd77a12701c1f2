package auth

import (
	"context"
	"fmt"
	"slices"

	"github.com/yigit/classmarket/internal/app/models"
	"github.com/yigit/classmarket/internal/app/repositories"
	"github.com/yigit/classmarket/internal/pkg/apperrors"
	"github.com/yigit/classmarket/internal/pkg/logger"
)

// RoleGate decides whether a verified identity holds a role by looking up its user record
type RoleGate struct {
	userRepo repositories.UserRepository
}

// NewRoleGate creates a new RoleGate
func NewRoleGate(userRepo repositories.UserRepository) *RoleGate {
	return &RoleGate{userRepo: userRepo}
}

// Authorize returns nil when the user stored under email holds one of roles.
// A missing user or any other role yields a Forbidden error; store failures pass through.
func (g *RoleGate) Authorize(ctx context.Context, email string, roles ...models.RoleType) error {
	if email == "" {
		return apperrors.ErrUnauthenticated
	}

	user, err := g.userRepo.FindByEmail(ctx, email)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return apperrors.NewForbiddenError("forbidden access")
		}
		logger.Ctx(ctx).Error().Err(err).Str("email", email).Msg("Role lookup failed")
		return fmt.Errorf("role lookup: %w", err)
	}

	if user.Role == models.RoleNone || !slices.Contains(roles, user.Role) {
		return apperrors.NewForbiddenError("forbidden access")
	}
	return nil
}

// HasRole reports whether the user stored under email holds role
func (g *RoleGate) HasRole(ctx context.Context, email string, role models.RoleType) (bool, error) {
	err := g.Authorize(ctx, email, role)
	switch {
	case err == nil:
		return true, nil
	case apperrors.Is(err, apperrors.ErrPermissionDenied):
		return false, nil
	default:
		return false, err
	}
}
