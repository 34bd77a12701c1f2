package seed

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	appModels "github.com/yigit/classmarket/internal/app/models"
	appRepos "github.com/yigit/classmarket/internal/app/repositories"
	"github.com/yigit/classmarket/internal/pkg/apperrors"
)

// CreateDefaultData makes sure the configured admin account exists and holds the admin role.
// An empty email skips seeding.
func CreateDefaultData(ctx context.Context, userRepo appRepos.UserRepository, adminEmail string, lgr zerolog.Logger) error {
	email := strings.ToLower(strings.TrimSpace(adminEmail))
	if email == "" {
		lgr.Debug().Msg("No seed admin configured, skipping default data")
		return nil
	}

	lgr.Info().Str("email", email).Msg("Checking/Creating default admin...")

	user, err := userRepo.FindByEmail(ctx, email)
	switch {
	case err == nil:
		if user.Role == appModels.RoleAdmin {
			return nil
		}
		if err := userRepo.SetRole(ctx, user.ID, appModels.RoleAdmin); err != nil {
			return fmt.Errorf("error promoting seed admin: %w", err)
		}
		lgr.Info().Str("email", email).Msg("Existing user promoted to admin")
		return nil
	case !errors.Is(err, apperrors.ErrUserNotFound):
		return fmt.Errorf("error finding seed admin: %w", err)
	}

	admin := &appModels.User{Name: "Administrator", Email: email, Role: appModels.RoleAdmin}
	if err := userRepo.Create(ctx, admin); err != nil && !errors.Is(err, apperrors.ErrEmailAlreadyExists) {
		return fmt.Errorf("error creating seed admin: %w", err)
	}

	lgr.Info().Str("email", email).Msg("Default admin created")
	return nil
}
