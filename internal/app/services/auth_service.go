package services

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/yigit/classmarket/internal/app/models/dto"
	"github.com/yigit/classmarket/internal/pkg/auth"
)

// AuthService issues identity tokens
type AuthService interface {
	IssueToken(ctx context.Context, req *dto.TokenRequest) (*dto.TokenResponse, error)
}

type authServiceImpl struct {
	jwtService *auth.JWTService
	logger     zerolog.Logger
}

// NewAuthService creates a new AuthService
func NewAuthService(jwtService *auth.JWTService, logger zerolog.Logger) AuthService {
	return &authServiceImpl{
		jwtService: jwtService,
		logger:     logger,
	}
}

// IssueToken signs a one hour token for the asserted identity
func (s *authServiceImpl) IssueToken(ctx context.Context, req *dto.TokenRequest) (*dto.TokenResponse, error) {
	email := normalizeEmail(req.Email)

	token, expiresIn, err := s.jwtService.IssueToken(auth.Identity{Email: email, Name: req.Name})
	if err != nil {
		s.logger.Error().Err(err).Str("email", email).Msg("Failed to issue token")
		return nil, fmt.Errorf("issue token: %w", err)
	}

	s.logger.Debug().Str("email", email).Msg("Token issued")
	return &dto.TokenResponse{
		Token:     token,
		TokenType: "Bearer",
		ExpiresIn: expiresIn,
	}, nil
}
