package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	appAuth "github.com/yigit/classmarket/internal/app/auth"
	"github.com/yigit/classmarket/internal/app/models"
	"github.com/yigit/classmarket/internal/app/models/dto"
	"github.com/yigit/classmarket/internal/pkg/auth"
	"github.com/yigit/classmarket/internal/pkg/logger"
)

// Context keys set by JWTAuth
const (
	ContextKeyEmail = "email"
	ContextKeyName  = "name"
)

const unauthorizedMessage = "unauthorized access"

// AuthMiddleware for authentication and authorization
type AuthMiddleware struct {
	jwtService *auth.JWTService
	gate       *appAuth.RoleGate
}

// NewAuthMiddleware creates a new AuthMiddleware
func NewAuthMiddleware(jwtService *auth.JWTService, gate *appAuth.RoleGate) *AuthMiddleware {
	return &AuthMiddleware{
		jwtService: jwtService,
		gate:       gate,
	}
}

// JWTAuth verifies the bearer token. A missing header is answered with 401,
// a malformed, tampered or expired token with 403.
func (m *AuthMiddleware) JWTAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, err := auth.ExtractBearerToken(c.GetHeader("Authorization"))
		if err != nil {
			if errors.Is(err, auth.ErrMissingToken) {
				c.AbortWithStatusJSON(http.StatusUnauthorized,
					dto.NewErrorResponse(dto.ErrorCodeUnauthenticated, unauthorizedMessage))
				return
			}
			c.AbortWithStatusJSON(http.StatusForbidden,
				dto.NewErrorResponse(dto.ErrorCodeInvalidToken, unauthorizedMessage))
			return
		}

		claims, err := m.jwtService.ValidateToken(tokenString)
		if err != nil {
			code := dto.ErrorCodeInvalidToken
			if errors.Is(err, auth.ErrExpiredToken) {
				code = dto.ErrorCodeExpiredToken
			}
			logger.Ctx(c.Request.Context()).Debug().Err(err).Msg("Token rejected")
			c.AbortWithStatusJSON(http.StatusForbidden, dto.NewErrorResponse(code, unauthorizedMessage))
			return
		}

		c.Set(ContextKeyEmail, claims.Email)
		c.Set(ContextKeyName, claims.Name)

		l := logger.Ctx(c.Request.Context()).With().Str("caller", claims.Email).Logger()
		c.Request = c.Request.WithContext(logger.WithContext(c.Request.Context(), l))

		c.Next()
	}
}

// RoleRequired lets the request through only when the verified caller holds one of roles.
// It must run after JWTAuth.
func (m *AuthMiddleware) RoleRequired(roles ...models.RoleType) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := m.gate.Authorize(c.Request.Context(), CallerEmail(c), roles...); err != nil {
			HandleAPIError(c, err)
			c.Abort()
			return
		}
		c.Next()
	}
}

// CallerEmail returns the verified email of the caller, or "" before JWTAuth ran
func CallerEmail(c *gin.Context) string {
	return c.GetString(ContextKeyEmail)
}
