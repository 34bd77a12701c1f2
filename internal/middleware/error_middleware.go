package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yigit/classmarket/internal/app/models/dto"
	"github.com/yigit/classmarket/internal/pkg/apperrors"
	"github.com/yigit/classmarket/internal/pkg/auth"
	"github.com/yigit/classmarket/internal/pkg/logger"
)

// HandleAPIError handles common API errors and returns appropriate responses
func HandleAPIError(c *gin.Context, err error) {
	status, code, message := classify(err)

	var customErr *apperrors.CustomError
	if errors.As(err, &customErr) && customErr.Message != "" && status != http.StatusInternalServerError {
		message = customErr.Message
		if customErr.Code != "" {
			code = dto.ErrorCode(customErr.Code)
		}
	}

	event := logger.Ctx(c.Request.Context()).Warn()
	if status >= http.StatusInternalServerError {
		event = logger.Ctx(c.Request.Context()).Error()
	}
	event.Err(err).Int("status", status).Str("code", string(code)).Msg("Request failed")

	c.JSON(status, dto.NewErrorResponse(code, message))
}

func classify(err error) (int, dto.ErrorCode, string) {
	switch {
	case errors.Is(err, apperrors.ErrUnauthenticated), errors.Is(err, auth.ErrMissingToken):
		return http.StatusUnauthorized, dto.ErrorCodeUnauthenticated, unauthorizedMessage
	case errors.Is(err, apperrors.ErrTokenExpired), errors.Is(err, auth.ErrExpiredToken):
		return http.StatusForbidden, dto.ErrorCodeExpiredToken, unauthorizedMessage
	case errors.Is(err, apperrors.ErrTokenInvalid), errors.Is(err, apperrors.ErrInvalidFormat),
		errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrInvalidFormat):
		return http.StatusForbidden, dto.ErrorCodeInvalidToken, unauthorizedMessage
	case errors.Is(err, apperrors.ErrPermissionDenied):
		return http.StatusForbidden, dto.ErrorCodeForbidden, "forbidden access"
	case apperrors.IsNotFound(err):
		return http.StatusNotFound, dto.ErrorCodeResourceNotFound, "resource not found"
	case errors.Is(err, apperrors.ErrSeatsExhausted):
		return http.StatusConflict, dto.ErrorCodeSeatsExhausted, "no seats available"
	case errors.Is(err, apperrors.ErrEnrollmentInProgress):
		return http.StatusConflict, dto.ErrorCodeEnrollmentInProgress, apperrors.ErrEnrollmentInProgress.Error()
	case errors.Is(err, apperrors.ErrIdempotencyMismatch):
		return http.StatusConflict, dto.ErrorCodeIdempotencyMismatch, apperrors.ErrIdempotencyMismatch.Error()
	case errors.Is(err, apperrors.ErrEmailAlreadyExists), errors.Is(err, apperrors.ErrResourceAlreadyExists):
		return http.StatusConflict, dto.ErrorCodeResourceAlreadyExists, "resource already exists"
	case errors.Is(err, apperrors.ErrConflict):
		return http.StatusConflict, dto.ErrorCodeConflict, "conflict"
	case errors.Is(err, apperrors.ErrValidationFailed):
		return http.StatusBadRequest, dto.ErrorCodeValidationFailed, "validation failed"
	case errors.Is(err, apperrors.ErrBadRequest):
		return http.StatusBadRequest, dto.ErrorCodeBadRequest, "bad request"
	case errors.Is(err, apperrors.ErrUpstreamFailure):
		return http.StatusBadGateway, dto.ErrorCodeExternalServiceError, "upstream service failure"
	default:
		return http.StatusInternalServerError, dto.ErrorCodeInternalServer, "internal server error"
	}
}
