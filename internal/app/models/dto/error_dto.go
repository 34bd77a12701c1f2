package dto

import (
	"time"
)

// ErrorCode represents standardized error codes
type ErrorCode string

// Standard error codes for the application
const (
	// Authentication errors
	ErrorCodeUnauthenticated ErrorCode = "AUTH_001"
	ErrorCodeInvalidToken    ErrorCode = "AUTH_005"
	ErrorCodeExpiredToken    ErrorCode = "AUTH_006"
	ErrorCodeForbidden       ErrorCode = "AUTH_008"

	// Resource errors
	ErrorCodeResourceNotFound      ErrorCode = "RES_001"
	ErrorCodeResourceAlreadyExists ErrorCode = "RES_002"
	ErrorCodeConflict              ErrorCode = "RES_004"

	// Enrollment errors
	ErrorCodeSeatsExhausted       ErrorCode = "ENR_001"
	ErrorCodeEnrollmentInProgress ErrorCode = "ENR_002"
	ErrorCodeIdempotencyMismatch  ErrorCode = "ENR_003"

	// Validation errors
	ErrorCodeValidationFailed ErrorCode = "VAL_001"
	ErrorCodeBadRequest       ErrorCode = "VAL_002"

	// Server errors
	ErrorCodeInternalServer       ErrorCode = "SRV_001"
	ErrorCodeExternalServiceError ErrorCode = "SRV_003"
)

// FieldError describes one rejected request field
type FieldError struct {
	Field   string `json:"field" example:"email"`
	Message string `json:"message" example:"email must be a valid email address"`
}

// ErrorResponse represents the standard error response structure
type ErrorResponse struct {
	Error     bool         `json:"error" example:"true"`
	Message   string       `json:"message" example:"forbidden access"`
	Code      ErrorCode    `json:"code,omitempty" example:"AUTH_008"`
	Fields    []FieldError `json:"fields,omitempty"`
	Timestamp time.Time    `json:"timestamp" example:"2025-04-23T12:01:05.123Z"`
}

// NewErrorResponse creates a standard error response
func NewErrorResponse(code ErrorCode, message string) *ErrorResponse {
	return &ErrorResponse{
		Error:     true,
		Message:   message,
		Code:      code,
		Timestamp: time.Now().UTC(),
	}
}

// WithFields attaches field level validation errors
func (e *ErrorResponse) WithFields(fields []FieldError) *ErrorResponse {
	e.Fields = fields
	return e
}
