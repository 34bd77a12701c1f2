package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/yigit/classmarket/internal/app/models/dto"
)

// BindJSON binds the request body into obj. On failure it writes a 400 with
// per-field messages and returns false.
func BindJSON(c *gin.Context, obj interface{}) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		resp := dto.NewErrorResponse(dto.ErrorCodeValidationFailed, "invalid request body")

		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]dto.FieldError, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, dto.FieldError{Field: fe.Field(), Message: formatValidationError(fe)})
			}
			resp = resp.WithFields(fields)
		}

		c.AbortWithStatusJSON(http.StatusBadRequest, resp)
		return false
	}
	return true
}

// formatValidationError creates a human-readable validation error message
func formatValidationError(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return e.Field() + " is required"
	case "min":
		return e.Field() + " must be at least " + e.Param()
	case "max":
		return e.Field() + " must be at most " + e.Param()
	case "gt":
		return e.Field() + " must be greater than " + e.Param()
	case "gte":
		return e.Field() + " must be at least " + e.Param()
	case "email":
		return e.Field() + " must be a valid email address"
	case "url":
		return e.Field() + " must be a valid URL"
	case "oneof":
		return e.Field() + " must be one of: " + e.Param()
	default:
		return e.Field() + " validation failed: " + e.Tag()
	}
}
