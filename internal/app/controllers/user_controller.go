package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yigit/classmarket/internal/app/models"
	"github.com/yigit/classmarket/internal/app/models/dto"
	"github.com/yigit/classmarket/internal/app/services"
	"github.com/yigit/classmarket/internal/middleware"
)

// UserController handles user-related requests
type UserController struct {
	userService services.UserService
}

// NewUserController creates a new UserController
func NewUserController(userService services.UserService) *UserController {
	return &UserController{userService: userService}
}

// ListUsers returns every user
// @Summary List users
// @Tags users
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.User
// @Failure 401 {object} dto.ErrorResponse "Missing token"
// @Failure 403 {object} dto.ErrorResponse "Caller is not an admin"
// @Router /users [get]
func (c *UserController) ListUsers(ctx *gin.Context) {
	users, err := c.userService.List(ctx.Request.Context())
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, users)
}

// RegisterUser stores the caller's user record on first sign-in
// @Summary Register the signed-in user
// @Description Creates the caller's user record as a student. An existing record is returned unchanged.
// @Tags users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.CreateUserRequest true "User profile"
// @Success 201 {object} dto.CreateUserResponse "User created"
// @Success 200 {object} dto.CreateUserResponse "User already existing"
// @Failure 403 {object} dto.ErrorResponse "Email does not belong to the caller"
// @Router /users [post]
func (c *UserController) RegisterUser(ctx *gin.Context) {
	var req dto.CreateUserRequest
	if !middleware.BindJSON(ctx, &req) {
		return
	}

	user, created, err := c.userService.Register(ctx.Request.Context(), middleware.CallerEmail(ctx), &req)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	if !created {
		ctx.JSON(http.StatusOK, dto.CreateUserResponse{Message: "user already existing", User: user})
		return
	}
	ctx.JSON(http.StatusCreated, dto.CreateUserResponse{User: user})
}

// CheckAdmin reports whether the caller is an admin
// @Summary Check the admin role
// @Description Answers false for any email other than the caller's
// @Tags users
// @Produce json
// @Security BearerAuth
// @Param email path string true "Email"
// @Success 200 {object} dto.RoleCheckResponse
// @Router /users/admin/{email} [get]
func (c *UserController) CheckAdmin(ctx *gin.Context) {
	c.checkRole(ctx, models.RoleAdmin)
}

// CheckInstructor reports whether the caller is an instructor
// @Summary Check the instructor role
// @Description Answers false for any email other than the caller's
// @Tags users
// @Produce json
// @Security BearerAuth
// @Param email path string true "Email"
// @Success 200 {object} dto.RoleCheckResponse
// @Router /users/instructor/{email} [get]
func (c *UserController) CheckInstructor(ctx *gin.Context) {
	c.checkRole(ctx, models.RoleInstructor)
}

func (c *UserController) checkRole(ctx *gin.Context, role models.RoleType) {
	ok, err := c.userService.HasRole(ctx.Request.Context(), middleware.CallerEmail(ctx), ctx.Param("email"), role)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, dto.RoleCheckResponse{string(role): ok})
}

// PromoteAdmin makes a user an admin
// @Summary Promote a user to admin
// @Tags users
// @Produce json
// @Security BearerAuth
// @Param id path string true "User ID"
// @Success 200 {object} dto.AcknowledgedResponse
// @Failure 403 {object} dto.ErrorResponse "Caller is not an admin"
// @Failure 404 {object} dto.ErrorResponse "User not found"
// @Router /users/admin/{id} [patch]
func (c *UserController) PromoteAdmin(ctx *gin.Context) {
	c.promote(ctx, models.RoleAdmin)
}

// PromoteInstructor makes a user an instructor
// @Summary Promote a user to instructor
// @Tags users
// @Produce json
// @Security BearerAuth
// @Param id path string true "User ID"
// @Success 200 {object} dto.AcknowledgedResponse
// @Failure 403 {object} dto.ErrorResponse "Caller is not an admin"
// @Failure 404 {object} dto.ErrorResponse "User not found"
// @Router /users/instructor/{id} [patch]
func (c *UserController) PromoteInstructor(ctx *gin.Context) {
	c.promote(ctx, models.RoleInstructor)
}

func (c *UserController) promote(ctx *gin.Context, role models.RoleType) {
	if err := c.userService.Promote(ctx.Request.Context(), ctx.Param("id"), role); err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, dto.AcknowledgedResponse{Acknowledged: true, MatchedCount: 1, ModifiedCount: 1})
}
