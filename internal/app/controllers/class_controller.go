package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yigit/classmarket/internal/app/models"
	"github.com/yigit/classmarket/internal/app/models/dto"
	"github.com/yigit/classmarket/internal/app/services"
	"github.com/yigit/classmarket/internal/middleware"
)

// ClassController handles class listing requests
type ClassController struct {
	classService services.ClassService
}

// NewClassController creates a new ClassController
func NewClassController(classService services.ClassService) *ClassController {
	return &ClassController{classService: classService}
}

// ListApproved returns the classes open for enrollment
// @Summary List approved classes
// @Tags classes
// @Produce json
// @Success 200 {array} models.Class
// @Router /classes [get]
func (c *ClassController) ListApproved(ctx *gin.Context) {
	classes, err := c.classService.ListApproved(ctx.Request.Context())
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, classes)
}

// ListAll returns every class including pending and denied ones
// @Summary List all classes
// @Tags classes
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.Class
// @Failure 403 {object} dto.ErrorResponse "Caller is not an admin"
// @Router /classes/all [get]
func (c *ClassController) ListAll(ctx *gin.Context) {
	classes, err := c.classService.ListAll(ctx.Request.Context())
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, classes)
}

// GetClass returns one class
// @Summary Get a class
// @Tags classes
// @Produce json
// @Param id path string true "Class ID"
// @Success 200 {object} models.Class
// @Failure 404 {object} dto.ErrorResponse "Class not found"
// @Router /classes/{id} [get]
func (c *ClassController) GetClass(ctx *gin.Context) {
	class, err := c.classService.GetByID(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, class)
}

// CreateClass submits a class for approval
// @Summary Create a class
// @Description New classes start in pending state until an admin approves them
// @Tags classes
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.CreateClassRequest true "Class"
// @Success 201 {object} models.Class
// @Failure 400 {object} dto.ErrorResponse "Invalid request format"
// @Failure 403 {object} dto.ErrorResponse "Caller is not an instructor or admin"
// @Router /classes [post]
func (c *ClassController) CreateClass(ctx *gin.Context) {
	var req dto.CreateClassRequest
	if !middleware.BindJSON(ctx, &req) {
		return
	}

	class, err := c.classService.Create(ctx.Request.Context(), middleware.CallerEmail(ctx), &req)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, class)
}

// UpdateClass overwrites price and seat counters
// @Summary Update a class
// @Tags classes
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Class ID"
// @Param request body dto.UpdateClassRequest true "Fields"
// @Success 200 {object} dto.AcknowledgedResponse
// @Failure 400 {object} dto.ErrorResponse "Invalid request format"
// @Failure 403 {object} dto.ErrorResponse "Class belongs to another instructor"
// @Failure 404 {object} dto.ErrorResponse "Class not found"
// @Router /classes/{id} [put]
func (c *ClassController) UpdateClass(ctx *gin.Context) {
	var req dto.UpdateClassRequest
	if !middleware.BindJSON(ctx, &req) {
		return
	}

	if err := c.classService.UpdateFields(ctx.Request.Context(), middleware.CallerEmail(ctx), ctx.Param("id"), &req); err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, dto.AcknowledgedResponse{Acknowledged: true, MatchedCount: 1, ModifiedCount: 1})
}

// DeleteClass removes a class
// @Summary Delete a class
// @Tags classes
// @Produce json
// @Security BearerAuth
// @Param id path string true "Class ID"
// @Success 200 {object} dto.AcknowledgedResponse
// @Failure 403 {object} dto.ErrorResponse "Class belongs to another instructor"
// @Failure 404 {object} dto.ErrorResponse "Class not found"
// @Router /classes/{id} [delete]
func (c *ClassController) DeleteClass(ctx *gin.Context) {
	if err := c.classService.Delete(ctx.Request.Context(), middleware.CallerEmail(ctx), ctx.Param("id")); err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, dto.AcknowledgedResponse{Acknowledged: true, DeletedCount: 1})
}

// ApproveClass makes a class visible to students
// @Summary Approve a class
// @Tags classes
// @Produce json
// @Security BearerAuth
// @Param id path string true "Class ID"
// @Success 200 {object} dto.AcknowledgedResponse
// @Failure 403 {object} dto.ErrorResponse "Caller is not an admin"
// @Failure 404 {object} dto.ErrorResponse "Class not found"
// @Router /classes/{id}/approve [patch]
func (c *ClassController) ApproveClass(ctx *gin.Context) {
	c.setStatus(ctx, models.ClassStatusApproved)
}

// DenyClass rejects a class
// @Summary Deny a class
// @Tags classes
// @Produce json
// @Security BearerAuth
// @Param id path string true "Class ID"
// @Success 200 {object} dto.AcknowledgedResponse
// @Failure 403 {object} dto.ErrorResponse "Caller is not an admin"
// @Failure 404 {object} dto.ErrorResponse "Class not found"
// @Router /classes/{id}/deny [patch]
func (c *ClassController) DenyClass(ctx *gin.Context) {
	c.setStatus(ctx, models.ClassStatusDenied)
}

func (c *ClassController) setStatus(ctx *gin.Context, status models.ClassStatus) {
	err := c.classService.SetApprovalStatus(ctx.Request.Context(), middleware.CallerEmail(ctx), ctx.Param("id"), status)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, dto.AcknowledgedResponse{Acknowledged: true, MatchedCount: 1, ModifiedCount: 1})
}
