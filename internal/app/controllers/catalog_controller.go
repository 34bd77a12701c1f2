package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yigit/classmarket/internal/app/services"
	"github.com/yigit/classmarket/internal/middleware"
)

// CatalogController serves the public instructor and review lists
type CatalogController struct {
	catalogService services.CatalogService
}

// NewCatalogController creates a new CatalogController
func NewCatalogController(catalogService services.CatalogService) *CatalogController {
	return &CatalogController{catalogService: catalogService}
}

// ListInstructors
// @Summary List instructors
// @Tags catalog
// @Produce json
// @Success 200 {array} models.Instructor
// @Router /instructors [get]
func (c *CatalogController) ListInstructors(ctx *gin.Context) {
	instructors, err := c.catalogService.ListInstructors(ctx.Request.Context())
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, instructors)
}

// ListReviews
// @Summary List reviews
// @Tags catalog
// @Produce json
// @Success 200 {array} models.Review
// @Router /reviews [get]
func (c *CatalogController) ListReviews(ctx *gin.Context) {
	reviews, err := c.catalogService.ListReviews(ctx.Request.Context())
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, reviews)
}
