package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yigit/classmarket/internal/app/models/dto"
	"github.com/yigit/classmarket/internal/app/services"
	"github.com/yigit/classmarket/internal/middleware"
)

// CartController handles cart requests
type CartController struct {
	cartService services.CartService
}

// NewCartController creates a new CartController
func NewCartController(cartService services.CartService) *CartController {
	return &CartController{cartService: cartService}
}

// ListCart returns the caller's cart
// @Summary List cart items
// @Description Only the owner may read a cart; without an email the list is empty
// @Tags carts
// @Produce json
// @Security BearerAuth
// @Param email query string false "Owner email"
// @Success 200 {array} models.CartItem
// @Failure 403 {object} dto.ErrorResponse "Email does not belong to the caller"
// @Router /carts [get]
func (c *CartController) ListCart(ctx *gin.Context) {
	items, err := c.cartService.ListForOwner(ctx.Request.Context(), middleware.CallerEmail(ctx), ctx.Query("email"))
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, items)
}

// AddCartItem puts a class into the caller's cart
// @Summary Add a cart item
// @Tags carts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.AddCartItemRequest true "Selected class"
// @Success 201 {object} models.CartItem
// @Failure 400 {object} dto.ErrorResponse "Invalid request format"
// @Router /carts [post]
func (c *CartController) AddCartItem(ctx *gin.Context) {
	var req dto.AddCartItemRequest
	if !middleware.BindJSON(ctx, &req) {
		return
	}

	item, err := c.cartService.Add(ctx.Request.Context(), middleware.CallerEmail(ctx), &req)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, item)
}

// RemoveCartItem deletes one of the caller's items
// @Summary Remove a cart item
// @Tags carts
// @Produce json
// @Security BearerAuth
// @Param id path string true "Cart item ID"
// @Success 200 {object} dto.AcknowledgedResponse
// @Failure 403 {object} dto.ErrorResponse "Item belongs to someone else"
// @Failure 404 {object} dto.ErrorResponse "Cart item not found"
// @Router /carts/{id} [delete]
func (c *CartController) RemoveCartItem(ctx *gin.Context) {
	if err := c.cartService.Remove(ctx.Request.Context(), middleware.CallerEmail(ctx), ctx.Param("id")); err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, dto.AcknowledgedResponse{Acknowledged: true, DeletedCount: 1})
}
