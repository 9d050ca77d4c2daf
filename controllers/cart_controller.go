package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"storefront/middlewares"
	"storefront/models"
	"storefront/services"
)

// CartController serves the signed-in user's server-side cart mirror.
type CartController struct {
	carts   *services.CartService
	isAdmin func(*models.User) bool
}

func NewCartController(carts *services.CartService, isAdmin func(*models.User) bool) *CartController {
	return &CartController{carts: carts, isAdmin: isAdmin}
}

func (cc *CartController) List(c *gin.Context) {
	userID := c.Param("userId")
	if _, err := requireSelf(c, userID, cc.isAdmin); err != nil {
		respondError(c, err)
		return
	}
	items, err := cc.carts.List(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

func (cc *CartController) Add(c *gin.Context) {
	var req models.AddCartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if u, _ := middlewares.CurrentUser(c); u == nil || u.ID != req.UserID {
		respondError(c, errForbidden)
		return
	}

	item, err := cc.carts.Add(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, item)
}

func (cc *CartController) UpdateQuantity(c *gin.Context) {
	var req models.UpdateCartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid quantity"})
		return
	}
	u, _ := middlewares.CurrentUser(c)

	item, err := cc.carts.UpdateQuantity(c.Request.Context(), u.ID, c.Param("id"), *req.Quantity)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

func (cc *CartController) Remove(c *gin.Context) {
	u, _ := middlewares.CurrentUser(c)
	if err := cc.carts.Remove(c.Request.Context(), u.ID, c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Item removed from cart"})
}

func (cc *CartController) Clear(c *gin.Context) {
	userID := c.Param("userId")
	if _, err := requireSelf(c, userID, cc.isAdmin); err != nil {
		respondError(c, err)
		return
	}
	if err := cc.carts.Clear(c.Request.Context(), userID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Cart cleared"})
}
