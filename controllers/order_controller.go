package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"storefront/middlewares"
	"storefront/models"
	"storefront/services"
)

type OrderController struct {
	orders  *services.OrderService
	isAdmin func(*models.User) bool
}

func NewOrderController(orders *services.OrderService, isAdmin func(*models.User) bool) *OrderController {
	return &OrderController{orders: orders, isAdmin: isAdmin}
}

func (oc *OrderController) Create(c *gin.Context) {
	defer func() {
		middlewares.RecordOrderOperation("create", succeeded(c))
	}()

	var req models.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if u, _ := middlewares.CurrentUser(c); u == nil || u.ID != req.UserID {
		respondError(c, errForbidden)
		return
	}

	order, err := oc.orders.CreateOrder(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, order)
}

func (oc *OrderController) Get(c *gin.Context) {
	defer func() {
		middlewares.RecordOrderOperation("get", succeeded(c))
	}()

	order, err := oc.orders.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	if _, err := requireSelf(c, order.UserID, oc.isAdmin); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (oc *OrderController) ListByUser(c *gin.Context) {
	defer func() {
		middlewares.RecordOrderOperation("list", succeeded(c))
	}()

	userID := c.Param("userId")
	if _, err := requireSelf(c, userID, oc.isAdmin); err != nil {
		respondError(c, err)
		return
	}
	orders, err := oc.orders.ListByUser(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, orders)
}

// ListAll is the admin order listing.
func (oc *OrderController) ListAll(c *gin.Context) {
	defer func() {
		middlewares.RecordOrderOperation("list_all", succeeded(c))
	}()

	orders, err := oc.orders.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, orders)
}

type updateStatusRequest struct {
	Status models.OrderStatus `json:"status" binding:"required,oneof=pending processing shipped delivered cancelled"`
}

func (oc *OrderController) UpdateStatus(c *gin.Context) {
	defer func() {
		middlewares.RecordOrderOperation("update_status", succeeded(c))
	}()

	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	order, err := oc.orders.UpdateStatus(c.Request.Context(), c.Param("id"), req.Status)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}
