package controllers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"storefront/middlewares"
	"storefront/services"
)

// Stripe webhook payloads are well under this.
const maxWebhookBody = 64 << 10

type PaymentController struct {
	payments *services.PaymentService
}

func NewPaymentController(payments *services.PaymentService) *PaymentController {
	return &PaymentController{payments: payments}
}

func (pc *PaymentController) CreateIntent(c *gin.Context) {
	defer func() {
		middlewares.RecordPaymentOperation("create_intent", succeeded(c))
	}()

	var req services.IntentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid amount"})
		return
	}
	u, _ := middlewares.CurrentUser(c)
	req.UserID = u.ID

	resp, err := pc.payments.CreateIntent(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (pc *PaymentController) Webhook(c *gin.Context) {
	defer func() {
		middlewares.RecordPaymentOperation("webhook", succeeded(c))
	}()

	payload, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Webhook processing failed"})
		return
	}

	if err := pc.payments.HandleWebhook(c.Request.Context(), payload, c.GetHeader("Stripe-Signature")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"received": true})
}
