package controllers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"storefront/middlewares"
	"storefront/models"
	"storefront/services"
)

var errForbidden = errors.New("forbidden")

// respondError maps service errors to status codes. Unexpected errors and
// payment provider failures are logged; the shopper gets a generic message.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": strings.TrimPrefix(err.Error(), services.ErrValidation.Error()+": ")})
	case errors.Is(err, services.ErrInvalidTransition):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": strings.TrimPrefix(err.Error(), services.ErrConflict.Error()+": ")})
	case errors.Is(err, services.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": strings.TrimPrefix(err.Error(), services.ErrNotFound.Error()+": ") + " not found"})
	case errors.Is(err, errForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "Forbidden"})
	case errors.Is(err, services.ErrPaymentUnavailable):
		c.JSON(http.StatusBadGateway, gin.H{"error": "Payment processing error"})
	default:
		slog.Error("Request failed", "method", c.Request.Method, "path", c.FullPath(), "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}

// requireSelf allows the request when userID is the caller or the caller is an admin.
func requireSelf(c *gin.Context, userID string, isAdmin func(*models.User) bool) (*models.User, error) {
	u, ok := middlewares.CurrentUser(c)
	if !ok {
		return nil, errForbidden
	}
	if u.ID != userID && !isAdmin(u) {
		return nil, errForbidden
	}
	return u, nil
}

func succeeded(c *gin.Context) bool {
	return c.Writer.Status() >= 200 && c.Writer.Status() < 300
}
