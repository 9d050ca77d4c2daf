package controllers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"storefront/middlewares"
	"storefront/models"
	"storefront/services"
)

type UserController struct {
	users   *services.UserService
	isAdmin func(*models.User) bool
}

func NewUserController(users *services.UserService, isAdmin func(*models.User) bool) *UserController {
	return &UserController{users: users, isAdmin: isAdmin}
}

// Sync records the signed-in identity. Only the token's own identity can be
// synced, and the stored email is the token's, since admin rights follow it.
func (uc *UserController) Sync(c *gin.Context) {
	var req models.SyncUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	id, ok := middlewares.CurrentIdentity(c)
	if !ok || id.UserID != req.ClerkID {
		respondError(c, errForbidden)
		return
	}
	if id.Email == "" || !strings.EqualFold(strings.TrimSpace(req.Email), id.Email) {
		respondError(c, errForbidden)
		return
	}
	req.Email = id.Email

	u, created, err := uc.users.Sync(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, u)
}

func (uc *UserController) GetByClerkID(c *gin.Context) {
	clerkID := c.Param("clerkId")
	caller, _ := middlewares.CurrentUser(c)
	if caller == nil || (caller.ClerkID != clerkID && !uc.isAdmin(caller)) {
		respondError(c, errForbidden)
		return
	}

	u, err := uc.users.GetByClerkID(c.Request.Context(), clerkID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}
