package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"storefront/middlewares"
	"storefront/models"
	"storefront/services"
)

// Services bundles everything the HTTP layer calls.
type Services struct {
	Catalog  *services.CatalogService
	Carts    *services.CartService
	Orders   *services.OrderService
	Payments *services.PaymentService
	Admin    *services.AdminService
	Users    *services.UserService
	Chat     *services.ChatService
}

type RouterConfig struct {
	JWTSecret   string
	CORSOrigins []string
	IsAdmin     func(*models.User) bool
}

func NewRouter(svc Services, cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middlewares.PrometheusMiddleware())
	r.Use(middlewares.CORS(cfg.CORSOrigins...))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	products := NewProductController(svc.Catalog)
	carts := NewCartController(svc.Carts, cfg.IsAdmin)
	orders := NewOrderController(svc.Orders, cfg.IsAdmin)
	payments := NewPaymentController(svc.Payments)
	admin := NewAdminController(svc.Admin)
	users := NewUserController(svc.Users, cfg.IsAdmin)
	chatbot := NewChatbotController(svc.Chat)

	api := r.Group("/api")
	{
		api.GET("/products", products.List)
		api.GET("/products/:id", products.Get)
		api.POST("/stripe-webhook", payments.Webhook)
		api.POST("/chatbot", chatbot.Reply)
	}

	authed := api.Group("", middlewares.AuthMiddleware(cfg.JWTSecret))
	authed.POST("/users", users.Sync)

	member := authed.Group("", middlewares.RequireUser(svc.Users))
	{
		member.GET("/users/clerk/:clerkId", users.GetByClerkID)

		member.GET("/cart/:userId", carts.List)
		member.POST("/cart", carts.Add)
		member.PUT("/cart/:id", carts.UpdateQuantity)
		member.DELETE("/cart/:id", carts.Remove)
		member.DELETE("/cart/user/:userId", carts.Clear)

		member.POST("/orders", orders.Create)
		member.GET("/orders/:id", orders.Get)
		member.GET("/orders/user/:userId", orders.ListByUser)

		member.POST("/create-payment-intent", payments.CreateIntent)
	}

	adminGroup := member.Group("/admin", middlewares.RequireAdmin(cfg.IsAdmin))
	{
		adminGroup.POST("/products", products.Create)
		adminGroup.PUT("/products/:id", products.Update)
		adminGroup.DELETE("/products/:id", products.Delete)
		adminGroup.GET("/orders", orders.ListAll)
		adminGroup.PUT("/orders/:id/status", orders.UpdateStatus)
		adminGroup.GET("/stats", admin.Stats)
	}

	return r
}
