package api

import (
	"carflex-purchase-api/internal/config"
	"carflex-purchase-api/internal/middleware"
	"carflex-purchase-api/internal/services"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Handler bundles the request handlers and their injected collaborators.
type Handler struct {
	DB        *gorm.DB
	Purchases *services.PurchaseService
}

// NewHandler creates the API handler set.
func NewHandler(db *gorm.DB, purchases *services.PurchaseService) *Handler {
	return &Handler{DB: db, Purchases: purchases}
}

// SetupRoutes sets up all routes
func SetupRoutes(r *gin.Engine, h *Handler, cfg *config.Config) {
	auth := middleware.AuthMiddleware(cfg.AuthJWTSecret)

	// API route group
	api := r.Group("/api")
	{
		// Purchase verification (requires user authentication)
		purchase := api.Group("/purchase")
		purchase.Use(auth)
		{
			purchase.POST("/verify", h.VerifyPurchase)
		}

		// Subscription routes (requires user authentication)
		subscription := api.Group("/subscription")
		subscription.Use(auth)
		{
			subscription.GET("/status", h.GetSubscriptionStatus)
			subscription.POST("/restore", h.RestoreSubscription)
		}

		// Notification routes (requires user authentication)
		notifications := api.Group("/notifications")
		notifications.Use(auth)
		{
			notifications.GET("", h.GetNotifications)
		}

		// Catalog management routes (for admin use)
		admin := api.Group("/admin")
		admin.Use(auth)
		{
			admin.GET("/packages", h.GetPackages)
			admin.POST("/packages", h.CreatePackage)
			admin.PUT("/packages/:id", h.UpdatePackage)
			admin.GET("/plans", h.GetPlans)
			admin.POST("/plans", h.CreatePlan)
		}
	}

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "ok",
			"service": "carflex-purchase-api",
		})
	})
}
