package main

import (
	"log"
	"time"

	"carflex-purchase-api/internal/api"
	"carflex-purchase-api/internal/config"
	"carflex-purchase-api/internal/database"
	"carflex-purchase-api/internal/services"
	"carflex-purchase-api/pkg/logging"

	"github.com/gin-gonic/gin"
)

func main() {
	// Initialize configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	// Initialize logging
	logging.InitLogging()

	// Initialize database
	if err := database.InitDatabase(cfg); err != nil {
		log.Fatal("Failed to initialize database:", err)
	}
	defer database.CloseDatabase()

	// Wire the purchase verification flow
	cache := services.NewVerificationCache(database.GetRedis(),
		time.Duration(cfg.VerificationCacheMinutes)*time.Minute)
	verifier := services.NewTransactionVerifier(cfg.AppStore, cache)
	entitlements := services.NewEntitlementService(database.GetDB())
	purchases := services.NewPurchaseService(cfg.AppStore, verifier, entitlements,
		services.NewBackendNotifier(cfg), services.NewReceiptMailer(cfg))

	// Set Gin mode
	gin.SetMode(cfg.Mode)

	// Create Gin engine
	r := gin.Default()

	// Setup routes
	handler := api.NewHandler(database.GetDB(), purchases)
	api.SetupRoutes(r, handler, cfg)

	// Start server
	logging.Infof("Starting server on port %s", cfg.Port)
	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}
