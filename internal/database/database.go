package database

import (
	"context"
	"fmt"
	"time"

	"carflex-purchase-api/internal/config"
	"carflex-purchase-api/internal/models"
	"carflex-purchase-api/pkg/logging"

	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/schema"
)

var (
	DB          *gorm.DB
	RedisClient *redis.Client
)

// InitDatabase initializes database connection
func InitDatabase(cfg *config.Config) error {
	// Initialize PostgreSQL
	if err := initPostgres(cfg); err != nil {
		return fmt.Errorf("failed to initialize PostgreSQL: %w", err)
	}

	// Initialize Redis
	if err := initRedis(cfg); err != nil {
		return fmt.Errorf("failed to initialize Redis: %w", err)
	}

	// Auto migrate tables
	if err := autoMigrate(); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	// Seed the purchase catalog
	if err := seedCatalog(); err != nil {
		return fmt.Errorf("failed to seed catalog: %w", err)
	}

	return nil
}

// initPostgres initializes PostgreSQL connection
func initPostgres(cfg *config.Config) error {
	var err error

	if dsn := cfg.DatabaseURL; dsn == "" {
		// Fallback to SQLite for development
		logging.Infof("Database URL not set, using SQLite for development")
		DB, err = gorm.Open(sqlite.Open("carflex-purchase-api.db"), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Info),
			NamingStrategy: schema.NamingStrategy{
				SingularTable: true,
			},
		})
	} else {
		// Use PostgreSQL for production
		DB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Info),
			NamingStrategy: schema.NamingStrategy{
				SingularTable: true,
			},
		})
	}

	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	logging.Infof("Database connected successfully")
	return nil
}

// initRedis initializes Redis connection
func initRedis(cfg *config.Config) error {
	redisURL := cfg.RedisURL
	if redisURL == "" {
		return fmt.Errorf("REDIS_URL is not set")
	}

	logging.Infof("Connecting to Redis: %s", maskRedisURL(redisURL))

	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		logging.Errorf("Failed to parse Redis URL: %v", err)
		return fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	RedisClient = redis.NewClient(opt)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err = RedisClient.Ping(ctx).Result(); err != nil {
		logging.Errorf("Failed to connect to Redis: %v", err)
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logging.Infof("Redis connected successfully")
	return nil
}

// maskRedisURL masks sensitive information in Redis URL for logging
func maskRedisURL(url string) string {
	if len(url) > 20 {
		return url[:10] + "***" + url[len(url)-10:]
	}
	return "***"
}

// autoMigrate performs database migration
func autoMigrate() error {
	return DB.AutoMigrate(
		&models.PremiumPackage{},
		&models.SubscriptionPlan{},
		&models.PremiumListingGrant{},
		&models.Subscription{},
		&models.Notification{},
	)
}

// seedCatalog inserts the default premium packages and subscription plans so a
// fresh environment can process purchases without manual catalog setup.
func seedCatalog() error {
	defaultPackages := []models.PremiumPackage{
		{PackageID: "boost_7d", Name: "Premium Boost 7 Days", DurationDays: 7, PriceCents: 499, IsActive: true},
		{PackageID: "boost_14d", Name: "Premium Boost 14 Days", DurationDays: 14, PriceCents: 799, IsActive: true},
		{PackageID: "boost_30d", Name: "Premium Boost 30 Days", DurationDays: 30, PriceCents: 1299, IsActive: true},
	}
	for _, pkg := range defaultPackages {
		pkg := pkg
		if err := DB.Where("package_id = ?", pkg.PackageID).FirstOrCreate(&pkg).Error; err != nil {
			return fmt.Errorf("failed to seed package %s: %w", pkg.PackageID, err)
		}
	}

	defaultPlans := []models.SubscriptionPlan{
		{ProductID: "com.carflex.app.pro.monthly", Name: "CarFlex Pro Monthly", PeriodMonths: 1, PriceCents: 999, IsActive: true},
	}
	for _, plan := range defaultPlans {
		plan := plan
		if err := DB.Where("product_id = ?", plan.ProductID).FirstOrCreate(&plan).Error; err != nil {
			return fmt.Errorf("failed to seed plan %s: %w", plan.ProductID, err)
		}
	}

	logging.Infof("Catalog seeded successfully")
	return nil
}

// GetDB returns database instance
func GetDB() *gorm.DB {
	return DB
}

// GetRedis returns Redis client
func GetRedis() *redis.Client {
	return RedisClient
}

// CloseDatabase closes database connections
func CloseDatabase() error {
	if sqlDB, err := DB.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			logging.Errorf("Failed to close database: %v", err)
		}
	}

	if RedisClient != nil {
		if err := RedisClient.Close(); err != nil {
			logging.Errorf("Failed to close Redis: %v", err)
		}
	}

	return nil
}
