package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server configuration
	Port string
	Mode string

	// Database configuration
	DatabaseURL string

	// Redis configuration
	RedisURL string

	// Inbound auth configuration (identity provider shared secret)
	AuthJWTSecret string

	// App Store Server API configuration
	AppStore AppStore

	// Brevo email configuration
	BrevoAPIKey    string
	BrevoFromEmail string
	BrevoFromName  string

	// App backend webhook configuration
	BackendWebhookURL    string
	BackendWebhookSecret string

	// Verification cache configuration
	VerificationCacheMinutes int
}

// AppStore holds the credentials used to sign App Store Server API requests.
type AppStore struct {
	PrivateKey string // P8 key content, PEM
	KeyID      string
	IssuerID   string
	BundleID   string
}

// Validate reports a configuration error if any signing secret is missing.
// This is fatal: retrying cannot fix an undeployed credential.
func (a AppStore) Validate() error {
	if a.PrivateKey == "" || a.KeyID == "" || a.IssuerID == "" {
		return fmt.Errorf("app store credentials not configured (need private key, key id and issuer id)")
	}
	return nil
}

// Load reads configuration from .env and the environment into a Config that is
// built once in main and passed into constructors.
func Load() (*Config, error) {
	// Ignore error if .env file doesn't exist
	_ = godotenv.Load()

	cfg := &Config{
		Port:          getEnv("PORT", "8080"),
		Mode:          getEnv("GIN_MODE", "debug"),
		DatabaseURL:   getEnv("DATABASE_URL", ""),
		RedisURL:      getEnv("REDIS_URL", "redis://localhost:6379/0"),
		AuthJWTSecret: getEnv("AUTH_JWT_SECRET", ""),
		AppStore: AppStore{
			PrivateKey: getEnv("APP_STORE_PRIVATE_KEY", ""),
			KeyID:      getEnv("APP_STORE_KEY_ID", ""),
			IssuerID:   getEnv("APP_STORE_ISSUER_ID", ""),
			BundleID:   getEnv("APP_STORE_BUNDLE_ID", "com.carflex.app"),
		},
		BrevoAPIKey:              getEnv("BREVO_API_KEY", ""),
		BrevoFromEmail:           getEnv("BREVO_FROM_EMAIL", ""),
		BrevoFromName:            getEnv("BREVO_FROM_NAME", "CarFlex"),
		BackendWebhookURL:        getEnv("BACKEND_WEBHOOK_URL", ""),
		BackendWebhookSecret:     getEnv("BACKEND_WEBHOOK_SECRET", ""),
		VerificationCacheMinutes: getEnvInt("VERIFICATION_CACHE_MINUTES", 60),
	}

	if cfg.AuthJWTSecret == "" {
		return nil, fmt.Errorf("AUTH_JWT_SECRET is not set")
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
