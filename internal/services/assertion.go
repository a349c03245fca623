package services

import (
	"crypto/ecdsa"
	"fmt"
	"strings"
	"time"

	"carflex-purchase-api/internal/config"

	"github.com/golang-jwt/jwt/v5"
)

// appStoreAudience is the audience the App Store Server API expects in the
// signed assertion.
const appStoreAudience = "appstoreconnect-v1"

// assertionTTL is the lifetime of a signed assertion. Apple rejects tokens
// valid for longer than one hour.
const assertionTTL = time.Hour

// AssertionGenerator produces the short-lived ES256 token that proves this
// service's identity to the App Store Server API without sending the
// long-lived private key over the wire.
type AssertionGenerator struct {
	cfg config.AppStore
	now func() time.Time
}

// NewAssertionGenerator creates a generator bound to the given credentials.
func NewAssertionGenerator(cfg config.AppStore) *AssertionGenerator {
	return &AssertionGenerator{cfg: cfg, now: time.Now}
}

// Generate signs a fresh assertion. A missing credential is a deployment
// defect and is reported as a configuration error; no retry is meaningful.
func (g *AssertionGenerator) Generate() (string, error) {
	if err := g.cfg.Validate(); err != nil {
		return "", errConfig(err)
	}

	key, err := parseP8PrivateKey(g.cfg.PrivateKey)
	if err != nil {
		return "", errConfig(fmt.Errorf("failed to parse signing key: %w", err))
	}

	issuedAt := g.now()
	token := jwt.NewWithClaims(jwt.SigningMethodES256, jwt.MapClaims{
		"iss": g.cfg.IssuerID,
		"iat": issuedAt.Unix(),
		"exp": issuedAt.Add(assertionTTL).Unix(),
		"aud": appStoreAudience,
		"bid": g.cfg.BundleID,
	})
	token.Header["kid"] = g.cfg.KeyID

	signed, err := token.SignedString(key)
	if err != nil {
		return "", errConfig(fmt.Errorf("failed to sign assertion: %w", err))
	}
	return signed, nil
}

// parseP8PrivateKey parses the P-256 signing key from its PEM blob.
// Environments often store the key with \n-escaped newlines, so both forms
// are accepted.
func parseP8PrivateKey(pemData string) (*ecdsa.PrivateKey, error) {
	if strings.Contains(pemData, "\\n") && !strings.Contains(pemData, "\n") {
		pemData = strings.ReplaceAll(pemData, "\\n", "\n")
	}
	return jwt.ParseECPrivateKeyFromPEM([]byte(pemData))
}
