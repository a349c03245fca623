package services

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"testing"
	"time"

	"carflex-purchase-api/internal/config"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

// generateTestSigningKey returns a fresh P-256 key and its PKCS8 PEM form.
func generateTestSigningKey(t *testing.T) (*ecdsa.PrivateKey, string) {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	der, err := x509.MarshalPKCS8PrivateKey(key)
	require.NoError(t, err)

	pemData := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})
	return key, string(pemData)
}

func testAppStoreConfig(t *testing.T) (config.AppStore, *ecdsa.PrivateKey) {
	t.Helper()
	key, pemData := generateTestSigningKey(t)
	return config.AppStore{
		PrivateKey: pemData,
		KeyID:      "TESTKEY123",
		IssuerID:   "issuer-uuid",
		BundleID:   "com.carflex.app",
	}, key
}

func TestAssertionClaims(t *testing.T) {
	cfg, key := testAppStoreConfig(t)

	issued := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	g := NewAssertionGenerator(cfg)
	g.now = func() time.Time { return issued }

	signed, err := g.Generate()
	require.NoError(t, err)

	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(signed, claims, func(*jwt.Token) (interface{}, error) {
		return &key.PublicKey, nil
	}, jwt.WithValidMethods([]string{"ES256"}), jwt.WithTimeFunc(func() time.Time { return issued }))
	require.NoError(t, err)
	require.True(t, token.Valid)

	require.Equal(t, "TESTKEY123", token.Header["kid"])
	require.Equal(t, "issuer-uuid", claims["iss"])
	require.Equal(t, appStoreAudience, claims["aud"])
	require.Equal(t, "com.carflex.app", claims["bid"])

	iat := int64(claims["iat"].(float64))
	exp := int64(claims["exp"].(float64))
	require.Equal(t, issued.Unix(), iat)
	require.Equal(t, int64(3600), exp-iat, "assertion must be valid for exactly one hour")
}

func TestAssertionMissingCredentialsIsConfigError(t *testing.T) {
	tests := []struct {
		name string
		mut  func(*config.AppStore)
	}{
		{name: "no private key", mut: func(c *config.AppStore) { c.PrivateKey = "" }},
		{name: "no key id", mut: func(c *config.AppStore) { c.KeyID = "" }},
		{name: "no issuer id", mut: func(c *config.AppStore) { c.IssuerID = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, _ := testAppStoreConfig(t)
			tt.mut(&cfg)

			_, err := NewAssertionGenerator(cfg).Generate()
			require.Error(t, err)

			var verr *VerificationError
			require.True(t, errors.As(err, &verr))
			require.Equal(t, CodeAppStoreError, verr.Code)
		})
	}
}

func TestParseP8PrivateKeyAcceptsEscapedNewlines(t *testing.T) {
	_, pemData := generateTestSigningKey(t)

	escaped := ""
	for _, r := range pemData {
		if r == '\n' {
			escaped += "\\n"
			continue
		}
		escaped += string(r)
	}

	key, err := parseP8PrivateKey(escaped)
	require.NoError(t, err)
	require.NotNil(t, key)
}
