package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"carflex-purchase-api/internal/config"
	"carflex-purchase-api/pkg/logging"
)

const (
	appStoreProductionURL = "https://api.storekit.itunes.apple.com"
	appStoreSandboxURL    = "https://api.storekit-sandbox.itunes.apple.com"
)

// Environments a verified transaction can originate from.
const (
	EnvironmentProduction = "Production"
	EnvironmentSandbox    = "Sandbox"
	EnvironmentLocal      = "Local"
)

// VerifiedTransaction is the authoritative transaction record, trusted once
// decoded from the App Store's signed response. Local test transactions are
// synthesized from client fields and carry VerifiedByApple=false.
type VerifiedTransaction struct {
	BundleID              string
	ProductID             string
	TransactionID         string
	OriginalTransactionID string
	PurchaseDate          time.Time
	Environment           string
	VerifiedByApple       bool
}

// TransactionVerifier resolves a transaction ID against the App Store Server
// API, probing production first and falling back to sandbox when the
// production store does not know the transaction.
type TransactionVerifier struct {
	assertions    *AssertionGenerator
	fetcher       *Fetcher
	cache         *VerificationCache
	productionURL string
	sandboxURL    string
}

// NewTransactionVerifier creates a verifier against Apple's endpoints. The
// cache is optional; pass nil to always hit the App Store.
func NewTransactionVerifier(cfg config.AppStore, cache *VerificationCache) *TransactionVerifier {
	return &TransactionVerifier{
		assertions:    NewAssertionGenerator(cfg),
		fetcher:       NewFetcher(),
		cache:         cache,
		productionURL: appStoreProductionURL,
		sandboxURL:    appStoreSandboxURL,
	}
}

// transactionResponse is the App Store Server API response for
// GET /inApps/v1/transactions/{transactionId}.
type transactionResponse struct {
	SignedTransactionInfo string `json:"signedTransactionInfo"`
}

// Verify resolves the purchase's transaction against the store. Locally
// simulated test transactions never leave the process.
func (v *TransactionVerifier) Verify(ctx context.Context, purchase PurchaseInput) (*VerifiedTransaction, error) {
	if isLocalTestTransaction(purchase) {
		logging.Warnf("Test transaction detected, skipping App Store verification - transaction_id: %s", purchase.TransactionID)
		return synthesizeTestTransaction(purchase), nil
	}

	if v.cache != nil {
		if cached, ok := v.cache.Get(ctx, purchase.TransactionID); ok {
			return cached, nil
		}
	}

	assertion, err := v.assertions.Generate()
	if err != nil {
		return nil, err
	}

	tx, prodStatus, prodBody, err := v.query(ctx, v.productionURL, purchase.TransactionID, assertion, EnvironmentProduction)
	if err != nil {
		return nil, err
	}
	if tx == nil {
		// Sandbox and production transaction stores are disjoint: a sandbox
		// purchase 404s against production, so probe sandbox before failing.
		if !looksLikeSandboxTransaction(prodStatus, prodBody) {
			return nil, errAppStore(fmt.Errorf("app store returned status %d: %s", prodStatus, prodBody))
		}

		logging.Infof("Production store does not know transaction %s, retrying against sandbox", purchase.TransactionID)
		var sandboxStatus int
		var sandboxBody string
		tx, sandboxStatus, sandboxBody, err = v.query(ctx, v.sandboxURL, purchase.TransactionID, assertion, EnvironmentSandbox)
		if err != nil {
			return nil, err
		}
		if tx == nil {
			verr := classifySandboxFailure(prodStatus, prodBody, sandboxStatus, sandboxBody)
			return nil, verr
		}
	}

	if v.cache != nil {
		v.cache.Set(ctx, purchase.TransactionID, tx)
	}
	return tx, nil
}

// query performs one verification round-trip through the resilient fetcher.
// A nil transaction with a nil error means the store rejected the lookup; the
// status and body are returned for fallback classification.
func (v *TransactionVerifier) query(ctx context.Context, baseURL, transactionID, assertion, environment string) (*VerifiedTransaction, int, string, error) {
	url := fmt.Sprintf("%s/inApps/v1/transactions/%s", baseURL, transactionID)
	header := http.Header{}
	header.Set("Authorization", "Bearer "+assertion)

	resp, err := v.fetcher.Fetch(ctx, http.MethodGet, url, header, nil)
	if err != nil {
		return nil, 0, "", errAppStore(fmt.Errorf("app store request failed: %w", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, "", errAppStore(fmt.Errorf("failed to read app store response: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, resp.StatusCode, string(body), nil
	}

	var txResp transactionResponse
	if err := json.Unmarshal(body, &txResp); err != nil {
		return nil, 0, "", errAppStore(fmt.Errorf("failed to parse app store response: %w", err))
	}
	payload, err := decodeSignedTransaction(txResp.SignedTransactionInfo)
	if err != nil {
		return nil, 0, "", errAppStore(err)
	}

	env := payload.Environment
	if env == "" {
		env = environment
	}
	return &VerifiedTransaction{
		BundleID:              payload.BundleID,
		ProductID:             payload.ProductID,
		TransactionID:         payload.TransactionID,
		OriginalTransactionID: payload.OriginalTransactionID,
		PurchaseDate:          time.UnixMilli(payload.PurchaseDate),
		Environment:           env,
		VerifiedByApple:       true,
	}, 0, "", nil
}

// looksLikeSandboxTransaction recognizes production responses that indicate
// the transaction may live in the sandbox store instead.
func looksLikeSandboxTransaction(statusCode int, body string) bool {
	if statusCode == http.StatusNotFound {
		return true
	}
	lower := strings.ToLower(body)
	// 4040010 is the App Store Server API TransactionIdNotFoundError; 21007 is
	// the legacy verifyReceipt code for a sandbox receipt sent to production.
	for _, marker := range []string{"4040010", "21007", "sandbox", "not found"} {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// classifySandboxFailure assigns the terminal error after both environments
// rejected the transaction.
func classifySandboxFailure(prodStatus int, prodBody string, sandboxStatus int, sandboxBody string) *VerificationError {
	lower := strings.ToLower(prodBody)
	detail := fmt.Errorf("production status %d: %s; sandbox status %d: %s",
		prodStatus, prodBody, sandboxStatus, sandboxBody)

	if strings.Contains(lower, "21007") || strings.Contains(lower, "sandbox") {
		verr := newVerificationError(CodeSandboxReceipt,
			"This purchase was made in the test environment and cannot be redeemed here.", detail)
		verr.IsSandbox = true
		return verr
	}

	verr := errTransactionNotFound(detail)
	verr.IsSandbox = true
	return verr
}

// isLocalTestTransaction recognizes locally simulated purchases from
// development builds: short numeric IDs, a zero original transaction ID, or a
// purchase date in the 1970 epoch.
func isLocalTestTransaction(purchase PurchaseInput) bool {
	if isShortNumericID(purchase.TransactionID) {
		return true
	}
	if purchase.OriginalTransactionID == "0" {
		return true
	}
	if t, err := time.Parse(time.RFC3339, purchase.PurchaseDate); err == nil && t.Year() == 1970 {
		return true
	}
	return false
}

func isShortNumericID(id string) bool {
	if id == "" || len(id) > 8 {
		return false
	}
	for _, r := range id {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// synthesizeTestTransaction builds an unverified transaction from the client
// fields so development flows can exercise the grant path end to end.
func synthesizeTestTransaction(purchase PurchaseInput) *VerifiedTransaction {
	purchaseDate := time.Now()
	if t, err := time.Parse(time.RFC3339, purchase.PurchaseDate); err == nil {
		purchaseDate = t
	}
	return &VerifiedTransaction{
		ProductID:             purchase.ProductID,
		TransactionID:         purchase.TransactionID,
		OriginalTransactionID: purchase.OriginalTransactionID,
		PurchaseDate:          purchaseDate,
		Environment:           EnvironmentLocal,
		VerifiedByApple:       false,
	}
}
