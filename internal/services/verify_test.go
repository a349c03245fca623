package services

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// fakeSignedTransaction builds a JWS whose payload decodes without an x5c
// chain, mimicking what the App Store Server API embeds in its response.
func fakeSignedTransaction(t *testing.T, payload appStoreTransactionPayload) string {
	t.Helper()
	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"ES256"}`))
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	signature := base64.RawURLEncoding.EncodeToString([]byte("test-signature"))
	return header + "." + base64.RawURLEncoding.EncodeToString(body) + "." + signature
}

func transactionHandler(t *testing.T, calls *int32, payload appStoreTransactionPayload) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(calls, 1)
		resp := transactionResponse{SignedTransactionInfo: fakeSignedTransaction(t, payload)}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}
}

func rejectingHandler(calls *int32, status int, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(calls, 1)
		w.WriteHeader(status)
		w.Write([]byte(body))
	}
}

func newTestVerifier(t *testing.T, productionURL, sandboxURL string) *TransactionVerifier {
	t.Helper()
	cfg, _ := testAppStoreConfig(t)
	var delays []time.Duration
	return &TransactionVerifier{
		assertions:    NewAssertionGenerator(cfg),
		fetcher:       testFetcher(&delays),
		productionURL: productionURL,
		sandboxURL:    sandboxURL,
	}
}

func applePurchase(transactionID string) PurchaseInput {
	return PurchaseInput{
		ProductID:     "com.carflex.app.pro.monthly",
		TransactionID: transactionID,
		PurchaseDate:  time.Now().Format(time.RFC3339),
	}
}

func TestVerifyProductionSuccessSkipsSandbox(t *testing.T) {
	var prodCalls, sandboxCalls int32
	payload := appStoreTransactionPayload{
		BundleID:      "com.carflex.app",
		ProductID:     "com.carflex.app.pro.monthly",
		TransactionID: "2000000123456789",
		PurchaseDate:  time.Now().UnixMilli(),
		Environment:   "Production",
	}

	prod := httptest.NewServer(transactionHandler(t, &prodCalls, payload))
	defer prod.Close()
	sandbox := httptest.NewServer(rejectingHandler(&sandboxCalls, http.StatusNotFound, "not found"))
	defer sandbox.Close()

	v := newTestVerifier(t, prod.URL, sandbox.URL)
	tx, err := v.Verify(context.Background(), applePurchase("2000000123456789"))
	require.NoError(t, err)

	require.True(t, tx.VerifiedByApple)
	require.Equal(t, "com.carflex.app", tx.BundleID)
	require.Equal(t, EnvironmentProduction, tx.Environment)
	require.EqualValues(t, 1, atomic.LoadInt32(&prodCalls))
	require.EqualValues(t, 0, atomic.LoadInt32(&sandboxCalls), "sandbox must not be queried when production resolves")
}

func TestVerifyFallsBackToSandboxOnNotFound(t *testing.T) {
	var prodCalls, sandboxCalls int32
	payload := appStoreTransactionPayload{
		BundleID:      "com.carflex.app",
		ProductID:     "com.carflex.app.pro.monthly",
		TransactionID: "2000000987654321",
		PurchaseDate:  time.Now().UnixMilli(),
		Environment:   "Sandbox",
	}

	prod := httptest.NewServer(rejectingHandler(&prodCalls, http.StatusNotFound, `{"errorCode":4040010}`))
	defer prod.Close()
	sandbox := httptest.NewServer(transactionHandler(t, &sandboxCalls, payload))
	defer sandbox.Close()

	v := newTestVerifier(t, prod.URL, sandbox.URL)
	tx, err := v.Verify(context.Background(), applePurchase("2000000987654321"))
	require.NoError(t, err)

	require.True(t, tx.VerifiedByApple)
	require.Equal(t, EnvironmentSandbox, tx.Environment)
	require.EqualValues(t, 1, atomic.LoadInt32(&prodCalls))
	require.EqualValues(t, 1, atomic.LoadInt32(&sandboxCalls))
}

func TestVerifyBothEnvironmentsRejecting(t *testing.T) {
	var prodCalls, sandboxCalls int32
	prod := httptest.NewServer(rejectingHandler(&prodCalls, http.StatusNotFound, "transaction not found"))
	defer prod.Close()
	sandbox := httptest.NewServer(rejectingHandler(&sandboxCalls, http.StatusNotFound, "transaction not found"))
	defer sandbox.Close()

	v := newTestVerifier(t, prod.URL, sandbox.URL)
	_, err := v.Verify(context.Background(), applePurchase("2000000111111111"))
	require.Error(t, err)

	verr := requireVerificationError(t, err)
	require.Equal(t, CodeTransactionNotFound, verr.Code)
	require.True(t, verr.IsSandbox)
	require.EqualValues(t, 1, atomic.LoadInt32(&sandboxCalls))
}

func TestVerifyLegacySandboxReceiptCode(t *testing.T) {
	var prodCalls, sandboxCalls int32
	prod := httptest.NewServer(rejectingHandler(&prodCalls, http.StatusBadRequest, `{"status":21007}`))
	defer prod.Close()
	sandbox := httptest.NewServer(rejectingHandler(&sandboxCalls, http.StatusNotFound, "not found"))
	defer sandbox.Close()

	v := newTestVerifier(t, prod.URL, sandbox.URL)
	_, err := v.Verify(context.Background(), applePurchase("2000000222222222"))
	require.Error(t, err)

	verr := requireVerificationError(t, err)
	require.Equal(t, CodeSandboxReceipt, verr.Code)
	require.True(t, verr.IsSandbox)
	require.EqualValues(t, 1, atomic.LoadInt32(&sandboxCalls), "sandbox must be probed before failing")
}

func TestVerifyNonSandboxFailureDoesNotProbeSandbox(t *testing.T) {
	var prodCalls, sandboxCalls int32
	prod := httptest.NewServer(rejectingHandler(&prodCalls, http.StatusUnauthorized, "invalid token"))
	defer prod.Close()
	sandbox := httptest.NewServer(rejectingHandler(&sandboxCalls, http.StatusNotFound, "not found"))
	defer sandbox.Close()

	v := newTestVerifier(t, prod.URL, sandbox.URL)
	_, err := v.Verify(context.Background(), applePurchase("2000000333333333"))
	require.Error(t, err)

	verr := requireVerificationError(t, err)
	require.Equal(t, CodeAppStoreError, verr.Code)
	require.EqualValues(t, 0, atomic.LoadInt32(&sandboxCalls))
}

func TestVerifyLocalTestTransactionNeverCallsOut(t *testing.T) {
	var prodCalls, sandboxCalls int32
	prod := httptest.NewServer(rejectingHandler(&prodCalls, http.StatusNotFound, "not found"))
	defer prod.Close()
	sandbox := httptest.NewServer(rejectingHandler(&sandboxCalls, http.StatusNotFound, "not found"))
	defer sandbox.Close()

	v := newTestVerifier(t, prod.URL, sandbox.URL)
	tx, err := v.Verify(context.Background(), applePurchase("7"))
	require.NoError(t, err)

	require.False(t, tx.VerifiedByApple)
	require.Equal(t, EnvironmentLocal, tx.Environment)
	require.Equal(t, "7", tx.TransactionID)
	require.EqualValues(t, 0, atomic.LoadInt32(&prodCalls))
	require.EqualValues(t, 0, atomic.LoadInt32(&sandboxCalls))
}

func TestIsLocalTestTransaction(t *testing.T) {
	tests := []struct {
		name     string
		purchase PurchaseInput
		want     bool
	}{
		{name: "short numeric id", purchase: PurchaseInput{TransactionID: "7"}, want: true},
		{name: "eight digit id", purchase: PurchaseInput{TransactionID: "12345678"}, want: true},
		{name: "nine digit id", purchase: PurchaseInput{TransactionID: "123456789"}, want: false},
		{name: "zero original id", purchase: PurchaseInput{TransactionID: "2000000123456789", OriginalTransactionID: "0"}, want: true},
		{name: "epoch purchase date", purchase: PurchaseInput{TransactionID: "2000000123456789", PurchaseDate: "1970-01-01T00:00:00Z"}, want: true},
		{name: "real transaction", purchase: PurchaseInput{TransactionID: "2000000123456789", PurchaseDate: "2026-03-01T10:00:00Z"}, want: false},
		{name: "short alphanumeric id", purchase: PurchaseInput{TransactionID: "abc123"}, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isLocalTestTransaction(tt.purchase); got != tt.want {
				t.Fatalf("isLocalTestTransaction(%+v) = %v, want %v", tt.purchase, got, tt.want)
			}
		})
	}
}

func requireVerificationError(t *testing.T, err error) *VerificationError {
	t.Helper()
	verr, ok := err.(*VerificationError)
	require.True(t, ok, "expected *VerificationError, got %T: %v", err, err)
	return verr
}
