package services

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestPurchaseService(t *testing.T, productionURL, sandboxURL string) *PurchaseService {
	t.Helper()
	cfg, _ := testAppStoreConfig(t)
	return &PurchaseService{
		bundleID:     cfg.BundleID,
		verifier:     newTestVerifier(t, productionURL, sandboxURL),
		entitlements: NewEntitlementService(newTestDB(t)),
	}
}

func TestVerifyPurchaseMissingFieldsFailBeforeNetwork(t *testing.T) {
	var calls int32
	server := httptest.NewServer(rejectingHandler(&calls, http.StatusNotFound, "not found"))
	defer server.Close()

	s := newTestPurchaseService(t, server.URL, server.URL)
	user := AuthenticatedUser{ID: "user-1"}

	tests := []struct {
		name     string
		purchase PurchaseInput
	}{
		{name: "no transaction id", purchase: PurchaseInput{ProductID: "com.carflex.app.pro.monthly"}},
		{name: "no product id", purchase: PurchaseInput{TransactionID: "2000000123456789"}},
		{name: "premium without package", purchase: PurchaseInput{
			PurchaseType:  PurchaseTypePremiumListing,
			ProductID:     "com.carflex.app.boost",
			TransactionID: "2000000123456789",
			ListingID:     "listing-1",
			ListingType:   "sale",
		}},
		{name: "premium without listing", purchase: PurchaseInput{
			PurchaseType:  PurchaseTypePremiumListing,
			ProductID:     "com.carflex.app.boost",
			TransactionID: "2000000123456789",
			PackageID:     "boost_7d",
			ListingType:   "sale",
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.VerifyPurchase(context.Background(), user, tt.purchase)
			require.Error(t, err)

			var verr *VerificationError
			require.True(t, errors.As(err, &verr))
			require.Equal(t, CodeMissingTransaction, verr.Code)
		})
	}

	require.EqualValues(t, 0, atomic.LoadInt32(&calls), "validation failures must not reach the App Store")
}

func TestVerifyPurchaseRejectsForeignBundle(t *testing.T) {
	var prodCalls int32
	payload := appStoreTransactionPayload{
		BundleID:      "com.other.vendor.app",
		ProductID:     "com.carflex.app.pro.monthly",
		TransactionID: "2000000123456789",
		PurchaseDate:  time.Now().UnixMilli(),
		Environment:   "Production",
	}
	prod := httptest.NewServer(transactionHandler(t, &prodCalls, payload))
	defer prod.Close()

	s := newTestPurchaseService(t, prod.URL, prod.URL)
	_, err := s.VerifyPurchase(context.Background(), AuthenticatedUser{ID: "user-1"}, applePurchase("2000000123456789"))
	require.Error(t, err)

	var verr *VerificationError
	require.True(t, errors.As(err, &verr))
	require.Equal(t, CodeInvalidBundle, verr.Code)

	// No entitlement may exist after a bundle rejection.
	db := s.entitlements.db
	var grantCount, subCount int64
	require.NoError(t, db.Table("premium_listing_grant").Count(&grantCount).Error)
	require.NoError(t, db.Table("subscription").Count(&subCount).Error)
	require.Zero(t, grantCount)
	require.Zero(t, subCount)
}

func TestVerifyPurchaseLocalTestTransactionGrants(t *testing.T) {
	var calls int32
	server := httptest.NewServer(rejectingHandler(&calls, http.StatusNotFound, "not found"))
	defer server.Close()

	s := newTestPurchaseService(t, server.URL, server.URL)
	purchase := applePurchase("7")

	result, err := s.VerifyPurchase(context.Background(), AuthenticatedUser{ID: "user-1"}, purchase)
	require.NoError(t, err)

	require.False(t, result.VerifiedByApple)
	require.False(t, result.SubscriptionEnd.IsZero())
	require.EqualValues(t, 0, atomic.LoadInt32(&calls))
}
