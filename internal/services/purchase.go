package services

import (
	"context"
	"time"

	"carflex-purchase-api/internal/config"
	"carflex-purchase-api/pkg/logging"
)

// AuthenticatedUser identifies the requesting user, resolved from the bearer
// token before any purchase processing.
type AuthenticatedUser struct {
	ID    string
	Email string
}

// PurchaseResult is the outcome of a successful verification and grant.
type PurchaseResult struct {
	Message         string
	AlreadyActive   bool
	DurationDays    int
	SubscriptionEnd time.Time
	VerifiedByApple bool
}

// PurchaseService orchestrates one verification request: validate the
// payload, obtain the authoritative transaction, check the bundle, grant the
// entitlement, then fire the audit side effects.
type PurchaseService struct {
	bundleID     string
	verifier     *TransactionVerifier
	entitlements *EntitlementService
	notifier     *BackendNotifier
	mailer       *ReceiptMailer
}

// NewPurchaseService wires the orchestrator. Notifier and mailer are optional.
func NewPurchaseService(cfg config.AppStore, verifier *TransactionVerifier, entitlements *EntitlementService, notifier *BackendNotifier, mailer *ReceiptMailer) *PurchaseService {
	return &PurchaseService{
		bundleID:     cfg.BundleID,
		verifier:     verifier,
		entitlements: entitlements,
		notifier:     notifier,
		mailer:       mailer,
	}
}

// VerifyPurchase runs the full flow for one client-reported purchase. Steps
// are strictly sequential; all errors are tagged VerificationErrors or raw
// datastore errors for the handler to classify.
func (s *PurchaseService) VerifyPurchase(ctx context.Context, user AuthenticatedUser, purchase PurchaseInput) (*PurchaseResult, error) {
	if err := purchase.Validate(); err != nil {
		return nil, err
	}

	tx, err := s.verifier.Verify(ctx, purchase)
	if err != nil {
		return nil, err
	}

	// The client-supplied payload is never trusted for identity: only the
	// authority's decoded bundle counts, and it must be ours.
	if tx.VerifiedByApple && tx.BundleID != s.bundleID {
		return nil, errInvalidBundle(tx.BundleID, s.bundleID)
	}

	var grant *GrantResult
	switch purchase.Kind() {
	case PurchaseTypePremiumListing:
		grant, err = s.entitlements.GrantPremiumListing(ctx, user.ID, purchase, tx)
	default:
		grant, err = s.entitlements.ActivateSubscription(ctx, user.ID, tx)
	}
	if err != nil {
		return nil, err
	}

	if !grant.AlreadyActive {
		s.fireAuditHooks(user, purchase, tx, grant)
	}

	return &PurchaseResult{
		Message:         grant.Message,
		AlreadyActive:   grant.AlreadyActive,
		DurationDays:    grant.DurationDays,
		SubscriptionEnd: grant.SubscriptionEnd,
		VerifiedByApple: tx.VerifiedByApple,
	}, nil
}

// fireAuditHooks sends the backend webhook and receipt email. Both are best
// effort: the entitlement is already durable, so failures are only logged.
func (s *PurchaseService) fireAuditHooks(user AuthenticatedUser, purchase PurchaseInput, tx *VerifiedTransaction, grant *GrantResult) {
	if s.notifier != nil {
		go s.notifier.NotifyEntitlementChange(EntitlementEvent{
			Event:           "entitlement.granted",
			UserID:          user.ID,
			PurchaseType:    purchase.Kind(),
			ProductID:       tx.ProductID,
			TransactionID:   tx.TransactionID,
			ListingID:       purchase.ListingID,
			Environment:     tx.Environment,
			SubscriptionEnd: grant.SubscriptionEnd,
		})
	}
	if s.mailer != nil && user.Email != "" {
		mailUser := user
		go func() {
			if err := s.mailer.SendPurchaseReceipt(mailUser, purchase.Kind(), tx, grant); err != nil {
				logging.Warnf("Receipt email failed - user: %s, transaction: %s, error: %v",
					mailUser.ID, tx.TransactionID, err)
			}
		}()
	}
}
