package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"carflex-purchase-api/internal/database"
	"carflex-purchase-api/internal/models"
	"carflex-purchase-api/pkg/logging"

	"gorm.io/gorm"
)

// EntitlementService turns a verified transaction into exactly one durable
// entitlement change. Idempotency is enforced twice: an existence check for
// fast already-active reporting, and unique indexes (grant transaction ID,
// subscription user+product) so a race between simultaneous requests cannot
// create a duplicate row.
type EntitlementService struct {
	db  *gorm.DB
	now func() time.Time
}

// NewEntitlementService creates the service on a GORM handle.
func NewEntitlementService(db *gorm.DB) *EntitlementService {
	return &EntitlementService{db: db, now: time.Now}
}

// GrantResult reports what an entitlement transition did.
type GrantResult struct {
	AlreadyActive   bool
	DurationDays    int
	SubscriptionEnd time.Time
	Message         string
}

// GrantPremiumListing activates a premium boost for a listing. A duplicate
// purchase for an already-active grant is a no-op reported as already active.
func (s *EntitlementService) GrantPremiumListing(ctx context.Context, userID string, purchase PurchaseInput, tx *VerifiedTransaction) (*GrantResult, error) {
	if existing, err := database.GetActivePremiumGrant(s.db, userID, purchase.ListingID); err == nil {
		logging.Infof("Premium grant already active - user: %s, listing: %s, until: %s",
			userID, purchase.ListingID, existing.EndDate.Format(time.RFC3339))
		return &GrantResult{AlreadyActive: true, Message: "Premium boost is already active for this listing"}, nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	// A redeemed transaction never grants twice, even for another listing.
	if _, err := database.GetPremiumGrantByTransactionID(s.db, tx.TransactionID); err == nil {
		return &GrantResult{AlreadyActive: true, Message: "This purchase has already been redeemed"}, nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	pkg, err := database.GetPackageByID(s.db, purchase.PackageID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errPackageNotFound(purchase.PackageID)
		}
		return nil, err
	}

	start := s.now()
	end := start.AddDate(0, 0, pkg.DurationDays)
	grant := &models.PremiumListingGrant{
		UserID:        userID,
		ListingID:     purchase.ListingID,
		ListingType:   purchase.ListingType,
		PackageID:     pkg.PackageID,
		TransactionID: tx.TransactionID,
		Environment:   tx.Environment,
		StartDate:     start,
		EndDate:       end,
		IsActive:      true,
	}

	err = s.db.WithContext(ctx).Transaction(func(dbtx *gorm.DB) error {
		if err := dbtx.Create(grant).Error; err != nil {
			return err
		}
		return database.CreateNotification(dbtx, &models.Notification{
			UserID: userID,
			Type:   "premium_activated",
			Title:  "Premium boost activated",
			Message: fmt.Sprintf("Your listing is boosted for %d days, until %s.",
				pkg.DurationDays, end.Format("2 January 2006")),
		})
	})
	if err != nil {
		return nil, err
	}

	logging.Infof("Premium grant created - user: %s, listing: %s, package: %s, transaction: %s",
		userID, purchase.ListingID, pkg.PackageID, tx.TransactionID)
	return &GrantResult{DurationDays: pkg.DurationDays, Message: "Premium boost activated"}, nil
}

// ActivateSubscription creates the subscription row on first purchase or
// extends the existing row on renewal, preserving row identity across
// billing periods.
func (s *EntitlementService) ActivateSubscription(ctx context.Context, userID string, tx *VerifiedTransaction) (*GrantResult, error) {
	plan, err := database.GetPlanByProductID(s.db, tx.ProductID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errPlanNotFound(tx.ProductID)
		}
		return nil, err
	}

	periodMonths := plan.PeriodMonths
	if periodMonths <= 0 {
		periodMonths = 1
	}
	periodEnd := s.now().AddDate(0, periodMonths, 0)

	renewal := false
	err = s.db.WithContext(ctx).Transaction(func(dbtx *gorm.DB) error {
		var subscription models.Subscription
		err := dbtx.Where("user_id = ? AND product_id = ?", userID, tx.ProductID).First(&subscription).Error
		switch {
		case err == nil:
			renewal = true
			subscription.Status = "active"
			subscription.CurrentPeriodEnd = periodEnd
			subscription.TransactionID = tx.TransactionID
			if tx.OriginalTransactionID != "" {
				subscription.OriginalTransactionID = tx.OriginalTransactionID
			}
			subscription.Environment = tx.Environment
			if err := dbtx.Save(&subscription).Error; err != nil {
				return err
			}
		case errors.Is(err, gorm.ErrRecordNotFound):
			subscription = models.Subscription{
				UserID:                userID,
				ProductID:             tx.ProductID,
				Status:                "active",
				CurrentPeriodEnd:      periodEnd,
				TransactionID:         tx.TransactionID,
				OriginalTransactionID: tx.OriginalTransactionID,
				Environment:           tx.Environment,
			}
			if err := dbtx.Create(&subscription).Error; err != nil {
				return err
			}
		default:
			return err
		}

		title := "Subscription activated"
		message := fmt.Sprintf("Your %s subscription is active until %s.", plan.Name, periodEnd.Format("2 January 2006"))
		if renewal {
			title = "Subscription renewed"
		}
		return database.CreateNotification(dbtx, &models.Notification{
			UserID:  userID,
			Type:    "subscription_activated",
			Title:   title,
			Message: message,
		})
	})
	if err != nil {
		return nil, err
	}

	action := "created"
	if renewal {
		action = "renewed"
	}
	logging.Infof("Subscription %s - user: %s, product: %s, period_end: %s",
		action, userID, tx.ProductID, periodEnd.Format(time.RFC3339))
	return &GrantResult{SubscriptionEnd: periodEnd, Message: "Subscription activated"}, nil
}
