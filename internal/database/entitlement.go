package database

import (
	"time"

	"carflex-purchase-api/internal/models"

	"gorm.io/gorm"
)

// GetActivePremiumGrant returns the active grant for a listing, if any.
func GetActivePremiumGrant(db *gorm.DB, userID, listingID string) (*models.PremiumListingGrant, error) {
	var grant models.PremiumListingGrant
	err := db.Where("user_id = ? AND listing_id = ? AND is_active = ? AND end_date > ?",
		userID, listingID, true, time.Now()).First(&grant).Error
	if err != nil {
		return nil, err
	}
	return &grant, nil
}

// GetPremiumGrantByTransactionID returns the grant created for a store transaction.
func GetPremiumGrantByTransactionID(db *gorm.DB, transactionID string) (*models.PremiumListingGrant, error) {
	var grant models.PremiumListingGrant
	err := db.Where("transaction_id = ?", transactionID).First(&grant).Error
	if err != nil {
		return nil, err
	}
	return &grant, nil
}

// GetSubscription returns the subscription row for a user and product.
func GetSubscription(db *gorm.DB, userID, productID string) (*models.Subscription, error) {
	var subscription models.Subscription
	err := db.Where("user_id = ? AND product_id = ?", userID, productID).First(&subscription).Error
	if err != nil {
		return nil, err
	}
	return &subscription, nil
}

// GetLatestSubscriptionByUser returns the most recent subscription for a user,
// used by the restore purchases flow.
func GetLatestSubscriptionByUser(db *gorm.DB, userID string) (*models.Subscription, error) {
	var subscription models.Subscription
	err := db.Where("user_id = ?", userID).Order("created_at DESC").First(&subscription).Error
	if err != nil {
		return nil, err
	}
	return &subscription, nil
}

// GetActiveSubscription returns the user's currently active subscription, if any.
func GetActiveSubscription(db *gorm.DB, userID string) (*models.Subscription, error) {
	var subscription models.Subscription
	err := db.Where("user_id = ? AND status = ? AND current_period_end > ?",
		userID, "active", time.Now()).First(&subscription).Error
	if err != nil {
		return nil, err
	}
	return &subscription, nil
}

// GetPackageByID returns an active premium package from the catalog.
func GetPackageByID(db *gorm.DB, packageID string) (*models.PremiumPackage, error) {
	var pkg models.PremiumPackage
	err := db.Where("package_id = ? AND is_active = ?", packageID, true).First(&pkg).Error
	if err != nil {
		return nil, err
	}
	return &pkg, nil
}

// GetPlanByProductID returns an active subscription plan from the catalog.
func GetPlanByProductID(db *gorm.DB, productID string) (*models.SubscriptionPlan, error) {
	var plan models.SubscriptionPlan
	err := db.Where("product_id = ? AND is_active = ?", productID, true).First(&plan).Error
	if err != nil {
		return nil, err
	}
	return &plan, nil
}

// CreateNotification inserts an in-app notification row.
func CreateNotification(db *gorm.DB, notification *models.Notification) error {
	return db.Create(notification).Error
}

// GetUserNotifications returns the user's notifications, newest first.
func GetUserNotifications(db *gorm.DB, userID string) ([]models.Notification, error) {
	var notifications []models.Notification
	err := db.Where("user_id = ?", userID).Order("created_at DESC").Find(&notifications).Error
	return notifications, err
}
