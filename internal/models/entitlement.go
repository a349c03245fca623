package models

import (
	"time"
)

// PremiumListingGrant records a premium boost purchased for a single listing.
// The transaction ID is unique: a store transaction can be redeemed once, which
// is what makes a retried client request safe against double-granting.
type PremiumListingGrant struct {
	BaseModel

	UserID      string `json:"user_id" gorm:"not null;size:36;index:idx_grant_user_listing"`
	ListingID   string `json:"listing_id" gorm:"not null;size:36;index:idx_grant_user_listing"`
	ListingType string `json:"listing_type" gorm:"size:20"` // sale or rental
	PackageID   string `json:"package_id" gorm:"not null;size:100"`

	TransactionID string `json:"transaction_id" gorm:"not null;size:100;uniqueIndex"`
	Environment   string `json:"environment" gorm:"size:20"` // Production, Sandbox or Local

	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date" gorm:"index"`
	IsActive  bool      `json:"is_active" gorm:"index"`
}

// Subscription is the per-user subscription row. Renewals update the existing
// row for (user_id, product_id) rather than inserting a new one, so the row
// identity survives across billing periods.
type Subscription struct {
	BaseModel

	UserID    string `json:"user_id" gorm:"not null;size:36;uniqueIndex:idx_sub_user_product"`
	ProductID string `json:"product_id" gorm:"not null;size:100;uniqueIndex:idx_sub_user_product"`

	Status           string    `json:"status" gorm:"not null;size:20;index"` // active, expired, cancelled
	CurrentPeriodEnd time.Time `json:"current_period_end" gorm:"index"`

	TransactionID         string `json:"transaction_id" gorm:"size:100"`
	OriginalTransactionID string `json:"original_transaction_id" gorm:"size:100;index"`
	Environment           string `json:"environment" gorm:"size:20"`
}

// Notification is an append-only in-app notification created as a side effect
// of a successful entitlement grant.
type Notification struct {
	BaseModel

	UserID  string `json:"user_id" gorm:"not null;size:36;index"`
	Type    string `json:"type" gorm:"not null;size:50"`
	Title   string `json:"title" gorm:"size:200"`
	Message string `json:"message" gorm:"type:text"`
	Read    bool   `json:"read" gorm:"default:false"`
}
