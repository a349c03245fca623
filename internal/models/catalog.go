package models

// PremiumPackage is a purchasable listing boost defined by the catalog.
type PremiumPackage struct {
	BaseModel

	PackageID    string `json:"package_id" gorm:"uniqueIndex;not null;size:100"`
	Name         string `json:"name" gorm:"not null"`
	Description  string `json:"description"`
	DurationDays int    `json:"duration_days" gorm:"not null"`
	PriceCents   int64  `json:"price_cents"`
	Currency     string `json:"currency" gorm:"size:3;default:'EUR'"`
	IsActive     bool   `json:"is_active" gorm:"default:true"`
}

// SubscriptionPlan maps a store product ID to a subscription offering.
type SubscriptionPlan struct {
	BaseModel

	ProductID    string `json:"product_id" gorm:"uniqueIndex;not null;size:100"`
	Name         string `json:"name" gorm:"not null"`
	Description  string `json:"description"`
	PeriodMonths int    `json:"period_months" gorm:"default:1"`
	PriceCents   int64  `json:"price_cents"`
	Currency     string `json:"currency" gorm:"size:3;default:'EUR'"`
	IsActive     bool   `json:"is_active" gorm:"default:true"`
}
