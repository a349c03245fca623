package services

// Purchase kinds accepted by the verification endpoint. An absent
// purchase_type means a subscription purchase.
const (
	PurchaseTypePremiumListing = "premium_listing"
	PurchaseTypeSubscription   = "subscription"
)

// PurchaseInput is the client-reported purchase. Everything in it is
// untrusted until the transaction has been verified against the App Store.
type PurchaseInput struct {
	PurchaseType          string `json:"purchase_type"`
	PackageID             string `json:"package_id"`
	ListingID             string `json:"listing_id"`
	ListingType           string `json:"listing_type"`
	ProductID             string `json:"product_id"`
	TransactionID         string `json:"transaction_id"`
	PurchaseDate          string `json:"purchase_date"` // ISO 8601
	OriginalTransactionID string `json:"original_transaction_id"`
}

// Kind normalizes the purchase type discriminant.
func (p PurchaseInput) Kind() string {
	if p.PurchaseType == PurchaseTypePremiumListing {
		return PurchaseTypePremiumListing
	}
	return PurchaseTypeSubscription
}

// Validate rejects incomplete payloads before any network call is made.
func (p PurchaseInput) Validate() error {
	if p.TransactionID == "" {
		return errMissingTransaction("transaction_id is required")
	}
	if p.ProductID == "" {
		return errMissingTransaction("product_id is required")
	}
	if p.Kind() == PurchaseTypePremiumListing {
		if p.PackageID == "" {
			return errMissingTransaction("package_id is required for premium listing purchases")
		}
		if p.ListingID == "" {
			return errMissingTransaction("listing_id is required for premium listing purchases")
		}
		if p.ListingType == "" {
			return errMissingTransaction("listing_type is required for premium listing purchases")
		}
	}
	return nil
}
