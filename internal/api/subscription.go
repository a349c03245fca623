package api

import (
	"errors"
	"net/http"
	"time"

	"carflex-purchase-api/internal/database"
	"carflex-purchase-api/internal/response"
	"carflex-purchase-api/internal/services"
	"carflex-purchase-api/pkg/logging"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// SubscriptionStatusResponse reports the user's current subscription state.
type SubscriptionStatusResponse struct {
	Active           bool   `json:"active"`
	ProductID        string `json:"product_id,omitempty"`
	CurrentPeriodEnd string `json:"current_period_end,omitempty"`
}

// GetSubscriptionStatus returns the requesting user's subscription state.
// GET /api/subscription/status
func (h *Handler) GetSubscriptionStatus(c *gin.Context) {
	user := authenticatedUser(c)

	subscription, err := database.GetActiveSubscription(h.DB, user.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			response.SuccessJSON(c, SubscriptionStatusResponse{Active: false})
			return
		}
		logging.Errorf("Subscription status lookup failed - user: %s, error: %v", user.ID, err)
		response.ErrorJSON(c, http.StatusInternalServerError, "Failed to load subscription status")
		return
	}

	response.SuccessJSON(c, SubscriptionStatusResponse{
		Active:           true,
		ProductID:        subscription.ProductID,
		CurrentPeriodEnd: subscription.CurrentPeriodEnd.Format(time.RFC3339),
	})
}

// RestoreSubscription re-verifies the user's most recent subscription
// transaction against the App Store and refreshes the local row. This is the
// "restore purchases" path for reinstalls and device changes.
// POST /api/subscription/restore
func (h *Handler) RestoreSubscription(c *gin.Context) {
	user := authenticatedUser(c)

	subscription, err := database.GetLatestSubscriptionByUser(h.DB, user.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			response.VerifyFailureJSON(c, string(services.CodeTransactionNotFound),
				"no subscription on record for user",
				"We found no previous subscription to restore.", false)
			return
		}
		writeVerificationError(c, err)
		return
	}

	purchase := services.PurchaseInput{
		PurchaseType:          services.PurchaseTypeSubscription,
		ProductID:             subscription.ProductID,
		TransactionID:         subscription.TransactionID,
		OriginalTransactionID: subscription.OriginalTransactionID,
	}

	logging.Infof("Subscription restore started - user: %s, transaction: %s", user.ID, purchase.TransactionID)

	result, err := h.Purchases.VerifyPurchase(c.Request.Context(), user, purchase)
	if err != nil {
		writeVerificationError(c, err)
		return
	}

	body := response.VerifySuccess{
		Success:         true,
		Message:         "Subscription restored",
		AlreadyActive:   result.AlreadyActive,
		VerifiedByApple: result.VerifiedByApple,
	}
	if !result.SubscriptionEnd.IsZero() {
		body.SubscriptionEnd = result.SubscriptionEnd.Format(time.RFC3339)
	}
	c.JSON(http.StatusOK, body)
}

// GetNotifications returns the user's in-app notifications, newest first.
// GET /api/notifications
func (h *Handler) GetNotifications(c *gin.Context) {
	user := authenticatedUser(c)

	notifications, err := database.GetUserNotifications(h.DB, user.ID)
	if err != nil {
		logging.Errorf("Notification lookup failed - user: %s, error: %v", user.ID, err)
		response.ErrorJSON(c, http.StatusInternalServerError, "Failed to load notifications")
		return
	}
	response.SuccessJSON(c, notifications)
}
