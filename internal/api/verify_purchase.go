package api

import (
	"errors"
	"net/http"
	"time"

	"carflex-purchase-api/internal/middleware"
	"carflex-purchase-api/internal/response"
	"carflex-purchase-api/internal/services"
	"carflex-purchase-api/pkg/logging"

	"github.com/gin-gonic/gin"
)

// VerifyPurchase verifies a client-reported in-app purchase and grants the
// corresponding entitlement.
// POST /api/purchase/verify
func (h *Handler) VerifyPurchase(c *gin.Context) {
	var purchase services.PurchaseInput
	if err := c.ShouldBindJSON(&purchase); err != nil {
		response.VerifyFailureJSON(c, string(services.CodeUnknownError),
			"invalid request body: "+err.Error(),
			"Purchase data could not be read. Please retry the purchase.", false)
		return
	}

	user := authenticatedUser(c)
	logging.Infof("Purchase verification started - user: %s, type: %s, transaction: %s",
		user.ID, purchase.Kind(), purchase.TransactionID)

	result, err := h.Purchases.VerifyPurchase(c.Request.Context(), user, purchase)
	if err != nil {
		writeVerificationError(c, err)
		return
	}

	body := response.VerifySuccess{
		Success:         true,
		Message:         result.Message,
		AlreadyActive:   result.AlreadyActive,
		DurationDays:    result.DurationDays,
		VerifiedByApple: result.VerifiedByApple,
	}
	if !result.SubscriptionEnd.IsZero() {
		body.SubscriptionEnd = result.SubscriptionEnd.Format(time.RFC3339)
	}
	c.JSON(http.StatusOK, body)
}

// writeVerificationError maps a tagged verification error onto the structured
// failure body. Untagged errors (datastore failures) become UNKNOWN_ERROR.
func writeVerificationError(c *gin.Context, err error) {
	var verr *services.VerificationError
	if errors.As(err, &verr) {
		logging.Errorf("Purchase verification failed - code: %s, error: %v", verr.Code, verr.Err)
		response.VerifyFailureJSON(c, string(verr.Code), verr.Error(), verr.UserMessage, verr.IsSandbox)
		return
	}

	logging.Errorf("Purchase verification failed - unexpected error: %v", err)
	response.VerifyFailureJSON(c, string(services.CodeUnknownError), err.Error(),
		"Something went wrong while confirming your purchase. Please contact support.", false)
}

// authenticatedUser reads the identity set by the auth middleware.
func authenticatedUser(c *gin.Context) services.AuthenticatedUser {
	user := services.AuthenticatedUser{}
	if id, ok := c.Get(middleware.ContextUserID); ok {
		user.ID, _ = id.(string)
	}
	if email, ok := c.Get(middleware.ContextUserEmail); ok {
		user.Email, _ = email.(string)
	}
	return user
}
