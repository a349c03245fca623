package services

import (
	"context"
	"fmt"
	"time"

	"carflex-purchase-api/internal/config"
	"carflex-purchase-api/pkg/logging"

	brevo "github.com/getbrevo/brevo-go/lib"
)

// ReceiptMailer sends purchase receipt emails through Brevo.
type ReceiptMailer struct {
	client    *brevo.APIClient
	fromEmail string
	fromName  string
}

// NewReceiptMailer creates a mailer from configuration. Returns nil when no
// Brevo API key is configured, which callers treat as "email disabled".
func NewReceiptMailer(cfg *config.Config) *ReceiptMailer {
	if cfg.BrevoAPIKey == "" || cfg.BrevoFromEmail == "" {
		return nil
	}

	apiCfg := brevo.NewConfiguration()
	apiCfg.AddDefaultHeader("api-key", cfg.BrevoAPIKey)

	return &ReceiptMailer{
		client:    brevo.NewAPIClient(apiCfg),
		fromEmail: cfg.BrevoFromEmail,
		fromName:  cfg.BrevoFromName,
	}
}

// SendPurchaseReceipt emails a confirmation for a freshly granted entitlement.
func (m *ReceiptMailer) SendPurchaseReceipt(user AuthenticatedUser, purchaseKind string, tx *VerifiedTransaction, grant *GrantResult) error {
	subject := "Your CarFlex purchase"
	var detail string
	if purchaseKind == PurchaseTypePremiumListing {
		subject = "Your CarFlex premium boost"
		detail = fmt.Sprintf("Your listing is boosted for %d days.", grant.DurationDays)
	} else {
		subject = "Your CarFlex subscription"
		detail = fmt.Sprintf("Your subscription is active until %s.", grant.SubscriptionEnd.Format("2 January 2006"))
	}

	htmlContent := fmt.Sprintf(`
		<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto; padding: 20px;">
			<h2>Thank you for your purchase</h2>
			<p>%s</p>
			<p style="color: #888; font-size: 12px;">Transaction %s, %s</p>
		</div>`,
		detail, tx.TransactionID, tx.PurchaseDate.Format("2 January 2006 15:04"))

	email := brevo.SendSmtpEmail{
		Sender: &brevo.SendSmtpEmailSender{
			Name:  m.fromName,
			Email: m.fromEmail,
		},
		To: []brevo.SendSmtpEmailTo{
			{Email: user.Email},
		},
		Subject:     subject,
		HtmlContent: htmlContent,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if _, _, err := m.client.TransactionalEmailsApi.SendTransacEmail(ctx, email); err != nil {
		return fmt.Errorf("failed to send receipt email: %w", err)
	}

	logging.Infof("Receipt email sent - user: %s, transaction: %s", user.ID, tx.TransactionID)
	return nil
}
