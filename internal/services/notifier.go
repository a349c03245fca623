package services

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"carflex-purchase-api/internal/config"
	"carflex-purchase-api/pkg/logging"
)

// BackendNotifier pushes entitlement changes to the CarFlex app backend so it
// can refresh listing visibility and user badges without polling.
type BackendNotifier struct {
	httpClient  *http.Client
	callbackURL string
	secret      string
}

// NewBackendNotifier creates a notifier from configuration. Returns nil when
// no callback URL is configured, which callers treat as "webhook disabled".
func NewBackendNotifier(cfg *config.Config) *BackendNotifier {
	if cfg.BackendWebhookURL == "" {
		return nil
	}
	return &BackendNotifier{
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		callbackURL: cfg.BackendWebhookURL,
		secret:      cfg.BackendWebhookSecret,
	}
}

// EntitlementEvent is the payload sent to the app backend.
type EntitlementEvent struct {
	Event           string    `json:"event"`
	UserID          string    `json:"user_id"`
	PurchaseType    string    `json:"purchase_type"`
	ProductID       string    `json:"product_id"`
	TransactionID   string    `json:"transaction_id"`
	ListingID       string    `json:"listing_id,omitempty"`
	Environment     string    `json:"environment"`
	SubscriptionEnd time.Time `json:"subscription_end,omitempty"`
	Timestamp       string    `json:"timestamp"`
}

// NotifyEntitlementChange sends the event with bounded retry. The entitlement
// itself is already durable; delivery here is best effort.
// Retry schedule: 1s, 5s, 30s (3 attempts total).
func (n *BackendNotifier) NotifyEntitlementChange(event EntitlementEvent) {
	event.Timestamp = time.Now().Format(time.RFC3339)

	retryDelays := []time.Duration{1 * time.Second, 5 * time.Second, 30 * time.Second}
	maxRetries := len(retryDelays)

	for attempt := 0; attempt < maxRetries; attempt++ {
		err := n.send(event)
		if err == nil {
			logging.Infof("Backend webhook sent - event: %s, transaction: %s, attempt: %d",
				event.Event, event.TransactionID, attempt+1)
			return
		}

		logging.Errorf("Backend webhook failed - event: %s, transaction: %s, attempt: %d, error: %v",
			event.Event, event.TransactionID, attempt+1, err)

		if attempt < maxRetries-1 {
			time.Sleep(retryDelays[attempt])
		}
	}

	logging.Errorf("Backend webhook dropped after %d attempts - event: %s, transaction: %s",
		maxRetries, event.Event, event.TransactionID)
}

// send performs a single webhook delivery.
func (n *BackendNotifier) send(event EntitlementEvent) error {
	jsonData, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, n.callbackURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "CarFlex-Purchase-Webhook/1.0")
	if n.secret != "" {
		req.Header.Set("X-CarFlex-Signature", n.signature(jsonData))
	}

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}
	return nil
}

// signature generates the HMAC-SHA256 signature for a webhook payload.
func (n *BackendNotifier) signature(payload []byte) string {
	h := hmac.New(sha256.New, []byte(n.secret))
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil))
}
