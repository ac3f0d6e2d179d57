package services

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"payment-webhooks/internal/models"
	"payment-webhooks/pkg/logging"
)

// WebhookNotifier forwards transaction lifecycle events to the merchant backend
type WebhookNotifier struct {
	NopHooks
	callbackURL string
	secret      string
	httpClient  *http.Client
	retryDelays []time.Duration
	budget      time.Duration // bounds all attempts of one notification
}

// NewWebhookNotifier creates a new webhook notifier
func NewWebhookNotifier(callbackURL, secret string) *WebhookNotifier {
	return &WebhookNotifier{
		callbackURL: callbackURL,
		secret:      secret,
		httpClient: &http.Client{
			Timeout: 2 * time.Second,
		},
		retryDelays: []time.Duration{200 * time.Millisecond, 500 * time.Millisecond},
		budget:      notifyBudget,
	}
}

// WebhookPayload represents the payload sent to the merchant backend
type WebhookPayload struct {
	Event            string `json:"event"` // e.g. "payment.succeeded"
	Provider         string `json:"provider"`
	TransactionID    string `json:"transaction_id"`
	AccountReference string `json:"account_reference"`
	Amount           string `json:"amount"`
	State            int    `json:"state"`
	PerformedAt      int64  `json:"performed_at,omitempty"` // ms
	CancelledAt      int64  `json:"cancelled_at,omitempty"` // ms
	Timestamp        string `json:"timestamp"`              // RFC 3339
}

func (wn *WebhookNotifier) TransactionCreated(ctx context.Context, e HookEvent) {
	wn.notify(ctx, "transaction.created", e.Provider, e.Transaction)
}

func (wn *WebhookNotifier) PaymentSucceeded(ctx context.Context, e HookEvent) {
	wn.notify(ctx, "payment.succeeded", e.Provider, e.Transaction)
}

func (wn *WebhookNotifier) PaymentCancelled(ctx context.Context, e HookEvent) {
	wn.notify(ctx, "payment.cancelled", e.Provider, e.Transaction)
}

func (wn *WebhookNotifier) notify(ctx context.Context, event string, provider models.Provider, t *models.Transaction) {
	if wn.callbackURL == "" || t == nil {
		return
	}

	payload := WebhookPayload{
		Event:            event,
		Provider:         string(provider),
		TransactionID:    t.ProviderTransactionID,
		AccountReference: t.AccountReference,
		Amount:           t.Amount.StringFixed(2),
		State:            int(t.State),
		PerformedAt:      models.UnixMilli(t.PerformedAt),
		CancelledAt:      models.UnixMilli(t.CancelledAt),
		Timestamp:        time.Now().UTC().Format(time.RFC3339),
	}

	// hooks run under the transaction key lock
	ctx, cancel := context.WithTimeout(ctx, wn.budget)
	defer cancel()
	wn.sendWithRetry(ctx, payload)
}

// sendWithRetry tries once plus one attempt per retry delay
func (wn *WebhookNotifier) sendWithRetry(ctx context.Context, payload WebhookPayload) {
	maxAttempts := len(wn.retryDelays) + 1

	for attempt := 0; attempt < maxAttempts; attempt++ {
		err := wn.sendWebhook(ctx, payload)
		if err == nil {
			logging.Infof("Webhook notification sent successfully - event: %s, transaction: %s, attempt: %d",
				payload.Event, payload.TransactionID, attempt+1)
			return
		}

		logging.Errorf("Webhook notification failed - event: %s, transaction: %s, attempt: %d, error: %v",
			payload.Event, payload.TransactionID, attempt+1, err)

		if attempt < maxAttempts-1 {
			select {
			case <-ctx.Done():
				logging.Errorf("Webhook notification abandoned - event: %s, transaction: %s: %v",
					payload.Event, payload.TransactionID, ctx.Err())
				return
			case <-time.After(wn.retryDelays[attempt]):
			}
		}
	}

	logging.Errorf("Webhook notification failed after %d attempts - event: %s, transaction: %s",
		maxAttempts, payload.Event, payload.TransactionID)
}

// sendWebhook sends a single webhook request
func (wn *WebhookNotifier) sendWebhook(ctx context.Context, payload WebhookPayload) error {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, wn.callbackURL, bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "PaymentWebhooks/1.0")

	if wn.secret != "" {
		req.Header.Set("X-Payment-Signature", generateSignature(jsonData, wn.secret))
	}

	resp, err := wn.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	return nil
}

// generateSignature generates HMAC-SHA256 signature for webhook payload
func generateSignature(payload []byte, secret string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil))
}
