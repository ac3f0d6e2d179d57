package services

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"payment-webhooks/internal/models"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
)

func paidTransaction() *models.Transaction {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	return &models.Transaction{
		Provider:              models.ProviderPayme,
		ProviderTransactionID: "5f0c1a",
		AccountReference:      "12",
		Amount:                decimal.RequireFromString("150"),
		State:                 models.StatePaid,
		PerformedAt:           &now,
	}
}

func TestWebhookNotifierSignsPayload(t *testing.T) {
	var (
		mu        sync.Mutex
		body      []byte
		signature string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		body, _ = io.ReadAll(r.Body)
		signature = r.Header.Get("X-Payment-Signature")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	wn := NewWebhookNotifier(srv.URL, "hook-secret")
	wn.PaymentSucceeded(context.Background(), HookEvent{Provider: models.ProviderPayme, Transaction: paidTransaction()})

	mu.Lock()
	defer mu.Unlock()
	if signature != generateSignature(body, "hook-secret") {
		t.Fatalf("signature does not match body")
	}
	var payload WebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload.Event != "payment.succeeded" || payload.TransactionID != "5f0c1a" || payload.Amount != "150.00" {
		t.Fatalf("unexpected payload %+v", payload)
	}
	if payload.PerformedAt != 1709294400000 || payload.CancelledAt != 0 {
		t.Fatalf("unexpected timestamps %+v", payload)
	}
}

func TestWebhookNotifierRetries(t *testing.T) {
	var attempts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&attempts, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	wn := NewWebhookNotifier(srv.URL, "")
	wn.retryDelays = []time.Duration{0, 0}
	wn.PaymentCancelled(context.Background(), HookEvent{Provider: models.ProviderClick, Transaction: paidTransaction()})

	if got := atomic.LoadInt32(&attempts); got != 3 {
		t.Fatalf("expected 3 attempts, got %d", got)
	}
}

func TestWebhookNotifierIgnoresOtherHooks(t *testing.T) {
	var attempts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
	}))
	defer srv.Close()

	wn := NewWebhookNotifier(srv.URL, "")
	ctx := context.Background()
	wn.TransactionChecked(ctx, HookEvent{Transaction: paidTransaction()})
	wn.TransactionExists(ctx, HookEvent{Transaction: paidTransaction()})
	wn.PaymentSucceeded(ctx, HookEvent{})

	if got := atomic.LoadInt32(&attempts); got != 0 {
		t.Fatalf("expected no requests, got %d", got)
	}
}

func TestWebhookNotifierStopsAtBudget(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	defer srv.Close()
	defer close(release)

	wn := NewWebhookNotifier(srv.URL, "")
	wn.budget = 100 * time.Millisecond

	start := time.Now()
	wn.PaymentSucceeded(context.Background(), HookEvent{Provider: models.ProviderPayme, Transaction: paidTransaction()})
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("expected delivery to give up within its budget, took %s", elapsed)
	}
}

func TestHookDeliveryBudgetFitsDefaultLockTTL(t *testing.T) {
	// default LOCK_TTL is 10s
	if HookDeliveryBudget >= 10*time.Second {
		t.Fatalf("hook delivery budget %s exceeds the default lock TTL", HookDeliveryBudget)
	}
}

type recordingWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func TestEventPublisher(t *testing.T) {
	w := &recordingWriter{}
	p := NewEventPublisher(w)
	ctx := context.Background()
	e := HookEvent{Provider: models.ProviderPayme, Transaction: paidTransaction()}

	p.TransactionChecked(ctx, e)
	p.StatementProduced(ctx, HookEvent{Provider: models.ProviderPayme})
	p.PaymentSucceeded(ctx, e)

	if len(w.msgs) != 1 {
		t.Fatalf("expected one message, got %d", len(w.msgs))
	}
	msg := w.msgs[0]
	if string(msg.Key) != "payme:5f0c1a" {
		t.Fatalf("unexpected key %q", msg.Key)
	}
	var event TransactionEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if event.Kind != HookPaymentSucceeded || event.State != models.StatePaid || event.Amount != "150.00" {
		t.Fatalf("unexpected event %+v", event)
	}

	// write failures are logged, never propagated
	w.err = errors.New("broker down")
	p.PaymentCancelled(ctx, e)
}

type recordingSender struct {
	to, subject, html, text string
	sent                    int
}

func (s *recordingSender) SendEmail(_ context.Context, to, subject, htmlContent, textContent string) error {
	s.to, s.subject, s.html, s.text = to, subject, htmlContent, textContent
	s.sent++
	return nil
}

func TestPaymentEmailHooks(t *testing.T) {
	sender := &recordingSender{}
	h := NewPaymentEmailHooks(sender, "ops@example.com")
	tx := paidTransaction()
	tx.AccountReference = "<12>"

	h.PaymentSucceeded(context.Background(), HookEvent{Provider: models.ProviderPayme, Transaction: tx})

	if sender.sent != 1 || sender.to != "ops@example.com" {
		t.Fatalf("expected one mail to ops, got %+v", sender)
	}
	if sender.subject != "Payment received - payme order <12>" {
		t.Fatalf("unexpected subject %q", sender.subject)
	}
	if strings.Contains(sender.html, "<12>") || !strings.Contains(sender.html, "&lt;12&gt;") {
		t.Fatalf("expected escaped reference in html body")
	}

	NewPaymentEmailHooks(sender, "").PaymentCancelled(context.Background(), HookEvent{Transaction: tx})
	if sender.sent != 1 {
		t.Fatalf("expected no mail without recipient")
	}
}
