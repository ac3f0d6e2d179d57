package services

import (
	"context"
	"errors"
	"strconv"
	"testing"

	"payment-webhooks/internal/config"
	"payment-webhooks/internal/database"
	"payment-webhooks/internal/models"

	"github.com/shopspring/decimal"
)

const (
	clickServiceID = "77"
	clickSecret    = "click-test-secret"
)

type clickFixture struct {
	svc    *ClickService
	store  *database.TransactionStore
	rec    *hookRecorder
	signer *ClickSignatureVerifier
}

func newClickFixture(t *testing.T, commission string) *clickFixture {
	t.Helper()
	store := database.NewTransactionStore(openTestDB(t))
	rec := newHookRecorder()
	cfg := config.ClickConfig{
		Enabled:           true,
		ServiceID:         clickServiceID,
		SecretKey:         clickSecret,
		CommissionPercent: decimal.RequireFromString(commission),
	}
	accounts := staticAccounts(map[string]string{"1": "100", "2": "100"})
	return &clickFixture{
		svc:    NewClickService(cfg, store, accounts, NewMemoryLocker(), rec.hooks()),
		store:  store,
		rec:    rec,
		signer: NewClickSignatureVerifier(clickServiceID, clickSecret),
	}
}

func (f *clickFixture) request(clickID, order, amount, action, errorCode string) *models.ClickRequest {
	req := &models.ClickRequest{
		ClickTransID:    clickID,
		ServiceID:       clickServiceID,
		ClickPaydocID:   "555",
		MerchantTransID: order,
		Amount:          amount,
		Action:          action,
		Error:           errorCode,
		SignTime:        "2024-01-01 10:00:00",
	}
	req.SignString = f.signer.Sign(req)
	return req
}

func (f *clickFixture) prepare(clickID, order, amount string) models.ClickResponse {
	return f.svc.Handle(context.Background(), f.request(clickID, order, amount, strconv.Itoa(models.ClickActionPrepare), "0"))
}

func (f *clickFixture) complete(clickID, order, amount, errorCode string) models.ClickResponse {
	return f.svc.Handle(context.Background(), f.request(clickID, order, amount, strconv.Itoa(models.ClickActionComplete), errorCode))
}

func expectClickCode(t *testing.T, resp models.ClickResponse, code int) {
	t.Helper()
	if resp.Error != code {
		t.Fatalf("expected click error %d, got %d (%s)", code, resp.Error, resp.ErrorNote)
	}
}

func TestClickRejectsBadSignature(t *testing.T) {
	f := newClickFixture(t, "0")

	tampered := f.request("1001", "1", "100", "0", "0")
	tampered.Amount = "1"
	resp := f.svc.Handle(context.Background(), tampered)
	expectClickCode(t, resp, ClickCodeSignFailed)
	if resp.ClickTransID != "1001" || resp.MerchantTransID != "1" {
		t.Fatalf("expected ids to be echoed, got %+v", resp)
	}

	wrongService := f.request("1001", "1", "100", "0", "0")
	wrongService.ServiceID = "78"
	expectClickCode(t, f.svc.Handle(context.Background(), wrongService), ClickCodeSignFailed)

	unsigned := f.request("1001", "1", "100", "0", "0")
	unsigned.SignString = ""
	expectClickCode(t, f.svc.Handle(context.Background(), unsigned), ClickCodeSignFailed)

	if _, err := f.store.FindByProviderID(context.Background(), models.ProviderClick, "1001"); !errors.Is(err, database.ErrNotFound) {
		t.Fatalf("expected no transaction after auth failures, got %v", err)
	}
}

func TestClickPrepareThenComplete(t *testing.T) {
	f := newClickFixture(t, "0")

	prepared := f.prepare("1001", "1", "100")
	expectClickCode(t, prepared, ClickCodeSuccess)
	if prepared.MerchantPrepareID == nil || prepared.MerchantConfirmID != nil {
		t.Fatalf("expected prepare id only, got %+v", prepared)
	}

	completed := f.complete("1001", "1", "100", "0")
	expectClickCode(t, completed, ClickCodeSuccess)
	if completed.MerchantConfirmID == nil || *completed.MerchantConfirmID != *prepared.MerchantPrepareID {
		t.Fatalf("expected confirm id %d, got %+v", *prepared.MerchantPrepareID, completed)
	}

	stored, err := f.store.FindByProviderID(context.Background(), models.ProviderClick, "1001")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if stored.State != models.StatePaid || stored.PerformedAt == nil {
		t.Fatalf("expected paid transaction, got state %s", stored.State)
	}
	if f.rec.count(HookTransactionCreated) != 1 || f.rec.count(HookPaymentSucceeded) != 1 {
		t.Fatalf("unexpected hook calls %v", f.rec.calls)
	}
}

func TestClickPrepareIsIdempotent(t *testing.T) {
	f := newClickFixture(t, "0")

	first := f.prepare("1001", "1", "100")
	second := f.prepare("1001", "1", "100")
	expectClickCode(t, first, ClickCodeSuccess)
	expectClickCode(t, second, ClickCodeSuccess)
	if *first.MerchantPrepareID != *second.MerchantPrepareID {
		t.Fatalf("expected the same prepare id, got %d and %d", *first.MerchantPrepareID, *second.MerchantPrepareID)
	}

	transactions, _ := f.store.FindByAccount(context.Background(), models.ProviderClick, "1")
	if len(transactions) != 1 {
		t.Fatalf("expected one transaction, got %d", len(transactions))
	}
}

func TestClickCompleteBeforePrepare(t *testing.T) {
	f := newClickFixture(t, "0")

	resp := f.complete("2002", "2", "100", "0")
	expectClickCode(t, resp, ClickCodeSuccess)

	stored, err := f.store.FindByProviderID(context.Background(), models.ProviderClick, "2002")
	if err != nil {
		t.Fatalf("expected transaction to be created, got %v", err)
	}
	if stored.State != models.StatePaid {
		t.Fatalf("expected paid, got %s", stored.State)
	}
	if f.rec.count(HookTransactionCreated) != 1 || f.rec.count(HookPaymentSucceeded) != 1 {
		t.Fatalf("unexpected hook calls %v", f.rec.calls)
	}
}

func TestClickCompleteWithProviderErrorCancels(t *testing.T) {
	f := newClickFixture(t, "0")
	expectClickCode(t, f.prepare("3003", "1", "100"), ClickCodeSuccess)

	resp := f.complete("3003", "1", "100", "-5017")
	expectClickCode(t, resp, ClickCodeSuccess)

	stored, _ := f.store.FindByProviderID(context.Background(), models.ProviderClick, "3003")
	if stored.State != models.StateCancelled || stored.CancelledAt == nil {
		t.Fatalf("expected cancelled transaction, got %s", stored.State)
	}
	if r := stored.Metadata().CancelReason; r == nil || *r != -5017 {
		t.Fatalf("expected reason -5017, got %v", r)
	}
	if f.rec.count(HookPaymentCancelled) != 1 {
		t.Fatalf("expected cancel hook once")
	}

	// neither action resurrects a cancelled transaction
	expectClickCode(t, f.complete("3003", "1", "100", "0"), ClickCodeCancelled)
	expectClickCode(t, f.prepare("3003", "1", "100"), ClickCodeCancelled)
	if f.rec.count(HookPaymentSucceeded) != 0 {
		t.Fatalf("expected no success hook")
	}
}

func TestClickRetriedCompleteOnPaidTransaction(t *testing.T) {
	f := newClickFixture(t, "0")
	expectClickCode(t, f.complete("4004", "1", "100", "0"), ClickCodeSuccess)

	stored, _ := f.store.FindByProviderID(context.Background(), models.ProviderClick, "4004")
	performedAt := *stored.PerformedAt

	resp := f.complete("4004", "1", "100", "0")
	expectClickCode(t, resp, ClickCodeSuccess)
	if resp.MerchantConfirmID == nil {
		t.Fatalf("expected confirm id on retried complete")
	}

	stored, _ = f.store.FindByProviderID(context.Background(), models.ProviderClick, "4004")
	if !stored.PerformedAt.Equal(performedAt) {
		t.Fatalf("expected performed_at to stay %v, got %v", performedAt, stored.PerformedAt)
	}
	if f.rec.count(HookPaymentSucceeded) != 1 || f.rec.count(HookTransactionExists) != 1 {
		t.Fatalf("unexpected hook calls %v", f.rec.calls)
	}
}

func TestClickCommissionTolerance(t *testing.T) {
	tests := []struct {
		amount string
		code   int
	}{
		{"105.00", ClickCodeSuccess},
		{"105.01", ClickCodeSuccess},
		{"104.99", ClickCodeSuccess},
		{"105.02", ClickCodeAmount},
		{"105.04", ClickCodeAmount},
		{"100.00", ClickCodeAmount},
	}

	for i, tt := range tests {
		t.Run(tt.amount, func(t *testing.T) {
			f := newClickFixture(t, "5")
			resp := f.prepare(strconv.Itoa(5000+i), "1", tt.amount)
			expectClickCode(t, resp, tt.code)
		})
	}
}

func TestClickUnknownAccount(t *testing.T) {
	f := newClickFixture(t, "0")
	resp := f.prepare("1001", "999", "100")
	expectClickCode(t, resp, ClickCodeUserNotFound)
	if resp.MerchantPrepareID != nil {
		t.Fatalf("expected no prepare id")
	}
}

func TestClickUnsupportedAction(t *testing.T) {
	f := newClickFixture(t, "0")
	resp := f.svc.Handle(context.Background(), f.request("1001", "1", "100", "7", "0"))
	expectClickCode(t, resp, ClickCodeActionNotFound)
}

func TestClickMalformedFields(t *testing.T) {
	f := newClickFixture(t, "0")

	for _, req := range []*models.ClickRequest{
		f.request("1001", "1", "100", "prepare", "0"),
		f.request("1001", "1", "one hundred", "0", "0"),
		f.request("1001", "1", "100", "1", "oops"),
		f.request("", "1", "100", "0", "0"),
	} {
		expectClickCode(t, f.svc.Handle(context.Background(), req), ClickCodeBadRequest)
	}
}

func TestClickInternalErrorHidesCause(t *testing.T) {
	store := database.NewTransactionStore(openTestDB(t))
	failing := AccountResolverFunc(func(context.Context, string) (Account, error) {
		return nil, errors.New("orders database is down at 10.0.0.5")
	})
	cfg := config.ClickConfig{ServiceID: clickServiceID, SecretKey: clickSecret}
	svc := NewClickService(cfg, store, failing, nil, nil)

	req := (&clickFixture{signer: NewClickSignatureVerifier(clickServiceID, clickSecret)}).request("1001", "1", "100", "0", "0")
	resp := svc.Handle(context.Background(), req)
	expectClickCode(t, resp, ClickCodeInternal)
	if resp.ErrorNote != "Internal error" {
		t.Fatalf("expected generic note, got %q", resp.ErrorNote)
	}
}
