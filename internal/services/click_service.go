package services

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"payment-webhooks/internal/config"
	"payment-webhooks/internal/database"
	"payment-webhooks/internal/models"
	"payment-webhooks/pkg/logging"

	"github.com/shopspring/decimal"
)

// Click error codes
const (
	ClickCodeSuccess        = 0
	ClickCodeSignFailed     = -1
	ClickCodeAmount         = -2
	ClickCodeActionNotFound = -3
	ClickCodeUserNotFound   = -5
	ClickCodeInternal       = -7
	ClickCodeBadRequest     = -8
	ClickCodeCancelled      = -9
)

// ClickService reconciles Click prepare/complete callbacks into the transaction store
type ClickService struct {
	store    TransactionRepository
	accounts AccountResolver
	auth     *ClickSignatureVerifier
	amounts  AmountValidator
	locker   KeyLocker
	hooks    Hooks
	observe  CallbackObserver
	now      func() time.Time
}

// NewClickService 创建 Click 回调处理服务
func NewClickService(cfg config.ClickConfig, store TransactionRepository, accounts AccountResolver, locker KeyLocker, hooks Hooks) *ClickService {
	if hooks == nil {
		hooks = NopHooks{}
	}
	if locker == nil {
		locker = NewMemoryLocker()
	}
	return &ClickService{
		store:    store,
		accounts: accounts,
		auth:     NewClickSignatureVerifier(cfg.ServiceID, cfg.SecretKey),
		amounts:  AmountValidator{CommissionPercent: cfg.CommissionPercent},
		locker:   locker,
		hooks:    hooks,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// SetObserver registers a function told about every callback outcome
func (s *ClickService) SetObserver(observe CallbackObserver) {
	s.observe = observe
}

// clickCallback is a validated request
type clickCallback struct {
	req       *models.ClickRequest
	action    int
	amount    decimal.Decimal
	errorCode int
	raw       json.RawMessage
}

func (c *clickCallback) operation() string {
	return clickOperation(strconv.Itoa(c.action))
}

// clickOperation maps the caller-supplied action onto a closed set of names
func clickOperation(action string) string {
	switch strings.TrimSpace(action) {
	case strconv.Itoa(models.ClickActionPrepare):
		return "prepare"
	case strconv.Itoa(models.ClickActionComplete):
		return "complete"
	}
	return "unknown"
}

// Handle processes one callback. It never fails, errors are carried in the response.
func (s *ClickService) Handle(ctx context.Context, req *models.ClickRequest) (resp models.ClickResponse) {
	start := time.Now()
	operation := clickOperation(req.Action)

	defer func() {
		if r := recover(); r != nil {
			logging.Errorf("Panic while handling Click %s: %v", operation, r)
			resp = s.respond(req, nil, errors.New("panic"))
		}
		logging.Infof("Click callback - action: %s, click_trans_id: %s, merchant_trans_id: %s, code: %d, elapsed: %s",
			operation, req.ClickTransID, req.MerchantTransID, resp.Error, time.Since(start))
		if s.observe != nil {
			s.observe(models.ProviderClick, operation, resp.Error, time.Since(start))
		}
	}()

	if err := s.auth.Verify(req); err != nil {
		return s.respond(req, nil, err)
	}

	cb, err := parseClickCallback(req)
	if err != nil {
		return s.respond(req, nil, err)
	}

	t, err := s.reconcile(ctx, cb)
	return s.respond(req, t, err)
}

func parseClickCallback(req *models.ClickRequest) (*clickCallback, error) {
	if strings.TrimSpace(req.ClickTransID) == "" || strings.TrimSpace(req.MerchantTransID) == "" {
		return nil, newCallbackError(ErrInvalidRequest, "Missing transaction id")
	}
	action, err := strconv.Atoi(strings.TrimSpace(req.Action))
	if err != nil {
		return nil, newCallbackError(ErrInvalidRequest, "Invalid action")
	}
	amount, err := decimal.NewFromString(strings.TrimSpace(req.Amount))
	if err != nil {
		return nil, newCallbackError(ErrInvalidRequest, "Invalid amount format")
	}
	errorCode := 0
	if v := strings.TrimSpace(req.Error); v != "" {
		if errorCode, err = strconv.Atoi(v); err != nil {
			return nil, newCallbackError(ErrInvalidRequest, "Invalid error code")
		}
	}

	raw, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	return &clickCallback{req: req, action: action, amount: amount, errorCode: errorCode, raw: raw}, nil
}

func (s *ClickService) reconcile(ctx context.Context, cb *clickCallback) (*models.Transaction, error) {
	ref := strings.TrimSpace(cb.req.MerchantTransID)
	account, err := s.accounts.Resolve(ctx, ref)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return nil, newCallbackError(ErrAccountNotFound, "User not found")
		}
		return nil, err
	}
	if err := s.amounts.ValidateWithCommission(cb.amount, account.AmountDue()); err != nil {
		return nil, err
	}

	id := strings.TrimSpace(cb.req.ClickTransID)
	unlock, err := s.locker.Lock(ctx, lockKey(models.ProviderClick, id))
	if err != nil {
		return nil, err
	}
	defer unlock()

	event := HookEvent{Provider: models.ProviderClick, Method: cb.operation(), Params: cb.raw, Account: account}

	existing, err := s.store.FindByProviderID(ctx, models.ProviderClick, id)
	if err != nil && !errors.Is(err, database.ErrNotFound) {
		return nil, err
	}
	if existing != nil {
		switch {
		case existing.State == models.StatePaid:
			event.Transaction = existing
			s.hooks.TransactionExists(ctx, event)
			return existing, nil
		case existing.State.IsCancelled():
			return existing, newCallbackError(ErrTransactionCancelled, "Transaction cancelled")
		}
	}

	switch cb.action {
	case models.ClickActionPrepare:
		return s.ensureTransaction(ctx, cb, account, existing, event)

	case models.ClickActionComplete:
		t, err := s.ensureTransaction(ctx, cb, account, existing, event)
		if err != nil {
			return nil, err
		}
		if cb.errorCode >= 0 {
			return s.markPaid(ctx, t, event)
		}
		return s.markCancelled(ctx, t, cb.errorCode, event)
	}

	return nil, newCallbackError(ErrUnsupportedMethod, "Action not found")
}

// ensureTransaction returns the existing transaction or creates it in INITIATING
func (s *ClickService) ensureTransaction(ctx context.Context, cb *clickCallback, account Account, existing *models.Transaction, event HookEvent) (*models.Transaction, error) {
	if existing != nil {
		return existing, nil
	}

	ref := strings.TrimSpace(cb.req.MerchantTransID)
	t := &models.Transaction{
		Provider:              models.ProviderClick,
		ProviderTransactionID: strings.TrimSpace(cb.req.ClickTransID),
		AccountReference:      accountReference(account, ref),
		Amount:                cb.amount,
		State:                 models.StateInitiating,
	}
	t.SetMetadata(models.Metadata{
		AccountField: "merchant_trans_id",
		AccountValue: ref,
		RawParams:    cb.raw,
	})

	stored, created, err := s.store.Create(ctx, t)
	if err != nil {
		return nil, err
	}
	event.Transaction = stored
	if created {
		s.hooks.TransactionCreated(ctx, event)
	} else {
		s.hooks.TransactionExists(ctx, event)
	}
	return stored, nil
}

func (s *ClickService) markPaid(ctx context.Context, t *models.Transaction, event HookEvent) (*models.Transaction, error) {
	cancelled := false
	updated, changed, err := s.store.UpdateState(ctx, models.ProviderClick, t.ProviderTransactionID, func(t *models.Transaction) bool {
		if t.State.IsCancelled() {
			cancelled = true
			return false
		}
		return t.MarkPaid(s.now())
	})
	if err != nil {
		return nil, err
	}
	if cancelled {
		return updated, newCallbackError(ErrTransactionCancelled, "Transaction cancelled")
	}
	if changed {
		event.Transaction = updated
		s.hooks.PaymentSucceeded(ctx, event)
	}
	return updated, nil
}

func (s *ClickService) markCancelled(ctx context.Context, t *models.Transaction, errorCode int, event HookEvent) (*models.Transaction, error) {
	reason := errorCode
	updated, changed, err := s.store.UpdateState(ctx, models.ProviderClick, t.ProviderTransactionID, func(t *models.Transaction) bool {
		return t.MarkCancelled(s.now(), &reason)
	})
	if err != nil {
		return nil, err
	}
	if changed {
		event.Transaction = updated
		s.hooks.PaymentCancelled(ctx, event)
	}
	return updated, nil
}

func (s *ClickService) respond(req *models.ClickRequest, t *models.Transaction, err error) models.ClickResponse {
	resp := models.ClickResponse{
		ClickTransID:    req.ClickTransID,
		MerchantTransID: req.MerchantTransID,
	}
	if t != nil {
		id := t.ID
		resp.MerchantPrepareID = &id
		if t.State == models.StatePaid && strings.TrimSpace(req.Action) == strconv.Itoa(models.ClickActionComplete) {
			resp.MerchantConfirmID = &id
		}
	}

	if err == nil {
		resp.Error = ClickCodeSuccess
		resp.ErrorNote = "Success"
		return resp
	}

	resp.Error, resp.ErrorNote = clickError(err)
	if resp.Error == ClickCodeInternal {
		logging.Errorf("Click %s failed: %v", req.Action, err)
	}
	return resp
}

func clickError(err error) (int, string) {
	switch {
	case errors.Is(err, ErrAuth):
		return ClickCodeSignFailed, "SIGN CHECK FAILED!"
	case errors.Is(err, ErrInvalidRequest):
		return ClickCodeBadRequest, "Error in request from click"
	case errors.Is(err, ErrAmountMismatch):
		return ClickCodeAmount, err.Error()
	case errors.Is(err, ErrUnsupportedMethod):
		return ClickCodeActionNotFound, "Action not found"
	case errors.Is(err, ErrAccountNotFound):
		return ClickCodeUserNotFound, "User not found"
	case errors.Is(err, ErrTransactionCancelled):
		return ClickCodeCancelled, "Transaction cancelled"
	}
	return ClickCodeInternal, "Internal error"
}
