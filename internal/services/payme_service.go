package services

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"payment-webhooks/internal/config"
	"payment-webhooks/internal/database"
	"payment-webhooks/internal/models"
	"payment-webhooks/pkg/logging"
)

// Payme error codes
const (
	PaymeCodeParse              = -32700
	PaymeCodeInvalidRequest     = -32600
	PaymeCodeMethodNotFound     = -32601
	PaymeCodeAuth               = -32504
	PaymeCodeInternal           = -32400
	PaymeCodeAccount            = -31050
	PaymeCodeAmount             = -31001
	PaymeCodeTransactionMissing = -31003
	PaymeCodeCannotPerform      = -31008
)

// PaymeService reconciles Payme JSON-RPC callbacks into the transaction store
type PaymeService struct {
	store        TransactionRepository
	accounts     AccountResolver
	auth         *CredentialVerifier
	amounts      AmountValidator
	locker       KeyLocker
	hooks        Hooks
	accountField string
	oneTime      bool
	observe      CallbackObserver
	now          func() time.Time
}

// NewPaymeService 创建 Payme 回调处理服务
func NewPaymeService(cfg config.PaymeConfig, store TransactionRepository, accounts AccountResolver, locker KeyLocker, hooks Hooks) *PaymeService {
	if hooks == nil {
		hooks = NopHooks{}
	}
	if locker == nil {
		locker = NewMemoryLocker()
	}
	return &PaymeService{
		store:        store,
		accounts:     accounts,
		auth:         NewCredentialVerifier(cfg.SecretKey),
		amounts:      AmountValidator{Strict: cfg.OneTimePayment},
		locker:       locker,
		hooks:        hooks,
		accountField: cfg.AccountField,
		oneTime:      cfg.OneTimePayment,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// SetObserver registers a function told about every callback outcome
func (s *PaymeService) SetObserver(observe CallbackObserver) {
	s.observe = observe
}

// Handle processes one callback. It never fails, errors are carried in the envelope.
func (s *PaymeService) Handle(ctx context.Context, authHeader string, body []byte) (resp models.PaymeResponse) {
	start := time.Now()
	var (
		req    models.PaymeRequest
		params models.PaymeParams
	)

	defer func() {
		if r := recover(); r != nil {
			logging.Errorf("Panic while handling Payme %s: %v", req.Method, r)
			resp = s.failure(req.ID, req.Method, errors.New("panic"))
		}
		code := 0
		if resp.Error != nil {
			code = resp.Error.Code
		}
		logging.Infof("Payme callback - method: %s, transaction: %s, code: %d, elapsed: %s",
			req.Method, params.ID, code, time.Since(start))
		if s.observe != nil {
			s.observe(models.ProviderPayme, paymeOperation(req.Method), code, time.Since(start))
		}
	}()

	parseErr := json.Unmarshal(body, &req)

	if err := s.auth.Verify(authHeader); err != nil {
		return s.failure(req.ID, req.Method, err)
	}
	if parseErr != nil || req.Method == "" {
		return s.failure(req.ID, req.Method, newCallbackError(ErrParse, "Parse error"))
	}
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return s.failure(req.ID, req.Method, newCallbackError(ErrInvalidRequest, "Invalid params"))
		}
	}

	var (
		result interface{}
		err    error
	)
	switch req.Method {
	case models.PaymeCheckPerformTransaction:
		result, err = s.checkPerformTransaction(ctx, req.Method, &params, req.Params)
	case models.PaymeCreateTransaction:
		result, err = s.createTransaction(ctx, req.Method, &params, req.Params)
	case models.PaymePerformTransaction:
		result, err = s.performTransaction(ctx, req.Method, &params, req.Params)
	case models.PaymeCheckTransaction:
		result, err = s.checkTransaction(ctx, req.Method, &params, req.Params)
	case models.PaymeCancelTransaction:
		result, err = s.cancelTransaction(ctx, req.Method, &params, req.Params)
	case models.PaymeGetStatement:
		result, err = s.getStatement(ctx, req.Method, &params, req.Params)
	default:
		err = newCallbackError(ErrUnsupportedMethod, "Method not supported: %s", req.Method)
	}
	if err != nil {
		return s.failure(req.ID, req.Method, err)
	}

	return models.PaymeResponse{JSONRPC: "2.0", ID: responseID(req.ID), Result: result}
}

// paymeOperation maps the caller-supplied method onto a closed set of names
func paymeOperation(method string) string {
	switch method {
	case models.PaymeCheckPerformTransaction, models.PaymeCreateTransaction, models.PaymePerformTransaction,
		models.PaymeCheckTransaction, models.PaymeCancelTransaction, models.PaymeGetStatement:
		return method
	}
	return "unknown"
}

func (s *PaymeService) failure(id json.RawMessage, method string, err error) models.PaymeResponse {
	code, message := paymeError(err)
	if code == PaymeCodeInternal {
		logging.Errorf("Payme %s failed: %v", method, err)
	}
	return models.PaymeResponse{
		JSONRPC: "2.0",
		ID:      responseID(id),
		Error:   &models.PaymeError{Code: code, Message: message},
	}
}

func paymeError(err error) (int, string) {
	switch {
	case errors.Is(err, ErrAuth):
		return PaymeCodeAuth, err.Error()
	case errors.Is(err, ErrParse):
		return PaymeCodeParse, err.Error()
	case errors.Is(err, ErrInvalidRequest):
		return PaymeCodeInvalidRequest, err.Error()
	case errors.Is(err, ErrUnsupportedMethod):
		return PaymeCodeMethodNotFound, err.Error()
	case errors.Is(err, ErrAccountNotFound), errors.Is(err, ErrAccountBusy):
		return PaymeCodeAccount, err.Error()
	case errors.Is(err, ErrAmountMismatch):
		return PaymeCodeAmount, err.Error()
	case errors.Is(err, ErrTransactionNotFound):
		return PaymeCodeTransactionMissing, err.Error()
	case errors.Is(err, ErrCannotPerform), errors.Is(err, ErrTransactionCancelled):
		return PaymeCodeCannotPerform, err.Error()
	}
	return PaymeCodeInternal, "Internal error"
}

// responseID echoes the request id, 0 when absent
func responseID(id json.RawMessage) json.RawMessage {
	if len(id) == 0 || !json.Valid(id) {
		return json.RawMessage("0")
	}
	return id
}

func (s *PaymeService) resolveAccount(ctx context.Context, params *models.PaymeParams) (Account, string, error) {
	value := params.AccountValue(s.accountField)
	if value == "" {
		return nil, "", newCallbackError(ErrAccountNotFound, "Account not found in parameters")
	}
	account, err := s.accounts.Resolve(ctx, value)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return nil, value, newCallbackError(ErrAccountNotFound, "Account with %s=%s not found", s.accountField, value)
		}
		return nil, value, err
	}
	return account, value, nil
}

func (s *PaymeService) checkPerformTransaction(ctx context.Context, method string, params *models.PaymeParams, raw json.RawMessage) (interface{}, error) {
	account, _, err := s.resolveAccount(ctx, params)
	if err != nil {
		return nil, err
	}
	if err := s.amounts.ValidateMinorUnits(params.Amount, account.AmountDue()); err != nil {
		return nil, err
	}

	s.hooks.BeforeCheckPerform(ctx, HookEvent{Provider: models.ProviderPayme, Method: method, Params: raw, Account: account})
	return models.CheckPerformResult{Allow: true}, nil
}

func (s *PaymeService) createTransaction(ctx context.Context, method string, params *models.PaymeParams, raw json.RawMessage) (interface{}, error) {
	if params.ID == "" {
		return nil, newCallbackError(ErrInvalidRequest, "Missing transaction id")
	}

	account, value, err := s.resolveAccount(ctx, params)
	if err != nil {
		return nil, err
	}
	if err := s.amounts.ValidateMinorUnits(params.Amount, account.AmountDue()); err != nil {
		return nil, err
	}
	reference := accountReference(account, value)

	unlock, err := s.locker.Lock(ctx, lockKey(models.ProviderPayme, params.ID))
	if err != nil {
		return nil, err
	}
	defer unlock()

	if s.oneTime {
		pending, err := s.store.FindByAccount(ctx, models.ProviderPayme, reference, models.PendingStates...)
		if err != nil {
			return nil, err
		}
		for _, t := range pending {
			if t.ProviderTransactionID != params.ID {
				return nil, newCallbackError(ErrAccountBusy, "Account with %s=%s already has a pending transaction", s.accountField, value)
			}
		}
	}

	event := HookEvent{Provider: models.ProviderPayme, Method: method, Params: raw, Account: account}

	existing, err := s.store.FindByProviderID(ctx, models.ProviderPayme, params.ID)
	if err != nil && !errors.Is(err, database.ErrNotFound) {
		return nil, err
	}
	if existing != nil {
		event.Transaction = existing
		s.hooks.TransactionExists(ctx, event)
		return createResult(existing), nil
	}

	t := &models.Transaction{
		Provider:              models.ProviderPayme,
		ProviderTransactionID: params.ID,
		AccountReference:      reference,
		Amount:                models.ParseMinorUnits(params.Amount),
		State:                 models.StateInitiating,
		OneTime:               s.oneTime,
	}
	t.SetMetadata(models.Metadata{
		AccountField: s.accountField,
		AccountValue: value,
		ProviderTime: params.Time,
		RawParams:    raw,
	})

	stored, created, err := s.store.Create(ctx, t)
	if err != nil {
		if errors.Is(err, database.ErrPendingConflict) {
			return nil, newCallbackError(ErrAccountBusy, "Account with %s=%s already has a pending transaction", s.accountField, value)
		}
		return nil, err
	}

	event.Transaction = stored
	if created {
		s.hooks.TransactionCreated(ctx, event)
	} else {
		s.hooks.TransactionExists(ctx, event)
	}
	return createResult(stored), nil
}

func createResult(t *models.Transaction) models.CreateTransactionResult {
	return models.CreateTransactionResult{
		Transaction: t.ProviderTransactionID,
		State:       t.State,
		CreateTime:  t.CreatedAt.UnixMilli(),
	}
}

func (s *PaymeService) performTransaction(ctx context.Context, method string, params *models.PaymeParams, raw json.RawMessage) (interface{}, error) {
	if params.ID == "" {
		return nil, newCallbackError(ErrInvalidRequest, "Missing transaction id")
	}

	unlock, err := s.locker.Lock(ctx, lockKey(models.ProviderPayme, params.ID))
	if err != nil {
		return nil, err
	}
	defer unlock()

	cancelled := false
	t, changed, err := s.store.UpdateState(ctx, models.ProviderPayme, params.ID, func(t *models.Transaction) bool {
		if t.State.IsCancelled() {
			cancelled = true
			return false
		}
		return t.MarkPaid(s.now())
	})
	if err != nil {
		return nil, s.notFound(err, params.ID)
	}
	if cancelled {
		return nil, newCallbackError(ErrCannotPerform, "Transaction %s is cancelled", params.ID)
	}

	if changed {
		s.hooks.PaymentSucceeded(ctx, HookEvent{Provider: models.ProviderPayme, Method: method, Params: raw, Transaction: t})
	}
	return models.PerformTransactionResult{
		Transaction: t.ProviderTransactionID,
		State:       t.State,
		PerformTime: models.UnixMilli(t.PerformedAt),
	}, nil
}

func (s *PaymeService) checkTransaction(ctx context.Context, method string, params *models.PaymeParams, raw json.RawMessage) (interface{}, error) {
	t, err := s.store.FindByProviderID(ctx, models.ProviderPayme, params.ID)
	if err != nil {
		return nil, s.notFound(err, params.ID)
	}

	s.hooks.TransactionChecked(ctx, HookEvent{Provider: models.ProviderPayme, Method: method, Params: raw, Transaction: t})
	return models.CheckTransactionResult{
		Transaction: t.ProviderTransactionID,
		State:       t.State,
		CreateTime:  t.CreatedAt.UnixMilli(),
		PerformTime: models.UnixMilli(t.PerformedAt),
		CancelTime:  models.UnixMilli(t.CancelledAt),
		Reason:      t.Metadata().CancelReason,
	}, nil
}

// cancelTransaction cancels from any state, PAID included. Repeated cancels return the stored data.
func (s *PaymeService) cancelTransaction(ctx context.Context, method string, params *models.PaymeParams, raw json.RawMessage) (interface{}, error) {
	if params.ID == "" {
		return nil, newCallbackError(ErrInvalidRequest, "Missing transaction id")
	}

	unlock, err := s.locker.Lock(ctx, lockKey(models.ProviderPayme, params.ID))
	if err != nil {
		return nil, err
	}
	defer unlock()

	t, changed, err := s.store.UpdateState(ctx, models.ProviderPayme, params.ID, func(t *models.Transaction) bool {
		return t.MarkCancelled(s.now(), params.Reason)
	})
	if err != nil {
		return nil, s.notFound(err, params.ID)
	}

	if changed {
		s.hooks.PaymentCancelled(ctx, HookEvent{Provider: models.ProviderPayme, Method: method, Params: raw, Transaction: t})
	}
	return models.CancelTransactionResult{
		Transaction: t.ProviderTransactionID,
		State:       t.State,
		CancelTime:  models.UnixMilli(t.CancelledAt),
	}, nil
}

func (s *PaymeService) getStatement(ctx context.Context, method string, params *models.PaymeParams, raw json.RawMessage) (interface{}, error) {
	from := time.UnixMilli(0).UTC()
	if params.From > 0 {
		from = time.UnixMilli(params.From).UTC()
	}
	to := s.now()
	if params.To > 0 {
		to = time.UnixMilli(params.To).UTC()
	}

	transactions, err := s.store.List(ctx, database.TransactionFilter{
		Provider: models.ProviderPayme,
		From:     from,
		To:       to,
	})
	if err != nil {
		return nil, err
	}

	entries := make([]models.StatementEntry, 0, len(transactions))
	for i := range transactions {
		entries = append(entries, models.NewStatementEntry(&transactions[i], s.accountField))
	}

	s.hooks.StatementProduced(ctx, HookEvent{Provider: models.ProviderPayme, Method: method, Params: raw, Statement: entries})
	return models.StatementResult{Transactions: entries}, nil
}

func (s *PaymeService) notFound(err error, id string) error {
	if errors.Is(err, database.ErrNotFound) {
		return newCallbackError(ErrTransactionNotFound, "Transaction %s not found", id)
	}
	return err
}
