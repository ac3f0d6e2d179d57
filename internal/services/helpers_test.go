package services

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"payment-webhooks/internal/database"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.Open("", fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := database.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

type testAccount struct {
	amount decimal.Decimal
}

func (a testAccount) AmountDue() decimal.Decimal { return a.amount }

// staticAccounts resolves references from a fixed map of amounts
func staticAccounts(amounts map[string]string) AccountResolver {
	return AccountResolverFunc(func(_ context.Context, ref string) (Account, error) {
		v, ok := amounts[ref]
		if !ok {
			return nil, ErrAccountNotFound
		}
		return testAccount{amount: decimal.RequireFromString(v)}, nil
	})
}

// hookRecorder counts hook invocations per kind
type hookRecorder struct {
	mu     sync.Mutex
	calls  map[HookKind]int
	events []HookEvent
}

func newHookRecorder() *hookRecorder {
	return &hookRecorder{calls: make(map[HookKind]int)}
}

func (r *hookRecorder) hooks() Hooks {
	return NewEventHooks(func(_ context.Context, kind HookKind, e HookEvent) {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.calls[kind]++
		r.events = append(r.events, e)
	})
}

func (r *hookRecorder) count(kind HookKind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[kind]
}
