package database

import (
	"context"
	"errors"
	"strings"
	"time"

	"payment-webhooks/internal/models"
	"payment-webhooks/pkg/logging"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrNotFound is returned when no transaction matches the lookup
	ErrNotFound = errors.New("transaction not found")
	// ErrPendingConflict is returned when an account already holds a pending one-time transaction
	ErrPendingConflict = errors.New("account already has a pending transaction")
)

// TransactionFilter narrows List results. Zero values are ignored.
type TransactionFilter struct {
	Provider models.Provider
	Account  string
	From     time.Time
	To       time.Time
	Limit    int
}

// TransactionStore persists payment transactions with gorm
type TransactionStore struct {
	db *gorm.DB
}

// NewTransactionStore creates a store on top of db
func NewTransactionStore(db *gorm.DB) *TransactionStore {
	return &TransactionStore{db: db}
}

// Create inserts t unless a row with the same provider transaction id exists.
// It returns the stored row and whether this call created it.
func (s *TransactionStore) Create(ctx context.Context, t *models.Transaction) (*models.Transaction, bool, error) {
	result := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "provider"}, {Name: "provider_transaction_id"}},
			DoNothing: true,
		}).
		Create(t)
	if result.Error != nil {
		if isUniqueViolation(result.Error) {
			// the provider id conflict is absorbed above, so this is the pending index
			return nil, false, ErrPendingConflict
		}
		return nil, false, result.Error
	}

	if result.RowsAffected == 0 {
		existing, err := s.FindByProviderID(ctx, t.Provider, t.ProviderTransactionID)
		if err != nil {
			return nil, false, err
		}
		logging.Debugf("Transaction already exists - provider: %s, id: %s", t.Provider, t.ProviderTransactionID)
		return existing, false, nil
	}
	return t, true, nil
}

// FindByProviderID loads a transaction by its provider identity
func (s *TransactionStore) FindByProviderID(ctx context.Context, provider models.Provider, providerTransactionID string) (*models.Transaction, error) {
	var t models.Transaction
	err := s.db.WithContext(ctx).
		Where("provider = ? AND provider_transaction_id = ?", provider, providerTransactionID).
		First(&t).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &t, nil
}

// FindByID loads a transaction by its row id
func (s *TransactionStore) FindByID(ctx context.Context, id uint) (*models.Transaction, error) {
	var t models.Transaction
	if err := s.db.WithContext(ctx).First(&t, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &t, nil
}

// FindByAccount returns the account's transactions for provider, optionally restricted to states
func (s *TransactionStore) FindByAccount(ctx context.Context, provider models.Provider, account string, states ...models.TransactionState) ([]models.Transaction, error) {
	q := s.db.WithContext(ctx).
		Where("provider = ? AND account_reference = ?", provider, account)
	if len(states) > 0 {
		q = q.Where("state IN ?", states)
	}

	var transactions []models.Transaction
	err := q.Order("created_at ASC, id ASC").Find(&transactions).Error
	return transactions, err
}

// UpdateState applies mutate to the locked row inside a database transaction.
// mutate reports whether it changed the row, only then is the row saved.
// The returned bool is the value mutate reported.
func (s *TransactionStore) UpdateState(ctx context.Context, provider models.Provider, providerTransactionID string, mutate func(*models.Transaction) bool) (*models.Transaction, bool, error) {
	var (
		t       models.Transaction
		changed bool
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// SELECT ... FOR UPDATE, sqlite ignores the locking clause
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("provider = ? AND provider_transaction_id = ?", provider, providerTransactionID).
			First(&t).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}

		if changed = mutate(&t); !changed {
			return nil
		}
		return tx.Save(&t).Error
	})
	if err != nil {
		return nil, false, err
	}
	return &t, changed, nil
}

// List returns transactions matching f ordered by creation time.
// The To bound is inclusive at millisecond precision.
func (s *TransactionStore) List(ctx context.Context, f TransactionFilter) ([]models.Transaction, error) {
	q := s.db.WithContext(ctx).Model(&models.Transaction{})
	if f.Provider != "" {
		q = q.Where("provider = ?", f.Provider)
	}
	if f.Account != "" {
		q = q.Where("account_reference = ?", f.Account)
	}
	if !f.From.IsZero() {
		q = q.Where("created_at >= ?", f.From.UTC())
	}
	if !f.To.IsZero() {
		q = q.Where("created_at < ?", f.To.UTC().Truncate(time.Millisecond).Add(time.Millisecond))
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}

	var transactions []models.Transaction
	err := q.Order("created_at ASC, id ASC").Find(&transactions).Error
	return transactions, err
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "duplicate key")
}
