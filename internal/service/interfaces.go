// Package service defines the interfaces for all application services.
package service

import (
	"context"
	"time"

	"github.com/coinconductor/coinconductor/internal/model"
)

// TransactionFilter defines filtering options for transaction queries.
// Nil pointer fields are ignored. Unassigned selects only transactions with
// no category.
type TransactionFilter struct {
	StartDate      *time.Time
	EndDate        *time.Time
	CategoryID     *int64
	BudgetPeriodID *int64
	Source         string
	Unassigned     bool
	Limit          int
	Offset         int
}

// Storage defines the contract for the ledger store. Every mutation is a
// single atomic operation and enforces referential and arithmetic invariants
// at write time. All operations are scoped to a user id.
type Storage interface {
	// User operations
	EnsureUser(ctx context.Context, name string) (*model.User, error)

	// Category operations
	CreateCategory(ctx context.Context, userID int64, name, month string, budgetAmount model.Cents) (*model.Category, error)
	GetCategory(ctx context.Context, userID, id int64) (*model.Category, error)
	ListCategories(ctx context.Context, userID int64, month string) ([]model.Category, error)
	UpdateCategory(ctx context.Context, userID, id int64, name string, budgetAmount model.Cents) error
	// DeleteCategory rejects with ErrCategoryInUse while transactions
	// reference the category, unless orphanTransactions atomically nulls
	// their category_id instead.
	DeleteCategory(ctx context.Context, userID, id int64, orphanTransactions bool) error

	// Budget period operations
	CreatePeriod(ctx context.Context, userID int64, name string, start, end time.Time, totalIncome model.Cents) (*model.BudgetPeriod, error)
	GetPeriod(ctx context.Context, userID, id int64) (*model.BudgetPeriod, error)
	ListPeriods(ctx context.Context, userID int64) ([]model.BudgetPeriod, error)
	UpdatePeriod(ctx context.Context, userID int64, period *model.BudgetPeriod) error
	DeletePeriod(ctx context.Context, userID, id int64) error
	GetPeriodCovering(ctx context.Context, userID int64, date time.Time) (*model.BudgetPeriod, error)

	// Allocation operations
	CreateAllocation(ctx context.Context, userID, periodID, categoryID int64, amount model.Cents) (*model.Allocation, error)
	GetAllocation(ctx context.Context, userID, id int64) (*model.Allocation, error)
	GetAllocationsForPeriod(ctx context.Context, userID, periodID int64) ([]model.Allocation, error)
	UpdateAllocation(ctx context.Context, userID, id int64, amount model.Cents) error
	DeleteAllocation(ctx context.Context, userID, id int64) error

	// Transaction operations
	CreateTransaction(ctx context.Context, txn *model.Transaction) (*model.Transaction, error)
	GetTransaction(ctx context.Context, userID int64, id string) (*model.Transaction, error)
	ListTransactions(ctx context.Context, userID int64, filter TransactionFilter) ([]model.Transaction, error)
	// UpdateTransaction is a compare-and-swap on Version; it fails with
	// ErrStaleWrite if the stored version differs from txn.Version.
	UpdateTransaction(ctx context.Context, txn *model.Transaction) (*model.Transaction, error)
	DeleteTransaction(ctx context.Context, userID int64, id string) error
	FindTransactionByExternalID(ctx context.Context, userID, bankAccountID int64, externalID string) (*model.Transaction, error)
	FindTransactionBySourceExternalID(ctx context.Context, userID int64, source, externalID string) (*model.Transaction, error)
	FindTransactionByFingerprint(ctx context.Context, userID int64, source, fingerprint string) (*model.Transaction, error)

	// Bank account operations
	CreateBankAccount(ctx context.Context, account *model.BankAccount) (*model.BankAccount, error)
	GetBankAccount(ctx context.Context, userID, id int64) (*model.BankAccount, error)
	ListBankAccounts(ctx context.Context, userID int64) ([]model.BankAccount, error)
	DeleteBankAccount(ctx context.Context, userID, id int64) error
	TouchBankAccountSynced(ctx context.Context, userID, id int64, at time.Time) error

	// Database management
	Migrate(ctx context.Context) error
	Close() error
}

// TransactionFetcher fetches provider-normalized transactions for a date
// range. Implementations exist for SimpleFIN and GoCardless; the OFX parser
// satisfies the same shape from a statement file.
type TransactionFetcher interface {
	FetchTransactions(ctx context.Context, start, end time.Time) ([]model.ExternalTransaction, error)
}
