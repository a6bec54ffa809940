// Package testutil provides shared helpers for package tests: an in-memory
// migrated database plus seed helpers for periods, categories, and
// transactions.
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/coinconductor/coinconductor/internal/model"
	"github.com/coinconductor/coinconductor/internal/service"
	"github.com/coinconductor/coinconductor/internal/storage"
)

// TestDB wraps an in-memory migrated database with a seeded user.
type TestDB struct {
	Storage service.Storage
	UserID  int64
	t       *testing.T
}

// SetupTestDB creates a new in-memory database, runs migrations, and ensures
// a test user. Cleanup is registered automatically.
func SetupTestDB(t *testing.T) *TestDB {
	t.Helper()

	store, err := storage.NewSQLiteStorage(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	ctx := context.Background()
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	user, err := store.EnsureUser(ctx, "test-user")
	if err != nil {
		t.Fatalf("failed to ensure test user: %v", err)
	}

	t.Cleanup(func() {
		_ = store.Close()
	})

	return &TestDB{
		Storage: store,
		UserID:  user.ID,
		t:       t,
	}
}

// SeedPeriod creates a budget period spanning the given calendar month.
func (db *TestDB) SeedPeriod(ctx context.Context, month string, totalIncome model.Cents) *model.BudgetPeriod {
	db.t.Helper()

	start, err := time.Parse("2006-01", month)
	if err != nil {
		db.t.Fatalf("invalid month %q: %v", month, err)
	}
	end := start.AddDate(0, 1, 0).Add(-time.Nanosecond)

	period, err := db.Storage.CreatePeriod(ctx, db.UserID, month, start, end, totalIncome)
	if err != nil {
		db.t.Fatalf("failed to seed period %q: %v", month, err)
	}
	return period
}

// SeedCategory creates a category for the given month.
func (db *TestDB) SeedCategory(ctx context.Context, name, month string, budget model.Cents) *model.Category {
	db.t.Helper()

	cat, err := db.Storage.CreateCategory(ctx, db.UserID, name, month, budget)
	if err != nil {
		db.t.Fatalf("failed to seed category %q: %v", name, err)
	}
	return cat
}

// SeedTransaction creates a transaction on the given date, optionally
// assigned to a category and period.
func (db *TestDB) SeedTransaction(ctx context.Context, date time.Time, description string, amount model.Cents, categoryID, periodID *int64) *model.Transaction {
	db.t.Helper()

	txn, err := db.Storage.CreateTransaction(ctx, &model.Transaction{
		UserID:         db.UserID,
		Date:           date,
		Description:    description,
		Amount:         amount,
		Source:         model.SourceManual,
		CategoryID:     categoryID,
		BudgetPeriodID: periodID,
	})
	if err != nil {
		db.t.Fatalf("failed to seed transaction %q: %v", description, err)
	}
	return txn
}

// Date is a shorthand for a UTC midnight timestamp.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// ID returns a pointer to the given id, for optional foreign keys.
func ID(v int64) *int64 {
	return &v
}
