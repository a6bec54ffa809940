package budget_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coinconductor/coinconductor/internal/budget"
	"github.com/coinconductor/coinconductor/internal/ledger"
	"github.com/coinconductor/coinconductor/internal/model"
	"github.com/coinconductor/coinconductor/internal/testutil"
)

func TestSummarize(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()
	engine := budget.New(db.Storage)

	period := db.SeedPeriod(ctx, "2025-03", 300000)
	groceries := db.SeedCategory(ctx, "Groceries", "2025-03", 40000)
	dining := db.SeedCategory(ctx, "Dining", "2025-03", 20000)

	_, err := db.Storage.CreateAllocation(ctx, db.UserID, period.ID, groceries.ID, 40000)
	require.NoError(t, err)
	_, err = db.Storage.CreateAllocation(ctx, db.UserID, period.ID, dining.ID, 15000)
	require.NoError(t, err)

	db.SeedTransaction(ctx, testutil.Date(2025, 3, 5), "Market", 32045, &groceries.ID, &period.ID)
	// A refund credits the envelope back.
	db.SeedTransaction(ctx, testutil.Date(2025, 3, 9), "Market refund", -4567, &groceries.ID, &period.ID)
	db.SeedTransaction(ctx, testutil.Date(2025, 3, 12), "Ramen", 2300, &dining.ID, &period.ID)
	db.SeedTransaction(ctx, testutil.Date(2025, 3, 20), "Mystery charge", 999, nil, &period.ID)

	summary, err := engine.Summarize(ctx, db.UserID, period.ID)
	require.NoError(t, err)

	assert.Equal(t, model.Cents(300000), summary.TotalIncome)
	assert.Equal(t, model.Cents(55000), summary.TotalAllocated)
	assert.Equal(t, model.Cents(245000), summary.Unallocated)
	assert.Equal(t, model.Cents(29778), summary.TotalSpent)
	assert.Equal(t, model.Cents(25222), summary.TotalRemaining)
	assert.Equal(t, model.Cents(999), summary.UnassignedSpend)
	assert.Equal(t, model.Cents(0), summary.UnallocatedSpend)

	require.Len(t, summary.Allocations, 2)
	byName := make(map[string]budget.AllocationView, 2)
	for _, view := range summary.Allocations {
		byName[view.CategoryName] = view
	}
	assert.Equal(t, model.Cents(27478), byName["Groceries"].Spent)
	assert.Equal(t, model.Cents(12522), byName["Groceries"].Remaining)
	assert.Equal(t, model.Cents(2300), byName["Dining"].Spent)
	assert.Equal(t, model.Cents(12700), byName["Dining"].Remaining)
}

func TestSummarizeOverAllocated(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()
	engine := budget.New(db.Storage)

	period := db.SeedPeriod(ctx, "2025-03", 100000)
	rent := db.SeedCategory(ctx, "Rent", "2025-03", 120000)

	_, err := db.Storage.CreateAllocation(ctx, db.UserID, period.ID, rent.ID, 120000)
	require.NoError(t, err)

	summary, err := engine.Summarize(ctx, db.UserID, period.ID)
	require.NoError(t, err)
	assert.Equal(t, model.Cents(-20000), summary.Unallocated,
		"over-allocation is surfaced, not rejected")
}

func TestSummarizeUnallocatedSpendBucket(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()
	engine := budget.New(db.Storage)

	period := db.SeedPeriod(ctx, "2025-03", 100000)
	cat := db.SeedCategory(ctx, "Groceries", "2025-03", 40000)

	alloc, err := db.Storage.CreateAllocation(ctx, db.UserID, period.ID, cat.ID, 40000)
	require.NoError(t, err)
	db.SeedTransaction(ctx, testutil.Date(2025, 3, 5), "Market", 2500, &cat.ID, &period.ID)

	// Deleting the envelope must not hide its spend.
	require.NoError(t, db.Storage.DeleteAllocation(ctx, db.UserID, alloc.ID))

	summary, err := engine.Summarize(ctx, db.UserID, period.ID)
	require.NoError(t, err)
	assert.Empty(t, summary.Allocations)
	assert.Equal(t, model.Cents(0), summary.TotalSpent)
	assert.Equal(t, model.Cents(2500), summary.UnallocatedSpend)
}

func TestReassignmentConservesSpend(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()
	engine := budget.New(db.Storage)

	period := db.SeedPeriod(ctx, "2025-03", 300000)
	groceries := db.SeedCategory(ctx, "Groceries", "2025-03", 40000)
	dining := db.SeedCategory(ctx, "Dining", "2025-03", 20000)

	_, err := db.Storage.CreateAllocation(ctx, db.UserID, period.ID, groceries.ID, 40000)
	require.NoError(t, err)
	_, err = db.Storage.CreateAllocation(ctx, db.UserID, period.ID, dining.ID, 15000)
	require.NoError(t, err)

	txn := db.SeedTransaction(ctx, testutil.Date(2025, 3, 12), "Ramen", 2300, &groceries.ID, &period.ID)

	before, err := engine.Summarize(ctx, db.UserID, period.ID)
	require.NoError(t, err)

	_, err = ledger.New(db.Storage).Assign(ctx, db.UserID, txn.ID, &dining.ID)
	require.NoError(t, err)

	after, err := engine.Summarize(ctx, db.UserID, period.ID)
	require.NoError(t, err)

	// Spend moves between envelopes; the period total does not change.
	assert.Equal(t, before.TotalSpent, after.TotalSpent)
	assert.Equal(t, before.UnassignedSpend, after.UnassignedSpend)

	byName := make(map[string]budget.AllocationView, 2)
	for _, view := range after.Allocations {
		byName[view.CategoryName] = view
	}
	assert.Equal(t, model.Cents(0), byName["Groceries"].Spent)
	assert.Equal(t, model.Cents(2300), byName["Dining"].Spent)
}

func TestSummarizeEmptyPeriod(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()
	engine := budget.New(db.Storage)

	period := db.SeedPeriod(ctx, "2025-03", 100000)

	summary, err := engine.Summarize(ctx, db.UserID, period.ID)
	require.NoError(t, err)
	assert.Empty(t, summary.Allocations)
	assert.Equal(t, model.Cents(100000), summary.Unallocated)
	assert.Equal(t, model.Cents(0), summary.TotalSpent)
}

func TestCategoryBalance(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()
	engine := budget.New(db.Storage)

	period := db.SeedPeriod(ctx, "2025-03", 100000)
	cat := db.SeedCategory(ctx, "Groceries", "2025-03", 40000)

	db.SeedTransaction(ctx, testutil.Date(2025, 3, 5), "Market", 2500, &cat.ID, &period.ID)
	db.SeedTransaction(ctx, testutil.Date(2025, 3, 28), "Market again", 3000, &cat.ID, &period.ID)

	balance, err := engine.CategoryBalance(ctx, db.UserID, cat.ID)
	require.NoError(t, err)
	assert.Equal(t, model.Cents(5500), balance.Spent)
	assert.Equal(t, model.Cents(34500), balance.Remaining)
}
