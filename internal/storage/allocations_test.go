package storage_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coinconductor/coinconductor/internal/common"
	"github.com/coinconductor/coinconductor/internal/model"
	"github.com/coinconductor/coinconductor/internal/testutil"
)

func TestCreateAllocation(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()

	period := db.SeedPeriod(ctx, "2025-03", 300000)
	cat := db.SeedCategory(ctx, "Groceries", "2025-03", 40000)

	alloc, err := db.Storage.CreateAllocation(ctx, db.UserID, period.ID, cat.ID, 40000)
	require.NoError(t, err)
	assert.Equal(t, model.Cents(40000), alloc.AllocatedAmount)

	// One envelope per (period, category).
	_, err = db.Storage.CreateAllocation(ctx, db.UserID, period.ID, cat.ID, 10000)
	assert.ErrorIs(t, err, common.ErrDuplicateAllocation)
}

func TestCreateAllocationOverIncomeAllowed(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()

	period := db.SeedPeriod(ctx, "2025-03", 100000)
	cat := db.SeedCategory(ctx, "Rent", "2025-03", 150000)

	// Allocating more than the period's income is legal; the summary
	// surfaces the negative unallocated amount instead.
	_, err := db.Storage.CreateAllocation(ctx, db.UserID, period.ID, cat.ID, 150000)
	assert.NoError(t, err)
}

func TestCreateAllocationReferentialChecks(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()

	period := db.SeedPeriod(ctx, "2025-03", 300000)
	cat := db.SeedCategory(ctx, "Groceries", "2025-03", 40000)

	_, err := db.Storage.CreateAllocation(ctx, db.UserID, 9999, cat.ID, 100)
	assert.ErrorIs(t, err, common.ErrNotFound)

	_, err = db.Storage.CreateAllocation(ctx, db.UserID, period.ID, 9999, 100)
	assert.ErrorIs(t, err, common.ErrNotFound)

	// Another user's category is invisible to this user.
	other, err := db.Storage.EnsureUser(ctx, "someone-else")
	require.NoError(t, err)
	otherCat, err := db.Storage.CreateCategory(ctx, other.ID, "Theirs", "2025-03", 100)
	require.NoError(t, err)

	_, err = db.Storage.CreateAllocation(ctx, db.UserID, period.ID, otherCat.ID, 100)
	assert.Error(t, err)
}

func TestUpdateAllocation(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()

	period := db.SeedPeriod(ctx, "2025-03", 300000)
	cat := db.SeedCategory(ctx, "Groceries", "2025-03", 40000)

	alloc, err := db.Storage.CreateAllocation(ctx, db.UserID, period.ID, cat.ID, 40000)
	require.NoError(t, err)

	require.NoError(t, db.Storage.UpdateAllocation(ctx, db.UserID, alloc.ID, 45000))

	got, err := db.Storage.GetAllocation(ctx, db.UserID, alloc.ID)
	require.NoError(t, err)
	assert.Equal(t, model.Cents(45000), got.AllocatedAmount)
}

func TestDeleteAllocationKeepsTransactions(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()

	period := db.SeedPeriod(ctx, "2025-03", 300000)
	cat := db.SeedCategory(ctx, "Groceries", "2025-03", 40000)

	alloc, err := db.Storage.CreateAllocation(ctx, db.UserID, period.ID, cat.ID, 40000)
	require.NoError(t, err)

	txn := db.SeedTransaction(ctx, testutil.Date(2025, 3, 10), "Market", 2500, &cat.ID, &period.ID)

	require.NoError(t, db.Storage.DeleteAllocation(ctx, db.UserID, alloc.ID))

	got, err := db.Storage.GetTransaction(ctx, db.UserID, txn.ID)
	require.NoError(t, err)
	assert.NotNil(t, got.CategoryID, "removing the envelope keeps the assignment")
}
