package storage_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coinconductor/coinconductor/internal/common"
	"github.com/coinconductor/coinconductor/internal/model"
	"github.com/coinconductor/coinconductor/internal/service"
	"github.com/coinconductor/coinconductor/internal/testutil"
)

func TestCreateTransactionDefaults(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()

	txn := db.SeedTransaction(ctx, testutil.Date(2025, 3, 10), "Coffee", 550, nil, nil)

	assert.NotEmpty(t, txn.ID, "ids are generated when absent")
	assert.Equal(t, int64(1), txn.Version)
	assert.Nil(t, txn.CategoryID)
}

func TestCreateTransactionPeriodMustCoverDate(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()

	period := db.SeedPeriod(ctx, "2025-03", 300000)

	_, err := db.Storage.CreateTransaction(ctx, &model.Transaction{
		UserID:         db.UserID,
		Date:           testutil.Date(2025, 4, 10),
		Description:    "April outside March period",
		Amount:         1000,
		Source:         model.SourceManual,
		BudgetPeriodID: &period.ID,
	})
	assert.ErrorIs(t, err, common.ErrPeriodMismatch)
}

func TestUpdateTransactionStaleWrite(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()

	txn := db.SeedTransaction(ctx, testutil.Date(2025, 3, 10), "Coffee", 550, nil, nil)

	// First writer wins.
	first := *txn
	first.Amount = 600
	updated, err := db.Storage.UpdateTransaction(ctx, &first)
	require.NoError(t, err)
	assert.Equal(t, txn.Version+1, updated.Version)

	// Second writer still holds the old version and must fail.
	second := *txn
	second.Amount = 700
	_, err = db.Storage.UpdateTransaction(ctx, &second)
	assert.ErrorIs(t, err, common.ErrStaleWrite)

	// Retrying from the committed snapshot succeeds.
	second.Version = updated.Version
	_, err = db.Storage.UpdateTransaction(ctx, &second)
	assert.NoError(t, err)
}

func TestUpdateTransactionNotFound(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()

	_, err := db.Storage.UpdateTransaction(ctx, &model.Transaction{
		ID:          "no-such-id",
		UserID:      db.UserID,
		Date:        testutil.Date(2025, 3, 10),
		Description: "ghost",
		Amount:      100,
		Source:      model.SourceManual,
		Version:     1,
	})
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestListTransactionsFilters(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()

	period := db.SeedPeriod(ctx, "2025-03", 300000)
	cat := db.SeedCategory(ctx, "Groceries", "2025-03", 40000)

	db.SeedTransaction(ctx, testutil.Date(2025, 3, 5), "Market", 2500, &cat.ID, &period.ID)
	db.SeedTransaction(ctx, testutil.Date(2025, 3, 12), "Mystery", 999, nil, &period.ID)
	db.SeedTransaction(ctx, testutil.Date(2025, 4, 2), "Later", 100, nil, nil)

	all, err := db.Storage.ListTransactions(ctx, db.UserID, service.TransactionFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	unassigned, err := db.Storage.ListTransactions(ctx, db.UserID, service.TransactionFilter{Unassigned: true})
	require.NoError(t, err)
	require.Len(t, unassigned, 2)
	for _, txn := range unassigned {
		assert.Nil(t, txn.CategoryID)
	}

	byCategory, err := db.Storage.ListTransactions(ctx, db.UserID, service.TransactionFilter{CategoryID: &cat.ID})
	require.NoError(t, err)
	require.Len(t, byCategory, 1)
	assert.Equal(t, "Market", byCategory[0].Description)

	start := testutil.Date(2025, 3, 1)
	end := testutil.Date(2025, 3, 31)
	march, err := db.Storage.ListTransactions(ctx, db.UserID, service.TransactionFilter{StartDate: &start, EndDate: &end})
	require.NoError(t, err)
	assert.Len(t, march, 2)
}

func TestFindTransactionByFingerprint(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()

	txn := db.SeedTransaction(ctx, testutil.Date(2025, 3, 10), "Coffee", 550, nil, nil)

	found, err := db.Storage.FindTransactionByFingerprint(ctx, db.UserID, model.SourceManual, txn.Fingerprint())
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, txn.ID, found.ID)

	// A different source does not match.
	found, err = db.Storage.FindTransactionByFingerprint(ctx, db.UserID, model.SourceOFX, txn.Fingerprint())
	require.NoError(t, err)
	assert.Nil(t, found)
}

func TestFindTransactionByExternalID(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()

	account, err := db.Storage.CreateBankAccount(ctx, &model.BankAccount{
		UserID:   db.UserID,
		Name:     "Checking",
		Provider: model.ProviderSimpleFIN,
		Config:   model.SimpleFINConfig{AccessURL: "https://bridge.example/access"},
	})
	require.NoError(t, err)

	created, err := db.Storage.CreateTransaction(ctx, &model.Transaction{
		UserID:        db.UserID,
		Date:          testutil.Date(2025, 3, 10),
		Description:   "Imported",
		Amount:        1200,
		Source:        model.SourceSimpleFIN,
		ExternalID:    "acc1_tx9",
		BankAccountID: &account.ID,
	})
	require.NoError(t, err)

	found, err := db.Storage.FindTransactionByExternalID(ctx, db.UserID, account.ID, "acc1_tx9")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, created.ID, found.ID)

	found, err = db.Storage.FindTransactionByExternalID(ctx, db.UserID, account.ID, "unknown")
	require.NoError(t, err)
	assert.Nil(t, found)

	bySource, err := db.Storage.FindTransactionBySourceExternalID(ctx, db.UserID, model.SourceSimpleFIN, "acc1_tx9")
	require.NoError(t, err)
	require.NotNil(t, bySource)
	assert.Equal(t, created.ID, bySource.ID)
}

func TestDeleteBankAccountKeepsTransactions(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()

	account, err := db.Storage.CreateBankAccount(ctx, &model.BankAccount{
		UserID:   db.UserID,
		Name:     "Checking",
		Provider: model.ProviderSimpleFIN,
		Config:   model.SimpleFINConfig{AccessURL: "https://bridge.example/access"},
	})
	require.NoError(t, err)

	created, err := db.Storage.CreateTransaction(ctx, &model.Transaction{
		UserID:        db.UserID,
		Date:          testutil.Date(2025, 3, 10),
		Description:   "Imported",
		Amount:        1200,
		Source:        model.SourceSimpleFIN,
		ExternalID:    "acc1_tx9",
		BankAccountID: &account.ID,
	})
	require.NoError(t, err)

	require.NoError(t, db.Storage.DeleteBankAccount(ctx, db.UserID, account.ID))

	got, err := db.Storage.GetTransaction(ctx, db.UserID, created.ID)
	require.NoError(t, err)
	assert.Nil(t, got.BankAccountID, "only the account link is cleared")
}

func TestTransactionUserScoping(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()

	txn := db.SeedTransaction(ctx, testutil.Date(2025, 3, 10), "Coffee", 550, nil, nil)

	other, err := db.Storage.EnsureUser(ctx, "someone-else")
	require.NoError(t, err)

	_, err = db.Storage.GetTransaction(ctx, other.ID, txn.ID)
	assert.ErrorIs(t, err, common.ErrNotFound)
}
