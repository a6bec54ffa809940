package importer_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coinconductor/coinconductor/internal/importer"
	"github.com/coinconductor/coinconductor/internal/model"
	"github.com/coinconductor/coinconductor/internal/testutil"
)

func seedAccount(t *testing.T, db *testutil.TestDB) *model.BankAccount {
	t.Helper()
	account, err := db.Storage.CreateBankAccount(context.Background(), &model.BankAccount{
		UserID:   db.UserID,
		Name:     "Checking",
		Provider: model.ProviderSimpleFIN,
		Config:   model.SimpleFINConfig{AccessURL: "https://bridge.example/access"},
	})
	require.NoError(t, err)
	return account
}

func TestImportBatch(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()
	account := seedAccount(t, db)
	period := db.SeedPeriod(ctx, "2025-03", 300000)

	batch := []model.ExternalTransaction{
		{ExternalID: "acc1_tx1", Date: testutil.Date(2025, 3, 5), Description: "Market", Amount: 2500},
		{ExternalID: "acc1_tx2", Date: testutil.Date(2025, 3, 6), Description: "Payroll", Amount: -150000},
	}

	result, err := importer.New(db.Storage).ImportBatch(ctx, db.UserID, account.ID, batch)
	require.NoError(t, err)
	require.Len(t, result.Created, 2)
	assert.Empty(t, result.Skipped)
	assert.Empty(t, result.Conflicts)

	created := result.Created[0]
	assert.Nil(t, created.CategoryID, "imported rows start unassigned")
	require.NotNil(t, created.BudgetPeriodID)
	assert.Equal(t, period.ID, *created.BudgetPeriodID)
	require.NotNil(t, created.BankAccountID)
	assert.Equal(t, account.ID, *created.BankAccountID)

	synced, err := db.Storage.GetBankAccount(ctx, db.UserID, account.ID)
	require.NoError(t, err)
	assert.NotNil(t, synced.LastSynced)
}

func TestImportBatchIdempotent(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()
	account := seedAccount(t, db)

	batch := []model.ExternalTransaction{
		{ExternalID: "acc1_tx1", Date: testutil.Date(2025, 3, 5), Description: "Market", Amount: 2500},
	}

	rec := importer.New(db.Storage)
	_, err := rec.ImportBatch(ctx, db.UserID, account.ID, batch)
	require.NoError(t, err)

	again, err := rec.ImportBatch(ctx, db.UserID, account.ID, batch)
	require.NoError(t, err)
	assert.Empty(t, again.Created)
	assert.Len(t, again.Skipped, 1)
}

func TestImportBatchAmountConflict(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()
	account := seedAccount(t, db)

	rec := importer.New(db.Storage)
	_, err := rec.ImportBatch(ctx, db.UserID, account.ID, []model.ExternalTransaction{
		{ExternalID: "acc1_tx1", Date: testutil.Date(2025, 3, 5), Description: "Market", Amount: 2500},
	})
	require.NoError(t, err)

	// Same external id, revised amount: flagged, never auto-applied.
	result, err := rec.ImportBatch(ctx, db.UserID, account.ID, []model.ExternalTransaction{
		{ExternalID: "acc1_tx1", Date: testutil.Date(2025, 3, 5), Description: "Market", Amount: 2600},
	})
	require.NoError(t, err)
	assert.Empty(t, result.Created)
	assert.Empty(t, result.Skipped)
	require.Len(t, result.Conflicts, 1)
	assert.Equal(t, model.Cents(2500), result.Conflicts[0].ExistingAmount)
	assert.Equal(t, model.Cents(2600), result.Conflicts[0].IncomingAmount)

	got, err := db.Storage.GetTransaction(ctx, db.UserID, result.Conflicts[0].TransactionID)
	require.NoError(t, err)
	assert.Equal(t, model.Cents(2500), got.Amount, "existing record is untouched")
}

func TestImportBatchFingerprintFallback(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()
	account := seedAccount(t, db)

	// No stable ids: dedupe falls back to (date, amount, description).
	batch := []model.ExternalTransaction{
		{Date: testutil.Date(2025, 3, 5), Description: "Market", Amount: 2500},
	}

	rec := importer.New(db.Storage)
	first, err := rec.ImportBatch(ctx, db.UserID, account.ID, batch)
	require.NoError(t, err)
	require.Len(t, first.Created, 1)

	again, err := rec.ImportBatch(ctx, db.UserID, account.ID, batch)
	require.NoError(t, err)
	assert.Empty(t, again.Created)
	assert.Len(t, again.Skipped, 1)
}

func TestImportStatement(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()
	period := db.SeedPeriod(ctx, "2025-03", 300000)

	batch := []model.ExternalTransaction{
		{ExternalID: "2025030501", Date: testutil.Date(2025, 3, 5), Description: "STARBUCKS", Amount: 2550},
		{ExternalID: "2025032001", Date: testutil.Date(2025, 3, 20), Description: "PAYROLL", Amount: -150000},
	}

	rec := importer.New(db.Storage)
	result, err := rec.ImportStatement(ctx, db.UserID, model.SourceOFX, batch)
	require.NoError(t, err)
	require.Len(t, result.Created, 2)
	assert.Nil(t, result.Created[0].BankAccountID)
	require.NotNil(t, result.Created[0].BudgetPeriodID)
	assert.Equal(t, period.ID, *result.Created[0].BudgetPeriodID)

	// Re-importing the same file is a no-op.
	again, err := rec.ImportStatement(ctx, db.UserID, model.SourceOFX, batch)
	require.NoError(t, err)
	assert.Empty(t, again.Created)
	assert.Len(t, again.Skipped, 2)
}

func TestImportStatementUsesPayeeWhenDescriptionEmpty(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()

	rec := importer.New(db.Storage)
	result, err := rec.ImportStatement(ctx, db.UserID, model.SourceOFX, []model.ExternalTransaction{
		{ExternalID: "f1", Date: testutil.Date(2025, 3, 5), Payee: "Corner Store", Amount: 700},
	})
	require.NoError(t, err)
	require.Len(t, result.Created, 1)
	assert.Equal(t, "Corner Store", result.Created[0].Description)
}
