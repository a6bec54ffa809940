package storage_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coinconductor/coinconductor/internal/common"
	"github.com/coinconductor/coinconductor/internal/model"
	"github.com/coinconductor/coinconductor/internal/testutil"
)

func TestBankAccountConfigRoundTrip(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()

	created, err := db.Storage.CreateBankAccount(ctx, &model.BankAccount{
		UserID:   db.UserID,
		Name:     "Business",
		Provider: model.ProviderGoCardless,
		Config: model.GoCardlessConfig{
			SecretID:    "sid",
			SecretKey:   "skey",
			Environment: "sandbox",
		},
	})
	require.NoError(t, err)

	got, err := db.Storage.GetBankAccount(ctx, db.UserID, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Business", got.Name)

	cfg, ok := got.Config.(model.GoCardlessConfig)
	require.True(t, ok, "config deserializes to its provider shape")
	assert.Equal(t, "sid", cfg.SecretID)
	assert.Equal(t, "skey", cfg.SecretKey)
	assert.Equal(t, "sandbox", cfg.Environment)
	assert.Nil(t, got.LastSynced)
}

func TestCreateBankAccountValidation(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()

	// Incomplete gocardless secret pair.
	_, err := db.Storage.CreateBankAccount(ctx, &model.BankAccount{
		UserID: db.UserID,
		Name:   "Incomplete",
		Config: model.GoCardlessConfig{SecretID: "sid"},
	})
	assert.ErrorIs(t, err, common.ErrValidation)

	// Missing config entirely.
	_, err = db.Storage.CreateBankAccount(ctx, &model.BankAccount{
		UserID: db.UserID,
		Name:   "Bare",
	})
	assert.ErrorIs(t, err, common.ErrValidation)

	// The provider field is derived from the config shape, not trusted.
	created, err := db.Storage.CreateBankAccount(ctx, &model.BankAccount{
		UserID:   db.UserID,
		Name:     "Relabeled",
		Provider: model.ProviderGoCardless,
		Config:   model.SimpleFINConfig{AccessURL: "https://bridge.example/access"},
	})
	require.NoError(t, err)
	assert.Equal(t, model.ProviderSimpleFIN, created.Provider)
}

func TestTouchBankAccountSynced(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()

	created, err := db.Storage.CreateBankAccount(ctx, &model.BankAccount{
		UserID:   db.UserID,
		Name:     "Checking",
		Provider: model.ProviderSimpleFIN,
		Config:   model.SimpleFINConfig{AccessURL: "https://bridge.example/access"},
	})
	require.NoError(t, err)

	at := time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC)
	require.NoError(t, db.Storage.TouchBankAccountSynced(ctx, db.UserID, created.ID, at))

	got, err := db.Storage.GetBankAccount(ctx, db.UserID, created.ID)
	require.NoError(t, err)
	require.NotNil(t, got.LastSynced)
	assert.True(t, got.LastSynced.Equal(at))
}

func TestListBankAccounts(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()

	for _, name := range []string{"Checking", "Savings"} {
		_, err := db.Storage.CreateBankAccount(ctx, &model.BankAccount{
			UserID:   db.UserID,
			Name:     name,
			Provider: model.ProviderSimpleFIN,
			Config:   model.SimpleFINConfig{AccessURL: "https://bridge.example/" + name},
		})
		require.NoError(t, err)
	}

	accounts, err := db.Storage.ListBankAccounts(ctx, db.UserID)
	require.NoError(t, err)
	assert.Len(t, accounts, 2)

	other, err := db.Storage.EnsureUser(ctx, "someone-else")
	require.NoError(t, err)
	none, err := db.Storage.ListBankAccounts(ctx, other.ID)
	require.NoError(t, err)
	assert.Empty(t, none)
}
