package bank

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coinconductor/coinconductor/internal/common"
	"github.com/coinconductor/coinconductor/internal/model"
)

func TestNewFetcher(t *testing.T) {
	fetcher, err := NewFetcher(&model.BankAccount{
		Provider: model.ProviderSimpleFIN,
		Config:   model.SimpleFINConfig{AccessURL: "https://bridge.example/access"},
	})
	require.NoError(t, err)
	assert.IsType(t, &SimpleFINClient{}, fetcher)

	_, err = NewFetcher(&model.BankAccount{
		Provider: model.ProviderSimpleFIN,
		Config:   model.SimpleFINConfig{},
	})
	assert.ErrorIs(t, err, common.ErrMissingConfig)

	fetcher, err = NewFetcher(&model.BankAccount{
		Provider: model.ProviderGoCardless,
		Config:   model.GoCardlessConfig{SecretID: "token", Environment: "sandbox"},
	})
	require.NoError(t, err)
	assert.IsType(t, &GoCardlessClient{}, fetcher)

	_, err = NewFetcher(&model.BankAccount{Provider: "plaid"})
	assert.ErrorIs(t, err, common.ErrInvalidConfig)
}
