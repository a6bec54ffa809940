package bank

import (
	"fmt"

	"github.com/coinconductor/coinconductor/internal/common"
	"github.com/coinconductor/coinconductor/internal/model"
	"github.com/coinconductor/coinconductor/internal/service"
)

// NewFetcher creates the transaction fetcher for a bank account's provider
// config.
func NewFetcher(account *model.BankAccount) (service.TransactionFetcher, error) {
	switch cfg := account.Config.(type) {
	case model.SimpleFINConfig:
		if cfg.AccessURL == "" {
			return nil, fmt.Errorf("simplefin access URL is required: %w", common.ErrMissingConfig)
		}
		return NewSimpleFINClient(cfg.AccessURL), nil
	case model.GoCardlessConfig:
		return NewGoCardlessClient(cfg.SecretID, cfg.Environment)
	default:
		return nil, fmt.Errorf("unsupported provider %q: %w", account.Provider, common.ErrInvalidConfig)
	}
}
