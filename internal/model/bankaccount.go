package model

import "time"

// Bank provider identifiers.
const (
	ProviderSimpleFIN  = "simplefin"
	ProviderGoCardless = "gocardless"
)

// BankAccount is a connection to an external transaction feed. Credential
// material is an opaque per-provider config; it never enters accounting
// logic.
type BankAccount struct {
	LastSynced *time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
	Name       string
	Provider   string
	ID         int64
	UserID     int64
	Config     ProviderConfig
}

// ProviderConfig is the tagged union of per-provider credential shapes.
type ProviderConfig interface {
	Provider() string
}

// SimpleFINConfig holds the claimed access URL for a SimpleFIN bridge.
type SimpleFINConfig struct {
	AccessURL string
}

// Provider implements ProviderConfig.
func (SimpleFINConfig) Provider() string { return ProviderSimpleFIN }

// GoCardlessConfig holds the secret pair for the GoCardless API.
type GoCardlessConfig struct {
	SecretID    string
	SecretKey   string
	Environment string // sandbox or live
}

// Provider implements ProviderConfig.
func (GoCardlessConfig) Provider() string { return ProviderGoCardless }
