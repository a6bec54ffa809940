// Package model defines the core domain types used throughout the application.
package model

import (
	"crypto/sha256"
	"fmt"
	"time"
)

// Transaction sources. Bank providers use their provider name as the source.
const (
	SourceManual     = "manual"
	SourceSimpleFIN  = "simplefin"
	SourceGoCardless = "gocardless"
	SourceOFX        = "ofx"
)

// Transaction is a single ledger entry. Amount is signed: positive for
// expenses, negative for income or credits. CategoryID and BudgetPeriodID are
// nil while unassigned. Version supports compare-and-swap updates; it starts
// at 1 and increments on every successful write.
type Transaction struct {
	Date          time.Time
	ID            string
	Description   string
	Source        string
	Notes         string
	ExternalID    string
	CategoryID    *int64
	BudgetPeriodID *int64
	BankAccountID *int64
	UserID        int64
	Amount        Cents
	Version       int64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Fingerprint identifies a transaction for duplicate detection when the
// provider supplies no stable external id.
func (t *Transaction) Fingerprint() string {
	return Fingerprint(t.Date, t.Amount, t.Description)
}

// Fingerprint hashes (date, amount, description) into a stable dedupe key.
func Fingerprint(date time.Time, amount Cents, description string) string {
	data := fmt.Sprintf("%s:%d:%s", date.Format("2006-01-02"), amount, description)
	hash := sha256.Sum256([]byte(data))
	return fmt.Sprintf("%x", hash)
}

// ExternalTransaction is the provider-normalized record a bank feed hands the
// import reconciler. ExternalID may be empty when the provider has no stable
// ids, in which case the fingerprint is the dedupe key.
type ExternalTransaction struct {
	Date        time.Time
	ExternalID  string
	Description string
	Payee       string
	Amount      Cents
}

// Fingerprint returns the fallback dedupe key for the record.
func (e *ExternalTransaction) Fingerprint() string {
	return Fingerprint(e.Date, e.Amount, e.Description)
}
