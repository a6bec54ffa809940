// Package importer merges externally fetched transaction batches into the
// ledger, deduplicating against existing records.
package importer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/coinconductor/coinconductor/internal/common"
	"github.com/coinconductor/coinconductor/internal/model"
	"github.com/coinconductor/coinconductor/internal/service"
)

// Conflict reports a previously imported external id whose amount no longer
// matches. It is surfaced for manual resolution, never auto-applied.
type Conflict struct {
	ExternalID     string
	TransactionID  string
	ExistingAmount model.Cents
	IncomingAmount model.Cents
}

// Result reports the per-item outcomes of an import. Re-importing the same
// statement window yields everything in Skipped and nothing in Created.
type Result struct {
	Created   []model.Transaction
	Skipped   []model.ExternalTransaction
	Conflicts []Conflict
}

// Reconciler imports provider batches. Each record is an independent write:
// a crash mid-batch leaves the ledger valid, just incomplete, and the next
// import skips what already landed.
type Reconciler struct {
	storage service.Storage
}

// New creates a reconciler over the given store.
func New(storage service.Storage) *Reconciler {
	return &Reconciler{storage: storage}
}

// ImportBatch merges a provider batch for one bank account. Incoming records
// are deduplicated by (bankAccountID, externalID) when the provider supplies
// stable ids, falling back to a (date, amount, description) fingerprint
// within the same source. Matches with an unchanged amount are skipped;
// matches with a different amount become conflicts. New records are created
// unassigned, with the budget period resolved from the date when one covers
// it. Existing transactions are never mutated.
func (r *Reconciler) ImportBatch(ctx context.Context, userID, bankAccountID int64, batch []model.ExternalTransaction) (*Result, error) {
	account, err := r.storage.GetBankAccount(ctx, userID, bankAccountID)
	if err != nil {
		return nil, err
	}

	result := &Result{}
	for _, incoming := range batch {
		existing, err := r.findExisting(ctx, userID, bankAccountID, account.Provider, &incoming)
		if err != nil {
			return nil, fmt.Errorf("dedupe lookup for %q: %w", incoming.Description, err)
		}

		if existing != nil {
			if existing.Amount != incoming.Amount {
				result.Conflicts = append(result.Conflicts, Conflict{
					ExternalID:     incoming.ExternalID,
					TransactionID:  existing.ID,
					ExistingAmount: existing.Amount,
					IncomingAmount: incoming.Amount,
				})
				slog.Warn("import amount mismatch",
					"external_id", incoming.ExternalID,
					"existing", existing.Amount,
					"incoming", incoming.Amount)
				continue
			}
			result.Skipped = append(result.Skipped, incoming)
			continue
		}

		created, err := r.createImported(ctx, userID, bankAccountID, account.Provider, &incoming)
		if err != nil {
			return nil, fmt.Errorf("import %q: %w", incoming.Description, err)
		}
		result.Created = append(result.Created, *created)
	}

	if err := r.storage.TouchBankAccountSynced(ctx, userID, bankAccountID, time.Now()); err != nil {
		return nil, err
	}

	slog.Info("import batch reconciled",
		"account", bankAccountID,
		"created", len(result.Created),
		"skipped", len(result.Skipped),
		"conflicts", len(result.Conflicts))
	return result, nil
}

// ImportStatement merges a statement-file batch that has no bank account
// connection. Dedupe is by (source, externalID) when the file carries stable
// ids, falling back to the fingerprint. Same skip and conflict rules as
// ImportBatch.
func (r *Reconciler) ImportStatement(ctx context.Context, userID int64, source string, batch []model.ExternalTransaction) (*Result, error) {
	result := &Result{}
	for _, incoming := range batch {
		var existing *model.Transaction
		var err error
		if incoming.ExternalID != "" {
			existing, err = r.storage.FindTransactionBySourceExternalID(ctx, userID, source, incoming.ExternalID)
		} else {
			existing, err = r.storage.FindTransactionByFingerprint(ctx, userID, source, incoming.Fingerprint())
		}
		if err != nil {
			return nil, fmt.Errorf("dedupe lookup for %q: %w", incoming.Description, err)
		}

		if existing != nil {
			if existing.Amount != incoming.Amount {
				result.Conflicts = append(result.Conflicts, Conflict{
					ExternalID:     incoming.ExternalID,
					TransactionID:  existing.ID,
					ExistingAmount: existing.Amount,
					IncomingAmount: incoming.Amount,
				})
				slog.Warn("import amount mismatch",
					"external_id", incoming.ExternalID,
					"existing", existing.Amount,
					"incoming", incoming.Amount)
				continue
			}
			result.Skipped = append(result.Skipped, incoming)
			continue
		}

		created, err := r.createStatementTransaction(ctx, userID, source, &incoming)
		if err != nil {
			return nil, fmt.Errorf("import %q: %w", incoming.Description, err)
		}
		result.Created = append(result.Created, *created)
	}

	slog.Info("statement batch reconciled",
		"source", source,
		"created", len(result.Created),
		"skipped", len(result.Skipped),
		"conflicts", len(result.Conflicts))
	return result, nil
}

func (r *Reconciler) createStatementTransaction(ctx context.Context, userID int64, source string, incoming *model.ExternalTransaction) (*model.Transaction, error) {
	description := incoming.Description
	if description == "" {
		description = incoming.Payee
	}

	txn := model.Transaction{
		UserID:      userID,
		Amount:      incoming.Amount,
		Description: description,
		Date:        incoming.Date,
		Source:      source,
		ExternalID:  incoming.ExternalID,
	}

	period, err := r.storage.GetPeriodCovering(ctx, userID, incoming.Date)
	if err != nil && !errors.Is(err, common.ErrNotFound) {
		return nil, err
	}
	if period != nil {
		txn.BudgetPeriodID = &period.ID
	}

	return r.storage.CreateTransaction(ctx, &txn)
}

func (r *Reconciler) findExisting(ctx context.Context, userID, bankAccountID int64, provider string, incoming *model.ExternalTransaction) (*model.Transaction, error) {
	if incoming.ExternalID != "" {
		return r.storage.FindTransactionByExternalID(ctx, userID, bankAccountID, incoming.ExternalID)
	}
	return r.storage.FindTransactionByFingerprint(ctx, userID, provider, incoming.Fingerprint())
}

func (r *Reconciler) createImported(ctx context.Context, userID, bankAccountID int64, provider string, incoming *model.ExternalTransaction) (*model.Transaction, error) {
	description := incoming.Description
	if description == "" {
		description = incoming.Payee
	}

	txn := model.Transaction{
		UserID:        userID,
		Amount:        incoming.Amount,
		Description:   description,
		Date:          incoming.Date,
		Source:        provider,
		ExternalID:    incoming.ExternalID,
		BankAccountID: &bankAccountID,
	}

	// Imported rows start unassigned; only the covering period is resolved.
	period, err := r.storage.GetPeriodCovering(ctx, userID, incoming.Date)
	if err != nil && !errors.Is(err, common.ErrNotFound) {
		return nil, err
	}
	if period != nil {
		txn.BudgetPeriodID = &period.ID
	}

	return r.storage.CreateTransaction(ctx, &txn)
}
