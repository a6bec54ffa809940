// Package ledger implements the transaction assignment service: the only
// path by which a transaction's category changes after creation.
package ledger

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

// Service applies transaction mutations and keeps category/period references
// coherent. Writes go through the store's compare-and-swap; a lost race is
// retried once after re-reading.
type Service struct {
	storage   service.Storage
	retryOpts common.RetryOptions
}

// New creates an assignment service over the given store.
func New(storage service.Storage) *Service {
	return &Service{
		storage: storage,
		retryOpts: common.RetryOptions{
			MaxAttempts:  2,
			InitialDelay: 10 * time.Millisecond,
		},
	}
}

// resolveReferences validates and resolves the category/period references
// for a transaction date. It returns the period id covering the date (nil
// when no period covers it), and ErrPeriodMismatch when a category is set
// but incompatible with the covering period.
func (s *Service) resolveReferences(ctx context.Context, userID int64, date time.Time, categoryID *int64) (*int64, error) {
	period, err := s.storage.GetPeriodCovering(ctx, userID, date)
	if err != nil && !errors.Is(err, common.ErrNotFound) {
		return nil, err
	}

	if categoryID == nil {
		if period == nil {
			return nil, nil
		}
		return &period.ID, nil
	}

	if *categoryID == 0 {
		return nil, fmt.Errorf("%w: category id 0 is not a null alias", common.ErrValidation)
	}
	if period == nil {
		return nil, fmt.Errorf("%w: no budget period covers %s", common.ErrPeriodMismatch, date.Format("2006-01-02"))
	}

	category, err := s.storage.GetCategory(ctx, userID, *categoryID)
	if err != nil {
		return nil, err
	}

	// A category belongs to the period covering its month. The month window
	// must intersect the period range, or the envelope lives in some other
	// period and the assignment is incoherent.
	monthStart, err := time.Parse("2006-01", category.Month)
	if err != nil {
		return nil, fmt.Errorf("category %d has invalid month %q: %w", category.ID, category.Month, err)
	}
	monthEnd := monthStart.AddDate(0, 1, 0).Add(-time.Nanosecond)
	if !period.Overlaps(monthStart, monthEnd) {
		return nil, fmt.Errorf("%w: category %q is scoped to %s, period %q covers %s to %s",
			common.ErrPeriodMismatch, category.Name, category.Month, period.Name,
			period.StartDate.Format("2006-01-02"), period.EndDate.Format("2006-01-02"))
	}

	return &period.ID, nil
}

// Create stores a new transaction after validating its references.
func (s *Service) Create(ctx context.Context, userID int64, txn *model.Transaction) (*model.Transaction, error) {
	if txn == nil {
		return nil, fmt.Errorf("%w: nil transaction", common.ErrValidation)
	}

	stored := *txn
	stored.UserID = userID
	if stored.Source == "" {
		stored.Source = model.SourceManual
	}

	periodID, err := s.resolveReferences(ctx, userID, stored.Date, stored.CategoryID)
	if err != nil {
		return nil, err
	}
	stored.BudgetPeriodID = periodID

	return s.storage.CreateTransaction(ctx, &stored)
}

// Update rewrites a transaction's mutable fields. When the date changes, the
// category is re-validated against the new covering period; if it is no
// longer compatible the category is nulled rather than left dangling. This
// is the one sanctioned silent-null, and it is logged.
func (s *Service) Update(ctx context.Context, userID int64, txn *model.Transaction) (*model.Transaction, error) {
	if txn == nil {
		return nil, fmt.Errorf("%w: nil transaction", common.ErrValidation)
	}

	var updated *model.Transaction
	err := common.WithRetry(ctx, func() error {
		current, err := s.storage.GetTransaction(ctx, userID, txn.ID)
		if err != nil {
			return err
		}

		next := *current
		next.Amount = txn.Amount
		next.Description = txn.Description
		next.Date = txn.Date
		next.Notes = txn.Notes
		next.CategoryID = txn.CategoryID

		periodID, err := s.resolveReferences(ctx, userID, next.Date, next.CategoryID)
		if err != nil {
			if errors.Is(err, common.ErrPeriodMismatch) && !next.Date.Equal(current.Date) {
				slog.Info("date change invalidated category, clearing assignment",
					"transaction", next.ID, "date", next.Date.Format("2006-01-02"))
				next.CategoryID = nil
				periodID, err = s.resolveReferences(ctx, userID, next.Date, nil)
			}
			if err != nil {
				return err
			}
		}
		next.BudgetPeriodID = periodID

		updated, err = s.storage.UpdateTransaction(ctx, &next)
		return err
	}, s.retryOpts)
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Delete removes a transaction. Nothing else cascades; the affected
// aggregates are derived at the next read.
func (s *Service) Delete(ctx context.Context, userID int64, id string) error {
	return s.storage.DeleteTransaction(ctx, userID, id)
}

// Assign points a transaction at a category, or clears the assignment when
// categoryID is nil. The category must belong to a period covering the
// transaction's date or the call fails with ErrPeriodMismatch.
func (s *Service) Assign(ctx context.Context, userID int64, transactionID string, categoryID *int64) (*model.Transaction, error) {
	var updated *model.Transaction
	err := common.WithRetry(ctx, func() error {
		current, err := s.storage.GetTransaction(ctx, userID, transactionID)
		if err != nil {
			return err
		}

		periodID, err := s.resolveReferences(ctx, userID, current.Date, categoryID)
		if err != nil {
			return err
		}

		next := *current
		next.CategoryID = categoryID
		next.BudgetPeriodID = periodID

		updated, err = s.storage.UpdateTransaction(ctx, &next)
		return err
	}, s.retryOpts)
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Assignment is one entry of a bulk re-assignment.
type Assignment struct {
	CategoryID    *int64
	TransactionID string
}

// Outcome reports the result of one assignment in a bulk operation.
type Outcome struct {
	Err           error
	TransactionID string
	Assigned      bool
}

// BulkAssign applies assignments independently: each is validated and
// written on its own, a failure never rolls back the others, and the caller
// gets a per-transaction outcome. Re-running a partially applied batch is
// safe.
func (s *Service) BulkAssign(ctx context.Context, userID int64, assignments []Assignment) []Outcome {
	outcomes := make([]Outcome, 0, len(assignments))
	for _, a := range assignments {
		_, err := s.Assign(ctx, userID, a.TransactionID, a.CategoryID)
		outcomes = append(outcomes, Outcome{
			TransactionID: a.TransactionID,
			Assigned:      err == nil,
			Err:           err,
		})
		if err != nil {
			common.LogError(err, "bulk assignment entry failed", common.Fields{
				"transaction": a.TransactionID,
			})
		}
	}
	return outcomes
}
