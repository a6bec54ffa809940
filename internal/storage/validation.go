// Package storage provides the SQLite-backed ledger store. Invariants are
// enforced at write time; reads never repair data.
package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/coinconductor/coinconductor/internal/common"
	"github.com/coinconductor/coinconductor/internal/model"
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return fmt.Errorf("%w: nil context", common.ErrValidation)
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s cannot be empty", common.ErrValidation, paramName)
	}
	return nil
}

// validateID ensures an id parameter is positive. Zero is rejected rather
// than treated as an alias for "none".
func validateID(id int64, paramName string) error {
	if id <= 0 {
		return fmt.Errorf("%w: %s must be positive", common.ErrValidation, paramName)
	}
	return nil
}

// validateMonth ensures a month key is in YYYY-MM format.
func validateMonth(month string) error {
	if !model.ValidMonth(month) {
		return fmt.Errorf("%w: %q", common.ErrInvalidMonth, month)
	}
	return nil
}

// validateBudgetAmount ensures an envelope amount is not negative.
func validateBudgetAmount(amount model.Cents) error {
	if amount < 0 {
		return fmt.Errorf("%w: budget amount cannot be negative", common.ErrValidation)
	}
	return nil
}

// validateTransaction validates a transaction before any store mutation.
// A nil category pointer is the only representation of "unassigned"; a zero
// id is invalid input, never an alias for null.
func validateTransaction(txn *model.Transaction) error {
	if txn == nil {
		return fmt.Errorf("%w: nil transaction", common.ErrValidation)
	}
	if err := validateID(txn.UserID, "user id"); err != nil {
		return err
	}
	if txn.Date.IsZero() {
		return fmt.Errorf("%w: transaction has no date", common.ErrValidation)
	}
	if strings.TrimSpace(txn.Description) == "" {
		return fmt.Errorf("%w: transaction has no description", common.ErrValidation)
	}
	if txn.Source == "" {
		return fmt.Errorf("%w: transaction has no source", common.ErrValidation)
	}
	if txn.CategoryID != nil && *txn.CategoryID <= 0 {
		return fmt.Errorf("%w: category id must be positive or nil", common.ErrValidation)
	}
	if txn.BudgetPeriodID != nil && *txn.BudgetPeriodID <= 0 {
		return fmt.Errorf("%w: budget period id must be positive or nil", common.ErrValidation)
	}
	return nil
}
