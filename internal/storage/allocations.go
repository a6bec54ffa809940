package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/coinconductor/coinconductor/internal/common"
	"github.com/coinconductor/coinconductor/internal/model"
)

// CreateAllocation funds a category's envelope in a period. The (period,
// category) pair is unique; a duplicate fails with ErrDuplicateAllocation.
// The sum of allocations may legally exceed the period's income; a negative
// unallocated remainder is reportable state, not an error.
func (s *SQLiteStorage) CreateAllocation(ctx context.Context, userID, periodID, categoryID int64, amount model.Cents) (*model.Allocation, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateID(userID, "user id"); err != nil {
		return nil, err
	}
	if err := validateID(periodID, "period id"); err != nil {
		return nil, err
	}
	if err := validateID(categoryID, "category id"); err != nil {
		return nil, err
	}
	if err := validateBudgetAmount(amount); err != nil {
		return nil, err
	}

	// Both references must exist and belong to the user.
	if _, err := s.GetPeriod(ctx, userID, periodID); err != nil {
		return nil, err
	}
	if _, err := s.GetCategory(ctx, userID, categoryID); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO envelope_allocations (budget_period_id, category_id, allocated_amount, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)`,
		periodID, categoryID, int64(amount), now, now)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: category %d in period %d", common.ErrDuplicateAllocation, categoryID, periodID)
		}
		return nil, fmt.Errorf("failed to create allocation: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get allocation id: %w", err)
	}

	slog.Debug("created allocation", "period", periodID, "category", categoryID, "amount", amount)
	return &model.Allocation{
		ID:              id,
		BudgetPeriodID:  periodID,
		CategoryID:      categoryID,
		AllocatedAmount: amount,
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}

// GetAllocation returns an allocation by id.
func (s *SQLiteStorage) GetAllocation(ctx context.Context, userID, id int64) (*model.Allocation, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateID(userID, "user id"); err != nil {
		return nil, err
	}
	if err := validateID(id, "allocation id"); err != nil {
		return nil, err
	}

	var a model.Allocation
	var amount int64
	err := s.db.QueryRowContext(ctx, `
		SELECT a.id, a.budget_period_id, a.category_id, a.allocated_amount, a.created_at, a.updated_at
		FROM envelope_allocations a
		JOIN budget_periods p ON p.id = a.budget_period_id
		WHERE a.id = ? AND p.user_id = ?`, id, userID).
		Scan(&a.ID, &a.BudgetPeriodID, &a.CategoryID, &amount, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: allocation %d", common.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query allocation: %w", err)
	}

	a.AllocatedAmount = model.Cents(amount)
	return &a, nil
}

// GetAllocationsForPeriod returns all allocations of a period.
func (s *SQLiteStorage) GetAllocationsForPeriod(ctx context.Context, userID, periodID int64) ([]model.Allocation, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateID(userID, "user id"); err != nil {
		return nil, err
	}
	if err := validateID(periodID, "period id"); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT a.id, a.budget_period_id, a.category_id, a.allocated_amount, a.created_at, a.updated_at
		FROM envelope_allocations a
		JOIN budget_periods p ON p.id = a.budget_period_id
		WHERE a.budget_period_id = ? AND p.user_id = ?
		ORDER BY a.id`, periodID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query allocations: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var allocations []model.Allocation
	for rows.Next() {
		var a model.Allocation
		var amount int64
		if err := rows.Scan(&a.ID, &a.BudgetPeriodID, &a.CategoryID, &amount, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan allocation: %w", err)
		}
		a.AllocatedAmount = model.Cents(amount)
		allocations = append(allocations, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating allocations: %w", err)
	}
	return allocations, nil
}

// UpdateAllocation changes the allocated amount.
func (s *SQLiteStorage) UpdateAllocation(ctx context.Context, userID, id int64, amount model.Cents) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateID(userID, "user id"); err != nil {
		return err
	}
	if err := validateID(id, "allocation id"); err != nil {
		return err
	}
	if err := validateBudgetAmount(amount); err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE envelope_allocations SET allocated_amount = ?, updated_at = ?
		WHERE id = ? AND budget_period_id IN (SELECT id FROM budget_periods WHERE user_id = ?)`,
		int64(amount), time.Now().UTC(), id, userID)
	if err != nil {
		return fmt.Errorf("failed to update allocation: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: allocation %d", common.ErrNotFound, id)
	}
	return nil
}

// DeleteAllocation removes an envelope from a period. Transactions assigned
// to the category are untouched; their spend stays computable, only the
// allocated amount to compare against is gone.
func (s *SQLiteStorage) DeleteAllocation(ctx context.Context, userID, id int64) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateID(userID, "user id"); err != nil {
		return err
	}
	if err := validateID(id, "allocation id"); err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, `
		DELETE FROM envelope_allocations
		WHERE id = ? AND budget_period_id IN (SELECT id FROM budget_periods WHERE user_id = ?)`,
		id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete allocation: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: allocation %d", common.ErrNotFound, id)
	}
	return nil
}
