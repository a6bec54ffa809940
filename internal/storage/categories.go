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

// CreateCategory creates a new envelope for a month.
func (s *SQLiteStorage) CreateCategory(ctx context.Context, userID int64, name, month string, budgetAmount model.Cents) (*model.Category, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateID(userID, "user id"); err != nil {
		return nil, err
	}
	if err := validateString(name, "name"); err != nil {
		return nil, err
	}
	if err := validateMonth(month); err != nil {
		return nil, err
	}
	if err := validateBudgetAmount(budgetAmount); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO categories (user_id, name, month, budget_amount, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		userID, name, month, int64(budgetAmount), now, now)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: category %q already exists for %s", common.ErrValidation, name, month)
		}
		return nil, fmt.Errorf("failed to create category: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get category id: %w", err)
	}

	slog.Debug("created category", "name", name, "month", month, "id", id)
	return &model.Category{
		ID:           id,
		UserID:       userID,
		Name:         name,
		Month:        month,
		BudgetAmount: budgetAmount,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// GetCategory returns a category by id.
func (s *SQLiteStorage) GetCategory(ctx context.Context, userID, id int64) (*model.Category, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateID(userID, "user id"); err != nil {
		return nil, err
	}
	if err := validateID(id, "category id"); err != nil {
		return nil, err
	}

	var cat model.Category
	var amount int64
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, name, month, budget_amount, created_at, updated_at
		FROM categories WHERE id = ? AND user_id = ?`, id, userID).
		Scan(&cat.ID, &cat.UserID, &cat.Name, &cat.Month, &amount, &cat.CreatedAt, &cat.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: category %d", common.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query category: %w", err)
	}

	cat.BudgetAmount = model.Cents(amount)
	return &cat, nil
}

// ListCategories returns the user's categories, optionally filtered to one
// month.
func (s *SQLiteStorage) ListCategories(ctx context.Context, userID int64, month string) ([]model.Category, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateID(userID, "user id"); err != nil {
		return nil, err
	}
	if month != "" {
		if err := validateMonth(month); err != nil {
			return nil, err
		}
	}

	query := `
		SELECT id, user_id, name, month, budget_amount, created_at, updated_at
		FROM categories WHERE user_id = ?`
	args := []any{userID}
	if month != "" {
		query += ` AND month = ?`
		args = append(args, month)
	}
	query += ` ORDER BY month, name`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query categories: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var categories []model.Category
	for rows.Next() {
		var cat model.Category
		var amount int64
		if err := rows.Scan(&cat.ID, &cat.UserID, &cat.Name, &cat.Month, &amount, &cat.CreatedAt, &cat.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		cat.BudgetAmount = model.Cents(amount)
		categories = append(categories, cat)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating categories: %w", err)
	}

	return categories, nil
}

// UpdateCategory renames a category or changes its envelope amount. Month is
// immutable once created.
func (s *SQLiteStorage) UpdateCategory(ctx context.Context, userID, id int64, name string, budgetAmount model.Cents) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateID(userID, "user id"); err != nil {
		return err
	}
	if err := validateID(id, "category id"); err != nil {
		return err
	}
	if err := validateString(name, "name"); err != nil {
		return err
	}
	if err := validateBudgetAmount(budgetAmount); err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE categories SET name = ?, budget_amount = ?, updated_at = ?
		WHERE id = ? AND user_id = ?`,
		name, int64(budgetAmount), time.Now().UTC(), id, userID)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: category name %q already taken for that month", common.ErrValidation, name)
		}
		return fmt.Errorf("failed to update category: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: category %d", common.ErrNotFound, id)
	}
	return nil
}

// DeleteCategory removes a category and its allocations. While transactions
// reference the category the delete is rejected with ErrCategoryInUse,
// unless orphanTransactions is set, in which case their category_id is
// nulled in the same database transaction.
func (s *SQLiteStorage) DeleteCategory(ctx context.Context, userID, id int64, orphanTransactions bool) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateID(userID, "user id"); err != nil {
		return err
	}
	if err := validateID(id, "category id"); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var exists int
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM categories WHERE id = ? AND user_id = ?`, id, userID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check category: %w", err)
	}
	if exists == 0 {
		return fmt.Errorf("%w: category %d", common.ErrNotFound, id)
	}

	var refs int
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM transactions WHERE category_id = ?`, id).Scan(&refs)
	if err != nil {
		return fmt.Errorf("failed to count referencing transactions: %w", err)
	}

	if refs > 0 {
		if !orphanTransactions {
			return fmt.Errorf("%w: %d transactions reference category %d", common.ErrCategoryInUse, refs, id)
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE transactions SET category_id = NULL, version = version + 1, updated_at = ?
			WHERE category_id = ?`, time.Now().UTC(), id); err != nil {
			return fmt.Errorf("failed to orphan transactions: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM envelope_allocations WHERE category_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete allocations: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM categories WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete category: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit delete: %w", err)
	}

	slog.Info("deleted category", "id", id, "orphaned_transactions", refs)
	return nil
}
