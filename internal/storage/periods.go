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

// CreatePeriod creates a budget period. Periods for one user must not
// overlap in date range.
func (s *SQLiteStorage) CreatePeriod(ctx context.Context, userID int64, name string, start, end time.Time, totalIncome model.Cents) (*model.BudgetPeriod, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateID(userID, "user id"); err != nil {
		return nil, err
	}
	if err := validateString(name, "name"); err != nil {
		return nil, err
	}
	if start.IsZero() || end.IsZero() || end.Before(start) {
		return nil, fmt.Errorf("%w: period end must not precede start", common.ErrValidation)
	}
	if totalIncome < 0 {
		return nil, fmt.Errorf("%w: total income cannot be negative", common.ErrValidation)
	}

	if err := s.checkPeriodOverlap(ctx, userID, start, end, 0); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO budget_periods (user_id, name, start_date, end_date, total_income, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		userID, name, start.UTC(), end.UTC(), int64(totalIncome), now, now)
	if err != nil {
		return nil, fmt.Errorf("failed to create budget period: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get period id: %w", err)
	}

	slog.Debug("created budget period", "name", name, "id", id)
	return &model.BudgetPeriod{
		ID:          id,
		UserID:      userID,
		Name:        name,
		StartDate:   start.UTC(),
		EndDate:     end.UTC(),
		TotalIncome: totalIncome,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// checkPeriodOverlap rejects a date range that intersects any other period
// of the user. excludeID skips the period being updated.
func (s *SQLiteStorage) checkPeriodOverlap(ctx context.Context, userID int64, start, end time.Time, excludeID int64) error {
	var conflicting int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM budget_periods
		WHERE user_id = ? AND id != ? AND start_date <= ? AND end_date >= ?`,
		userID, excludeID, end.UTC(), start.UTC()).Scan(&conflicting)
	if err != nil {
		return fmt.Errorf("failed to check period overlap: %w", err)
	}
	if conflicting > 0 {
		return fmt.Errorf("%w: %s to %s", common.ErrPeriodOverlap,
			start.Format("2006-01-02"), end.Format("2006-01-02"))
	}
	return nil
}

func scanPeriod(row interface{ Scan(...any) error }) (*model.BudgetPeriod, error) {
	var p model.BudgetPeriod
	var income int64
	if err := row.Scan(&p.ID, &p.UserID, &p.Name, &p.StartDate, &p.EndDate, &income, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.TotalIncome = model.Cents(income)
	return &p, nil
}

const periodColumns = `id, user_id, name, start_date, end_date, total_income, created_at, updated_at`

// GetPeriod returns a budget period by id.
func (s *SQLiteStorage) GetPeriod(ctx context.Context, userID, id int64) (*model.BudgetPeriod, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateID(userID, "user id"); err != nil {
		return nil, err
	}
	if err := validateID(id, "period id"); err != nil {
		return nil, err
	}

	period, err := scanPeriod(s.db.QueryRowContext(ctx,
		`SELECT `+periodColumns+` FROM budget_periods WHERE id = ? AND user_id = ?`, id, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: budget period %d", common.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query budget period: %w", err)
	}
	return period, nil
}

// ListPeriods returns the user's budget periods, newest first.
func (s *SQLiteStorage) ListPeriods(ctx context.Context, userID int64) ([]model.BudgetPeriod, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateID(userID, "user id"); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+periodColumns+` FROM budget_periods WHERE user_id = ? ORDER BY start_date DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query budget periods: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var periods []model.BudgetPeriod
	for rows.Next() {
		p, err := scanPeriod(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan budget period: %w", err)
		}
		periods = append(periods, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating budget periods: %w", err)
	}
	return periods, nil
}

// UpdatePeriod updates a period's name, dates, or income. A date change is
// re-checked for overlap against the user's other periods.
func (s *SQLiteStorage) UpdatePeriod(ctx context.Context, userID int64, period *model.BudgetPeriod) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if period == nil {
		return fmt.Errorf("%w: nil period", common.ErrValidation)
	}
	if err := validateID(userID, "user id"); err != nil {
		return err
	}
	if err := validateID(period.ID, "period id"); err != nil {
		return err
	}
	if err := validateString(period.Name, "name"); err != nil {
		return err
	}
	if period.EndDate.Before(period.StartDate) {
		return fmt.Errorf("%w: period end must not precede start", common.ErrValidation)
	}
	if period.TotalIncome < 0 {
		return fmt.Errorf("%w: total income cannot be negative", common.ErrValidation)
	}

	if err := s.checkPeriodOverlap(ctx, userID, period.StartDate, period.EndDate, period.ID); err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE budget_periods SET name = ?, start_date = ?, end_date = ?, total_income = ?, updated_at = ?
		WHERE id = ? AND user_id = ?`,
		period.Name, period.StartDate.UTC(), period.EndDate.UTC(),
		int64(period.TotalIncome), time.Now().UTC(), period.ID, userID)
	if err != nil {
		return fmt.Errorf("failed to update budget period: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: budget period %d", common.ErrNotFound, period.ID)
	}
	return nil
}

// DeletePeriod removes a period and cascades to its allocations.
// Transactions that referenced the period keep their rows; their period link
// is cleared.
func (s *SQLiteStorage) DeletePeriod(ctx context.Context, userID, id int64) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateID(userID, "user id"); err != nil {
		return err
	}
	if err := validateID(id, "period id"); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		UPDATE transactions SET budget_period_id = NULL, version = version + 1, updated_at = ?
		WHERE budget_period_id = ?`, time.Now().UTC(), id); err != nil {
		return fmt.Errorf("failed to unlink transactions: %w", err)
	}

	result, err := tx.ExecContext(ctx,
		`DELETE FROM budget_periods WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete budget period: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: budget period %d", common.ErrNotFound, id)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit delete: %w", err)
	}
	return nil
}

// GetPeriodCovering returns the period whose date range includes the date,
// or ErrNotFound. At most one can exist because ranges never overlap.
func (s *SQLiteStorage) GetPeriodCovering(ctx context.Context, userID int64, date time.Time) (*model.BudgetPeriod, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateID(userID, "user id"); err != nil {
		return nil, err
	}
	if date.IsZero() {
		return nil, fmt.Errorf("%w: zero date", common.ErrValidation)
	}

	period, err := scanPeriod(s.db.QueryRowContext(ctx, `
		SELECT `+periodColumns+` FROM budget_periods
		WHERE user_id = ? AND start_date <= ? AND end_date >= ?`,
		userID, date.UTC(), date.UTC()))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: no budget period covers %s", common.ErrNotFound, date.Format("2006-01-02"))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query covering period: %w", err)
	}
	return period, nil
}
