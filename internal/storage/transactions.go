package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/coinconductor/coinconductor/internal/common"
	"github.com/coinconductor/coinconductor/internal/model"
	"github.com/coinconductor/coinconductor/internal/service"
)

const transactionColumns = `id, user_id, amount, description, date, category_id,
	budget_period_id, bank_account_id, source, notes, external_id, version,
	created_at, updated_at`

func scanTransaction(row interface{ Scan(...any) error }) (*model.Transaction, error) {
	var txn model.Transaction
	var amount int64
	var categoryID, periodID, accountID sql.NullInt64
	err := row.Scan(&txn.ID, &txn.UserID, &amount, &txn.Description, &txn.Date,
		&categoryID, &periodID, &accountID, &txn.Source, &txn.Notes,
		&txn.ExternalID, &txn.Version, &txn.CreatedAt, &txn.UpdatedAt)
	if err != nil {
		return nil, err
	}

	txn.Amount = model.Cents(amount)
	if categoryID.Valid {
		txn.CategoryID = &categoryID.Int64
	}
	if periodID.Valid {
		txn.BudgetPeriodID = &periodID.Int64
	}
	if accountID.Valid {
		txn.BankAccountID = &accountID.Int64
	}
	return &txn, nil
}

// checkTransactionRefs enforces the cross-reference invariants before a
// write: a non-nil category must exist and belong to the transaction's user;
// a non-nil period must belong to the user and cover the transaction's date.
func (s *SQLiteStorage) checkTransactionRefs(ctx context.Context, txn *model.Transaction) error {
	if txn.CategoryID != nil {
		var ownerID int64
		err := s.db.QueryRowContext(ctx,
			`SELECT user_id FROM categories WHERE id = ?`, *txn.CategoryID).Scan(&ownerID)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: category %d", common.ErrNotFound, *txn.CategoryID)
		}
		if err != nil {
			return fmt.Errorf("failed to check category reference: %w", err)
		}
		if ownerID != txn.UserID {
			return fmt.Errorf("%w: category %d", common.ErrCategoryNotOwned, *txn.CategoryID)
		}
	}

	if txn.BudgetPeriodID != nil {
		period, err := s.GetPeriod(ctx, txn.UserID, *txn.BudgetPeriodID)
		if err != nil {
			return err
		}
		if !period.Covers(txn.Date) {
			return fmt.Errorf("%w: %s not in period %q", common.ErrPeriodMismatch,
				txn.Date.Format("2006-01-02"), period.Name)
		}
	}

	return nil
}

// CreateTransaction stores a new transaction. An empty ID gets a generated
// UUID; the fingerprint is always recomputed; the version starts at 1.
func (s *SQLiteStorage) CreateTransaction(ctx context.Context, txn *model.Transaction) (*model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateTransaction(txn); err != nil {
		return nil, err
	}
	if err := s.checkTransactionRefs(ctx, txn); err != nil {
		return nil, err
	}

	stored := *txn
	if stored.ID == "" {
		stored.ID = uuid.NewString()
	}
	stored.Date = stored.Date.UTC()
	stored.Version = 1
	now := time.Now().UTC()
	stored.CreatedAt = now
	stored.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO transactions (id, user_id, amount, description, date, category_id,
			budget_period_id, bank_account_id, source, notes, external_id, fingerprint,
			version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		stored.ID, stored.UserID, int64(stored.Amount), stored.Description, stored.Date,
		nullableID(stored.CategoryID), nullableID(stored.BudgetPeriodID),
		nullableID(stored.BankAccountID), stored.Source, stored.Notes,
		stored.ExternalID, stored.Fingerprint(), stored.Version,
		stored.CreatedAt, stored.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: transaction %s", common.ErrValidation, stored.ID)
		}
		return nil, fmt.Errorf("failed to insert transaction %s: %w", stored.ID, err)
	}

	slog.Debug("created transaction",
		"id", stored.ID, "amount", stored.Amount, "source", stored.Source)
	return &stored, nil
}

// GetTransaction returns a transaction by id.
func (s *SQLiteStorage) GetTransaction(ctx context.Context, userID int64, id string) (*model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateID(userID, "user id"); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}

	txn, err := scanTransaction(s.db.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE id = ? AND user_id = ?`, id, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: transaction %s", common.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query transaction: %w", err)
	}
	return txn, nil
}

// ListTransactions returns transactions matching the filter, newest first.
func (s *SQLiteStorage) ListTransactions(ctx context.Context, userID int64, filter service.TransactionFilter) ([]model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateID(userID, "user id"); err != nil {
		return nil, err
	}
	if filter.CategoryID != nil && *filter.CategoryID <= 0 {
		return nil, fmt.Errorf("%w: category id must be positive or nil", common.ErrValidation)
	}

	var conditions []string
	args := []any{userID}
	conditions = append(conditions, "user_id = ?")

	if filter.Unassigned {
		conditions = append(conditions, "category_id IS NULL")
	} else if filter.CategoryID != nil {
		conditions = append(conditions, "category_id = ?")
		args = append(args, *filter.CategoryID)
	}
	if filter.BudgetPeriodID != nil {
		conditions = append(conditions, "budget_period_id = ?")
		args = append(args, *filter.BudgetPeriodID)
	}
	if filter.StartDate != nil {
		conditions = append(conditions, "date >= ?")
		args = append(args, filter.StartDate.UTC())
	}
	if filter.EndDate != nil {
		conditions = append(conditions, "date <= ?")
		args = append(args, filter.EndDate.UTC())
	}
	if filter.Source != "" {
		conditions = append(conditions, "source = ?")
		args = append(args, filter.Source)
	}

	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE ` +
		strings.Join(conditions, " AND ") + ` ORDER BY date DESC, id`
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d OFFSET %d", filter.Limit, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var transactions []model.Transaction
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		transactions = append(transactions, *txn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transactions: %w", err)
	}
	return transactions, nil
}

// UpdateTransaction writes a transaction with compare-and-swap semantics:
// the write succeeds only if the stored version equals txn.Version, and
// fails with ErrStaleWrite otherwise. The caller must re-read and retry.
func (s *SQLiteStorage) UpdateTransaction(ctx context.Context, txn *model.Transaction) (*model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateTransaction(txn); err != nil {
		return nil, err
	}
	if err := validateString(txn.ID, "id"); err != nil {
		return nil, err
	}
	if err := s.checkTransactionRefs(ctx, txn); err != nil {
		return nil, err
	}

	stored := *txn
	stored.Date = stored.Date.UTC()
	stored.UpdatedAt = time.Now().UTC()

	result, err := s.db.ExecContext(ctx, `
		UPDATE transactions
		SET amount = ?, description = ?, date = ?, category_id = ?, budget_period_id = ?,
			source = ?, notes = ?, fingerprint = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND user_id = ? AND version = ?`,
		int64(stored.Amount), stored.Description, stored.Date,
		nullableID(stored.CategoryID), nullableID(stored.BudgetPeriodID),
		stored.Source, stored.Notes, stored.Fingerprint(), stored.UpdatedAt,
		stored.ID, stored.UserID, stored.Version)
	if err != nil {
		return nil, fmt.Errorf("failed to update transaction %s: %w", stored.ID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		// Distinguish a missing row from a lost race.
		var exists int
		if err := s.db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM transactions WHERE id = ? AND user_id = ?`,
			stored.ID, stored.UserID).Scan(&exists); err != nil {
			return nil, fmt.Errorf("failed to check transaction existence: %w", err)
		}
		if exists == 0 {
			return nil, fmt.Errorf("%w: transaction %s", common.ErrNotFound, stored.ID)
		}
		return nil, fmt.Errorf("%w: transaction %s", common.ErrStaleWrite, stored.ID)
	}

	stored.Version++
	return &stored, nil
}

// DeleteTransaction removes a transaction. Nothing cascades.
func (s *SQLiteStorage) DeleteTransaction(ctx context.Context, userID int64, id string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateID(userID, "user id"); err != nil {
		return err
	}
	if err := validateString(id, "id"); err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx,
		`DELETE FROM transactions WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete transaction: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: transaction %s", common.ErrNotFound, id)
	}
	return nil
}

// FindTransactionByExternalID looks up an imported transaction by its
// provider id. Returns nil without error when no match exists.
func (s *SQLiteStorage) FindTransactionByExternalID(ctx context.Context, userID, bankAccountID int64, externalID string) (*model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateID(userID, "user id"); err != nil {
		return nil, err
	}
	if err := validateID(bankAccountID, "bank account id"); err != nil {
		return nil, err
	}
	if err := validateString(externalID, "externalID"); err != nil {
		return nil, err
	}

	txn, err := scanTransaction(s.db.QueryRowContext(ctx, `
		SELECT `+transactionColumns+` FROM transactions
		WHERE user_id = ? AND bank_account_id = ? AND external_id = ?`,
		userID, bankAccountID, externalID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query transaction by external id: %w", err)
	}
	return txn, nil
}

// FindTransactionBySourceExternalID looks up an imported transaction by its
// provider id within one source, for feeds with no bank account connection
// (statement files). Returns nil without error when no match exists.
func (s *SQLiteStorage) FindTransactionBySourceExternalID(ctx context.Context, userID int64, source, externalID string) (*model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateID(userID, "user id"); err != nil {
		return nil, err
	}
	if err := validateString(source, "source"); err != nil {
		return nil, err
	}
	if err := validateString(externalID, "externalID"); err != nil {
		return nil, err
	}

	txn, err := scanTransaction(s.db.QueryRowContext(ctx, `
		SELECT `+transactionColumns+` FROM transactions
		WHERE user_id = ? AND source = ? AND external_id = ?
		LIMIT 1`, userID, source, externalID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query transaction by source external id: %w", err)
	}
	return txn, nil
}

// FindTransactionByFingerprint looks up a transaction by its (date, amount,
// description) fingerprint within one source. Returns nil without error when
// no match exists.
func (s *SQLiteStorage) FindTransactionByFingerprint(ctx context.Context, userID int64, source, fingerprint string) (*model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateID(userID, "user id"); err != nil {
		return nil, err
	}
	if err := validateString(source, "source"); err != nil {
		return nil, err
	}
	if err := validateString(fingerprint, "fingerprint"); err != nil {
		return nil, err
	}

	txn, err := scanTransaction(s.db.QueryRowContext(ctx, `
		SELECT `+transactionColumns+` FROM transactions
		WHERE user_id = ? AND source = ? AND fingerprint = ?
		LIMIT 1`, userID, source, fingerprint))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query transaction by fingerprint: %w", err)
	}
	return txn, nil
}

func nullableID(id *int64) any {
	if id == nil {
		return nil
	}
	return *id
}
