package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/coinconductor/coinconductor/internal/common"
	"github.com/coinconductor/coinconductor/internal/model"
)

// CreateBankAccount stores a bank connection. The provider config union is
// flattened into per-provider columns; credentials never reach accounting
// code.
func (s *SQLiteStorage) CreateBankAccount(ctx context.Context, account *model.BankAccount) (*model.BankAccount, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if account == nil {
		return nil, fmt.Errorf("%w: nil bank account", common.ErrValidation)
	}
	if err := validateID(account.UserID, "user id"); err != nil {
		return nil, err
	}
	if err := validateString(account.Name, "name"); err != nil {
		return nil, err
	}
	if account.Config == nil {
		return nil, fmt.Errorf("%w: provider config required", common.ErrValidation)
	}

	var accessURL, secretID, secretKey, environment string
	switch cfg := account.Config.(type) {
	case model.SimpleFINConfig:
		if cfg.AccessURL == "" {
			return nil, fmt.Errorf("%w: simplefin access URL required", common.ErrValidation)
		}
		accessURL = cfg.AccessURL
	case model.GoCardlessConfig:
		if cfg.SecretID == "" || cfg.SecretKey == "" {
			return nil, fmt.Errorf("%w: gocardless secret pair required", common.ErrValidation)
		}
		secretID = cfg.SecretID
		secretKey = cfg.SecretKey
		environment = cfg.Environment
	default:
		return nil, fmt.Errorf("%w: unsupported provider config %T", common.ErrValidation, cfg)
	}

	stored := *account
	stored.Provider = account.Config.Provider()
	now := time.Now().UTC()
	stored.CreatedAt = now
	stored.UpdatedAt = now

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO bank_accounts (user_id, name, provider, access_url, secret_id, secret_key, environment, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		stored.UserID, stored.Name, stored.Provider,
		accessURL, secretID, secretKey, environment, now, now)
	if err != nil {
		return nil, fmt.Errorf("failed to create bank account: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get bank account id: %w", err)
	}

	stored.ID = id
	return &stored, nil
}

func scanBankAccount(row interface{ Scan(...any) error }) (*model.BankAccount, error) {
	var account model.BankAccount
	var accessURL, secretID, secretKey, environment string
	var lastSynced sql.NullTime
	err := row.Scan(&account.ID, &account.UserID, &account.Name, &account.Provider,
		&accessURL, &secretID, &secretKey, &environment, &lastSynced,
		&account.CreatedAt, &account.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if lastSynced.Valid {
		account.LastSynced = &lastSynced.Time
	}
	switch account.Provider {
	case model.ProviderSimpleFIN:
		account.Config = model.SimpleFINConfig{AccessURL: accessURL}
	case model.ProviderGoCardless:
		account.Config = model.GoCardlessConfig{
			SecretID:    secretID,
			SecretKey:   secretKey,
			Environment: environment,
		}
	}
	return &account, nil
}

const bankAccountColumns = `id, user_id, name, provider, access_url, secret_id,
	secret_key, environment, last_synced, created_at, updated_at`

// GetBankAccount returns a bank account by id.
func (s *SQLiteStorage) GetBankAccount(ctx context.Context, userID, id int64) (*model.BankAccount, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateID(userID, "user id"); err != nil {
		return nil, err
	}
	if err := validateID(id, "bank account id"); err != nil {
		return nil, err
	}

	account, err := scanBankAccount(s.db.QueryRowContext(ctx,
		`SELECT `+bankAccountColumns+` FROM bank_accounts WHERE id = ? AND user_id = ?`, id, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: bank account %d", common.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query bank account: %w", err)
	}
	return account, nil
}

// ListBankAccounts returns the user's bank accounts.
func (s *SQLiteStorage) ListBankAccounts(ctx context.Context, userID int64) ([]model.BankAccount, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateID(userID, "user id"); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+bankAccountColumns+` FROM bank_accounts WHERE user_id = ? ORDER BY name`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query bank accounts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var accounts []model.BankAccount
	for rows.Next() {
		account, err := scanBankAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan bank account: %w", err)
		}
		accounts = append(accounts, *account)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating bank accounts: %w", err)
	}
	return accounts, nil
}

// DeleteBankAccount removes a bank connection. Imported transactions keep
// their rows; only the account link is cleared.
func (s *SQLiteStorage) DeleteBankAccount(ctx context.Context, userID, id int64) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateID(userID, "user id"); err != nil {
		return err
	}
	if err := validateID(id, "bank account id"); err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx,
		`DELETE FROM bank_accounts WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete bank account: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: bank account %d", common.ErrNotFound, id)
	}
	return nil
}

// TouchBankAccountSynced records a successful sync time.
func (s *SQLiteStorage) TouchBankAccountSynced(ctx context.Context, userID, id int64, at time.Time) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateID(userID, "user id"); err != nil {
		return err
	}
	if err := validateID(id, "bank account id"); err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE bank_accounts SET last_synced = ?, updated_at = ?
		WHERE id = ? AND user_id = ?`,
		at.UTC(), time.Now().UTC(), id, userID)
	if err != nil {
		return fmt.Errorf("failed to update last synced: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: bank account %d", common.ErrNotFound, id)
	}
	return nil
}
