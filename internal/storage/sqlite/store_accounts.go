package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gatehouselabs/gatehouse/internal/storage"
)

func (s *Store) PutAccount(ctx context.Context, account storage.Account) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(account.ID) == "" {
		return fmt.Errorf("account id is required")
	}
	if strings.TrimSpace(account.Email) == "" {
		return fmt.Errorf("account email is required")
	}

	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO accounts (id, email, password_hash, created_at, updated_at)
VALUES (?, ?, ?, ?, ?)`,
		account.ID,
		account.Email,
		account.PasswordHash,
		toMillis(account.CreatedAt),
		toMillis(account.UpdatedAt),
	)
	if err != nil {
		if isUniqueViolation(err, "accounts.email") {
			return storage.ErrDuplicateEmail
		}
		return fmt.Errorf("put account: %w", err)
	}
	return nil
}

// GetAccount fetches an account by its id.
func (s *Store) GetAccount(ctx context.Context, accountID string) (storage.Account, error) {
	if err := ctx.Err(); err != nil {
		return storage.Account{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.Account{}, fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(accountID) == "" {
		return storage.Account{}, fmt.Errorf("account id is required")
	}

	row := s.sqlDB.QueryRowContext(ctx, `
SELECT id, email, password_hash, created_at, updated_at
FROM accounts WHERE id = ?`, accountID)
	return scanAccount(row)
}

// GetAccountByEmail fetches an account by its normalized email.
func (s *Store) GetAccountByEmail(ctx context.Context, email string) (storage.Account, error) {
	if err := ctx.Err(); err != nil {
		return storage.Account{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.Account{}, fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(email) == "" {
		return storage.Account{}, fmt.Errorf("account email is required")
	}

	row := s.sqlDB.QueryRowContext(ctx, `
SELECT id, email, password_hash, created_at, updated_at
FROM accounts WHERE email = ?`, email)
	return scanAccount(row)
}

// UpdateAccountPassword replaces the stored password hash.
func (s *Store) UpdateAccountPassword(ctx context.Context, accountID string, passwordHash []byte, updatedAt time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(accountID) == "" {
		return fmt.Errorf("account id is required")
	}

	res, err := s.sqlDB.ExecContext(ctx, `
UPDATE accounts SET password_hash = ?, updated_at = ? WHERE id = ?`,
		passwordHash, toMillis(updatedAt), accountID)
	if err != nil {
		return fmt.Errorf("update account password: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update account password result: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (storage.Account, error) {
	var (
		account   storage.Account
		hash      []byte
		createdAt int64
		updatedAt int64
	)
	if err := row.Scan(&account.ID, &account.Email, &hash, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.Account{}, storage.ErrNotFound
		}
		return storage.Account{}, fmt.Errorf("scan account: %w", err)
	}
	account.PasswordHash = hash
	account.CreatedAt = fromMillis(createdAt)
	account.UpdatedAt = fromMillis(updatedAt)
	return account, nil
}
