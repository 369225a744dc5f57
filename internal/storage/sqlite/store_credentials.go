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

func (s *Store) PutCredential(ctx context.Context, credential storage.Credential) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(credential.CredentialID) == "" {
		return fmt.Errorf("credential id is required")
	}
	if strings.TrimSpace(credential.AccountID) == "" {
		return fmt.Errorf("account id is required")
	}
	if len(credential.PublicKey) == 0 {
		return fmt.Errorf("public key is required")
	}

	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO credentials (credential_id, account_id, public_key, sign_count, aaguid, label, created_at, last_used_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		credential.CredentialID,
		credential.AccountID,
		credential.PublicKey,
		int64(credential.SignCount),
		credential.AAGUID,
		credential.Label,
		toMillis(credential.CreatedAt),
		nullableMillis(credential.LastUsedAt),
	)
	if err != nil {
		if isUniqueViolation(err, "credentials.credential_id") {
			return storage.ErrDuplicateCredential
		}
		return fmt.Errorf("put credential: %w", err)
	}
	return nil
}

// GetCredential fetches a stored credential by its credential ID.
func (s *Store) GetCredential(ctx context.Context, credentialID string) (storage.Credential, error) {
	if err := ctx.Err(); err != nil {
		return storage.Credential{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.Credential{}, fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(credentialID) == "" {
		return storage.Credential{}, fmt.Errorf("credential id is required")
	}

	row := s.sqlDB.QueryRowContext(ctx, `
SELECT credential_id, account_id, public_key, sign_count, aaguid, label, created_at, last_used_at
FROM credentials WHERE credential_id = ?`, credentialID)
	return scanCredential(row)
}

// ListCredentials returns credentials for an account, oldest first.
func (s *Store) ListCredentials(ctx context.Context, accountID string) ([]storage.Credential, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(accountID) == "" {
		return nil, fmt.Errorf("account id is required")
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT credential_id, account_id, public_key, sign_count, aaguid, label, created_at, last_used_at
FROM credentials WHERE account_id = ? ORDER BY created_at ASC, credential_id ASC`, accountID)
	if err != nil {
		return nil, fmt.Errorf("list credentials: %w", err)
	}
	defer rows.Close()

	var credentials []storage.Credential
	for rows.Next() {
		credential, err := scanCredential(rows)
		if err != nil {
			return nil, err
		}
		credentials = append(credentials, credential)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list credentials rows: %w", err)
	}
	return credentials, nil
}

// CountCredentials returns the number of credentials linked to an account.
func (s *Store) CountCredentials(ctx context.Context, accountID string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if s == nil || s.sqlDB == nil {
		return 0, fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(accountID) == "" {
		return 0, fmt.Errorf("account id is required")
	}

	var count int64
	row := s.sqlDB.QueryRowContext(ctx, `SELECT COUNT(*) FROM credentials WHERE account_id = ?`, accountID)
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("count credentials: %w", err)
	}
	return count, nil
}

// UpdateCredentialSignCount conditionally advances the stored sign counter.
// The write succeeds only when the stored counter still equals expected, so a
// losing concurrent writer observably fails.
func (s *Store) UpdateCredentialSignCount(ctx context.Context, credentialID string, expected, newCount uint32, usedAt time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(credentialID) == "" {
		return fmt.Errorf("credential id is required")
	}

	res, err := s.sqlDB.ExecContext(ctx, `
UPDATE credentials SET sign_count = ?, last_used_at = ?
WHERE credential_id = ? AND sign_count = ?`,
		int64(newCount), toMillis(usedAt), credentialID, int64(expected))
	if err != nil {
		return fmt.Errorf("update credential sign count: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update credential sign count result: %w", err)
	}
	if affected == 0 {
		if _, getErr := s.GetCredential(ctx, credentialID); errors.Is(getErr, storage.ErrNotFound) {
			return storage.ErrNotFound
		}
		return storage.ErrCounterConflict
	}
	return nil
}

// DeleteCredential removes a credential by its credential ID.
func (s *Store) DeleteCredential(ctx context.Context, credentialID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(credentialID) == "" {
		return fmt.Errorf("credential id is required")
	}

	res, err := s.sqlDB.ExecContext(ctx, `DELETE FROM credentials WHERE credential_id = ?`, credentialID)
	if err != nil {
		return fmt.Errorf("delete credential: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete credential result: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// CreateAccountWithCredential inserts a new account and its first credential
// in one transaction so a failed registration leaves no partial state.
func (s *Store) CreateAccountWithCredential(ctx context.Context, account storage.Account, credential storage.Credential) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(account.ID) == "" {
		return fmt.Errorf("account id is required")
	}
	if strings.TrimSpace(credential.CredentialID) == "" {
		return fmt.Errorf("credential id is required")
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin registration transaction: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
INSERT INTO accounts (id, email, password_hash, created_at, updated_at)
VALUES (?, ?, ?, ?, ?)`,
		account.ID,
		account.Email,
		account.PasswordHash,
		toMillis(account.CreatedAt),
		toMillis(account.UpdatedAt),
	)
	if err != nil {
		_ = tx.Rollback()
		if isUniqueViolation(err, "accounts.email") {
			return storage.ErrDuplicateEmail
		}
		return fmt.Errorf("insert account: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
INSERT INTO credentials (credential_id, account_id, public_key, sign_count, aaguid, label, created_at, last_used_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		credential.CredentialID,
		credential.AccountID,
		credential.PublicKey,
		int64(credential.SignCount),
		credential.AAGUID,
		credential.Label,
		toMillis(credential.CreatedAt),
		nullableMillis(credential.LastUsedAt),
	)
	if err != nil {
		_ = tx.Rollback()
		if isUniqueViolation(err, "credentials.credential_id") {
			return storage.ErrDuplicateCredential
		}
		return fmt.Errorf("insert credential: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit registration: %w", err)
	}
	return nil
}

func nullableMillis(value *time.Time) sql.NullInt64 {
	if value == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: toMillis(*value), Valid: true}
}

func scanCredential(row rowScanner) (storage.Credential, error) {
	var (
		credential storage.Credential
		signCount  int64
		createdAt  int64
		lastUsed   sql.NullInt64
	)
	if err := row.Scan(
		&credential.CredentialID,
		&credential.AccountID,
		&credential.PublicKey,
		&signCount,
		&credential.AAGUID,
		&credential.Label,
		&createdAt,
		&lastUsed,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.Credential{}, storage.ErrNotFound
		}
		return storage.Credential{}, fmt.Errorf("scan credential: %w", err)
	}
	credential.SignCount = uint32(signCount)
	credential.CreatedAt = fromMillis(createdAt)
	if lastUsed.Valid {
		used := fromMillis(lastUsed.Int64)
		credential.LastUsedAt = &used
	}
	return credential, nil
}
