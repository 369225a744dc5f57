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

func (s *Store) PutSession(ctx context.Context, session storage.Session) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(session.TokenDigest) == "" {
		return fmt.Errorf("token digest is required")
	}
	if strings.TrimSpace(session.AccountID) == "" {
		return fmt.Errorf("account id is required")
	}

	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO sessions (token_digest, account_id, created_at, expires_at)
VALUES (?, ?, ?, ?)`,
		session.TokenDigest,
		session.AccountID,
		toMillis(session.CreatedAt),
		toMillis(session.ExpiresAt),
	)
	if err != nil {
		return fmt.Errorf("put session: %w", err)
	}
	return nil
}

// GetSession fetches a session by its token digest.
func (s *Store) GetSession(ctx context.Context, tokenDigest string) (storage.Session, error) {
	if err := ctx.Err(); err != nil {
		return storage.Session{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.Session{}, fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(tokenDigest) == "" {
		return storage.Session{}, fmt.Errorf("token digest is required")
	}

	var (
		session   storage.Session
		createdAt int64
		expiresAt int64
	)
	row := s.sqlDB.QueryRowContext(ctx, `
SELECT token_digest, account_id, created_at, expires_at
FROM sessions WHERE token_digest = ?`, tokenDigest)
	if err := row.Scan(&session.TokenDigest, &session.AccountID, &createdAt, &expiresAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.Session{}, storage.ErrNotFound
		}
		return storage.Session{}, fmt.Errorf("scan session: %w", err)
	}
	session.CreatedAt = fromMillis(createdAt)
	session.ExpiresAt = fromMillis(expiresAt)
	return session, nil
}

// DeleteSession removes a session by its token digest.
func (s *Store) DeleteSession(ctx context.Context, tokenDigest string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(tokenDigest) == "" {
		return fmt.Errorf("token digest is required")
	}

	res, err := s.sqlDB.ExecContext(ctx, `DELETE FROM sessions WHERE token_digest = ?`, tokenDigest)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete session result: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// DeleteExpiredSessions removes sessions whose expiry is at or before now.
func (s *Store) DeleteExpiredSessions(ctx context.Context, now time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}

	if _, err := s.sqlDB.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= ?`, toMillis(now)); err != nil {
		return fmt.Errorf("delete expired sessions: %w", err)
	}
	return nil
}
