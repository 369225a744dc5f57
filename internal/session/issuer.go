package session

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
	"strings"
	"time"

	apperrors "github.com/gatehouselabs/gatehouse/internal/platform/errors"
	"github.com/gatehouselabs/gatehouse/internal/storage"
)

const tokenSize = 32

// DefaultTTL is the session lifetime when the issuer is given none.
const DefaultTTL = 720 * time.Hour

// ErrInvalidSession covers missing, expired, and revoked sessions alike.
var ErrInvalidSession = apperrors.New(apperrors.CodeNotFound, "session not found")

// Token is a minted session. Value is the raw bearer string handed to the
// client; it is never persisted.
type Token struct {
	Value     string
	AccountID string
	ExpiresAt time.Time
}

// Issuer mints bearer tokens and resolves them back to accounts.
type Issuer struct {
	store storage.SessionStore
	ttl   time.Duration
	clock func() time.Time
	rand  io.Reader
}

// NewIssuer returns an issuer persisting to store. A non-positive ttl
// selects DefaultTTL.
func NewIssuer(store storage.SessionStore, ttl time.Duration) *Issuer {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Issuer{
		store: store,
		ttl:   ttl,
		clock: time.Now,
		rand:  rand.Reader,
	}
}

// Issue mints a fresh token for accountID and persists its digest.
func (i *Issuer) Issue(ctx context.Context, accountID string) (Token, error) {
	if err := ctx.Err(); err != nil {
		return Token{}, err
	}
	if i.store == nil {
		return Token{}, fmt.Errorf("session store is not configured")
	}
	accountID = strings.TrimSpace(accountID)
	if accountID == "" {
		return Token{}, fmt.Errorf("account id is required")
	}

	raw := make([]byte, tokenSize)
	if _, err := io.ReadFull(i.rand, raw); err != nil {
		return Token{}, fmt.Errorf("generate session token: %w", err)
	}
	value := base64.RawURLEncoding.EncodeToString(raw)

	now := i.clock().UTC()
	record := storage.Session{
		TokenDigest: Digest(value),
		AccountID:   accountID,
		CreatedAt:   now,
		ExpiresAt:   now.Add(i.ttl),
	}
	if err := i.store.PutSession(ctx, record); err != nil {
		return Token{}, fmt.Errorf("put session: %w", err)
	}
	return Token{Value: value, AccountID: accountID, ExpiresAt: record.ExpiresAt}, nil
}

// Validate resolves a bearer token to its account. Expired sessions are
// deleted on sight and reported exactly like absent ones.
func (i *Issuer) Validate(ctx context.Context, token string) (storage.Session, error) {
	if err := ctx.Err(); err != nil {
		return storage.Session{}, err
	}
	if i.store == nil {
		return storage.Session{}, fmt.Errorf("session store is not configured")
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return storage.Session{}, ErrInvalidSession
	}

	record, err := i.store.GetSession(ctx, Digest(token))
	if err != nil {
		if err == storage.ErrNotFound {
			return storage.Session{}, ErrInvalidSession
		}
		return storage.Session{}, fmt.Errorf("get session: %w", err)
	}
	if !record.ExpiresAt.After(i.clock().UTC()) {
		_ = i.store.DeleteSession(ctx, record.TokenDigest)
		return storage.Session{}, ErrInvalidSession
	}
	return record, nil
}

// Revoke deletes the session for token. Revoking an unknown token is not an
// error.
func (i *Issuer) Revoke(ctx context.Context, token string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if i.store == nil {
		return fmt.Errorf("session store is not configured")
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return nil
	}
	if err := i.store.DeleteSession(ctx, Digest(token)); err != nil && err != storage.ErrNotFound {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// Digest returns the hex SHA-256 of a token, the only form stored at rest.
func Digest(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
