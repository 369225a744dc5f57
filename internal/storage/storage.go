// Package storage defines persistence contracts for identity assets.
//
// These interfaces exist so ceremony and account logic can depend on stable
// domain semantics without coupling to SQLite schema details.
package storage

import (
	"context"
	"time"

	"github.com/gatehouselabs/gatehouse/internal/platform/errors"
)

// ErrNotFound indicates a requested record is missing.
var ErrNotFound = errors.New(errors.CodeNotFound, "record not found")

// ErrDuplicateEmail indicates an account with the same email already exists.
var ErrDuplicateEmail = errors.New(errors.CodeUsernameAlreadyExists, "email already registered")

// ErrDuplicateCredential indicates a credential ID is already registered.
var ErrDuplicateCredential = errors.New(errors.CodeCredentialAlreadyRegistered, "credential already registered")

// ErrCounterConflict indicates a conditional sign-counter update lost a race
// or observed a stale counter.
var ErrCounterConflict = errors.New(errors.CodeCounterRegression, "sign counter conflict")

// Account is a stored user account. PasswordHash is empty for accounts that
// authenticate with passkeys only.
type Account struct {
	ID           string
	Email        string
	PasswordHash []byte
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Credential stores a WebAuthn public-key credential for an account.
type Credential struct {
	CredentialID string // base64url, globally unique
	AccountID    string
	PublicKey    []byte // COSE key bytes
	SignCount    uint32
	AAGUID       []byte
	Label        string
	CreatedAt    time.Time
	LastUsedAt   *time.Time
}

// Session stores an issued session token digest. Raw token bytes are never
// persisted.
type Session struct {
	TokenDigest string
	AccountID   string
	CreatedAt   time.Time
	ExpiresAt   time.Time
}

// OutboxEvent is an auth event awaiting publication.
type OutboxEvent struct {
	ID          string
	Topic       string
	Payload     []byte
	CreatedAt   time.Time
	PublishedAt *time.Time
}

// AccountStore persists account records.
type AccountStore interface {
	PutAccount(ctx context.Context, account Account) error
	GetAccount(ctx context.Context, accountID string) (Account, error)
	GetAccountByEmail(ctx context.Context, email string) (Account, error)
	UpdateAccountPassword(ctx context.Context, accountID string, passwordHash []byte, updatedAt time.Time) error
}

// CredentialStore persists WebAuthn credentials.
type CredentialStore interface {
	PutCredential(ctx context.Context, credential Credential) error
	GetCredential(ctx context.Context, credentialID string) (Credential, error)
	ListCredentials(ctx context.Context, accountID string) ([]Credential, error)
	CountCredentials(ctx context.Context, accountID string) (int64, error)
	// UpdateCredentialSignCount sets the stored counter to newCount only when
	// the stored value still equals expected; otherwise ErrCounterConflict.
	UpdateCredentialSignCount(ctx context.Context, credentialID string, expected, newCount uint32, usedAt time.Time) error
	DeleteCredential(ctx context.Context, credentialID string) error
}

// RegistrationStore creates an account and its first credential atomically.
type RegistrationStore interface {
	CreateAccountWithCredential(ctx context.Context, account Account, credential Credential) error
}

// SessionStore persists session token digests.
type SessionStore interface {
	PutSession(ctx context.Context, session Session) error
	GetSession(ctx context.Context, tokenDigest string) (Session, error)
	DeleteSession(ctx context.Context, tokenDigest string) error
	DeleteExpiredSessions(ctx context.Context, now time.Time) error
}

// OutboxStore persists auth events until a publisher drains them.
type OutboxStore interface {
	AppendOutboxEvent(ctx context.Context, event OutboxEvent) error
	ListUnpublishedOutboxEvents(ctx context.Context, limit int) ([]OutboxEvent, error)
	MarkOutboxEventPublished(ctx context.Context, eventID string, publishedAt time.Time) error
}
