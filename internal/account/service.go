package account

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/gatehouselabs/gatehouse/internal/events"
	apperrors "github.com/gatehouselabs/gatehouse/internal/platform/errors"
	"github.com/gatehouselabs/gatehouse/internal/platform/id"
	"github.com/gatehouselabs/gatehouse/internal/storage"
	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidCredentials is returned for both unknown identities and wrong
// passwords so callers cannot probe which emails have accounts.
var ErrInvalidCredentials = apperrors.New(apperrors.CodeInvalidCredentials, "email or password is incorrect")

// dummyHash keeps the bcrypt cost of a failed lookup in line with a real
// comparison. Generated once from an unused input.
var dummyHash = []byte("$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy")

// EventRecorder captures account lifecycle events for later delivery.
type EventRecorder interface {
	AccountCreated(ctx context.Context, accountID, email string) error
	LoginSucceeded(ctx context.Context, accountID, method string) error
}

// Service performs password-based registration and login against the
// account store.
type Service struct {
	accounts    storage.AccountStore
	credentials storage.CredentialStore
	events      EventRecorder
	clock       func() time.Time
	idGenerator func() (string, error)
}

// NewService builds an account service with production defaults. The recorder
// may be nil when event delivery is not wired.
func NewService(accounts storage.AccountStore, credentials storage.CredentialStore, recorder EventRecorder) *Service {
	return &Service{
		accounts:    accounts,
		credentials: credentials,
		events:      recorder,
		clock:       time.Now,
		idGenerator: id.NewID,
	}
}

// Register creates a password-backed account for a new identity.
func (s *Service) Register(ctx context.Context, email, password string) (Account, error) {
	if err := ctx.Err(); err != nil {
		return Account{}, err
	}
	if s == nil || s.accounts == nil {
		return Account{}, fmt.Errorf("account store is not configured")
	}

	email = NormalizeEmail(email)
	if err := ValidateEmail(email); err != nil {
		return Account{}, err
	}
	if err := ValidatePassword(password); err != nil {
		return Account{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return Account{}, fmt.Errorf("hash password: %w", err)
	}
	accountID, err := s.idGenerator()
	if err != nil {
		return Account{}, fmt.Errorf("generate account id: %w", err)
	}

	now := s.clock().UTC()
	record := storage.Account{
		ID:           accountID,
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.accounts.PutAccount(ctx, record); err != nil {
		if errors.Is(err, storage.ErrDuplicateEmail) {
			return Account{}, apperrors.Wrap(apperrors.CodeUsernameAlreadyExists, "email is already registered", err)
		}
		return Account{}, fmt.Errorf("store account: %w", err)
	}

	s.recordEvent(ctx, "account created", func() error {
		return s.events.AccountCreated(ctx, accountID, email)
	})

	return Account{
		ID:          accountID,
		Email:       email,
		HasPassword: true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// Login verifies an email and password pair and returns the account.
func (s *Service) Login(ctx context.Context, email, password string) (Account, error) {
	if err := ctx.Err(); err != nil {
		return Account{}, err
	}
	if s == nil || s.accounts == nil {
		return Account{}, fmt.Errorf("account store is not configured")
	}

	email = NormalizeEmail(email)
	record, err := s.accounts.GetAccountByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
			return Account{}, ErrInvalidCredentials
		}
		return Account{}, fmt.Errorf("load account: %w", err)
	}
	if len(record.PasswordHash) == 0 {
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		return Account{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(record.PasswordHash, []byte(password)); err != nil {
		return Account{}, ErrInvalidCredentials
	}

	s.recordEvent(ctx, "login succeeded", func() error {
		return s.events.LoginSucceeded(ctx, record.ID, events.MethodPassword)
	})

	return fromRecord(record), nil
}

// SetPassword attaches or replaces the password on an existing account.
func (s *Service) SetPassword(ctx context.Context, accountID, password string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.accounts == nil {
		return fmt.Errorf("account store is not configured")
	}
	if err := ValidatePassword(password); err != nil {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.accounts.UpdateAccountPassword(ctx, accountID, hash, s.clock().UTC()); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return apperrors.Wrap(apperrors.CodeNotFound, "account not found", err)
		}
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}

// Get returns the account for an id.
func (s *Service) Get(ctx context.Context, accountID string) (Account, error) {
	if err := ctx.Err(); err != nil {
		return Account{}, err
	}
	if s == nil || s.accounts == nil {
		return Account{}, fmt.Errorf("account store is not configured")
	}

	record, err := s.accounts.GetAccount(ctx, accountID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return Account{}, apperrors.Wrap(apperrors.CodeNotFound, "account not found", err)
		}
		return Account{}, fmt.Errorf("load account: %w", err)
	}
	return fromRecord(record), nil
}

// CheckUser reports the credential capabilities for an identity.
//
// Unknown identities return the zero Capabilities rather than an error so the
// response shape does not reveal whether the lookup or a later step failed.
func (s *Service) CheckUser(ctx context.Context, email string) (Capabilities, error) {
	if err := ctx.Err(); err != nil {
		return Capabilities{}, err
	}
	if s == nil || s.accounts == nil || s.credentials == nil {
		return Capabilities{}, fmt.Errorf("account store is not configured")
	}

	email = NormalizeEmail(email)
	if err := ValidateEmail(email); err != nil {
		return Capabilities{}, err
	}

	record, err := s.accounts.GetAccountByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return Capabilities{}, nil
		}
		return Capabilities{}, fmt.Errorf("load account: %w", err)
	}

	count, err := s.credentials.CountCredentials(ctx, record.ID)
	if err != nil {
		return Capabilities{}, fmt.Errorf("count credentials: %w", err)
	}

	return Capabilities{
		Exists:      true,
		HasPassword: len(record.PasswordHash) > 0,
		HasPasskey:  count > 0,
	}, nil
}

func (s *Service) recordEvent(ctx context.Context, name string, record func() error) {
	if s.events == nil {
		return
	}
	if err := record(); err != nil {
		log.Printf("record %s event: %v", name, err)
	}
}

func fromRecord(record storage.Account) Account {
	return Account{
		ID:          record.ID,
		Email:       record.Email,
		HasPassword: len(record.PasswordHash) > 0,
		CreatedAt:   record.CreatedAt,
		UpdatedAt:   record.UpdatedAt,
	}
}
