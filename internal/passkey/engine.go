package passkey

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/gatehouselabs/gatehouse/internal/account"
	"github.com/gatehouselabs/gatehouse/internal/challenge"
	"github.com/gatehouselabs/gatehouse/internal/events"
	apperrors "github.com/gatehouselabs/gatehouse/internal/platform/errors"
	"github.com/gatehouselabs/gatehouse/internal/platform/id"
	"github.com/gatehouselabs/gatehouse/internal/session"
	"github.com/gatehouselabs/gatehouse/internal/storage"
	"github.com/gatehouselabs/gatehouse/internal/webauthn"
)

// ErrMissingCeremonyPayload indicates a finish call without the browser's
// response bytes.
var ErrMissingCeremonyPayload = apperrors.New(apperrors.CodeClientDataInvalid, "ceremony response payload is required")

// ErrNoAttestedCredential indicates registration authenticator data that
// carries no attested credential.
var ErrNoAttestedCredential = apperrors.New(apperrors.CodeAttestationMalformed, "authenticator data carries no attested credential")

// SessionIssuer mints bearer tokens for authenticated accounts.
type SessionIssuer interface {
	Issue(ctx context.Context, accountID string) (session.Token, error)
}

// EventRecorder records auth events for asynchronous publication. Recording
// failures never fail a ceremony.
type EventRecorder interface {
	AccountCreated(ctx context.Context, accountID, email string) error
	CredentialRegistered(ctx context.Context, accountID, credentialID, label string) error
	LoginSucceeded(ctx context.Context, accountID, method string) error
}

// Engine runs WebAuthn ceremonies against the configured relying party.
//
// It is the canonical entrypoint for passkey registration and login;
// transport handlers marshal requests into it and map its error codes.
type Engine struct {
	config        Config
	accounts      storage.AccountStore
	credentials   storage.CredentialStore
	registrations storage.RegistrationStore
	challenges    challenge.Store
	sessions      SessionIssuer
	events        EventRecorder
	clock         func() time.Time
	idGenerator   func() (string, error)
}

// NewEngine builds an engine with defaults for the passkey package. The
// atomic new-user path is available when accounts also implements
// storage.RegistrationStore, which the sqlite store does.
func NewEngine(cfg Config, accounts storage.AccountStore, credentials storage.CredentialStore, challenges challenge.Store, sessions SessionIssuer, recorder EventRecorder) *Engine {
	var registrations storage.RegistrationStore
	if accounts != nil {
		if typed, ok := accounts.(storage.RegistrationStore); ok {
			registrations = typed
		}
	}
	return &Engine{
		config:        cfg,
		accounts:      accounts,
		credentials:   credentials,
		registrations: registrations,
		challenges:    challenges,
		sessions:      sessions,
		events:        recorder,
		clock:         time.Now,
		idGenerator:   id.NewID,
	}
}

// RegistrationOptions is what the browser's credential creation call needs.
type RegistrationOptions struct {
	Challenge            string
	RPID                 string
	RPDisplayName        string
	Algorithms           []int64
	ExcludeCredentialIDs []string
}

// LoginOptions is what the browser's assertion call needs.
type LoginOptions struct {
	Challenge          string
	RPID               string
	AllowCredentialIDs []string
}

// Result identifies the account a finished ceremony authenticated.
type Result struct {
	AccountID    string
	Email        string
	CredentialID string
	Token        session.Token
}

// BeginRegistrationInput names the identity registering a passkey: an
// existing account by ID, or a new user by email.
type BeginRegistrationInput struct {
	AccountID string
	Email     string
}

// FinishRegistrationInput carries the browser's creation response.
type FinishRegistrationInput struct {
	AccountID         string
	Email             string
	AttestationObject []byte
	ClientDataJSON    []byte
	Label             string
}

// BeginRegistration issues a registration challenge. Challenges for
// existing accounts are bound to them; new-user challenges are anonymous.
func (e *Engine) BeginRegistration(ctx context.Context, in BeginRegistrationInput) (RegistrationOptions, error) {
	if err := e.ready(ctx); err != nil {
		return RegistrationOptions{}, err
	}

	accountID := strings.TrimSpace(in.AccountID)
	var exclude []string
	if accountID != "" {
		if _, err := e.accounts.GetAccount(ctx, accountID); err != nil {
			return RegistrationOptions{}, fmt.Errorf("get account: %w", err)
		}
		existing, err := e.credentials.ListCredentials(ctx, accountID)
		if err != nil {
			return RegistrationOptions{}, fmt.Errorf("list credentials: %w", err)
		}
		for _, credential := range existing {
			exclude = append(exclude, credential.CredentialID)
		}
	} else {
		email := account.NormalizeEmail(in.Email)
		if err := account.ValidateEmail(email); err != nil {
			return RegistrationOptions{}, err
		}
	}

	value, err := e.challenges.Issue(ctx, accountID)
	if err != nil {
		return RegistrationOptions{}, fmt.Errorf("issue challenge: %w", err)
	}
	return RegistrationOptions{
		Challenge:            webauthn.EncodeChallenge(value),
		RPID:                 e.config.RPID,
		RPDisplayName:        e.config.RPDisplayName,
		Algorithms:           []int64{webauthn.AlgES256},
		ExcludeCredentialIDs: exclude,
	}, nil
}

// FinishRegistration validates the browser's creation response, persists
// the credential, and signs the caller in. New users get their account and
// first credential in one transaction.
func (e *Engine) FinishRegistration(ctx context.Context, in FinishRegistrationInput) (Result, error) {
	if err := e.ready(ctx); err != nil {
		return Result{}, err
	}
	if len(in.AttestationObject) == 0 || len(in.ClientDataJSON) == 0 {
		return Result{}, ErrMissingCeremonyPayload
	}

	clientData, err := webauthn.ParseClientData(in.ClientDataJSON)
	if err != nil {
		return Result{}, err
	}
	if err := clientData.VerifyType(webauthn.CeremonyCreate); err != nil {
		return Result{}, err
	}
	if err := clientData.VerifyOrigin(e.config.RPOrigins); err != nil {
		return Result{}, err
	}
	challengeBytes, err := clientData.DecodedChallenge()
	if err != nil {
		return Result{}, err
	}

	accountID := strings.TrimSpace(in.AccountID)
	if err := e.challenges.Consume(ctx, challengeBytes, accountID); err != nil {
		return Result{}, err
	}

	attestation, err := webauthn.ParseAttestationObject(in.AttestationObject)
	if err != nil {
		return Result{}, err
	}
	authData, err := webauthn.ParseAuthenticatorData(attestation.AuthData)
	if err != nil {
		return Result{}, err
	}
	if authData.RPIDHash != webauthn.RPIDHash(e.config.RPID) {
		return Result{}, webauthn.ErrOriginMismatch
	}
	clientDataHash := sha256.Sum256(in.ClientDataJSON)
	if err := attestation.VerifyAttestation(clientDataHash[:]); err != nil {
		return Result{}, err
	}
	if authData.Credential == nil {
		return Result{}, ErrNoAttestedCredential
	}
	if _, err := webauthn.ParsePublicKey(authData.Credential.PublicKey); err != nil {
		return Result{}, err
	}

	credentialID := encodeCredentialID(authData.Credential.CredentialID)
	now := e.clock().UTC()
	record := storage.Credential{
		CredentialID: credentialID,
		PublicKey:    authData.Credential.PublicKey,
		SignCount:    authData.SignCount,
		AAGUID:       authData.Credential.AAGUID[:],
		Label:        strings.TrimSpace(in.Label),
		CreatedAt:    now,
	}

	var email string
	if accountID == "" {
		email = account.NormalizeEmail(in.Email)
		if err := account.ValidateEmail(email); err != nil {
			return Result{}, err
		}
		if e.registrations == nil {
			return Result{}, fmt.Errorf("registration store is not configured")
		}
		accountID, err = e.idGenerator()
		if err != nil {
			return Result{}, fmt.Errorf("generate account id: %w", err)
		}
		record.AccountID = accountID
		newAccount := storage.Account{ID: accountID, Email: email, CreatedAt: now, UpdatedAt: now}
		if err := e.registrations.CreateAccountWithCredential(ctx, newAccount, record); err != nil {
			return Result{}, err
		}
		e.recordEvent(ctx, "account created", func() error {
			return e.events.AccountCreated(ctx, accountID, email)
		})
	} else {
		found, err := e.accounts.GetAccount(ctx, accountID)
		if err != nil {
			return Result{}, fmt.Errorf("get account: %w", err)
		}
		email = found.Email
		record.AccountID = accountID
		if err := e.credentials.PutCredential(ctx, record); err != nil {
			return Result{}, err
		}
	}
	e.recordEvent(ctx, "credential registered", func() error {
		return e.events.CredentialRegistered(ctx, accountID, credentialID, record.Label)
	})

	token, err := e.sessions.Issue(ctx, accountID)
	if err != nil {
		return Result{}, fmt.Errorf("issue session: %w", err)
	}
	return Result{AccountID: accountID, Email: email, CredentialID: credentialID, Token: token}, nil
}

func (e *Engine) ready(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if e.accounts == nil {
		return fmt.Errorf("account store is not configured")
	}
	if e.credentials == nil {
		return fmt.Errorf("credential store is not configured")
	}
	if e.challenges == nil {
		return fmt.Errorf("challenge store is not configured")
	}
	if e.sessions == nil {
		return fmt.Errorf("session issuer is not configured")
	}
	if e.config.RPID == "" || len(e.config.RPOrigins) == 0 {
		return fmt.Errorf("relying party configuration is not available")
	}
	return nil
}

func (e *Engine) recordEvent(ctx context.Context, name string, record func() error) {
	if e.events == nil {
		return
	}
	if err := record(); err != nil {
		log.Printf("record %s event: %v", name, err)
	}
}

func encodeCredentialID(raw []byte) string {
	return base64.RawURLEncoding.EncodeToString(raw)
}

var _ EventRecorder = (*events.Recorder)(nil)
