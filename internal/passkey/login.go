package passkey

import (
	"context"
	"fmt"
	"strings"

	"github.com/gatehouselabs/gatehouse/internal/account"
	"github.com/gatehouselabs/gatehouse/internal/events"
	apperrors "github.com/gatehouselabs/gatehouse/internal/platform/errors"
	"github.com/gatehouselabs/gatehouse/internal/storage"
	"github.com/gatehouselabs/gatehouse/internal/webauthn"
)

// ErrCredentialNotFound covers unknown credentials, unknown accounts, and
// user-handle mismatches alike so login failures stay low-information.
var ErrCredentialNotFound = apperrors.New(apperrors.CodeCredentialNotFound, "credential not found")

// FinishLoginInput carries the browser's assertion response.
type FinishLoginInput struct {
	CredentialID      string
	AuthenticatorData []byte
	ClientDataJSON    []byte
	Signature         []byte
	UserHandle        string
}

// BeginLogin issues an assertion challenge bound to the account behind
// email and lists the credential IDs the browser may use.
func (e *Engine) BeginLogin(ctx context.Context, email string) (LoginOptions, error) {
	if err := e.ready(ctx); err != nil {
		return LoginOptions{}, err
	}

	email = account.NormalizeEmail(email)
	if err := account.ValidateEmail(email); err != nil {
		return LoginOptions{}, err
	}
	found, err := e.accounts.GetAccountByEmail(ctx, email)
	if err != nil {
		if err == storage.ErrNotFound {
			return LoginOptions{}, ErrCredentialNotFound
		}
		return LoginOptions{}, fmt.Errorf("get account: %w", err)
	}
	credentials, err := e.credentials.ListCredentials(ctx, found.ID)
	if err != nil {
		return LoginOptions{}, fmt.Errorf("list credentials: %w", err)
	}
	if len(credentials) == 0 {
		return LoginOptions{}, ErrCredentialNotFound
	}

	value, err := e.challenges.Issue(ctx, found.ID)
	if err != nil {
		return LoginOptions{}, fmt.Errorf("issue challenge: %w", err)
	}
	allow := make([]string, 0, len(credentials))
	for _, credential := range credentials {
		allow = append(allow, credential.CredentialID)
	}
	return LoginOptions{
		Challenge:          webauthn.EncodeChallenge(value),
		RPID:               e.config.RPID,
		AllowCredentialIDs: allow,
	}, nil
}

// FinishLogin validates the browser's assertion response, advances the sign
// counter, and signs the caller in.
func (e *Engine) FinishLogin(ctx context.Context, in FinishLoginInput) (Result, error) {
	if err := e.ready(ctx); err != nil {
		return Result{}, err
	}
	credentialID := strings.TrimSpace(in.CredentialID)
	if credentialID == "" {
		return Result{}, ErrCredentialNotFound
	}
	if len(in.AuthenticatorData) == 0 || len(in.ClientDataJSON) == 0 || len(in.Signature) == 0 {
		return Result{}, ErrMissingCeremonyPayload
	}

	credential, err := e.credentials.GetCredential(ctx, credentialID)
	if err != nil {
		if err == storage.ErrNotFound {
			return Result{}, ErrCredentialNotFound
		}
		return Result{}, fmt.Errorf("get credential: %w", err)
	}
	if handle := strings.TrimSpace(in.UserHandle); handle != "" && handle != credential.AccountID {
		return Result{}, ErrCredentialNotFound
	}

	clientData, err := webauthn.ParseClientData(in.ClientDataJSON)
	if err != nil {
		return Result{}, err
	}
	if err := clientData.VerifyType(webauthn.CeremonyGet); err != nil {
		return Result{}, err
	}
	if err := clientData.VerifyOrigin(e.config.RPOrigins); err != nil {
		return Result{}, err
	}
	challengeBytes, err := clientData.DecodedChallenge()
	if err != nil {
		return Result{}, err
	}
	if err := e.challenges.Consume(ctx, challengeBytes, credential.AccountID); err != nil {
		return Result{}, err
	}

	authData, err := webauthn.ParseAuthenticatorData(in.AuthenticatorData)
	if err != nil {
		return Result{}, err
	}
	if authData.RPIDHash != webauthn.RPIDHash(e.config.RPID) {
		return Result{}, webauthn.ErrOriginMismatch
	}

	key, err := webauthn.ParsePublicKey(credential.PublicKey)
	if err != nil {
		return Result{}, err
	}
	if err := webauthn.VerifyAssertionSignature(key, in.AuthenticatorData, in.ClientDataJSON, in.Signature); err != nil {
		return Result{}, err
	}
	if err := webauthn.CheckSignCount(credential.SignCount, authData.SignCount); err != nil {
		return Result{}, err
	}
	if err := e.credentials.UpdateCredentialSignCount(ctx, credentialID, credential.SignCount, authData.SignCount, e.clock().UTC()); err != nil {
		return Result{}, err
	}

	found, err := e.accounts.GetAccount(ctx, credential.AccountID)
	if err != nil {
		return Result{}, fmt.Errorf("get account: %w", err)
	}

	e.recordEvent(ctx, "login succeeded", func() error {
		return e.events.LoginSucceeded(ctx, found.ID, events.MethodPasskey)
	})
	token, err := e.sessions.Issue(ctx, found.ID)
	if err != nil {
		return Result{}, fmt.Errorf("issue session: %w", err)
	}
	return Result{AccountID: found.ID, Email: found.Email, CredentialID: credentialID, Token: token}, nil
}
