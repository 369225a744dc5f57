package httpapi

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"net/http"
	"testing"

	"github.com/gatehouselabs/gatehouse/internal/loginflow"
	apperrors "github.com/gatehouselabs/gatehouse/internal/platform/errors"
	"github.com/gatehouselabs/gatehouse/internal/webauthn"
)

// signingBrowser is a loginflow.Browser backed by a real P-256 key, so the
// full flow exercises genuine attestation and assertion payloads.
type signingBrowser struct {
	t            *testing.T
	origin       string
	key          *ecdsa.PrivateKey
	credentialID []byte
	signCount    uint32
}

func newSigningBrowser(t *testing.T, origin string) *signingBrowser {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return &signingBrowser{
		t:            t,
		origin:       origin,
		key:          key,
		credentialID: []byte("e2e-credential-id"),
	}
}

func (b *signingBrowser) Supported() bool {
	return true
}

func (b *signingBrowser) CreateCredential(ctx context.Context, opts loginflow.RegistrationOptions) (loginflow.CreationResult, error) {
	cose, err := webauthn.EncodeES256PublicKey(&b.key.PublicKey)
	if err != nil {
		b.t.Fatalf("encode cose key: %v", err)
	}
	authData, err := webauthn.AuthenticatorData{
		RPIDHash:  webauthn.RPIDHash(opts.RPID),
		Flags:     webauthn.FlagUserPresent | webauthn.FlagAttestedCredentialData,
		SignCount: 0,
		Credential: &webauthn.AttestedCredential{
			CredentialID: b.credentialID,
			PublicKey:    cose,
		},
	}.Encode()
	if err != nil {
		b.t.Fatalf("encode authenticator data: %v", err)
	}
	attestation, err := webauthn.AttestationObject{Format: "none", AuthData: authData}.Encode()
	if err != nil {
		b.t.Fatalf("encode attestation object: %v", err)
	}
	clientData, err := webauthn.ClientData{
		Type:      webauthn.CeremonyCreate,
		Challenge: opts.Challenge,
		Origin:    b.origin,
	}.Encode()
	if err != nil {
		b.t.Fatalf("encode client data: %v", err)
	}
	return loginflow.CreationResult{
		CredentialID:      string(b.credentialID),
		AttestationObject: attestation,
		ClientDataJSON:    clientData,
		Label:             "e2e authenticator",
	}, nil
}

func (b *signingBrowser) GetAssertion(ctx context.Context, opts loginflow.LoginOptions) (loginflow.AssertionResult, error) {
	b.signCount++
	authData, err := webauthn.AuthenticatorData{
		RPIDHash:  webauthn.RPIDHash(opts.RPID),
		Flags:     webauthn.FlagUserPresent,
		SignCount: b.signCount,
	}.Encode()
	if err != nil {
		b.t.Fatalf("encode authenticator data: %v", err)
	}
	clientData, err := webauthn.ClientData{
		Type:      webauthn.CeremonyGet,
		Challenge: opts.Challenge,
		Origin:    b.origin,
	}.Encode()
	if err != nil {
		b.t.Fatalf("encode client data: %v", err)
	}
	digest := sha256.Sum256(webauthn.SignedBytes(authData, clientData))
	signature, err := ecdsa.SignASN1(rand.Reader, b.key, digest[:])
	if err != nil {
		b.t.Fatalf("sign assertion: %v", err)
	}
	if len(opts.AllowCredentialIDs) == 0 {
		b.t.Fatal("expected at least one allowed credential")
	}
	return loginflow.AssertionResult{
		CredentialID:      opts.AllowCredentialIDs[0],
		AuthenticatorData: authData,
		ClientDataJSON:    clientData,
		Signature:         signature,
	}, nil
}

type recordingShell struct {
	sessions []loginflow.Session
}

func (s *recordingShell) SessionEstablished(session loginflow.Session) {
	s.sessions = append(s.sessions, session)
}

// newE2EFixture builds a server whose allowed origin matches the browser
// fake's origin claim.
func newE2EFixture(t *testing.T) (*apiFixture, *loginflow.Client, *signingBrowser) {
	t.Helper()
	fixture := newAPIFixture(t)
	client := loginflow.NewClient(fixture.server.URL, &http.Client{})
	browser := newSigningBrowser(t, "http://localhost:8080")
	return fixture, client, browser
}

func TestE2E_NewUserRegistersWithPasskey(t *testing.T) {
	fixture, client, browser := newE2EFixture(t)
	shell := &recordingShell{}
	flow := loginflow.New(client, browser, shell)
	flow.SetEmail("alice@example.com")

	if got := flow.SubmitEmail(context.Background()); got != loginflow.StepMethodSelection {
		t.Fatalf("step = %q, want %q", got, loginflow.StepMethodSelection)
	}
	if got := flow.ChoosePasskey(context.Background()); got != loginflow.StepSuccess {
		t.Fatalf("step = %q code = %q, want success", got, flow.ErrorCode())
	}
	if len(shell.sessions) != 1 || shell.sessions[0].Token == "" {
		t.Fatalf("shell sessions = %+v, want one with a token", shell.sessions)
	}

	// The server-side state proves the ceremony persisted what it claims.
	ctx := context.Background()
	acct, err := fixture.store.GetAccountByEmail(ctx, "alice@example.com")
	if err != nil {
		t.Fatalf("account after registration: %v", err)
	}
	creds, err := fixture.store.ListCredentials(ctx, acct.ID)
	if err != nil || len(creds) != 1 {
		t.Fatalf("credentials = %v (err %v), want one", creds, err)
	}
	if creds[0].AccountID != acct.ID {
		t.Fatalf("credential account = %q, want %q", creds[0].AccountID, acct.ID)
	}
}

func TestE2E_PasskeyLoginAfterRegistration(t *testing.T) {
	_, client, browser := newE2EFixture(t)

	// Register through one flow instance.
	registerFlow := loginflow.New(client, browser, &recordingShell{})
	registerFlow.SetEmail("alice@example.com")
	registerFlow.SubmitEmail(context.Background())
	if got := registerFlow.ChoosePasskey(context.Background()); got != loginflow.StepSuccess {
		t.Fatalf("registration step = %q code = %q", got, registerFlow.ErrorCode())
	}

	// A fresh attempt should route the passkey-only account straight into
	// an assertion and succeed.
	shell := &recordingShell{}
	loginFlow := loginflow.New(client, browser, shell)
	loginFlow.SetEmail("alice@example.com")
	if got := loginFlow.SubmitEmail(context.Background()); got != loginflow.StepSuccess {
		t.Fatalf("login step = %q code = %q", got, loginFlow.ErrorCode())
	}
	if len(shell.sessions) != 1 {
		t.Fatalf("sessions = %d, want 1", len(shell.sessions))
	}
}

func TestE2E_WrongPasswordStaysOnPasswordStep(t *testing.T) {
	fixture, client, _ := newE2EFixture(t)
	fixture.postJSON(t, "/v1/auth/register", map[string]string{
		"email":    "alice@example.com",
		"password": "correct horse",
	})

	flow := loginflow.New(client, &signingBrowser{t: t}, &recordingShell{})
	flow.SetEmail("alice@example.com")
	if got := flow.SubmitEmail(context.Background()); got != loginflow.StepPassword {
		t.Fatalf("step = %q, want %q", got, loginflow.StepPassword)
	}
	flow.SetPassword("wrong password")
	if got := flow.SubmitPassword(context.Background()); got != loginflow.StepPassword {
		t.Fatalf("step = %q, want %q", got, loginflow.StepPassword)
	}
	if flow.ErrorCode() != apperrors.CodeInvalidCredentials {
		t.Fatalf("code = %q, want %q", flow.ErrorCode(), apperrors.CodeInvalidCredentials)
	}
	if flow.CanSubmitPassword() {
		t.Fatal("password buffers should be cleared after invalid credentials")
	}
}

// unsupportedBrowser reports no passkey support and fails any prompt.
type unsupportedBrowser struct{}

func (unsupportedBrowser) Supported() bool {
	return false
}

func (unsupportedBrowser) CreateCredential(ctx context.Context, opts loginflow.RegistrationOptions) (loginflow.CreationResult, error) {
	return loginflow.CreationResult{}, apperrors.New(apperrors.CodePasskeyNotSupported, "webauthn unavailable")
}

func (unsupportedBrowser) GetAssertion(ctx context.Context, opts loginflow.LoginOptions) (loginflow.AssertionResult, error) {
	return loginflow.AssertionResult{}, apperrors.New(apperrors.CodePasskeyNotSupported, "webauthn unavailable")
}

func TestE2E_PasskeyOnlyAccountOnUnsupportedBrowser(t *testing.T) {
	_, client, browser := newE2EFixture(t)

	registerFlow := loginflow.New(client, browser, &recordingShell{})
	registerFlow.SetEmail("alice@example.com")
	registerFlow.SubmitEmail(context.Background())
	if got := registerFlow.ChoosePasskey(context.Background()); got != loginflow.StepSuccess {
		t.Fatalf("registration step = %q code = %q", got, registerFlow.ErrorCode())
	}

	flow := loginflow.New(client, unsupportedBrowser{}, &recordingShell{})
	flow.SetEmail("alice@example.com")
	if got := flow.SubmitEmail(context.Background()); got != loginflow.StepEmail {
		t.Fatalf("step = %q, want to stay on %q", got, loginflow.StepEmail)
	}
	if flow.ErrorCode() != apperrors.CodePasskeyNotSupported {
		t.Fatalf("code = %q, want %q", flow.ErrorCode(), apperrors.CodePasskeyNotSupported)
	}
}
