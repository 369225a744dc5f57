package loginflow

import (
	"context"
	"testing"

	apperrors "github.com/gatehouselabs/gatehouse/internal/platform/errors"
)

type fakeServer struct {
	caps     Capabilities
	checkErr error

	registerCalls int
	registerErr   error

	loginCalls   int
	loginErr     error
	loginSession Session

	beginRegistrationCalls int
	beginRegistrationErr   error
	registrationOptions    RegistrationOptions
	finishRegistrationErr  error

	beginLoginCalls int
	beginLoginErr   error
	loginOptions    LoginOptions
	finishLoginErr  error

	passkeySession Session
}

func (f *fakeServer) CheckUser(ctx context.Context, email string) (Capabilities, error) {
	if f.checkErr != nil {
		return Capabilities{}, f.checkErr
	}
	return f.caps, nil
}

func (f *fakeServer) RegisterAccount(ctx context.Context, email, password string) (string, error) {
	f.registerCalls++
	if f.registerErr != nil {
		return "", f.registerErr
	}
	return "account-1", nil
}

func (f *fakeServer) Login(ctx context.Context, email, password string) (Session, error) {
	f.loginCalls++
	if f.loginErr != nil {
		return Session{}, f.loginErr
	}
	return f.loginSession, nil
}

func (f *fakeServer) BeginPasskeyRegistration(ctx context.Context, email string) (RegistrationOptions, error) {
	f.beginRegistrationCalls++
	if f.beginRegistrationErr != nil {
		return RegistrationOptions{}, f.beginRegistrationErr
	}
	return f.registrationOptions, nil
}

func (f *fakeServer) FinishPasskeyRegistration(ctx context.Context, in FinishRegistration) (Session, error) {
	if f.finishRegistrationErr != nil {
		return Session{}, f.finishRegistrationErr
	}
	return f.passkeySession, nil
}

func (f *fakeServer) BeginPasskeyLogin(ctx context.Context, email string) (LoginOptions, error) {
	f.beginLoginCalls++
	if f.beginLoginErr != nil {
		return LoginOptions{}, f.beginLoginErr
	}
	return f.loginOptions, nil
}

func (f *fakeServer) FinishPasskeyLogin(ctx context.Context, in AssertionResult) (Session, error) {
	if f.finishLoginErr != nil {
		return Session{}, f.finishLoginErr
	}
	return f.passkeySession, nil
}

type fakeBrowser struct {
	supported bool

	createCalls int
	createErr   error
	creation    CreationResult

	assertCalls int
	assertErr   error
	assertion   AssertionResult
}

func (f *fakeBrowser) Supported() bool {
	return f.supported
}

func (f *fakeBrowser) CreateCredential(ctx context.Context, opts RegistrationOptions) (CreationResult, error) {
	f.createCalls++
	if f.createErr != nil {
		return CreationResult{}, f.createErr
	}
	return f.creation, nil
}

func (f *fakeBrowser) GetAssertion(ctx context.Context, opts LoginOptions) (AssertionResult, error) {
	f.assertCalls++
	if f.assertErr != nil {
		return AssertionResult{}, f.assertErr
	}
	return f.assertion, nil
}

type fakeShell struct {
	sessions []Session
}

func (f *fakeShell) SessionEstablished(session Session) {
	f.sessions = append(f.sessions, session)
}

func newTestFlow(server *fakeServer, browser *fakeBrowser) (*Flow, *fakeShell) {
	shell := &fakeShell{}
	return New(server, browser, shell), shell
}

func TestCapabilitiesCapability(t *testing.T) {
	cases := []struct {
		name string
		caps Capabilities
		want Capability
	}{
		{"new", Capabilities{}, CapabilityNew},
		{"password only", Capabilities{Exists: true, HasPassword: true}, CapabilityPasswordOnly},
		{"passkey only", Capabilities{Exists: true, HasPasskey: true}, CapabilityPasskeyOnly},
		{"both", Capabilities{Exists: true, HasPassword: true, HasPasskey: true}, CapabilityBoth},
		{"none", Capabilities{Exists: true}, CapabilityNone},
	}
	for _, tc := range cases {
		if got := tc.caps.Capability(); got != tc.want {
			t.Errorf("%s: got %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestSubmitEmail_TransitionTable(t *testing.T) {
	cases := []struct {
		name      string
		caps      Capabilities
		supported bool
		wantStep  Step
		wantCode  apperrors.Code
	}{
		{
			name:      "new user with passkey support",
			caps:      Capabilities{},
			supported: true,
			wantStep:  StepMethodSelection,
		},
		{
			name:     "new user without passkey support",
			caps:     Capabilities{},
			wantStep: StepPassword,
		},
		{
			name:      "both methods with passkey support",
			caps:      Capabilities{Exists: true, HasPassword: true, HasPasskey: true},
			supported: true,
			wantStep:  StepMethodSelection,
		},
		{
			name:     "both methods without passkey support",
			caps:     Capabilities{Exists: true, HasPassword: true, HasPasskey: true},
			wantStep: StepPassword,
		},
		{
			name:      "password only with passkey support",
			caps:      Capabilities{Exists: true, HasPassword: true},
			supported: true,
			wantStep:  StepPassword,
		},
		{
			name:     "password only without passkey support",
			caps:     Capabilities{Exists: true, HasPassword: true},
			wantStep: StepPassword,
		},
		{
			name:      "passkey only with passkey support",
			caps:      Capabilities{Exists: true, HasPasskey: true},
			supported: true,
			wantStep:  StepPasskey,
		},
		{
			name:     "passkey only without passkey support",
			caps:     Capabilities{Exists: true, HasPasskey: true},
			wantStep: StepEmail,
			wantCode: apperrors.CodePasskeyNotSupported,
		},
		{
			name:      "account without any method",
			caps:      Capabilities{Exists: true},
			supported: true,
			wantStep:  StepEmail,
			wantCode:  apperrors.CodeInvalidAccountState,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			server := &fakeServer{
				caps:           tc.caps,
				passkeySession: Session{Token: "token", AccountID: "account-1"},
			}
			browser := &fakeBrowser{
				supported: tc.supported,
				assertion: AssertionResult{CredentialID: "cred-1"},
			}
			flow, _ := newTestFlow(server, browser)
			flow.SetEmail("alice@example.com")

			got := flow.SubmitEmail(context.Background())
			// The passkey-only row auto-invokes the ceremony and lands on
			// success when the fake browser cooperates.
			want := tc.wantStep
			if want == StepPasskey {
				want = StepSuccess
			}
			if got != want {
				t.Fatalf("step = %q, want %q", got, want)
			}
			if flow.ErrorCode() != tc.wantCode {
				t.Fatalf("error code = %q, want %q", flow.ErrorCode(), tc.wantCode)
			}
		})
	}
}

func TestSubmitEmail_RequiresEmail(t *testing.T) {
	flow, _ := newTestFlow(&fakeServer{}, &fakeBrowser{})
	flow.SetEmail("   ")

	if got := flow.SubmitEmail(context.Background()); got != StepEmail {
		t.Fatalf("step = %q, want %q", got, StepEmail)
	}
	if flow.ErrorCode() != apperrors.CodeEmailInvalid {
		t.Fatalf("error code = %q, want %q", flow.ErrorCode(), apperrors.CodeEmailInvalid)
	}
}

func TestSubmitEmail_NormalizesEmail(t *testing.T) {
	flow, _ := newTestFlow(&fakeServer{}, &fakeBrowser{})
	flow.SetEmail("  Alice@Example.COM ")

	flow.SubmitEmail(context.Background())
	if flow.Email() != "alice@example.com" {
		t.Fatalf("email = %q, want %q", flow.Email(), "alice@example.com")
	}
}

func TestSubmitEmail_TransportFailureStaysOnEmail(t *testing.T) {
	server := &fakeServer{checkErr: apperrors.New(apperrors.CodeCannotConnect, "refused")}
	flow, _ := newTestFlow(server, &fakeBrowser{supported: true})
	flow.SetEmail("alice@example.com")

	if got := flow.SubmitEmail(context.Background()); got != StepEmail {
		t.Fatalf("step = %q, want %q", got, StepEmail)
	}
	if flow.ErrorCode() != apperrors.CodeCannotConnect {
		t.Fatalf("error code = %q, want %q", flow.ErrorCode(), apperrors.CodeCannotConnect)
	}
}

func TestMethodSelection_CarriesIntent(t *testing.T) {
	server := &fakeServer{caps: Capabilities{}}
	flow, _ := newTestFlow(server, &fakeBrowser{supported: true})
	flow.SetEmail("alice@example.com")
	flow.SubmitEmail(context.Background())

	if flow.Step() != StepMethodSelection {
		t.Fatalf("step = %q, want %q", flow.Step(), StepMethodSelection)
	}
	if !flow.Registering() {
		t.Fatal("expected new-user intent after method selection for unknown email")
	}

	if got := flow.ChoosePassword(); got != StepPassword {
		t.Fatalf("step = %q, want %q", got, StepPassword)
	}
	if !flow.Registering() {
		t.Fatal("intent should survive the method choice")
	}
}

func TestChoosePasskey_RegistersNewUsers(t *testing.T) {
	server := &fakeServer{
		caps:           Capabilities{},
		passkeySession: Session{Token: "token", AccountID: "account-1"},
	}
	browser := &fakeBrowser{
		supported: true,
		creation:  CreationResult{CredentialID: "cred-1"},
	}
	flow, shell := newTestFlow(server, browser)
	flow.SetEmail("alice@example.com")
	flow.SubmitEmail(context.Background())

	if got := flow.ChoosePasskey(context.Background()); got != StepSuccess {
		t.Fatalf("step = %q, want %q", got, StepSuccess)
	}
	if server.beginRegistrationCalls != 1 || browser.createCalls != 1 {
		t.Fatalf("expected one registration ceremony, got begin=%d create=%d", server.beginRegistrationCalls, browser.createCalls)
	}
	if server.beginLoginCalls != 0 || browser.assertCalls != 0 {
		t.Fatal("new-user passkey choice must not run an assertion")
	}
	if len(shell.sessions) != 1 || shell.sessions[0].Token != "token" {
		t.Fatalf("shell sessions = %+v, want one with token", shell.sessions)
	}
}

func TestCanSubmitPassword(t *testing.T) {
	server := &fakeServer{caps: Capabilities{}}
	flow, _ := newTestFlow(server, &fakeBrowser{})
	flow.SetEmail("alice@example.com")
	flow.SubmitEmail(context.Background())

	if flow.CanSubmitPassword() {
		t.Fatal("empty password should not be submittable")
	}
	flow.SetPassword("correct horse")
	if flow.CanSubmitPassword() {
		t.Fatal("creation requires a matching confirmation")
	}
	flow.SetConfirm("correct horse")
	if !flow.CanSubmitPassword() {
		t.Fatal("matching password and confirmation should be submittable")
	}
}

func TestCanSubmitPassword_LoginNeedsNoConfirmation(t *testing.T) {
	server := &fakeServer{caps: Capabilities{Exists: true, HasPassword: true}}
	flow, _ := newTestFlow(server, &fakeBrowser{})
	flow.SetEmail("alice@example.com")
	flow.SubmitEmail(context.Background())

	flow.SetPassword("correct horse")
	if !flow.CanSubmitPassword() {
		t.Fatal("existing-user login should not require a confirmation")
	}
}

func TestSubmitPassword_NewUserRegistersThenLogsIn(t *testing.T) {
	server := &fakeServer{
		caps:         Capabilities{},
		loginSession: Session{Token: "token", AccountID: "account-1"},
	}
	flow, shell := newTestFlow(server, &fakeBrowser{})
	flow.SetEmail("alice@example.com")
	flow.SubmitEmail(context.Background())
	flow.SetPassword("correct horse")
	flow.SetConfirm("correct horse")

	if got := flow.SubmitPassword(context.Background()); got != StepSuccess {
		t.Fatalf("step = %q, want %q", got, StepSuccess)
	}
	if server.registerCalls != 1 {
		t.Fatalf("register calls = %d, want 1", server.registerCalls)
	}
	if server.loginCalls != 1 {
		t.Fatalf("login calls = %d, want 1", server.loginCalls)
	}
	if len(shell.sessions) != 1 {
		t.Fatalf("shell sessions = %d, want 1", len(shell.sessions))
	}
}

func TestSubmitPassword_ExistingUserLogsInDirectly(t *testing.T) {
	server := &fakeServer{
		caps:         Capabilities{Exists: true, HasPassword: true},
		loginSession: Session{Token: "token", AccountID: "account-1"},
	}
	flow, _ := newTestFlow(server, &fakeBrowser{})
	flow.SetEmail("alice@example.com")
	flow.SubmitEmail(context.Background())
	flow.SetPassword("correct horse")

	if got := flow.SubmitPassword(context.Background()); got != StepSuccess {
		t.Fatalf("step = %q, want %q", got, StepSuccess)
	}
	if server.registerCalls != 0 {
		t.Fatalf("register calls = %d, want 0", server.registerCalls)
	}
}

func TestSubmitPassword_InvalidCredentialsClearsBuffers(t *testing.T) {
	server := &fakeServer{
		caps:     Capabilities{Exists: true, HasPassword: true},
		loginErr: apperrors.New(apperrors.CodeInvalidCredentials, "nope"),
	}
	flow, _ := newTestFlow(server, &fakeBrowser{})
	flow.SetEmail("alice@example.com")
	flow.SubmitEmail(context.Background())
	flow.SetPassword("wrong password")

	if got := flow.SubmitPassword(context.Background()); got != StepPassword {
		t.Fatalf("step = %q, want %q", got, StepPassword)
	}
	if flow.ErrorCode() != apperrors.CodeInvalidCredentials {
		t.Fatalf("error code = %q, want %q", flow.ErrorCode(), apperrors.CodeInvalidCredentials)
	}
	if flow.CanSubmitPassword() {
		t.Fatal("cleared password buffers should gate the submit again")
	}
}

func TestSubmitPassword_TransportFailureKeepsBuffers(t *testing.T) {
	server := &fakeServer{
		caps:     Capabilities{Exists: true, HasPassword: true},
		loginErr: apperrors.New(apperrors.CodeCannotConnect, "refused"),
	}
	flow, _ := newTestFlow(server, &fakeBrowser{})
	flow.SetEmail("alice@example.com")
	flow.SubmitEmail(context.Background())
	flow.SetPassword("correct horse")

	if got := flow.SubmitPassword(context.Background()); got != StepPassword {
		t.Fatalf("step = %q, want %q", got, StepPassword)
	}
	if flow.ErrorCode() != apperrors.CodeCannotConnect {
		t.Fatalf("error code = %q, want %q", flow.ErrorCode(), apperrors.CodeCannotConnect)
	}
	if !flow.CanSubmitPassword() {
		t.Fatal("a transport failure should keep the password ready to resubmit")
	}
}

func TestSubmitPassword_RegisterFailureSkipsLogin(t *testing.T) {
	server := &fakeServer{
		caps:        Capabilities{},
		registerErr: apperrors.New(apperrors.CodeUsernameAlreadyExists, "taken"),
	}
	flow, _ := newTestFlow(server, &fakeBrowser{})
	flow.SetEmail("alice@example.com")
	flow.SubmitEmail(context.Background())
	flow.SetPassword("correct horse")
	flow.SetConfirm("correct horse")

	if got := flow.SubmitPassword(context.Background()); got != StepPassword {
		t.Fatalf("step = %q, want %q", got, StepPassword)
	}
	if server.loginCalls != 0 {
		t.Fatalf("login calls = %d, want 0", server.loginCalls)
	}
	if flow.ErrorCode() != apperrors.CodeUsernameAlreadyExists {
		t.Fatalf("error code = %q, want %q", flow.ErrorCode(), apperrors.CodeUsernameAlreadyExists)
	}
}

func TestPasskey_CancelledPromptIsDistinguished(t *testing.T) {
	server := &fakeServer{caps: Capabilities{Exists: true, HasPasskey: true}}
	browser := &fakeBrowser{
		supported: true,
		assertErr: apperrors.New(apperrors.CodeAuthenticationCancelled, "user dismissed the prompt"),
	}
	flow, _ := newTestFlow(server, browser)
	flow.SetEmail("alice@example.com")

	if got := flow.SubmitEmail(context.Background()); got != StepPasskey {
		t.Fatalf("step = %q, want %q", got, StepPasskey)
	}
	if flow.ErrorCode() != apperrors.CodeAuthenticationCancelled {
		t.Fatalf("error code = %q, want %q", flow.ErrorCode(), apperrors.CodeAuthenticationCancelled)
	}
}

func TestPasskey_HardFailureMapsToPasskeyAuthenticationFailed(t *testing.T) {
	server := &fakeServer{
		caps:           Capabilities{Exists: true, HasPasskey: true},
		finishLoginErr: apperrors.New(apperrors.CodeSignatureInvalid, "bad signature"),
	}
	browser := &fakeBrowser{supported: true, assertion: AssertionResult{CredentialID: "cred-1"}}
	flow, _ := newTestFlow(server, browser)
	flow.SetEmail("alice@example.com")

	flow.SubmitEmail(context.Background())
	if flow.ErrorCode() != apperrors.CodePasskeyAuthenticationFailed {
		t.Fatalf("error code = %q, want %q", flow.ErrorCode(), apperrors.CodePasskeyAuthenticationFailed)
	}
}

func TestPasskey_RetryRepeatsSameOperation(t *testing.T) {
	server := &fakeServer{
		caps:           Capabilities{Exists: true, HasPasskey: true},
		passkeySession: Session{Token: "token", AccountID: "account-1"},
	}
	browser := &fakeBrowser{
		supported: true,
		assertErr: apperrors.New(apperrors.CodeAuthenticationCancelled, "dismissed"),
	}
	flow, _ := newTestFlow(server, browser)
	flow.SetEmail("alice@example.com")
	flow.SubmitEmail(context.Background())

	if flow.Step() != StepPasskey || flow.ErrorCode() == "" {
		t.Fatalf("expected a passkey error sub-state, got step=%q code=%q", flow.Step(), flow.ErrorCode())
	}

	browser.assertErr = nil
	browser.assertion = AssertionResult{CredentialID: "cred-1"}
	if got := flow.Retry(context.Background()); got != StepSuccess {
		t.Fatalf("step = %q, want %q", got, StepSuccess)
	}
	if browser.assertCalls != 2 {
		t.Fatalf("assert calls = %d, want 2", browser.assertCalls)
	}
	if browser.createCalls != 0 {
		t.Fatal("retry must not switch an assertion into a registration")
	}
}

func TestPasskey_UsePasswordFallback(t *testing.T) {
	server := &fakeServer{
		caps: Capabilities{Exists: true, HasPassword: true, HasPasskey: true},
	}
	browser := &fakeBrowser{
		supported: true,
		assertErr: apperrors.New(apperrors.CodeAuthenticationCancelled, "dismissed"),
	}
	flow, _ := newTestFlow(server, browser)
	flow.SetEmail("alice@example.com")
	flow.SubmitEmail(context.Background())
	flow.ChoosePasskey(context.Background())

	if !flow.CanUsePassword() {
		t.Fatal("an account with a password should offer the fallback")
	}
	if got := flow.UsePassword(); got != StepPassword {
		t.Fatalf("step = %q, want %q", got, StepPassword)
	}
	if flow.ErrorCode() != "" {
		t.Fatalf("fallback should clear the error, got %q", flow.ErrorCode())
	}
}

func TestPasskey_NoPasswordFallbackWithoutPassword(t *testing.T) {
	server := &fakeServer{caps: Capabilities{Exists: true, HasPasskey: true}}
	browser := &fakeBrowser{
		supported: true,
		assertErr: apperrors.New(apperrors.CodeAuthenticationCancelled, "dismissed"),
	}
	flow, _ := newTestFlow(server, browser)
	flow.SetEmail("alice@example.com")
	flow.SubmitEmail(context.Background())

	if flow.CanUsePassword() {
		t.Fatal("a passkey-only account has no password to fall back to")
	}
	if got := flow.UsePassword(); got != StepPasskey {
		t.Fatalf("step = %q, want %q", got, StepPasskey)
	}
}

func TestPasskey_NewUserAlwaysHasPasswordFallback(t *testing.T) {
	server := &fakeServer{caps: Capabilities{}}
	browser := &fakeBrowser{
		supported: true,
		createErr: apperrors.New(apperrors.CodeAuthenticationCancelled, "dismissed"),
	}
	flow, _ := newTestFlow(server, browser)
	flow.SetEmail("alice@example.com")
	flow.SubmitEmail(context.Background())
	flow.ChoosePasskey(context.Background())

	if !flow.CanUsePassword() {
		t.Fatal("a new user can always create a password instead")
	}
}

func TestChangeEmail_ResetsTransientState(t *testing.T) {
	server := &fakeServer{caps: Capabilities{Exists: true, HasPassword: true}}
	flow, _ := newTestFlow(server, &fakeBrowser{})
	flow.SetEmail("alice@example.com")
	flow.SubmitEmail(context.Background())
	flow.SetPassword("correct horse")

	if got := flow.ChangeEmail(); got != StepEmail {
		t.Fatalf("step = %q, want %q", got, StepEmail)
	}
	if flow.Email() != "" || flow.CanSubmitPassword() {
		t.Fatal("change email must clear all transient fields")
	}
	if flow.ErrorCode() != "" {
		t.Fatalf("error code = %q, want empty", flow.ErrorCode())
	}
}

func TestChangeEmail_NotAvailableFromEmail(t *testing.T) {
	flow, _ := newTestFlow(&fakeServer{}, &fakeBrowser{})
	flow.SetEmail("alice@example.com")

	flow.ChangeEmail()
	if flow.Email() != "alice@example.com" {
		t.Fatal("change email from the email step should be a no-op")
	}
}

func TestFlow_UnknownErrorsBecomeCannotConnect(t *testing.T) {
	server := &fakeServer{checkErr: context.DeadlineExceeded}
	flow, _ := newTestFlow(server, &fakeBrowser{})
	flow.SetEmail("alice@example.com")

	flow.SubmitEmail(context.Background())
	if flow.ErrorCode() != apperrors.CodeCannotConnect {
		t.Fatalf("error code = %q, want %q", flow.ErrorCode(), apperrors.CodeCannotConnect)
	}
}
