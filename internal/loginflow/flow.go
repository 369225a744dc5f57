package loginflow

import (
	"context"
	"strings"

	apperrors "github.com/gatehouselabs/gatehouse/internal/platform/errors"
)

// Flow is one authentication attempt. It owns its state exclusively and is
// not safe for concurrent use; the host drives it from a single goroutine
// and suspends only inside the three collaborator calls.
type Flow struct {
	server  Server
	browser Browser
	shell   Shell

	supportsPasskeys bool

	step        Step
	email       string
	password    string
	confirm     string
	errCode     apperrors.Code
	caps        Capabilities
	registering bool
	session     Session
}

// New starts a flow at the email step. Browser passkey support is read once
// here and never re-queried.
func New(server Server, browser Browser, shell Shell) *Flow {
	supported := false
	if browser != nil {
		supported = browser.Supported()
	}
	return &Flow{
		server:           server,
		browser:          browser,
		shell:            shell,
		supportsPasskeys: supported,
		step:             StepEmail,
	}
}

// Step reports the current step.
func (f *Flow) Step() Step {
	return f.step
}

// ErrorCode reports the error attached to the current step, or empty when
// the step is clean.
func (f *Flow) ErrorCode() apperrors.Code {
	return f.errCode
}

// Email reports the entered email.
func (f *Flow) Email() string {
	return f.email
}

// Registering reports whether the flow is creating a new account rather
// than signing an existing one in. Meaningless before SubmitEmail.
func (f *Flow) Registering() bool {
	return f.registering
}

// Session reports the established session. Zero until StepSuccess.
func (f *Flow) Session() Session {
	return f.session
}

// SetEmail updates the email buffer.
func (f *Flow) SetEmail(email string) {
	f.email = email
}

// SetPassword updates the password buffer.
func (f *Flow) SetPassword(password string) {
	f.password = password
}

// SetConfirm updates the password confirmation buffer.
func (f *Flow) SetConfirm(confirm string) {
	f.confirm = confirm
}

// SubmitEmail asks the server what the entered identity can present and
// advances to the matching step. A passkey-only account on a supporting
// browser goes straight into the passkey prompt.
func (f *Flow) SubmitEmail(ctx context.Context) Step {
	if f.step != StepEmail {
		return f.step
	}
	f.errCode = ""

	email := strings.ToLower(strings.TrimSpace(f.email))
	if email == "" {
		f.errCode = apperrors.CodeEmailInvalid
		return f.step
	}
	f.email = email

	caps, err := f.server.CheckUser(ctx, email)
	if err != nil {
		f.errCode = transportCode(err)
		return f.step
	}
	f.caps = caps
	f.registering = !caps.Exists

	switch caps.Capability() {
	case CapabilityNew, CapabilityBoth:
		if f.supportsPasskeys {
			f.step = StepMethodSelection
		} else {
			f.step = StepPassword
		}
	case CapabilityPasswordOnly:
		f.step = StepPassword
	case CapabilityPasskeyOnly:
		if !f.supportsPasskeys {
			f.errCode = apperrors.CodePasskeyNotSupported
			return f.step
		}
		f.step = StepPasskey
		f.runPasskey(ctx)
	case CapabilityNone:
		// An account with neither credential kind is a server-side
		// invariant violation; surface it instead of guessing.
		f.errCode = apperrors.CodeInvalidAccountState
	}
	return f.step
}

// ChoosePassword moves from method selection to the password step, keeping
// the registration-vs-login intent.
func (f *Flow) ChoosePassword() Step {
	if f.step != StepMethodSelection {
		return f.step
	}
	f.errCode = ""
	f.step = StepPassword
	return f.step
}

// ChoosePasskey moves from method selection into the passkey prompt.
func (f *Flow) ChoosePasskey(ctx context.Context) Step {
	if f.step != StepMethodSelection {
		return f.step
	}
	f.errCode = ""
	f.step = StepPasskey
	f.runPasskey(ctx)
	return f.step
}

// CanSubmitPassword gates the password submit control: the password must be
// non-empty, and account creation additionally requires a matching
// confirmation.
func (f *Flow) CanSubmitPassword() bool {
	if f.step != StepPassword || f.password == "" {
		return false
	}
	if f.registering && f.password != f.confirm {
		return false
	}
	return true
}

// SubmitPassword registers and/or logs in with the entered password. New
// identities are registered first and then always logged in, so both paths
// end with a server-issued session. Invalid credentials clear both password
// buffers and keep the user on the step.
func (f *Flow) SubmitPassword(ctx context.Context) Step {
	if !f.CanSubmitPassword() {
		return f.step
	}
	f.errCode = ""

	if f.registering {
		if _, err := f.server.RegisterAccount(ctx, f.email, f.password); err != nil {
			f.errCode = transportCode(err)
			return f.step
		}
	}
	session, err := f.server.Login(ctx, f.email, f.password)
	if err != nil {
		f.errCode = transportCode(err)
		if f.errCode == apperrors.CodeInvalidCredentials {
			f.password = ""
			f.confirm = ""
		}
		return f.step
	}
	f.succeed(session)
	return f.step
}

// Retry re-invokes the passkey operation after a failure, preserving the
// registration-vs-login intent.
func (f *Flow) Retry(ctx context.Context) Step {
	if f.step != StepPasskey {
		return f.step
	}
	f.errCode = ""
	f.runPasskey(ctx)
	return f.step
}

// CanUsePassword reports whether the passkey step may fall back to a
// password: always for new identities, otherwise only when the account has
// one.
func (f *Flow) CanUsePassword() bool {
	if f.step != StepPasskey {
		return false
	}
	return !f.caps.Exists || f.caps.HasPassword
}

// UsePassword falls back from the passkey step to the password step.
func (f *Flow) UsePassword() Step {
	if !f.CanUsePassword() {
		return f.step
	}
	f.errCode = ""
	f.step = StepPassword
	return f.step
}

// ChangeEmail resets the flow to the email step and clears every transient
// field. Available from the password, method selection, and passkey steps.
func (f *Flow) ChangeEmail() Step {
	switch f.step {
	case StepPassword, StepMethodSelection, StepPasskey:
		f.step = StepEmail
		f.email = ""
		f.password = ""
		f.confirm = ""
		f.errCode = ""
		f.caps = Capabilities{}
		f.registering = false
	}
	return f.step
}

// runPasskey drives one WebAuthn ceremony end to end: begin on the server,
// prompt the browser, finish on the server. Every failure lands as an error
// code on the passkey step.
func (f *Flow) runPasskey(ctx context.Context) {
	var session Session
	var err error
	if f.registering {
		session, err = f.registerPasskey(ctx)
	} else {
		session, err = f.assertPasskey(ctx)
	}
	if err != nil {
		f.errCode = passkeyCode(err)
		return
	}
	f.succeed(session)
}

func (f *Flow) registerPasskey(ctx context.Context) (Session, error) {
	opts, err := f.server.BeginPasskeyRegistration(ctx, f.email)
	if err != nil {
		return Session{}, err
	}
	creation, err := f.browser.CreateCredential(ctx, opts)
	if err != nil {
		return Session{}, err
	}
	return f.server.FinishPasskeyRegistration(ctx, FinishRegistration{
		Email:    f.email,
		Creation: creation,
	})
}

func (f *Flow) assertPasskey(ctx context.Context) (Session, error) {
	opts, err := f.server.BeginPasskeyLogin(ctx, f.email)
	if err != nil {
		return Session{}, err
	}
	assertion, err := f.browser.GetAssertion(ctx, opts)
	if err != nil {
		return Session{}, err
	}
	return f.server.FinishPasskeyLogin(ctx, assertion)
}

func (f *Flow) succeed(session Session) {
	f.session = session
	f.password = ""
	f.confirm = ""
	f.errCode = ""
	f.step = StepSuccess
	if f.shell != nil {
		f.shell.SessionEstablished(session)
	}
}

// transportCode maps a collaborator failure to a closed error code. Errors
// without a domain code are treated as transport failures.
func transportCode(err error) apperrors.Code {
	if code := apperrors.GetCode(err); code != apperrors.CodeUnknown {
		return code
	}
	return apperrors.CodeCannotConnect
}

// passkeyCode narrows passkey ceremony failures to the codes the passkey
// step distinguishes: a cancelled prompt, an unsupported browser, a dead
// connection, or a hard authentication failure.
func passkeyCode(err error) apperrors.Code {
	switch code := apperrors.GetCode(err); code {
	case apperrors.CodeAuthenticationCancelled,
		apperrors.CodePasskeyNotSupported,
		apperrors.CodeCannotConnect:
		return code
	default:
		return apperrors.CodePasskeyAuthenticationFailed
	}
}
