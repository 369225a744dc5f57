package loginflow

import (
	"context"
	"time"
)

// Step identifies where an authentication attempt currently stands.
type Step string

// Steps of the authentication flow. StepSuccess is terminal; errors keep
// the flow on the step that produced them so the user can retry in place.
const (
	StepEmail           Step = "email"
	StepMethodSelection Step = "method_selection"
	StepPassword        Step = "password"
	StepPasskey         Step = "passkey"
	StepSuccess         Step = "success"
)

// Capabilities is the raw check-user response: which credential kinds the
// identity behind an email can present.
type Capabilities struct {
	Exists      bool
	HasPassword bool
	HasPasskey  bool
}

// Capability is the closed form of Capabilities the flow branches on.
type Capability int

// Capability variants. CapabilityNone marks an existing account with no
// usable credential, a state the server should never produce.
const (
	CapabilityNone Capability = iota
	CapabilityNew
	CapabilityPasswordOnly
	CapabilityPasskeyOnly
	CapabilityBoth
)

// Capability collapses the raw flags into one variant.
func (c Capabilities) Capability() Capability {
	switch {
	case !c.Exists:
		return CapabilityNew
	case c.HasPassword && c.HasPasskey:
		return CapabilityBoth
	case c.HasPassword:
		return CapabilityPasswordOnly
	case c.HasPasskey:
		return CapabilityPasskeyOnly
	default:
		return CapabilityNone
	}
}

// Session is an authenticated outcome: the bearer token and the identity it
// belongs to.
type Session struct {
	Token     string
	AccountID string
	Email     string
	ExpiresAt time.Time
}

// RegistrationOptions is what the browser's credential creation call needs,
// as returned by the server's begin-registration endpoint.
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

// CreationResult is the browser's response to a credential creation prompt.
type CreationResult struct {
	CredentialID      string
	AttestationObject []byte
	ClientDataJSON    []byte
	Label             string
}

// AssertionResult is the browser's response to an assertion prompt.
type AssertionResult struct {
	CredentialID      string
	AuthenticatorData []byte
	ClientDataJSON    []byte
	Signature         []byte
	UserHandle        string
}

// FinishRegistration carries a creation result back to the server together
// with the identity registering it.
type FinishRegistration struct {
	AccountID string
	Email     string
	Creation  CreationResult
}

// Server is the authentication backend the flow drives. The production
// implementation is Client; tests substitute fakes.
type Server interface {
	CheckUser(ctx context.Context, email string) (Capabilities, error)
	RegisterAccount(ctx context.Context, email, password string) (string, error)
	Login(ctx context.Context, email, password string) (Session, error)
	BeginPasskeyRegistration(ctx context.Context, email string) (RegistrationOptions, error)
	FinishPasskeyRegistration(ctx context.Context, in FinishRegistration) (Session, error)
	BeginPasskeyLogin(ctx context.Context, email string) (LoginOptions, error)
	FinishPasskeyLogin(ctx context.Context, in AssertionResult) (Session, error)
}

// Browser wraps the browser's WebAuthn API. Supported is read once per flow;
// the prompt calls block until the user acts or ctx ends.
type Browser interface {
	Supported() bool
	CreateCredential(ctx context.Context, opts RegistrationOptions) (CreationResult, error)
	GetAssertion(ctx context.Context, opts LoginOptions) (AssertionResult, error)
}

// Shell is the host surface notified when a session is established. It owns
// token storage and navigation; the flow only reports the outcome.
type Shell interface {
	SessionEstablished(session Session)
}
