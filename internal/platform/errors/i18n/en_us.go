package i18n

// Error codes must match the codes defined in internal/platform/errors/codes.go.
// These are duplicated as strings to avoid an import cycle.
const (
	CodeUnknown                     = "UNKNOWN"
	CodeChallengeMismatch           = "CHALLENGE_MISMATCH"
	CodeChallengeNotFound           = "CHALLENGE_NOT_FOUND"
	CodeAttestationMalformed        = "ATTESTATION_MALFORMED"
	CodeClientDataInvalid           = "CLIENT_DATA_INVALID"
	CodeWrongCeremonyType           = "WRONG_CEREMONY_TYPE"
	CodeOriginMismatch              = "ORIGIN_MISMATCH"
	CodeCredentialAlreadyRegistered = "CREDENTIAL_ALREADY_REGISTERED"
	CodeCredentialNotFound          = "CREDENTIAL_NOT_FOUND"
	CodeSignatureInvalid            = "SIGNATURE_INVALID"
	CodeCounterRegression           = "COUNTER_REGRESSION"
	CodeUsernameAlreadyExists       = "USERNAME_ALREADY_EXISTS"
	CodeInvalidCredentials          = "INVALID_CREDENTIALS"
	CodeInvalidAccountState         = "INVALID_ACCOUNT_STATE"
	CodeEmailInvalid                = "EMAIL_INVALID"
	CodePasswordTooShort            = "PASSWORD_TOO_SHORT"
	CodeAuthenticationCancelled     = "AUTHENTICATION_CANCELLED"
	CodePasskeyAuthenticationFailed = "PASSKEY_AUTHENTICATION_FAILED"
	CodePasskeyNotSupported         = "PASSKEY_NOT_SUPPORTED_BY_BROWSER"
	CodeCannotConnect               = "CANNOT_CONNECT"
	CodeGrantInvalid                = "GRANT_INVALID"
	CodeGrantExpired                = "GRANT_EXPIRED"
	CodeGrantMismatch               = "GRANT_MISMATCH"
	CodeNotFound                    = "NOT_FOUND"
)

var enUSMessages = map[Code]string{
	CodeUnknown:                     "Something went wrong. Please try again.",
	CodeChallengeMismatch:           "This sign-in attempt has expired. Please try again.",
	CodeChallengeNotFound:           "This sign-in attempt has expired. Please try again.",
	CodeAttestationMalformed:        "Your browser sent an unreadable passkey response.",
	CodeClientDataInvalid:           "Your browser sent an unreadable sign-in response.",
	CodeWrongCeremonyType:           "Your browser answered the wrong kind of request.",
	CodeOriginMismatch:              "This sign-in did not come from an approved site.",
	CodeCredentialAlreadyRegistered: "This passkey is already registered.",
	CodeCredentialNotFound:          "We don't recognize that passkey.",
	CodeSignatureInvalid:            "We couldn't verify that passkey.",
	CodeCounterRegression:           "We couldn't verify that passkey.",
	CodeUsernameAlreadyExists:       "An account with that email already exists.",
	CodeInvalidCredentials:          "Incorrect email or password.",
	CodeInvalidAccountState:         "This account has no usable sign-in method. Contact support.",
	CodeEmailInvalid:                "Enter a valid email address.",
	CodePasswordTooShort:            "Password must be at least {{.MinLength}} characters.",
	CodeAuthenticationCancelled:     "Sign-in was cancelled.",
	CodePasskeyAuthenticationFailed: "Passkey sign-in failed. Try again or use your password.",
	CodePasskeyNotSupported:         "This browser doesn't support passkeys.",
	CodeCannotConnect:               "Can't reach the server. Check your connection and try again.",
	CodeGrantInvalid:                "The service grant is invalid.",
	CodeGrantExpired:                "The service grant has expired.",
	CodeGrantMismatch:               "The service grant doesn't cover this operation.",
	CodeNotFound:                    "Not found.",
}

func init() {
	RegisterCatalog("en-US", NewCatalog("en-US", enUSMessages))
}
