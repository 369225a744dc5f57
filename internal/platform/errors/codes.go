// Package errors provides structured error handling with i18n support.
package errors

import "net/http"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Challenge errors
	CodeChallengeMismatch Code = "CHALLENGE_MISMATCH"
	CodeChallengeNotFound Code = "CHALLENGE_NOT_FOUND"

	// Ceremony payload errors
	CodeAttestationMalformed Code = "ATTESTATION_MALFORMED"
	CodeClientDataInvalid    Code = "CLIENT_DATA_INVALID"
	CodeWrongCeremonyType    Code = "WRONG_CEREMONY_TYPE"
	CodeOriginMismatch       Code = "ORIGIN_MISMATCH"

	// Credential errors
	CodeCredentialAlreadyRegistered Code = "CREDENTIAL_ALREADY_REGISTERED"
	CodeCredentialNotFound          Code = "CREDENTIAL_NOT_FOUND"
	CodeSignatureInvalid            Code = "SIGNATURE_INVALID"
	CodeCounterRegression           Code = "COUNTER_REGRESSION"

	// Account errors
	CodeUsernameAlreadyExists Code = "USERNAME_ALREADY_EXISTS"
	CodeInvalidCredentials    Code = "INVALID_CREDENTIALS"
	CodeInvalidAccountState   Code = "INVALID_ACCOUNT_STATE"
	CodeEmailInvalid          Code = "EMAIL_INVALID"
	CodePasswordTooShort      Code = "PASSWORD_TOO_SHORT"

	// Client flow errors
	CodeAuthenticationCancelled     Code = "AUTHENTICATION_CANCELLED"
	CodePasskeyAuthenticationFailed Code = "PASSKEY_AUTHENTICATION_FAILED"
	CodePasskeyNotSupported         Code = "PASSKEY_NOT_SUPPORTED_BY_BROWSER"
	CodeCannotConnect               Code = "CANNOT_CONNECT"

	// Service grant errors
	CodeGrantInvalid  Code = "GRANT_INVALID"
	CodeGrantExpired  Code = "GRANT_EXPIRED"
	CodeGrantMismatch Code = "GRANT_MISMATCH"

	// Storage errors
	CodeNotFound Code = "NOT_FOUND"
)

// HTTPStatus maps domain codes to HTTP status codes.
func (c Code) HTTPStatus() int {
	switch c {
	// Bad request - malformed input
	case CodeAttestationMalformed,
		CodeClientDataInvalid,
		CodeWrongCeremonyType,
		CodeEmailInvalid,
		CodePasswordTooShort:
		return http.StatusBadRequest

	// Unauthorized - authentication failures
	case CodeChallengeMismatch,
		CodeChallengeNotFound,
		CodeOriginMismatch,
		CodeSignatureInvalid,
		CodeCounterRegression,
		CodeInvalidCredentials,
		CodeGrantInvalid,
		CodeGrantExpired:
		return http.StatusUnauthorized

	// Forbidden - authenticated but not allowed
	case CodeGrantMismatch:
		return http.StatusForbidden

	// Not found - resource doesn't exist
	case CodeNotFound,
		CodeCredentialNotFound:
		return http.StatusNotFound

	// Conflict - unique constraint or state precondition
	case CodeCredentialAlreadyRegistered,
		CodeUsernameAlreadyExists,
		CodeInvalidAccountState:
		return http.StatusConflict

	default:
		return http.StatusInternalServerError
	}
}
