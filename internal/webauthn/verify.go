package webauthn

import (
	"crypto/sha256"

	apperrors "github.com/gatehouselabs/gatehouse/internal/platform/errors"
)

// ErrCounterRegression indicates a sign counter that did not advance,
// which points at a cloned authenticator.
var ErrCounterRegression = apperrors.New(apperrors.CodeCounterRegression, "sign counter did not advance")

// RPIDHash returns the SHA-256 hash binding credentials to a relying party.
func RPIDHash(rpID string) [32]byte {
	return sha256.Sum256([]byte(rpID))
}

// SignedBytes assembles the byte string a WebAuthn assertion signs:
// the raw authenticator data followed by the SHA-256 of the client data.
func SignedBytes(authData, clientDataJSON []byte) []byte {
	hash := sha256.Sum256(clientDataJSON)
	signed := make([]byte, 0, len(authData)+len(hash))
	signed = append(signed, authData...)
	return append(signed, hash[:]...)
}

// VerifyAssertionSignature checks the assertion signature with the
// credential's stored public key.
func VerifyAssertionSignature(key PublicKey, authData, clientDataJSON, signature []byte) error {
	if key == nil {
		return ErrSignatureInvalid
	}
	return key.Verify(SignedBytes(authData, clientDataJSON), signature)
}

// CheckSignCount applies the clone-detection rule: the incoming counter must
// be strictly greater than the stored one, except that authenticators
// without a counter report zero permanently and both sides stay zero.
func CheckSignCount(stored, incoming uint32) error {
	if stored == 0 && incoming == 0 {
		return nil
	}
	if incoming > stored {
		return nil
	}
	return ErrCounterRegression
}
