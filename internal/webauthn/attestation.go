package webauthn

import (
	"github.com/fxamacker/cbor/v2"
	apperrors "github.com/gatehouselabs/gatehouse/internal/platform/errors"
)

// AttestationObject is the CBOR envelope a registration ceremony returns.
// AuthData holds the raw authenticator data bytes; parse them separately so
// the signed bytes stay available.
type AttestationObject struct {
	Format       string         `cbor:"fmt"`
	AttStatement map[string]any `cbor:"attStmt"`
	AuthData     []byte         `cbor:"authData"`
}

// FormatVerifier validates the attestation statement for one format.
// clientDataHash is the SHA-256 of the client data JSON, which formats with
// self-attestation sign over.
type FormatVerifier func(obj AttestationObject, clientDataHash []byte) error

var formatVerifiers = map[string]FormatVerifier{
	"none": verifyNoneFormat,
}

// RegisterAttestationFormat installs a verifier for an attestation format.
// Call during package initialization, before any ceremony runs.
func RegisterAttestationFormat(format string, verifier FormatVerifier) {
	formatVerifiers[format] = verifier
}

// ParseAttestationObject decodes the attestation envelope.
func ParseAttestationObject(raw []byte) (AttestationObject, error) {
	var obj AttestationObject
	if err := cbor.Unmarshal(raw, &obj); err != nil {
		return AttestationObject{}, apperrors.Wrap(apperrors.CodeAttestationMalformed, "decode attestation object", err)
	}
	if obj.Format == "" {
		return AttestationObject{}, malformed("attestation object missing format")
	}
	if len(obj.AuthData) == 0 {
		return AttestationObject{}, malformed("attestation object missing authenticator data")
	}
	return obj, nil
}

// Encode is the inverse of ParseAttestationObject.
func (a AttestationObject) Encode() ([]byte, error) {
	return ctap2.Marshal(a)
}

// VerifyAttestation dispatches to the verifier registered for the object's
// format.
func (a AttestationObject) VerifyAttestation(clientDataHash []byte) error {
	verifier, ok := formatVerifiers[a.Format]
	if !ok {
		return apperrors.WithMetadata(apperrors.CodeAttestationMalformed, "unsupported attestation format", map[string]string{
			"Format": a.Format,
		})
	}
	return verifier(a, clientDataHash)
}

// The none format asserts nothing, so it must assert it carries nothing.
func verifyNoneFormat(obj AttestationObject, _ []byte) error {
	if len(obj.AttStatement) != 0 {
		return malformed("none attestation must carry an empty statement")
	}
	return nil
}
