package webauthn

import (
	"encoding/binary"
	"math"

	"github.com/fxamacker/cbor/v2"
	apperrors "github.com/gatehouselabs/gatehouse/internal/platform/errors"
)

// Authenticator data is 32 bytes of RP-ID hash, 1 flag byte, and a 4-byte
// big-endian sign counter before any attested credential data.
const authDataMinLength = 37

// Flags is the authenticator data flag byte.
type Flags byte

const (
	FlagUserPresent            Flags = 1 << 0
	FlagUserVerified           Flags = 1 << 2
	FlagAttestedCredentialData Flags = 1 << 6
	FlagExtensionData          Flags = 1 << 7
)

// UserPresent reports whether the authenticator observed user presence.
func (f Flags) UserPresent() bool {
	return f&FlagUserPresent != 0
}

// UserVerified reports whether the authenticator verified the user.
func (f Flags) UserVerified() bool {
	return f&FlagUserVerified != 0
}

// HasAttestedCredential reports whether attested credential data follows.
func (f Flags) HasAttestedCredential() bool {
	return f&FlagAttestedCredentialData != 0
}

// HasExtensions reports whether extension data follows.
func (f Flags) HasExtensions() bool {
	return f&FlagExtensionData != 0
}

// AuthenticatorData is the decoded form of the authenticator data byte
// string. Credential is nil unless the attested-credential flag is set.
type AuthenticatorData struct {
	RPIDHash   [32]byte
	Flags      Flags
	SignCount  uint32
	Credential *AttestedCredential
	Extensions []byte
}

// AttestedCredential carries the credential a registration ceremony created.
// PublicKey holds the raw COSE key bytes exactly as the authenticator
// produced them.
type AttestedCredential struct {
	AAGUID       [16]byte
	CredentialID []byte
	PublicKey    []byte
}

// ParseAuthenticatorData decodes the fixed layout and, when flagged, the
// attested credential data. It fails fast when a declared length exceeds
// the remaining buffer and rejects trailing bytes.
func ParseAuthenticatorData(raw []byte) (AuthenticatorData, error) {
	if len(raw) < authDataMinLength {
		return AuthenticatorData{}, malformed("authenticator data truncated")
	}

	var data AuthenticatorData
	copy(data.RPIDHash[:], raw[:32])
	data.Flags = Flags(raw[32])
	data.SignCount = binary.BigEndian.Uint32(raw[33:authDataMinLength])
	rest := raw[authDataMinLength:]

	if data.Flags.HasAttestedCredential() {
		if len(rest) < 18 {
			return AuthenticatorData{}, malformed("attested credential data truncated")
		}
		credential := &AttestedCredential{}
		copy(credential.AAGUID[:], rest[:16])
		idLen := int(binary.BigEndian.Uint16(rest[16:18]))
		rest = rest[18:]
		if idLen > len(rest) {
			return AuthenticatorData{}, malformed("credential id length exceeds buffer")
		}
		credential.CredentialID = append([]byte(nil), rest[:idLen]...)
		rest = rest[idLen:]

		var key cbor.RawMessage
		remaining, err := cbor.UnmarshalFirst(rest, &key)
		if err != nil {
			return AuthenticatorData{}, apperrors.Wrap(apperrors.CodeAttestationMalformed, "decode credential public key", err)
		}
		credential.PublicKey = append([]byte(nil), key...)
		rest = remaining
		data.Credential = credential
	}

	if data.Flags.HasExtensions() {
		if len(rest) == 0 {
			return AuthenticatorData{}, malformed("extension flag set without extension data")
		}
		data.Extensions = append([]byte(nil), rest...)
		rest = nil
	}
	if len(rest) != 0 {
		return AuthenticatorData{}, malformed("trailing bytes after authenticator data")
	}
	return data, nil
}

// Encode is the inverse of ParseAuthenticatorData. The flag byte must agree
// with the optional sections or the struct does not describe one byte string.
func (d AuthenticatorData) Encode() ([]byte, error) {
	if d.Flags.HasAttestedCredential() != (d.Credential != nil) {
		return nil, malformed("attested credential flag disagrees with credential presence")
	}
	if d.Flags.HasExtensions() != (len(d.Extensions) > 0) {
		return nil, malformed("extension flag disagrees with extension presence")
	}

	buf := make([]byte, 0, authDataMinLength)
	buf = append(buf, d.RPIDHash[:]...)
	buf = append(buf, byte(d.Flags))
	buf = binary.BigEndian.AppendUint32(buf, d.SignCount)

	if d.Credential != nil {
		if len(d.Credential.CredentialID) > math.MaxUint16 {
			return nil, malformed("credential id exceeds encodable length")
		}
		buf = append(buf, d.Credential.AAGUID[:]...)
		buf = binary.BigEndian.AppendUint16(buf, uint16(len(d.Credential.CredentialID)))
		buf = append(buf, d.Credential.CredentialID...)
		buf = append(buf, d.Credential.PublicKey...)
	}
	buf = append(buf, d.Extensions...)
	return buf, nil
}

func malformed(message string) error {
	return apperrors.New(apperrors.CodeAttestationMalformed, message)
}
