package webauthn

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/binary"
	"reflect"
	"testing"

	apperrors "github.com/gatehouselabs/gatehouse/internal/platform/errors"
)

func newTestCOSEKey(t *testing.T) (*ecdsa.PrivateKey, []byte) {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	cose, err := EncodeES256PublicKey(&key.PublicKey)
	if err != nil {
		t.Fatalf("encode cose key: %v", err)
	}
	return key, cose
}

func TestAuthenticatorDataRoundTripBare(t *testing.T) {
	data := AuthenticatorData{
		RPIDHash:  RPIDHash("localhost"),
		Flags:     FlagUserPresent,
		SignCount: 42,
	}

	raw, err := data.Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if len(raw) != authDataMinLength {
		t.Fatalf("encoded len = %d, want %d", len(raw), authDataMinLength)
	}

	parsed, err := ParseAuthenticatorData(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !reflect.DeepEqual(parsed, data) {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", parsed, data)
	}
}

func TestAuthenticatorDataRoundTripAttested(t *testing.T) {
	_, cose := newTestCOSEKey(t)

	data := AuthenticatorData{
		RPIDHash:  RPIDHash("example.com"),
		Flags:     FlagUserPresent | FlagUserVerified | FlagAttestedCredentialData,
		SignCount: 0,
		Credential: &AttestedCredential{
			AAGUID:       [16]byte{1, 2, 3, 4},
			CredentialID: []byte("credential-0001"),
			PublicKey:    cose,
		},
	}

	raw, err := data.Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	parsed, err := ParseAuthenticatorData(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !reflect.DeepEqual(parsed, data) {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", parsed, data)
	}
	if !parsed.Flags.UserPresent() || !parsed.Flags.UserVerified() {
		t.Fatal("expected presence and verification flags")
	}
}

func TestAuthenticatorDataRoundTripExtensions(t *testing.T) {
	data := AuthenticatorData{
		RPIDHash:   RPIDHash("example.com"),
		Flags:      FlagUserPresent | FlagExtensionData,
		SignCount:  7,
		Extensions: []byte{0xa1, 0x63, 0x61, 0x62, 0x63, 0xf5},
	}

	raw, err := data.Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	parsed, err := ParseAuthenticatorData(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !reflect.DeepEqual(parsed, data) {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", parsed, data)
	}
}

func TestAuthenticatorDataLayout(t *testing.T) {
	data := AuthenticatorData{
		RPIDHash:  RPIDHash("localhost"),
		Flags:     FlagUserPresent,
		SignCount: 0x01020304,
	}

	raw, err := data.Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	hash := RPIDHash("localhost")
	if !bytes.Equal(raw[:32], hash[:]) {
		t.Fatal("first 32 bytes must be the RP-ID hash")
	}
	if raw[32] != byte(FlagUserPresent) {
		t.Fatalf("flag byte = %#x, want %#x", raw[32], byte(FlagUserPresent))
	}
	if got := binary.BigEndian.Uint32(raw[33:37]); got != 0x01020304 {
		t.Fatalf("sign count = %#x, want %#x", got, 0x01020304)
	}
}

func TestParseAuthenticatorDataTruncated(t *testing.T) {
	_, err := ParseAuthenticatorData(make([]byte, authDataMinLength-1))
	if apperrors.GetCode(err) != apperrors.CodeAttestationMalformed {
		t.Fatalf("expected AttestationMalformed, got %v", err)
	}
}

func TestParseAuthenticatorDataCredentialLengthOverflow(t *testing.T) {
	raw := make([]byte, authDataMinLength)
	raw[32] = byte(FlagAttestedCredentialData)
	// 16-byte AAGUID plus a declared credential ID length far beyond the buffer.
	raw = append(raw, make([]byte, 16)...)
	raw = binary.BigEndian.AppendUint16(raw, 0xffff)
	raw = append(raw, 0x01)

	_, err := ParseAuthenticatorData(raw)
	if apperrors.GetCode(err) != apperrors.CodeAttestationMalformed {
		t.Fatalf("expected AttestationMalformed, got %v", err)
	}
}

func TestParseAuthenticatorDataAttestedDataTruncated(t *testing.T) {
	raw := make([]byte, authDataMinLength)
	raw[32] = byte(FlagAttestedCredentialData)
	raw = append(raw, make([]byte, 10)...)

	_, err := ParseAuthenticatorData(raw)
	if apperrors.GetCode(err) != apperrors.CodeAttestationMalformed {
		t.Fatalf("expected AttestationMalformed, got %v", err)
	}
}

func TestParseAuthenticatorDataTrailingBytes(t *testing.T) {
	data := AuthenticatorData{RPIDHash: RPIDHash("localhost"), Flags: FlagUserPresent}
	raw, err := data.Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	raw = append(raw, 0x00)

	if _, err := ParseAuthenticatorData(raw); err == nil {
		t.Fatal("expected error for trailing bytes")
	}
}

func TestParseAuthenticatorDataBadCOSEKey(t *testing.T) {
	raw := make([]byte, authDataMinLength)
	raw[32] = byte(FlagAttestedCredentialData)
	raw = append(raw, make([]byte, 16)...)
	raw = binary.BigEndian.AppendUint16(raw, 2)
	raw = append(raw, 0xab, 0xcd)
	// 0xff is not a wellformed CBOR item head.
	raw = append(raw, 0xff)

	_, err := ParseAuthenticatorData(raw)
	if apperrors.GetCode(err) != apperrors.CodeAttestationMalformed {
		t.Fatalf("expected AttestationMalformed, got %v", err)
	}
}

func TestEncodeRejectsInconsistentFlags(t *testing.T) {
	data := AuthenticatorData{
		RPIDHash: RPIDHash("localhost"),
		Flags:    FlagAttestedCredentialData,
	}
	if _, err := data.Encode(); err == nil {
		t.Fatal("expected error when flag is set without credential")
	}

	data = AuthenticatorData{
		RPIDHash:   RPIDHash("localhost"),
		Extensions: []byte{0x01},
	}
	if _, err := data.Encode(); err == nil {
		t.Fatal("expected error when extensions present without flag")
	}
}
