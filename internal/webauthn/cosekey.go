package webauthn

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/sha256"
	"fmt"
	"math/big"
	"strconv"

	"github.com/fxamacker/cbor/v2"
	apperrors "github.com/gatehouselabs/gatehouse/internal/platform/errors"
)

// COSE identifiers used by EC2 keys.
const (
	coseKeyTypeEC2 int64 = 2
	coseCurveP256  int64 = 1

	// AlgES256 identifies ECDSA over P-256 with SHA-256 (COSE alg -7).
	AlgES256 int64 = -7
)

// ErrSignatureInvalid indicates an assertion signature that does not verify
// against the stored public key.
var ErrSignatureInvalid = apperrors.New(apperrors.CodeSignatureInvalid, "assertion signature rejected")

var ctap2 = func() cbor.EncMode {
	mode, err := cbor.CTAP2EncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("cbor encode mode: %v", err))
	}
	return mode
}()

// PublicKey verifies WebAuthn signatures for one credential.
type PublicKey interface {
	// Algorithm returns the COSE algorithm identifier the key declares.
	Algorithm() int64
	// Verify checks signature over the signed byte string.
	Verify(signed, signature []byte) error
}

// coseKey is the COSE_Key map with the integer labels EC2 keys use.
type coseKey struct {
	KeyType   int64  `cbor:"1,keyasint"`
	Algorithm int64  `cbor:"3,keyasint"`
	Curve     int64  `cbor:"-1,keyasint,omitempty"`
	X         []byte `cbor:"-2,keyasint,omitempty"`
	Y         []byte `cbor:"-3,keyasint,omitempty"`
}

// publicKeyParsers maps COSE algorithm identifiers to key constructors. New
// algorithms slot in here.
var publicKeyParsers = map[int64]func(coseKey) (PublicKey, error){
	AlgES256: parseES256Key,
}

// ParsePublicKey decodes a COSE key and returns a verifier for its declared
// algorithm.
func ParsePublicKey(raw []byte) (PublicKey, error) {
	var fields coseKey
	if err := cbor.Unmarshal(raw, &fields); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeAttestationMalformed, "decode cose key", err)
	}
	parse, ok := publicKeyParsers[fields.Algorithm]
	if !ok {
		return nil, apperrors.WithMetadata(apperrors.CodeAttestationMalformed, "unsupported cose algorithm", map[string]string{
			"Algorithm": strconv.FormatInt(fields.Algorithm, 10),
		})
	}
	return parse(fields)
}

type es256Key struct {
	public *ecdsa.PublicKey
}

func parseES256Key(fields coseKey) (PublicKey, error) {
	if fields.KeyType != coseKeyTypeEC2 {
		return nil, malformed("es256 key must have key type EC2")
	}
	if fields.Curve != coseCurveP256 {
		return nil, malformed("es256 key must use curve P-256")
	}
	if len(fields.X) != 32 || len(fields.Y) != 32 {
		return nil, malformed("es256 coordinates must be 32 bytes")
	}
	return &es256Key{public: &ecdsa.PublicKey{
		Curve: elliptic.P256(),
		X:     new(big.Int).SetBytes(fields.X),
		Y:     new(big.Int).SetBytes(fields.Y),
	}}, nil
}

func (k *es256Key) Algorithm() int64 {
	return AlgES256
}

func (k *es256Key) Verify(signed, signature []byte) error {
	digest := sha256.Sum256(signed)
	if !ecdsa.VerifyASN1(k.public, digest[:], signature) {
		return ErrSignatureInvalid
	}
	return nil
}

// EncodeES256PublicKey renders an ECDSA P-256 public key as a COSE key.
func EncodeES256PublicKey(public *ecdsa.PublicKey) ([]byte, error) {
	if public == nil || public.X == nil || public.Y == nil {
		return nil, fmt.Errorf("public key is required")
	}
	x := make([]byte, 32)
	y := make([]byte, 32)
	public.X.FillBytes(x)
	public.Y.FillBytes(y)
	return ctap2.Marshal(coseKey{
		KeyType:   coseKeyTypeEC2,
		Algorithm: AlgES256,
		Curve:     coseCurveP256,
		X:         x,
		Y:         y,
	})
}
