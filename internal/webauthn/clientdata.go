package webauthn

import (
	"encoding/base64"
	"encoding/json"

	apperrors "github.com/gatehouselabs/gatehouse/internal/platform/errors"
)

// Ceremony type strings the client data must carry.
const (
	CeremonyCreate = "webauthn.create"
	CeremonyGet    = "webauthn.get"
)

// ErrOriginMismatch indicates client data from an origin the relying party
// does not serve, or authenticator data hashed for a different RP ID.
var ErrOriginMismatch = apperrors.New(apperrors.CodeOriginMismatch, "origin not allowed for this relying party")

// ClientData is the JSON structure the browser hashes and the authenticator
// signs, binding a ceremony to a type, challenge, and origin.
type ClientData struct {
	Type        string `json:"type"`
	Challenge   string `json:"challenge"`
	Origin      string `json:"origin"`
	CrossOrigin bool   `json:"crossOrigin,omitempty"`
}

// ParseClientData decodes client data JSON and requires the three mandatory
// fields.
func ParseClientData(raw []byte) (ClientData, error) {
	var data ClientData
	if err := json.Unmarshal(raw, &data); err != nil {
		return ClientData{}, apperrors.Wrap(apperrors.CodeClientDataInvalid, "decode client data", err)
	}
	if data.Type == "" || data.Challenge == "" || data.Origin == "" {
		return ClientData{}, apperrors.New(apperrors.CodeClientDataInvalid, "client data missing type, challenge, or origin")
	}
	return data, nil
}

// Encode is the inverse of ParseClientData.
func (d ClientData) Encode() ([]byte, error) {
	return json.Marshal(d)
}

// DecodedChallenge returns the challenge bytes. The wire form is base64url
// without padding.
func (d ClientData) DecodedChallenge() ([]byte, error) {
	value, err := base64.RawURLEncoding.DecodeString(d.Challenge)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeClientDataInvalid, "challenge is not base64url", err)
	}
	return value, nil
}

// VerifyType asserts the ceremony type matches the flow consuming it.
func (d ClientData) VerifyType(want string) error {
	if d.Type != want {
		return apperrors.WithMetadata(apperrors.CodeWrongCeremonyType, "client data carries the wrong ceremony type", map[string]string{
			"Got":  d.Type,
			"Want": want,
		})
	}
	return nil
}

// VerifyOrigin asserts the client data origin is one the relying party
// allows. Matching is exact string comparison.
func (d ClientData) VerifyOrigin(allowed []string) error {
	for _, origin := range allowed {
		if d.Origin == origin {
			return nil
		}
	}
	return ErrOriginMismatch
}

// EncodeChallenge renders challenge bytes the way client data carries them.
func EncodeChallenge(value []byte) string {
	return base64.RawURLEncoding.EncodeToString(value)
}
