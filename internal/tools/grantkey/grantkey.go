// Package grantkey generates ed25519 keypairs for service grants and mints
// signed grant tokens for operator use.
package grantkey

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Run generates a service grant key pair and writes exports.
func Run(out io.Writer, reader io.Reader) error {
	if out == nil {
		return errors.New("output is required")
	}
	if reader == nil {
		reader = rand.Reader
	}
	publicKey, privateKey, err := ed25519.GenerateKey(reader)
	if err != nil {
		return fmt.Errorf("generate service grant key: %w", err)
	}
	if _, err := fmt.Fprintf(out, "export GATEHOUSE_SERVICE_GRANT_PRIVATE_KEY=%s\n", base64.RawStdEncoding.EncodeToString(privateKey)); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(out, "export GATEHOUSE_SERVICE_GRANT_PUBLIC_KEY=%s\n", base64.RawStdEncoding.EncodeToString(publicKey)); err != nil {
		return err
	}
	return nil
}

// MintInput describes the grant to sign.
type MintInput struct {
	PrivateKey ed25519.PrivateKey
	Issuer     string
	Audience   string
	Scope      string
	TTL        time.Duration
	Now        func() time.Time
}

// Mint signs a short-lived service grant token.
func Mint(in MintInput) (string, error) {
	if len(in.PrivateKey) != ed25519.PrivateKeySize {
		return "", fmt.Errorf("private key must be %d bytes", ed25519.PrivateKeySize)
	}
	if strings.TrimSpace(in.Issuer) == "" {
		return "", errors.New("issuer is required")
	}
	if strings.TrimSpace(in.Audience) == "" {
		return "", errors.New("audience is required")
	}
	if in.TTL <= 0 {
		in.TTL = 15 * time.Minute
	}
	if in.Now == nil {
		in.Now = time.Now
	}
	now := in.Now().UTC()
	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, jwt.MapClaims{
		"iss":   in.Issuer,
		"aud":   in.Audience,
		"iat":   now.Unix(),
		"exp":   now.Add(in.TTL).Unix(),
		"jti":   uuid.NewString(),
		"scope": in.Scope,
	})
	signed, err := token.SignedString(in.PrivateKey)
	if err != nil {
		return "", fmt.Errorf("sign service grant: %w", err)
	}
	return signed, nil
}

// DecodePrivateKey parses a base64-encoded ed25519 private key.
func DecodePrivateKey(value string) (ed25519.PrivateKey, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, errors.New("empty private key")
	}
	decoded, err := base64.RawStdEncoding.DecodeString(value)
	if err != nil {
		decoded, err = base64.StdEncoding.DecodeString(value)
	}
	if err != nil {
		return nil, fmt.Errorf("decode private key: %w", err)
	}
	if len(decoded) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("private key must be %d bytes", ed25519.PrivateKeySize)
	}
	return ed25519.PrivateKey(decoded), nil
}
