package challenge

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"

	apperrors "github.com/gatehouselabs/gatehouse/internal/platform/errors"
)

// Size is the challenge length in bytes.
const Size = 32

var (
	// ErrNotFound covers absent, expired, and already-consumed challenges.
	// The three cases share one error so callers cannot probe challenge
	// lifetimes.
	ErrNotFound = apperrors.New(apperrors.CodeChallengeNotFound, "challenge not found")
	// ErrMismatch indicates a challenge bound to a different account.
	ErrMismatch = apperrors.New(apperrors.CodeChallengeMismatch, "challenge bound to another account")
)

// Store issues and consumes single-use challenges.
//
// Issue binds the challenge to an account ID when one is given; an empty
// boundAccountID issues an anonymous challenge any flow may consume. Consume
// must be atomic: of any set of concurrent calls with the same candidate,
// at most one returns nil.
type Store interface {
	Issue(ctx context.Context, boundAccountID string) ([]byte, error)
	Consume(ctx context.Context, candidate []byte, expectedAccountID string) error
}

func generate(reader io.Reader) ([]byte, error) {
	if reader == nil {
		reader = rand.Reader
	}
	buf := make([]byte, Size)
	if _, err := io.ReadFull(reader, buf); err != nil {
		return nil, fmt.Errorf("generate challenge: %w", err)
	}
	return buf, nil
}
