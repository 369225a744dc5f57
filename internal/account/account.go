package account

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/gatehouselabs/gatehouse/internal/platform/errors"
)

// MinPasswordLength is the only password policy the service enforces.
const MinPasswordLength = 8

var (
	// ErrEmptyEmail indicates a missing email address.
	ErrEmptyEmail = apperrors.New(apperrors.CodeEmailInvalid, "email is required")
	// ErrInvalidEmail indicates an email that does not match the required shape.
	ErrInvalidEmail = apperrors.New(apperrors.CodeEmailInvalid, "email must look like name@host.tld")
	// ErrPasswordTooShort indicates a password below the minimum length.
	ErrPasswordTooShort = apperrors.WithMetadata(
		apperrors.CodePasswordTooShort,
		"password must be at least 8 characters",
		map[string]string{"MinLength": strconv.Itoa(MinPasswordLength)},
	)

	emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
)

// Account represents an authenticated identity record.
type Account struct {
	ID          string
	Email       string
	HasPassword bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Capabilities describes which credential kinds an identity can present.
//
// This is the raw shape returned by the check-user query; clients collapse it
// into a closed capability variant before branching on it.
type Capabilities struct {
	Exists      bool
	HasPassword bool
	HasPasskey  bool
}

// NormalizeEmail lowercases and trims an email so lookups and uniqueness
// operate on one canonical spelling.
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// ValidateEmail enforces the minimal name@host.tld shape.
func ValidateEmail(s string) error {
	if s == "" {
		return ErrEmptyEmail
	}
	if !emailPattern.MatchString(s) {
		return ErrInvalidEmail
	}
	return nil
}

// ValidatePassword enforces the minimum length policy.
func ValidatePassword(s string) error {
	if len(s) < MinPasswordLength {
		return ErrPasswordTooShort
	}
	return nil
}
