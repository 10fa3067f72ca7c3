package errors

import (
	"errors"
	"fmt"
)

// Common error types for the authentication client
var (
	// Input errors
	ErrInvalidInput = errors.New("invalid input")

	// Storage errors
	ErrNoScope = errors.New("no browser scope in context")
	ErrDecrypt = errors.New("unable to decrypt stored value")

	// Provider errors
	ErrMissingAccessToken = errors.New("missing access token")
	ErrMissingIDToken     = errors.New("missing id token")
	ErrNonceMismatch      = errors.New("id token nonce mismatch")
	ErrSubjectMismatch    = errors.New("userinfo subject does not match id token")
	ErrProviderStatus     = errors.New("unexpected provider status")

	// Randomness
	ErrRandomUnavailable = errors.New("secure random source unavailable")

	// General errors
	ErrUnsupported = errors.New("unsupported operation")
)

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}
