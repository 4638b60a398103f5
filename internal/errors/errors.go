package errors

import (
	"errors"
	"fmt"
)

// Error kinds for the session service
var (
	// Envelope errors
	ErrMalformedEnvelope    = errors.New("malformed envelope")
	ErrAuthenticationFailed = errors.New("envelope authentication failed")

	// Token errors
	ErrTokenExpired       = errors.New("token expired")
	ErrInvalidSignature   = errors.New("invalid token signature")
	ErrSigningFailed      = errors.New("token signing failed")
	ErrRefreshFailed      = errors.New("refresh failed")
	ErrRefreshTokenReused = errors.New("refresh token reused")
	ErrSessionRevoked     = errors.New("session revoked")

	// Configuration errors
	ErrInvalidConfig = errors.New("invalid configuration")

	// Authentication errors
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserNotFound       = errors.New("user not found")

	// General errors
	ErrNotFound = errors.New("not found")
	ErrInternal = errors.New("internal error")
)

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// IsGatekeepingFailure reports whether err is one of the verify-or-refresh failures
// that send a request back to the login page.
func IsGatekeepingFailure(err error) bool {
	for _, target := range []error{
		ErrMalformedEnvelope,
		ErrAuthenticationFailed,
		ErrTokenExpired,
		ErrInvalidSignature,
		ErrRefreshFailed,
		ErrRefreshTokenReused,
		ErrSessionRevoked,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
