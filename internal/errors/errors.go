package errors

import (
	"errors"
	"fmt"
)

// Common error types for the school admin client
var (
	// Session errors
	ErrNoSession       = errors.New("no active session")
	ErrInvalidSession  = errors.New("invalid session")
	ErrSessionCorrupt  = errors.New("stored session is corrupt")
	ErrSessionChanged  = errors.New("session changed")
	ErrNoRefreshToken  = errors.New("no refresh token")
	ErrInvalidRole     = errors.New("invalid role")
	ErrStorageKeyEmpty = errors.New("storage key is empty")

	// Gateway errors
	ErrUnauthorized  = errors.New("unauthorized")
	ErrRefreshFailed = errors.New("token refresh failed")
	ErrNetwork       = errors.New("network error")

	// Authentication errors
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrMalformedResponse  = errors.New("malformed response")

	// General errors
	ErrNotFound = errors.New("not found")
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

// Join returns an error that wraps the given errors
func Join(errs ...error) error {
	return errors.Join(errs...)
}
