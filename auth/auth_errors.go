package auth

import (
	"github.com/jrsteele09/go-school-admin/apimodel"
	"github.com/jrsteele09/go-school-admin/gateway"
	"github.com/jrsteele09/go-school-admin/internal/errors"
)

const defaultCredentialsMessage = "Invalid credentials"

// CredentialsError is returned when the API rejects an email/password pair.
// It matches errors.ErrInvalidCredentials and the underlying *gateway.APIError.
type CredentialsError struct {
	Message string               // server supplied reason, shown to the user
	Fields  apimodel.FieldErrors // per-field validation messages, if any

	apiErr *gateway.APIError
}

func newCredentialsError(apiErr *gateway.APIError) *CredentialsError {
	msg := apiErr.Message
	if msg == "" {
		msg = defaultCredentialsMessage
	}
	return &CredentialsError{Message: msg, Fields: apiErr.Fields, apiErr: apiErr}
}

func (e *CredentialsError) Error() string {
	return e.Message
}

func (e *CredentialsError) Unwrap() []error {
	errs := []error{errors.ErrInvalidCredentials}
	if e.apiErr != nil {
		errs = append(errs, e.apiErr)
	}
	return errs
}
