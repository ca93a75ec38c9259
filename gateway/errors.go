package gateway

import (
	"fmt"
	"net/http"

	"github.com/jrsteele09/go-school-admin/apimodel"
	"github.com/jrsteele09/go-school-admin/internal/errors"
)

// Sentinels callers can match with errors.Is.
var (
	ErrNetwork        = errors.ErrNetwork
	ErrRefreshFailed  = errors.ErrRefreshFailed
	ErrNoRefreshToken = errors.ErrNoRefreshToken
	ErrUnauthorized   = errors.ErrUnauthorized
)

// APIError is a failure status returned by the API.
type APIError struct {
	StatusCode int
	Method     string
	Path       string
	Body       []byte               // raw response body
	Message    string               // "error" or "message" from the body, if any
	Fields     apimodel.FieldErrors // validation errors keyed by form field

	cause error
}

func newAPIError(req Request, statusCode int, body []byte) *APIError {
	parsed := apimodel.ParseErrorResponse(body)
	e := &APIError{
		StatusCode: statusCode,
		Method:     req.Method,
		Path:       req.Path,
		Body:       body,
		Message:    parsed.Text(),
		Fields:     parsed.Errors,
	}
	switch statusCode {
	case http.StatusUnauthorized:
		e.cause = errors.ErrUnauthorized
	case http.StatusNotFound:
		e.cause = errors.ErrNotFound
	}
	return e
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.StatusCode, msg)
}

func (e *APIError) Unwrap() error {
	return e.cause
}

// withCause returns a copy of e that also matches cause.
func (e *APIError) withCause(cause error) *APIError {
	c := *e
	c.cause = errors.Join(e.cause, cause)
	return &c
}

// FieldError returns the first validation message for field, or "".
func (e *APIError) FieldError(field string) string {
	if msgs := e.Fields[field]; len(msgs) > 0 {
		return msgs[0]
	}
	return ""
}

// AsAPIError finds an *APIError in err's chain.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

func IsUnauthorized(err error) bool {
	apiErr, ok := AsAPIError(err)
	return ok && apiErr.StatusCode == http.StatusUnauthorized
}

// IsValidation reports a 422, or any 4xx that carries field errors.
func IsValidation(err error) bool {
	apiErr, ok := AsAPIError(err)
	if !ok {
		return false
	}
	if apiErr.StatusCode == http.StatusUnprocessableEntity {
		return true
	}
	return apiErr.StatusCode >= 400 && apiErr.StatusCode < 500 && len(apiErr.Fields) > 0
}

func IsServerError(err error) bool {
	apiErr, ok := AsAPIError(err)
	return ok && apiErr.StatusCode >= 500
}

func IsNetwork(err error) bool {
	return errors.Is(err, errors.ErrNetwork)
}
