package apimodel

import (
	"bytes"
	"encoding/json"
)

// ErrorResponse is the error body returned by the API.
// Auth failures carry Error or Message; validation failures carry Errors keyed by field name.
type ErrorResponse struct {
	// Error is a short human readable reason.
	// Example: "Invalid credentials"
	Error string `json:"error,omitempty"`

	// Message is used instead of Error by some endpoints.
	Message string `json:"message,omitempty"`

	// Errors maps a form field to its validation messages.
	// Example: {"email": ["The email has already been taken."]}
	Errors FieldErrors `json:"errors,omitempty"`
}

// Text returns the most specific message available.
func (e ErrorResponse) Text() string {
	if e.Error != "" {
		return e.Error
	}
	return e.Message
}

// FieldErrors maps a field name to its validation messages.
type FieldErrors map[string][]string

// UnmarshalJSON accepts both {"field": ["msg"]} and {"field": "msg"}.
func (f *FieldErrors) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*f = nil
		return nil
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	out := make(FieldErrors, len(raw))
	for field, msg := range raw {
		var list []string
		if err := json.Unmarshal(msg, &list); err == nil {
			out[field] = list
			continue
		}
		var single string
		if err := json.Unmarshal(msg, &single); err != nil {
			return err
		}
		out[field] = []string{single}
	}
	*f = out
	return nil
}

// ParseErrorResponse decodes body leniently. Bodies that are not JSON objects give a zero value.
func ParseErrorResponse(body []byte) ErrorResponse {
	var resp ErrorResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return ErrorResponse{}
	}
	return resp
}
