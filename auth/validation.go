package auth

import (
	"fmt"
	"strings"

	"github.com/jrsteele09/go-school-admin/users"
)

// Validator checks login input and output before it reaches the API or the session store.
type Validator struct{}

// NewValidator creates a new Validator instance
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateUserCredentials validates login credentials
func (v *Validator) ValidateUserCredentials(email, password string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return fmt.Errorf("email is required")
	}

	// Basic email format validation
	at := strings.LastIndex(email, "@")
	if at < 1 || !strings.Contains(email[at:], ".") {
		return fmt.Errorf("invalid email format")
	}

	if password == "" {
		return fmt.Errorf("password is required")
	}

	return nil
}

// ValidateUserState checks the profile returned by a successful login.
func (v *Validator) ValidateUserState(user *users.User) error {
	if user == nil {
		return fmt.Errorf("user not found")
	}
	if err := user.Validate(); err != nil {
		return err
	}
	return nil
}

// ValidateAccessToken rejects blank tokens. Tokens are otherwise opaque to the client.
func (v *Validator) ValidateAccessToken(token string) error {
	if strings.TrimSpace(token) == "" {
		return fmt.Errorf("access token is required")
	}
	if strings.ContainsAny(token, " \t\r\n") {
		return fmt.Errorf("access token must not contain whitespace")
	}
	return nil
}
