package apimodel

import (
	"fmt"

	"github.com/jrsteele09/go-school-admin/internal/utils"
	"github.com/jrsteele09/go-school-admin/users"
)

// LoginRequest is the body of POST /login.
type LoginRequest struct {
	// Email identifies the account.
	// Example: "a@x.com"
	Email string `json:"email"`

	// Password is sent as-is over the (TLS) connection.
	// Security: Never log or persist this value
	Password string `json:"password"`
}

// LoginResponse is returned by POST /login on success.
// It carries everything needed to open a session: the profile and both tokens.
type LoginResponse struct {
	// User is the authenticated profile. Its role drives the menus offered by the client.
	User *users.User `json:"user,omitempty"`

	// AccessToken is the short-lived bearer credential.
	// Usage: Include in Authorization header: "Bearer <access_token>"
	AccessToken *string `json:"access_token,omitempty"`

	// RefreshToken is exchanged at POST /refresh for a new token pair.
	// Lifespan: Longer-lived than the access token; may be single-use
	RefreshToken *string `json:"refresh_token,omitempty"`
}

// Validate checks that the response can open a session.
func (r LoginResponse) Validate() error {
	if err := r.User.Validate(); err != nil {
		return fmt.Errorf("login response: %w", err)
	}
	if utils.Value(r.AccessToken) == "" {
		return fmt.Errorf("login response: missing access_token")
	}
	return nil
}

// RefreshRequest is the body of POST /refresh.
type RefreshRequest struct {
	// RefreshToken is the stored refresh credential.
	// Behavior: Typically rotated - the old refresh token is invalidated once used
	RefreshToken string `json:"refresh_token"`
}

// TokenResponse is returned by POST /refresh.
type TokenResponse struct {
	// AccessToken replaces the expired access token.
	AccessToken *string `json:"access_token,omitempty"`

	// RefreshToken replaces the refresh token that was just spent.
	// Note: When omitted the server did not rotate; the client keeps the old one
	RefreshToken *string `json:"refresh_token,omitempty"`
}

// Validate checks that the refresh produced a usable access token.
func (r TokenResponse) Validate() error {
	if utils.Value(r.AccessToken) == "" {
		return fmt.Errorf("refresh response: missing access_token")
	}
	return nil
}
