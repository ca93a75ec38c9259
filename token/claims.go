package token

import (
	"errors"
	"fmt"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/go-school-admin/internal/utils"
)

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

// ErrNotJWT is returned by Inspect for opaque tokens.
var ErrNotJWT = errors.New("token is not a JWT")

// Claims is the subset of access token claims the client cares about.
type Claims struct {
	ID        string    // jti
	Subject   string    // sub, the user id
	Email     string    // email
	Role      string    // role
	Roles     []string  // roles, when the server sends a list
	IssuedAt  time.Time // iat
	ExpiresAt time.Time // exp; zero when the token does not expire
}

// Expired reports whether the token's exp is in the past. Tokens without exp never expire.
func (c *Claims) Expired() bool {
	return !c.ExpiresAt.IsZero() && NowTimeFunc().After(c.ExpiresAt)
}

// ExpiresIn is the time left before exp, negative once expired and zero when there is no exp.
func (c *Claims) ExpiresIn() time.Duration {
	if c.ExpiresAt.IsZero() {
		return 0
	}
	return c.ExpiresAt.Sub(NowTimeFunc())
}

// Inspect reads the claims of a JWT access token WITHOUT verifying its signature.
// Only the server can verify its tokens; the client uses this for display and diagnostics.
// Opaque (non-JWT) tokens return ErrNotJWT.
func Inspect(rawToken string) (*Claims, error) {
	rawToken = strings.TrimSpace(rawToken)
	if strings.Count(rawToken, ".") != 2 {
		return nil, ErrNotJWT
	}

	unverified, _, err := jwtlib.NewParser().ParseUnverified(rawToken, jwtlib.MapClaims{})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotJWT, err)
	}

	mapClaims, ok := unverified.Claims.(jwtlib.MapClaims)
	if !ok {
		return nil, errors.New("error extracting claims")
	}
	return claimsFromMap(mapClaims), nil
}

func claimsFromMap(m jwtlib.MapClaims) *Claims {
	c := &Claims{}
	c.ID, _ = m["jti"].(string)
	c.Subject, _ = m["sub"].(string)
	c.Email, _ = m["email"].(string)
	c.Role, _ = m["role"].(string)

	if roles, ok := m["roles"].([]any); ok {
		c.Roles = utils.Strings(roles)
	}
	if iat, err := m.GetIssuedAt(); err == nil && iat != nil {
		c.IssuedAt = iat.Time
	}
	if exp, err := m.GetExpirationTime(); err == nil && exp != nil {
		c.ExpiresAt = exp.Time
	}
	return c
}
