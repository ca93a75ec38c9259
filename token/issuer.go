package token

import (
	"errors"
	"fmt"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jrsteele09/go-school-admin/users"
)

// ErrInvalidToken is returned by Verify for bad signatures, expired tokens or malformed input.
var ErrInvalidToken = errors.New("invalid token")

// Issuer signs and verifies HS256 access tokens. It backs the local dev API; the production
// API issues its own tokens.
type Issuer struct {
	key    []byte
	issuer string
	ttl    time.Duration
}

func NewIssuer(signingKey, issuer string, ttl time.Duration) (*Issuer, error) {
	if signingKey == "" {
		return nil, fmt.Errorf("[Issuer New] signing key is required")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("[Issuer New] ttl must be positive")
	}
	return &Issuer{key: []byte(signingKey), issuer: issuer, ttl: ttl}, nil
}

// CreateAccessToken creates a signed access token for user
func (i *Issuer) CreateAccessToken(user *users.User) (string, error) {
	now := NowTimeFunc()
	claims := jwtlib.MapClaims{
		"iss":   i.issuer,              // The issuer of the token
		"sub":   user.ID.String(),      // The user the token was issued to
		"email": user.Email,            // Convenience claim for display
		"role":  string(user.Role),     // Role at the time of issue
		"iat":   now.Unix(),            // Issued At: the time at which the token was issued
		"exp":   now.Add(i.ttl).Unix(), // Expiry: when the token will expire
		"jti":   uuid.New().String(),   // Unique token ID
	}

	signed, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString(i.key)
	if err != nil {
		return "", fmt.Errorf("failed to sign JWT token: %w", err)
	}
	return signed, nil
}

// Verify checks the signature and expiry of rawToken and returns its claims.
func (i *Issuer) Verify(rawToken string) (*Claims, error) {
	parsed, err := jwtlib.Parse(rawToken,
		func(t *jwtlib.Token) (any, error) { return i.key, nil },
		jwtlib.WithValidMethods([]string{jwtlib.SigningMethodHS256.Alg()}),
		jwtlib.WithIssuer(i.issuer),
		jwtlib.WithTimeFunc(NowTimeFunc),
		jwtlib.WithExpirationRequired(),
	)
	if err != nil || !parsed.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	mapClaims, ok := parsed.Claims.(jwtlib.MapClaims)
	if !ok {
		return nil, errors.New("error extracting claims from token")
	}
	return claimsFromMap(mapClaims), nil
}
