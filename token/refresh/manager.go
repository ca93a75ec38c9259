package refresh

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"
)

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

var (
	ErrUnknownToken = errors.New("unknown refresh token")
	ErrTokenExpired = errors.New("refresh token expired")
)

const tokenLength = 32 // 32 bytes = 256 bits

// Manager handles refresh token creation and single-use rotation
type Manager struct {
	repo   Repo
	expiry time.Duration
}

// NewManager creates a new refresh token manager. An expiry of 0 means tokens never expire.
func NewManager(repo Repo, expiry time.Duration) *Manager {
	return &Manager{
		repo:   repo,
		expiry: expiry,
	}
}

// Create generates a new refresh token for userID and stores it
func (m *Manager) Create(userID string) (string, error) {
	tokenBytes := make([]byte, tokenLength)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}

	tokenStr := hex.EncodeToString(tokenBytes)
	if err := m.repo.Upsert(&StoredRefreshToken{
		Token:  tokenStr,
		UserID: userID,
		Iat:    NowTimeFunc(),
	}); err != nil {
		return "", fmt.Errorf("failed to store refresh token: %w", err)
	}
	return tokenStr, nil
}

// Rotate spends token and issues its replacement. A token can be rotated once; replaying it
// returns ErrUnknownToken.
func (m *Manager) Rotate(token string) (userID, next string, err error) {
	stored, err := m.repo.Take(token)
	if err != nil || stored == nil {
		return "", "", ErrUnknownToken
	}
	if m.IsExpired(stored) {
		return "", "", ErrTokenExpired
	}

	next, err = m.Create(stored.UserID)
	if err != nil {
		return "", "", err
	}
	return stored.UserID, next, nil
}

// Revoke deletes token. Unknown tokens are ignored.
func (m *Manager) Revoke(token string) {
	_ = m.repo.Delete(token)
}

// IsExpired checks if a refresh token has outlived the manager's expiry
func (m *Manager) IsExpired(rt *StoredRefreshToken) bool {
	if m.expiry == 0 {
		return false
	}
	return NowTimeFunc().Sub(rt.Iat) > m.expiry
}
