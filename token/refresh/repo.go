package refresh

import (
	"time"
)

// StoredRefreshToken is the server-side record behind an opaque refresh token.
// The client only ever sees Token.
type StoredRefreshToken struct {
	Token  string    // The random token string sent to the client
	UserID string    // Owner of the token
	Iat    time.Time // Issued at, used for expiry
}

// Repo stores refresh token records keyed by the token string.
type Repo interface {
	Upsert(refreshToken *StoredRefreshToken) error
	Delete(token string) error
	Get(token string) (*StoredRefreshToken, error)
	// Take returns the record and deletes it in one step, so a token can be spent only once.
	Take(token string) (*StoredRefreshToken, error)
}
