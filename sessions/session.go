package sessions

import (
	"github.com/jrsteele09/go-school-admin/users"
)

// Session is the authenticated identity and credential state of the current user.
// The JSON shape is what gets persisted under StorageKey.
type Session struct {
	User         *users.User `json:"user"`                   // Profile returned at login; nil when logged out
	AccessToken  string      `json:"token"`                  // Short-lived bearer credential
	RefreshToken string      `json:"refreshToken,omitempty"` // Exchanged for a new token pair when AccessToken expires
}

// IsAuthenticated reports whether the session carries a user and an access token.
func (s Session) IsAuthenticated() bool {
	return s.User != nil && s.AccessToken != ""
}

// IsEmpty reports whether the session is the logged out value.
func (s Session) IsEmpty() bool {
	return s.User == nil && s.AccessToken == "" && s.RefreshToken == ""
}

// CanRefresh reports whether a refresh may be attempted for this session.
func (s Session) CanRefresh() bool {
	return s.IsAuthenticated() && s.RefreshToken != ""
}

// Role returns the user's role, or "" when logged out.
func (s Session) Role() users.RoleType {
	if s.User == nil {
		return ""
	}
	return s.User.Role
}

// consistent checks the user/access token pairing: both present or both absent.
func (s Session) consistent() bool {
	if (s.User == nil) != (s.AccessToken == "") {
		return false
	}
	if s.User != nil && !s.User.Role.Valid() {
		return false
	}
	return true
}

func (s Session) clone() Session {
	s.User = s.User.Clone()
	return s
}
