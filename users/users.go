package users

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jrsteele09/go-school-admin/internal/errors"
	"golang.org/x/crypto/bcrypt"
)

// RoleType is the single role a school user holds. It decides which parts of the API the
// user may call and which menu the client shows.
type RoleType string

const (
	RoleAdmin   RoleType = "admin"   // Manages teachers and students
	RoleTeacher RoleType = "teacher" // Manages their assigned students and own profile
	RoleStudent RoleType = "student" // Views and edits their own profile
)

// Valid reports whether r is one of the known roles.
func (r RoleType) Valid() bool {
	switch r {
	case RoleAdmin, RoleTeacher, RoleStudent:
		return true
	}
	return false
}

// ParseRole normalises a role string, e.g. " Teacher " -> RoleTeacher.
func ParseRole(s string) (RoleType, error) {
	r := RoleType(strings.ToLower(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", fmt.Errorf("[Users ParseRole] %q: %w", s, errors.ErrInvalidRole)
	}
	return r, nil
}

// ID is a user identifier. The API sends numeric ids; some endpoints send them as strings.
type ID string

func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("user id must be a string or number: %w", err)
	}
	*id = ID(n.String())
	return nil
}

func (id ID) String() string {
	return string(id)
}

// User is the profile record returned by the API on login.
type User struct {
	ID           ID       `json:"id,omitempty"`     // Unique identifier for the user
	Name         string   `json:"name,omitempty"`   // Display name
	Email        string   `json:"email,omitempty"`  // User's email address
	Role         RoleType `json:"role,omitempty"`   // admin, teacher or student
	Status       string   `json:"status,omitempty"` // Account status as reported by the API
	PasswordHash string   `json:"-"`                // Only populated by the dev API - never serialize
}

// Validate checks the fields the client relies on.
func (u *User) Validate() error {
	if u == nil {
		return fmt.Errorf("user is required")
	}
	if !u.Role.Valid() {
		return fmt.Errorf("[User Validate] user %q has role %q: %w", u.Email, u.Role, errors.ErrInvalidRole)
	}
	return nil
}

func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

func (u *User) IsTeacher() bool {
	return u != nil && u.Role == RoleTeacher
}

func (u *User) IsStudent() bool {
	return u != nil && u.Role == RoleStudent
}

// DisplayName falls back to the email, then to "User".
func (u *User) DisplayName() string {
	switch {
	case u == nil:
		return "User"
	case u.Name != "":
		return u.Name
	case u.Email != "":
		return u.Email
	}
	return "User"
}

// Clone returns a copy that shares nothing with u.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	return &c
}

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}
