// Package domain contains entities without logic, just meta-data.
package domain

import (
	"errors"

	"github.com/google/uuid"
)

const (
	MaxUserIDLen   = 36
	MaxUsernameLen = 36
)

var (
	ErrUsernameTooLong = errors.New("username too long")
	ErrUsernameEmpty   = errors.New("username empty")
)

type UserID string

// Role is the global permission level resolved by the upstream auth system.
// It is not derived from room membership.
type Role int

const (
	RoleGuest Role = iota
	RoleMember
	RoleModerator
	RoleAdmin
	RoleOwner
)

var roleNames = map[Role]string{
	RoleGuest:     "guest",
	RoleMember:    "member",
	RoleModerator: "moderator",
	RoleAdmin:     "admin",
	RoleOwner:     "owner",
}

func (r Role) String() string {
	if s, ok := roleNames[r]; ok {
		return s
	}
	return "guest"
}

// ParseRole maps an upstream role string to a Role. Unknown values
// degrade to guest: a missing role must never grant privileges.
func ParseRole(s string) Role {
	for r, name := range roleNames {
		if name == s {
			return r
		}
	}
	return RoleGuest
}

type User struct {
	ID       UserID `json:"id"`
	Username string `json:"username"`
	Role     Role   `json:"-"`
}

// NewUser is a tiny helper to avoid ad-hoc struct literals in adapters.
func NewUser(username string) (*User, error) {
	if len(username) == 0 {
		return nil, ErrUsernameEmpty
	}
	if len(username) > MaxUsernameLen {
		return nil, ErrUsernameTooLong
	}
	id := UserID(uuid.NewString())
	return &User{ID: id, Username: username}, nil
}

func (u *User) SetUsername(username string) error {
	if len(username) == 0 {
		return ErrUsernameEmpty
	}
	if len(username) > MaxUsernameLen {
		return ErrUsernameTooLong
	}
	u.Username = username
	return nil
}
