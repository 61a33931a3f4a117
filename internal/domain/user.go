package domain

import (
	"fmt"
	"strings"
	"time"
)

// Role is one of the three flat roles a user can hold.
type Role string

const (
	RoleGuest Role = "guest"
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// ParseRole converts a stored or claimed role string into a Role.
func ParseRole(s string) (Role, error) {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RoleGuest:
		return RoleGuest, nil
	case RoleUser:
		return RoleUser, nil
	case RoleAdmin:
		return RoleAdmin, nil
	}
	return "", fmt.Errorf("unknown role %q: %w", s, ErrValidation)
}

// CanContribute reports whether the role may post questions, answers and votes
// and read its own notifications.
func (r Role) CanContribute() bool {
	switch r {
	case RoleUser, RoleAdmin:
		return true
	case RoleGuest:
		return false
	}
	return false
}

// IsAdmin reports whether the role may manage tags.
func (r Role) IsAdmin() bool {
	switch r {
	case RoleAdmin:
		return true
	case RoleGuest, RoleUser:
		return false
	}
	return false
}

// User represents a registered account.
type User struct {
	ID           int64
	Username     string
	Email        string
	PasswordHash string
	Role         Role
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
