// Package entity contains the core business objects of the project.
package entity

import "coursebook/internal/errors"

// ErrInvalidRole is returned when a string does not name a known role.
var ErrInvalidRole = errors.New("invalid role")

// Role represents the single authorization signal an account carries.
type Role string

const (
	// RoleAdmin indicates an administrator.
	RoleAdmin Role = "admin"
	// RoleUser indicates a regular member booking courses.
	RoleUser Role = "user"
)

// String returns the string representation of the Role.
func (r Role) String() string {
	return string(r)
}

// IsValid checks if the Role is a valid value.
func (r Role) IsValid() bool {
	switch r {
	case RoleAdmin, RoleUser:
		return true
	default:
		return false
	}
}

// ParseRole converts a stored or configured string into a Role.
func ParseRole(s string) (Role, error) {
	role := Role(s)
	if !role.IsValid() {
		return "", errors.Wrapf(ErrInvalidRole, "%q", s)
	}

	return role, nil
}
