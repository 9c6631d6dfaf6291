// Package entity contains the core business objects of the project,
// each representing a unique, identifiable concept within the domain.
package entity

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Account is a registered principal. It is created by local registration or by the
// first successful OAuth callback and is never deleted by this service.
type Account struct {
	ID              uuid.UUID  // The Global Unique Identifier for the account.
	Name            string     // Display name.
	Email           string     // Normalized (trimmed, lower-cased) email; unique across accounts.
	PasswordHash    string     // One-way credential hash, never the raw secret.
	Role            Role       // Authorization role.
	EmailVerifiedAt *time.Time // Set exactly once by verification; nil while unverified.
	CreatedAt       time.Time  // Timestamp of when this account was created.
	UpdatedAt       time.Time  // Timestamp of the last modification to this account.
}

// IsVerified reports whether the account's email ownership has been proven.
func (a *Account) IsVerified() bool {
	return a.EmailVerifiedAt != nil
}

// MarkVerified stamps the verification time unless it is already set.
// It reports whether the state changed.
func (a *Account) MarkVerified(at time.Time) bool {
	if a.IsVerified() {
		return false
	}

	stamp := at
	a.EmailVerifiedAt = &stamp

	return true
}

// NormalizeEmail is the canonical form used for storage and lookup, making
// email uniqueness case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
