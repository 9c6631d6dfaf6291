package entity

import (
	"time"

	"github.com/google/uuid"
)

// Session is a server-held context identified by an opaque token. Guest sessions have
// no AccountID; login replaces the guest session with a new, account-bound one.
type Session struct {
	ID        uuid.UUID
	TokenHash string // SHA-256 of the opaque token; the token itself is never stored.
	AccountID *uuid.UUID
	Role      Role   // Snapshot of the account role at login; empty for guests.
	CSRFToken string // Anti-forgery token bound to this session.
	CreatedAt time.Time
	ExpiresAt time.Time
}

// IsAuthenticated reports whether the session is bound to an account.
func (s *Session) IsAuthenticated() bool {
	return s != nil && s.AccountID != nil
}

// IsExpired reports whether the session has passed its expiry at now.
func (s *Session) IsExpired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// IssuedSession pairs a persisted session with the raw token handed to the client.
// The token only exists here; storage keeps its hash.
type IssuedSession struct {
	Session *Session
	Token   string
}
