package entity

import (
	"time"

	"github.com/google/uuid"
)

// VerifyOutcome is the successful result of a verification attempt.
type VerifyOutcome string

const (
	// VerifiedNow means this call performed the Unverified -> Verified transition.
	VerifiedNow VerifyOutcome = "verified_now"
	// AlreadyVerified means the account was verified before this call; nothing changed.
	AlreadyVerified VerifyOutcome = "already_verified"
)

// VerificationEvent asks the mail worker to deliver a verification link.
type VerificationEvent struct {
	EventID         string    `json:"event_id"`
	AccountID       uuid.UUID `json:"account_id"`
	Name            string    `json:"name"`
	Email           string    `json:"email"`
	VerificationURL string    `json:"verification_url"`
	Locale          string    `json:"locale,omitempty"`
	RequestedAt     time.Time `json:"requested_at"`
	RequestID       string    `json:"request_id,omitempty"`
}
