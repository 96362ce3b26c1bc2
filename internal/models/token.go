package models

import (
	"time"

	"github.com/google/uuid"
)

// VerificationToken proves control of an email address. At most one live
// token exists per account; issuing a new one supersedes the old.
type VerificationToken struct {
	ID        uuid.UUID `json:"id"`
	AccountID uuid.UUID `json:"account_id"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}
