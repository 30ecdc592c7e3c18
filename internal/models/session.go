package models

import (
	"time"

	"github.com/google/uuid"
)

// Session is one known device for an account, keyed by (account_id,
// fingerprint). Exactly one session per account is current at any time.
// Email is denormalized from the authenticated claims so revocation
// alerts can be addressed without an identity provider lookup.
type Session struct {
	ID           uuid.UUID `db:"id"`
	AccountID    string    `db:"account_id"`
	Email        string    `db:"email"`
	Fingerprint  string    `db:"fingerprint"`
	Device       string    `db:"device"`
	IPAddress    string    `db:"ip_address"`
	City         *string   `db:"city"`
	Country      *string   `db:"country"`
	IsCurrent    bool      `db:"is_current"`
	LastActiveAt time.Time `db:"last_active_at"`
	CreatedAt    time.Time `db:"created_at"`
}
