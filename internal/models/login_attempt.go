package models

import "time"

// LoginAttempt is a single row in the append-only login ledger.
type LoginAttempt struct {
	ID                string    `db:"id"`
	Email             string    `db:"email"`
	Success           bool      `db:"success"`
	IPAddress         string    `db:"ip_address"`
	UserAgent         string    `db:"user_agent"`
	DeviceFingerprint string    `db:"device_fingerprint"`
	Latitude          *float64  `db:"geo_lat"`
	Longitude         *float64  `db:"geo_lon"`
	City              *string   `db:"geo_city"`
	Country           *string   `db:"geo_country"`
	FailureReason     *string   `db:"failure_reason"`
	AttemptedAt       time.Time `db:"attempted_at"`
}

// HasLocation reports whether the attempt carries usable coordinates.
func (a *LoginAttempt) HasLocation() bool {
	return a.Latitude != nil && a.Longitude != nil
}

// Origin carries the request-level context a caller observed for an
// attempt: where it came from and what it claimed to be.
type Origin struct {
	IPAddress string
	UserAgent string
}

// LoginDecision is the outcome of submitting a login attempt.
type LoginDecision struct {
	Success           bool       `json:"success"`
	Locked            bool       `json:"locked"`
	LockedUntil       *time.Time `json:"locked_until,omitempty"`
	RetryAfterSeconds int        `json:"retry_after_seconds,omitempty"`
	AttemptsRemaining *int       `json:"attempts_remaining,omitempty"`
	Suspicious        bool       `json:"suspicious,omitempty"`
	AccountID         string     `json:"-"`
}
