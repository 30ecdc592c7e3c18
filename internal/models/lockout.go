package models

import "time"

// AccountLockout tracks consecutive failed logins for one account.
// At most one row exists per email; the row disappears on a successful
// login or an admin unlock.
type AccountLockout struct {
	Email          string     `db:"email"`
	FailedAttempts int        `db:"failed_attempts"`
	LockedUntil    *time.Time `db:"locked_until"`
	UpdatedAt      time.Time  `db:"updated_at"`
}

// LockActive reports whether the lock is still in force at the given time.
func (l *AccountLockout) LockActive(now time.Time) bool {
	return l.LockedUntil != nil && l.LockedUntil.After(now)
}

// RetryAfter returns how long until the lock expires, zero if not locked.
func (l *AccountLockout) RetryAfter(now time.Time) time.Duration {
	if !l.LockActive(now) {
		return 0
	}
	return l.LockedUntil.Sub(now)
}
