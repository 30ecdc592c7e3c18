package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/mwhitfield/vigil/internal/database"
	"github.com/mwhitfield/vigil/internal/models"
)

// LockoutRepository owns every transition of account_lockouts. Counter
// updates happen in single SQL statements so that concurrent failures
// for the same account serialize on the row instead of racing in
// application code.
type LockoutRepository struct {
	db *database.DB
}

// NewLockoutRepository creates a new LockoutRepository
func NewLockoutRepository(db *database.DB) *LockoutRepository {
	return &LockoutRepository{db: db}
}

// Get returns the lockout row for an email, or nil when none exists
func (r *LockoutRepository) Get(ctx context.Context, email string) (*models.AccountLockout, error) {
	query := `
		SELECT email, failed_attempts, locked_until, updated_at
		FROM account_lockouts
		WHERE email = $1
	`

	var l models.AccountLockout
	err := r.db.Pool.QueryRow(ctx, query, email).Scan(
		&l.Email, &l.FailedAttempts, &l.LockedUntil, &l.UpdatedAt,
	)
	if err = database.MapPostgresError(err); err != nil {
		if err == models.ErrNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get lockout: %w", err)
	}

	return &l, nil
}

// RecordFailure counts one failed attempt and returns the resulting row.
// The whole increment-and-compare runs as one statement: the count is
// capped at the threshold, and locked_until is set to lockUntil only
// when this failure crosses the threshold while no lock is in force.
// A caller that sees its own lockUntil echoed back caused the
// transition to locked and owns the corresponding alert and audit.
func (r *LockoutRepository) RecordFailure(ctx context.Context, email string, threshold int, lockUntil, now time.Time) (*models.AccountLockout, error) {
	query := `
		INSERT INTO account_lockouts (email, failed_attempts, locked_until, updated_at)
		VALUES ($1, 1, CASE WHEN 1 >= $2 THEN $3::timestamptz ELSE NULL END, $4)
		ON CONFLICT (email) DO UPDATE SET
			failed_attempts = LEAST(account_lockouts.failed_attempts + 1, $2),
			locked_until = CASE
				WHEN (account_lockouts.locked_until IS NULL OR account_lockouts.locked_until <= $4)
					AND account_lockouts.failed_attempts + 1 >= $2
				THEN $3::timestamptz
				ELSE account_lockouts.locked_until
			END,
			updated_at = $4
		RETURNING email, failed_attempts, locked_until, updated_at
	`

	var l models.AccountLockout
	err := r.db.Pool.QueryRow(ctx, query, email, threshold, lockUntil, now).Scan(
		&l.Email, &l.FailedAttempts, &l.LockedUntil, &l.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to record lockout failure: %w", database.MapPostgresError(err))
	}

	return &l, nil
}

// ClearOnSuccess removes the lockout row unless an unexpired lock is in
// force. It returns the active lockout that blocked the clear, or nil
// when the account is free to proceed. The delete condition is the
// atomic decision point; the caller's earlier lockout read is advisory.
func (r *LockoutRepository) ClearOnSuccess(ctx context.Context, email string, now time.Time) (*models.AccountLockout, error) {
	query := `
		DELETE FROM account_lockouts
		WHERE email = $1 AND (locked_until IS NULL OR locked_until <= $2)
	`

	result, err := r.db.Pool.Exec(ctx, query, email, now)
	if err != nil {
		return nil, fmt.Errorf("failed to clear lockout: %w", database.MapPostgresError(err))
	}
	if result.RowsAffected() > 0 {
		return nil, nil
	}

	// Nothing deleted: either no row exists, or a live lock survived the
	// conditional delete. Re-read to tell the two apart.
	lockout, err := r.Get(ctx, email)
	if err != nil {
		return nil, err
	}
	if lockout != nil && lockout.LockActive(now) {
		return lockout, nil
	}

	return nil, nil
}

// Delete force-clears the lockout row regardless of timers. Returns
// false when no row existed.
func (r *LockoutRepository) Delete(ctx context.Context, email string) (bool, error) {
	query := `DELETE FROM account_lockouts WHERE email = $1`

	result, err := r.db.Pool.Exec(ctx, query, email)
	if err != nil {
		return false, fmt.Errorf("failed to delete lockout: %w", database.MapPostgresError(err))
	}

	return result.RowsAffected() > 0, nil
}
