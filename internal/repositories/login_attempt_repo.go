package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/mwhitfield/vigil/internal/database"
	"github.com/mwhitfield/vigil/internal/models"
)

// LoginAttemptRepository handles the append-only login ledger. Rows are
// never updated in place; the only delete path is the retention purge.
type LoginAttemptRepository struct {
	db *database.DB
}

// NewLoginAttemptRepository creates a new LoginAttemptRepository
func NewLoginAttemptRepository(db *database.DB) *LoginAttemptRepository {
	return &LoginAttemptRepository{db: db}
}

func scanLoginAttemptRow(row rowScanner) (*models.LoginAttempt, error) {
	var a models.LoginAttempt

	err := row.Scan(
		&a.ID, &a.Email, &a.Success, &a.IPAddress, &a.UserAgent,
		&a.DeviceFingerprint, &a.Latitude, &a.Longitude, &a.City,
		&a.Country, &a.FailureReason, &a.AttemptedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return &a, nil
}

func scanLoginAttemptRows(rows pgx.Rows) ([]*models.LoginAttempt, error) {
	defer rows.Close()

	attempts := make([]*models.LoginAttempt, 0)

	for rows.Next() {
		attempt, err := scanLoginAttemptRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan login attempt: %w", err)
		}
		attempts = append(attempts, attempt)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating login attempt rows: %w", err)
	}

	return attempts, nil
}

// RecordAttempt appends one attempt to the ledger
func (r *LoginAttemptRepository) RecordAttempt(ctx context.Context, attempt *models.LoginAttempt) error {
	query := `
		INSERT INTO login_attempts (
			email, success, ip_address, user_agent, device_fingerprint,
			geo_lat, geo_lon, geo_city, geo_country, failure_reason, attempted_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := r.db.Pool.Exec(ctx, query,
		attempt.Email,
		attempt.Success,
		attempt.IPAddress,
		attempt.UserAgent,
		attempt.DeviceFingerprint,
		attempt.Latitude,
		attempt.Longitude,
		attempt.City,
		attempt.Country,
		attempt.FailureReason,
		attempt.AttemptedAt,
	)

	return err
}

// GetLastSuccess returns the most recent successful attempt for an email
// that happened strictly before the given instant, or nil when the
// account has no earlier success on record.
func (r *LoginAttemptRepository) GetLastSuccess(ctx context.Context, email string, before time.Time) (*models.LoginAttempt, error) {
	query := `
		SELECT id, email, success, ip_address, user_agent, device_fingerprint,
		       geo_lat, geo_lon, geo_city, geo_country, failure_reason, attempted_at
		FROM login_attempts
		WHERE email = $1 AND success = true AND attempted_at < $2
		ORDER BY attempted_at DESC
		LIMIT 1
	`

	attempt, err := scanLoginAttemptRow(r.db.Pool.QueryRow(ctx, query, email, before))
	if err == models.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return attempt, nil
}

// ListRecent returns the newest ledger entries, paged
func (r *LoginAttemptRepository) ListRecent(ctx context.Context, limit, offset int) ([]*models.LoginAttempt, error) {
	query := `
		SELECT id, email, success, ip_address, user_agent, device_fingerprint,
		       geo_lat, geo_lon, geo_city, geo_country, failure_reason, attempted_at
		FROM login_attempts
		ORDER BY attempted_at DESC
		LIMIT $1 OFFSET $2
	`

	rows, err := r.db.Pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query login attempts: %w", err)
	}

	return scanLoginAttemptRows(rows)
}

// ListByEmail returns the newest ledger entries for one account, paged
func (r *LoginAttemptRepository) ListByEmail(ctx context.Context, email string, limit, offset int) ([]*models.LoginAttempt, error) {
	query := `
		SELECT id, email, success, ip_address, user_agent, device_fingerprint,
		       geo_lat, geo_lon, geo_city, geo_country, failure_reason, attempted_at
		FROM login_attempts
		WHERE email = $1
		ORDER BY attempted_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.Pool.Query(ctx, query, email, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query login attempts: %w", err)
	}

	return scanLoginAttemptRows(rows)
}

// DeleteOlderThan removes ledger entries past the retention window
func (r *LoginAttemptRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `DELETE FROM login_attempts WHERE attempted_at < $1`

	result, err := r.db.Pool.Exec(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired login attempts: %w", err)
	}

	return result.RowsAffected(), nil
}
