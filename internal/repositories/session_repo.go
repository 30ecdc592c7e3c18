package repositories

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/mwhitfield/vigil/internal/database"
	"github.com/mwhitfield/vigil/internal/models"
)

// SessionRepository tracks one row per (account, fingerprint). The
// upsert demotes every other session of the account in the same
// transaction, so exactly one row stays current.
type SessionRepository struct {
	db *database.DB
}

// NewSessionRepository creates a new SessionRepository
func NewSessionRepository(db *database.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

func scanSessionRow(row rowScanner) (*models.Session, error) {
	var s models.Session

	err := row.Scan(
		&s.ID, &s.AccountID, &s.Email, &s.Fingerprint, &s.Device, &s.IPAddress,
		&s.City, &s.Country, &s.IsCurrent, &s.LastActiveAt, &s.CreatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return &s, nil
}

func scanSessionRows(rows pgx.Rows) ([]*models.Session, error) {
	defer rows.Close()

	sessions := make([]*models.Session, 0)

	for rows.Next() {
		session, err := scanSessionRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, session)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating session rows: %w", err)
	}

	return sessions, nil
}

// UpsertCurrent marks the (account, fingerprint) session current with
// fresh metadata and demotes the account's other sessions, atomically.
func (r *SessionRepository) UpsertCurrent(ctx context.Context, session *models.Session) (*models.Session, error) {
	demote := `
		UPDATE sessions
		SET is_current = false
		WHERE account_id = $1 AND fingerprint <> $2 AND is_current
	`
	upsert := `
		INSERT INTO sessions (account_id, email, fingerprint, device, ip_address, city, country, is_current, last_active_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, true, $8)
		ON CONFLICT (account_id, fingerprint) DO UPDATE SET
			email = $2,
			device = $4,
			ip_address = $5,
			city = $6,
			country = $7,
			is_current = true,
			last_active_at = $8
		RETURNING id, account_id, email, fingerprint, device, ip_address, city, country, is_current, last_active_at, created_at
	`

	var result *models.Session
	err := r.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, demote, session.AccountID, session.Fingerprint); err != nil {
			return fmt.Errorf("failed to demote sessions: %w", err)
		}

		row := tx.QueryRow(ctx, upsert,
			session.AccountID, session.Email, session.Fingerprint, session.Device,
			session.IPAddress, session.City, session.Country, session.LastActiveAt,
		)

		var err error
		result, err = scanSessionRow(row)
		if err != nil {
			return fmt.Errorf("failed to upsert session: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// ListByAccount returns the account's sessions, most recently active first
func (r *SessionRepository) ListByAccount(ctx context.Context, accountID string) ([]*models.Session, error) {
	query := `
		SELECT id, account_id, email, fingerprint, device, ip_address, city, country, is_current, last_active_at, created_at
		FROM sessions
		WHERE account_id = $1
		ORDER BY last_active_at DESC
	`

	rows, err := r.db.Pool.Query(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}

	return scanSessionRows(rows)
}

// GetByID returns one session row
func (r *SessionRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Session, error) {
	query := `
		SELECT id, account_id, email, fingerprint, device, ip_address, city, country, is_current, last_active_at, created_at
		FROM sessions
		WHERE id = $1
	`

	session, err := scanSessionRow(r.db.Pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	return session, nil
}

// DeleteByID removes a session and returns the deleted row, so the
// caller can audit who lost which device. Missing rows map to
// ErrNotFound.
func (r *SessionRepository) DeleteByID(ctx context.Context, id uuid.UUID) (*models.Session, error) {
	query := `
		DELETE FROM sessions
		WHERE id = $1
		RETURNING id, account_id, email, fingerprint, device, ip_address, city, country, is_current, last_active_at, created_at
	`

	session, err := scanSessionRow(r.db.Pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("failed to delete session: %w", err)
	}

	return session, nil
}

// DeleteAllExcept removes every session of the account but the kept
// fingerprint, returning how many rows went away.
func (r *SessionRepository) DeleteAllExcept(ctx context.Context, accountID, keepFingerprint string) (int64, error) {
	query := `
		DELETE FROM sessions
		WHERE account_id = $1 AND fingerprint <> $2
	`

	result, err := r.db.Pool.Exec(ctx, query, accountID, keepFingerprint)
	if err != nil {
		return 0, fmt.Errorf("failed to delete sessions: %w", err)
	}

	return result.RowsAffected(), nil
}
