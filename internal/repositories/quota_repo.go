package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/mwhitfield/vigil/internal/database"
	"github.com/mwhitfield/vigil/internal/models"
)

// QuotaRepository handles the per-account daily counters. Consumption
// is a conditional single-statement update so two concurrent calls can
// never both take the last unit of a day's budget.
type QuotaRepository struct {
	db *database.DB
}

// NewQuotaRepository creates a new QuotaRepository
func NewQuotaRepository(db *database.DB) *QuotaRepository {
	return &QuotaRepository{db: db}
}

// GREATEST keeps reset_date monotonic when a request that straddled
// midnight arrives after a newer day already claimed the row.
const quotaConsumeQuery = `
	UPDATE rate_limit_counters
	SET used = CASE WHEN reset_date < $3 THEN 1 ELSE used + 1 END,
	    reset_date = GREATEST(reset_date, $3)
	WHERE account_id = $1 AND (reset_date < $3 OR used < $2)
	RETURNING used
`

// ConsumeOne takes one unit of the account's budget for the given day.
// It returns the post-increment count and whether the unit was granted.
// The day comparison makes the first touch of a new UTC day restart the
// count no matter how many days the row sat idle. limit must be >= 1.
func (r *QuotaRepository) ConsumeOne(ctx context.Context, accountID string, limit int, day time.Time) (int, bool, error) {
	var used int

	err := r.db.Pool.QueryRow(ctx, quotaConsumeQuery, accountID, limit, day).Scan(&used)
	if err == nil {
		return used, true, nil
	}
	if err != pgx.ErrNoRows {
		return 0, false, fmt.Errorf("failed to consume quota: %w", database.MapPostgresError(err))
	}

	// No row matched: either the counter does not exist yet, or today's
	// budget is exhausted. Try to create the row; losing the insert race
	// means another request created it first, so re-run the update once.
	insert := `
		INSERT INTO rate_limit_counters (account_id, used, reset_date)
		VALUES ($1, 1, $2)
		ON CONFLICT (account_id) DO NOTHING
		RETURNING used
	`

	err = r.db.Pool.QueryRow(ctx, insert, accountID, day).Scan(&used)
	if err == nil {
		return used, true, nil
	}
	if err != pgx.ErrNoRows {
		return 0, false, fmt.Errorf("failed to create quota counter: %w", database.MapPostgresError(err))
	}

	err = r.db.Pool.QueryRow(ctx, quotaConsumeQuery, accountID, limit, day).Scan(&used)
	if err == nil {
		return used, true, nil
	}
	if err == pgx.ErrNoRows {
		// The counter exists and is at the limit for today.
		return limit, false, nil
	}

	return 0, false, fmt.Errorf("failed to consume quota: %w", database.MapPostgresError(err))
}

// Get returns the counter row for an account, or nil when none exists
func (r *QuotaRepository) Get(ctx context.Context, accountID string) (*models.QuotaCounter, error) {
	query := `
		SELECT account_id, used, reset_date
		FROM rate_limit_counters
		WHERE account_id = $1
	`

	var q models.QuotaCounter
	err := r.db.Pool.QueryRow(ctx, query, accountID).Scan(&q.AccountID, &q.Used, &q.ResetDate)
	if err = database.MapPostgresError(err); err != nil {
		if err == models.ErrNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get quota counter: %w", err)
	}

	return &q, nil
}

// SetCount pins the counter to an exact value for the given day,
// bypassing the increment path. Used only by admin overrides.
func (r *QuotaRepository) SetCount(ctx context.Context, accountID string, count int, day time.Time) error {
	query := `
		INSERT INTO rate_limit_counters (account_id, used, reset_date)
		VALUES ($1, $2, $3)
		ON CONFLICT (account_id) DO UPDATE
		SET used = $2, reset_date = GREATEST(rate_limit_counters.reset_date, $3)
	`

	_, err := r.db.Pool.Exec(ctx, query, accountID, count, day)
	if err != nil {
		return fmt.Errorf("failed to set quota counter: %w", database.MapPostgresError(err))
	}

	return nil
}
