package integration

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/mwhitfield/vigil/internal/database"
	"github.com/mwhitfield/vigil/internal/repositories"
)

// TestDB manages PostgreSQL testcontainer and database operations
type TestDB struct {
	Container  testcontainers.Container
	ConnString string
	Pool       *pgxpool.Pool
	DB         *database.DB
}

// SetupTestDatabase creates a PostgreSQL testcontainer, runs migrations, returns TestDB
func SetupTestDatabase(ctx context.Context) (*TestDB, error) {
	// Create PostgreSQL container
	container, err := postgres.RunContainer(ctx,
		testcontainers.WithImage("postgres:16-alpine"),
		postgres.WithDatabase("vigil"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start postgres container: %w", err)
	}

	// Get connection string
	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		container.Terminate(ctx)
		return nil, fmt.Errorf("failed to get connection string: %w", err)
	}

	// Create connection pool
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		container.Terminate(ctx)
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	// Test connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		container.Terminate(ctx)
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// Run migrations
	if err := runMigrations(ctx, pool); err != nil {
		pool.Close()
		container.Terminate(ctx)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	// Create database.DB wrapper
	dbWrapper := &database.DB{
		Pool: pool,
	}

	return &TestDB{
		Container:  container,
		ConnString: connStr,
		Pool:       pool,
		DB:         dbWrapper,
	}, nil
}

// runMigrations executes all goose migrations
func runMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	// Get absolute path to migrations directory
	migrationsDir, err := filepath.Abs("../../migrations")
	if err != nil {
		return fmt.Errorf("failed to get migrations path: %w", err)
	}

	// Suppress goose logs
	goose.SetLogger(goose.NopLogger())

	// Goose needs stdlib DB connection
	// Use stdlib adapter from pgx
	sqlDB := stdlib.OpenDB(*pool.Config().ConnConfig)
	defer sqlDB.Close()

	// Run migrations on the stdlib DB
	if err := goose.UpContext(ctx, sqlDB, migrationsDir); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	return nil
}

// Teardown stops the container and closes the connection pool
func (db *TestDB) Teardown(ctx context.Context) error {
	if db.Pool != nil {
		db.Pool.Close()
	}
	if db.Container != nil {
		return db.Container.Terminate(ctx)
	}
	return nil
}

// CleanupTables truncates all tables for test isolation
func (db *TestDB) CleanupTables(ctx context.Context) error {
	tables := []string{
		"login_attempts",
		"account_lockouts",
		"rate_limit_counters",
		"sessions",
		"audit_logs",
	}

	for _, table := range tables {
		if _, err := db.Pool.Exec(ctx, fmt.Sprintf("TRUNCATE TABLE %s CASCADE", table)); err != nil {
			return fmt.Errorf("failed to truncate table %s: %w", table, err)
		}
	}

	return nil
}

// InitializeRepositories creates all repository instances from database wrapper
func InitializeRepositories(db *database.DB) (
	*repositories.LoginAttemptRepository,
	*repositories.LockoutRepository,
	*repositories.QuotaRepository,
	*repositories.SessionRepository,
	*repositories.AuditLogRepository,
) {
	return repositories.NewLoginAttemptRepository(db),
		repositories.NewLockoutRepository(db),
		repositories.NewQuotaRepository(db),
		repositories.NewSessionRepository(db),
		repositories.NewAuditLogRepository(db)
}

// SeedLoginAttempt inserts a ledger row with a chosen timestamp, for
// retention and anomaly scenarios that need history in place.
func SeedLoginAttempt(ctx context.Context, pool *pgxpool.Pool, email string, success bool, ip string, attemptedAt time.Time) error {
	query := `
		INSERT INTO login_attempts (email, success, ip_address, user_agent, attempted_at)
		VALUES ($1, $2, $3, 'integration-test', $4)
	`
	if _, err := pool.Exec(ctx, query, email, success, ip, attemptedAt); err != nil {
		return fmt.Errorf("failed to insert login attempt: %w", err)
	}
	return nil
}

// SeedLockout writes a lockout row directly, bypassing the counting
// path, so tests can start from a locked or nearly-locked account.
func SeedLockout(ctx context.Context, pool *pgxpool.Pool, email string, failedAttempts int, lockedUntil *time.Time) error {
	query := `
		INSERT INTO account_lockouts (email, failed_attempts, locked_until, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (email) DO UPDATE
		SET failed_attempts = EXCLUDED.failed_attempts,
		    locked_until = EXCLUDED.locked_until,
		    updated_at = now()
	`
	if _, err := pool.Exec(ctx, query, email, failedAttempts, lockedUntil); err != nil {
		return fmt.Errorf("failed to insert lockout: %w", err)
	}
	return nil
}

// SeedQuotaCounter writes a usage counter for a given UTC day.
func SeedQuotaCounter(ctx context.Context, pool *pgxpool.Pool, accountID string, used int, day time.Time) error {
	query := `
		INSERT INTO rate_limit_counters (account_id, used, reset_date)
		VALUES ($1, $2, $3)
		ON CONFLICT (account_id) DO UPDATE
		SET used = EXCLUDED.used, reset_date = EXCLUDED.reset_date
	`
	if _, err := pool.Exec(ctx, query, accountID, used, day.UTC().Truncate(24*time.Hour)); err != nil {
		return fmt.Errorf("failed to insert quota counter: %w", err)
	}
	return nil
}

// SeedAuditLog inserts an audit entry with a chosen timestamp.
func SeedAuditLog(ctx context.Context, pool *pgxpool.Pool, action string, createdAt time.Time) error {
	query := `
		INSERT INTO audit_logs (action, created_at)
		VALUES ($1, $2)
	`
	if _, err := pool.Exec(ctx, query, action, createdAt); err != nil {
		return fmt.Errorf("failed to insert audit log: %w", err)
	}
	return nil
}

// CountRows returns the number of rows in a table, optionally filtered
// by a WHERE clause.
func CountRows(ctx context.Context, pool *pgxpool.Pool, table, where string, args ...interface{}) (int64, error) {
	query := "SELECT COUNT(*) FROM " + table
	if where != "" {
		query += " WHERE " + where
	}

	var count int64
	if err := pool.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count rows in %s: %w", table, err)
	}
	return count, nil
}
