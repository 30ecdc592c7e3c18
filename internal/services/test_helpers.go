package services

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mwhitfield/vigil/internal/geo"
	"github.com/mwhitfield/vigil/internal/identity"
	"github.com/mwhitfield/vigil/internal/models"
)

// MockLoginAttemptRepository implements LoginAttemptRepository,
// AnomalyAttemptSource, and PurgeableStore for testing. Recorded
// attempts are appended under a mutex so concurrent guard tests can
// share one instance.
type MockLoginAttemptRepository struct {
	RecordAttemptFunc   func(ctx context.Context, attempt *models.LoginAttempt) error
	GetLastSuccessFunc  func(ctx context.Context, email string, before time.Time) (*models.LoginAttempt, error)
	ListRecentFunc      func(ctx context.Context, limit, offset int) ([]*models.LoginAttempt, error)
	ListByEmailFunc     func(ctx context.Context, email string, limit, offset int) ([]*models.LoginAttempt, error)
	DeleteOlderThanFunc func(ctx context.Context, cutoff time.Time) (int64, error)

	mu       sync.Mutex
	Recorded []*models.LoginAttempt
}

func (m *MockLoginAttemptRepository) RecordAttempt(ctx context.Context, attempt *models.LoginAttempt) error {
	if m.RecordAttemptFunc != nil {
		return m.RecordAttemptFunc(ctx, attempt)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Recorded = append(m.Recorded, attempt)
	return nil
}

func (m *MockLoginAttemptRepository) GetLastSuccess(ctx context.Context, email string, before time.Time) (*models.LoginAttempt, error) {
	if m.GetLastSuccessFunc != nil {
		return m.GetLastSuccessFunc(ctx, email, before)
	}
	return nil, nil
}

func (m *MockLoginAttemptRepository) ListRecent(ctx context.Context, limit, offset int) ([]*models.LoginAttempt, error) {
	if m.ListRecentFunc != nil {
		return m.ListRecentFunc(ctx, limit, offset)
	}
	return []*models.LoginAttempt{}, nil
}

func (m *MockLoginAttemptRepository) ListByEmail(ctx context.Context, email string, limit, offset int) ([]*models.LoginAttempt, error) {
	if m.ListByEmailFunc != nil {
		return m.ListByEmailFunc(ctx, email, limit, offset)
	}
	return []*models.LoginAttempt{}, nil
}

func (m *MockLoginAttemptRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	if m.DeleteOlderThanFunc != nil {
		return m.DeleteOlderThanFunc(ctx, cutoff)
	}
	return 0, nil
}

// RecordedAttempts returns a snapshot of everything appended so far
func (m *MockLoginAttemptRepository) RecordedAttempts() []*models.LoginAttempt {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.LoginAttempt, len(m.Recorded))
	copy(out, m.Recorded)
	return out
}

// MockLockoutRepository implements LockoutRepository for testing
type MockLockoutRepository struct {
	GetFunc            func(ctx context.Context, email string) (*models.AccountLockout, error)
	RecordFailureFunc  func(ctx context.Context, email string, threshold int, lockUntil, now time.Time) (*models.AccountLockout, error)
	ClearOnSuccessFunc func(ctx context.Context, email string, now time.Time) (*models.AccountLockout, error)
	DeleteFunc         func(ctx context.Context, email string) (bool, error)
}

func (m *MockLockoutRepository) Get(ctx context.Context, email string) (*models.AccountLockout, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, email)
	}
	return nil, nil
}

func (m *MockLockoutRepository) RecordFailure(ctx context.Context, email string, threshold int, lockUntil, now time.Time) (*models.AccountLockout, error) {
	if m.RecordFailureFunc != nil {
		return m.RecordFailureFunc(ctx, email, threshold, lockUntil, now)
	}
	return &models.AccountLockout{Email: email, FailedAttempts: 1, UpdatedAt: now}, nil
}

func (m *MockLockoutRepository) ClearOnSuccess(ctx context.Context, email string, now time.Time) (*models.AccountLockout, error) {
	if m.ClearOnSuccessFunc != nil {
		return m.ClearOnSuccessFunc(ctx, email, now)
	}
	return nil, nil
}

func (m *MockLockoutRepository) Delete(ctx context.Context, email string) (bool, error) {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, email)
	}
	return false, nil
}

// MockQuotaRepository implements QuotaRepository for testing
type MockQuotaRepository struct {
	ConsumeOneFunc func(ctx context.Context, accountID string, limit int, day time.Time) (int, bool, error)
	GetFunc        func(ctx context.Context, accountID string) (*models.QuotaCounter, error)
	SetCountFunc   func(ctx context.Context, accountID string, count int, day time.Time) error
}

func (m *MockQuotaRepository) ConsumeOne(ctx context.Context, accountID string, limit int, day time.Time) (int, bool, error) {
	if m.ConsumeOneFunc != nil {
		return m.ConsumeOneFunc(ctx, accountID, limit, day)
	}
	return 1, true, nil
}

func (m *MockQuotaRepository) Get(ctx context.Context, accountID string) (*models.QuotaCounter, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, accountID)
	}
	return nil, nil
}

func (m *MockQuotaRepository) SetCount(ctx context.Context, accountID string, count int, day time.Time) error {
	if m.SetCountFunc != nil {
		return m.SetCountFunc(ctx, accountID, count, day)
	}
	return nil
}

// MockSessionRepository implements SessionRepository for testing
type MockSessionRepository struct {
	UpsertCurrentFunc   func(ctx context.Context, session *models.Session) (*models.Session, error)
	ListByAccountFunc   func(ctx context.Context, accountID string) ([]*models.Session, error)
	GetByIDFunc         func(ctx context.Context, id uuid.UUID) (*models.Session, error)
	DeleteByIDFunc      func(ctx context.Context, id uuid.UUID) (*models.Session, error)
	DeleteAllExceptFunc func(ctx context.Context, accountID, keepFingerprint string) (int64, error)
}

func (m *MockSessionRepository) UpsertCurrent(ctx context.Context, session *models.Session) (*models.Session, error) {
	if m.UpsertCurrentFunc != nil {
		return m.UpsertCurrentFunc(ctx, session)
	}
	session.ID = uuid.New()
	session.IsCurrent = true
	session.CreatedAt = time.Now().UTC()
	return session, nil
}

func (m *MockSessionRepository) ListByAccount(ctx context.Context, accountID string) ([]*models.Session, error) {
	if m.ListByAccountFunc != nil {
		return m.ListByAccountFunc(ctx, accountID)
	}
	return []*models.Session{}, nil
}

func (m *MockSessionRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Session, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, models.ErrNotFound
}

func (m *MockSessionRepository) DeleteByID(ctx context.Context, id uuid.UUID) (*models.Session, error) {
	if m.DeleteByIDFunc != nil {
		return m.DeleteByIDFunc(ctx, id)
	}
	return nil, models.ErrNotFound
}

func (m *MockSessionRepository) DeleteAllExcept(ctx context.Context, accountID, keepFingerprint string) (int64, error) {
	if m.DeleteAllExceptFunc != nil {
		return m.DeleteAllExceptFunc(ctx, accountID, keepFingerprint)
	}
	return 0, nil
}

// MockAuditLogRepository implements AuditRepository and PurgeableStore
// for testing. Created entries are collected under a mutex.
type MockAuditLogRepository struct {
	CreateFunc          func(ctx context.Context, log *models.AuditLog) (*models.AuditLog, error)
	ListRecentFunc      func(ctx context.Context, limit, offset int) ([]*models.AuditLog, error)
	ListByActorFunc     func(ctx context.Context, actorID string, limit, offset int) ([]*models.AuditLog, error)
	ListByActionFunc    func(ctx context.Context, action string, limit, offset int) ([]*models.AuditLog, error)
	CountFunc           func(ctx context.Context) (int64, error)
	DeleteOlderThanFunc func(ctx context.Context, cutoff time.Time) (int64, error)

	mu          sync.Mutex
	CreatedLogs []*models.AuditLog
}

func (m *MockAuditLogRepository) Create(ctx context.Context, log *models.AuditLog) (*models.AuditLog, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, log)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CreatedLogs = append(m.CreatedLogs, log)
	return log, nil
}

func (m *MockAuditLogRepository) ListRecent(ctx context.Context, limit, offset int) ([]*models.AuditLog, error) {
	if m.ListRecentFunc != nil {
		return m.ListRecentFunc(ctx, limit, offset)
	}
	return []*models.AuditLog{}, nil
}

func (m *MockAuditLogRepository) ListByActor(ctx context.Context, actorID string, limit, offset int) ([]*models.AuditLog, error) {
	if m.ListByActorFunc != nil {
		return m.ListByActorFunc(ctx, actorID, limit, offset)
	}
	return []*models.AuditLog{}, nil
}

func (m *MockAuditLogRepository) ListByAction(ctx context.Context, action string, limit, offset int) ([]*models.AuditLog, error) {
	if m.ListByActionFunc != nil {
		return m.ListByActionFunc(ctx, action, limit, offset)
	}
	return []*models.AuditLog{}, nil
}

func (m *MockAuditLogRepository) Count(ctx context.Context) (int64, error) {
	if m.CountFunc != nil {
		return m.CountFunc(ctx)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.CreatedLogs)), nil
}

func (m *MockAuditLogRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	if m.DeleteOlderThanFunc != nil {
		return m.DeleteOlderThanFunc(ctx, cutoff)
	}
	return 0, nil
}

// Actions returns the recorded audit actions in creation order
func (m *MockAuditLogRepository) Actions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.CreatedLogs))
	for i, log := range m.CreatedLogs {
		out[i] = log.Action
	}
	return out
}

// MockAlertNotifier implements AlertNotifier for testing. Dispatch runs
// intents on background goroutines, so sends are collected under a
// mutex and read through Sent.
type MockAlertNotifier struct {
	SendFunc func(ctx context.Context, intent *models.AlertIntent) error

	mu   sync.Mutex
	sent []*models.AlertIntent
}

func (m *MockAlertNotifier) Send(ctx context.Context, intent *models.AlertIntent) error {
	if m.SendFunc != nil {
		return m.SendFunc(ctx, intent)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, intent)
	return nil
}

// Sent returns a snapshot of delivered intents
func (m *MockAlertNotifier) Sent() []*models.AlertIntent {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.AlertIntent, len(m.sent))
	copy(out, m.sent)
	return out
}

// MockCredentialVerifier implements identity.CredentialVerifier for testing
type MockCredentialVerifier struct {
	VerifyCredentialsFunc func(ctx context.Context, email, password string) (*identity.Verdict, error)
}

func (m *MockCredentialVerifier) VerifyCredentials(ctx context.Context, email, password string) (*identity.Verdict, error) {
	if m.VerifyCredentialsFunc != nil {
		return m.VerifyCredentialsFunc(ctx, email, password)
	}
	return &identity.Verdict{Verified: true, AccountID: "acct_123"}, nil
}

// MockResolver implements geo.Resolver for testing
type MockResolver struct {
	ResolveFunc func(ctx context.Context, ip string) (geo.Location, error)
}

func (m *MockResolver) Resolve(ctx context.Context, ip string) (geo.Location, error) {
	if m.ResolveFunc != nil {
		return m.ResolveFunc(ctx, ip)
	}
	return geo.Location{}, geo.ErrUnavailable
}

// Test data builders

// NewTestOrigin returns a routable-looking request origin
func NewTestOrigin() models.Origin {
	return models.Origin{
		IPAddress: "203.0.113.10",
		UserAgent: "test-agent/1.0",
	}
}

// NewTestLockout creates a lockout row with the given failure count
func NewTestLockout(email string, attempts int, lockedUntil *time.Time) *models.AccountLockout {
	return &models.AccountLockout{
		Email:          email,
		FailedAttempts: attempts,
		LockedUntil:    lockedUntil,
		UpdatedAt:      time.Now().UTC(),
	}
}

// NewTestAttempt creates a ledger row without location data
func NewTestAttempt(email string, success bool, attemptedAt time.Time) *models.LoginAttempt {
	attempt := &models.LoginAttempt{
		ID:                uuid.New().String(),
		Email:             email,
		Success:           success,
		IPAddress:         "203.0.113.10",
		UserAgent:         "test-agent/1.0",
		DeviceFingerprint: "fp_test",
		AttemptedAt:       attemptedAt,
	}
	if !success {
		reason := "invalid_credentials"
		attempt.FailureReason = &reason
	}
	return attempt
}

// NewTestAttemptLocated creates a ledger row with coordinates
func NewTestAttemptLocated(email string, success bool, attemptedAt time.Time, lat, lon float64) *models.LoginAttempt {
	attempt := NewTestAttempt(email, success, attemptedAt)
	attempt.Latitude = &lat
	attempt.Longitude = &lon
	return attempt
}

// NewTestSession creates a session row for the given device fingerprint
func NewTestSession(accountID, email, fingerprint string, current bool) *models.Session {
	now := time.Now().UTC()
	return &models.Session{
		ID:           uuid.New(),
		AccountID:    accountID,
		Email:        email,
		Fingerprint:  fingerprint,
		Device:       "test-agent/1.0",
		IPAddress:    "203.0.113.10",
		IsCurrent:    current,
		LastActiveAt: now,
		CreatedAt:    now,
	}
}

// NewTestQuotaCounter creates a usage counter pinned to a day
func NewTestQuotaCounter(accountID string, used int, day time.Time) *models.QuotaCounter {
	return &models.QuotaCounter{
		AccountID: accountID,
		Used:      used,
		ResetDate: models.UTCDay(day),
	}
}
