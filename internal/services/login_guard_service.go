package services

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/mwhitfield/vigil/internal/auth"
	"github.com/mwhitfield/vigil/internal/config"
	"github.com/mwhitfield/vigil/internal/geo"
	"github.com/mwhitfield/vigil/internal/identity"
	"github.com/mwhitfield/vigil/internal/models"
	pkglogger "github.com/mwhitfield/vigil/pkg/logger"
)

// LockoutRepository defines the lockout state operations the guard needs
type LockoutRepository interface {
	Get(ctx context.Context, email string) (*models.AccountLockout, error)
	RecordFailure(ctx context.Context, email string, threshold int, lockUntil, now time.Time) (*models.AccountLockout, error)
	ClearOnSuccess(ctx context.Context, email string, now time.Time) (*models.AccountLockout, error)
	Delete(ctx context.Context, email string) (bool, error)
}

// LoginAttemptRepository defines the ledger operations the guard needs
type LoginAttemptRepository interface {
	RecordAttempt(ctx context.Context, attempt *models.LoginAttempt) error
	ListRecent(ctx context.Context, limit, offset int) ([]*models.LoginAttempt, error)
	ListByEmail(ctx context.Context, email string, limit, offset int) ([]*models.LoginAttempt, error)
}

// LoginGuardService wraps credential verification with attempt tracking,
// lockout enforcement, and travel anomaly detection. Verification itself
// is delegated to the identity provider; this service decides whether an
// attempt may reach the provider and what its outcome means for the
// account's security state.
type LoginGuardService struct {
	attempts     LoginAttemptRepository
	lockouts     LockoutRepository
	verifier     identity.CredentialVerifier
	resolver     geo.Resolver
	fingerprints *auth.Fingerprinter
	anomaly      *AnomalyService
	audit        *AuditService
	alerts       *AlertDispatcher
	cfg          config.GuardConfig
	geoTimeout   time.Duration
	logger       *slog.Logger
	now          func() time.Time
}

// NewLoginGuardService creates a new LoginGuardService
func NewLoginGuardService(
	attempts LoginAttemptRepository,
	lockouts LockoutRepository,
	verifier identity.CredentialVerifier,
	resolver geo.Resolver,
	fingerprints *auth.Fingerprinter,
	anomaly *AnomalyService,
	audit *AuditService,
	alerts *AlertDispatcher,
	cfg config.GuardConfig,
	geoTimeout time.Duration,
	logger *slog.Logger,
) *LoginGuardService {
	return &LoginGuardService{
		attempts:     attempts,
		lockouts:     lockouts,
		verifier:     verifier,
		resolver:     resolver,
		fingerprints: fingerprints,
		anomaly:      anomaly,
		audit:        audit,
		alerts:       alerts,
		cfg:          cfg,
		geoTimeout:   geoTimeout,
		logger:       logger,
		now:          time.Now,
	}
}

// Attempt runs one login through the full guard pipeline. Every evaluated
// outcome comes back as a decision with a nil error; errors are reserved
// for infrastructure failures where no verdict was reached and nothing
// was held against the account.
func (s *LoginGuardService) Attempt(ctx context.Context, email, password string, origin models.Origin) (*models.LoginDecision, error) {
	if email = strings.ToLower(strings.TrimSpace(email)); email == "" {
		s.logger.Warn("login attempt with empty email")
		return nil, models.ErrUnauthorized
	}

	now := s.now().UTC()

	lockout, err := s.lockouts.Get(ctx, email)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to read lockout state", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	if lockout != nil && lockout.LockActive(now) {
		return s.rejectLocked(ctx, email, origin, lockout, now), nil
	}

	verdict, err := s.verifier.VerifyCredentials(ctx, email, password)
	if err != nil {
		// Provider outage, not a wrong password. Nothing is recorded or
		// counted against the account.
		s.logger.ErrorContext(ctx, "credential verification unavailable", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	attempt := &models.LoginAttempt{
		Email:             email,
		IPAddress:         origin.IPAddress,
		UserAgent:         origin.UserAgent,
		DeviceFingerprint: s.fingerprints.Fingerprint(origin.IPAddress, origin.UserAgent),
		AttemptedAt:       now,
	}
	s.locate(ctx, attempt)

	if !verdict.Verified {
		return s.handleFailure(ctx, attempt, origin, verdict, now)
	}

	return s.handleSuccess(ctx, attempt, origin, verdict, now)
}

// rejectLocked records an attempt that arrived while a lock was in force.
// Credentials are never evaluated and the counter does not move.
func (s *LoginGuardService) rejectLocked(ctx context.Context, email string, origin models.Origin, lockout *models.AccountLockout, now time.Time) *models.LoginDecision {
	reason := "account_locked"
	attempt := &models.LoginAttempt{
		Email:             email,
		Success:           false,
		IPAddress:         origin.IPAddress,
		UserAgent:         origin.UserAgent,
		DeviceFingerprint: s.fingerprints.Fingerprint(origin.IPAddress, origin.UserAgent),
		FailureReason:     &reason,
		AttemptedAt:       now,
	}
	s.appendAttempt(ctx, attempt)

	s.logger.InfoContext(ctx, "login rejected: account locked",
		slog.String("email", pkglogger.SanitizedEmail(email)),
		slog.Time("locked_until", *lockout.LockedUntil),
	)
	s.audit.Record(ctx, nil, models.AuditActionLoginFailed, models.AuditMetadata{
		"email":  email,
		"reason": reason,
	}, &origin)

	return lockedDecision(lockout, now)
}

func (s *LoginGuardService) handleFailure(ctx context.Context, attempt *models.LoginAttempt, origin models.Origin, verdict *identity.Verdict, now time.Time) (*models.LoginDecision, error) {
	reason := verdict.Reason
	if reason == "" {
		reason = "invalid_credentials"
	}
	attempt.FailureReason = &reason

	lockUntil := now.Add(s.cfg.LockoutDuration)
	lockout, err := s.lockouts.RecordFailure(ctx, attempt.Email, s.cfg.AttemptThreshold, lockUntil, now)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to record login failure", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.appendAttempt(ctx, attempt)

	s.logger.Info("login failed: invalid credentials")
	s.audit.Record(ctx, nil, models.AuditActionLoginFailed, models.AuditMetadata{
		"email":  attempt.Email,
		"reason": reason,
	}, &origin)

	// Seeing our own lockUntil echoed back means this failure crossed the
	// threshold, so this call alone announces the lock.
	if lockout.LockedUntil != nil && lockout.LockedUntil.Equal(lockUntil) {
		s.logger.WarnContext(ctx, "account locked after repeated failures",
			slog.String("email", pkglogger.SanitizedEmail(attempt.Email)),
			slog.Int("failed_attempts", lockout.FailedAttempts),
		)
		s.audit.Record(ctx, nil, models.AuditActionAccountLocked, models.AuditMetadata{
			"email":           attempt.Email,
			"failed_attempts": lockout.FailedAttempts,
			"locked_until":    lockout.LockedUntil.Format(time.RFC3339),
		}, &origin)
		s.alerts.Dispatch(&models.AlertIntent{
			Type:      models.AlertAccountLocked,
			Recipient: models.AlertRecipientAccount,
			Email:     attempt.Email,
			Details: map[string]string{
				"locked_until": lockout.LockedUntil.Format(time.RFC3339),
				"ip_address":   origin.IPAddress,
			},
		})
	}

	if lockout.LockActive(now) {
		return lockedDecision(lockout, now), nil
	}

	remaining := s.cfg.AttemptThreshold - lockout.FailedAttempts
	if remaining < 0 {
		remaining = 0
	}
	return &models.LoginDecision{
		Success:           false,
		AttemptsRemaining: &remaining,
	}, nil
}

func (s *LoginGuardService) handleSuccess(ctx context.Context, attempt *models.LoginAttempt, origin models.Origin, verdict *identity.Verdict, now time.Time) (*models.LoginDecision, error) {
	blocking, err := s.lockouts.ClearOnSuccess(ctx, attempt.Email, now)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to clear lockout state", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	if blocking != nil {
		// Concurrent failures locked the account between our pre-check and
		// the clear. Correct credentials do not bypass an active lock.
		reason := "account_locked"
		attempt.Success = false
		attempt.FailureReason = &reason
		s.appendAttempt(ctx, attempt)

		s.logger.InfoContext(ctx, "login rejected: account locked",
			slog.String("email", pkglogger.SanitizedEmail(attempt.Email)),
		)
		s.audit.Record(ctx, nil, models.AuditActionLoginFailed, models.AuditMetadata{
			"email":  attempt.Email,
			"reason": reason,
		}, &origin)

		return lockedDecision(blocking, now), nil
	}

	attempt.Success = true

	// Inspect before appending so the comparison baseline is the previous
	// success, not the one being recorded.
	finding := s.anomaly.Inspect(ctx, attempt)

	s.appendAttempt(ctx, attempt)

	s.logger.Info("login succeeded", slog.String("account_id", verdict.AccountID))
	s.audit.Record(ctx, &verdict.AccountID, models.AuditActionLoginSuccess, models.AuditMetadata{
		"email": attempt.Email,
	}, &origin)

	if finding != nil {
		details := finding.Details()
		details["ip_address"] = origin.IPAddress

		auditDetail := models.AuditMetadata{"email": attempt.Email}
		for k, v := range details {
			auditDetail[k] = v
		}
		s.audit.Record(ctx, &verdict.AccountID, models.AuditActionSuspiciousLogin, auditDetail, &origin)
		s.alerts.Dispatch(&models.AlertIntent{
			Type:      models.AlertSuspiciousLogin,
			Recipient: models.AlertRecipientAccount,
			Email:     attempt.Email,
			Details:   details,
		})
	}

	return &models.LoginDecision{
		Success:    true,
		Suspicious: finding != nil,
		AccountID:  verdict.AccountID,
	}, nil
}

// AdminUnlock force-clears an account's lockout state. It reports whether
// a lockout row actually existed; clearing an unlocked account is an
// audited no-op.
func (s *LoginGuardService) AdminUnlock(ctx context.Context, adminID, email string, origin models.Origin) (bool, error) {
	if email = strings.ToLower(strings.TrimSpace(email)); email == "" {
		return false, models.ErrBadRequest
	}

	existed, err := s.lockouts.Delete(ctx, email)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to delete lockout", slog.Any("error", err))
		return false, models.ErrInternalServer
	}

	s.logger.InfoContext(ctx, "account unlocked by admin",
		slog.String("admin_id", adminID),
		slog.String("email", pkglogger.SanitizedEmail(email)),
		slog.Bool("had_lockout", existed),
	)
	s.audit.Record(ctx, &adminID, models.AuditActionAccountUnlocked, models.AuditMetadata{
		"email":       email,
		"had_lockout": existed,
	}, &origin)

	return existed, nil
}

// ListAttempts returns ledger entries for the admin review feed, newest
// first. An empty email returns attempts across all accounts.
func (s *LoginGuardService) ListAttempts(ctx context.Context, email string, limit, offset int) ([]*models.LoginAttempt, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	if email = strings.ToLower(strings.TrimSpace(email)); email != "" {
		return s.attempts.ListByEmail(ctx, email, limit, offset)
	}
	return s.attempts.ListRecent(ctx, limit, offset)
}

// appendAttempt writes one ledger row. The lockout counter is the
// enforcement mechanism, so a failed append is logged and the login
// flow continues.
func (s *LoginGuardService) appendAttempt(ctx context.Context, attempt *models.LoginAttempt) {
	if err := s.attempts.RecordAttempt(ctx, attempt); err != nil {
		s.logger.ErrorContext(ctx, "failed to append login attempt",
			slog.String("email", attempt.Email),
			slog.Any("error", err),
		)
	}
}

// locate fills in approximate coordinates for the attempt's address.
// Lookups are bounded and best-effort; the attempt proceeds without
// location on any failure.
func (s *LoginGuardService) locate(ctx context.Context, attempt *models.LoginAttempt) {
	if s.resolver == nil || attempt.IPAddress == "" {
		return
	}

	lookupCtx, cancel := context.WithTimeout(ctx, s.geoTimeout)
	defer cancel()

	loc, err := s.resolver.Resolve(lookupCtx, attempt.IPAddress)
	if err != nil {
		s.logger.DebugContext(ctx, "geo lookup failed",
			slog.String("ip_address", attempt.IPAddress),
			slog.Any("error", err),
		)
		return
	}

	attempt.Latitude = &loc.Latitude
	attempt.Longitude = &loc.Longitude
	if loc.City != "" {
		attempt.City = &loc.City
	}
	if loc.Country != "" {
		attempt.Country = &loc.Country
	}
}

func lockedDecision(lockout *models.AccountLockout, now time.Time) *models.LoginDecision {
	retryAfter := int((lockout.RetryAfter(now) + time.Second - 1) / time.Second)

	return &models.LoginDecision{
		Success:           false,
		Locked:            true,
		LockedUntil:       lockout.LockedUntil,
		RetryAfterSeconds: retryAfter,
	}
}
