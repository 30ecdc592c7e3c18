package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/mwhitfield/vigil/internal/auth"
	"github.com/mwhitfield/vigil/internal/geo"
	"github.com/mwhitfield/vigil/internal/models"
)

// SessionRepository defines the session registry operations the service needs
type SessionRepository interface {
	UpsertCurrent(ctx context.Context, session *models.Session) (*models.Session, error)
	ListByAccount(ctx context.Context, accountID string) ([]*models.Session, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Session, error)
	DeleteByID(ctx context.Context, id uuid.UUID) (*models.Session, error)
	DeleteAllExcept(ctx context.Context, accountID, keepFingerprint string) (int64, error)
}

// SessionService maintains the device registry: one row per account and
// device fingerprint, with the most recently authenticated device
// flagged current.
type SessionService struct {
	repo         SessionRepository
	fingerprints *auth.Fingerprinter
	resolver     geo.Resolver
	geoTimeout   time.Duration
	audit        *AuditService
	alerts       *AlertDispatcher
	logger       *slog.Logger
}

// NewSessionService creates a new SessionService
func NewSessionService(
	repo SessionRepository,
	fingerprints *auth.Fingerprinter,
	resolver geo.Resolver,
	geoTimeout time.Duration,
	audit *AuditService,
	alerts *AlertDispatcher,
	logger *slog.Logger,
) *SessionService {
	return &SessionService{
		repo:         repo,
		fingerprints: fingerprints,
		resolver:     resolver,
		geoTimeout:   geoTimeout,
		audit:        audit,
		alerts:       alerts,
		logger:       logger,
	}
}

// UpsertCurrent refreshes the registry for one authenticated request:
// the requesting device becomes the account's current session and every
// other device is demoted. Routine activity is not audited.
func (s *SessionService) UpsertCurrent(ctx context.Context, accountID, email string, origin models.Origin) (*models.Session, error) {
	if accountID == "" {
		return nil, models.ErrBadRequest
	}

	session := &models.Session{
		AccountID:    accountID,
		Email:        email,
		Fingerprint:  s.fingerprints.Fingerprint(origin.IPAddress, origin.UserAgent),
		Device:       deviceDescriptor(origin.UserAgent),
		IPAddress:    origin.IPAddress,
		LastActiveAt: time.Now().UTC(),
	}
	s.locateSession(ctx, session)

	result, err := s.repo.UpsertCurrent(ctx, session)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to upsert session",
			slog.String("account_id", accountID),
			slog.Any("error", err),
		)
		return nil, models.ErrInternalServer
	}

	return result, nil
}

// List returns the account's known devices, most recently active first
func (s *SessionService) List(ctx context.Context, accountID string) ([]*models.Session, error) {
	if accountID == "" {
		return nil, models.ErrBadRequest
	}
	return s.repo.ListByAccount(ctx, accountID)
}

// Revoke deletes one session. Non-admins can only revoke their own
// sessions; a foreign session id reads as not found so the registry
// never confirms other accounts' session ids. Revoking someone else's
// session alerts the affected account.
func (s *SessionService) Revoke(ctx context.Context, actorID string, actorIsAdmin bool, sessionID uuid.UUID, origin models.Origin) (*models.Session, error) {
	session, err := s.repo.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !actorIsAdmin && session.AccountID != actorID {
		return nil, models.ErrNotFound
	}

	deleted, err := s.repo.DeleteByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "session revoked",
		slog.String("actor_id", actorID),
		slog.String("account_id", deleted.AccountID),
		slog.String("session_id", deleted.ID.String()),
	)
	s.audit.Record(ctx, &actorID, models.AuditActionSessionRevoked, models.AuditMetadata{
		"session_id":  deleted.ID.String(),
		"account_id":  deleted.AccountID,
		"device":      deleted.Device,
		"was_current": deleted.IsCurrent,
	}, &origin)

	if deleted.AccountID != actorID {
		s.alerts.Dispatch(&models.AlertIntent{
			Type:      models.AlertSessionRevoked,
			Recipient: models.AlertRecipientAccount,
			Email:     deleted.Email,
			Details: map[string]string{
				"device":     deleted.Device,
				"ip_address": deleted.IPAddress,
			},
		})
	}

	return deleted, nil
}

// RevokeOthers signs the account out of every device except the one
// making this request
func (s *SessionService) RevokeOthers(ctx context.Context, accountID string, origin models.Origin) (int64, error) {
	if accountID == "" {
		return 0, models.ErrBadRequest
	}

	keep := s.fingerprints.Fingerprint(origin.IPAddress, origin.UserAgent)
	revoked, err := s.repo.DeleteAllExcept(ctx, accountID, keep)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to revoke sessions",
			slog.String("account_id", accountID),
			slog.Any("error", err),
		)
		return 0, models.ErrInternalServer
	}

	s.logger.InfoContext(ctx, "other sessions revoked",
		slog.String("account_id", accountID),
		slog.Int64("revoked", revoked),
	)
	s.audit.Record(ctx, &accountID, models.AuditActionSessionsRevoked, models.AuditMetadata{
		"account_id":    accountID,
		"revoked_count": revoked,
	}, &origin)

	return revoked, nil
}

// locateSession fills in approximate location, best-effort and bounded
func (s *SessionService) locateSession(ctx context.Context, session *models.Session) {
	if s.resolver == nil || session.IPAddress == "" {
		return
	}

	lookupCtx, cancel := context.WithTimeout(ctx, s.geoTimeout)
	defer cancel()

	loc, err := s.resolver.Resolve(lookupCtx, session.IPAddress)
	if err != nil {
		return
	}
	if loc.City != "" {
		session.City = &loc.City
	}
	if loc.Country != "" {
		session.Country = &loc.Country
	}
}

// deviceDescriptor keeps the raw user agent within column bounds
func deviceDescriptor(userAgent string) string {
	const max = 256
	if len(userAgent) > max {
		return userAgent[:max]
	}
	return userAgent
}
