package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mwhitfield/vigil/internal/models"
	pkglogger "github.com/mwhitfield/vigil/pkg/logger"
)

// AuditRepository is the persistence surface the audit writer needs
type AuditRepository interface {
	Create(ctx context.Context, log *models.AuditLog) (*models.AuditLog, error)
	ListRecent(ctx context.Context, limit, offset int) ([]*models.AuditLog, error)
	ListByActor(ctx context.Context, actorID string, limit, offset int) ([]*models.AuditLog, error)
	ListByAction(ctx context.Context, action string, limit, offset int) ([]*models.AuditLog, error)
	Count(ctx context.Context) (int64, error)
}

// AuditService appends security-relevant events with a dual-write
// pattern (structured log + database). The persisted write is
// best-effort: a failed insert is logged and swallowed so the mutation
// that triggered it stands regardless.
type AuditService struct {
	repo        AuditRepository
	auditLogger *pkglogger.AuditLogger
	logger      *slog.Logger
}

// NewAuditService creates a new AuditService
func NewAuditService(repo AuditRepository, auditLogger *pkglogger.AuditLogger, logger *slog.Logger) *AuditService {
	return &AuditService{
		repo:        repo,
		auditLogger: auditLogger,
		logger:      logger,
	}
}

// Record appends one audit entry. actorID nil means the system itself
// acted. The method deliberately returns nothing: audit is observability,
// not a transactional participant, and no caller may branch on it.
func (s *AuditService) Record(ctx context.Context, actorID *string, action string, detail models.AuditMetadata, origin *models.Origin) {
	entry := &models.AuditLog{
		ActorID: actorID,
		Action:  action,
		Detail:  detail,
	}
	if origin != nil && origin.IPAddress != "" {
		entry.IPAddress = &origin.IPAddress
	}

	event := pkglogger.AuditEvent{
		Action: action,
		Detail: detail,
	}
	if actorID != nil {
		event.ActorID = *actorID
	}
	if origin != nil {
		event.IPAddress = origin.IPAddress
	}
	s.auditLogger.LogEvent(event)

	if _, err := s.repo.Create(ctx, entry); err != nil {
		s.logger.ErrorContext(ctx, "failed to persist audit log",
			slog.String("action", action),
			slog.Any("error", err),
		)
	}
}

// List retrieves audit entries, optionally filtered by actor or action
func (s *AuditService) List(ctx context.Context, actorID, action string, limit, offset int) ([]*models.AuditLog, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	var (
		logs []*models.AuditLog
		err  error
	)
	switch {
	case actorID != "":
		logs, err = s.repo.ListByActor(ctx, actorID, limit, offset)
	case action != "":
		logs, err = s.repo.ListByAction(ctx, action, limit, offset)
	default:
		logs, err = s.repo.ListRecent(ctx, limit, offset)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list audit logs: %w", err)
	}

	return logs, nil
}

// Total returns the overall number of audit entries
func (s *AuditService) Total(ctx context.Context) (int64, error) {
	count, err := s.repo.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count audit logs: %w", err)
	}
	return count, nil
}
