package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/mwhitfield/vigil/internal/models"
)

// PurgeableStore is any append-only store that can drop rows past a
// retention cutoff
type PurgeableStore interface {
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// PurgeResult reports one retention run
type PurgeResult struct {
	AttemptsRemoved  int64 `json:"attempts_removed"`
	AuditLogsRemoved int64 `json:"audit_logs_removed"`
}

// RetentionService trims the append-only stores down to their retention
// windows. It runs unattended, so the purge itself is recorded in the
// audit trail with no actor.
type RetentionService struct {
	attempts      PurgeableStore
	auditLogs     PurgeableStore
	attemptWindow time.Duration
	auditWindow   time.Duration
	audit         *AuditService
	logger        *slog.Logger
}

// NewRetentionService creates a new RetentionService
func NewRetentionService(attempts, auditLogs PurgeableStore, attemptWindow, auditWindow time.Duration, audit *AuditService, logger *slog.Logger) *RetentionService {
	return &RetentionService{
		attempts:      attempts,
		auditLogs:     auditLogs,
		attemptWindow: attemptWindow,
		auditWindow:   auditWindow,
		audit:         audit,
		logger:        logger,
	}
}

// RunPurge deletes ledger and audit rows older than their windows. Both
// stores are attempted even if one fails.
func (s *RetentionService) RunPurge(ctx context.Context) (*PurgeResult, error) {
	now := time.Now().UTC()
	result := &PurgeResult{}

	var errs []error

	removed, err := s.attempts.DeleteOlderThan(ctx, now.Add(-s.attemptWindow))
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to purge login attempts", slog.Any("error", err))
		errs = append(errs, err)
	} else {
		result.AttemptsRemoved = removed
	}

	removed, err = s.auditLogs.DeleteOlderThan(ctx, now.Add(-s.auditWindow))
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to purge audit logs", slog.Any("error", err))
		errs = append(errs, err)
	} else {
		result.AuditLogsRemoved = removed
	}

	if len(errs) > 0 {
		return result, errors.Join(errs...)
	}

	s.logger.InfoContext(ctx, "retention purge completed",
		slog.Int64("attempts_removed", result.AttemptsRemoved),
		slog.Int64("audit_logs_removed", result.AuditLogsRemoved),
	)
	s.audit.Record(ctx, nil, models.AuditActionRetentionPurge, models.AuditMetadata{
		"attempts_removed":   result.AttemptsRemoved,
		"audit_logs_removed": result.AuditLogsRemoved,
	}, nil)

	return result, nil
}
