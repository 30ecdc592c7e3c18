package services

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/mwhitfield/vigil/internal/models"
)

// QuotaRepository defines the counter operations the quota service needs
type QuotaRepository interface {
	ConsumeOne(ctx context.Context, accountID string, limit int, day time.Time) (int, bool, error)
	Get(ctx context.Context, accountID string) (*models.QuotaCounter, error)
	SetCount(ctx context.Context, accountID string, count int, day time.Time) error
}

// QuotaStatus reports an account's standing against today's budget
type QuotaStatus struct {
	Allowed   bool      `json:"allowed"`
	Limit     int       `json:"limit"`
	Used      int       `json:"used"`
	Remaining int       `json:"remaining"`
	ResetsAt  time.Time `json:"resets_at"`
}

// QuotaService enforces the per-account daily budget for AI assist
// calls. Budgets reset at midnight UTC; the reset is lazy and happens
// on the first touch of a new day.
type QuotaService struct {
	repo       QuotaRepository
	audit      *AuditService
	alerts     *AlertDispatcher
	dailyLimit int
	logger     *slog.Logger
	now        func() time.Time
}

// NewQuotaService creates a new QuotaService
func NewQuotaService(repo QuotaRepository, audit *AuditService, alerts *AlertDispatcher, dailyLimit int, logger *slog.Logger) *QuotaService {
	return &QuotaService{
		repo:       repo,
		audit:      audit,
		alerts:     alerts,
		dailyLimit: dailyLimit,
		logger:     logger,
		now:        time.Now,
	}
}

// CheckAndConsume takes one unit of today's budget if any is left. The
// check and the take are a single store operation, so two concurrent
// calls can never both win the last unit. Store failures deny the
// request rather than admitting unmetered usage.
func (s *QuotaService) CheckAndConsume(ctx context.Context, accountID string, origin models.Origin) (*QuotaStatus, error) {
	if accountID == "" {
		return nil, models.ErrBadRequest
	}
	if s.dailyLimit <= 0 {
		s.auditDenied(ctx, accountID, 0, origin)
		return s.status(false, 0), nil
	}

	day := models.UTCDay(s.now())
	used, allowed, err := s.repo.ConsumeOne(ctx, accountID, s.dailyLimit, day)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to consume quota",
			slog.String("account_id", accountID),
			slog.Any("error", err),
		)
		return nil, models.ErrInternalServer
	}

	if !allowed {
		s.logger.InfoContext(ctx, "assist quota exhausted",
			slog.String("account_id", accountID),
			slog.Int("limit", s.dailyLimit),
		)
		s.auditDenied(ctx, accountID, used, origin)
		return s.status(false, used), nil
	}

	return s.status(true, used), nil
}

// Remaining reports today's standing without consuming anything
func (s *QuotaService) Remaining(ctx context.Context, accountID string) (*QuotaStatus, error) {
	if accountID == "" {
		return nil, models.ErrBadRequest
	}

	counter, err := s.repo.Get(ctx, accountID)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to read quota counter",
			slog.String("account_id", accountID),
			slog.Any("error", err),
		)
		return nil, models.ErrInternalServer
	}

	used := 0
	if counter != nil {
		used = counter.UsedOn(s.now())
	}

	return s.status(used < s.dailyLimit, used), nil
}

// SetCount pins an account's usage for today to an exact value. Admin
// override; the action is audited under the admin's identity and
// announced to the admin group.
func (s *QuotaService) SetCount(ctx context.Context, adminID, accountID string, count int, origin models.Origin) error {
	if accountID == "" || count < 0 {
		return models.ErrBadRequest
	}

	day := models.UTCDay(s.now())
	if err := s.repo.SetCount(ctx, accountID, count, day); err != nil {
		s.logger.ErrorContext(ctx, "failed to set quota counter",
			slog.String("account_id", accountID),
			slog.Any("error", err),
		)
		return models.ErrInternalServer
	}

	s.logger.InfoContext(ctx, "quota counter set by admin",
		slog.String("admin_id", adminID),
		slog.String("account_id", accountID),
		slog.Int("count", count),
	)
	s.audit.Record(ctx, &adminID, models.AuditActionQuotaCountSet, models.AuditMetadata{
		"account_id": accountID,
		"count":      count,
	}, &origin)
	s.alerts.Dispatch(&models.AlertIntent{
		Type:      models.AlertQuotaOverride,
		Recipient: models.AlertRecipientAdmins,
		Details: map[string]string{
			"admin_id":   adminID,
			"account_id": accountID,
			"action":     "set",
			"count":      strconv.Itoa(count),
		},
	})

	return nil
}

// ResetCount clears an account's usage for today, restoring the full
// daily budget
func (s *QuotaService) ResetCount(ctx context.Context, adminID, accountID string, origin models.Origin) error {
	if accountID == "" {
		return models.ErrBadRequest
	}

	day := models.UTCDay(s.now())
	if err := s.repo.SetCount(ctx, accountID, 0, day); err != nil {
		s.logger.ErrorContext(ctx, "failed to reset quota counter",
			slog.String("account_id", accountID),
			slog.Any("error", err),
		)
		return models.ErrInternalServer
	}

	s.logger.InfoContext(ctx, "quota counter reset by admin",
		slog.String("admin_id", adminID),
		slog.String("account_id", accountID),
	)
	s.audit.Record(ctx, &adminID, models.AuditActionQuotaCountReset, models.AuditMetadata{
		"account_id": accountID,
	}, &origin)
	s.alerts.Dispatch(&models.AlertIntent{
		Type:      models.AlertQuotaOverride,
		Recipient: models.AlertRecipientAdmins,
		Details: map[string]string{
			"admin_id":   adminID,
			"account_id": accountID,
			"action":     "reset",
		},
	})

	return nil
}

func (s *QuotaService) status(allowed bool, used int) *QuotaStatus {
	remaining := s.dailyLimit - used
	if remaining < 0 {
		remaining = 0
	}

	return &QuotaStatus{
		Allowed:   allowed,
		Limit:     s.dailyLimit,
		Used:      used,
		Remaining: remaining,
		ResetsAt:  models.UTCDay(s.now()).Add(24 * time.Hour),
	}
}

func (s *QuotaService) auditDenied(ctx context.Context, accountID string, used int, origin models.Origin) {
	s.audit.Record(ctx, &accountID, models.AuditActionQuotaDenied, models.AuditMetadata{
		"account_id": accountID,
		"limit":      s.dailyLimit,
		"used":       used,
	}, &origin)
}
