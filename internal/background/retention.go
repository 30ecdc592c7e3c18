package background

import (
	"context"
	"log/slog"
	"time"

	"github.com/mwhitfield/vigil/internal/services"
)

// PurgeRunner is the retention operation the manager drives
type PurgeRunner interface {
	RunPurge(ctx context.Context) (*services.PurgeResult, error)
}

// RetentionManager periodically trims the append-only stores down to
// their retention windows
type RetentionManager struct {
	retention PurgeRunner
	logger    *slog.Logger
	interval  time.Duration
	stopCh    chan struct{}
}

// NewRetentionManager creates a new retention manager
func NewRetentionManager(
	retention PurgeRunner,
	logger *slog.Logger,
	interval time.Duration,
) *RetentionManager {
	return &RetentionManager{
		retention: retention,
		logger:    logger,
		interval:  interval,
		stopCh:    make(chan struct{}),
	}
}

// Start begins the periodic purge task. A non-positive interval
// disables the scheduler; the HTTP trigger still works.
func (rm *RetentionManager) Start(ctx context.Context) {
	if rm.interval <= 0 {
		rm.logger.Info("retention scheduler disabled")
		return
	}

	ticker := time.NewTicker(rm.interval)
	defer ticker.Stop()

	// Run immediately on startup
	rm.runPurge(ctx)

	for {
		select {
		case <-ticker.C:
			rm.runPurge(ctx)
		case <-rm.stopCh:
			rm.logger.Info("retention manager stopped")
			return
		case <-ctx.Done():
			rm.logger.Info("retention manager context cancelled")
			return
		}
	}
}

// runPurge executes one retention pass
func (rm *RetentionManager) runPurge(ctx context.Context) {
	rm.logger.Info("starting retention purge")

	purgeCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	result, err := rm.retention.RunPurge(purgeCtx)
	if err != nil {
		rm.logger.Error("retention purge failed", slog.Any("error", err))
		return
	}

	if result.AttemptsRemoved > 0 || result.AuditLogsRemoved > 0 {
		rm.logger.Info("retention purge completed",
			slog.Int64("attempts_removed", result.AttemptsRemoved),
			slog.Int64("audit_logs_removed", result.AuditLogsRemoved),
		)
	}
}

// Stop signals the retention manager to stop
func (rm *RetentionManager) Stop() {
	close(rm.stopCh)
}
