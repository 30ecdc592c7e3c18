package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/mwhitfield/vigil/internal/models"
)

// AlertNotifier delivers one fully-formed alert intent
type AlertNotifier interface {
	Send(ctx context.Context, intent *models.AlertIntent) error
}

// AlertDispatcher hands alert intents to the delivery mechanism.
// Delivery runs detached from the request that raised the intent: it
// neither delays the caller's response nor surfaces its failures, and
// there are no retries.
type AlertDispatcher struct {
	notifier AlertNotifier
	timeout  time.Duration
	logger   *slog.Logger
}

// NewAlertDispatcher creates a new AlertDispatcher
func NewAlertDispatcher(notifier AlertNotifier, timeout time.Duration, logger *slog.Logger) *AlertDispatcher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &AlertDispatcher{
		notifier: notifier,
		timeout:  timeout,
		logger:   logger,
	}
}

// Dispatch sends the intent in the background and returns immediately
func (d *AlertDispatcher) Dispatch(intent *models.AlertIntent) {
	if intent == nil || d.notifier == nil {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()

		if err := d.notifier.Send(ctx, intent); err != nil {
			d.logger.Error("alert delivery failed",
				slog.String("alert_type", intent.Type),
				slog.String("recipient", intent.Recipient),
				slog.Any("error", err),
			)
			return
		}

		d.logger.Info("alert dispatched",
			slog.String("alert_type", intent.Type),
			slog.String("recipient", intent.Recipient),
		)
	}()
}
