package logger

import (
	"context"
	"log/slog"
	"time"
)

// AuditEvent is the structured form of one security audit event
type AuditEvent struct {
	Action    string
	ActorID   string
	IPAddress string
	Detail    map[string]interface{}
}

// AuditLogger emits audit events to the structured log. It is the
// always-available half of the audit trail; persistence happens
// separately and may lag or fail without losing this record.
type AuditLogger struct {
	logger *slog.Logger
}

// NewAuditLogger creates a new audit logger
func NewAuditLogger(logger *slog.Logger) *AuditLogger {
	return &AuditLogger{
		logger: logger,
	}
}

// LogEvent writes one audit event to the structured log
func (al *AuditLogger) LogEvent(event AuditEvent) {
	attrs := []slog.Attr{
		slog.String("audit_type", "security"),
		slog.String("action", event.Action),
		slog.String("timestamp", time.Now().UTC().Format(time.RFC3339)),
	}

	if event.ActorID != "" {
		attrs = append(attrs, slog.String("actor_id", event.ActorID))
	}
	if event.IPAddress != "" {
		attrs = append(attrs, slog.String("ip_address", event.IPAddress))
	}
	for key, val := range event.Detail {
		attrs = append(attrs, slog.Any(key, val))
	}

	al.logger.LogAttrs(context.Background(), slog.LevelInfo, "audit", attrs...)
}
