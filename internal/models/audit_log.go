package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Audited actions. Every security-relevant mutation writes exactly one
// entry naming one of these.
const (
	AuditActionLoginSuccess    = "login_success"
	AuditActionLoginFailed     = "login_failed"
	AuditActionAccountLocked   = "account_locked"
	AuditActionAccountUnlocked = "account_unlocked"
	AuditActionSuspiciousLogin = "suspicious_login"
	AuditActionQuotaDenied     = "quota_denied"
	AuditActionQuotaCountSet   = "quota_count_set"
	AuditActionQuotaCountReset = "quota_count_reset"
	AuditActionSessionRevoked  = "session_revoked"
	AuditActionSessionsRevoked = "sessions_bulk_revoked"
	AuditActionRetentionPurge  = "retention_purge"
)

// AuditLog is an append-only record of a security-relevant event.
// ActorID is nil for system-initiated actions.
type AuditLog struct {
	ID        uuid.UUID     `db:"id"`
	ActorID   *string       `db:"actor_id"`
	Action    string        `db:"action"`
	Detail    AuditMetadata `db:"detail"`
	IPAddress *string       `db:"ip_address"`
	CreatedAt time.Time     `db:"created_at"`
}

// AuditMetadata holds additional context for audit events
type AuditMetadata map[string]interface{}

// Scan implements sql.Scanner for JSONB
func (am *AuditMetadata) Scan(value interface{}) error {
	if value == nil {
		*am = make(AuditMetadata)
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		return ErrBadRequest
	}

	var m map[string]interface{}
	if err := json.Unmarshal(bytes, &m); err != nil {
		return err
	}
	*am = AuditMetadata(m)
	return nil
}

// Value implements driver.Valuer for JSONB
func (am AuditMetadata) Value() (driver.Value, error) {
	if am == nil {
		return nil, nil
	}
	return json.Marshal(am)
}

// MarshalJSON implements json.Marshaler
func (am AuditMetadata) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]interface{}(am))
}

// UnmarshalJSON implements json.Unmarshaler
func (am *AuditMetadata) UnmarshalJSON(data []byte) error {
	var m map[string]interface{}
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	*am = AuditMetadata(m)
	return nil
}
