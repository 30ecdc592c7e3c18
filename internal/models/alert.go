package models

// Alert types the security core can raise.
const (
	AlertAccountLocked   = "account_locked"
	AlertSuspiciousLogin = "suspicious_login"
	AlertSessionRevoked  = "session_revoked"
	AlertQuotaOverride   = "quota_override"
)

// Recipient classes for alert routing.
const (
	AlertRecipientAccount = "account"
	AlertRecipientAdmins  = "admins"
)

// AlertIntent is a fully-formed request to notify someone. It carries
// no secrets and is never persisted; delivery happens downstream and
// its failure never surfaces to the flow that raised the intent.
type AlertIntent struct {
	Type      string
	Recipient string
	Email     string // account address when Recipient is AlertRecipientAccount
	Details   map[string]string
}
