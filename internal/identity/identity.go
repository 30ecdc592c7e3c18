// Package identity wraps the hosted identity provider that performs
// actual credential verification. The security core only decorates the
// provider's verdict with tracking, lockout, and anomaly logic.
package identity

import "context"

// Verdict is the provider's answer for one credential check. Verified
// false is an ordinary wrong-password outcome, not an error; transport
// and provider outages surface as errors instead so they are never
// counted against the account.
type Verdict struct {
	Verified  bool
	AccountID string
	Reason    string
}

// CredentialVerifier checks a credential pair against the provider.
type CredentialVerifier interface {
	VerifyCredentials(ctx context.Context, email, password string) (*Verdict, error)
}
