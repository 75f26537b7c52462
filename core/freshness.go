package core

import (
	"time"
)

// CredentialState captures the lazy-refresh decision derived from a
// stored credential at read time.
type CredentialState struct {
	ExpiresAt       time.Time
	HasRefreshToken bool
	IsExpired       bool
	InLeadWindow    bool
}

// ResolveCredentialState evaluates expiry flags for a credential
// against the platform's refresh lead window.
func ResolveCredentialState(now time.Time, cred Credential, leadWindow time.Duration) CredentialState {
	if now.IsZero() {
		now = time.Now().UTC()
	} else {
		now = now.UTC()
	}

	state := CredentialState{
		ExpiresAt:       cred.ExpiresAt.UTC(),
		HasRefreshToken: cred.RefreshToken != "",
	}
	if !state.ExpiresAt.After(now) {
		state.IsExpired = true
		return state
	}
	if leadWindow > 0 {
		state.InLeadWindow = !state.ExpiresAt.After(now.Add(leadWindow))
	}
	return state
}

// ShouldRenewCredential reports whether renewal must run before the
// credential is handed back. With a zero lead window the trigger is
// hard expiry; with a positive window it also fires inside the
// proactive-renewal grace period.
func ShouldRenewCredential(state CredentialState) bool {
	return state.IsExpired || state.InLeadWindow
}
