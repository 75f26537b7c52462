package core

import (
	"testing"
	"time"
)

func TestResolveCredentialState(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	leadWindow := 10 * 24 * time.Hour

	cases := []struct {
		name       string
		expiresAt  time.Time
		leadWindow time.Duration
		expired    bool
		inWindow   bool
		renew      bool
	}{
		{
			name:       "fresh_no_lead_window",
			expiresAt:  now.Add(30 * time.Minute),
			leadWindow: 0,
			expired:    false,
			inWindow:   false,
			renew:      false,
		},
		{
			name:       "expired_exactly_now",
			expiresAt:  now,
			leadWindow: 0,
			expired:    true,
			inWindow:   false,
			renew:      true,
		},
		{
			name:       "expired_in_past",
			expiresAt:  now.Add(-time.Hour),
			leadWindow: 0,
			expired:    true,
			inWindow:   false,
			renew:      true,
		},
		{
			name:       "outside_lead_window",
			expiresAt:  now.Add(leadWindow + time.Hour),
			leadWindow: leadWindow,
			expired:    false,
			inWindow:   false,
			renew:      false,
		},
		{
			name:       "inside_lead_window",
			expiresAt:  now.Add(leadWindow - time.Hour),
			leadWindow: leadWindow,
			expired:    false,
			inWindow:   true,
			renew:      true,
		},
		{
			name:       "at_lead_window_boundary",
			expiresAt:  now.Add(leadWindow),
			leadWindow: leadWindow,
			expired:    false,
			inWindow:   true,
			renew:      true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cred := Credential{
				UserID:            7,
				Platform:          PlatformFacebook,
				ExternalAccountID: "fb-1",
				AccessToken:       "access",
				ExpiresAt:         tc.expiresAt,
			}
			state := ResolveCredentialState(now, cred, tc.leadWindow)
			if state.IsExpired != tc.expired {
				t.Fatalf("expected expired=%t, got %t", tc.expired, state.IsExpired)
			}
			if state.InLeadWindow != tc.inWindow {
				t.Fatalf("expected in_lead_window=%t, got %t", tc.inWindow, state.InLeadWindow)
			}
			if got := ShouldRenewCredential(state); got != tc.renew {
				t.Fatalf("expected renew=%t, got %t", tc.renew, got)
			}
		})
	}
}

func TestResolveCredentialStateTracksRefreshToken(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	withRefresh := Credential{AccessToken: "a", RefreshToken: "r", ExpiresAt: now.Add(time.Hour)}
	if state := ResolveCredentialState(now, withRefresh, 0); !state.HasRefreshToken {
		t.Fatal("expected has_refresh_token=true")
	}

	withoutRefresh := Credential{AccessToken: "a", ExpiresAt: now.Add(time.Hour)}
	if state := ResolveCredentialState(now, withoutRefresh, 0); state.HasRefreshToken {
		t.Fatal("expected has_refresh_token=false")
	}
}
