package youtube

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/socivio/connections/core"
)

func buildIDToken(t *testing.T, claims map[string]any) string {
	t.Helper()
	encode := func(value map[string]any) string {
		raw, err := json.Marshal(value)
		if err != nil {
			t.Fatalf("marshal segment: %v", err)
		}
		return base64.RawURLEncoding.EncodeToString(raw)
	}
	header := encode(map[string]any{"alg": "RS256", "typ": "JWT"})
	payload := encode(claims)
	return header + "." + payload + ".signature"
}

func newTestProvider(t *testing.T, server *httptest.Server, now time.Time) *Provider {
	t.Helper()
	provider, err := New(Config{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		RedirectURI:  "https://app.example/callback",
		TokenURL:     server.URL,
		Now:          func() time.Time { return now },
	})
	if err != nil {
		t.Fatalf("build provider: %v", err)
	}
	return provider
}

func TestExchangeCodeResolvesSubjectFromIDToken(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	var gotForm url.Values

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		gotForm = r.PostForm
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "T1",
			"refresh_token": "R1",
			"expires_in":    3600,
			"id_token":      buildIDTokenHelper(t, "google-sub-42"),
		})
	}))
	defer server.Close()

	provider := newTestProvider(t, server, now)
	grant, err := provider.ExchangeCode(context.Background(), "abc")
	if err != nil {
		t.Fatalf("exchange code: %v", err)
	}

	if gotForm.Get("grant_type") != "authorization_code" {
		t.Fatalf("expected authorization_code grant, got %q", gotForm.Get("grant_type"))
	}
	if gotForm.Get("code") != "abc" {
		t.Fatalf("expected code abc, got %q", gotForm.Get("code"))
	}
	if gotForm.Get("client_id") != "client-id" || gotForm.Get("client_secret") != "client-secret" {
		t.Fatal("expected client credentials in form")
	}
	if gotForm.Get("redirect_uri") != "https://app.example/callback" {
		t.Fatalf("expected redirect uri, got %q", gotForm.Get("redirect_uri"))
	}

	if grant.AccessToken != "T1" || grant.RefreshToken != "R1" {
		t.Fatalf("unexpected grant tokens: %+v", grant)
	}
	if grant.ExternalAccountID != "google-sub-42" {
		t.Fatalf("expected sub claim as account id, got %q", grant.ExternalAccountID)
	}
	if !grant.ExpiresAt.Equal(now.Add(time.Hour)) {
		t.Fatalf("expected expiry now+1h, got %v", grant.ExpiresAt)
	}
}

func TestExchangeCodeMissingIDTokenIsGrantError(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "T1",
			"expires_in":   3600,
		})
	}))
	defer server.Close()

	provider := newTestProvider(t, server, now)
	_, err := provider.ExchangeCode(context.Background(), "abc")
	if err == nil {
		t.Fatal("expected grant error for missing id_token")
	}
	assertTextCode(t, err, core.TokensErrorUpstreamGrant)
}

func TestExchangeCodeUpstreamRejectionIsGrantError(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error":             "invalid_grant",
			"error_description": "Code was already redeemed.",
		})
	}))
	defer server.Close()

	provider := newTestProvider(t, server, now)
	_, err := provider.ExchangeCode(context.Background(), "abc")
	if err == nil {
		t.Fatal("expected grant error")
	}
	assertTextCode(t, err, core.TokensErrorUpstreamGrant)
	if !strings.Contains(err.Error(), "Code was already redeemed") {
		t.Fatalf("expected upstream description in error, got %v", err)
	}
}

func TestExchangeCodeNetworkFailureIsUnavailable(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	server.Close()

	provider := newTestProvider(t, server, now)
	_, err := provider.ExchangeCode(context.Background(), "abc")
	if err == nil {
		t.Fatal("expected unavailable error")
	}
	assertTextCode(t, err, core.TokensErrorUpstreamUnavailable)
}

func TestRenewKeepsStoredRefreshTokenWhenOmitted(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	var gotForm url.Values

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		gotForm = r.PostForm
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "T2",
			"expires_in":   3600,
		})
	}))
	defer server.Close()

	provider := newTestProvider(t, server, now)
	grant, err := provider.Renew(context.Background(), core.Credential{
		UserID:            7,
		Platform:          core.PlatformYouTube,
		ExternalAccountID: "google-sub-42",
		AccessToken:       "T1",
		RefreshToken:      "R1",
		ExpiresAt:         now.Add(-time.Minute),
	})
	if err != nil {
		t.Fatalf("renew: %v", err)
	}

	if gotForm.Get("grant_type") != "refresh_token" || gotForm.Get("refresh_token") != "R1" {
		t.Fatalf("unexpected renewal form: %v", gotForm)
	}
	if grant.AccessToken != "T2" {
		t.Fatalf("expected T2, got %q", grant.AccessToken)
	}
	if grant.RefreshToken != "R1" {
		t.Fatalf("omitted refresh token must keep R1, got %q", grant.RefreshToken)
	}
	if grant.ExternalAccountID != "google-sub-42" {
		t.Fatalf("renewal must keep the account identity, got %q", grant.ExternalAccountID)
	}
}

func TestRenewRotatesRefreshTokenWhenProvided(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "T2",
			"refresh_token": "R2",
			"expires_in":    3600,
		})
	}))
	defer server.Close()

	provider := newTestProvider(t, server, now)
	grant, err := provider.Renew(context.Background(), core.Credential{
		RefreshToken:      "R1",
		ExternalAccountID: "google-sub-42",
	})
	if err != nil {
		t.Fatalf("renew: %v", err)
	}
	if grant.RefreshToken != "R2" {
		t.Fatalf("expected rotated refresh token R2, got %q", grant.RefreshToken)
	}
}

func TestRenewDefaultsExpiryWhenOmitted(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "T2",
		})
	}))
	defer server.Close()

	provider := newTestProvider(t, server, now)
	grant, err := provider.Renew(context.Background(), core.Credential{
		RefreshToken:      "R1",
		ExternalAccountID: "google-sub-42",
	})
	if err != nil {
		t.Fatalf("renew: %v", err)
	}
	if !grant.ExpiresAt.Equal(now.Add(time.Hour)) {
		t.Fatalf("expected default 1h expiry, got %v", grant.ExpiresAt)
	}
}

func TestRenewWithoutRefreshTokenFails(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("must not reach the token endpoint")
	}))
	defer server.Close()

	provider := newTestProvider(t, server, now)
	_, err := provider.Renew(context.Background(), core.Credential{AccessToken: "T1"})
	if err == nil {
		t.Fatal("expected error for missing refresh token")
	}
	assertTextCode(t, err, core.TokensErrorUpstreamGrant)
}

func TestBeginAuthBuildsConsentURL(t *testing.T) {
	provider, err := New(Config{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		RedirectURI:  "https://app.example/callback",
	})
	if err != nil {
		t.Fatalf("build provider: %v", err)
	}

	response, err := provider.BeginAuth(context.Background(), core.BeginAuthRequest{
		UserID:   7,
		Platform: core.PlatformYouTube,
		State:    "state-1",
	})
	if err != nil {
		t.Fatalf("begin auth: %v", err)
	}

	parsed, err := url.Parse(response.URL)
	if err != nil {
		t.Fatalf("parse url: %v", err)
	}
	query := parsed.Query()
	if query.Get("access_type") != "offline" || query.Get("prompt") != "consent" {
		t.Fatalf("expected offline consent parameters, got %v", query)
	}
	if query.Get("state") != "state-1" {
		t.Fatalf("expected state passthrough, got %q", query.Get("state"))
	}
	if !strings.HasPrefix(response.URL, GoogleOAuthAuthURL) {
		t.Fatalf("expected Google auth endpoint, got %q", response.URL)
	}
}

func TestSubjectFromIDToken(t *testing.T) {
	cases := []struct {
		name    string
		idToken string
		subject string
		wantErr bool
	}{
		{name: "empty", idToken: "", wantErr: true},
		{name: "two_segments", idToken: "a.b", wantErr: true},
		{name: "bad_base64", idToken: "h.!!!.s", wantErr: true},
		{name: "missing_sub", idToken: "h." + base64.RawURLEncoding.EncodeToString([]byte(`{}`)) + ".s", wantErr: true},
		{
			name:    "padded_segment",
			idToken: "h." + base64.RawURLEncoding.EncodeToString([]byte(`{"sub":"s-1"}`)) + "==.s",
			subject: "s-1",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			subject, err := subjectFromIDToken(tc.idToken)
			if tc.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if subject != tc.subject {
				t.Fatalf("expected subject %q, got %q", tc.subject, subject)
			}
		})
	}
}

func buildIDTokenHelper(t *testing.T, subject string) string {
	return buildIDToken(t, map[string]any{
		"iss": "https://accounts.google.com",
		"sub": subject,
		"aud": "client-id",
	})
}

func assertTextCode(t *testing.T, err error, textCode string) {
	t.Helper()
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		t.Fatalf("expected rich error, got %T: %v", err, err)
	}
	if richErr.TextCode != textCode {
		t.Fatalf("expected text code %s, got %s", textCode, richErr.TextCode)
	}
}
