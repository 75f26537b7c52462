// Package youtube connects Google accounts through the OAuth code
// flow and keeps their tokens renewable via the refresh_token grant.
package youtube

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/socivio/connections/core"
	"github.com/socivio/connections/providers"
)

const (
	GoogleOAuthAuthURL  = "https://accounts.google.com/o/oauth2/v2/auth"
	GoogleOAuthTokenURL = "https://oauth2.googleapis.com/token"
)

const (
	ScopeOpenID          = "openid"
	ScopeYouTubeReadonly = "https://www.googleapis.com/auth/youtube.readonly"
)

// Google access tokens last an hour; the payload carries expires_in
// but we fall back to the documented default when it is absent.
const defaultAccessTokenTTL = time.Hour

type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	AuthURL      string
	TokenURL     string
	Scopes       []string
	Timeout      time.Duration
	Now          func() time.Time
	HTTPClient   providers.HTTPDoer
}

type Provider struct {
	cfg         Config
	tokenClient *providers.TokenClient
}

func New(cfg Config) (*Provider, error) {
	if strings.TrimSpace(cfg.AuthURL) == "" {
		cfg.AuthURL = GoogleOAuthAuthURL
	}
	if strings.TrimSpace(cfg.TokenURL) == "" {
		cfg.TokenURL = GoogleOAuthTokenURL
	}
	if len(cfg.Scopes) == 0 {
		cfg.Scopes = []string{ScopeOpenID, ScopeYouTubeReadonly}
	}
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return time.Now().UTC() }
	}

	tokenClient, err := providers.NewTokenClient(providers.TokenClientConfig{
		TokenURL:     cfg.TokenURL,
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Timeout:      cfg.Timeout,
		HTTPClient:   cfg.HTTPClient,
	})
	if err != nil {
		return nil, err
	}

	return &Provider{
		cfg:         cfg,
		tokenClient: tokenClient,
	}, nil
}

func (*Provider) Platform() core.Platform {
	return core.PlatformYouTube
}

// RefreshLeadWindow is zero: a Google token is served as-is until its
// expiry timestamp passes, then renewed on the next read.
func (*Provider) RefreshLeadWindow() time.Duration {
	return 0
}

func (p *Provider) BeginAuth(_ context.Context, req core.BeginAuthRequest) (core.BeginAuthResponse, error) {
	if p == nil {
		return core.BeginAuthResponse{}, fmt.Errorf("youtube: provider is nil")
	}
	state := strings.TrimSpace(req.State)
	if state == "" {
		return core.BeginAuthResponse{}, fmt.Errorf("youtube: oauth state is required")
	}
	scopes := req.RequestedScopes
	if len(scopes) == 0 {
		scopes = append([]string(nil), p.cfg.Scopes...)
	}

	values := url.Values{}
	values.Set("response_type", "code")
	values.Set("client_id", p.tokenClient.ClientID())
	values.Set("redirect_uri", strings.TrimSpace(p.cfg.RedirectURI))
	values.Set("scope", strings.Join(scopes, " "))
	values.Set("state", state)
	// offline access is what makes Google return a refresh token.
	values.Set("access_type", "offline")
	values.Set("prompt", "consent")

	return core.BeginAuthResponse{
		URL:             p.cfg.AuthURL + "?" + values.Encode(),
		State:           state,
		RequestedScopes: scopes,
		Metadata: map[string]any{
			"platform": string(core.PlatformYouTube),
		},
	}, nil
}

// ExchangeCode swaps a one-time authorization code for tokens. The
// Google account id comes from the id_token claims, not from a second
// profile call.
func (p *Provider) ExchangeCode(ctx context.Context, code string) (core.Grant, error) {
	if p == nil {
		return core.Grant{}, fmt.Errorf("youtube: provider is nil")
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return core.Grant{}, fmt.Errorf("youtube: authorization code is required")
	}

	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	if redirectURI := strings.TrimSpace(p.cfg.RedirectURI); redirectURI != "" {
		form.Set("redirect_uri", redirectURI)
	}

	payload, err := p.tokenClient.Exchange(ctx, form)
	if err != nil {
		return core.Grant{}, err
	}

	subject, err := subjectFromIDToken(payload.IDToken)
	if err != nil {
		return core.Grant{}, core.UpstreamGrantError("token response identity: " + err.Error())
	}

	now := p.cfg.Now().UTC()
	return core.Grant{
		AccessToken:       payload.AccessToken,
		RefreshToken:      payload.RefreshToken,
		ExpiresAt:         providers.ResolveExpiresAt(now, payload.ExpiresIn, defaultAccessTokenTTL),
		ExternalAccountID: subject,
	}, nil
}

// Renew runs the refresh_token grant. Google only rotates the refresh
// token occasionally, so a response that omits one keeps the stored
// refresh token alive for the next cycle.
func (p *Provider) Renew(ctx context.Context, cred core.Credential) (core.Grant, error) {
	if p == nil {
		return core.Grant{}, fmt.Errorf("youtube: provider is nil")
	}
	refreshToken := strings.TrimSpace(cred.RefreshToken)
	if refreshToken == "" {
		return core.Grant{}, core.UpstreamGrantError("stored credential has no refresh token")
	}

	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)

	payload, err := p.tokenClient.Exchange(ctx, form)
	if err != nil {
		return core.Grant{}, err
	}

	nextRefresh := strings.TrimSpace(payload.RefreshToken)
	if nextRefresh == "" {
		nextRefresh = refreshToken
	}

	now := p.cfg.Now().UTC()
	return core.Grant{
		AccessToken:       payload.AccessToken,
		RefreshToken:      nextRefresh,
		ExpiresAt:         providers.ResolveExpiresAt(now, payload.ExpiresIn, defaultAccessTokenTTL),
		ExternalAccountID: cred.ExternalAccountID,
	}, nil
}

// subjectFromIDToken reads the "sub" claim out of the id_token's claims
// segment. The signature is not verified: the token arrived over TLS
// straight from the token endpoint, so this is a decode, not a trust
// decision.
func subjectFromIDToken(idToken string) (string, error) {
	idToken = strings.TrimSpace(idToken)
	if idToken == "" {
		return "", fmt.Errorf("missing id_token")
	}
	segments := strings.Split(idToken, ".")
	if len(segments) != 3 {
		return "", fmt.Errorf("malformed id_token: expected 3 segments, got %d", len(segments))
	}

	claimsSegment := strings.TrimRight(segments[1], "=")
	decoded, err := base64.RawURLEncoding.DecodeString(claimsSegment)
	if err != nil {
		return "", fmt.Errorf("decode id_token claims: %w", err)
	}

	var claims struct {
		Subject string `json:"sub"`
	}
	if err := json.Unmarshal(decoded, &claims); err != nil {
		return "", fmt.Errorf("parse id_token claims: %w", err)
	}
	subject := strings.TrimSpace(claims.Subject)
	if subject == "" {
		return "", fmt.Errorf("id_token claims missing sub")
	}
	return subject, nil
}

var _ core.Provider = (*Provider)(nil)
