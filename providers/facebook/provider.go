// Package facebook connects Facebook accounts through the OAuth code
// flow. Facebook has no refresh token; longevity comes from upgrading
// short-lived tokens with the fb_exchange_token grant and re-running
// that upgrade before the long-lived token lapses.
package facebook

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/socivio/connections/core"
	"github.com/socivio/connections/providers"
)

const (
	MetaOAuthAuthURL  = "https://www.facebook.com/v23.0/dialog/oauth"
	MetaOAuthTokenURL = "https://graph.facebook.com/v23.0/oauth/access_token"
	MetaGraphBaseURL  = "https://graph.facebook.com/v23.0"
)

const (
	ScopePagesShowList       = "pages_show_list"
	ScopePagesReadEngagement = "pages_read_engagement"
)

// Long-lived user tokens last about 60 days. Renewal starts inside the
// lead window so a token still has headroom when it is handed out.
const (
	defaultLongLivedTokenTTL = 60 * 24 * time.Hour
	renewLeadWindow          = 10 * 24 * time.Hour
)

const maxIdentityResponseBodyBytes = 1 << 20

type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	AuthURL      string
	TokenURL     string
	GraphBaseURL string
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
		cfg.AuthURL = MetaOAuthAuthURL
	}
	if strings.TrimSpace(cfg.TokenURL) == "" {
		cfg.TokenURL = MetaOAuthTokenURL
	}
	if strings.TrimSpace(cfg.GraphBaseURL) == "" {
		cfg.GraphBaseURL = MetaGraphBaseURL
	}
	cfg.GraphBaseURL = strings.TrimRight(strings.TrimSpace(cfg.GraphBaseURL), "/")
	if len(cfg.Scopes) == 0 {
		cfg.Scopes = []string{ScopePagesShowList, ScopePagesReadEngagement}
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
	return core.PlatformFacebook
}

func (*Provider) RefreshLeadWindow() time.Duration {
	return renewLeadWindow
}

func (p *Provider) BeginAuth(_ context.Context, req core.BeginAuthRequest) (core.BeginAuthResponse, error) {
	if p == nil {
		return core.BeginAuthResponse{}, fmt.Errorf("facebook: provider is nil")
	}
	state := strings.TrimSpace(req.State)
	if state == "" {
		return core.BeginAuthResponse{}, fmt.Errorf("facebook: oauth state is required")
	}
	scopes := req.RequestedScopes
	if len(scopes) == 0 {
		scopes = append([]string(nil), p.cfg.Scopes...)
	}

	values := url.Values{}
	values.Set("response_type", "code")
	values.Set("client_id", p.tokenClient.ClientID())
	values.Set("redirect_uri", strings.TrimSpace(p.cfg.RedirectURI))
	values.Set("scope", strings.Join(scopes, ","))
	values.Set("state", state)

	return core.BeginAuthResponse{
		URL:             p.cfg.AuthURL + "?" + values.Encode(),
		State:           state,
		RequestedScopes: scopes,
		Metadata: map[string]any{
			"platform": string(core.PlatformFacebook),
		},
	}, nil
}

// ExchangeCode swaps the authorization code for a short-lived token,
// immediately upgrades it to a long-lived one, then resolves which
// Facebook account it authenticates as.
func (p *Provider) ExchangeCode(ctx context.Context, code string) (core.Grant, error) {
	if p == nil {
		return core.Grant{}, fmt.Errorf("facebook: provider is nil")
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return core.Grant{}, fmt.Errorf("facebook: authorization code is required")
	}

	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	if redirectURI := strings.TrimSpace(p.cfg.RedirectURI); redirectURI != "" {
		form.Set("redirect_uri", redirectURI)
	}

	shortLived, err := p.tokenClient.Exchange(ctx, form)
	if err != nil {
		return core.Grant{}, err
	}

	return p.upgradeToken(ctx, shortLived.AccessToken)
}

// Renew re-runs the fb_exchange_token upgrade against the stored
// long-lived token. Facebook refuses tokens that already expired, which
// is exactly why renewal fires inside the lead window rather than after
// expiry.
func (p *Provider) Renew(ctx context.Context, cred core.Credential) (core.Grant, error) {
	if p == nil {
		return core.Grant{}, fmt.Errorf("facebook: provider is nil")
	}
	accessToken := strings.TrimSpace(cred.AccessToken)
	if accessToken == "" {
		return core.Grant{}, core.UpstreamGrantError("stored credential has no access token")
	}
	return p.upgradeToken(ctx, accessToken)
}

func (p *Provider) upgradeToken(ctx context.Context, accessToken string) (core.Grant, error) {
	form := url.Values{}
	form.Set("grant_type", "fb_exchange_token")
	form.Set("fb_exchange_token", strings.TrimSpace(accessToken))

	payload, err := p.tokenClient.Exchange(ctx, form)
	if err != nil {
		return core.Grant{}, err
	}

	identity, err := p.resolveIdentity(ctx, payload.AccessToken)
	if err != nil {
		return core.Grant{}, err
	}

	now := p.cfg.Now().UTC()
	return core.Grant{
		AccessToken:       payload.AccessToken,
		ExpiresAt:         providers.ResolveExpiresAt(now, payload.ExpiresIn, defaultLongLivedTokenTTL),
		ExternalAccountID: identity,
	}, nil
}

// resolveIdentity calls /me with the fresh token. The returned id is
// the external account identity the credential is stored under, so a
// token that cannot answer /me is treated as a rejected grant.
func (p *Provider) resolveIdentity(ctx context.Context, accessToken string) (string, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	requestCtx, cancel := context.WithTimeout(ctx, p.tokenClient.Timeout())
	defer cancel()

	endpoint := p.cfg.GraphBaseURL + "/me?fields=id"
	httpReq, err := http.NewRequestWithContext(requestCtx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Authorization", "Bearer "+strings.TrimSpace(accessToken))
	httpReq.Header.Set("Accept", "application/json")

	response, err := p.tokenClient.HTTPClient().Do(httpReq)
	if err != nil {
		return "", core.UpstreamUnavailableError(err, "identity request failed")
	}
	defer response.Body.Close()

	body, readErr := io.ReadAll(io.LimitReader(response.Body, maxIdentityResponseBodyBytes+1))
	if readErr != nil {
		return "", core.UpstreamUnavailableError(readErr, "read identity response")
	}
	if int64(len(body)) > maxIdentityResponseBodyBytes {
		return "", core.UpstreamGrantError(fmt.Sprintf(
			"identity response exceeds %d bytes", maxIdentityResponseBodyBytes,
		))
	}
	if response.StatusCode < http.StatusOK || response.StatusCode >= http.StatusMultipleChoices {
		return "", core.UpstreamGrantError(fmt.Sprintf(
			"identity endpoint error (%d): %s",
			response.StatusCode,
			strings.TrimSpace(string(body)),
		))
	}

	var decoded struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body, &decoded); err != nil {
		return "", core.UpstreamGrantError("decode identity response: " + err.Error())
	}
	id := strings.TrimSpace(decoded.ID)
	if id == "" {
		return "", core.UpstreamGrantError("identity response missing account id")
	}
	return id, nil
}

var _ core.Provider = (*Provider)(nil)
