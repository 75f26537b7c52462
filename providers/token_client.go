package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/socivio/connections/core"
)

const (
	defaultTokenRequestTimeout = 30 * time.Second
	maxTokenResponseBodyBytes  = 1 << 20 // 1 MiB
)

type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// TokenClient posts form-encoded grant exchanges to one OAuth token
// endpoint and decodes the JSON or form-encoded response.
type TokenClient struct {
	tokenURL     string
	clientID     string
	clientSecret string
	timeout      time.Duration
	httpClient   HTTPDoer
}

type TokenClientConfig struct {
	TokenURL     string
	ClientID     string
	ClientSecret string
	Timeout      time.Duration
	HTTPClient   HTTPDoer
}

type TokenPayload struct {
	AccessToken      string
	TokenType        string
	RefreshToken     string
	Scope            string
	IDToken          string
	ExpiresIn        int64
	ErrorCode        string
	ErrorDescription string
}

func NewTokenClient(cfg TokenClientConfig) (*TokenClient, error) {
	tokenURL := strings.TrimSpace(cfg.TokenURL)
	if tokenURL == "" {
		return nil, fmt.Errorf("providers: token url is required")
	}
	clientID := strings.TrimSpace(cfg.ClientID)
	if clientID == "" {
		return nil, fmt.Errorf("providers: client id is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTokenRequestTimeout
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}

	return &TokenClient{
		tokenURL:     tokenURL,
		clientID:     clientID,
		clientSecret: strings.TrimSpace(cfg.ClientSecret),
		timeout:      timeout,
		httpClient:   httpClient,
	}, nil
}

// Exchange posts the form to the token endpoint with the client
// credentials merged in. A transport failure maps to an upstream
// availability error; a 4xx/5xx or an error payload maps to a grant
// error that is not retried.
func (c *TokenClient) Exchange(ctx context.Context, form url.Values) (TokenPayload, error) {
	if c == nil || c.httpClient == nil {
		return TokenPayload{}, fmt.Errorf("providers: token client is not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	values := url.Values{}
	for key, items := range form {
		if strings.TrimSpace(key) == "" {
			continue
		}
		for _, item := range items {
			values.Add(key, strings.TrimSpace(item))
		}
	}
	values.Set("client_id", c.clientID)
	if c.clientSecret != "" {
		values.Set("client_secret", c.clientSecret)
	}

	requestCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(
		requestCtx,
		http.MethodPost,
		c.tokenURL,
		strings.NewReader(values.Encode()),
	)
	if err != nil {
		return TokenPayload{}, err
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	httpReq.Header.Set("Accept", "application/json")

	response, err := c.httpClient.Do(httpReq)
	if err != nil {
		return TokenPayload{}, core.UpstreamUnavailableError(err, "token endpoint request failed")
	}
	defer response.Body.Close()

	body, readErr := io.ReadAll(io.LimitReader(response.Body, maxTokenResponseBodyBytes+1))
	if readErr != nil {
		return TokenPayload{}, core.UpstreamUnavailableError(readErr, "read token endpoint response")
	}
	if int64(len(body)) > maxTokenResponseBodyBytes {
		return TokenPayload{}, core.UpstreamGrantError(
			fmt.Sprintf("token endpoint response exceeds %d bytes", maxTokenResponseBodyBytes),
		)
	}

	payload, parseErr := parseTokenPayload(body, response.Header.Get("Content-Type"))
	if parseErr != nil {
		return TokenPayload{}, core.UpstreamGrantError("decode token endpoint response: " + parseErr.Error())
	}
	if response.StatusCode < http.StatusOK || response.StatusCode >= http.StatusMultipleChoices {
		return TokenPayload{}, core.UpstreamGrantError(fmt.Sprintf(
			"token endpoint error (%d): %s",
			response.StatusCode,
			describeTokenError(payload),
		))
	}
	if payload.ErrorCode != "" {
		return TokenPayload{}, core.UpstreamGrantError("token endpoint error: " + describeTokenError(payload))
	}
	if strings.TrimSpace(payload.AccessToken) == "" {
		return TokenPayload{}, core.UpstreamGrantError("token endpoint response missing access token")
	}
	return payload, nil
}

func (c *TokenClient) ClientID() string {
	if c == nil {
		return ""
	}
	return c.clientID
}

func (c *TokenClient) ClientSecret() string {
	if c == nil {
		return ""
	}
	return c.clientSecret
}

func (c *TokenClient) HTTPClient() HTTPDoer {
	if c == nil {
		return nil
	}
	return c.httpClient
}

func (c *TokenClient) Timeout() time.Duration {
	if c == nil {
		return 0
	}
	return c.timeout
}

func describeTokenError(payload TokenPayload) string {
	if strings.TrimSpace(payload.ErrorDescription) != "" {
		return strings.TrimSpace(payload.ErrorDescription)
	}
	if strings.TrimSpace(payload.ErrorCode) != "" {
		return strings.TrimSpace(payload.ErrorCode)
	}
	return "unknown error"
}

func parseTokenPayload(body []byte, contentType string) (TokenPayload, error) {
	contentType = strings.ToLower(strings.TrimSpace(contentType))
	if strings.Contains(contentType, "json") {
		return parseTokenPayloadJSON(body)
	}
	if strings.Contains(contentType, "x-www-form-urlencoded") || strings.Contains(contentType, "text/plain") {
		return parseTokenPayloadForm(body)
	}
	if payload, err := parseTokenPayloadJSON(body); err == nil {
		return payload, nil
	}
	return parseTokenPayloadForm(body)
}

func parseTokenPayloadJSON(body []byte) (TokenPayload, error) {
	if len(strings.TrimSpace(string(body))) == 0 {
		return TokenPayload{}, fmt.Errorf("empty payload")
	}
	var decoded map[string]any
	if err := json.Unmarshal(body, &decoded); err != nil {
		return TokenPayload{}, err
	}
	return TokenPayload{
		AccessToken:      readAnyString(decoded["access_token"]),
		TokenType:        readAnyString(decoded["token_type"]),
		RefreshToken:     readAnyString(decoded["refresh_token"]),
		Scope:            readAnyString(decoded["scope"]),
		IDToken:          readAnyString(decoded["id_token"]),
		ExpiresIn:        readAnyInt64(decoded["expires_in"]),
		ErrorCode:        readAnyString(decoded["error"]),
		ErrorDescription: readAnyString(decoded["error_description"]),
	}, nil
}

func parseTokenPayloadForm(body []byte) (TokenPayload, error) {
	if len(strings.TrimSpace(string(body))) == 0 {
		return TokenPayload{}, fmt.Errorf("empty payload")
	}
	values, err := url.ParseQuery(string(body))
	if err != nil {
		return TokenPayload{}, err
	}
	expiresIn, _ := strconv.ParseInt(strings.TrimSpace(values.Get("expires_in")), 10, 64)
	return TokenPayload{
		AccessToken:      strings.TrimSpace(values.Get("access_token")),
		TokenType:        strings.TrimSpace(values.Get("token_type")),
		RefreshToken:     strings.TrimSpace(values.Get("refresh_token")),
		Scope:            strings.TrimSpace(values.Get("scope")),
		IDToken:          strings.TrimSpace(values.Get("id_token")),
		ExpiresIn:        expiresIn,
		ErrorCode:        strings.TrimSpace(values.Get("error")),
		ErrorDescription: strings.TrimSpace(values.Get("error_description")),
	}, nil
}

func readAnyString(value any) string {
	switch typed := value.(type) {
	case string:
		return strings.TrimSpace(typed)
	case json.Number:
		return strings.TrimSpace(typed.String())
	case fmt.Stringer:
		return strings.TrimSpace(typed.String())
	default:
		if value == nil {
			return ""
		}
		return strings.TrimSpace(fmt.Sprint(value))
	}
}

func readAnyInt64(value any) int64 {
	switch typed := value.(type) {
	case int:
		return int64(typed)
	case int64:
		return typed
	case float64:
		return int64(typed)
	case json.Number:
		parsed, err := typed.Int64()
		if err == nil {
			return parsed
		}
		floatParsed, floatErr := typed.Float64()
		if floatErr == nil {
			return int64(floatParsed)
		}
	case string:
		parsed, err := strconv.ParseInt(strings.TrimSpace(typed), 10, 64)
		if err == nil {
			return parsed
		}
	}
	return 0
}

// ResolveExpiresAt turns an expires_in delta into an absolute expiry,
// falling back to the platform default when the payload omits it.
func ResolveExpiresAt(now time.Time, expiresIn int64, fallback time.Duration) time.Time {
	ttl := fallback
	if expiresIn > 0 {
		ttl = time.Duration(expiresIn) * time.Second
	}
	return now.Add(ttl).UTC()
}
