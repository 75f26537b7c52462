package core

import (
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	TokensErrorBadInput            = "TOKENS_BAD_INPUT"
	TokensErrorPlatformUnknown     = "TOKENS_PLATFORM_UNKNOWN"
	TokensErrorNotConnected        = "TOKENS_NOT_CONNECTED"
	TokensErrorUpstreamGrant       = "TOKENS_UPSTREAM_GRANT"
	TokensErrorUpstreamUnavailable = "TOKENS_UPSTREAM_UNAVAILABLE"
	TokensErrorRefreshFailed       = "TOKENS_REFRESH_FAILED"
	TokensErrorRefreshLocked       = "TOKENS_REFRESH_LOCKED"
	TokensErrorStorage             = "TOKENS_STORAGE"
	TokensErrorInternal            = "TOKENS_INTERNAL_ERROR"
)

func tokensErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return ensureTokensErrorEnvelope(richErr)
	}

	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	switch {
	case strings.Contains(msg, "invalid platform"), strings.Contains(msg, "not registered"):
		return newTokensError(err.Error(), goerrors.CategoryNotFound, TokensErrorPlatformUnknown)
	case strings.Contains(msg, "no credentials"), strings.Contains(msg, "not connected"):
		return newTokensError(err.Error(), goerrors.CategoryNotFound, TokensErrorNotConnected)
	case strings.Contains(msg, "lock already held"), strings.Contains(msg, "refresh lock"):
		return newTokensError(err.Error(), goerrors.CategoryConflict, TokensErrorRefreshLocked)
	case strings.Contains(msg, "unreachable"), strings.Contains(msg, "connection refused"),
		strings.Contains(msg, "request failed"):
		return newTokensError(err.Error(), goerrors.CategoryExternal, TokensErrorUpstreamUnavailable)
	case strings.Contains(msg, "required"), strings.Contains(msg, "invalid"):
		return newTokensError(err.Error(), goerrors.CategoryBadInput, TokensErrorBadInput)
	}

	mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	return ensureTokensErrorEnvelope(mapped)
}

func newTokensError(message string, category goerrors.Category, textCode string) *goerrors.Error {
	return ensureTokensErrorEnvelope(
		goerrors.New(message, category).
			WithTextCode(textCode),
	)
}

// UpstreamGrantError marks a provider rejection of a code or token
// exchange. The caller must redo the consent flow; the error is not
// retried.
func UpstreamGrantError(message string) *goerrors.Error {
	return goerrors.New(message, goerrors.CategoryAuth).
		WithCode(http.StatusUnauthorized).
		WithTextCode(TokensErrorUpstreamGrant)
}

// UpstreamUnavailableError marks a network-level failure talking to a
// provider.
func UpstreamUnavailableError(source error, message string) *goerrors.Error {
	return goerrors.Wrap(source, goerrors.CategoryExternal, message).
		WithCode(http.StatusBadGateway).
		WithTextCode(TokensErrorUpstreamUnavailable)
}

// RefreshFailedError marks a failed lazy-refresh for a record that was
// otherwise found. The stored refresh mechanism is exhausted; the user
// must re-authorize.
func RefreshFailedError(source error, key CredentialKey) *goerrors.Error {
	return goerrors.Wrap(source, goerrors.CategoryAuth, "credential refresh failed for "+key.String()).
		WithCode(http.StatusUnauthorized).
		WithTextCode(TokensErrorRefreshFailed)
}

// NotConnectedError marks a filtered lookup that matched zero records.
func NotConnectedError(query CredentialQuery) *goerrors.Error {
	message := "no credentials found for user"
	if query.Platform != "" {
		message += " on " + string(query.Platform)
	}
	return goerrors.New(message, goerrors.CategoryNotFound).
		WithCode(http.StatusNotFound).
		WithTextCode(TokensErrorNotConnected)
}

// StorageError marks a record store failure. Any in-flight mutation
// must already have rolled back when this surfaces.
func StorageError(source error, message string) *goerrors.Error {
	return goerrors.Wrap(source, goerrors.CategoryInternal, message).
		WithCode(http.StatusInternalServerError).
		WithTextCode(TokensErrorStorage)
}

func ensureTokensErrorEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = tokensHTTPStatus(err.Category)
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = defaultTokensTextCode(err.Category)
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = "An unexpected error occurred"
	}
	return err
}

func defaultTokensTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return TokensErrorBadInput
	case goerrors.CategoryNotFound:
		return TokensErrorNotConnected
	case goerrors.CategoryAuth, goerrors.CategoryAuthz:
		return TokensErrorUpstreamGrant
	case goerrors.CategoryConflict:
		return TokensErrorRefreshLocked
	case goerrors.CategoryExternal:
		return TokensErrorUpstreamUnavailable
	default:
		return TokensErrorInternal
	}
}

func tokensHTTPStatus(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return http.StatusBadRequest
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
	case goerrors.CategoryConflict:
		return http.StatusConflict
	case goerrors.CategoryExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
