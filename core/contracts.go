package core

import (
	"context"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

type BeginAuthRequest struct {
	UserID          int64
	Platform        Platform
	State           string
	RequestedScopes []string
	Metadata        map[string]any
}

type BeginAuthResponse struct {
	URL             string
	State           string
	RequestedScopes []string
	Metadata        map[string]any
}

type IngestGrantRequest struct {
	UserID   int64
	Platform Platform
	Code     string
	Metadata map[string]any
}

// CredentialQuery filters stored credentials. Platform and
// ExternalAccountID are optional; a zero Platform matches every
// platform the user has connected.
type CredentialQuery struct {
	UserID            int64
	Platform          Platform
	ExternalAccountID string
}

type RenewRequest struct {
	Key        CredentialKey
	Credential *Credential
}

type UpsertCredentialInput struct {
	UserID            int64
	Platform          Platform
	ExternalAccountID string
	AccessToken       string
	RefreshToken      string
	ExpiresAt         time.Time
}

// Provider converts authorization grants into credentials for one
// platform and renews them when the refresh policy fires.
type Provider interface {
	Platform() Platform

	BeginAuth(ctx context.Context, req BeginAuthRequest) (BeginAuthResponse, error)
	ExchangeCode(ctx context.Context, code string) (Grant, error)
	Renew(ctx context.Context, cred Credential) (Grant, error)

	// RefreshLeadWindow is how long before hard expiry a stored
	// credential is considered stale. Zero means renew only once
	// the expiry timestamp has passed.
	RefreshLeadWindow() time.Duration
}

type Registry interface {
	Register(provider Provider) error
	Get(platform Platform) (Provider, bool)
	List() []Provider
}

// CredentialStore is the persisted record store for credentials.
// Upsert must be atomic per triple: concurrent upserts for the same
// key resolve last-writer-wins and never produce duplicate rows.
type CredentialStore interface {
	Upsert(ctx context.Context, in UpsertCredentialInput) (Credential, error)
	Find(ctx context.Context, query CredentialQuery) ([]Credential, error)
	DeleteAllForUser(ctx context.Context, userID int64) (int64, error)
}

type StoreProvider interface {
	CredentialStore() CredentialStore
}

type RepositoryStoreFactory interface {
	BuildStores(persistenceClient any) (StoreProvider, error)
}

type OAuthStateRecord struct {
	State           string
	UserID          int64
	Platform        Platform
	RequestedScopes []string
	Metadata        map[string]any
	CreatedAt       time.Time
	ExpiresAt       time.Time
}

type OAuthStateStore interface {
	Save(ctx context.Context, record OAuthStateRecord) error
	Consume(ctx context.Context, state string) (OAuthStateRecord, error)
}

type LockHandle interface {
	Unlock(ctx context.Context) error
}

// CredentialLocker provides per-triple mutual exclusion around
// renewals so a burst of reads for a stale record issues one
// upstream refresh call instead of several.
type CredentialLocker interface {
	Acquire(ctx context.Context, key CredentialKey, ttl time.Duration) (LockHandle, error)
}

type MetricsRecorder interface {
	IncCounter(ctx context.Context, name string, value int64, tags map[string]string)
	ObserveHistogram(ctx context.Context, name string, value float64, tags map[string]string)
}

type NopMetricsRecorder struct{}

func (NopMetricsRecorder) IncCounter(context.Context, string, int64, map[string]string) {}

func (NopMetricsRecorder) ObserveHistogram(context.Context, string, float64, map[string]string) {}

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger

// TokenService is the lifecycle facade consumed by the rest of the
// backend.
type TokenService interface {
	BeginConnect(ctx context.Context, req BeginAuthRequest) (BeginAuthResponse, error)
	IngestGrant(ctx context.Context, req IngestGrantRequest) (Credential, error)
	GetCredentials(ctx context.Context, query CredentialQuery) ([]Credential, error)
	Renew(ctx context.Context, req RenewRequest) (Credential, error)
	RevokeAll(ctx context.Context, userID int64) (int64, error)
}
