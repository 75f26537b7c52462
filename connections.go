// Package connections manages OAuth credentials for the external
// platforms users link to their account. It ingests authorization
// grants, stores one credential per (user, platform, account) triple,
// renews stale tokens on the read path, and revokes everything a user
// holds when they leave.
package connections

import (
	"github.com/socivio/connections/core"
	"github.com/socivio/connections/providers/facebook"
	"github.com/socivio/connections/providers/youtube"
)

type Config = core.Config

type PlatformCredentials = core.PlatformCredentials

type Option = core.Option

type Service = core.Service

type ServiceDependencies = core.ServiceDependencies

type Platform = core.Platform

type Credential = core.Credential
type CredentialKey = core.CredentialKey
type CredentialQuery = core.CredentialQuery
type Grant = core.Grant

type BeginAuthRequest = core.BeginAuthRequest
type BeginAuthResponse = core.BeginAuthResponse
type IngestGrantRequest = core.IngestGrantRequest
type RenewRequest = core.RenewRequest

type Provider = core.Provider
type Registry = core.Registry
type CredentialStore = core.CredentialStore
type OAuthStateStore = core.OAuthStateStore
type CredentialLocker = core.CredentialLocker

const (
	PlatformYouTube  = core.PlatformYouTube
	PlatformFacebook = core.PlatformFacebook
)

var (
	WithLogger            = core.WithLogger
	WithLoggerProvider    = core.WithLoggerProvider
	WithMetricsRecorder   = core.WithMetricsRecorder
	WithErrorFactory      = core.WithErrorFactory
	WithErrorMapper       = core.WithErrorMapper
	WithPersistenceClient = core.WithPersistenceClient
	WithRepositoryFactory = core.WithRepositoryFactory
	WithConfigProvider    = core.WithConfigProvider
	WithOptionsResolver   = core.WithOptionsResolver
	WithOAuthStateStore   = core.WithOAuthStateStore
	WithCredentialLocker  = core.WithCredentialLocker
	WithRegistry          = core.WithRegistry
	WithCredentialStore   = core.WithCredentialStore
	WithClock             = core.WithClock
)

func DefaultConfig() Config {
	return core.DefaultConfig()
}

func NewService(cfg Config, opts ...Option) (*Service, error) {
	return core.NewService(cfg, opts...)
}

func ParsePlatform(value string) (Platform, error) {
	return core.ParsePlatform(value)
}

func YouTubeProvider(cfg youtube.Config) (core.Provider, error) {
	return youtube.New(cfg)
}

func FacebookProvider(cfg facebook.Config) (core.Provider, error) {
	return facebook.New(cfg)
}

// Setup builds a service with both platform providers registered from
// the config's client credentials. Platforms with empty credentials
// are skipped so a deployment can run YouTube-only or Facebook-only.
func Setup(cfg Config, opts ...Option) (*Service, error) {
	registry := core.NewPlatformRegistry()

	if !cfg.YouTube.IsZero() {
		provider, err := youtube.New(youtube.Config{
			ClientID:     cfg.YouTube.ClientID,
			ClientSecret: cfg.YouTube.ClientSecret,
			RedirectURI:  cfg.YouTube.RedirectURI,
		})
		if err != nil {
			return nil, err
		}
		if err := registry.Register(provider); err != nil {
			return nil, err
		}
	}
	if !cfg.Facebook.IsZero() {
		provider, err := facebook.New(facebook.Config{
			ClientID:     cfg.Facebook.ClientID,
			ClientSecret: cfg.Facebook.ClientSecret,
			RedirectURI:  cfg.Facebook.RedirectURI,
		})
		if err != nil {
			return nil, err
		}
		if err := registry.Register(provider); err != nil {
			return nil, err
		}
	}

	merged := append([]Option{core.WithRegistry(registry)}, opts...)
	return core.NewService(cfg, merged...)
}
