package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
)

var ErrProviderNotRegistered = errors.New("core: provider not registered")

// Service is the token lifecycle facade: it ingests authorization
// grants, serves valid credentials (renewing lazily on the read path),
// and revokes a user's connections wholesale.
type Service struct {
	config            Config
	logger            Logger
	loggerProvider    LoggerProvider
	metricsRecorder   MetricsRecorder
	errorFactory      ErrorFactory
	errorMapper       ErrorMapper
	persistenceClient any
	repositoryFactory any
	configProvider    ConfigProvider
	optionsResolver   OptionsResolver
	oauthStateStore   OAuthStateStore
	credentialLocker  CredentialLocker
	registry          Registry
	credentialStore   CredentialStore
	nowFn             func() time.Time

	// contentionRetryDelay spaces the re-reads a losing flight makes
	// while the winning renewal is still in its upstream round-trip.
	contentionRetryDelay time.Duration
}

type ServiceDependencies struct {
	Logger            Logger
	LoggerProvider    LoggerProvider
	MetricsRecorder   MetricsRecorder
	ErrorFactory      ErrorFactory
	ErrorMapper       ErrorMapper
	PersistenceClient any
	RepositoryFactory any
	ConfigProvider    ConfigProvider
	OptionsResolver   OptionsResolver
	OAuthStateStore   OAuthStateStore
	CredentialLocker  CredentialLocker
	Registry          Registry
	CredentialStore   CredentialStore
}

func NewService(cfg Config, options ...Option) (*Service, error) {
	builder := defaultServiceBuilder(cfg)
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(&builder)
	}

	provider, logger := glog.Resolve("connections", builder.loggerProvider, builder.logger)
	logger = glog.Ensure(logger)
	if provider != nil {
		if named := provider.GetLogger("connections"); named != nil {
			logger = glog.Ensure(named)
		}
	}

	if builder.errorFactory == nil {
		builder.errorFactory = goerrors.New
	}
	if builder.metricsRecorder == nil {
		builder.metricsRecorder = NopMetricsRecorder{}
	}
	if builder.errorMapper == nil {
		builder.errorMapper = defaultErrorMapper
	}
	if builder.configProvider == nil {
		builder.configProvider = NewCfgxConfigProvider(nil)
	}
	if builder.optionsResolver == nil {
		builder.optionsResolver = GoOptionsResolver{}
	}
	if builder.registry == nil {
		builder.registry = NewPlatformRegistry()
	}
	if builder.oauthStateStore == nil {
		builder.oauthStateStore = NewMemoryOAuthStateStore(defaultOAuthStateTTL)
	}
	if builder.credentialLocker == nil {
		builder.credentialLocker = NewMemoryCredentialLocker()
	}
	if builder.nowFn == nil {
		builder.nowFn = func() time.Time { return time.Now().UTC() }
	}

	defaults := DefaultConfig()
	loaded, err := builder.configProvider.Load(context.Background(), defaults)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}
	finalConfig, err := builder.optionsResolver.Resolve(defaults, loaded, builder.runtimeConfig)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}

	if builder.credentialStore == nil && builder.repositoryFactory != nil {
		if storeFactory, ok := builder.repositoryFactory.(RepositoryStoreFactory); ok {
			storeProvider, buildErr := storeFactory.BuildStores(builder.persistenceClient)
			if buildErr != nil {
				return nil, mapBuildError(builder.errorMapper, buildErr)
			}
			if storeProvider != nil {
				builder.credentialStore = storeProvider.CredentialStore()
			}
		}
	}

	return &Service{
		config:            finalConfig,
		logger:            logger,
		loggerProvider:    builder.loggerProvider,
		metricsRecorder:   builder.metricsRecorder,
		errorFactory:      builder.errorFactory,
		errorMapper:       builder.errorMapper,
		persistenceClient: builder.persistenceClient,
		repositoryFactory: builder.repositoryFactory,
		configProvider:    builder.configProvider,
		optionsResolver:   builder.optionsResolver,
		oauthStateStore:   builder.oauthStateStore,
		credentialLocker:  builder.credentialLocker,
		registry:          builder.registry,
		credentialStore:   builder.credentialStore,
		nowFn:             builder.nowFn,
	}, nil
}

func mapBuildError(mapper ErrorMapper, err error) error {
	if err == nil {
		return nil
	}
	if mapper == nil {
		return err
	}
	if mapped := mapper(err); mapped != nil {
		return mapped
	}
	return err
}

func (s *Service) Config() Config {
	if s == nil {
		return Config{}
	}
	return s.config
}

func (s *Service) Dependencies() ServiceDependencies {
	if s == nil {
		return ServiceDependencies{}
	}
	return ServiceDependencies{
		Logger:            s.logger,
		LoggerProvider:    s.loggerProvider,
		MetricsRecorder:   s.metricsRecorder,
		ErrorFactory:      s.errorFactory,
		ErrorMapper:       s.errorMapper,
		PersistenceClient: s.persistenceClient,
		RepositoryFactory: s.repositoryFactory,
		ConfigProvider:    s.configProvider,
		OptionsResolver:   s.optionsResolver,
		OAuthStateStore:   s.oauthStateStore,
		CredentialLocker:  s.credentialLocker,
		Registry:          s.registry,
		CredentialStore:   s.credentialStore,
	}
}

func (s *Service) Registry() Registry {
	if s == nil {
		return nil
	}
	return s.registry
}

// BeginConnect builds the provider consent URL and records a one-time
// state token the callback must present.
func (s *Service) BeginConnect(ctx context.Context, req BeginAuthRequest) (response BeginAuthResponse, err error) {
	startedAt := s.now()
	fields := map[string]any{
		"platform": string(req.Platform),
		"user_id":  req.UserID,
	}
	defer func() {
		s.observeOperation(ctx, startedAt, "begin_connect", err, fields)
	}()

	if req.UserID <= 0 {
		err = s.mapError(fmt.Errorf("%w: %d", ErrInvalidUserID, req.UserID))
		return BeginAuthResponse{}, err
	}
	provider, err := s.resolveProvider(req.Platform)
	if err != nil {
		return BeginAuthResponse{}, err
	}

	state := strings.TrimSpace(req.State)
	if state == "" {
		generated, stateErr := generateOAuthState()
		if stateErr != nil {
			err = s.mapError(stateErr)
			return BeginAuthResponse{}, err
		}
		state = generated
	}
	req.State = state

	response, err = provider.BeginAuth(ctx, req)
	if err != nil {
		err = s.mapError(err)
		return BeginAuthResponse{}, err
	}

	if s.oauthStateStore != nil {
		saveErr := s.oauthStateStore.Save(ctx, OAuthStateRecord{
			State:           response.State,
			UserID:          req.UserID,
			Platform:        req.Platform,
			RequestedScopes: append([]string(nil), response.RequestedScopes...),
			Metadata:        copyAnyMap(response.Metadata),
			CreatedAt:       s.now(),
		})
		if saveErr != nil {
			err = s.mapError(saveErr)
			return BeginAuthResponse{}, err
		}
	}

	return response, nil
}

// IngestGrant exchanges a one-time authorization code and upserts the
// resulting credential. Re-ingesting a grant for a triple the user
// already connected overwrites the stored record in place.
func (s *Service) IngestGrant(ctx context.Context, req IngestGrantRequest) (credential Credential, err error) {
	startedAt := s.now()
	fields := map[string]any{
		"platform": string(req.Platform),
		"user_id":  req.UserID,
	}
	defer func() {
		s.observeOperation(ctx, startedAt, "ingest_grant", err, fields)
	}()

	if req.UserID <= 0 {
		err = s.mapError(fmt.Errorf("%w: %d", ErrInvalidUserID, req.UserID))
		return Credential{}, err
	}
	if strings.TrimSpace(req.Code) == "" {
		err = s.mapError(fmt.Errorf("core: authorization code is required"))
		return Credential{}, err
	}
	provider, err := s.resolveProvider(req.Platform)
	if err != nil {
		return Credential{}, err
	}
	store, err := s.requireCredentialStore()
	if err != nil {
		return Credential{}, err
	}

	grant, err := provider.ExchangeCode(ctx, strings.TrimSpace(req.Code))
	if err != nil {
		err = s.mapError(err)
		return Credential{}, err
	}
	if validateErr := grant.Validate(); validateErr != nil {
		err = s.mapError(validateErr)
		return Credential{}, err
	}
	fields["external_account_id"] = grant.ExternalAccountID

	credential, err = s.upsertGrant(ctx, store, req.UserID, req.Platform, grant)
	if err != nil {
		return Credential{}, err
	}
	return credential, nil
}

// GetCredentials returns every stored credential matching the query,
// renewing stale ones inline before they are handed back. Zero
// matching rows is an error, not an empty success: callers always need
// at least one valid credential to proceed.
func (s *Service) GetCredentials(ctx context.Context, query CredentialQuery) (credentials []Credential, err error) {
	startedAt := s.now()
	fields := map[string]any{
		"platform": string(query.Platform),
		"user_id":  query.UserID,
	}
	defer func() {
		s.observeOperation(ctx, startedAt, "get_credentials", err, fields)
	}()

	if query.UserID <= 0 {
		err = s.mapError(fmt.Errorf("%w: %d", ErrInvalidUserID, query.UserID))
		return nil, err
	}
	if query.Platform != "" {
		if validateErr := query.Platform.Validate(); validateErr != nil {
			err = s.mapError(validateErr)
			return nil, err
		}
	}
	store, err := s.requireCredentialStore()
	if err != nil {
		return nil, err
	}

	stored, findErr := store.Find(ctx, query)
	if findErr != nil {
		err = s.mapError(StorageError(findErr, "credential lookup failed"))
		return nil, err
	}
	if len(stored) == 0 {
		err = s.mapError(NotConnectedError(query))
		return nil, err
	}

	credentials = make([]Credential, 0, len(stored))
	for _, record := range stored {
		resolved, freshErr := s.ensureFresh(ctx, store, record)
		if freshErr != nil {
			err = freshErr
			return nil, err
		}
		credentials = append(credentials, resolved)
	}
	return credentials, nil
}

// Renew forces a single credential through the renewal exchange
// regardless of its expiry state.
func (s *Service) Renew(ctx context.Context, req RenewRequest) (credential Credential, err error) {
	startedAt := s.now()
	fields := map[string]any{
		"platform":            string(req.Key.Platform),
		"user_id":             req.Key.UserID,
		"external_account_id": req.Key.ExternalAccountID,
	}
	defer func() {
		s.observeOperation(ctx, startedAt, "renew", err, fields)
	}()

	if validateErr := req.Key.Validate(); validateErr != nil {
		err = s.mapError(validateErr)
		return Credential{}, err
	}
	store, err := s.requireCredentialStore()
	if err != nil {
		return Credential{}, err
	}

	current := Credential{}
	if req.Credential != nil {
		current = *req.Credential
	} else {
		loaded, loadErr := s.loadCredential(ctx, store, req.Key)
		if loadErr != nil {
			err = loadErr
			return Credential{}, err
		}
		current = loaded
	}

	credential, err = s.renewLocked(ctx, store, current, true)
	if err != nil {
		return Credential{}, err
	}
	return credential, nil
}

// RevokeAll deletes every credential the user holds, across all
// platforms. The cascade is irreversible; reconnecting requires a full
// consent flow per account.
func (s *Service) RevokeAll(ctx context.Context, userID int64) (deleted int64, err error) {
	startedAt := s.now()
	fields := map[string]any{
		"user_id": userID,
	}
	defer func() {
		s.observeOperation(ctx, startedAt, "revoke_all", err, fields)
	}()

	if userID <= 0 {
		err = s.mapError(fmt.Errorf("%w: %d", ErrInvalidUserID, userID))
		return 0, err
	}
	store, err := s.requireCredentialStore()
	if err != nil {
		return 0, err
	}

	deleted, deleteErr := store.DeleteAllForUser(ctx, userID)
	if deleteErr != nil {
		err = s.mapError(StorageError(deleteErr, "credential revocation failed"))
		return 0, err
	}
	fields["deleted"] = deleted
	return deleted, nil
}

// ensureFresh applies the platform refresh policy to one stored record
// and renews it when stale. The renewed snapshot is what the caller
// receives; a renewal failure is terminal for the whole read.
func (s *Service) ensureFresh(ctx context.Context, store CredentialStore, record Credential) (Credential, error) {
	provider, err := s.resolveProvider(record.Platform)
	if err != nil {
		return Credential{}, err
	}
	state := ResolveCredentialState(s.now(), record, provider.RefreshLeadWindow())
	if !ShouldRenewCredential(state) {
		return record, nil
	}
	return s.renewLocked(ctx, store, record, false)
}

// renewLocked serializes renewals per triple. If another in-flight
// renewal holds the lock, the stored record is re-read for a short
// while: once that renewal lands a fresh token the re-read satisfies
// this caller without a second upstream call. A forced renewal always
// hits the provider.
func (s *Service) renewLocked(ctx context.Context, store CredentialStore, record Credential, force bool) (Credential, error) {
	key := record.Key()
	if s.credentialLocker != nil {
		handle, lockErr := s.credentialLocker.Acquire(ctx, key, defaultRenewLockTTL)
		if lockErr != nil {
			if force {
				return Credential{}, s.mapError(lockErr)
			}
			return s.resolveAfterContention(ctx, store, record, lockErr)
		}
		defer func() {
			_ = handle.Unlock(ctx)
		}()

		reloaded, reloadErr := s.loadCredential(ctx, store, key)
		if reloadErr == nil {
			record = reloaded
			if !force {
				provider, providerErr := s.resolveProvider(record.Platform)
				if providerErr != nil {
					return Credential{}, providerErr
				}
				if !ShouldRenewCredential(ResolveCredentialState(s.now(), record, provider.RefreshLeadWindow())) {
					return record, nil
				}
			}
		}
	}
	return s.renew(ctx, store, record)
}

const (
	contentionReReadAttempts    = 4
	defaultContentionRetryDelay = 25 * time.Millisecond
)

// resolveAfterContention lets a read that lost the renewal lock ride on
// the winner's result. The winner still has an upstream round-trip in
// flight when contention is detected, so the loser re-reads a few times
// before surfacing the lock conflict.
func (s *Service) resolveAfterContention(ctx context.Context, store CredentialStore, record Credential, lockErr error) (Credential, error) {
	delay := s.contentionRetryDelay
	if delay <= 0 {
		delay = defaultContentionRetryDelay
	}

	for attempt := 0; attempt < contentionReReadAttempts; attempt++ {
		if attempt > 0 {
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return Credential{}, s.mapError(ctx.Err())
			case <-timer.C:
			}
		}

		reloaded, reloadErr := s.loadCredential(ctx, store, record.Key())
		if reloadErr != nil {
			continue
		}
		provider, providerErr := s.resolveProvider(reloaded.Platform)
		if providerErr != nil {
			break
		}
		if !ShouldRenewCredential(ResolveCredentialState(s.now(), reloaded, provider.RefreshLeadWindow())) {
			return reloaded, nil
		}
	}
	return Credential{}, s.mapError(lockErr)
}

func (s *Service) renew(ctx context.Context, store CredentialStore, record Credential) (Credential, error) {
	provider, err := s.resolveProvider(record.Platform)
	if err != nil {
		return Credential{}, err
	}

	grant, renewErr := provider.Renew(ctx, record)
	if renewErr != nil {
		return Credential{}, s.mapError(RefreshFailedError(renewErr, record.Key()))
	}
	if grant.ExternalAccountID == "" {
		grant.ExternalAccountID = record.ExternalAccountID
	}
	if validateErr := grant.Validate(); validateErr != nil {
		return Credential{}, s.mapError(RefreshFailedError(validateErr, record.Key()))
	}

	renewed, upsertErr := s.upsertGrant(ctx, store, record.UserID, record.Platform, grant)
	if upsertErr != nil {
		return Credential{}, upsertErr
	}
	return renewed, nil
}

// upsertGrant persists a validated grant. No write happens before both
// the access token and a computed expiry exist, so failures upstream of
// this point leave the stored record untouched.
func (s *Service) upsertGrant(ctx context.Context, store CredentialStore, userID int64, platform Platform, grant Grant) (Credential, error) {
	credential, err := store.Upsert(ctx, UpsertCredentialInput{
		UserID:            userID,
		Platform:          platform,
		ExternalAccountID: grant.ExternalAccountID,
		AccessToken:       grant.AccessToken,
		RefreshToken:      grant.RefreshToken,
		ExpiresAt:         grant.ExpiresAt.UTC(),
	})
	if err != nil {
		return Credential{}, s.mapError(StorageError(err, "credential upsert failed"))
	}
	return credential, nil
}

func (s *Service) loadCredential(ctx context.Context, store CredentialStore, key CredentialKey) (Credential, error) {
	records, err := store.Find(ctx, CredentialQuery{
		UserID:            key.UserID,
		Platform:          key.Platform,
		ExternalAccountID: key.ExternalAccountID,
	})
	if err != nil {
		return Credential{}, s.mapError(StorageError(err, "credential lookup failed"))
	}
	if len(records) == 0 {
		return Credential{}, s.mapError(NotConnectedError(CredentialQuery{
			UserID:   key.UserID,
			Platform: key.Platform,
		}))
	}
	return records[0], nil
}

func (s *Service) resolveProvider(platform Platform) (Provider, error) {
	if err := platform.Validate(); err != nil {
		return nil, s.mapError(err)
	}
	if s.registry == nil {
		return nil, s.mapError(fmt.Errorf("core: provider registry is not configured"))
	}
	provider, ok := s.registry.Get(platform)
	if !ok {
		return nil, s.mapError(fmt.Errorf("%w: %s", ErrProviderNotRegistered, platform))
	}
	return provider, nil
}

func (s *Service) requireCredentialStore() (CredentialStore, error) {
	if s == nil || s.credentialStore == nil {
		return nil, s.mapError(fmt.Errorf("core: credential store is not configured"))
	}
	return s.credentialStore, nil
}

func (s *Service) mapError(err error) error {
	if err == nil {
		return nil
	}
	if s == nil || s.errorMapper == nil {
		return err
	}
	if mapped := s.errorMapper(err); mapped != nil {
		return mapped
	}
	return err
}

func (s *Service) now() time.Time {
	if s == nil || s.nowFn == nil {
		return time.Now().UTC()
	}
	return s.nowFn().UTC()
}

var _ TokenService = (*Service)(nil)
