package core

import (
	"fmt"
	"sort"
	"sync"
)

type PlatformRegistry struct {
	mu        sync.RWMutex
	providers map[Platform]Provider
}

func NewPlatformRegistry() *PlatformRegistry {
	return &PlatformRegistry{providers: make(map[Platform]Provider)}
}

func (r *PlatformRegistry) Register(provider Provider) error {
	if provider == nil {
		return fmt.Errorf("core: provider is nil")
	}
	platform := provider.Platform()
	if err := platform.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.providers[platform]; exists {
		return fmt.Errorf("core: provider already registered: %s", platform)
	}
	r.providers[platform] = provider
	return nil
}

func (r *PlatformRegistry) Get(platform Platform) (Provider, bool) {
	if platform.Validate() != nil {
		return nil, false
	}
	r.mu.RLock()
	provider, ok := r.providers[platform]
	r.mu.RUnlock()
	return provider, ok
}

func (r *PlatformRegistry) List() []Provider {
	r.mu.RLock()
	keys := make([]string, 0, len(r.providers))
	for platform := range r.providers {
		keys = append(keys, string(platform))
	}
	sort.Strings(keys)
	providers := make([]Provider, 0, len(keys))
	for _, key := range keys {
		providers = append(providers, r.providers[Platform(key)])
	}
	r.mu.RUnlock()
	return providers
}

var _ Registry = (*PlatformRegistry)(nil)
