package core

import (
	"context"
	"fmt"
	"sync"
	"time"
)

const defaultRenewLockTTL = 30 * time.Second

// MemoryCredentialLocker is a per-triple single-flight lock. Two
// concurrent reads that both observe a stale record coordinate here so
// only one of them pays the upstream renewal round-trip.
type MemoryCredentialLocker struct {
	mu    sync.Mutex
	locks map[CredentialKey]memoryLockEntry
	seq   uint64
	nowFn func() time.Time
}

type memoryLockEntry struct {
	until time.Time
	owner uint64
}

func NewMemoryCredentialLocker() *MemoryCredentialLocker {
	return &MemoryCredentialLocker{
		locks: make(map[CredentialKey]memoryLockEntry),
		nowFn: func() time.Time { return time.Now().UTC() },
	}
}

func (l *MemoryCredentialLocker) Acquire(_ context.Context, key CredentialKey, ttl time.Duration) (LockHandle, error) {
	if l == nil {
		return nil, fmt.Errorf("core: credential locker is not configured")
	}
	if err := key.Validate(); err != nil {
		return nil, err
	}
	if ttl <= 0 {
		ttl = defaultRenewLockTTL
	}

	now := l.nowFn()
	l.mu.Lock()
	defer l.mu.Unlock()

	if entry, ok := l.locks[key]; ok && now.Before(entry.until) {
		return nil, fmt.Errorf("core: refresh lock already held for credential %s", key)
	}
	l.seq++
	owner := l.seq
	l.locks[key] = memoryLockEntry{until: now.Add(ttl), owner: owner}
	return &memoryLockHandle{locker: l, key: key, owner: owner}, nil
}

type memoryLockHandle struct {
	locker *MemoryCredentialLocker
	key    CredentialKey
	owner  uint64
	once   sync.Once
}

// Unlock releases the lock only while this handle still owns it. A
// handle that outlived its TTL must not evict the flight that took
// over the key.
func (h *memoryLockHandle) Unlock(_ context.Context) error {
	if h == nil || h.locker == nil {
		return nil
	}
	h.once.Do(func() {
		h.locker.mu.Lock()
		if entry, ok := h.locker.locks[h.key]; ok && entry.owner == h.owner {
			delete(h.locker.locks, h.key)
		}
		h.locker.mu.Unlock()
	})
	return nil
}

var _ CredentialLocker = (*MemoryCredentialLocker)(nil)
