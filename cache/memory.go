package cache

import (
	"context"
	"regexp"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCapacity bounds the memory backend when no capacity is configured.
// Time-based expiry alone does not bound memory under write-heavy load, so the
// backend always carries an LRU cap as well.
const DefaultCapacity = 10000

type memoryEntry struct {
	value     any
	expiresAt time.Time
}

func (e memoryEntry) expired(now time.Time) bool {
	return now.After(e.expiresAt)
}

// MemoryBackend implements Backend with an LRU-bounded in-process store.
// Entries expire individually by TTL; the LRU cap evicts least-recently-used
// entries once the capacity is reached.
type MemoryBackend struct {
	mu    sync.RWMutex
	cache *lru.Cache[string, memoryEntry]
}

// NewMemoryBackend creates a memory backend holding at most capacity entries.
// A non-positive capacity selects DefaultCapacity.
func NewMemoryBackend(capacity int) (*MemoryBackend, error) {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	cache, err := lru.New[string, memoryEntry](capacity)
	if err != nil {
		return nil, err
	}
	return &MemoryBackend{cache: cache}, nil
}

// Set stores value under key, resetting the expiry to now+ttl.
func (b *MemoryBackend) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.cache.Add(key, memoryEntry{value: value, expiresAt: time.Now().Add(ttl)})
	return nil
}

// Get returns the entry for key, lazily evicting it when expired.
func (b *MemoryBackend) Get(ctx context.Context, key string) (any, bool, error) {
	b.mu.RLock()
	entry, ok := b.cache.Get(key)
	b.mu.RUnlock()

	if !ok {
		return nil, false, nil
	}
	if entry.expired(time.Now()) {
		b.mu.Lock()
		b.cache.Remove(key)
		b.mu.Unlock()
		return nil, false, nil
	}
	return entry.value, true, nil
}

// Delete removes the entry for key.
func (b *MemoryBackend) Delete(ctx context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.cache.Remove(key)
	return nil
}

// DeleteMatching removes every key matching the glob pattern.
func (b *MemoryBackend) DeleteMatching(ctx context.Context, pattern string) (int, error) {
	re, err := globToRegexp(pattern)
	if err != nil {
		return 0, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	removed := 0
	for _, key := range b.cache.Keys() {
		if re.MatchString(key) {
			b.cache.Remove(key)
			removed++
		}
	}
	return removed, nil
}

// Len returns the current entry count, expired-but-unswept included.
func (b *MemoryBackend) Len(ctx context.Context) (int, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return b.cache.Len(), nil
}

// Sweep removes every expired entry and returns how many were removed.
func (b *MemoryBackend) Sweep(ctx context.Context) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	removed := 0
	for _, key := range b.cache.Keys() {
		if entry, ok := b.cache.Peek(key); ok && entry.expired(now) {
			b.cache.Remove(key)
			removed++
		}
	}
	return removed, nil
}

// Close is a no-op for the in-memory backend.
func (b *MemoryBackend) Close() error {
	return nil
}

// globToRegexp compiles a glob pattern where `*` matches any run of characters
// into an anchored regular expression. All other characters match literally.
func globToRegexp(pattern string) (*regexp.Regexp, error) {
	parts := strings.Split(pattern, "*")
	for i, part := range parts {
		parts[i] = regexp.QuoteMeta(part)
	}
	return regexp.Compile("^" + strings.Join(parts, ".*") + "$")
}
