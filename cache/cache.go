// Package cache provides the in-process expiring key/value store shared by the
// provider gateway and context retrieval. Caching here is a performance
// optimization, never a correctness dependency: every fault is logged and
// swallowed, and callers only ever observe a miss.
package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// DefaultSweepInterval is how often the background sweeper removes expired
// entries when no interval is configured.
const DefaultSweepInterval = 5 * time.Minute

// Backend is the storage layer beneath a Cache. Implementations must be safe
// for concurrent use.
type Backend interface {
	// Set stores value under key with the given time-to-live, replacing any
	// prior value and expiry for that key.
	Set(ctx context.Context, key string, value any, ttl time.Duration) error

	// Get returns the value for key if present and unexpired. An expired
	// entry is removed and reported as absent.
	Get(ctx context.Context, key string) (any, bool, error)

	// Delete removes the entry for key.
	Delete(ctx context.Context, key string) error

	// DeleteMatching removes every key matching the glob pattern, where `*`
	// matches any run of characters. It returns the number removed.
	DeleteMatching(ctx context.Context, pattern string) (int, error)

	// Len returns the current entry count, expired-but-unswept included.
	Len(ctx context.Context) (int, error)

	// Sweep proactively removes expired entries and returns how many.
	Sweep(ctx context.Context) (int, error)

	// Close releases backend resources.
	Close() error
}

// Stats holds cumulative cache counters, readable at any time.
type Stats struct {
	Hits     int64
	Misses   int64
	Sets     int64
	Swept    int64
	Failures int64
}

// Cache fronts a Backend with fault-swallowing semantics and owns the
// periodic sweeper goroutine. Construct one instance and inject it; the
// sweeper lifecycle belongs to the process entry point.
type Cache struct {
	backend       Backend
	log           *zap.Logger
	sweepInterval time.Duration

	hits     atomic.Int64
	misses   atomic.Int64
	sets     atomic.Int64
	swept    atomic.Int64
	failures atomic.Int64

	mu      sync.Mutex
	done    chan struct{}
	stopped chan struct{}
}

// Option configures a Cache.
type Option func(*Cache)

// WithLogger sets the logger used for swallowed faults.
func WithLogger(log *zap.Logger) Option {
	return func(c *Cache) {
		if log != nil {
			c.log = log
		}
	}
}

// WithSweepInterval overrides the background sweep interval.
func WithSweepInterval(d time.Duration) Option {
	return func(c *Cache) {
		if d > 0 {
			c.sweepInterval = d
		}
	}
}

// New creates a Cache over the given backend.
func New(backend Backend, opts ...Option) *Cache {
	c := &Cache{
		backend:       backend,
		log:           zap.NewNop(),
		sweepInterval: DefaultSweepInterval,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Set stores value under key for ttl. Failures are logged and swallowed.
func (c *Cache) Set(ctx context.Context, key string, value any, ttl time.Duration) {
	if err := c.backend.Set(ctx, key, value, ttl); err != nil {
		c.failures.Add(1)
		c.log.Warn("cache set failed", zap.String("key", key), zap.Error(err))
		return
	}
	c.sets.Add(1)
}

// Get returns the value for key, or absent on miss, expiry, or backend fault.
func (c *Cache) Get(ctx context.Context, key string) (any, bool) {
	value, found, err := c.backend.Get(ctx, key)
	if err != nil {
		c.failures.Add(1)
		c.log.Warn("cache get failed", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	if !found {
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	return value, true
}

// Delete removes a single key.
func (c *Cache) Delete(ctx context.Context, key string) {
	if err := c.backend.Delete(ctx, key); err != nil {
		c.failures.Add(1)
		c.log.Warn("cache delete failed", zap.String("key", key), zap.Error(err))
	}
}

// Invalidate removes every key matching the glob pattern and returns how many
// were removed. Pattern "*" clears everything.
func (c *Cache) Invalidate(ctx context.Context, pattern string) int {
	n, err := c.backend.DeleteMatching(ctx, pattern)
	if err != nil {
		c.failures.Add(1)
		c.log.Warn("cache invalidate failed", zap.String("pattern", pattern), zap.Error(err))
		return 0
	}
	return n
}

// Size returns the current entry count, for observability.
func (c *Cache) Size(ctx context.Context) int {
	n, err := c.backend.Len(ctx)
	if err != nil {
		c.failures.Add(1)
		c.log.Warn("cache size failed", zap.Error(err))
		return 0
	}
	return n
}

// Stats returns a snapshot of the cumulative counters.
func (c *Cache) Stats() Stats {
	return Stats{
		Hits:     c.hits.Load(),
		Misses:   c.misses.Load(),
		Sets:     c.sets.Load(),
		Swept:    c.swept.Load(),
		Failures: c.failures.Load(),
	}
}

// StartSweeper launches the fixed-interval background sweep. It is a no-op if
// the sweeper is already running.
func (c *Cache) StartSweeper() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.done != nil {
		return
	}
	c.done = make(chan struct{})
	c.stopped = make(chan struct{})
	go c.sweepLoop(c.done, c.stopped)
}

// StopSweeper stops the background sweep and waits for it to exit.
func (c *Cache) StopSweeper() {
	c.mu.Lock()
	done, stopped := c.done, c.stopped
	c.done, c.stopped = nil, nil
	c.mu.Unlock()

	if done != nil {
		close(done)
		<-stopped
	}
}

// Close stops the sweeper and closes the backend.
func (c *Cache) Close() error {
	c.StopSweeper()
	return c.backend.Close()
}

func (c *Cache) sweepLoop(done <-chan struct{}, stopped chan<- struct{}) {
	defer close(stopped)
	ticker := time.NewTicker(c.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			n, err := c.backend.Sweep(context.Background())
			if err != nil {
				c.failures.Add(1)
				c.log.Warn("cache sweep failed", zap.Error(err))
				continue
			}
			if n > 0 {
				c.swept.Add(int64(n))
				c.log.Debug("cache sweep removed expired entries", zap.Int("count", n))
			}
		}
	}
}
