package cache

import (
	"context"
	"errors"
	"testing"
	"time"
)

func newTestCache(t *testing.T, opts ...Option) *Cache {
	t.Helper()
	backend, err := NewMemoryBackend(100)
	if err != nil {
		t.Fatalf("failed to create backend: %v", err)
	}
	return New(backend, opts...)
}

func TestSetGet(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t)

	c.Set(ctx, "greeting", "hello", time.Minute)

	value, found := c.Get(ctx, "greeting")
	if !found {
		t.Fatal("expected hit immediately after set")
	}
	if value != "hello" {
		t.Errorf("expected %q, got %v", "hello", value)
	}
}

func TestGetExpired(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t)

	c.Set(ctx, "short", "lived", 10*time.Millisecond)
	time.Sleep(25 * time.Millisecond)

	if _, found := c.Get(ctx, "short"); found {
		t.Error("expected miss after ttl elapsed")
	}
	// Lazy eviction removed the entry on read.
	if size := c.Size(ctx); size != 0 {
		t.Errorf("expected size 0 after lazy eviction, got %d", size)
	}
}

func TestSetOverwritesValueAndTTL(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t)

	c.Set(ctx, "k", "old", 10*time.Millisecond)
	c.Set(ctx, "k", "new", time.Minute)
	time.Sleep(25 * time.Millisecond)

	value, found := c.Get(ctx, "k")
	if !found {
		t.Fatal("expected entry to survive under refreshed ttl")
	}
	if value != "new" {
		t.Errorf("expected %q, got %v", "new", value)
	}
}

func TestInvalidatePrefix(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t)

	c.Set(ctx, "user:1", "a", time.Minute)
	c.Set(ctx, "user:2", "b", time.Minute)
	c.Set(ctx, "session:1", "c", time.Minute)

	removed := c.Invalidate(ctx, "user:*")
	if removed != 2 {
		t.Errorf("expected 2 removed, got %d", removed)
	}

	if _, found := c.Get(ctx, "user:1"); found {
		t.Error("expected user:1 removed")
	}
	if _, found := c.Get(ctx, "user:2"); found {
		t.Error("expected user:2 removed")
	}
	if _, found := c.Get(ctx, "session:1"); !found {
		t.Error("expected session:1 untouched")
	}
}

func TestInvalidateAll(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t)

	c.Set(ctx, "a", 1, time.Minute)
	c.Set(ctx, "b", 2, time.Minute)

	c.Invalidate(ctx, "*")
	if size := c.Size(ctx); size != 0 {
		t.Errorf("expected empty cache, got size %d", size)
	}
}

func TestSweeperRemovesExpired(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t, WithSweepInterval(20*time.Millisecond))

	c.Set(ctx, "ephemeral", "x", 5*time.Millisecond)
	c.Set(ctx, "durable", "y", time.Minute)

	c.StartSweeper()
	defer c.StopSweeper()

	deadline := time.After(500 * time.Millisecond)
	for {
		if c.Size(ctx) == 1 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("sweeper never removed expired entry, size=%d", c.Size(ctx))
		case <-time.After(10 * time.Millisecond):
		}
	}

	if _, found := c.Get(ctx, "durable"); !found {
		t.Error("sweeper removed an unexpired entry")
	}
}

func TestStopSweeperIsIdempotent(t *testing.T) {
	c := newTestCache(t)
	c.StartSweeper()
	c.StopSweeper()
	c.StopSweeper() // Second stop must not panic or block.
}

func TestStats(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t)

	c.Set(ctx, "k", "v", time.Minute)
	c.Get(ctx, "k")
	c.Get(ctx, "missing")

	stats := c.Stats()
	if stats.Sets != 1 || stats.Hits != 1 || stats.Misses != 1 {
		t.Errorf("unexpected stats: %+v", stats)
	}
}

// failingBackend errors on every operation to exercise fault swallowing.
type failingBackend struct{}

var errBackend = errors.New("backend down")

func (failingBackend) Set(context.Context, string, any, time.Duration) error { return errBackend }
func (failingBackend) Get(context.Context, string) (any, bool, error)       { return nil, false, errBackend }
func (failingBackend) Delete(context.Context, string) error                 { return errBackend }
func (failingBackend) DeleteMatching(context.Context, string) (int, error)  { return 0, errBackend }
func (failingBackend) Len(context.Context) (int, error)                     { return 0, errBackend }
func (failingBackend) Sweep(context.Context) (int, error)                   { return 0, errBackend }
func (failingBackend) Close() error                                         { return nil }

func TestFaultsAreSwallowed(t *testing.T) {
	ctx := context.Background()
	c := New(failingBackend{})

	// None of these may panic or surface an error to the caller.
	c.Set(ctx, "k", "v", time.Minute)
	if _, found := c.Get(ctx, "k"); found {
		t.Error("expected miss from failing backend")
	}
	c.Delete(ctx, "k")
	if n := c.Invalidate(ctx, "*"); n != 0 {
		t.Errorf("expected 0 invalidated, got %d", n)
	}
	if n := c.Size(ctx); n != 0 {
		t.Errorf("expected size 0, got %d", n)
	}

	if c.Stats().Failures == 0 {
		t.Error("expected failures to be counted")
	}
}
