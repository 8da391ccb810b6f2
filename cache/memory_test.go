package cache

import (
	"context"
	"fmt"
	"testing"
	"time"
)

func TestMemoryBackendCapacityEviction(t *testing.T) {
	ctx := context.Background()
	backend, err := NewMemoryBackend(3)
	if err != nil {
		t.Fatalf("failed to create backend: %v", err)
	}

	for i := 0; i < 5; i++ {
		key := fmt.Sprintf("k%d", i)
		if err := backend.Set(ctx, key, i, time.Minute); err != nil {
			t.Fatalf("set failed: %v", err)
		}
	}

	n, err := backend.Len(ctx)
	if err != nil {
		t.Fatalf("len failed: %v", err)
	}
	if n != 3 {
		t.Errorf("expected capacity bound of 3, got %d", n)
	}

	// Oldest entries were evicted, newest survive.
	if _, found, _ := backend.Get(ctx, "k0"); found {
		t.Error("expected k0 evicted")
	}
	if _, found, _ := backend.Get(ctx, "k4"); !found {
		t.Error("expected k4 present")
	}
}

func TestMemoryBackendSweep(t *testing.T) {
	ctx := context.Background()
	backend, err := NewMemoryBackend(10)
	if err != nil {
		t.Fatalf("failed to create backend: %v", err)
	}

	_ = backend.Set(ctx, "expired1", 1, 5*time.Millisecond)
	_ = backend.Set(ctx, "expired2", 2, 5*time.Millisecond)
	_ = backend.Set(ctx, "fresh", 3, time.Minute)

	time.Sleep(15 * time.Millisecond)

	removed, err := backend.Sweep(ctx)
	if err != nil {
		t.Fatalf("sweep failed: %v", err)
	}
	if removed != 2 {
		t.Errorf("expected 2 swept, got %d", removed)
	}

	n, _ := backend.Len(ctx)
	if n != 1 {
		t.Errorf("expected 1 entry after sweep, got %d", n)
	}
}

func TestGlobToRegexp(t *testing.T) {
	cases := []struct {
		pattern string
		key     string
		want    bool
	}{
		{"*", "anything", true},
		{"user:*", "user:42", true},
		{"user:*", "session:42", false},
		{"user:*:drafts", "user:42:drafts", true},
		{"user:*:drafts", "user:42:contracts", false},
		{"exact", "exact", true},
		{"exact", "exact-not", false},
		{"a.b", "aXb", false}, // dot is literal, not a regexp metachar
	}

	for _, tc := range cases {
		re, err := globToRegexp(tc.pattern)
		if err != nil {
			t.Fatalf("globToRegexp(%q) failed: %v", tc.pattern, err)
		}
		if got := re.MatchString(tc.key); got != tc.want {
			t.Errorf("pattern %q on key %q: expected %v, got %v", tc.pattern, tc.key, tc.want, got)
		}
	}
}
