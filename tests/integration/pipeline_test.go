package integration_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/draftwise/aicore/cache"
	"github.com/draftwise/aicore/embedding"
	"github.com/draftwise/aicore/provider"
	"github.com/draftwise/aicore/retrieval"
	"github.com/draftwise/aicore/store"
	"github.com/draftwise/aicore/types"
)

// Mock embedding provider with topic-clustered vectors.
type mockEmbedProvider struct {
	embeddings map[string][]float32
}

func newMockEmbedProvider() *mockEmbedProvider {
	return &mockEmbedProvider{
		embeddings: map[string][]float32{
			"the pricing clause needs a cap": {0.9, 0.1, 0.1},
			"what cap applies to pricing":    {0.95, 0.05, 0.1},
			"delivery is due in thirty days": {0.1, 0.9, 0.1},
			"termination requires notice":    {0.1, 0.1, 0.9},
		},
	}
}

func (m *mockEmbedProvider) EmbedText(_ context.Context, text string) ([]float32, error) {
	if v, ok := m.embeddings[text]; ok {
		return v, nil
	}
	return []float32{0.5, 0.5, 0.5}, nil
}

func (m *mockEmbedProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		v, err := m.EmbedText(ctx, text)
		if err != nil {
			return nil, err
		}
		vectors[i] = v
	}
	return vectors, nil
}

func (m *mockEmbedProvider) Name() string        { return "mock" }
func (m *mockEmbedProvider) Available() bool     { return true }
func (m *mockEmbedProvider) Dimension() int      { return 3 }
func (m *mockEmbedProvider) MaxInputTokens() int { return 8191 }
func (m *mockEmbedProvider) Close() error        { return nil }

// Mock generation provider counting real backend invocations.
type mockGenProvider struct {
	name  string
	calls int
	fail  bool
}

func (m *mockGenProvider) Generate(_ context.Context, req types.GenerationRequest) (string, error) {
	m.calls++
	if m.fail {
		return "", errors.New("backend down")
	}
	return m.name + ": " + req.Prompt, nil
}

func (m *mockGenProvider) Name() string                        { return m.name }
func (m *mockGenProvider) Available() bool                     { return true }
func (m *mockGenProvider) HealthCheck(_ context.Context) error { return nil }

// End to end: store message embeddings in SQLite, retrieve a merged context
// window for a query, then generate through the gateway with response caching.
func TestContextAssemblyAndGeneration(t *testing.T) {
	ctx := context.Background()

	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "embeddings.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	defer func() { _ = st.Close() }()

	gen, err := embedding.NewGenerator([]types.EmbeddingProvider{newMockEmbedProvider()})
	if err != nil {
		t.Fatalf("failed to create generator: %v", err)
	}
	svc, err := retrieval.NewService(st, gen)
	if err != nil {
		t.Fatalf("failed to create retrieval service: %v", err)
	}

	base := time.Now().UTC().Add(-time.Hour)
	messages := []*types.MessageEmbedding{
		{UserID: "u1", ConversationID: "c1", MessageID: "m1", Role: types.RoleUser,
			Content: "the pricing clause needs a cap", CreatedAt: base},
		{UserID: "u1", ConversationID: "c1", MessageID: "m2", Role: types.RoleUser,
			Content: "delivery is due in thirty days", CreatedAt: base.Add(time.Minute)},
		{UserID: "u1", ConversationID: "c1", MessageID: "m3", Role: types.RoleUser,
			Content: "termination requires notice", CreatedAt: base.Add(2 * time.Minute)},
	}
	stored := svc.StoreMessageEmbeddingsBatch(ctx, messages)
	if len(stored) != 3 {
		t.Fatalf("stored %d messages, want 3", len(stored))
	}

	// Pure Go builds have no vector index, so this exercises the degraded
	// in-process similarity scan.
	results, err := svc.FindSimilarContext(ctx, "u1", "what cap applies to pricing", retrieval.SearchOptions{
		ConversationID: "c1",
		Limit:          2,
		Threshold:      0.9,
	})
	if err != nil {
		t.Fatalf("similarity search failed: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d matches, want 1", len(results))
	}
	if results[0].Entry.MessageID != "m1" {
		t.Errorf("top match = %s, want m1", results[0].Entry.MessageID)
	}

	window, err := svc.GetRelevantContext(ctx, "u1", "what cap applies to pricing", retrieval.ContextOptions{
		ConversationID: "c1",
		RecentLimit:    2,
		SemanticLimit:  2,
		Threshold:      0.9,
	})
	if err != nil {
		t.Fatalf("context assembly failed: %v", err)
	}
	if len(window) != 3 {
		t.Fatalf("context window has %d messages, want 3", len(window))
	}
	for i := 1; i < len(window); i++ {
		if window[i].Entry.CreatedAt.Before(window[i-1].Entry.CreatedAt) {
			t.Errorf("context window not chronological at index %d", i)
		}
	}

	// Generate a reply through the gateway; the second identical request must
	// come from the cache.
	backend, err := cache.NewMemoryBackend(100)
	if err != nil {
		t.Fatalf("failed to create cache backend: %v", err)
	}
	c := cache.New(backend)
	defer func() { _ = c.Close() }()

	primary := &mockGenProvider{name: "primary"}
	gateway, err := provider.NewGateway([]types.GenerationProvider{primary}, c)
	if err != nil {
		t.Fatalf("failed to create gateway: %v", err)
	}

	req := types.GenerationRequest{Prompt: "summarize the pricing discussion"}
	first, err := gateway.GenerateContent(ctx, req)
	if err != nil {
		t.Fatalf("generation failed: %v", err)
	}
	second, err := gateway.GenerateContent(ctx, req)
	if err != nil {
		t.Fatalf("cached generation failed: %v", err)
	}
	if first != second {
		t.Errorf("cached response differs: %q vs %q", first, second)
	}
	if primary.calls != 1 {
		t.Errorf("backend called %d times, want 1", primary.calls)
	}
}

// Deleting a conversation removes its embeddings from later searches.
func TestConversationCleanup(t *testing.T) {
	ctx := context.Background()

	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "embeddings.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	defer func() { _ = st.Close() }()

	gen, err := embedding.NewGenerator([]types.EmbeddingProvider{newMockEmbedProvider()})
	if err != nil {
		t.Fatalf("failed to create generator: %v", err)
	}
	svc, err := retrieval.NewService(st, gen)
	if err != nil {
		t.Fatalf("failed to create retrieval service: %v", err)
	}

	svc.StoreMessageEmbedding(ctx, &types.MessageEmbedding{
		UserID: "u1", ConversationID: "c1", MessageID: "m1",
		Role: types.RoleUser, Content: "the pricing clause needs a cap",
	})
	svc.StoreMessageEmbedding(ctx, &types.MessageEmbedding{
		UserID: "u1", ConversationID: "c1", MessageID: "m2",
		Role: types.RoleUser, Content: "delivery is due in thirty days",
	})

	if n := svc.DeleteConversationEmbeddings(ctx, "c1"); n != 2 {
		t.Errorf("deleted %d embeddings, want 2", n)
	}

	remaining, err := st.Recent(ctx, "u1", "c1", 10)
	if err != nil {
		t.Fatalf("recent query failed: %v", err)
	}
	if len(remaining) != 0 {
		t.Errorf("%d embeddings remain after conversation delete", len(remaining))
	}
}
