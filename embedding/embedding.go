// Package embedding maps text to fixed-dimension vectors via interchangeable
// backends with ordered fallback. Embeddings are generated once and persisted
// by callers, so this layer does no response caching.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/draftwise/aicore/types"
)

var (
	// ErrEmptyText is returned for empty or whitespace-only input. Validation
	// failures are raised immediately, never retried across backends.
	ErrEmptyText = errors.New("text cannot be empty")

	// ErrBatchUnsupported is returned by providers without a multi-input API.
	ErrBatchUnsupported = errors.New("provider does not support batch embedding")

	// ErrAllProvidersFailed is returned once every configured backend has
	// been exhausted.
	ErrAllProvidersFailed = errors.New("all embedding providers failed")
)

// Generator produces embeddings through an ordered provider chain: the
// preferred backend first, then each remaining backend, until one succeeds.
type Generator struct {
	providers []types.EmbeddingProvider
	truncator *Truncator
	log       *zap.Logger
}

// GeneratorOption configures a Generator.
type GeneratorOption func(*Generator)

// WithGeneratorLogger sets the logger used for fallback transitions.
func WithGeneratorLogger(log *zap.Logger) GeneratorOption {
	return func(g *Generator) {
		if log != nil {
			g.log = log
		}
	}
}

// NewGenerator creates a Generator over the given providers in priority order.
func NewGenerator(providers []types.EmbeddingProvider, opts ...GeneratorOption) (*Generator, error) {
	if len(providers) == 0 {
		return nil, errors.New("at least one embedding provider is required")
	}

	truncator, err := NewTruncator()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize truncator: %w", err)
	}

	g := &Generator{
		providers: providers,
		truncator: truncator,
		log:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// GenerateEmbedding embeds text, preferring the named provider and falling
// back through the remaining chain. Overlong input is truncated to each
// backend's accepted maximum rather than rejected.
func (g *Generator) GenerateEmbedding(ctx context.Context, text, preferredProvider string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}

	var lastErr error
	for _, provider := range g.ordered(preferredProvider) {
		if !provider.Available() {
			continue
		}

		input := g.truncator.Truncate(text, provider.MaxInputTokens())
		vector, err := provider.EmbedText(ctx, input)
		if err == nil {
			return vector, nil
		}

		lastErr = err
		g.log.Warn("embedding provider failed, trying next",
			zap.String("provider", provider.Name()),
			zap.Error(err))
	}

	if lastErr != nil {
		return nil, fmt.Errorf("%w: %w", ErrAllProvidersFailed, lastErr)
	}
	return nil, ErrAllProvidersFailed
}

// GenerateEmbeddingsBatch embeds several texts through the named provider,
// using its multi-input call when available. A failed batch call degrades to
// sequential per-text calls instead of failing the whole batch.
func (g *Generator) GenerateEmbeddingsBatch(ctx context.Context, texts []string, provider string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, ErrEmptyText
	}
	for _, text := range texts {
		if strings.TrimSpace(text) == "" {
			return nil, ErrEmptyText
		}
	}

	for _, p := range g.ordered(provider) {
		if !p.Available() {
			continue
		}

		inputs := make([]string, len(texts))
		for i, text := range texts {
			inputs[i] = g.truncator.Truncate(text, p.MaxInputTokens())
		}

		vectors, err := p.EmbedBatch(ctx, inputs)
		if err == nil {
			return vectors, nil
		}
		if !errors.Is(err, ErrBatchUnsupported) {
			g.log.Warn("batch embedding failed, degrading to sequential calls",
				zap.String("provider", p.Name()),
				zap.Error(err))
		}
		break
	}

	return g.sequentialBatch(ctx, texts, provider)
}

// sequentialBatch is the degraded per-text path, still subject to the full
// provider fallback chain for each element.
func (g *Generator) sequentialBatch(ctx context.Context, texts []string, provider string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vector, err := g.GenerateEmbedding(ctx, text, provider)
		if err != nil {
			return nil, fmt.Errorf("embedding text %d: %w", i, err)
		}
		vectors[i] = vector
	}
	return vectors, nil
}

// HealthCheck probes each provider with a minimal embedding request and
// returns a per-provider availability map. It never returns an error.
func (g *Generator) HealthCheck(ctx context.Context) map[string]bool {
	health := make(map[string]bool, len(g.providers))
	for _, provider := range g.providers {
		if !provider.Available() {
			health[provider.Name()] = false
			continue
		}
		_, err := provider.EmbedText(ctx, "ping")
		health[provider.Name()] = err == nil
	}
	return health
}

// Close releases every provider's resources.
func (g *Generator) Close() error {
	var firstErr error
	for _, provider := range g.providers {
		if err := provider.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// ordered returns the provider chain with the preferred provider moved to the
// front. An unknown or empty name leaves the configured order untouched.
func (g *Generator) ordered(preferred string) []types.EmbeddingProvider {
	if preferred == "" {
		return g.providers
	}
	for i, provider := range g.providers {
		if provider.Name() != preferred {
			continue
		}
		ordered := make([]types.EmbeddingProvider, 0, len(g.providers))
		ordered = append(ordered, provider)
		ordered = append(ordered, g.providers[:i]...)
		ordered = append(ordered, g.providers[i+1:]...)
		return ordered
	}
	return g.providers
}
