// Package provider produces generated text from a prompt via interchangeable
// external backends with ordered fallback, response caching, and
// per-conversation backend affinity.
package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/draftwise/aicore/cache"
	"github.com/draftwise/aicore/types"
)

var (
	// ErrEmptyPrompt is returned for empty or whitespace-only prompts.
	ErrEmptyPrompt = errors.New("prompt cannot be empty")

	// ErrAllProvidersFailed is returned once every configured backend has
	// been exhausted.
	ErrAllProvidersFailed = errors.New("all generation providers failed")
)

const (
	// DefaultCacheTTL retains generated responses when the request does not
	// set its own TTL.
	DefaultCacheTTL = time.Hour

	// DefaultAffinityTTL is how long a conversation remembers its last
	// successful provider. Each success refreshes it.
	DefaultAffinityTTL = 24 * time.Hour

	affinityKeyPrefix = "affinity:"
)

// Gateway fronts an ordered list of generation providers. Transient failures
// and configuration failures are handled identically: skip to the next
// backend. The distinction matters only for logging.
type Gateway struct {
	providers   []types.GenerationProvider
	cache       *cache.Cache
	log         *zap.Logger
	cacheTTL    time.Duration
	affinityTTL time.Duration
}

// GatewayOption configures a Gateway.
type GatewayOption func(*Gateway)

// WithGatewayLogger sets the logger used for fallback transitions.
func WithGatewayLogger(log *zap.Logger) GatewayOption {
	return func(g *Gateway) {
		if log != nil {
			g.log = log
		}
	}
}

// WithDefaultCacheTTL overrides the response cache TTL used when a request
// does not carry one.
func WithDefaultCacheTTL(d time.Duration) GatewayOption {
	return func(g *Gateway) {
		if d > 0 {
			g.cacheTTL = d
		}
	}
}

// WithAffinityTTL overrides how long conversation affinity is remembered.
func WithAffinityTTL(d time.Duration) GatewayOption {
	return func(g *Gateway) {
		if d > 0 {
			g.affinityTTL = d
		}
	}
}

// NewGateway creates a Gateway over providers in priority order. The cache is
// injected, never constructed here; its lifecycle belongs to the caller.
func NewGateway(providers []types.GenerationProvider, c *cache.Cache, opts ...GatewayOption) (*Gateway, error) {
	if len(providers) == 0 {
		return nil, errors.New("at least one generation provider is required")
	}
	if c == nil {
		return nil, errors.New("cache is required")
	}

	g := &Gateway{
		providers:   providers,
		cache:       c,
		log:         zap.NewNop(),
		cacheTTL:    DefaultCacheTTL,
		affinityTTL: DefaultAffinityTTL,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// GenerateContent produces text for the request. A cached response is
// returned without calling any backend; otherwise providers are tried in
// priority order and the first success is cached and returned.
func (g *Gateway) GenerateContent(ctx context.Context, req types.GenerationRequest) (string, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return "", ErrEmptyPrompt
	}

	key := responseCacheKey(req)
	if cached, ok := g.cache.Get(ctx, key); ok {
		if text, ok := cached.(string); ok {
			return text, nil
		}
	}

	var lastErr error
	for _, p := range g.providers {
		if !p.Available() {
			g.log.Debug("skipping unconfigured provider", zap.String("provider", p.Name()))
			continue
		}

		text, err := p.Generate(ctx, req)
		if err == nil {
			g.cacheResponse(ctx, key, text, req.CacheTTL)
			return text, nil
		}

		lastErr = err
		g.log.Warn("generation provider failed, trying next",
			zap.String("provider", p.Name()),
			zap.Error(err))
	}

	if lastErr != nil {
		return "", fmt.Errorf("%w: %w", ErrAllProvidersFailed, lastErr)
	}
	return "", ErrAllProvidersFailed
}

// GenerateForConversation is the conversation-scoped variant: the provider
// that last served this conversation is tried first, keeping style and tone
// consistent across turns. On failure it switches to the alternate, persists
// the new affinity, and retries exactly once more.
func (g *Gateway) GenerateForConversation(ctx context.Context, conversationID string, req types.GenerationRequest) (string, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return "", ErrEmptyPrompt
	}

	key := responseCacheKey(req)
	if cached, ok := g.cache.Get(ctx, key); ok {
		if text, ok := cached.(string); ok {
			return text, nil
		}
	}

	preferred := g.rememberedProvider(ctx, conversationID)
	if preferred == nil {
		return "", ErrAllProvidersFailed
	}

	text, err := preferred.Generate(ctx, req)
	if err == nil {
		g.rememberProvider(ctx, conversationID, preferred.Name())
		g.cacheResponse(ctx, key, text, req.CacheTTL)
		return text, nil
	}

	alternate := g.alternateTo(preferred)
	if alternate == nil {
		return "", fmt.Errorf("%w: %w", ErrAllProvidersFailed, err)
	}

	g.log.Warn("conversation provider failed, switching affinity",
		zap.String("conversation_id", conversationID),
		zap.String("from", preferred.Name()),
		zap.String("to", alternate.Name()),
		zap.Error(err))
	g.rememberProvider(ctx, conversationID, alternate.Name())

	text, err = alternate.Generate(ctx, req)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrAllProvidersFailed, err)
	}

	g.rememberProvider(ctx, conversationID, alternate.Name())
	g.cacheResponse(ctx, key, text, req.CacheTTL)
	return text, nil
}

// HealthCheck probes each backend with a minimal request and returns a
// per-backend availability map. It never returns an error: an unreachable or
// unconfigured backend simply reports unavailable.
func (g *Gateway) HealthCheck(ctx context.Context) map[string]bool {
	health := make(map[string]bool, len(g.providers))
	for _, p := range g.providers {
		if !p.Available() {
			health[p.Name()] = false
			continue
		}
		health[p.Name()] = p.HealthCheck(ctx) == nil
	}
	return health
}

func (g *Gateway) cacheResponse(ctx context.Context, key, text string, ttl time.Duration) {
	if ttl <= 0 {
		ttl = g.cacheTTL
	}
	g.cache.Set(ctx, key, text, ttl)
}

// rememberedProvider resolves the conversation's affinity to a provider,
// defaulting to the primary. Affinity is best-effort: a lost entry only causes
// reselection of the default, never a failure.
func (g *Gateway) rememberedProvider(ctx context.Context, conversationID string) types.GenerationProvider {
	if cached, ok := g.cache.Get(ctx, affinityKeyPrefix+conversationID); ok {
		if name, ok := cached.(string); ok {
			for _, p := range g.providers {
				if p.Name() == name && p.Available() {
					return p
				}
			}
		}
	}
	for _, p := range g.providers {
		if p.Available() {
			return p
		}
	}
	return nil
}

func (g *Gateway) rememberProvider(ctx context.Context, conversationID, name string) {
	g.cache.Set(ctx, affinityKeyPrefix+conversationID, name, g.affinityTTL)
}

// alternateTo returns the first available provider other than p, or nil.
func (g *Gateway) alternateTo(p types.GenerationProvider) types.GenerationProvider {
	for _, candidate := range g.providers {
		if candidate.Name() != p.Name() && candidate.Available() {
			return candidate
		}
	}
	return nil
}
