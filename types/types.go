// Package types holds the shared data model and capability interfaces for the
// generation, embedding, and context-retrieval layers.
package types

import (
	"context"
	"time"
)

// Role identifies the author of a conversational message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// MessageEmbedding is one stored vector per non-system conversational message.
// Records are write-once / read-many; they are only removed by cascade deletes.
type MessageEmbedding struct {
	ID             string
	UserID         string
	ConversationID string
	MessageID      string
	Role           Role
	Content        string
	Vector         []float32
	Metadata       map[string]string
	CreatedAt      time.Time
}

// GenerationRequest carries the parameters of one text-generation call.
// It is ephemeral and never persisted.
type GenerationRequest struct {
	Prompt       string
	SystemPrompt string
	Temperature  float64
	MaxTokens    int
	// Model overrides the provider's default variant chain with a single model.
	Model    string
	CacheTTL time.Duration
}

// GenerationProvider is one external text-generation backend. A provider may
// internally retry across several named model variants before failing.
type GenerationProvider interface {
	// Generate produces text for the request, or an error once every model
	// variant the provider knows has been exhausted.
	Generate(ctx context.Context, req GenerationRequest) (string, error)

	// Name returns the stable provider name used for affinity and logging.
	Name() string

	// Available reports whether the provider is configured (credentials
	// present). Unconfigured providers are skipped in fallback chains.
	Available() bool

	// HealthCheck probes the backend with a minimal request.
	HealthCheck(ctx context.Context) error
}

// EmbeddingProvider maps text to fixed-dimension vectors.
type EmbeddingProvider interface {
	// EmbedText turns a piece of text into its embedding vector.
	EmbedText(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch embeds several texts. Providers without a multi-input API
	// return ErrBatchUnsupported and callers degrade to per-text calls.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Name returns the stable provider name.
	Name() string

	// Available reports whether the provider is configured.
	Available() bool

	// Dimension returns the vector length this provider produces.
	Dimension() int

	// MaxInputTokens returns the largest input the backend accepts; longer
	// input is truncated, not rejected.
	MaxInputTokens() int

	// Close frees any resources held by the provider.
	Close() error
}

// SearchFilters scope a nearest-neighbor search over stored embeddings.
type SearchFilters struct {
	UserID         string
	ConversationID string            // empty means all conversations for the user
	Metadata       map[string]string // every pair must match
	ExcludeIDs     []string          // message ids to drop from results
	Limit          int
	MinSimilarity  float64
}

// SearchResult is one scored match from either search path.
type SearchResult struct {
	Entry      *MessageEmbedding
	Similarity float64
}

// ContextMessage is one element of a merged conversational context window.
type ContextMessage struct {
	Entry *MessageEmbedding
	// Source records which candidate set contributed the message.
	Source string
	// Similarity is set for semantic matches, zero for recency picks.
	Similarity float64
}

const (
	ContextSourceRecent   = "recent"
	ContextSourceSemantic = "semantic"
)
