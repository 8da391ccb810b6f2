// Package retrieval persists one embedding per non-system conversational
// message and assembles semantically relevant context windows for generation
// calls. Storage is best-effort: a failed embedding write never blocks or
// fails the conversational write that triggered it.
package retrieval

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/draftwise/aicore/embedding"
	"github.com/draftwise/aicore/similarity"
	"github.com/draftwise/aicore/store"
	"github.com/draftwise/aicore/types"
)

const (
	// DefaultNativeOversample widens the native index search relative to the
	// requested limit so threshold filtering still fills the window.
	DefaultNativeOversample = 10

	// DefaultFallbackOversample bounds the candidate set for the in-process
	// similarity scan.
	DefaultFallbackOversample = 3

	// DefaultThreshold is the minimum similarity for a semantic match.
	DefaultThreshold = 0.7

	// dedupPrefixLen is how many leading runes of content identify a message
	// when merging recent and semantic candidates.
	dedupPrefixLen = 64
)

// ErrEmptyQuery is returned when a search is given no query text.
var ErrEmptyQuery = errors.New("query text cannot be empty")

// Service stores message embeddings and retrieves relevant prior context.
type Service struct {
	store    store.EmbeddingStore
	embedder *embedding.Generator
	log      *zap.Logger

	nativeOversample   int
	fallbackOversample int
	defaultThreshold   float64
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger for storage and degrade events.
func WithLogger(log *zap.Logger) Option {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}

// WithOversampling overrides the native and fallback oversampling factors.
// The right values depend on embedding quality and corpus size, so they are
// tunable rather than fixed. Non-positive values keep the defaults.
func WithOversampling(native, fallback int) Option {
	return func(s *Service) {
		if native > 0 {
			s.nativeOversample = native
		}
		if fallback > 0 {
			s.fallbackOversample = fallback
		}
	}
}

// WithDefaultThreshold overrides the similarity threshold applied when a
// search does not specify one.
func WithDefaultThreshold(threshold float64) Option {
	return func(s *Service) {
		if threshold > 0 {
			s.defaultThreshold = threshold
		}
	}
}

// NewService creates a retrieval Service over the given store and embedder.
func NewService(st store.EmbeddingStore, embedder *embedding.Generator, opts ...Option) (*Service, error) {
	if st == nil {
		return nil, errors.New("embedding store is required")
	}
	if embedder == nil {
		return nil, errors.New("embedding generator is required")
	}

	s := &Service{
		store:              st,
		embedder:           embedder,
		log:                zap.NewNop(),
		nativeOversample:   DefaultNativeOversample,
		fallbackOversample: DefaultFallbackOversample,
		defaultThreshold:   DefaultThreshold,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// StoreMessageEmbedding embeds and persists one message. System-role messages
// are skipped. Every failure is logged and swallowed; the return value reports
// whether the record was actually stored.
func (s *Service) StoreMessageEmbedding(ctx context.Context, entry *types.MessageEmbedding) bool {
	if entry == nil || entry.Role == types.RoleSystem {
		return false
	}

	vector, err := s.embedder.GenerateEmbedding(ctx, entry.Content, "")
	if err != nil {
		s.log.Warn("skipping message embedding, generation failed",
			zap.String("message_id", entry.MessageID),
			zap.Error(err))
		return false
	}
	entry.Vector = vector

	if err := s.store.Insert(ctx, entry); err != nil {
		s.log.Warn("skipping message embedding, insert failed",
			zap.String("message_id", entry.MessageID),
			zap.Error(err))
		return false
	}
	return true
}

// StoreMessageEmbeddingsBatch stores many messages concurrently. Individual
// failures are tolerated; the returned slice holds only the entries actually
// stored, in input order.
func (s *Service) StoreMessageEmbeddingsBatch(ctx context.Context, entries []*types.MessageEmbedding) []*types.MessageEmbedding {
	if len(entries) == 0 {
		return nil
	}

	stored := make([]bool, len(entries))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	for i, entry := range entries {
		g.Go(func() error {
			ok := s.StoreMessageEmbedding(gctx, entry)
			mu.Lock()
			stored[i] = ok
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	result := make([]*types.MessageEmbedding, 0, len(entries))
	for i, entry := range entries {
		if stored[i] {
			result = append(result, entry)
		}
	}
	return result
}

// SearchOptions scope a similarity search.
type SearchOptions struct {
	ConversationID string
	Limit          int
	// Threshold drops matches below this similarity; zero uses the service
	// default.
	Threshold  float64
	ExcludeIDs []string
	Metadata   map[string]string
}

// FindSimilarContext embeds the query and returns the most similar stored
// messages for the user, ordered by descending similarity. The native vector
// index is preferred; when it is unavailable or errors, the search degrades to
// a bounded in-process similarity scan with the same result shape.
func (s *Service) FindSimilarContext(ctx context.Context, userID, queryText string, opts SearchOptions) ([]types.SearchResult, error) {
	if strings.TrimSpace(queryText) == "" {
		return nil, ErrEmptyQuery
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = 5
	}
	threshold := opts.Threshold
	if threshold <= 0 {
		threshold = s.defaultThreshold
	}

	query, err := s.embedder.GenerateEmbedding(ctx, queryText, "")
	if err != nil {
		return nil, err
	}

	filters := types.SearchFilters{
		UserID:         userID,
		ConversationID: opts.ConversationID,
		Metadata:       opts.Metadata,
		ExcludeIDs:     opts.ExcludeIDs,
		Limit:          limit * s.nativeOversample,
		MinSimilarity:  threshold,
	}

	results, err := s.store.SearchVector(ctx, query, filters)
	if err != nil {
		if !errors.Is(err, store.ErrVectorSearchUnavailable) {
			s.log.Warn("native vector search failed, using similarity scan", zap.Error(err))
		}
		return s.scanSimilar(ctx, query, filters, limit, threshold)
	}

	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// scanSimilar is the degraded search path: fetch a bounded candidate set and
// score it in-process with cosine similarity.
func (s *Service) scanSimilar(ctx context.Context, query []float32, filters types.SearchFilters, limit int, threshold float64) ([]types.SearchResult, error) {
	candidates, err := s.store.Candidates(ctx, filters, limit*s.fallbackOversample)
	if err != nil {
		return nil, err
	}

	results := make([]types.SearchResult, 0, len(candidates))
	for _, candidate := range candidates {
		score := similarity.CosineSimilarity(query, candidate.Vector)
		if score < threshold {
			continue
		}
		results = append(results, types.SearchResult{Entry: candidate, Similarity: score})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Similarity > results[j].Similarity
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// ContextOptions scope a merged context window.
type ContextOptions struct {
	ConversationID string
	RecentLimit    int
	SemanticLimit  int
	Threshold      float64
}

// GetRelevantContext merges the most recent messages of the conversation with
// the top semantic matches for the query, de-duplicated by content prefix and
// ordered chronologically (oldest first), ready to feed a generation call.
// A failed semantic search degrades to the recency window alone.
func (s *Service) GetRelevantContext(ctx context.Context, userID, queryText string, opts ContextOptions) ([]types.ContextMessage, error) {
	recentLimit := opts.RecentLimit
	if recentLimit <= 0 {
		recentLimit = 5
	}
	semanticLimit := opts.SemanticLimit
	if semanticLimit <= 0 {
		semanticLimit = 5
	}

	recent, err := s.store.Recent(ctx, userID, opts.ConversationID, recentLimit)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, recentLimit+semanticLimit)
	merged := make([]types.ContextMessage, 0, recentLimit+semanticLimit)
	for _, entry := range recent {
		key := contentPrefix(entry.Content)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		merged = append(merged, types.ContextMessage{Entry: entry, Source: types.ContextSourceRecent})
	}

	matches, err := s.FindSimilarContext(ctx, userID, queryText, SearchOptions{
		ConversationID: opts.ConversationID,
		Limit:          semanticLimit,
		Threshold:      opts.Threshold,
	})
	if err != nil {
		s.log.Warn("semantic context lookup failed, returning recency window only", zap.Error(err))
	}
	for _, match := range matches {
		key := contentPrefix(match.Entry.Content)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		merged = append(merged, types.ContextMessage{
			Entry:      match.Entry,
			Source:     types.ContextSourceSemantic,
			Similarity: match.Similarity,
		})
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Entry.CreatedAt.Before(merged[j].Entry.CreatedAt)
	})
	return merged, nil
}

// DeleteConversationEmbeddings removes every embedding of a conversation.
// Errors are logged and swallowed; the count reflects what was removed.
func (s *Service) DeleteConversationEmbeddings(ctx context.Context, conversationID string) int {
	count, err := s.store.DeleteByConversation(ctx, conversationID)
	if err != nil {
		s.log.Warn("failed to delete conversation embeddings",
			zap.String("conversation_id", conversationID),
			zap.Error(err))
		return 0
	}
	return count
}

// DeleteMessageEmbedding removes the embedding of one message. Errors are
// logged and swallowed.
func (s *Service) DeleteMessageEmbedding(ctx context.Context, messageID string) bool {
	deleted, err := s.store.DeleteByMessage(ctx, messageID)
	if err != nil {
		s.log.Warn("failed to delete message embedding",
			zap.String("message_id", messageID),
			zap.Error(err))
		return false
	}
	return deleted
}

// contentPrefix returns the de-duplication key for a message: its first
// dedupPrefixLen runes, whitespace-trimmed.
func contentPrefix(content string) string {
	content = strings.TrimSpace(content)
	runes := []rune(content)
	if len(runes) > dedupPrefixLen {
		runes = runes[:dedupPrefixLen]
	}
	return string(runes)
}
