// Package store persists message embeddings and serves nearest-neighbor
// queries over them. It is the system of record for embeddings; callers treat
// it as an external collaborator with its own consistency guarantees.
package store

import (
	"context"
	"errors"

	"github.com/draftwise/aicore/types"
)

var (
	// ErrNotFound is returned when a requested record doesn't exist.
	ErrNotFound = errors.New("not found")

	// ErrVectorSearchUnavailable signals that no database-native vector
	// index exists in this build; callers degrade to a brute-force scan.
	ErrVectorSearchUnavailable = errors.New("native vector search unavailable")
)

// EmbeddingStore is the persistence seam for message embeddings.
type EmbeddingStore interface {
	// Insert stores one embedding record. Records are write-once; inserting
	// a second embedding for the same message id fails.
	Insert(ctx context.Context, entry *types.MessageEmbedding) error

	// SearchVector runs the database-native nearest-neighbor search. It
	// returns ErrVectorSearchUnavailable when the build has no vector
	// index, letting callers fall back to Candidates plus an in-process
	// scan.
	SearchVector(ctx context.Context, query []float32, filters types.SearchFilters) ([]types.SearchResult, error)

	// Candidates returns a bounded, filter-matching candidate set, newest
	// first, for the brute-force similarity path.
	Candidates(ctx context.Context, filters types.SearchFilters, limit int) ([]*types.MessageEmbedding, error)

	// Recent returns the n most recent records for a user, optionally
	// scoped to one conversation, newest first.
	Recent(ctx context.Context, userID, conversationID string, n int) ([]*types.MessageEmbedding, error)

	// DeleteByConversation removes every record for a conversation and
	// returns the count removed.
	DeleteByConversation(ctx context.Context, conversationID string) (int, error)

	// DeleteByMessage removes the record for one message and reports
	// whether anything was removed.
	DeleteByMessage(ctx context.Context, messageID string) (bool, error)

	// Close releases the underlying database handle.
	Close() error
}
