package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/draftwise/aicore/types"
)

// SQLiteStore implements EmbeddingStore using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// openDatabase opens a SQLite database with appropriate settings.
func openDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	// WAL mode for better concurrency under mixed read/write load.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// SQLite benefits from a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

// NewSQLiteStore opens (or creates) the embedding database at dbPath and
// applies migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := ApplyMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Insert stores one embedding record. A missing id or timestamp is filled in.
func (s *SQLiteStore) Insert(ctx context.Context, entry *types.MessageEmbedding) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	var metadata any
	if len(entry.Metadata) > 0 {
		data, err := json.Marshal(entry.Metadata)
		if err != nil {
			return fmt.Errorf("failed to encode metadata: %w", err)
		}
		metadata = string(data)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO message_embeddings
			(id, user_id, conversation_id, message_id, role, content, vector, dimension, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.UserID, entry.ConversationID, entry.MessageID, string(entry.Role),
		entry.Content, serializeVector(entry.Vector), len(entry.Vector), metadata, entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert embedding: %w", err)
	}
	return nil
}

// SearchVector runs the nearest-neighbor search at the database layer using
// the sqlite-vec extension. Builds without the extension report
// ErrVectorSearchUnavailable so callers can degrade.
func (s *SQLiteStore) SearchVector(ctx context.Context, query []float32, filters types.SearchFilters) ([]types.SearchResult, error) {
	if !VectorExtensionAvailable {
		return nil, ErrVectorSearchUnavailable
	}
	if filters.Limit <= 0 {
		return []types.SearchResult{}, nil
	}

	// vec_distance_cosine returns distance (lower is better); converted to
	// similarity for a uniform result shape with the fallback path.
	queryBlob := serializeVector(query)
	sqlQuery := `
		SELECT id, user_id, conversation_id, message_id, role, content, vector, metadata, created_at,
		       1.0 - vec_distance_cosine(vector, ?) AS similarity
		FROM message_embeddings
		WHERE 1=1`
	args := []any{queryBlob}

	where, whereArgs := buildFilterClause(filters)
	sqlQuery += where
	args = append(args, whereArgs...)

	if filters.MinSimilarity > 0 {
		sqlQuery += " AND (1.0 - vec_distance_cosine(vector, ?)) >= ?"
		args = append(args, queryBlob, filters.MinSimilarity)
	}

	sqlQuery += " ORDER BY similarity DESC LIMIT ?"
	args = append(args, filters.Limit)

	rows, err := s.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute vector search: %w", err)
	}
	defer func() { _ = rows.Close() }()

	results := make([]types.SearchResult, 0, filters.Limit)
	for rows.Next() {
		entry, similarity, err := scanScoredRow(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, types.SearchResult{Entry: entry, Similarity: similarity})
	}
	return results, rows.Err()
}

// Candidates returns a bounded, filter-matching candidate set, newest first.
func (s *SQLiteStore) Candidates(ctx context.Context, filters types.SearchFilters, limit int) ([]*types.MessageEmbedding, error) {
	if limit <= 0 {
		return []*types.MessageEmbedding{}, nil
	}

	sqlQuery := `
		SELECT id, user_id, conversation_id, message_id, role, content, vector, metadata, created_at
		FROM message_embeddings
		WHERE 1=1`
	where, args := buildFilterClause(filters)
	sqlQuery += where + " ORDER BY created_at DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query candidates: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return collectEntries(rows)
}

// Recent returns the n most recent records for a user, optionally scoped to
// one conversation, newest first.
func (s *SQLiteStore) Recent(ctx context.Context, userID, conversationID string, n int) ([]*types.MessageEmbedding, error) {
	if n <= 0 {
		return []*types.MessageEmbedding{}, nil
	}

	sqlQuery := `
		SELECT id, user_id, conversation_id, message_id, role, content, vector, metadata, created_at
		FROM message_embeddings
		WHERE user_id = ?`
	args := []any{userID}

	if conversationID != "" {
		sqlQuery += " AND conversation_id = ?"
		args = append(args, conversationID)
	}

	sqlQuery += " ORDER BY created_at DESC LIMIT ?"
	args = append(args, n)

	rows, err := s.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent embeddings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return collectEntries(rows)
}

// DeleteByConversation removes every record for a conversation.
func (s *SQLiteStore) DeleteByConversation(ctx context.Context, conversationID string) (int, error) {
	result, err := s.db.ExecContext(ctx,
		"DELETE FROM message_embeddings WHERE conversation_id = ?", conversationID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete conversation embeddings: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(affected), nil
}

// DeleteByMessage removes the record for one message.
func (s *SQLiteStore) DeleteByMessage(ctx context.Context, messageID string) (bool, error) {
	result, err := s.db.ExecContext(ctx,
		"DELETE FROM message_embeddings WHERE message_id = ?", messageID)
	if err != nil {
		return false, fmt.Errorf("failed to delete message embedding: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// buildFilterClause renders the shared WHERE fragment for user, conversation,
// metadata, and id-exclusion filters.
func buildFilterClause(filters types.SearchFilters) (string, []any) {
	var sb strings.Builder
	var args []any

	if filters.UserID != "" {
		sb.WriteString(" AND user_id = ?")
		args = append(args, filters.UserID)
	}
	if filters.ConversationID != "" {
		sb.WriteString(" AND conversation_id = ?")
		args = append(args, filters.ConversationID)
	}
	for key, value := range filters.Metadata {
		sb.WriteString(" AND json_extract(metadata, ?) = ?")
		args = append(args, "$."+key, value)
	}
	if len(filters.ExcludeIDs) > 0 {
		sb.WriteString(" AND message_id NOT IN (")
		for i, id := range filters.ExcludeIDs {
			if i > 0 {
				sb.WriteString(",")
			}
			sb.WriteString("?")
			args = append(args, id)
		}
		sb.WriteString(")")
	}

	return sb.String(), args
}

func collectEntries(rows *sql.Rows) ([]*types.MessageEmbedding, error) {
	entries := make([]*types.MessageEmbedding, 0)
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func scanEntry(rows *sql.Rows) (*types.MessageEmbedding, error) {
	var entry types.MessageEmbedding
	var role string
	var vectorBlob []byte
	var metadata sql.NullString

	if err := rows.Scan(&entry.ID, &entry.UserID, &entry.ConversationID, &entry.MessageID,
		&role, &entry.Content, &vectorBlob, &metadata, &entry.CreatedAt); err != nil {
		return nil, fmt.Errorf("failed to scan embedding: %w", err)
	}

	entry.Role = types.Role(role)
	entry.Vector = deserializeVector(vectorBlob)
	if metadata.Valid && metadata.String != "" {
		if err := json.Unmarshal([]byte(metadata.String), &entry.Metadata); err != nil {
			return nil, fmt.Errorf("failed to decode metadata: %w", err)
		}
	}
	return &entry, nil
}

func scanScoredRow(rows *sql.Rows) (*types.MessageEmbedding, float64, error) {
	var entry types.MessageEmbedding
	var role string
	var vectorBlob []byte
	var metadata sql.NullString
	var similarity float64

	if err := rows.Scan(&entry.ID, &entry.UserID, &entry.ConversationID, &entry.MessageID,
		&role, &entry.Content, &vectorBlob, &metadata, &entry.CreatedAt, &similarity); err != nil {
		return nil, 0, fmt.Errorf("failed to scan scored embedding: %w", err)
	}

	entry.Role = types.Role(role)
	entry.Vector = deserializeVector(vectorBlob)
	if metadata.Valid && metadata.String != "" {
		if err := json.Unmarshal([]byte(metadata.String), &entry.Metadata); err != nil {
			return nil, 0, fmt.Errorf("failed to decode metadata: %w", err)
		}
	}
	return &entry, similarity, nil
}
