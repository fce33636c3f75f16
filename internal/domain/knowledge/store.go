package knowledge

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"
)

// ErrDocumentNotFound is returned when a document id is unknown.
var ErrDocumentNotFound = errors.New("document not found")

// Store persists documents, their chunks and chunk embeddings in SQLite.
// The schema comes from internal/infra/sqlite migrations.
type Store struct {
	db *sql.DB

	// Logger receives warnings about unreadable stored data; slog.Default() when nil.
	Logger *slog.Logger
}

// NewStore wraps an already-migrated database.
func NewStore(db *sql.DB) *Store { return &Store{db: db} }

// SaveDocument inserts doc and its chunks as one transaction. doc.ID is
// assigned when empty. Chunks start out pending.
func (s *Store) SaveDocument(ctx context.Context, doc *Document, chunks []string) ([]StoredChunk, error) {
	if doc.ID == "" {
		doc.ID = newID()
	}
	meta, err := json.Marshal(doc.Metadata)
	if err != nil {
		return nil, fmt.Errorf("store: encode metadata: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("store: begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO document (id, source, title, content, metadata, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		doc.ID, doc.Metadata[MetaSource], doc.Metadata[MetaTitle], doc.Content, string(meta), now(),
	); err != nil {
		return nil, fmt.Errorf("store: insert document: %w", err)
	}

	stored := make([]StoredChunk, 0, len(chunks))
	for i, text := range chunks {
		c := StoredChunk{ID: newID(), DocumentID: doc.ID, Seq: i, Content: text, Status: EmbeddingStatusPending}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO chunk (id, document_id, seq, content, status) VALUES (?, ?, ?, ?, ?)`,
			c.ID, c.DocumentID, c.Seq, c.Content, string(c.Status),
		); err != nil {
			return nil, fmt.Errorf("store: insert chunk[%d]: %w", i, err)
		}
		stored = append(stored, c)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("store: commit: %w", err)
	}
	return stored, nil
}

// GetDocument loads a document by id.
func (s *Store) GetDocument(ctx context.Context, id string) (*Document, error) {
	var content, meta string
	err := s.db.QueryRowContext(ctx, `SELECT content, metadata FROM document WHERE id = ?`, id).Scan(&content, &meta)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrDocumentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get document: %w", err)
	}

	doc := &Document{ID: id, Content: content, Metadata: map[string]string{}}
	if err := json.Unmarshal([]byte(meta), &doc.Metadata); err != nil {
		return nil, fmt.Errorf("store: decode metadata: %w", err)
	}
	return doc, nil
}

// ListChunks returns a document's chunks in sequence order.
func (s *Store) ListChunks(ctx context.Context, documentID string) ([]StoredChunk, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, seq, content, status FROM chunk WHERE document_id = ? ORDER BY seq`, documentID)
	if err != nil {
		return nil, fmt.Errorf("store: list chunks: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var out []StoredChunk
	for rows.Next() {
		c := StoredChunk{DocumentID: documentID}
		var status string
		if err := rows.Scan(&c.ID, &c.Seq, &c.Content, &status); err != nil {
			return nil, fmt.Errorf("store: scan chunk: %w", err)
		}
		c.Status = EmbeddingStatus(status)
		out = append(out, c)
	}
	return out, rows.Err()
}

// MarkEmbedded stores vec for chunkID and flips the chunk to embedded.
func (s *Store) MarkEmbedded(ctx context.Context, chunkID, model string, vec []float32) error {
	enc, err := json.Marshal(vec)
	if err != nil {
		return fmt.Errorf("store: encode vector: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO embedding (chunk_id, model, vector, created_at) VALUES (?, ?, ?, ?)`,
		chunkID, model, string(enc), now(),
	); err != nil {
		return fmt.Errorf("store: insert embedding: %w", err)
	}
	if err := setStatus(ctx, tx, chunkID, EmbeddingStatusEmbedded); err != nil {
		return err
	}
	return tx.Commit()
}

// MarkFailed flags a chunk whose embedding could not be computed.
func (s *Store) MarkFailed(ctx context.Context, chunkID string) error {
	return setStatus(ctx, s.db, chunkID, EmbeddingStatusFailed)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func setStatus(ctx context.Context, db execer, chunkID string, status EmbeddingStatus) error {
	res, err := db.ExecContext(ctx, `UPDATE chunk SET status = ? WHERE id = ?`, string(status), chunkID)
	if err != nil {
		return fmt.Errorf("store: update chunk status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("store: update chunk status: unknown chunk %q", chunkID)
	}
	return nil
}

// SearchResult is a stored chunk ranked against a query vector.
type SearchResult struct {
	ChunkID    string  `json:"chunk_id"`
	DocumentID string  `json:"document_id"`
	Source     string  `json:"source"`
	Content    string  `json:"content"`
	Score      float32 `json:"score"`
}

// Search ranks every embedded chunk by cosine similarity to query and
// returns the best limit results. Vectors are scored in memory.
func (s *Store) Search(ctx context.Context, query []float32, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 5
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.document_id, d.source, c.content, e.vector
		FROM embedding e
		JOIN chunk c ON c.id = e.chunk_id
		JOIN document d ON d.id = c.document_id
		WHERE c.status = 'embedded'`)
	if err != nil {
		return nil, fmt.Errorf("store: search: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var results []SearchResult
	for rows.Next() {
		var r SearchResult
		var enc string
		if err := rows.Scan(&r.ChunkID, &r.DocumentID, &r.Source, &r.Content, &enc); err != nil {
			return nil, fmt.Errorf("store: scan search row: %w", err)
		}
		var vec []float32
		if err := json.Unmarshal([]byte(enc), &vec); err != nil {
			s.logger().Warn("skipping chunk with unreadable embedding", "chunk_id", r.ChunkID, "error", err)
			continue
		}
		r.Score = cosineSimilarity(query, vec)
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: search: %w", err)
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func (s *Store) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

// cosineSimilarity returns 0 for mismatched lengths or zero vectors.
func cosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	denom := math.Sqrt(normA) * math.Sqrt(normB)
	if denom == 0 {
		return 0
	}
	return float32(dot / denom)
}

func now() string { return time.Now().UTC().Format(time.RFC3339Nano) }
