package knowledge

import (
	"context"
	"fmt"
	"log/slog"
)

// Loader fetches a Document from a URL. *WebLoader satisfies it.
type Loader interface {
	Load(ctx context.Context, url string) (*Document, error)
}

// IngestResult summarises one Ingest call.
type IngestResult struct {
	Document *Document     `json:"document"`
	Chunks   []StoredChunk `json:"chunks"`
	Embedded int           `json:"embedded"`
	Failed   int           `json:"failed"`
}

// Ingestor runs load → save → chunk → embed → store for one URL.
type Ingestor struct {
	Loader   Loader
	Store    *Store
	Embedder *Embedder
	Logger   *slog.Logger

	ChunkSize int
	Overlap   int
}

// Ingest loads url, stores it and embeds every chunk. A chunk whose
// embedding fails after retries is marked failed and the rest continue;
// only load and storage errors abort the call.
func (i *Ingestor) Ingest(ctx context.Context, url string) (*IngestResult, error) {
	logger := i.Logger
	if logger == nil {
		logger = slog.Default()
	}

	doc, err := i.Loader.Load(ctx, url)
	if err != nil {
		return nil, err
	}

	size, overlap := i.ChunkSize, i.Overlap
	if size <= 0 {
		size, overlap = DefaultChunkSize, DefaultChunkOverlap
	}
	chunks, err := i.Store.SaveDocument(ctx, doc, Chunk(doc.Content, size, overlap))
	if err != nil {
		return nil, err
	}

	res := &IngestResult{Document: doc, Chunks: chunks}
	if i.Embedder == nil {
		return res, nil
	}

	model := i.Embedder.ModelName()
	for idx := range res.Chunks {
		c := &res.Chunks[idx]
		vec, embedErr := i.Embedder.EmbedQuery(ctx, c.Content)
		if embedErr != nil {
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			logger.Warn("chunk embedding failed", "document_id", doc.ID, "seq", c.Seq, "error", embedErr)
			if err := i.Store.MarkFailed(ctx, c.ID); err != nil {
				return res, err
			}
			c.Status = EmbeddingStatusFailed
			res.Failed++
			continue
		}
		if err := i.Store.MarkEmbedded(ctx, c.ID, model, vec); err != nil {
			return res, fmt.Errorf("ingest: chunk %d: %w", c.Seq, err)
		}
		c.Status = EmbeddingStatusEmbedded
		res.Embedded++
	}

	logger.Debug("document ingested", "document_id", doc.ID, "chunks", len(res.Chunks),
		"embedded", res.Embedded, "failed", res.Failed)
	return res, nil
}
