package db

import (
	"context"

	"github.com/google/uuid"

	"github.com/shelfmate-ai/companion/internal/embeddings"
	"github.com/shelfmate-ai/companion/internal/retrieval"
)

// VectorSearcher implements the retriever's similarity-search contract on top
// of the embedding model and the chunks table
type VectorSearcher struct {
	db  *DB
	emb *embeddings.TextEmbedder
}

// NewVectorSearcher creates a vector searcher
func NewVectorSearcher(db *DB, emb *embeddings.TextEmbedder) *VectorSearcher {
	return &VectorSearcher{db: db, emb: emb}
}

// Search ranks chunks by semantic similarity to the query within the given
// per-book offset-ceiling scope
func (s *VectorSearcher) Search(ctx context.Context, query string, scope map[uuid.UUID]int, topK int) ([]retrieval.Chunk, error) {
	if len(scope) == 0 || topK <= 0 {
		return nil, nil
	}

	embedding, err := s.emb.Embed(ctx, query)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.SearchSimilarChunks(ctx, embedding, scope, topK)
	if err != nil {
		return nil, err
	}

	chunks := make([]retrieval.Chunk, 0, len(rows))
	for _, r := range rows {
		chunks = append(chunks, retrieval.Chunk{
			ID:          r.ID,
			BookID:      r.BookID,
			Text:        r.Content,
			StartOffset: r.StartOffset,
			EndOffset:   r.EndOffset,
		})
	}
	return chunks, nil
}

// ModelReady reports whether the embedding backend is reachable
func (s *VectorSearcher) ModelReady(ctx context.Context) bool {
	return s.emb.Ready(ctx)
}
