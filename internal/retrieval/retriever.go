package retrieval

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/shelfmate-ai/companion/internal/logging"
)

// NoCeiling requests an unbounded search scope for a book
const NoCeiling = -1

// candidateCap bounds the phase-1 pull in global mode
const candidateCap = 200

// Chunk is a contiguous span of a book's text returned by similarity search.
// EndOffset is the chunk's rightmost character position in the book's linear
// text. Chunks are ephemeral, produced per query and never persisted here.
type Chunk struct {
	ID          uuid.UUID
	BookID      uuid.UUID
	Text        string
	StartOffset int
	EndOffset   int
}

// Searcher ranks chunks by semantic similarity to a query, scoped to a set of
// books with per-book offset ceilings. A ceiling of NoCeiling searches the
// whole book.
type Searcher interface {
	Search(ctx context.Context, query string, scope map[uuid.UUID]int, topK int) ([]Chunk, error)
	ModelReady(ctx context.Context) bool
}

// Retriever layers spoiler safety on top of a Searcher: a broad whole-book
// candidate pull filtered to the safe region, then a ceiling-scoped fallback
// when the filtered pool falls short of topK.
type Retriever struct {
	searcher Searcher
	log      *logging.Logger
}

// NewRetriever creates a new retriever
func NewRetriever(searcher Searcher, log *logging.Logger) *Retriever {
	if log == nil {
		log = logging.Nop()
	}
	return &Retriever{searcher: searcher, log: log}
}

// PerBook runs retrieval independently for each book so every book keeps a
// distinct voice in the final prompt. The query is sent without the book's
// title: the per-book scope already pins identity, and a shared title prefix
// would bias embeddings toward prefix matches (backend-dependent, observed
// with the default embedding model).
func (r *Retriever) PerBook(ctx context.Context, query string, safeOffsets map[uuid.UUID]int, topK int) map[uuid.UUID][]Chunk {
	results := make(map[uuid.UUID][]Chunk, len(safeOffsets))
	if strings.TrimSpace(query) == "" || topK <= 0 {
		return results
	}
	for id, ceiling := range safeOffsets {
		chunks := r.twoPhase(ctx, query, map[uuid.UUID]int{id: ceiling}, topK, topK*6)
		if len(chunks) > 0 {
			results[id] = chunks
		}
	}
	return results
}

// Global draws one ranked pool across all books together; callers group the
// result by book for prompt formatting.
func (r *Retriever) Global(ctx context.Context, query string, safeOffsets map[uuid.UUID]int, topK int) []Chunk {
	if strings.TrimSpace(query) == "" || topK <= 0 || len(safeOffsets) == 0 {
		return nil
	}
	candidateK := topK * 6 * len(safeOffsets)
	if candidateK > candidateCap {
		candidateK = candidateCap
	}
	return r.twoPhase(ctx, query, safeOffsets, topK, candidateK)
}

// twoPhase implements the candidate-then-filter-then-fallback algorithm.
//
// Phase 1 ranks against the whole book(s) and filters afterward, which
// surfaces better matches than ranking inside a truncated corpus. Phase 2
// covers the case where the best whole-book matches all fall past the safe
// offset: the search scope itself is capped at the ceiling, so the quota is
// never met with spoiler content.
func (r *Retriever) twoPhase(ctx context.Context, query string, safeOffsets map[uuid.UUID]int, topK, candidateK int) []Chunk {
	unbounded := make(map[uuid.UUID]int, len(safeOffsets))
	for id := range safeOffsets {
		unbounded[id] = NoCeiling
	}

	seen := make(map[uuid.UUID]bool)
	var accepted []Chunk

	candidates, err := r.searcher.Search(ctx, query, unbounded, candidateK)
	if err != nil {
		r.log.Warn("candidate search failed, falling back to scoped phase", "error", err)
		candidates = nil
	}
	for _, c := range candidates {
		if len(accepted) >= topK {
			break
		}
		ceiling, ok := safeOffsets[c.BookID]
		if !ok || seen[c.ID] {
			continue
		}
		if ceiling != NoCeiling && c.EndOffset > ceiling {
			continue
		}
		seen[c.ID] = true
		accepted = append(accepted, c)
	}

	if len(accepted) >= topK {
		return accepted
	}

	fallback, err := r.searcher.Search(ctx, query, safeOffsets, topK)
	if err != nil {
		r.log.Warn("scoped fallback search failed", "error", err)
		return accepted
	}
	for _, c := range fallback {
		if len(accepted) >= topK {
			break
		}
		ceiling, ok := safeOffsets[c.BookID]
		if !ok || seen[c.ID] {
			continue
		}
		if ceiling != NoCeiling && c.EndOffset > ceiling {
			// the searcher should already honor the ceiling; keep the
			// invariant locally regardless
			continue
		}
		seen[c.ID] = true
		accepted = append(accepted, c)
	}
	return accepted
}
