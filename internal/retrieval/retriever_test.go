package retrieval

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shelfmate-ai/companion/internal/logging"
)

// fakeSearcher replays canned results keyed by whether the scope is bounded
type fakeSearcher struct {
	unboundedResults []Chunk
	scopedResults    []Chunk
	unboundedErr     error
	scopedErr        error
	calls            []map[uuid.UUID]int
}

func (f *fakeSearcher) Search(_ context.Context, _ string, scope map[uuid.UUID]int, topK int) ([]Chunk, error) {
	copied := make(map[uuid.UUID]int, len(scope))
	for k, v := range scope {
		copied[k] = v
	}
	f.calls = append(f.calls, copied)

	bounded := false
	for _, ceiling := range scope {
		if ceiling != NoCeiling {
			bounded = true
		}
	}
	results := f.unboundedResults
	err := f.unboundedErr
	if bounded {
		results = f.scopedResults
		err = f.scopedErr
	}
	if err != nil {
		return nil, err
	}
	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

func (f *fakeSearcher) ModelReady(context.Context) bool { return true }

func chunkAt(bookID uuid.UUID, end int) Chunk {
	return Chunk{ID: uuid.New(), BookID: bookID, Text: "x", StartOffset: end - 100, EndOffset: end}
}

func TestTwoPhaseFiltersToSafeOffset(t *testing.T) {
	bookID := uuid.New()
	searcher := &fakeSearcher{
		unboundedResults: []Chunk{
			chunkAt(bookID, 1200),
			chunkAt(bookID, 4800),
			chunkAt(bookID, 5200),
			chunkAt(bookID, 9000),
		},
	}
	r := NewRetriever(searcher, logging.Nop())

	got := r.PerBook(context.Background(), "the storm at sea", map[uuid.UUID]int{bookID: 5000}, 2)

	require.Len(t, got[bookID], 2)
	assert.Equal(t, 1200, got[bookID][0].EndOffset)
	assert.Equal(t, 4800, got[bookID][1].EndOffset)
	// quota met in phase 1, no scoped fallback call
	assert.Len(t, searcher.calls, 1)
	assert.Equal(t, NoCeiling, searcher.calls[0][bookID])
}

func TestTwoPhaseFallbackFillsQuota(t *testing.T) {
	bookID := uuid.New()
	shared := chunkAt(bookID, 900)
	searcher := &fakeSearcher{
		unboundedResults: []Chunk{
			shared,
			chunkAt(bookID, 7000),
			chunkAt(bookID, 8000),
		},
		scopedResults: []Chunk{
			shared, // already selected, must not duplicate
			chunkAt(bookID, 300),
			chunkAt(bookID, 600),
		},
	}
	r := NewRetriever(searcher, logging.Nop())

	got := r.PerBook(context.Background(), "who betrayed the captain", map[uuid.UUID]int{bookID: 1000}, 3)

	require.Len(t, got[bookID], 3)
	seen := map[uuid.UUID]bool{}
	for _, c := range got[bookID] {
		assert.LessOrEqual(t, c.EndOffset, 1000)
		assert.False(t, seen[c.ID], "duplicate chunk id in result")
		seen[c.ID] = true
	}
	// second call carries the real ceiling as the search scope itself
	require.Len(t, searcher.calls, 2)
	assert.Equal(t, 1000, searcher.calls[1][bookID])
}

func TestQuotaNeverMetWithSpoilers(t *testing.T) {
	bookID := uuid.New()
	searcher := &fakeSearcher{
		unboundedResults: []Chunk{chunkAt(bookID, 7000), chunkAt(bookID, 8000)},
		scopedResults:    []Chunk{chunkAt(bookID, 400)},
	}
	r := NewRetriever(searcher, logging.Nop())

	got := r.PerBook(context.Background(), "the ending", map[uuid.UUID]int{bookID: 1000}, 3)

	// fewer than topK rather than substituting spoiler content
	require.Len(t, got[bookID], 1)
	assert.Equal(t, 400, got[bookID][0].EndOffset)
}

func TestEmptyQueryShortCircuits(t *testing.T) {
	searcher := &fakeSearcher{}
	r := NewRetriever(searcher, logging.Nop())

	assert.Empty(t, r.PerBook(context.Background(), "   \n\t", map[uuid.UUID]int{uuid.New(): 100}, 3))
	assert.Empty(t, r.Global(context.Background(), "", map[uuid.UUID]int{uuid.New(): 100}, 3))
	assert.Empty(t, searcher.calls, "degenerate query must not reach the searcher")
}

func TestSearchErrorDegradesToEmpty(t *testing.T) {
	bookID := uuid.New()
	searcher := &fakeSearcher{
		unboundedErr: errors.New("index offline"),
		scopedErr:    errors.New("index offline"),
	}
	r := NewRetriever(searcher, logging.Nop())

	got := r.PerBook(context.Background(), "anything", map[uuid.UUID]int{bookID: 1000}, 3)

	assert.Empty(t, got)
}

func TestPhaseOneErrorStillTriesFallback(t *testing.T) {
	bookID := uuid.New()
	searcher := &fakeSearcher{
		unboundedErr:  errors.New("timeout"),
		scopedResults: []Chunk{chunkAt(bookID, 500)},
	}
	r := NewRetriever(searcher, logging.Nop())

	got := r.PerBook(context.Background(), "anything", map[uuid.UUID]int{bookID: 1000}, 2)

	require.Len(t, got[bookID], 1)
	assert.Equal(t, 500, got[bookID][0].EndOffset)
}

func TestGlobalDropsChunksFromUnscopedBooks(t *testing.T) {
	inScope := uuid.New()
	outOfScope := uuid.New()
	searcher := &fakeSearcher{
		unboundedResults: []Chunk{chunkAt(outOfScope, 100), chunkAt(inScope, 200)},
	}
	r := NewRetriever(searcher, logging.Nop())

	got := r.Global(context.Background(), "shared motif", map[uuid.UUID]int{inScope: 1000}, 2)

	require.Len(t, got, 1)
	assert.Equal(t, inScope, got[0].BookID)
}

func TestGroupByBookOmitsEmptyBooks(t *testing.T) {
	a := NewAssembler(2000)
	b1 := uuid.New()
	chunks := []Chunk{
		{ID: uuid.New(), BookID: b1, Text: "first"},
		{ID: uuid.New(), BookID: b1, Text: "second"},
	}

	grouped := a.GroupByBook(chunks)

	require.Len(t, grouped, 1)
	assert.Equal(t, "first\n---\nsecond", grouped[b1])
}

func TestJoinChunksTruncates(t *testing.T) {
	a := NewAssembler(1) // ~4 chars
	long := Chunk{ID: uuid.New(), Text: "abcdefghij"}

	joined := a.JoinChunks([]Chunk{long})

	assert.Contains(t, joined, "[Context truncated...]")
}
