package ingest

import "unicode"

// Span is a chunk of text with its absolute character offsets in the book's
// linear text
type Span struct {
	Text  string
	Start int
	End   int
}

// Chunker splits text into word-boundary chunks of roughly chunkSize
// characters with a percentage word overlap. Unlike a plain splitter, every
// chunk records where it lives in the source text so retrieval can enforce
// offset ceilings later.
type Chunker struct {
	chunkSize      int
	overlapPercent int
}

// NewChunker creates a chunker
func NewChunker(chunkSize, overlapPercent int) *Chunker {
	if chunkSize <= 0 {
		chunkSize = 512
	}
	if overlapPercent < 0 || overlapPercent >= 100 {
		overlapPercent = 0
	}
	return &Chunker{chunkSize: chunkSize, overlapPercent: overlapPercent}
}

type wordPos struct {
	start, end int
}

// Chunk splits text into offset-tracked spans
func (c *Chunker) Chunk(text string) []Span {
	words := scanWords(text)
	if len(words) == 0 {
		return nil
	}

	var spans []Span
	i := 0
	for i < len(words) {
		j := i
		for j < len(words) && words[j].end-words[i].start <= c.chunkSize {
			j++
		}
		if j == i {
			// single word longer than the chunk size
			j = i + 1
		}
		spans = append(spans, Span{
			Text:  text[words[i].start:words[j-1].end],
			Start: words[i].start,
			End:   words[j-1].end,
		})
		if j >= len(words) {
			break
		}

		overlap := (j - i) * c.overlapPercent / 100
		next := j - overlap
		if next <= i {
			next = i + 1
		}
		i = next
	}
	return spans
}

// scanWords finds non-space runs with their byte offsets
func scanWords(text string) []wordPos {
	var words []wordPos
	start := -1
	for i, r := range text {
		if unicode.IsSpace(r) {
			if start >= 0 {
				words = append(words, wordPos{start, i})
				start = -1
			}
		} else if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		words = append(words, wordPos{start, len(text)})
	}
	return words
}
