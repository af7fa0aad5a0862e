package retrieval

import (
	"strings"

	"github.com/google/uuid"
)

// chunkSeparator visibly divides excerpts joined into one section
const chunkSeparator = "\n---\n"

// Assembler turns retrieved chunks into prompt-ready context sections.
// Pure and synchronous, no network.
type Assembler struct {
	maxTokens int
}

// NewAssembler creates a new assembler
func NewAssembler(maxTokens int) *Assembler {
	if maxTokens <= 0 {
		maxTokens = 2000
	}
	return &Assembler{maxTokens: maxTokens}
}

// JoinChunks joins chunk texts in ranked order with a visible separator
func (a *Assembler) JoinChunks(chunks []Chunk) string {
	if len(chunks) == 0 {
		return ""
	}
	parts := make([]string, 0, len(chunks))
	for _, c := range chunks {
		parts = append(parts, c.Text)
	}
	return a.truncate(strings.Join(parts, chunkSeparator))
}

// GroupByBook groups a globally ranked pool by originating book, joining each
// group's texts in ranked order. Books with zero accepted chunks are omitted.
func (a *Assembler) GroupByBook(chunks []Chunk) map[uuid.UUID]string {
	grouped := make(map[uuid.UUID][]Chunk)
	var order []uuid.UUID
	for _, c := range chunks {
		if _, ok := grouped[c.BookID]; !ok {
			order = append(order, c.BookID)
		}
		grouped[c.BookID] = append(grouped[c.BookID], c)
	}

	result := make(map[uuid.UUID]string, len(order))
	for _, id := range order {
		joined := a.JoinChunks(grouped[id])
		if joined != "" {
			result[id] = joined
		}
	}
	return result
}

// truncate caps a section at roughly maxTokens (~4 chars per token)
func (a *Assembler) truncate(s string) string {
	maxChars := a.maxTokens * 4
	if len(s) > maxChars {
		return s[:maxChars] + "\n\n[Context truncated...]"
	}
	return s
}
