package book

import (
	"context"

	"github.com/google/uuid"
)

// Scope is the disclosure boundary for one book at generation time
type Scope struct {
	Title      string
	SafeOffset int
}

// SafeOffset computes the maximum character offset that may be disclosed.
// A chapter-level pointer with fractional progress beats a raw character
// counter, since readers jump around via the table of contents. Missing or
// garbage position data degrades to 0, never to an error.
func SafeOffset(content StoredContent) int {
	pos := content.Position

	if pos.ChapterIndex >= 0 && pos.ChapterIndex < len(content.Chapters) {
		ch := content.Chapters[pos.ChapterIndex]
		if ch.End >= ch.Start {
			off := ch.Start + int(clamp01(pos.ChapterProgress)*float64(ch.End-ch.Start))
			return clampOffset(off, content.Length)
		}
	}

	if pos.CharOffset > 0 {
		return clampOffset(pos.CharOffset, content.Length)
	}
	if pos.Percent > 0 && content.Length > 0 {
		return clampOffset(int(clamp01(pos.Percent)*float64(content.Length)), content.Length)
	}
	return 0
}

// Scopes resolves safe offsets for a set of books. Books the store does not
// know about are skipped; store errors degrade to "book skipped" because a
// missing position must not abort generation.
func Scopes(ctx context.Context, store PositionStore, bookIDs []uuid.UUID) map[uuid.UUID]Scope {
	scopes := make(map[uuid.UUID]Scope, len(bookIDs))
	for _, id := range bookIDs {
		content, err := store.GetStoredContent(ctx, id)
		if err != nil || content == nil {
			continue
		}
		scopes[id] = Scope{
			Title:      content.Title,
			SafeOffset: SafeOffset(*content),
		}
	}
	return scopes
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

func clampOffset(off, length int) int {
	if off < 0 {
		return 0
	}
	if length > 0 && off > length {
		return length
	}
	return off
}
