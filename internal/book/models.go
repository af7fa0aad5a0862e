package book

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Chapter marks a contiguous span of the book's linear text
type Chapter struct {
	Title string `json:"title"`
	Start int    `json:"start"`
	End   int    `json:"end"`
}

// ReadingPosition records how far the reader has progressed.
// ChapterIndex is -1 when no chapter-level pointer exists.
type ReadingPosition struct {
	ChapterIndex    int     `json:"chapter_index"`
	ChapterProgress float64 `json:"chapter_progress"`
	CharOffset      int     `json:"char_offset"`
	Percent         float64 `json:"percent"`
}

// StoredContent is what the reading-position store returns for one book
type StoredContent struct {
	Title    string          `json:"title"`
	Length   int             `json:"length"`
	Chapters []Chapter       `json:"chapters"`
	Position ReadingPosition `json:"position"`
}

// Book represents an ingested book
type Book struct {
	ID        uuid.UUID
	Title     string
	Author    string
	FileHash  string
	Length    int
	Chapters  []Chapter
	Position  ReadingPosition
	CreatedAt time.Time
	UpdatedAt time.Time
}

// PositionStore provides stored chapter structure and reading position per book
type PositionStore interface {
	GetStoredContent(ctx context.Context, bookID uuid.UUID) (*StoredContent, error)
}
