package book

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestSafeOffsetChapterEstimate(t *testing.T) {
	content := StoredContent{
		Title:  "The Long Voyage",
		Length: 10000,
		Chapters: []Chapter{
			{Title: "One", Start: 0, End: 3000},
			{Title: "Two", Start: 3000, End: 7000},
			{Title: "Three", Start: 7000, End: 10000},
		},
		Position: ReadingPosition{
			ChapterIndex:    1,
			ChapterProgress: 0.6,
			CharOffset:      9999, // chapter pointer must win over the raw counter
		},
	}

	assert.Equal(t, 3000+2400, SafeOffset(content))
}

func TestSafeOffsetCoarseFallbacks(t *testing.T) {
	tests := []struct {
		name    string
		content StoredContent
		want    int
	}{
		{
			name: "char offset when no chapter pointer",
			content: StoredContent{
				Length:   5000,
				Position: ReadingPosition{ChapterIndex: -1, CharOffset: 1234},
			},
			want: 1234,
		},
		{
			name: "char offset clamped to book length",
			content: StoredContent{
				Length:   5000,
				Position: ReadingPosition{ChapterIndex: -1, CharOffset: 6000},
			},
			want: 5000,
		},
		{
			name: "percent of total length",
			content: StoredContent{
				Length:   8000,
				Position: ReadingPosition{ChapterIndex: -1, Percent: 0.25},
			},
			want: 2000,
		},
		{
			name:    "no position data at all",
			content: StoredContent{Length: 5000, Position: ReadingPosition{ChapterIndex: -1}},
			want:    0,
		},
		{
			name: "negative counter floors at zero",
			content: StoredContent{
				Length:   5000,
				Position: ReadingPosition{ChapterIndex: -1, CharOffset: -42},
			},
			want: 0,
		},
		{
			name: "chapter index out of range falls back",
			content: StoredContent{
				Length:   5000,
				Chapters: []Chapter{{Start: 0, End: 5000}},
				Position: ReadingPosition{ChapterIndex: 7, CharOffset: 100},
			},
			want: 100,
		},
		{
			name: "chapter progress clamped to chapter end",
			content: StoredContent{
				Length:   5000,
				Chapters: []Chapter{{Start: 0, End: 5000}},
				Position: ReadingPosition{ChapterIndex: 0, ChapterProgress: 1.8},
			},
			want: 5000,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SafeOffset(tt.content))
		})
	}
}

type fakePositionStore struct {
	contents map[uuid.UUID]*StoredContent
}

func (f *fakePositionStore) GetStoredContent(_ context.Context, id uuid.UUID) (*StoredContent, error) {
	c, ok := f.contents[id]
	if !ok {
		return nil, errors.New("unknown book")
	}
	return c, nil
}

func TestScopesSkipsUnknownBooks(t *testing.T) {
	known := uuid.New()
	unknown := uuid.New()
	store := &fakePositionStore{contents: map[uuid.UUID]*StoredContent{
		known: {
			Title:    "Known",
			Length:   1000,
			Position: ReadingPosition{ChapterIndex: -1, CharOffset: 400},
		},
	}}

	scopes := Scopes(context.Background(), store, []uuid.UUID{known, unknown})

	assert.Len(t, scopes, 1)
	assert.Equal(t, Scope{Title: "Known", SafeOffset: 400}, scopes[known])
}
