package ingest

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkOffsetsPointIntoSource(t *testing.T) {
	text := "The tide rose slowly over the rocks. Gulls wheeled above the cliff. " +
		"By nightfall the lamp was lit and the keeper climbed the stair."
	c := NewChunker(40, 0)

	spans := c.Chunk(text)

	require.NotEmpty(t, spans)
	for _, s := range spans {
		assert.Equal(t, text[s.Start:s.End], s.Text)
		assert.LessOrEqual(t, s.End, len(text))
		assert.Less(t, s.Start, s.End)
	}
	// chunks must cover the text in order
	assert.Zero(t, spans[0].Start)
	assert.Equal(t, len(text), spans[len(spans)-1].End)
	for i := 1; i < len(spans); i++ {
		assert.Greater(t, spans[i].Start, spans[i-1].Start)
	}
}

func TestChunkOverlapRepeatsWords(t *testing.T) {
	text := strings.Repeat("alpha beta gamma delta epsilon ", 20)
	c := NewChunker(50, 40)

	spans := c.Chunk(text)

	require.Greater(t, len(spans), 1)
	// with overlap the next chunk starts before the previous one ends
	for i := 1; i < len(spans); i++ {
		assert.Less(t, spans[i].Start, spans[i-1].End)
	}
}

func TestChunkHandlesDegenerateInput(t *testing.T) {
	c := NewChunker(64, 10)

	assert.Nil(t, c.Chunk(""))
	assert.Nil(t, c.Chunk("   \n\t  "))

	oversized := strings.Repeat("x", 200)
	spans := c.Chunk(oversized)
	require.Len(t, spans, 1)
	assert.Equal(t, oversized, spans[0].Text)
}

func TestEstimateChaptersFromHeadings(t *testing.T) {
	text := "Title page\n\nChapter One\nIt began at sea.\n\nChapter Two\nThe storm came.\n"

	chapters := EstimateChapters(text)

	require.Len(t, chapters, 3)
	assert.Equal(t, "Front matter", chapters[0].Title)
	assert.Equal(t, "Chapter One", chapters[1].Title)
	assert.Equal(t, "Chapter Two", chapters[2].Title)
	assert.Equal(t, 0, chapters[0].Start)
	assert.Equal(t, chapters[0].End, chapters[1].Start)
	assert.Equal(t, chapters[1].End, chapters[2].Start)
	assert.Equal(t, len(text), chapters[2].End)
}

func TestEstimateChaptersWithoutHeadings(t *testing.T) {
	text := "Just one long unbroken story with no headings at all."

	chapters := EstimateChapters(text)

	require.Len(t, chapters, 1)
	assert.Equal(t, 0, chapters[0].Start)
	assert.Equal(t, len(text), chapters[0].End)
}
