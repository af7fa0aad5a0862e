package ingest

import (
	"context"
	"crypto/sha256"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/shelfmate-ai/companion/internal/book"
	"github.com/shelfmate-ai/companion/internal/db"
	"github.com/shelfmate-ai/companion/internal/embeddings"
	"github.com/shelfmate-ai/companion/internal/logging"
)

// Processor ingests book files: parse, chapter estimation, offset-tracked
// chunking, embedding and batch insert. Already-ingested files are skipped by
// content hash.
type Processor struct {
	db      *db.DB
	textEmb *embeddings.TextEmbedder
	chunker *Chunker
	log     *logging.Logger
}

// NewProcessor creates a book processor
func NewProcessor(database *db.DB, textEmb *embeddings.TextEmbedder, chunkSize, chunkOverlap int, log *logging.Logger) *Processor {
	if log == nil {
		log = logging.Nop()
	}
	return &Processor{
		db:      database,
		textEmb: textEmb,
		chunker: NewChunker(chunkSize, chunkOverlap),
		log:     log,
	}
}

// IngestBook processes a book file if it's new, returning the stored book
func (p *Processor) IngestBook(ctx context.Context, filePath, title, author string) (*book.Book, error) {
	ext := strings.ToLower(filepath.Ext(filePath))
	if ext != ".pdf" && ext != ".epub" {
		return nil, fmt.Errorf("unsupported file type: %s", ext)
	}

	hash, err := computeFileHash(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to compute hash: %w", err)
	}

	existing, err := p.db.GetBookByHash(ctx, hash)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing book: %w", err)
	}
	if existing != nil {
		p.log.Info("book already ingested", "title", existing.Title)
		return existing, nil
	}

	text, err := ParseFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to parse book: %w", err)
	}

	if title == "" {
		title = strings.TrimSuffix(filepath.Base(filePath), filepath.Ext(filePath))
	}
	b := &book.Book{
		ID:       uuid.New(),
		Title:    title,
		Author:   author,
		FileHash: hash,
		Length:   len(text),
		Chapters: EstimateChapters(text),
		Position: book.ReadingPosition{ChapterIndex: -1},
	}
	if err := p.db.CreateBook(ctx, b); err != nil {
		return nil, fmt.Errorf("failed to create book record: %w", err)
	}

	if err := p.processChunks(ctx, b.ID, text); err != nil {
		return nil, fmt.Errorf("failed to process chunks: %w", err)
	}

	p.log.Info("book ingested", "title", b.Title, "length", b.Length, "chapters", len(b.Chapters))
	return b, nil
}

// processChunks splits the text, embeds every span and batch-inserts them
func (p *Processor) processChunks(ctx context.Context, bookID uuid.UUID, text string) error {
	spans := p.chunker.Chunk(text)
	if len(spans) == 0 {
		return nil
	}

	chunks := make([]*db.Chunk, 0, len(spans))
	for i, span := range spans {
		embedding, err := p.textEmb.Embed(ctx, span.Text)
		if err != nil {
			return fmt.Errorf("failed to embed chunk %d: %w", i, err)
		}
		chunks = append(chunks, &db.Chunk{
			ID:          uuid.New(),
			BookID:      bookID,
			ChunkIndex:  i,
			Content:     span.Text,
			StartOffset: span.Start,
			EndOffset:   span.End,
			Embedding:   embedding,
		})
	}

	return p.db.InsertChunksBatch(ctx, chunks)
}

// computeFileHash computes SHA256 hash of a file
func computeFileHash(filePath string) (string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return "", err
	}
	defer file.Close()

	hash := sha256.New()
	if _, err := io.Copy(hash, file); err != nil {
		return "", err
	}

	return fmt.Sprintf("%x", hash.Sum(nil)), nil
}
