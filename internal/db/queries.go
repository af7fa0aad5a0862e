package db

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"

	"github.com/shelfmate-ai/companion/internal/book"
)

// GetBookByHash retrieves a book by its source file hash
func (db *DB) GetBookByHash(ctx context.Context, hash string) (*book.Book, error) {
	row := db.pool.QueryRow(ctx,
		`SELECT id, title, author, file_hash, length, chapters, position, created_at, updated_at
		 FROM books WHERE file_hash = $1`,
		hash,
	)
	b, err := scanBook(row)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get book by hash: %w", err)
	}
	return b, nil
}

// GetBook retrieves a book by id
func (db *DB) GetBook(ctx context.Context, id uuid.UUID) (*book.Book, error) {
	row := db.pool.QueryRow(ctx,
		`SELECT id, title, author, file_hash, length, chapters, position, created_at, updated_at
		 FROM books WHERE id = $1`,
		id,
	)
	b, err := scanBook(row)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get book: %w", err)
	}
	return b, nil
}

// CreateBook creates a new book record
func (db *DB) CreateBook(ctx context.Context, b *book.Book) error {
	chapters, err := json.Marshal(b.Chapters)
	if err != nil {
		return fmt.Errorf("failed to marshal chapters: %w", err)
	}
	position, err := json.Marshal(b.Position)
	if err != nil {
		return fmt.Errorf("failed to marshal position: %w", err)
	}
	_, err = db.pool.Exec(ctx,
		`INSERT INTO books (id, title, author, file_hash, length, chapters, position)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		b.ID, b.Title, b.Author, b.FileHash, b.Length, chapters, position,
	)
	if err != nil {
		return fmt.Errorf("failed to create book: %w", err)
	}
	return nil
}

// GetAllBooks retrieves all books, newest first
func (db *DB) GetAllBooks(ctx context.Context) ([]*book.Book, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id, title, author, file_hash, length, chapters, position, created_at, updated_at
		 FROM books ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get books: %w", err)
	}
	defer rows.Close()

	var books []*book.Book
	for rows.Next() {
		b, err := scanBook(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan book: %w", err)
		}
		books = append(books, b)
	}
	return books, rows.Err()
}

// UpdateReadingPosition stores the reader's new position for a book
func (db *DB) UpdateReadingPosition(ctx context.Context, bookID uuid.UUID, pos book.ReadingPosition) error {
	position, err := json.Marshal(pos)
	if err != nil {
		return fmt.Errorf("failed to marshal position: %w", err)
	}
	_, err = db.pool.Exec(ctx,
		`UPDATE books SET position = $2, updated_at = NOW() WHERE id = $1`,
		bookID, position,
	)
	return err
}

// DeleteBook deletes a book and its chunks
func (db *DB) DeleteBook(ctx context.Context, bookID uuid.UUID) error {
	_, err := db.pool.Exec(ctx, `DELETE FROM books WHERE id = $1`, bookID)
	return err
}

// GetStoredContent implements the reading-position store contract
func (db *DB) GetStoredContent(ctx context.Context, bookID uuid.UUID) (*book.StoredContent, error) {
	b, err := db.GetBook(ctx, bookID)
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, pgx.ErrNoRows
	}
	return &book.StoredContent{
		Title:    b.Title,
		Length:   b.Length,
		Chapters: b.Chapters,
		Position: b.Position,
	}, nil
}

// InsertChunksBatch inserts multiple chunks in one round trip
func (db *DB) InsertChunksBatch(ctx context.Context, chunks []*Chunk) error {
	batch := &pgx.Batch{}
	for _, chunk := range chunks {
		batch.Queue(
			`INSERT INTO chunks (id, book_id, chunk_index, content, start_offset, end_offset, embedding)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			chunk.ID, chunk.BookID, chunk.ChunkIndex, chunk.Content,
			chunk.StartOffset, chunk.EndOffset, chunk.Embedding,
		)
	}
	br := db.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := 0; i < len(chunks); i++ {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("failed to insert chunk %d: %w", i, err)
		}
	}
	return nil
}

// SearchSimilarChunks ranks chunks by vector similarity within a per-book
// offset-ceiling scope. A negative ceiling searches the whole book.
func (db *DB) SearchSimilarChunks(ctx context.Context, embedding *pgvector.Vector, scope map[uuid.UUID]int, limit int) ([]*Chunk, error) {
	bookIDs := make([]uuid.UUID, 0, len(scope))
	ceilings := make([]int64, 0, len(scope))
	for id, ceiling := range scope {
		bookIDs = append(bookIDs, id)
		ceilings = append(ceilings, int64(ceiling))
	}

	rows, err := db.pool.Query(ctx,
		`SELECT c.id, c.book_id, c.chunk_index, c.content, c.start_offset, c.end_offset, c.embedding, c.created_at
		 FROM chunks c
		 JOIN unnest($1::uuid[], $2::bigint[]) AS s(book_id, ceiling) ON c.book_id = s.book_id
		 WHERE c.embedding IS NOT NULL AND (s.ceiling < 0 OR c.end_offset <= s.ceiling)
		 ORDER BY c.embedding <=> $3
		 LIMIT $4`,
		bookIDs, ceilings, embedding, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to search chunks: %w", err)
	}
	defer rows.Close()

	var chunks []*Chunk
	for rows.Next() {
		var chunk Chunk
		if err := rows.Scan(
			&chunk.ID, &chunk.BookID, &chunk.ChunkIndex, &chunk.Content,
			&chunk.StartOffset, &chunk.EndOffset, &chunk.Embedding, &chunk.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan chunk: %w", err)
		}
		chunks = append(chunks, &chunk)
	}
	return chunks, rows.Err()
}

func scanBook(row pgx.Row) (*book.Book, error) {
	var r bookRow
	if err := row.Scan(
		&r.ID, &r.Title, &r.Author, &r.FileHash, &r.Length,
		&r.Chapters, &r.Position, &r.CreatedAt, &r.UpdatedAt,
	); err != nil {
		return nil, err
	}

	b := &book.Book{
		ID:        r.ID,
		Title:     r.Title,
		Author:    r.Author,
		FileHash:  r.FileHash,
		Length:    r.Length,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
	if len(r.Chapters) > 0 {
		if err := json.Unmarshal(r.Chapters, &b.Chapters); err != nil {
			return nil, fmt.Errorf("failed to decode chapters: %w", err)
		}
	}
	b.Position.ChapterIndex = -1
	if len(r.Position) > 0 {
		if err := json.Unmarshal(r.Position, &b.Position); err != nil {
			return nil, fmt.Errorf("failed to decode position: %w", err)
		}
	}
	return b, nil
}
