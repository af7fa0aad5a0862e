package db

import (
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
)

// Chunk is a stored span of a book's linear text with its embedding
type Chunk struct {
	ID          uuid.UUID
	BookID      uuid.UUID
	ChunkIndex  int
	Content     string
	StartOffset int
	EndOffset   int
	Embedding   *pgvector.Vector
	CreatedAt   time.Time
}

// bookRow is the raw shape of a books table row before JSON decoding
type bookRow struct {
	ID        uuid.UUID
	Title     string
	Author    string
	FileHash  string
	Length    int
	Chapters  []byte
	Position  []byte
	CreatedAt time.Time
	UpdatedAt time.Time
}
