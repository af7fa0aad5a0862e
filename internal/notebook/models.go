package notebook

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Role identifies the author of a message
type Role string

const (
	RoleUser Role = "user"
	RoleAI   Role = "ai"
)

// Message is one entry in a comment thread. Immutable once created except by
// truncation, never edited in place.
type Message struct {
	ID        uuid.UUID `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// CommentThread is a conversation attached to one note, rooted at one
// AI-authored opening message: Messages[0] is always the character's comment.
type CommentThread struct {
	ID              uuid.UUID `json:"id"`
	CharacterID     uuid.UUID `json:"character_id"`
	CharacterName   string    `json:"character_name"`
	CharacterAvatar string    `json:"character_avatar"`
	Messages        []Message `json:"messages"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Note is owned exclusively by one notebook
type Note struct {
	ID             uuid.UUID       `json:"id"`
	Content        string          `json:"content"`
	CommentThreads []CommentThread `json:"comment_threads"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// Notebook is the aggregate persisted as one record
type Notebook struct {
	ID              uuid.UUID   `json:"id"`
	Title           string      `json:"title"`
	PersonaID       uuid.UUID   `json:"persona_id"`
	BoundBookIDs    []uuid.UUID `json:"bound_book_ids"`
	CoverURL        string      `json:"cover_url,omitempty"`
	PaperBackground string      `json:"paper_background,omitempty"`
	Notes           []Note      `json:"notes"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

// Store is the durable record store for notebooks, keyed by id
type Store interface {
	Put(ctx context.Context, nb *Notebook) error
	GetAll(ctx context.Context) ([]*Notebook, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// NewNote creates a note with fresh timestamps
func NewNote(content string) Note {
	now := time.Now()
	return Note{
		ID:        uuid.New(),
		Content:   content,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Clone deep-copies the aggregate. Generation work runs against a clone so
// concurrent readers of the original never observe in-flight mutation.
func (nb *Notebook) Clone() *Notebook {
	out := *nb
	out.BoundBookIDs = append([]uuid.UUID(nil), nb.BoundBookIDs...)
	out.Notes = make([]Note, len(nb.Notes))
	for i, n := range nb.Notes {
		cn := n
		cn.CommentThreads = make([]CommentThread, len(n.CommentThreads))
		for j, t := range n.CommentThreads {
			ct := t
			ct.Messages = append([]Message(nil), t.Messages...)
			cn.CommentThreads[j] = ct
		}
		out.Notes[i] = cn
	}
	return &out
}

// FindNote returns the note with the given id, or nil
func (nb *Notebook) FindNote(noteID uuid.UUID) *Note {
	for i := range nb.Notes {
		if nb.Notes[i].ID == noteID {
			return &nb.Notes[i]
		}
	}
	return nil
}

// findThreadIndex returns the index of a thread within a note, or -1
func (n *Note) findThreadIndex(threadID uuid.UUID) int {
	for i := range n.CommentThreads {
		if n.CommentThreads[i].ID == threadID {
			return i
		}
	}
	return -1
}
