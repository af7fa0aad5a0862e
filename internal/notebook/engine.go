package notebook

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shelfmate-ai/companion/internal/book"
	"github.com/shelfmate-ai/companion/internal/logging"
	"github.com/shelfmate-ai/companion/internal/persona"
	"github.com/shelfmate-ai/companion/internal/prompt"
	"github.com/shelfmate-ai/companion/internal/retrieval"
)

// maxSummonCharacters caps one summon batch
const maxSummonCharacters = 3

var (
	// ErrBusy means another generation already targets this notebook
	ErrBusy = errors.New("notebook: operation already in flight")
	// ErrNoCharacters means a summon was requested without any characters
	ErrNoCharacters = errors.New("notebook: no characters selected")
	// ErrNoteNotFound means the note id is not in this notebook
	ErrNoteNotFound = errors.New("notebook: note not found")
	// ErrThreadNotFound means the thread id is not on this note
	ErrThreadNotFound = errors.New("notebook: thread not found")
	// ErrBadMessageIndex means the message index is out of range
	ErrBadMessageIndex = errors.New("notebook: message index out of range")
	// ErrEmptyMessage means a reply with no content was rejected
	ErrEmptyMessage = errors.New("notebook: empty message")
)

// ModelCaller is the single-prompt model transport the engine depends on
type ModelCaller interface {
	Invoke(ctx context.Context, promptText string) (string, error)
}

// Engine owns the lifecycle of AI comment threads attached to notes
type Engine struct {
	store     Store
	positions book.PositionStore
	retriever *retrieval.Retriever
	assembler *retrieval.Assembler
	model     ModelCaller
	log       *logging.Logger
	topK      int

	mu   sync.Mutex
	busy map[uuid.UUID]context.CancelFunc
}

// NewEngine creates a thread engine
func NewEngine(store Store, positions book.PositionStore, retriever *retrieval.Retriever, assembler *retrieval.Assembler, model ModelCaller, log *logging.Logger, topK int) *Engine {
	if topK <= 0 {
		topK = 3
	}
	if log == nil {
		log = logging.Nop()
	}
	return &Engine{
		store:     store,
		positions: positions,
		retriever: retriever,
		assembler: assembler,
		model:     model,
		log:       log,
		topK:      topK,
		busy:      make(map[uuid.UUID]context.CancelFunc),
	}
}

// acquire gates one in-flight generation per notebook. The returned context
// is cancellable through Cancel; release must be called when the operation
// finishes.
func (e *Engine) acquire(parent context.Context, notebookID uuid.UUID) (context.Context, func(), error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, inFlight := e.busy[notebookID]; inFlight {
		return nil, nil, ErrBusy
	}
	ctx, cancel := context.WithCancel(parent)
	e.busy[notebookID] = cancel
	release := func() {
		e.mu.Lock()
		delete(e.busy, notebookID)
		e.mu.Unlock()
		cancel()
	}
	return ctx, release, nil
}

// Cancel stops the in-flight operation on a notebook, if any. Cancellation is
// cooperative: already-committed work stays committed.
func (e *Engine) Cancel(notebookID uuid.UUID) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if cancel, ok := e.busy[notebookID]; ok {
		cancel()
	}
}

// Summon generates opening comments from up to three characters, one at a
// time. Execution is sequential: thread order must follow selection order,
// and one cancellation governs the whole batch. Characters completed before
// a cancellation or failure keep their threads.
func (e *Engine) Summon(ctx context.Context, nb *Notebook, noteID uuid.UUID, p persona.Persona, characters []persona.Character, world []persona.WorldBookEntry) ([]uuid.UUID, error) {
	if len(characters) == 0 {
		return nil, ErrNoCharacters
	}
	if len(characters) > maxSummonCharacters {
		characters = characters[:maxSummonCharacters]
	}

	opCtx, release, err := e.acquire(ctx, nb.ID)
	if err != nil {
		return nil, err
	}
	defer release()

	note := nb.FindNote(noteID)
	if note == nil {
		return nil, ErrNoteNotFound
	}

	var created []uuid.UUID
	var errs []error
	for _, ch := range characters {
		if err := opCtx.Err(); err != nil {
			return created, err
		}

		contexts := e.bookContexts(opCtx, nb.BoundBookIDs, note.Content)
		raw, err := e.model.Invoke(opCtx, prompt.Comment(p, ch, world, note.Content, contexts))
		if err != nil {
			if opCtx.Err() != nil {
				return created, opCtx.Err()
			}
			e.log.Warn("summon failed for character", "character", ch.Name, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", ch.Name, err))
			continue
		}

		now := time.Now()
		thread := CommentThread{
			ID:              uuid.New(),
			CharacterID:     ch.ID,
			CharacterName:   ch.Name,
			CharacterAvatar: ch.Avatar,
			Messages: []Message{{
				ID:        uuid.New(),
				Role:      RoleAI,
				Content:   prompt.SanitizeComment(raw),
				CreatedAt: now,
			}},
			CreatedAt: now,
			UpdatedAt: now,
		}
		note.CommentThreads = append(note.CommentThreads, thread)
		note.UpdatedAt = now
		nb.UpdatedAt = now
		if err := e.store.Put(opCtx, nb); err != nil {
			errs = append(errs, fmt.Errorf("persist after %s: %w", ch.Name, err))
			continue
		}
		created = append(created, thread.ID)
	}
	return created, errors.Join(errs...)
}

// Reply appends the user's message immediately, then asks the character for
// the next turn. The user message is committed before the model call and is
// never rolled back; a model failure only skips the AI reply.
func (e *Engine) Reply(ctx context.Context, nb *Notebook, noteID, threadID uuid.UUID, text string, p persona.Persona, ch persona.Character, world []persona.WorldBookEntry) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyMessage
	}

	opCtx, release, err := e.acquire(ctx, nb.ID)
	if err != nil {
		return err
	}
	defer release()

	note := nb.FindNote(noteID)
	if note == nil {
		return ErrNoteNotFound
	}
	ti := note.findThreadIndex(threadID)
	if ti < 0 {
		return ErrThreadNotFound
	}
	thread := &note.CommentThreads[ti]

	now := time.Now()
	thread.Messages = append(thread.Messages, Message{
		ID:        uuid.New(),
		Role:      RoleUser,
		Content:   text,
		CreatedAt: now,
	})
	thread.UpdatedAt = now
	note.UpdatedAt = now
	nb.UpdatedAt = now
	if err := e.store.Put(opCtx, nb); err != nil {
		return fmt.Errorf("failed to persist user message: %w", err)
	}

	// retrieval keys on the note plus the fresh reply
	contexts := e.bookContexts(opCtx, nb.BoundBookIDs, note.Content+"\n"+text)
	raw, err := e.model.Invoke(opCtx, prompt.Reply(p, ch, world, note.Content, turns(thread.Messages), contexts))
	if err != nil {
		return err
	}

	now = time.Now()
	thread.Messages = append(thread.Messages, Message{
		ID:        uuid.New(),
		Role:      RoleAI,
		Content:   prompt.SanitizeComment(raw),
		CreatedAt: now,
	})
	thread.UpdatedAt = now
	note.UpdatedAt = now
	nb.UpdatedAt = now
	return e.store.Put(opCtx, nb)
}

// DeleteMessage removes a message and everything after it, since later
// messages depend on it. Index 0 is the thread's defining message, so
// deleting it deletes the whole thread.
func (e *Engine) DeleteMessage(ctx context.Context, nb *Notebook, noteID, threadID uuid.UUID, index int) error {
	note := nb.FindNote(noteID)
	if note == nil {
		return ErrNoteNotFound
	}
	ti := note.findThreadIndex(threadID)
	if ti < 0 {
		return ErrThreadNotFound
	}
	thread := &note.CommentThreads[ti]
	if index < 0 || index >= len(thread.Messages) {
		return ErrBadMessageIndex
	}

	now := time.Now()
	if index == 0 {
		note.CommentThreads = slices.Delete(note.CommentThreads, ti, ti+1)
	} else {
		thread.Messages = thread.Messages[:index]
		thread.UpdatedAt = now
	}
	note.UpdatedAt = now
	nb.UpdatedAt = now
	return e.store.Put(ctx, nb)
}

// Regenerate truncates the thread to [0, index) and appends a fresh AI
// message in one visible step. The truncation is held locally until the
// replacement is ready; on failure the thread is left exactly as it was.
func (e *Engine) Regenerate(ctx context.Context, nb *Notebook, noteID, threadID uuid.UUID, index int, p persona.Persona, ch persona.Character, world []persona.WorldBookEntry) error {
	opCtx, release, err := e.acquire(ctx, nb.ID)
	if err != nil {
		return err
	}
	defer release()

	note := nb.FindNote(noteID)
	if note == nil {
		return ErrNoteNotFound
	}
	ti := note.findThreadIndex(threadID)
	if ti < 0 {
		return ErrThreadNotFound
	}
	thread := &note.CommentThreads[ti]
	if index < 0 || index >= len(thread.Messages) {
		return ErrBadMessageIndex
	}

	kept := slices.Clone(thread.Messages[:index])

	// re-derive the retrieval query from the last surviving user message,
	// or from the note when regenerating the opening comment
	query := note.Content
	for i := len(kept) - 1; i >= 0; i-- {
		if kept[i].Role == RoleUser {
			query = kept[i].Content
			break
		}
	}

	contexts := e.bookContexts(opCtx, nb.BoundBookIDs, query)
	var promptText string
	if len(kept) == 0 {
		promptText = prompt.Comment(p, ch, world, note.Content, contexts)
	} else {
		promptText = prompt.Reply(p, ch, world, note.Content, turns(kept), contexts)
	}

	raw, err := e.model.Invoke(opCtx, promptText)
	if err != nil {
		return err
	}

	now := time.Now()
	thread.Messages = append(kept, Message{
		ID:        uuid.New(),
		Role:      RoleAI,
		Content:   prompt.SanitizeComment(raw),
		CreatedAt: now,
	})
	thread.UpdatedAt = now
	note.UpdatedAt = now
	nb.UpdatedAt = now
	return e.store.Put(opCtx, nb)
}

// bookContexts resolves fresh safe offsets and retrieves per-book context.
// Offsets are never cached across requests: reading position advances
// between calls.
func (e *Engine) bookContexts(ctx context.Context, bookIDs []uuid.UUID, query string) []prompt.BookContext {
	scopes := book.Scopes(ctx, e.positions, bookIDs)
	offsets := make(map[uuid.UUID]int, len(scopes))
	for id, sc := range scopes {
		offsets[id] = sc.SafeOffset
	}

	perBook := e.retriever.PerBook(ctx, query, offsets, e.topK)

	contexts := make([]prompt.BookContext, 0, len(perBook))
	for _, id := range bookIDs {
		chunks, ok := perBook[id]
		if !ok {
			continue
		}
		contexts = append(contexts, prompt.BookContext{
			Title:   scopes[id].Title,
			Context: e.assembler.JoinChunks(chunks),
		})
	}
	return contexts
}

func turns(messages []Message) []prompt.Turn {
	out := make([]prompt.Turn, 0, len(messages))
	for _, m := range messages {
		out = append(out, prompt.Turn{Role: string(m.Role), Content: m.Content})
	}
	return out
}
