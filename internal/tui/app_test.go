package tui

import (
	"context"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shelfmate-ai/companion/internal/book"
	"github.com/shelfmate-ai/companion/internal/logging"
	"github.com/shelfmate-ai/companion/internal/notebook"
	"github.com/shelfmate-ai/companion/internal/persona"
	"github.com/shelfmate-ai/companion/internal/quiz"
	"github.com/shelfmate-ai/companion/internal/retrieval"
)

type memNotebookStore struct {
	mu      sync.Mutex
	byID    map[uuid.UUID]*notebook.Notebook
	order   []uuid.UUID
	deletes []uuid.UUID
}

func newMemNotebookStore() *memNotebookStore {
	return &memNotebookStore{byID: make(map[uuid.UUID]*notebook.Notebook)}
}

func (s *memNotebookStore) Put(_ context.Context, nb *notebook.Notebook) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[nb.ID]; !ok {
		s.order = append(s.order, nb.ID)
	}
	s.byID[nb.ID] = nb.Clone()
	return nil
}

func (s *memNotebookStore) GetAll(context.Context) ([]*notebook.Notebook, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*notebook.Notebook, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.byID[id].Clone())
	}
	return out, nil
}

func (s *memNotebookStore) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.byID, id)
	for i, o := range s.order {
		if o == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	s.deletes = append(s.deletes, id)
	return nil
}

func (s *memNotebookStore) get(id uuid.UUID) *notebook.Notebook {
	s.mu.Lock()
	defer s.mu.Unlock()
	if nb := s.byID[id]; nb != nil {
		return nb.Clone()
	}
	return nil
}

type memSessionStore struct {
	mu      sync.Mutex
	byID    map[uuid.UUID]*quiz.Session
	order   []uuid.UUID
	deletes []uuid.UUID
}

func newMemSessionStore() *memSessionStore {
	return &memSessionStore{byID: make(map[uuid.UUID]*quiz.Session)}
}

func (s *memSessionStore) Put(_ context.Context, session *quiz.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[session.ID]; !ok {
		s.order = append(s.order, session.ID)
	}
	s.byID[session.ID] = session
	return nil
}

func (s *memSessionStore) GetAll(context.Context) ([]*quiz.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*quiz.Session, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.byID[id])
	}
	return out, nil
}

func (s *memSessionStore) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.byID, id)
	for i, o := range s.order {
		if o == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	s.deletes = append(s.deletes, id)
	return nil
}

type stubSearcher struct{}

func (stubSearcher) Search(context.Context, string, map[uuid.UUID]int, int) ([]retrieval.Chunk, error) {
	return nil, nil
}
func (stubSearcher) ModelReady(context.Context) bool { return true }

type fixedPositions struct{}

func (fixedPositions) GetStoredContent(context.Context, uuid.UUID) (*book.StoredContent, error) {
	return &book.StoredContent{
		Title:    "Some Book",
		Length:   1000,
		Position: book.ReadingPosition{ChapterIndex: -1},
	}, nil
}

type cannedModel struct{ reply string }

func (m *cannedModel) Invoke(context.Context, string) (string, error) { return m.reply, nil }

type fixedBooks struct{ books []*book.Book }

func (f fixedBooks) GetAllBooks(context.Context) ([]*book.Book, error) { return f.books, nil }

func newTestModel(store *memNotebookStore, sessions *memSessionStore, books []*book.Book) Model {
	log := logging.Nop()
	retriever := retrieval.NewRetriever(stubSearcher{}, log)
	assembler := retrieval.NewAssembler(0)
	threads := notebook.NewEngine(store, fixedPositions{}, retriever, assembler, &cannedModel{reply: "a fine thought"}, log, 3)
	quizzes := quiz.NewEngine(sessions, fixedPositions{}, retriever, assembler, &cannedModel{reply: "[]"}, log, 5)

	return New(Services{
		Notebooks:     store,
		Sessions:      sessions,
		Books:         fixedBooks{books},
		Threads:       threads,
		Quizzes:       quizzes,
		Persona:       persona.Persona{ID: uuid.New(), Name: "Reader"},
		Characters:    []persona.Character{{ID: uuid.New(), Name: "Hazel"}},
		AutosaveDelay: time.Hour,
		Log:           log,
	})
}

func step(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	mm, cmd := m.Update(msg)
	next, ok := mm.(Model)
	require.True(t, ok)
	return next, cmd
}

func keyRunes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestNewNotebookFlowCreatesAndBindsBooks(t *testing.T) {
	store := newMemNotebookStore()
	books := []*book.Book{
		{ID: uuid.New(), Title: "Dune"},
		{ID: uuid.New(), Title: "Emma"},
	}
	m := newTestModel(store, newMemSessionStore(), books)

	m, _ = step(t, m, notebooksLoadedMsg{})
	m, _ = step(t, m, keyRunes("n"))
	require.True(t, m.editing)

	m, _ = step(t, m, keyRunes("Shelf Notes"))
	m, cmd := step(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	m, _ = step(t, m, cmd())
	require.Equal(t, screenBindBooks, m.screen)
	require.Len(t, m.books, 2)

	// toggle the first book and confirm
	m, _ = step(t, m, tea.KeyMsg{Type: tea.KeySpace})
	m, cmd = step(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	m, _ = step(t, m, cmd())

	require.Len(t, m.notebooks, 1)
	created := m.notebooks[0]
	assert.Equal(t, "Shelf Notes", created.Title)
	assert.Equal(t, []uuid.UUID{books[0].ID}, created.BoundBookIDs)
	assert.NotNil(t, store.get(created.ID))
	assert.Equal(t, screenNotebooks, m.screen)
	assert.False(t, m.busy)
}

func TestDeleteNotebookRemovesRecord(t *testing.T) {
	store := newMemNotebookStore()
	nb := &notebook.Notebook{ID: uuid.New(), Title: "Doomed"}
	require.NoError(t, store.Put(context.Background(), nb))
	m := newTestModel(store, newMemSessionStore(), nil)

	loaded, err := store.GetAll(context.Background())
	require.NoError(t, err)
	m, _ = step(t, m, notebooksLoadedMsg{notebooks: loaded})

	m, cmd := step(t, m, keyRunes("d"))
	require.NotNil(t, cmd)
	m, _ = step(t, m, cmd())

	assert.Equal(t, []uuid.UUID{nb.ID}, store.deletes)
	assert.Empty(t, m.notebooks)
	assert.Nil(t, store.get(nb.ID))
}

func TestSummonRunsOnACloneAndRefreshesFromStore(t *testing.T) {
	store := newMemNotebookStore()
	nb := &notebook.Notebook{
		ID:    uuid.New(),
		Title: "Shelf",
		Notes: []notebook.Note{notebook.NewNote("the lamp scene")},
	}
	require.NoError(t, store.Put(context.Background(), nb))
	m := newTestModel(store, newMemSessionStore(), nil)

	loaded, err := store.GetAll(context.Background())
	require.NoError(t, err)
	m, _ = step(t, m, notebooksLoadedMsg{notebooks: loaded})
	displayed := m.notebooks[0]

	m, _ = step(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	require.Equal(t, screenNotes, m.screen)
	m, cmd := step(t, m, keyRunes("s"))
	require.NotNil(t, cmd)
	require.True(t, m.busy)

	// the command runs the engine against a clone; the aggregate the view is
	// rendering must stay untouched until the refreshed list is swapped in
	msg := cmd()
	assert.Empty(t, displayed.Notes[0].CommentThreads)
	stored := store.get(nb.ID)
	require.NotNil(t, stored)
	require.Len(t, stored.Notes[0].CommentThreads, 1)
	assert.Equal(t, "a fine thought", stored.Notes[0].CommentThreads[0].Messages[0].Content)

	m, _ = step(t, m, msg)
	assert.False(t, m.busy)
	require.Len(t, m.notebooks[0].Notes[0].CommentThreads, 1)
}

func seedHistory(t *testing.T) (*memSessionStore, *quiz.Session, *quiz.Session) {
	t.Helper()
	sessions := newMemSessionStore()
	q0, q1, q2 := uuid.New(), uuid.New(), uuid.New()
	inProgress := &quiz.Session{
		ID:     uuid.New(),
		Config: quiz.Config{CustomPrompt: "themes of duty"},
		Questions: []quiz.Question{
			{ID: q0, Type: quiz.TypeSingle, Options: []string{"a", "b"}, CorrectAnswerIndices: []int{0}},
			{ID: q1, Type: quiz.TypeSingle, Options: []string{"a", "b"}, CorrectAnswerIndices: []int{1}},
			{ID: q2, Type: quiz.TypeSingle, Options: []string{"a", "b"}, CorrectAnswerIndices: []int{0}},
		},
		UserAnswers: map[uuid.UUID][]int{q0: {0}},
	}
	now := time.Now()
	done := &quiz.Session{
		ID:          uuid.New(),
		Config:      quiz.Config{CustomPrompt: "the ending"},
		CompletedAt: &now,
	}
	require.NoError(t, sessions.Put(context.Background(), inProgress))
	require.NoError(t, sessions.Put(context.Background(), done))
	return sessions, inProgress, done
}

func TestQuizHistoryResumesAtFirstUnanswered(t *testing.T) {
	sessions, inProgress, _ := seedHistory(t)
	m := newTestModel(newMemNotebookStore(), sessions, nil)

	m, _ = step(t, m, notebooksLoadedMsg{})
	m, cmd := step(t, m, keyRunes("h"))
	require.NotNil(t, cmd)
	m, _ = step(t, m, cmd())
	require.Equal(t, screenQuizHistory, m.screen)
	require.Len(t, m.sessions, 2)

	m, _ = step(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.Equal(t, screenQuizPlay, m.screen)
	assert.Equal(t, inProgress.ID, m.session.ID)
	assert.Equal(t, 1, m.qIndex)
}

func TestQuizHistoryOpensCompletedSessionAsResult(t *testing.T) {
	sessions, _, done := seedHistory(t)
	m := newTestModel(newMemNotebookStore(), sessions, nil)

	m, _ = step(t, m, notebooksLoadedMsg{})
	m, cmd := step(t, m, keyRunes("h"))
	m, _ = step(t, m, cmd())
	m, _ = step(t, m, keyRunes("j"))
	m, _ = step(t, m, tea.KeyMsg{Type: tea.KeyEnter})

	assert.Equal(t, screenQuizResult, m.screen)
	assert.Equal(t, done.ID, m.session.ID)
}

func TestQuizHistoryDeleteRemovesSession(t *testing.T) {
	sessions, inProgress, _ := seedHistory(t)
	m := newTestModel(newMemNotebookStore(), sessions, nil)

	m, _ = step(t, m, notebooksLoadedMsg{})
	m, cmd := step(t, m, keyRunes("h"))
	m, _ = step(t, m, cmd())

	m, cmd = step(t, m, keyRunes("d"))
	require.NotNil(t, cmd)
	m, _ = step(t, m, cmd())

	assert.Equal(t, []uuid.UUID{inProgress.ID}, sessions.deletes)
	require.Len(t, m.sessions, 1)
}

func TestStreamChunksAccumulateWhileBusy(t *testing.T) {
	m := newTestModel(newMemNotebookStore(), newMemSessionStore(), nil)
	m.svc.Stream = NewStreamRelay()
	m.busy = true

	m, cmd := step(t, m, streamChunkMsg{chunk: "The lamp "})
	require.NotNil(t, cmd)
	m, _ = step(t, m, streamChunkMsg{chunk: "was lit."})
	assert.Equal(t, "The lamp was lit.", m.preview)

	// chunks arriving after the generation finished are ignored
	m.busy = false
	m.preview = ""
	m, cmd = step(t, m, streamChunkMsg{chunk: "stale"})
	assert.Empty(t, m.preview)
	assert.Nil(t, cmd)
}
