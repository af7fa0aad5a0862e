package tui

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"

	"github.com/shelfmate-ai/companion/internal/book"
	"github.com/shelfmate-ai/companion/internal/logging"
	"github.com/shelfmate-ai/companion/internal/notebook"
	"github.com/shelfmate-ai/companion/internal/persona"
	"github.com/shelfmate-ai/companion/internal/quiz"
)

type screen int

const (
	screenNotebooks screen = iota
	screenBindBooks
	screenNotes
	screenThread
	screenQuizSetup
	screenQuizPlay
	screenQuizResult
	screenQuizHistory
)

// BookLister provides the ingested books available for binding
type BookLister interface {
	GetAllBooks(ctx context.Context) ([]*book.Book, error)
}

// StreamRelay carries model output chunks from the generation goroutine into
// the update loop. Send never blocks; the preview is best-effort.
type StreamRelay struct {
	ch chan string
}

// NewStreamRelay creates a relay for live response previews
func NewStreamRelay() *StreamRelay {
	return &StreamRelay{ch: make(chan string, 64)}
}

// Send forwards one chunk, dropping it when the UI lags behind
func (r *StreamRelay) Send(chunk string) {
	if r == nil {
		return
	}
	select {
	case r.ch <- chunk:
	default:
	}
}

// drain discards chunks left over from a previous generation
func (r *StreamRelay) drain() {
	for {
		select {
		case <-r.ch:
		default:
			return
		}
	}
}

// Services bundles everything the TUI needs from the core
type Services struct {
	Notebooks     notebook.Store
	Sessions      quiz.Store
	Books         BookLister
	Threads       *notebook.Engine
	Quizzes       *quiz.Engine
	Persona       persona.Persona
	Characters    []persona.Character
	World         []persona.WorldBookEntry
	Stream        *StreamRelay
	AutosaveDelay time.Duration
	Log           *logging.Logger
}

// notebookBinder holds a clone of each notebook with a pending autosave, so
// the timer goroutine never reads an aggregate the update loop is mutating
type notebookBinder struct {
	store notebook.Store
	log   *logging.Logger

	mu   sync.Mutex
	byID map[uuid.UUID]*notebook.Notebook
}

func (b *notebookBinder) snapshot(nb *notebook.Notebook) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.byID[nb.ID] = nb.Clone()
}

func (b *notebookBinder) forget(id uuid.UUID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.byID, id)
}

func (b *notebookBinder) save(id uuid.UUID) {
	b.mu.Lock()
	nb := b.byID[id]
	b.mu.Unlock()
	if nb == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := b.store.Put(ctx, nb); err != nil {
		b.log.Warn("autosave failed", "notebook", id, "error", err)
	}
}

// Model is the Bubble Tea model for the companion TUI
type Model struct {
	svc      Services
	binder   *notebookBinder
	autosave *notebook.Autosaver

	screen    screen
	notebooks []*notebook.Notebook
	nbCursor  int

	noteCursor   int
	threadCursor int

	books        []*book.Book
	bookCursor   int
	bookChecked  map[uuid.UUID]bool
	pendingTitle string

	sessions      []*quiz.Session
	sessionCursor int

	input    textinput.Model
	viewport viewport.Model
	editing  bool

	session *quiz.Session
	qIndex  int
	preview string

	status string
	busy   bool
	ready  bool
	width  int
	height int
}

// New creates the TUI model
func New(svc Services) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.CharLimit = 0
	vp := viewport.New(0, 0)

	log := svc.Log
	if log == nil {
		log = logging.Nop()
		svc.Log = log
	}
	delay := svc.AutosaveDelay
	if delay <= 0 {
		delay = 1500 * time.Millisecond
	}
	binder := &notebookBinder{
		store: svc.Notebooks,
		log:   log,
		byID:  make(map[uuid.UUID]*notebook.Notebook),
	}

	return Model{
		svc:      svc,
		binder:   binder,
		autosave: notebook.NewAutosaver(delay, binder.save),
		input:    ti,
		viewport: vp,
		status:   "Loading notebooks...",
	}
}

// Init loads the notebook list
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.loadNotebooksCmd())
}

type notebooksLoadedMsg struct {
	notebooks []*notebook.Notebook
	err       error
}

type booksLoadedMsg struct {
	books []*book.Book
	err   error
}

type sessionsLoadedMsg struct {
	sessions []*quiz.Session
	err      error
}

// generationDoneMsg reports a finished store/engine command. The command
// re-reads the notebook list after the operation so the update loop swaps in
// fresh state instead of sharing aggregates with the worker goroutine.
type generationDoneMsg struct {
	what      string
	err       error
	notebooks []*notebook.Notebook
}

type quizStartedMsg struct {
	session *quiz.Session
	err     error
}

type quizSubmittedMsg struct {
	err error
}

type streamChunkMsg struct {
	chunk string
}

func (m Model) loadNotebooksCmd() tea.Cmd {
	store := m.svc.Notebooks
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		nbs, err := store.GetAll(ctx)
		return notebooksLoadedMsg{notebooks: nbs, err: err}
	}
}

func (m Model) loadBooksCmd() tea.Cmd {
	books := m.svc.Books
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		all, err := books.GetAllBooks(ctx)
		return booksLoadedMsg{books: all, err: err}
	}
}

func (m Model) loadSessionsCmd() tea.Cmd {
	store := m.svc.Sessions
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		sessions, err := store.GetAll(ctx)
		return sessionsLoadedMsg{sessions: sessions, err: err}
	}
}

// reloadNotebooks re-reads the full list after a mutation; the operation
// error wins over a reload error
func reloadNotebooks(ctx context.Context, store notebook.Store, opErr error) generationDoneMsg {
	nbs, err := store.GetAll(ctx)
	if opErr == nil {
		opErr = err
	}
	return generationDoneMsg{err: opErr, notebooks: nbs}
}

func (m Model) createNotebookCmd(nb *notebook.Notebook) tea.Cmd {
	store := m.svc.Notebooks
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		msg := reloadNotebooks(ctx, store, store.Put(ctx, nb))
		msg.what = "create"
		return msg
	}
}

func (m Model) deleteNotebookCmd(id uuid.UUID) tea.Cmd {
	store := m.svc.Notebooks
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		msg := reloadNotebooks(ctx, store, store.Delete(ctx, id))
		msg.what = "delete"
		return msg
	}
}

func (m Model) summonCmd(nb *notebook.Notebook, noteID uuid.UUID) tea.Cmd {
	svc := m.svc
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		_, err := svc.Threads.Summon(ctx, nb, noteID, svc.Persona, svc.Characters, svc.World)
		msg := reloadNotebooks(ctx, svc.Notebooks, err)
		msg.what = "summon"
		return msg
	}
}

func (m Model) replyCmd(nb *notebook.Notebook, noteID, threadID uuid.UUID, text string, ch persona.Character) tea.Cmd {
	svc := m.svc
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		err := svc.Threads.Reply(ctx, nb, noteID, threadID, text, svc.Persona, ch, svc.World)
		msg := reloadNotebooks(ctx, svc.Notebooks, err)
		msg.what = "reply"
		return msg
	}
}

func (m Model) regenerateCmd(nb *notebook.Notebook, noteID, threadID uuid.UUID, index int, ch persona.Character) tea.Cmd {
	svc := m.svc
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		err := svc.Threads.Regenerate(ctx, nb, noteID, threadID, index, svc.Persona, ch, svc.World)
		msg := reloadNotebooks(ctx, svc.Notebooks, err)
		msg.what = "regenerate"
		return msg
	}
}

func (m Model) startQuizCmd(cfg quiz.Config) tea.Cmd {
	svc := m.svc
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		ch := persona.Character{}
		if len(svc.Characters) > 0 {
			ch = svc.Characters[0]
		}
		s, err := svc.Quizzes.Start(ctx, cfg, ch)
		return quizStartedMsg{session: s, err: err}
	}
}

func (m Model) submitQuizCmd(s *quiz.Session) tea.Cmd {
	svc := m.svc
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		return quizSubmittedMsg{err: svc.Quizzes.Submit(ctx, s, svc.Persona)}
	}
}

func (m Model) exitQuizCmd(s *quiz.Session) tea.Cmd {
	svc := m.svc
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return generationDoneMsg{what: "quiz-exit", err: svc.Quizzes.Exit(ctx, s)}
	}
}

func (m Model) deleteSessionCmd(id uuid.UUID) tea.Cmd {
	store := m.svc.Sessions
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := store.Delete(ctx, id); err != nil {
			return sessionsLoadedMsg{err: err}
		}
		sessions, err := store.GetAll(ctx)
		return sessionsLoadedMsg{sessions: sessions, err: err}
	}
}

// streamCmd waits for the next preview chunk; nil when streaming is not wired
func (m Model) streamCmd() tea.Cmd {
	relay := m.svc.Stream
	if relay == nil {
		return nil
	}
	return func() tea.Msg {
		return streamChunkMsg{chunk: <-relay.ch}
	}
}

// launchGeneration flushes pending edits, clears the preview and batches the
// engine command with the preview listener
func (m *Model) launchGeneration(nbID uuid.UUID, status string, cmd tea.Cmd) tea.Cmd {
	m.autosave.Flush(nbID)
	m.busy = true
	m.status = status
	m.preview = ""
	if m.svc.Stream != nil {
		m.svc.Stream.drain()
		return tea.Batch(cmd, m.streamCmd())
	}
	return cmd
}

// Update handles events
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		m.width = msg.Width
		m.height = msg.Height
		m.viewport.Width = max(20, msg.Width-4)
		m.viewport.Height = max(5, msg.Height-8)
		m.refreshViewport()
		return m, nil

	case notebooksLoadedMsg:
		if msg.err != nil {
			m.status = "Error: " + msg.err.Error()
			return m, nil
		}
		m.setNotebooks(msg.notebooks)
		m.status = "Ready."
		return m, nil

	case booksLoadedMsg:
		if msg.err != nil {
			m.status = "Error: " + msg.err.Error()
			return m, nil
		}
		m.books = msg.books
		m.bookCursor = 0
		m.bookChecked = make(map[uuid.UUID]bool)
		m.screen = screenBindBooks
		m.status = "Pick the books this notebook follows."
		return m, nil

	case sessionsLoadedMsg:
		if msg.err != nil {
			m.status = "Error: " + msg.err.Error()
			return m, nil
		}
		m.sessions = msg.sessions
		if m.sessionCursor >= len(m.sessions) {
			m.sessionCursor = 0
		}
		m.screen = screenQuizHistory
		m.status = "Quiz history."
		return m, nil

	case generationDoneMsg:
		m.busy = false
		m.preview = ""
		if msg.notebooks != nil {
			m.setNotebooks(msg.notebooks)
		}
		if msg.err != nil {
			m.status = "Error: " + msg.err.Error()
		} else {
			m.status = "Done."
		}
		m.refreshViewport()
		return m, nil

	case quizStartedMsg:
		m.busy = false
		if msg.err != nil {
			m.status = "Quiz generation failed: " + msg.err.Error()
			return m, nil
		}
		return m.openQuiz(msg.session), nil

	case quizSubmittedMsg:
		m.busy = false
		if msg.err != nil {
			m.status = "Error: " + msg.err.Error()
			return m, nil
		}
		m.screen = screenQuizResult
		m.status = "Submitted."
		return m, nil

	case streamChunkMsg:
		if !m.busy {
			return m, nil
		}
		m.preview += msg.chunk
		m.refreshViewport()
		return m, m.streamCmd()

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			m.flushPending()
			return m, tea.Quit
		}
		return m.handleKey(msg)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// setNotebooks swaps in a freshly loaded list and clamps the cursors
func (m *Model) setNotebooks(notebooks []*notebook.Notebook) {
	m.notebooks = notebooks
	if m.nbCursor >= len(notebooks) {
		m.nbCursor = max(0, len(notebooks)-1)
	}
	if nb := m.currentNotebook(); nb != nil && m.noteCursor >= len(nb.Notes) {
		m.noteCursor = max(0, len(nb.Notes)-1)
	}
}

func (m Model) openQuiz(s *quiz.Session) Model {
	m.session = s
	m.qIndex = s.FirstUnanswered()
	if m.qIndex >= len(s.Questions) {
		m.qIndex = 0
	}
	m.screen = screenQuizPlay
	m.status = "Answer with number keys, arrows to move, enter to submit."
	return m
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.editing {
		return m.handleEditingKey(msg)
	}

	switch m.screen {
	case screenNotebooks:
		return m.handleNotebooksKey(msg)
	case screenBindBooks:
		return m.handleBindBooksKey(msg)
	case screenNotes:
		return m.handleNotesKey(msg)
	case screenThread:
		return m.handleThreadKey(msg)
	case screenQuizPlay:
		return m.handleQuizKey(msg)
	case screenQuizHistory:
		return m.handleHistoryKey(msg)
	case screenQuizResult:
		if msg.String() == "esc" || msg.String() == "q" {
			m.screen = screenNotebooks
			m.session = nil
		}
		return m, nil
	}
	return m, nil
}

func (m Model) handleEditingKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.editing = false
		m.input.Blur()
		m.input.SetValue("")
		if m.screen == screenQuizSetup {
			m.screen = screenNotes
		}
		return m, nil
	case tea.KeyEnter:
		text := strings.TrimSpace(m.input.Value())
		m.editing = false
		m.input.Blur()
		m.input.SetValue("")
		if text == "" {
			if m.screen == screenQuizSetup {
				m.screen = screenNotes
			}
			return m, nil
		}
		switch m.screen {
		case screenNotebooks:
			m.pendingTitle = text
			m.status = "Loading books..."
			return m, m.loadBooksCmd()
		case screenNotes:
			nb := m.currentNotebook()
			if nb != nil {
				nb.Notes = append(nb.Notes, notebook.NewNote(text))
				nb.UpdatedAt = time.Now()
				m.noteCursor = len(nb.Notes) - 1
				m.binder.snapshot(nb)
				m.autosave.Touch(nb.ID)
				m.status = "Note added."
			}
		case screenThread:
			return m.sendReply(text)
		case screenQuizSetup:
			return m.startQuiz(text)
		}
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// flushPending fires any debounced saves before the program exits
func (m Model) flushPending() {
	for _, nb := range m.notebooks {
		m.autosave.Flush(nb.ID)
	}
}

func (m Model) handleNotebooksKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q":
		m.flushPending()
		return m, tea.Quit
	case "up", "k":
		if m.nbCursor > 0 {
			m.nbCursor--
		}
	case "down", "j":
		if m.nbCursor < len(m.notebooks)-1 {
			m.nbCursor++
		}
	case "n":
		m.editing = true
		m.input.Placeholder = "Notebook title..."
		m.input.Focus()
	case "d":
		nb := m.currentNotebook()
		if nb != nil && !m.busy {
			m.autosave.Cancel(nb.ID)
			m.binder.forget(nb.ID)
			m.busy = true
			m.status = "Deleting " + nb.Title + "..."
			return m, m.deleteNotebookCmd(nb.ID)
		}
	case "h":
		m.status = "Loading quiz history..."
		return m, m.loadSessionsCmd()
	case "enter":
		if m.currentNotebook() != nil {
			m.screen = screenNotes
			m.noteCursor = 0
		}
	}
	return m, nil
}

func (m Model) handleBindBooksKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc", "q":
		m.screen = screenNotebooks
		m.pendingTitle = ""
	case "up", "k":
		if m.bookCursor > 0 {
			m.bookCursor--
		}
	case "down", "j":
		if m.bookCursor < len(m.books)-1 {
			m.bookCursor++
		}
	case " ":
		if m.bookCursor < len(m.books) {
			id := m.books[m.bookCursor].ID
			m.bookChecked[id] = !m.bookChecked[id]
		}
	case "enter":
		if m.busy {
			return m, nil
		}
		var bound []uuid.UUID
		for _, b := range m.books {
			if m.bookChecked[b.ID] {
				bound = append(bound, b.ID)
			}
		}
		now := time.Now()
		nb := &notebook.Notebook{
			ID:           uuid.New(),
			Title:        m.pendingTitle,
			PersonaID:    m.svc.Persona.ID,
			BoundBookIDs: bound,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		m.pendingTitle = ""
		m.screen = screenNotebooks
		m.busy = true
		m.status = "Creating notebook..."
		return m, m.createNotebookCmd(nb)
	}
	return m, nil
}

func (m Model) handleNotesKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	nb := m.currentNotebook()
	switch msg.String() {
	case "esc", "q":
		m.screen = screenNotebooks
	case "up", "k":
		if m.noteCursor > 0 {
			m.noteCursor--
		}
	case "down", "j":
		if nb != nil && m.noteCursor < len(nb.Notes)-1 {
			m.noteCursor++
		}
	case "n":
		m.editing = true
		m.input.Placeholder = "Write a note..."
		m.input.Focus()
	case "s":
		if nb != nil && m.currentNote() != nil && !m.busy {
			cmd := m.summonCmd(nb.Clone(), m.currentNote().ID)
			cmd = m.launchGeneration(nb.ID, "Summoning companions...", cmd)
			return m, cmd
		}
	case "z":
		if nb != nil && len(nb.BoundBookIDs) > 0 {
			m.screen = screenQuizSetup
			m.editing = true
			m.input.Placeholder = "What should the quiz focus on?"
			m.input.Focus()
		} else {
			m.status = "Bind at least one book to quiz on it."
		}
	case "enter":
		if m.currentNote() != nil {
			m.screen = screenThread
			m.threadCursor = 0
			m.refreshViewport()
		}
	}
	return m, nil
}

func (m Model) handleThreadKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	note := m.currentNote()
	switch msg.String() {
	case "esc", "q":
		m.screen = screenNotes
	case "tab":
		if note != nil && len(note.CommentThreads) > 0 {
			m.threadCursor = (m.threadCursor + 1) % len(note.CommentThreads)
			m.refreshViewport()
		}
	case "r":
		return m.regenerateLast()
	case "d":
		return m.deleteLast()
	case "i", "enter":
		if m.currentThread() != nil {
			m.editing = true
			m.input.Placeholder = "Reply..."
			m.input.Focus()
		}
	case "up", "k":
		m.viewport.ScrollUp(1)
	case "down", "j":
		m.viewport.ScrollDown(1)
	}
	return m, nil
}

func (m Model) handleQuizKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	s := m.session
	if s == nil {
		m.screen = screenNotebooks
		return m, nil
	}
	switch msg.String() {
	case "esc":
		// leaving mid-quiz keeps the session resumable
		m.screen = screenNotebooks
		m.status = "Quiz saved, resume from history."
		return m, m.exitQuizCmd(s)
	case "left", "h":
		if m.qIndex > 0 {
			m.qIndex--
		}
	case "right", "l":
		if m.qIndex < len(s.Questions)-1 {
			m.qIndex++
		}
	case "enter":
		if !m.busy {
			m.busy = true
			m.status = "Grading..."
			return m, m.submitQuizCmd(s)
		}
	default:
		if len(msg.String()) == 1 && msg.String()[0] >= '1' && msg.String()[0] <= '9' {
			idx := int(msg.String()[0] - '1')
			m.svc.Quizzes.Select(s, s.Questions[m.qIndex].ID, idx)
		}
	}
	return m, nil
}

func (m Model) handleHistoryKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc", "q":
		m.screen = screenNotebooks
	case "up", "k":
		if m.sessionCursor > 0 {
			m.sessionCursor--
		}
	case "down", "j":
		if m.sessionCursor < len(m.sessions)-1 {
			m.sessionCursor++
		}
	case "d":
		if s := m.currentSession(); s != nil && !m.busy {
			m.status = "Deleting session..."
			return m, m.deleteSessionCmd(s.ID)
		}
	case "enter":
		s := m.currentSession()
		if s == nil {
			return m, nil
		}
		if s.Completed() {
			m.session = s
			m.screen = screenQuizResult
			return m, nil
		}
		return m.openQuiz(s), nil
	}
	return m, nil
}

func (m Model) sendReply(text string) (tea.Model, tea.Cmd) {
	nb := m.currentNotebook()
	note := m.currentNote()
	thread := m.currentThread()
	if nb == nil || note == nil || thread == nil || m.busy {
		return m, nil
	}
	ch := m.characterFor(thread.CharacterID)
	cmd := m.replyCmd(nb.Clone(), note.ID, thread.ID, text, ch)
	cmd = m.launchGeneration(nb.ID, thread.CharacterName+" is thinking...", cmd)
	m.refreshViewport()
	return m, cmd
}

func (m Model) regenerateLast() (tea.Model, tea.Cmd) {
	nb := m.currentNotebook()
	note := m.currentNote()
	thread := m.currentThread()
	if nb == nil || note == nil || thread == nil || m.busy {
		return m, nil
	}
	// regenerate the last AI message
	index := -1
	for i := len(thread.Messages) - 1; i >= 0; i-- {
		if thread.Messages[i].Role == notebook.RoleAI {
			index = i
			break
		}
	}
	if index < 0 {
		return m, nil
	}
	ch := m.characterFor(thread.CharacterID)
	cmd := m.regenerateCmd(nb.Clone(), note.ID, thread.ID, index, ch)
	cmd = m.launchGeneration(nb.ID, "Regenerating...", cmd)
	return m, cmd
}

func (m Model) deleteLast() (tea.Model, tea.Cmd) {
	nb := m.currentNotebook()
	note := m.currentNote()
	thread := m.currentThread()
	if nb == nil || note == nil || thread == nil || m.busy {
		return m, nil
	}
	m.autosave.Flush(nb.ID)
	index := len(thread.Messages) - 1
	err := m.svc.Threads.DeleteMessage(context.Background(), nb, note.ID, thread.ID, index)
	if err != nil {
		m.status = "Error: " + err.Error()
		return m, nil
	}
	if index == 0 {
		m.threadCursor = 0
		m.status = "Thread deleted."
	} else {
		m.status = "Message deleted."
	}
	m.refreshViewport()
	return m, nil
}

func (m Model) startQuiz(customPrompt string) (tea.Model, tea.Cmd) {
	nb := m.currentNotebook()
	if nb == nil || m.busy {
		m.screen = screenNotes
		return m, nil
	}
	m.busy = true
	m.status = "Generating quiz..."
	m.screen = screenNotes
	cfg := quiz.Config{
		BookIDs:       nb.BoundBookIDs,
		QuestionCount: 5,
		QuestionType:  quiz.TypeSingle,
		OptionCount:   4,
		CustomPrompt:  customPrompt,
	}
	return m, m.startQuizCmd(cfg)
}

func (m *Model) currentNotebook() *notebook.Notebook {
	if m.nbCursor < 0 || m.nbCursor >= len(m.notebooks) {
		return nil
	}
	return m.notebooks[m.nbCursor]
}

func (m *Model) currentNote() *notebook.Note {
	nb := m.currentNotebook()
	if nb == nil || m.noteCursor < 0 || m.noteCursor >= len(nb.Notes) {
		return nil
	}
	return &nb.Notes[m.noteCursor]
}

func (m *Model) currentThread() *notebook.CommentThread {
	note := m.currentNote()
	if note == nil || len(note.CommentThreads) == 0 {
		return nil
	}
	if m.threadCursor >= len(note.CommentThreads) {
		m.threadCursor = 0
	}
	return &note.CommentThreads[m.threadCursor]
}

func (m *Model) currentSession() *quiz.Session {
	if m.sessionCursor < 0 || m.sessionCursor >= len(m.sessions) {
		return nil
	}
	return m.sessions[m.sessionCursor]
}

func (m *Model) characterFor(id uuid.UUID) persona.Character {
	for _, ch := range m.svc.Characters {
		if ch.ID == id {
			return ch
		}
	}
	thread := m.currentThread()
	if thread != nil {
		return persona.Character{ID: thread.CharacterID, Name: thread.CharacterName}
	}
	return persona.Character{}
}
