package quiz

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

// fallbackComment stands in when overall-comment generation fails
const fallbackComment = "Your quiz is graded, but your companion was lost for words this time."

var (
	// ErrBusy means a generation already targets this session
	ErrBusy = errors.New("quiz: operation already in flight")
	// ErrNoBooks means the config selected no books
	ErrNoBooks = errors.New("quiz: at least one book is required")
	// ErrEmptyPrompt means the config has no custom prompt
	ErrEmptyPrompt = errors.New("quiz: custom prompt is required")
	// ErrNoContext means none of the configured books yielded readable context
	ErrNoContext = errors.New("quiz: no readable context for the configured books")
)

// ModelCaller is the single-prompt model transport the engine depends on
type ModelCaller interface {
	Invoke(ctx context.Context, promptText string) (string, error)
}

// Engine owns quiz configuration, generation, answer collection, scoring and
// session persistence
type Engine struct {
	store     Store
	positions book.PositionStore
	retriever *retrieval.Retriever
	assembler *retrieval.Assembler
	model     ModelCaller
	log       *logging.Logger
	topK      int

	mu   sync.Mutex
	busy map[uuid.UUID]bool
}

// NewEngine creates a quiz session engine
func NewEngine(store Store, positions book.PositionStore, retriever *retrieval.Retriever, assembler *retrieval.Assembler, model ModelCaller, log *logging.Logger, topK int) *Engine {
	if topK <= 0 {
		topK = 5
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
		busy:      make(map[uuid.UUID]bool),
	}
}

// Start validates the config, retrieves spoiler-safe context for every
// configured book, runs one generation call and parses it into a playable
// session. The session is held in memory only; it becomes durable on first
// exit or submission.
func (e *Engine) Start(ctx context.Context, cfg Config, ch persona.Character) (*Session, error) {
	if len(cfg.BookIDs) == 0 {
		return nil, ErrNoBooks
	}
	if strings.TrimSpace(cfg.CustomPrompt) == "" {
		return nil, ErrEmptyPrompt
	}
	if cfg.QuestionCount <= 0 {
		cfg.QuestionCount = 5
	}
	if cfg.OptionCount < 2 {
		cfg.OptionCount = 4
	}
	if cfg.QuestionType == TypeTrueFalse {
		cfg.OptionCount = 2
	}

	scopes := book.Scopes(ctx, e.positions, cfg.BookIDs)
	offsets := make(map[uuid.UUID]int, len(scopes))
	for id, sc := range scopes {
		offsets[id] = sc.SafeOffset
	}
	perBook := e.retriever.PerBook(ctx, cfg.CustomPrompt, offsets, e.topK)

	contexts := make([]prompt.BookContext, 0, len(perBook))
	for _, id := range cfg.BookIDs {
		chunks, ok := perBook[id]
		if !ok {
			continue
		}
		contexts = append(contexts, prompt.BookContext{
			Title:   scopes[id].Title,
			Context: e.assembler.JoinChunks(chunks),
		})
	}
	if len(contexts) == 0 {
		return nil, ErrNoContext
	}

	spec := prompt.QuizSpec{
		QuestionCount: cfg.QuestionCount,
		QuestionType:  string(cfg.QuestionType),
		OptionCount:   cfg.OptionCount,
		CustomPrompt:  cfg.CustomPrompt,
	}
	raw, err := e.model.Invoke(ctx, prompt.QuizGeneration(spec, contexts))
	if err != nil {
		return nil, fmt.Errorf("quiz generation failed: %w", err)
	}

	parsed, err := prompt.ParseQuestions(raw, string(cfg.QuestionType), cfg.OptionCount)
	if err != nil {
		return nil, fmt.Errorf("quiz generation failed: %w", err)
	}
	if len(parsed) > cfg.QuestionCount {
		parsed = parsed[:cfg.QuestionCount]
	}

	questions := make([]Question, 0, len(parsed))
	for _, q := range parsed {
		questions = append(questions, Question{
			ID:                   uuid.New(),
			Type:                 cfg.QuestionType,
			Question:             q.Question,
			Options:              q.Options,
			CorrectAnswerIndices: q.Correct,
			Explanation:          q.Explanation,
		})
	}

	return &Session{
		ID:            uuid.New(),
		Config:        cfg,
		Questions:     questions,
		UserAnswers:   make(map[uuid.UUID][]int),
		CharacterID:   ch.ID,
		CharacterName: ch.Name,
		CreatedAt:     time.Now(),
	}, nil
}

// Select records an answer. Single-answer types replace the prior selection;
// multiple-answer types toggle membership. Correctness is not consulted here.
func (e *Engine) Select(s *Session, questionID uuid.UUID, optionIndex int) {
	var q *Question
	for i := range s.Questions {
		if s.Questions[i].ID == questionID {
			q = &s.Questions[i]
			break
		}
	}
	if q == nil || s.Completed() {
		return
	}
	if optionIndex < 0 || optionIndex >= len(q.Options) {
		return
	}
	if s.UserAnswers == nil {
		s.UserAnswers = make(map[uuid.UUID][]int)
	}

	switch q.Type {
	case TypeMultiple:
		current := s.UserAnswers[questionID]
		if i := slices.Index(current, optionIndex); i >= 0 {
			s.UserAnswers[questionID] = slices.Delete(current, i, i+1)
		} else {
			s.UserAnswers[questionID] = append(current, optionIndex)
		}
	case TypeSingle, TypeTrueFalse:
		s.UserAnswers[questionID] = []int{optionIndex}
	default:
		s.UserAnswers[questionID] = []int{optionIndex}
	}
}

// Submit freezes the answers, stamps completion and persists the session.
// The overall-comment call is best-effort: its failure substitutes a
// placeholder and never blocks submission.
func (e *Engine) Submit(ctx context.Context, s *Session, p persona.Persona) error {
	if err := e.acquire(s.ID); err != nil {
		return err
	}
	defer e.release(s.ID)

	now := time.Now()
	s.CompletedAt = &now

	correct, total := s.Score()
	raw, err := e.model.Invoke(ctx, prompt.OverallComment(p, characterOf(s), correct, total, reviewLines(s)))
	if err != nil {
		e.log.Warn("overall comment generation failed, substituting placeholder",
			"session", s.ID, "error", err)
		s.OverallComment = fallbackComment
	} else {
		s.OverallComment = prompt.SanitizeComment(raw)
		if s.OverallComment == "" {
			s.OverallComment = fallbackComment
		}
	}

	return e.store.Put(ctx, s)
}

// Exit persists an in-progress snapshot without a completion timestamp so the
// session can be resumed later. Upserts by id.
func (e *Engine) Exit(ctx context.Context, s *Session) error {
	return e.store.Put(ctx, s)
}

func (e *Engine) acquire(sessionID uuid.UUID) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.busy[sessionID] {
		return ErrBusy
	}
	e.busy[sessionID] = true
	return nil
}

func (e *Engine) release(sessionID uuid.UUID) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.busy, sessionID)
}

func characterOf(s *Session) persona.Character {
	return persona.Character{ID: s.CharacterID, Name: s.CharacterName}
}

// reviewLines summarizes each question's outcome for the comment prompt
func reviewLines(s *Session) []string {
	lines := make([]string, 0, len(s.Questions))
	for i, q := range s.Questions {
		verdict := "missed"
		if answerSetsEqual(s.UserAnswers[q.ID], q.CorrectAnswerIndices) {
			verdict = "got right"
		}
		lines = append(lines, fmt.Sprintf("Q%d (%s): the reader %s it.", i+1, q.Question, verdict))
	}
	return lines
}
