package quiz

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// QuestionType selects how answers are collected and scored
type QuestionType string

const (
	TypeSingle    QuestionType = "single"
	TypeMultiple  QuestionType = "multiple"
	TypeTrueFalse QuestionType = "truefalse"
)

// Config is the user's quiz setup
type Config struct {
	BookIDs       []uuid.UUID  `json:"book_ids"`
	QuestionCount int          `json:"question_count"`
	QuestionType  QuestionType `json:"question_type"`
	OptionCount   int          `json:"option_count"`
	CustomPrompt  string       `json:"custom_prompt"`
}

// Question is produced once at generation time and immutable thereafter
type Question struct {
	ID                   uuid.UUID    `json:"id"`
	Type                 QuestionType `json:"type"`
	Question             string       `json:"question"`
	Options              []string     `json:"options"`
	CorrectAnswerIndices []int        `json:"correct_answer_indices"`
	Explanation          string       `json:"explanation,omitempty"`
}

// Session is one quiz instance. A nil CompletedAt means the session is
// in-progress and resumable; a set one means terminal and scored.
type Session struct {
	ID             uuid.UUID           `json:"id"`
	Config         Config              `json:"config"`
	Questions      []Question          `json:"questions"`
	UserAnswers    map[uuid.UUID][]int `json:"user_answers"`
	CharacterID    uuid.UUID           `json:"character_id"`
	CharacterName  string              `json:"character_name"`
	OverallComment string              `json:"overall_comment,omitempty"`
	CreatedAt      time.Time           `json:"created_at"`
	CompletedAt    *time.Time          `json:"completed_at,omitempty"`
}

// Store is the durable record store for quiz sessions, keyed by id
type Store interface {
	Put(ctx context.Context, s *Session) error
	GetAll(ctx context.Context) ([]*Session, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// Completed reports whether the session is terminal
func (s *Session) Completed() bool {
	return s.CompletedAt != nil
}

// FirstUnanswered returns the resume point: the index of the first question
// with no recorded answer, or len(Questions) when all are answered.
func (s *Session) FirstUnanswered() int {
	for i, q := range s.Questions {
		if len(s.UserAnswers[q.ID]) == 0 {
			return i
		}
	}
	return len(s.Questions)
}

// Score counts questions whose answer set equals the correct set exactly.
// No partial credit.
func (s *Session) Score() (correct, total int) {
	total = len(s.Questions)
	for _, q := range s.Questions {
		if answerSetsEqual(s.UserAnswers[q.ID], q.CorrectAnswerIndices) {
			correct++
		}
	}
	return correct, total
}

// answerSetsEqual compares two index lists as sets
func answerSetsEqual(user, want []int) bool {
	if len(user) == 0 {
		return false
	}
	userSet := make(map[int]bool, len(user))
	for _, i := range user {
		userSet[i] = true
	}
	wantSet := make(map[int]bool, len(want))
	for _, i := range want {
		wantSet[i] = true
	}
	if len(userSet) != len(wantSet) {
		return false
	}
	for i := range userSet {
		if !wantSet[i] {
			return false
		}
	}
	return true
}
