package prompt

import (
	"fmt"
	"strings"

	"github.com/shelfmate-ai/companion/internal/persona"
)

// BookContext is one book's retrieved excerpts, ready for prompt embedding
type BookContext struct {
	Title   string
	Context string
}

// Turn is one prior exchange in a comment thread
type Turn struct {
	Role    string // "user" or "ai"
	Content string
}

// QuizSpec carries the generation parameters embedded into the quiz prompt
type QuizSpec struct {
	QuestionCount int
	QuestionType  string // "single", "multiple", "truefalse"
	OptionCount   int
	CustomPrompt  string
}

// Comment builds the prompt for a character's opening comment on a note
func Comment(p persona.Persona, ch persona.Character, world []persona.WorldBookEntry, noteContent string, books []BookContext) string {
	var parts []string

	parts = append(parts, characterPreamble(ch))
	parts = append(parts, readerSection(p))
	parts = appendWorldBook(parts, world)
	parts = appendBookContexts(parts, books)

	parts = append(parts, "## The Reader's Note:")
	parts = append(parts, noteContent)
	parts = append(parts, "")
	parts = append(parts, "Write a short comment on this note, in character, reacting to what the reader wrote.")
	parts = append(parts, "Ground your comment in the excerpts above; never reveal anything beyond them.")

	return strings.Join(parts, "\n")
}

// Reply builds the prompt for the next AI turn in an existing thread
func Reply(p persona.Persona, ch persona.Character, world []persona.WorldBookEntry, noteContent string, history []Turn, books []BookContext) string {
	var parts []string

	parts = append(parts, characterPreamble(ch))
	parts = append(parts, readerSection(p))
	parts = appendWorldBook(parts, world)
	parts = appendBookContexts(parts, books)

	parts = append(parts, "## The Reader's Note:")
	parts = append(parts, noteContent)
	parts = append(parts, "")
	parts = append(parts, "## Conversation So Far:")
	for _, t := range history {
		speaker := p.Name
		if t.Role == "ai" {
			speaker = ch.Name
		}
		parts = append(parts, fmt.Sprintf("%s: %s", speaker, t.Content))
	}
	parts = append(parts, "")
	parts = append(parts, fmt.Sprintf("Continue the conversation as %s. Reply to the last message, in character.", ch.Name))
	parts = append(parts, "Ground your reply in the excerpts above; never reveal anything beyond them.")

	return strings.Join(parts, "\n")
}

// QuizGeneration builds the one-shot quiz generation prompt. True/false
// questions always get exactly 2 options regardless of the requested count.
func QuizGeneration(spec QuizSpec, books []BookContext) string {
	optionCount := spec.OptionCount
	if spec.QuestionType == "truefalse" {
		optionCount = 2
	}

	var parts []string
	parts = append(parts, "You are a quiz writer for a reading companion app.")
	parts = appendBookContexts(parts, books)

	parts = append(parts, "## Task:")
	parts = append(parts, fmt.Sprintf("Write %d %s questions with %d options each, based only on the excerpts above.",
		spec.QuestionCount, questionTypeLabel(spec.QuestionType), optionCount))
	parts = append(parts, fmt.Sprintf("Focus: %s", spec.CustomPrompt))
	parts = append(parts, "")
	parts = append(parts, "Respond with a JSON array only, no prose. Each element:")
	parts = append(parts, `{"question": "...", "options": ["..."], "correct": [0], "explanation": "..."}`)
	parts = append(parts, `"correct" lists the zero-based indices of every correct option.`)

	return strings.Join(parts, "\n")
}

// OverallComment builds the post-submission commentary prompt
func OverallComment(p persona.Persona, ch persona.Character, correct, total int, review []string) string {
	var parts []string
	parts = append(parts, characterPreamble(ch))
	parts = append(parts, readerSection(p))
	parts = append(parts, "## Quiz Result:")
	parts = append(parts, fmt.Sprintf("%s scored %d out of %d.", p.Name, correct, total))
	if len(review) > 0 {
		parts = append(parts, "## Question Review:")
		parts = append(parts, review...)
	}
	parts = append(parts, "")
	parts = append(parts, "Give the reader a short, in-character comment on their result. Two or three sentences.")
	return strings.Join(parts, "\n")
}

func characterPreamble(ch persona.Character) string {
	var parts []string
	parts = append(parts, fmt.Sprintf("You are %s, a character companion in a reading app.", ch.Name))
	if ch.Personality != "" {
		parts = append(parts, fmt.Sprintf("Personality: %s", ch.Personality))
	}
	if ch.SpeechStyle != "" {
		parts = append(parts, fmt.Sprintf("Speech style: %s", ch.SpeechStyle))
	}
	return strings.Join(parts, "\n")
}

func readerSection(p persona.Persona) string {
	if p.Name == "" {
		return ""
	}
	s := fmt.Sprintf("## The Reader:\nThey go by %s.", p.Name)
	if p.Description != "" {
		s += " " + p.Description
	}
	return s
}

func appendWorldBook(parts []string, world []persona.WorldBookEntry) []string {
	var enabled []persona.WorldBookEntry
	for _, w := range world {
		if w.Enabled {
			enabled = append(enabled, w)
		}
	}
	if len(enabled) == 0 {
		return parts
	}
	parts = append(parts, "## World Notes:")
	for _, w := range enabled {
		parts = append(parts, fmt.Sprintf("- %s: %s", w.Keyword, w.Content))
	}
	return parts
}

func appendBookContexts(parts []string, books []BookContext) []string {
	for _, b := range books {
		if strings.TrimSpace(b.Context) == "" {
			continue
		}
		parts = append(parts, fmt.Sprintf("## Excerpts the Reader Has Already Read (%s):", b.Title))
		parts = append(parts, b.Context)
		parts = append(parts, "")
	}
	return parts
}

func questionTypeLabel(t string) string {
	switch t {
	case "multiple":
		return "multiple-answer"
	case "truefalse":
		return "true/false"
	default:
		return "single-answer"
	}
}
