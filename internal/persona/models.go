package persona

import "github.com/google/uuid"

// Persona is the reader-side identity used when prompting
type Persona struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
}

// Character is an AI commentator with a voice of its own
type Character struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Avatar      string    `json:"avatar"`
	Personality string    `json:"personality"`
	SpeechStyle string    `json:"speech_style"`
}

// WorldBookEntry is a flat lore record injected into prompts when enabled
type WorldBookEntry struct {
	ID      uuid.UUID `json:"id"`
	Keyword string    `json:"keyword"`
	Content string    `json:"content"`
	Enabled bool      `json:"enabled"`
}
