package prompt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseQuestionsFromFencedOutput(t *testing.T) {
	raw := "Here you go:\n```json\n[" +
		`{"question": "Who owns the lighthouse?", "options": ["Marta", "Joel", "The town"], "correct": [1], "explanation": "Stated in chapter 2."}` +
		",\n" +
		`{"question": "Which omens appear before the storm?", "options": ["Gulls", "Red sky", "Bells"], "correct": [0, 2]}` +
		"]\n```"

	questions, err := ParseQuestions(raw, "multiple", 3)

	require.NoError(t, err)
	require.Len(t, questions, 2)
	assert.Equal(t, "Who owns the lighthouse?", questions[0].Question)
	assert.Equal(t, []int{1}, questions[0].Correct)
	assert.Equal(t, []int{0, 2}, questions[1].Correct)
}

func TestParseQuestionsDropsInvalidEntries(t *testing.T) {
	raw := `[
		{"question": "", "options": ["a", "b"], "correct": [0]},
		{"question": "one option", "options": ["a"], "correct": [0]},
		{"question": "index out of range", "options": ["a", "b"], "correct": [5]},
		{"question": "valid", "options": ["a", "b"], "correct": [1]}
	]`

	questions, err := ParseQuestions(raw, "single", 2)

	require.NoError(t, err)
	require.Len(t, questions, 1)
	assert.Equal(t, "valid", questions[0].Question)
}

func TestParseQuestionsSingleKeepsOneCorrectIndex(t *testing.T) {
	raw := `[{"question": "q", "options": ["a", "b", "c"], "correct": [2, 0]}]`

	questions, err := ParseQuestions(raw, "single", 3)

	require.NoError(t, err)
	assert.Equal(t, []int{2}, questions[0].Correct)
}

func TestParseQuestionsTrueFalseForcesTwoOptions(t *testing.T) {
	raw := `[{"question": "The captain survives.", "options": ["True", "False", "Unknown", "Maybe"], "correct": [1]}]`

	questions, err := ParseQuestions(raw, "truefalse", 4)

	require.NoError(t, err)
	require.Len(t, questions, 1)
	assert.Equal(t, []string{"True", "False"}, questions[0].Options)
	assert.Equal(t, []int{1}, questions[0].Correct)
}

func TestParseQuestionsZeroValidIsError(t *testing.T) {
	_, err := ParseQuestions(`[{"question": "", "options": [], "correct": []}]`, "single", 4)
	assert.Error(t, err)

	_, err = ParseQuestions("no json here", "single", 4)
	assert.Error(t, err)
}

func TestParseQuestionsIgnoresThinkBlocks(t *testing.T) {
	raw := "<think>draft: [not json]</think>" +
		`[{"question": "q", "options": ["a", "b"], "correct": [0]}]`

	questions, err := ParseQuestions(raw, "single", 2)

	require.NoError(t, err)
	require.Len(t, questions, 1)
}

func TestSanitizeComment(t *testing.T) {
	assert.Equal(t, "A fine note.", SanitizeComment("<think>hmm</think>\n  \"A fine note.\"  "))
	assert.Equal(t, "plain", SanitizeComment("```\nplain\n```"))
}
