package prompt

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// ParsedQuestion is one question extracted from a model response
type ParsedQuestion struct {
	Question    string   `json:"question"`
	Options     []string `json:"options"`
	Correct     []int    `json:"correct"`
	Explanation string   `json:"explanation"`
}

var thinkTagRe = regexp.MustCompile(`(?s)<think>.*?</think>`)

// SanitizeComment strips reasoning tags, code fences and surrounding noise
// from a model-generated comment
func SanitizeComment(s string) string {
	s = thinkTagRe.ReplaceAllString(s, "")
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	s = strings.Trim(s, `"`)
	return strings.TrimSpace(s)
}

// ParseQuestions extracts a validated question list from raw model output.
// Individually malformed questions are dropped; a parse yielding zero valid
// questions is an error, since the caller must not create a session from it.
func ParseQuestions(raw, questionType string, optionCount int) ([]ParsedQuestion, error) {
	raw = thinkTagRe.ReplaceAllString(raw, "")

	start := strings.Index(raw, "[")
	end := strings.LastIndex(raw, "]")
	if start == -1 || end == -1 || end <= start {
		return nil, fmt.Errorf("no JSON array in model output")
	}

	var parsed []ParsedQuestion
	if err := json.Unmarshal([]byte(raw[start:end+1]), &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode question list: %w", err)
	}

	valid := make([]ParsedQuestion, 0, len(parsed))
	for _, q := range parsed {
		if normalized, ok := normalizeQuestion(q, questionType); ok {
			valid = append(valid, normalized)
		}
	}
	if len(valid) == 0 {
		return nil, fmt.Errorf("model output contained no valid questions")
	}
	return valid, nil
}

// normalizeQuestion validates one parsed question against the requested type
func normalizeQuestion(q ParsedQuestion, questionType string) (ParsedQuestion, bool) {
	q.Question = strings.TrimSpace(q.Question)
	if q.Question == "" || len(q.Options) < 2 || len(q.Correct) == 0 {
		return q, false
	}

	if questionType == "truefalse" && len(q.Options) != 2 {
		q.Options = []string{"True", "False"}
	}

	seen := make(map[int]bool)
	indices := make([]int, 0, len(q.Correct))
	for _, idx := range q.Correct {
		if idx < 0 || idx >= len(q.Options) || seen[idx] {
			continue
		}
		seen[idx] = true
		indices = append(indices, idx)
	}
	if len(indices) == 0 {
		return q, false
	}

	// single-answer types carry exactly one correct index
	if questionType != "multiple" {
		indices = indices[:1]
	}
	q.Correct = indices
	return q, true
}
