package tui

import (
	"fmt"
	"slices"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"

	"github.com/shelfmate-ai/companion/internal/notebook"
	"github.com/shelfmate-ai/companion/internal/quiz"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("212")).
			MarginBottom(1)

	cursorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Bold(true)

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	characterStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("117"))

	userStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("150"))

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243")).
			MarginTop(1)

	selectedOptionStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("212")).
				Bold(true)

	correctStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("78"))
	wrongStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
)

// View renders the current screen
func (m Model) View() string {
	if !m.ready {
		return "Starting up..."
	}

	var body string
	switch m.screen {
	case screenNotebooks:
		body = m.viewNotebooks()
	case screenBindBooks:
		body = m.viewBindBooks()
	case screenNotes, screenQuizSetup:
		body = m.viewNotes()
	case screenThread:
		body = m.viewThread()
	case screenQuizPlay:
		body = m.viewQuizPlay()
	case screenQuizResult:
		body = m.viewQuizResult()
	case screenQuizHistory:
		body = m.viewQuizHistory()
	}

	var b strings.Builder
	b.WriteString(body)
	if m.editing {
		b.WriteString("\n" + m.input.View())
	}
	b.WriteString(statusStyle.Render(m.status))
	return b.String()
}

func (m Model) viewNotebooks() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Notebooks"))
	b.WriteString("\n")
	if len(m.notebooks) == 0 {
		b.WriteString(dimStyle.Render("No notebooks yet, press n to start one.") + "\n")
	}
	for i, nb := range m.notebooks {
		line := fmt.Sprintf("%s  %s", nb.Title,
			dimStyle.Render(fmt.Sprintf("(%d notes, %d books)", len(nb.Notes), len(nb.BoundBookIDs))))
		if i == m.nbCursor {
			line = cursorStyle.Render("> ") + line
		} else {
			line = "  " + line
		}
		b.WriteString(line + "\n")
	}
	b.WriteString("\n" + dimStyle.Render("n new · d delete · h quiz history · enter open · q quit"))
	return b.String()
}

func (m Model) viewBindBooks() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Bind Books: " + m.pendingTitle))
	b.WriteString("\n")
	if len(m.books) == 0 {
		b.WriteString(dimStyle.Render("No books ingested yet. Use -ingest to add one.") + "\n")
	}
	for i, bk := range m.books {
		mark := "[ ]"
		if m.bookChecked[bk.ID] {
			mark = selectedOptionStyle.Render("[x]")
		}
		line := fmt.Sprintf("%s %s", mark, bk.Title)
		if bk.Author != "" {
			line += dimStyle.Render("  by " + bk.Author)
		}
		if i == m.bookCursor {
			line = cursorStyle.Render("> ") + line
		} else {
			line = "  " + line
		}
		b.WriteString(line + "\n")
	}
	b.WriteString("\n" + dimStyle.Render("space toggle · enter create · esc cancel"))
	return b.String()
}

func (m Model) viewNotes() string {
	nb := m.currentNotebook()
	if nb == nil {
		return dimStyle.Render("No notebook selected.")
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(nb.Title))
	b.WriteString("\n")
	if len(nb.Notes) == 0 {
		b.WriteString(dimStyle.Render("No notes yet, press n to write one.") + "\n")
	}
	for i, note := range nb.Notes {
		preview := firstLine(note.Content, 60)
		line := fmt.Sprintf("%s  %s", preview,
			dimStyle.Render(fmt.Sprintf("(%d threads)", len(note.CommentThreads))))
		if i == m.noteCursor {
			line = cursorStyle.Render("> ") + line
		} else {
			line = "  " + line
		}
		b.WriteString(line + "\n")
	}
	b.WriteString("\n" + dimStyle.Render("n new note · s summon companions · z quiz · enter threads · esc back"))
	return b.String()
}

func (m Model) viewThread() string {
	note := m.currentNote()
	if note == nil {
		return dimStyle.Render("No note selected.")
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(firstLine(note.Content, 70)))
	b.WriteString("\n")

	if len(note.CommentThreads) == 0 {
		b.WriteString(dimStyle.Render("No comment threads, summon companions from the notes list.") + "\n")
	} else {
		tabs := make([]string, 0, len(note.CommentThreads))
		for i, t := range note.CommentThreads {
			name := t.CharacterName
			if i == m.threadCursor {
				name = cursorStyle.Render("[" + name + "]")
			} else {
				name = dimStyle.Render(" " + name + " ")
			}
			tabs = append(tabs, name)
		}
		b.WriteString(strings.Join(tabs, " ") + "\n\n")
		b.WriteString(m.viewport.View() + "\n")
	}

	b.WriteString("\n" + dimStyle.Render("enter reply · tab switch thread · r regenerate · d delete last · esc back"))
	return b.String()
}

// refreshViewport re-renders the active thread into the scrollable view,
// including the live preview of an in-flight response
func (m *Model) refreshViewport() {
	thread := m.currentThread()
	if thread == nil {
		m.viewport.SetContent("")
		return
	}

	var b strings.Builder
	for _, msg := range thread.Messages {
		switch msg.Role {
		case notebook.RoleUser:
			b.WriteString(userStyle.Render("You") + "\n")
		default:
			b.WriteString(characterStyle.Render(thread.CharacterName) + "\n")
		}
		b.WriteString(msg.Content + "\n\n")
	}
	if m.busy && m.preview != "" {
		b.WriteString(characterStyle.Render(thread.CharacterName) + dimStyle.Render(" (writing)") + "\n")
		b.WriteString(m.preview + "\n")
	}
	m.viewport.SetContent(b.String())
	m.viewport.GotoBottom()
}

func (m Model) viewQuizPlay() string {
	s := m.session
	if s == nil || len(s.Questions) == 0 {
		return dimStyle.Render("No quiz in progress.")
	}
	q := s.Questions[m.qIndex]
	answers := s.UserAnswers[q.ID]

	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("Question %d of %d", m.qIndex+1, len(s.Questions))))
	b.WriteString("\n" + q.Question + "\n\n")
	for i, opt := range q.Options {
		line := fmt.Sprintf("[ ] %d. %s", i+1, opt)
		if slices.Contains(answers, i) {
			line = selectedOptionStyle.Render(fmt.Sprintf("[x] %d. %s", i+1, opt))
		}
		b.WriteString(line + "\n")
	}

	hint := "1-9 answer · arrows move · enter submit all · esc save and exit"
	if q.Type == quiz.TypeMultiple {
		hint = "1-9 toggle · arrows move · enter submit all · esc save and exit"
	}
	b.WriteString("\n" + dimStyle.Render(hint))
	return b.String()
}

func (m Model) viewQuizResult() string {
	s := m.session
	if s == nil {
		return dimStyle.Render("No quiz results.")
	}
	correct, total := s.Score()

	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("Score: %d/%d", correct, total)))
	b.WriteString("\n")
	for i, q := range s.Questions {
		mark := wrongStyle.Render("✗")
		if answerSetsMatch(s, q) {
			mark = correctStyle.Render("✓")
		}
		b.WriteString(fmt.Sprintf("%s Q%d: %s\n", mark, i+1, firstLine(q.Question, 70)))
		if q.Explanation != "" {
			b.WriteString(dimStyle.Render("   "+q.Explanation) + "\n")
		}
	}
	if s.OverallComment != "" {
		b.WriteString("\n" + characterStyle.Render(s.CharacterName) + "\n" + s.OverallComment + "\n")
	}
	b.WriteString("\n" + dimStyle.Render("esc back"))
	return b.String()
}

func (m Model) viewQuizHistory() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Quiz History"))
	b.WriteString("\n")
	if len(m.sessions) == 0 {
		b.WriteString(dimStyle.Render("No saved quiz sessions.") + "\n")
	}
	for i, s := range m.sessions {
		state := dimStyle.Render(fmt.Sprintf("in progress, %d/%d answered", s.FirstUnanswered(), len(s.Questions)))
		if s.Completed() {
			correct, total := s.Score()
			state = correctStyle.Render(fmt.Sprintf("completed, %d/%d", correct, total))
		}
		line := fmt.Sprintf("%s  %s", firstLine(s.Config.CustomPrompt, 50), state)
		if i == m.sessionCursor {
			line = cursorStyle.Render("> ") + line
		} else {
			line = "  " + line
		}
		b.WriteString(line + "\n")
	}
	b.WriteString("\n" + dimStyle.Render("enter resume/view · d delete · esc back"))
	return b.String()
}

// answerSetsMatch mirrors the scoring rule for per-question display
func answerSetsMatch(s *quiz.Session, q quiz.Question) bool {
	scored := &quiz.Session{
		Questions:   []quiz.Question{q},
		UserAnswers: map[uuid.UUID][]int{q.ID: s.UserAnswers[q.ID]},
	}
	c, _ := scored.Score()
	return c == 1
}

func firstLine(s string, limit int) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	r := []rune(s)
	if len(r) > limit {
		return string(r[:limit-1]) + "…"
	}
	return s
}
