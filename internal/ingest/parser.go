package ingest

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/gen2brain/go-fitz"

	"github.com/shelfmate-ai/companion/internal/book"
)

// ParseFile extracts the linear text of a PDF or EPUB file. Pages are joined
// with blank lines so offsets stay stable across the whole book.
func ParseFile(filePath string) (string, error) {
	doc, err := fitz.New(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to open book file: %w", err)
	}
	defer doc.Close()

	var textParts []string
	for i := 0; i < doc.NumPage(); i++ {
		text, err := doc.Text(i)
		if err == nil && strings.TrimSpace(text) != "" {
			textParts = append(textParts, text)
		}
	}
	if len(textParts) == 0 {
		return "", fmt.Errorf("no extractable text in %s", filePath)
	}

	return strings.Join(textParts, "\n\n"), nil
}

var chapterHeadingRe = regexp.MustCompile(`(?mi)^\s*(chapter|part|book|prologue|epilogue)\b[^\n]{0,80}$`)

// EstimateChapters derives chapter boundaries from heading lines in the
// linear text. Heading detection is heuristic; a book with no recognizable
// headings becomes one chapter spanning the whole text, which still gives the
// progress resolver a usable structure.
func EstimateChapters(text string) []book.Chapter {
	locs := chapterHeadingRe.FindAllStringIndex(text, -1)
	if len(locs) == 0 {
		return []book.Chapter{{Title: "Full text", Start: 0, End: len(text)}}
	}

	var chapters []book.Chapter
	if locs[0][0] > 0 {
		chapters = append(chapters, book.Chapter{Title: "Front matter", Start: 0, End: locs[0][0]})
	}
	for k, loc := range locs {
		end := len(text)
		if k+1 < len(locs) {
			end = locs[k+1][0]
		}
		title := strings.Join(strings.Fields(text[loc[0]:loc[1]]), " ")
		chapters = append(chapters, book.Chapter{Title: title, Start: loc[0], End: end})
	}
	return chapters
}
