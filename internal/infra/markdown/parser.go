// Package markdown reads question banks written as markdown checklists:
//
//	### Who owns the Product Backlog?
//
//	- [ ] The Scrum Master
//	- [x] The Product Owner
package markdown

import (
	"bufio"
	"strings"

	"psd-quiz-service/internal/domain"
)

const (
	headingPrefix   = "### "
	correctPrefix   = "- [x]"
	incorrectPrefix = "- [ ]"
)

// Parse turns bank text into questions in document order. Text before the
// first heading is ignored, as are headings without a single option line.
// Ids are assigned 0-based over the questions kept.
func Parse(text string) []domain.Question {
	questions := make([]domain.Question, 0)
	var current *domain.Question

	flush := func() {
		if current != nil && len(current.Options) > 0 {
			current.ID = len(questions)
			questions = append(questions, *current)
		}
		current = nil
	}

	// ReadString has no line length limit, unlike bufio.Scanner
	reader := bufio.NewReader(strings.NewReader(text))
	for {
		raw, err := reader.ReadString('\n')
		line := strings.TrimRight(raw, "\r\n")
		switch {
		case strings.HasPrefix(line, headingPrefix):
			flush()
			current = &domain.Question{
				Question:        strings.TrimSpace(strings.TrimPrefix(line, headingPrefix)),
				Options:         []domain.Option{},
				SelectedAnswers: []int{},
			}
		case current != nil:
			if opt, ok := parseOption(line); ok {
				current.Options = append(current.Options, opt)
			}
		}
		if err != nil {
			break
		}
	}
	flush()
	return questions
}

func parseOption(line string) (domain.Option, bool) {
	trimmed := strings.TrimSpace(line)
	switch {
	case strings.HasPrefix(trimmed, correctPrefix):
		return domain.Option{Text: strings.TrimSpace(trimmed[len(correctPrefix):]), IsCorrect: true}, true
	case strings.HasPrefix(trimmed, incorrectPrefix):
		return domain.Option{Text: strings.TrimSpace(trimmed[len(incorrectPrefix):])}, true
	default:
		return domain.Option{}, false
	}
}
