package app

import (
	"math"

	"psd-quiz-service/internal/domain"
)

// DefaultPassPercentage is the score needed to pass an attempt.
const DefaultPassPercentage = 85

// IsAnsweredCorrectly reports whether the selected answers are exactly the
// set of correct options. Order and repeated indices do not matter.
func IsAnsweredCorrectly(q domain.Question) bool {
	correct := q.CorrectIndices()
	selected := make(map[int]struct{}, len(q.SelectedAnswers))
	for _, idx := range q.SelectedAnswers {
		selected[idx] = struct{}{}
	}
	if len(selected) != len(correct) {
		return false
	}
	for _, idx := range correct {
		if _, ok := selected[idx]; !ok {
			return false
		}
	}
	return true
}

// Score grades an attempt against the given pass percentage.
// An empty attempt scores 0% and fails.
func Score(questions []domain.Question, passPercentage int) domain.Result {
	result := domain.Result{Total: len(questions)}
	for _, q := range questions {
		if IsAnsweredCorrectly(q) {
			result.Correct++
		}
	}
	if result.Total == 0 {
		return result
	}
	result.Percentage = int(math.Round(float64(result.Correct) / float64(result.Total) * 100))
	result.Passed = result.Percentage >= passPercentage
	return result
}

// Feedback builds the practice-mode verdict for a single question.
func Feedback(q domain.Question) domain.AnswerFeedback {
	selected := make(map[int]struct{}, len(q.SelectedAnswers))
	for _, idx := range q.SelectedAnswers {
		selected[idx] = struct{}{}
	}
	options := make([]domain.OptionFeedback, len(q.Options))
	for i, opt := range q.Options {
		_, picked := selected[i]
		switch {
		case opt.IsCorrect:
			options[i] = domain.FeedbackCorrect
		case picked:
			options[i] = domain.FeedbackWrongSelected
		default:
			options[i] = domain.FeedbackNeutral
		}
	}
	return domain.AnswerFeedback{
		Correct: IsAnsweredCorrectly(q),
		Options: options,
	}
}
