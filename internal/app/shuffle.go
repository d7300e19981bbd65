package app

import (
	"math/rand"

	"psd-quiz-service/internal/domain"
)

// shuffleQuestions returns a Fisher-Yates permutation of questions, leaving
// the input untouched. A seeded rnd gives a reproducible order.
func shuffleQuestions(rnd *rand.Rand, questions []domain.Question) []domain.Question {
	shuffled := make([]domain.Question, len(questions))
	copy(shuffled, questions)
	rnd.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	return shuffled
}
