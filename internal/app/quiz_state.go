package app

import (
	"context"
	"math/rand"
	"time"

	"psd-quiz-service/internal/domain"
)

// DefaultExamQuestionCount is how many questions an exam draws from the bank.
const DefaultExamQuestionCount = 80

// QuizState holds the working copy of a quiz session. It is not safe for
// concurrent use; QuizService serialises access to it.
//
// The current question is always addressed by position. Question IDs are
// reassigned per session and never used for lookups.
type QuizState struct {
	store     *ExamSessionStore
	now       func() time.Time
	rnd       *rand.Rand
	examCount int

	mode         domain.Mode
	questions    []domain.Question
	currentIndex int
}

// QuizStateOption customises a QuizState.
type QuizStateOption func(*QuizState)

// WithRand sets the randomness source used to draw exam questions.
func WithRand(rnd *rand.Rand) QuizStateOption {
	return func(s *QuizState) { s.rnd = rnd }
}

// WithClock sets the clock used for exam start times.
func WithClock(now func() time.Time) QuizStateOption {
	return func(s *QuizState) { s.now = now }
}

// WithExamQuestionCount overrides the exam size.
func WithExamQuestionCount(n int) QuizStateOption {
	return func(s *QuizState) {
		if n > 0 {
			s.examCount = n
		}
	}
}

func NewQuizState(store *ExamSessionStore, opts ...QuizStateOption) *QuizState {
	s := &QuizState{
		store:     store,
		now:       time.Now,
		rnd:       rand.New(rand.NewSource(time.Now().UnixNano())),
		examCount: DefaultExamQuestionCount,
		mode:      domain.ModeExam,
		questions: []domain.Question{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetMode records the active mode without starting a session.
func (s *QuizState) SetMode(mode domain.Mode) {
	s.mode = mode
}

// InitializeExamMode draws a fresh random exam from the bank and persists it
// as a brand-new session, replacing any previous one.
func (s *QuizState) InitializeExamMode(ctx context.Context, all []domain.Question) error {
	selected := shuffleQuestions(s.rnd, all)
	if len(selected) > s.examCount {
		selected = selected[:s.examCount]
	}
	s.questions = prepareQuestions(selected)
	s.currentIndex = 0

	return s.store.Save(ctx, domain.ExamSession{
		StartTime:    s.now(),
		Questions:    domain.CloneQuestions(s.questions),
		CurrentIndex: s.currentIndex,
	})
}

// InitializePracticeMode starts an unpersisted session over the given questions.
func (s *QuizState) InitializePracticeMode(selected []domain.Question) {
	s.questions = prepareQuestions(selected)
	s.currentIndex = 0
}

// NextQuestion advances the pointer. There is no upper clamp: moving past the
// last question is the caller's cue to show results.
func (s *QuizState) NextQuestion(ctx context.Context) error {
	s.currentIndex++
	return s.persistIndex(ctx)
}

// PreviousQuestion moves back one question; it is a no-op on the first one.
func (s *QuizState) PreviousQuestion(ctx context.Context) error {
	if s.currentIndex == 0 {
		return nil
	}
	s.currentIndex--
	return s.persistIndex(ctx)
}

// persistIndex skips positions past the end; the store would read them back
// as a corrupt session.
func (s *QuizState) persistIndex(ctx context.Context) error {
	if s.mode != domain.ModeExam || s.currentIndex >= len(s.questions) {
		return nil
	}
	return s.store.UpdateCurrentIndex(ctx, s.currentIndex)
}

// UpdateQuestionAnswers replaces the answers of the question at the current
// position. Duplicate indices are collapsed.
func (s *QuizState) UpdateQuestionAnswers(ctx context.Context, selected []int) error {
	if s.currentIndex < 0 || s.currentIndex >= len(s.questions) {
		return domain.ErrNoActiveQuiz
	}
	q := &s.questions[s.currentIndex]
	answers := make([]int, 0, len(selected))
	seen := make(map[int]struct{}, len(selected))
	for _, idx := range selected {
		if idx < 0 || idx >= len(q.Options) {
			return domain.ErrOptionOutOfRange
		}
		if _, dup := seen[idx]; dup {
			continue
		}
		seen[idx] = struct{}{}
		answers = append(answers, idx)
	}
	q.SelectedAnswers = answers

	if s.mode != domain.ModeExam {
		return nil
	}
	return s.store.UpdateQuestions(ctx, s.questions)
}

// ResetQuiz drops the session, persisted or not. The mode is kept.
func (s *QuizState) ResetQuiz(ctx context.Context) error {
	s.questions = []domain.Question{}
	s.currentIndex = 0
	return s.store.Clear(ctx)
}

// RestoreExamSession adopts a persisted exam session. It reports false and
// leaves the state untouched when none can be loaded.
func (s *QuizState) RestoreExamSession(ctx context.Context) (bool, error) {
	session, ok, err := s.store.Load(ctx)
	if err != nil || !ok {
		return false, err
	}
	s.mode = domain.ModeExam
	s.questions = session.Questions
	s.currentIndex = session.CurrentIndex
	return true, nil
}

func (s *QuizState) Mode() domain.Mode {
	return s.mode
}

func (s *QuizState) CurrentIndex() int {
	return s.currentIndex
}

// Questions returns a copy of the working question list.
func (s *QuizState) Questions() []domain.Question {
	return domain.CloneQuestions(s.questions)
}

func (s *QuizState) Len() int {
	return len(s.questions)
}

// CurrentQuestion returns the question at the current position.
func (s *QuizState) CurrentQuestion() (domain.Question, bool) {
	if s.currentIndex < 0 || s.currentIndex >= len(s.questions) {
		return domain.Question{}, false
	}
	return s.questions[s.currentIndex].Clone(), true
}

func (s *QuizState) IsLastQuestion() bool {
	return s.currentIndex == len(s.questions)-1
}

func (s *QuizState) CanGoPrevious() bool {
	return s.currentIndex > 0
}

// prepareQuestions copies questions into a session: sequential ids, no answers.
func prepareQuestions(questions []domain.Question) []domain.Question {
	prepared := make([]domain.Question, len(questions))
	for i, q := range questions {
		prepared[i] = q.Clone()
		prepared[i].ID = i
		prepared[i].SelectedAnswers = []int{}
	}
	return prepared
}
