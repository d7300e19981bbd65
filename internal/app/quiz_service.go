package app

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"psd-quiz-service/internal/domain"
)

// QuestionRepository loads a question bank (from cache/backing store).
type QuestionRepository interface {
	GetQuestions(ctx context.Context, bankID string) ([]domain.Question, error)
}

// Options tunes a QuizService. Zero values fall back to the defaults.
type Options struct {
	BankID            string
	ExamQuestionCount int
	ExamDuration      time.Duration
	WarningThreshold  time.Duration
	PassPercentage    int
	Ranges            []domain.QuestionRange
	TickInterval      time.Duration
	Now               func() time.Time
	Rand              *rand.Rand
}

// QuizService owns one quiz session and serialises every event that touches
// it: user actions, timer ticks and the startup restore.
type QuizService struct {
	bankRepo       QuestionRepository
	bankID         string
	store          *ExamSessionStore
	state          *QuizState
	timer          *ExamTimer
	nav            *Navigator
	ranges         []domain.QuestionRange
	passPercentage int
	log            zerolog.Logger

	mu          sync.Mutex
	bank        []domain.Question
	feedback    *domain.AnswerFeedback
	result      *domain.Result
	subscribers map[chan domain.Snapshot]struct{}
}

func NewQuizService(bankRepo QuestionRepository, store *ExamSessionStore, log zerolog.Logger, opts Options) *QuizService {
	s := &QuizService{
		bankRepo:       bankRepo,
		bankID:         opts.BankID,
		store:          store,
		nav:            NewNavigator(),
		ranges:         opts.Ranges,
		passPercentage: opts.PassPercentage,
		log:            log.With().Str("component", "quiz_service").Logger(),
		subscribers:    make(map[chan domain.Snapshot]struct{}),
	}
	if len(s.ranges) == 0 {
		s.ranges = DefaultRanges
	}
	if s.passPercentage <= 0 {
		s.passPercentage = DefaultPassPercentage
	}

	stateOpts := []QuizStateOption{WithExamQuestionCount(opts.ExamQuestionCount)}
	timerOpts := []TimerOption{
		WithDuration(opts.ExamDuration, opts.WarningThreshold),
		WithTickInterval(opts.TickInterval),
		OnTick(s.handleTick),
		OnExpired(s.handleExpired),
	}
	if opts.WarningThreshold == 0 {
		timerOpts[0] = WithDuration(opts.ExamDuration, DefaultWarningThreshold)
	}
	if opts.Now != nil {
		stateOpts = append(stateOpts, WithClock(opts.Now))
		timerOpts = append(timerOpts, WithTimerClock(opts.Now))
	}
	if opts.Rand != nil {
		stateOpts = append(stateOpts, WithRand(opts.Rand))
	}
	s.state = NewQuizState(store, stateOpts...)
	s.timer = NewExamTimer(store, timerOpts...)
	return s
}

// Start loads the question bank and resumes an interrupted exam, if any.
// A resumed exam whose time ran out while the process was down goes
// straight to the results screen.
func (s *QuizService) Start(ctx context.Context) error {
	questions, err := s.bankRepo.GetQuestions(ctx, s.bankID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.bank = questions
	if len(questions) == 0 {
		s.log.Warn().Str("bank", s.bankID).Msg("question bank is empty")
	}

	restored, err := s.state.RestoreExamSession(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("restore exam session failed, starting fresh")
	}
	if restored {
		s.nav.StartQuiz()
		if err := s.timer.Activate(ctx); err != nil {
			return err
		}
		s.log.Info().
			Int("current_index", s.state.CurrentIndex()).
			Int("questions", s.state.Len()).
			Str("remaining", s.timer.State().Formatted).
			Msg("exam session restored")
		if s.timer.Expired() {
			if err := s.finishLocked(ctx); err != nil {
				return err
			}
		}
	}
	s.broadcastLocked()
	return nil
}

// SelectMode starts an exam right away; practice moves on to range selection.
func (s *QuizService) SelectMode(ctx context.Context, mode domain.Mode) error {
	if !mode.Valid() {
		return domain.ErrInvalidMode
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selectModeLocked(ctx, mode)
}

func (s *QuizService) selectModeLocked(ctx context.Context, mode domain.Mode) error {
	// the mode switches once a range is chosen
	if mode == domain.ModePractice {
		s.timer.Deactivate()
		s.nav.GoToRangeSelection()
		s.broadcastLocked()
		return nil
	}

	if len(s.bank) == 0 {
		return domain.ErrNoQuestions
	}
	s.timer.Deactivate()
	s.state.SetMode(mode)
	s.feedback, s.result = nil, nil
	if err := s.state.InitializeExamMode(ctx, s.bank); err != nil {
		s.log.Error().Err(err).Msg("persist new exam session failed")
		return err
	}
	s.nav.StartQuiz()
	if err := s.timer.Activate(ctx); err != nil {
		return err
	}
	s.log.Info().Int("questions", s.state.Len()).Msg("exam started")
	s.broadcastLocked()
	return nil
}

// SelectRange starts a practice session over one band of the bank. An
// exam left in flight is abandoned.
func (s *QuizService) SelectRange(ctx context.Context, label string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	selected, err := SelectRange(s.bank, s.ranges, label)
	if err != nil {
		return err
	}
	s.timer.Deactivate()
	if err := s.state.ResetQuiz(ctx); err != nil {
		s.log.Error().Err(err).Msg("clear exam session failed")
		return err
	}
	s.state.SetMode(domain.ModePractice)
	s.state.InitializePracticeMode(selected)
	s.feedback, s.result = nil, nil
	s.nav.StartQuiz()
	s.log.Info().Str("range", label).Int("questions", len(selected)).Msg("practice started")
	s.broadcastLocked()
	return nil
}

// Answer replaces the answers of the question on screen.
func (s *QuizService) Answer(ctx context.Context, selected []int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.nav.Current() != domain.ScreenQuiz {
		return domain.ErrNoActiveQuiz
	}
	if err := s.state.UpdateQuestionAnswers(ctx, selected); err != nil {
		return err
	}
	s.feedback = nil
	s.broadcastLocked()
	return nil
}

// Next moves to the next question; on the last question it finishes the quiz.
func (s *QuizService) Next(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.nav.Current() != domain.ScreenQuiz {
		return domain.ErrNoActiveQuiz
	}
	if s.state.IsLastQuestion() {
		return s.finishLocked(ctx)
	}
	s.feedback = nil
	if err := s.state.NextQuestion(ctx); err != nil {
		s.log.Error().Err(err).Msg("persist current index failed")
		return err
	}
	s.broadcastLocked()
	return nil
}

// Previous moves back one question.
func (s *QuizService) Previous(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.nav.Current() != domain.ScreenQuiz {
		return domain.ErrNoActiveQuiz
	}
	s.feedback = nil
	if err := s.state.PreviousQuestion(ctx); err != nil {
		s.log.Error().Err(err).Msg("persist current index failed")
		return err
	}
	s.broadcastLocked()
	return nil
}

// CheckAnswer reveals the verdict for the current practice question.
func (s *QuizService) CheckAnswer() (domain.AnswerFeedback, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.Mode() != domain.ModePractice {
		return domain.AnswerFeedback{}, domain.ErrNotPracticeMode
	}
	q, ok := s.state.CurrentQuestion()
	if !ok || s.nav.Current() != domain.ScreenQuiz {
		return domain.AnswerFeedback{}, domain.ErrNoActiveQuiz
	}
	fb := Feedback(q)
	s.feedback = &fb
	s.broadcastLocked()
	return fb, nil
}

// ResetAnswer hides the practice verdict and clears the current answers.
func (s *QuizService) ResetAnswer(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.Mode() != domain.ModePractice {
		return domain.ErrNotPracticeMode
	}
	if s.nav.Current() != domain.ScreenQuiz {
		return domain.ErrNoActiveQuiz
	}
	if err := s.state.UpdateQuestionAnswers(ctx, nil); err != nil {
		return err
	}
	s.feedback = nil
	s.broadcastLocked()
	return nil
}

// Finish scores the attempt and shows the results.
func (s *QuizService) Finish(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.finishLocked(ctx)
}

// finishLocked is a no-op unless the quiz screen is showing, so a manual
// finish racing the expiration callback scores only once.
func (s *QuizService) finishLocked(ctx context.Context) error {
	if s.nav.Current() != domain.ScreenQuiz {
		return nil
	}
	s.timer.Deactivate()
	result := Score(s.state.Questions(), s.passPercentage)
	s.result = &result
	s.feedback = nil
	s.nav.ShowResults()

	var err error
	if s.state.Mode() == domain.ModeExam {
		err = s.store.Clear(ctx)
		if err != nil {
			s.log.Error().Err(err).Msg("clear exam session failed")
		}
	}
	s.log.Info().
		Str("mode", string(s.state.Mode())).
		Int("correct", result.Correct).
		Int("total", result.Total).
		Int("percentage", result.Percentage).
		Str("verdict", result.Label()).
		Msg("quiz finished")
	s.broadcastLocked()
	return err
}

// Restart abandons the session and returns to the landing screen.
func (s *QuizService) Restart(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.restartLocked(ctx)
}

func (s *QuizService) restartLocked(ctx context.Context) error {
	s.timer.Deactivate()
	err := s.state.ResetQuiz(ctx)
	if resetErr := s.timer.ResetTimer(ctx); err == nil {
		err = resetErr
	}
	s.feedback, s.result = nil, nil
	s.nav.GoToLanding()
	s.broadcastLocked()
	if err != nil {
		s.log.Error().Err(err).Msg("restart could not clear exam session")
	}
	return err
}

// Navigate switches to an informational screen, or back into a quiz that
// still has questions. Leaving the quiz screen stops the countdown; the
// persisted start time keeps the exam clock running regardless. An exam can
// only be resumed while its session is persisted.
func (s *QuizService) Navigate(ctx context.Context, screen domain.Screen) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch screen {
	case domain.ScreenLanding:
		s.timer.Deactivate()
		s.nav.GoToLanding()
	case domain.ScreenAbout:
		s.timer.Deactivate()
		s.nav.GoToAbout()
	case domain.ScreenQuiz:
		if _, ok := s.state.CurrentQuestion(); !ok {
			return domain.ErrNoQuestions
		}
		if s.state.Mode() == domain.ModeExam {
			// a finished exam has no persisted start time left to count from
			active, err := s.store.HasActiveSession(ctx)
			if err != nil {
				return err
			}
			if !active {
				return domain.ErrNoActiveQuiz
			}
		}
		s.nav.StartQuiz()
		if s.state.Mode() == domain.ModeExam {
			if err := s.timer.Activate(ctx); err != nil {
				return err
			}
			if s.timer.Expired() {
				return s.finishLocked(ctx)
			}
		}
	default:
		return domain.ErrInvalidScreen
	}
	s.broadcastLocked()
	return nil
}

// Snapshot returns the current view state.
func (s *QuizService) Snapshot() domain.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Subscribe returns a channel that receives a snapshot after every change.
// The caller must invoke the returned cancel function to avoid leaks.
func (s *QuizService) Subscribe() (<-chan domain.Snapshot, func()) {
	ch := make(chan domain.Snapshot, 8)

	s.mu.Lock()
	s.subscribers[ch] = struct{}{}
	ch <- s.snapshotLocked()
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		if _, ok := s.subscribers[ch]; ok {
			delete(s.subscribers, ch)
			close(ch)
		}
		s.mu.Unlock()
	}
	return ch, cancel
}

// Close stops the exam countdown.
func (s *QuizService) Close() {
	s.timer.Close()
}

func (s *QuizService) handleTick(domain.TimerState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.broadcastLocked()
}

// handleExpired runs outside the timer lock, so by the time it gets the
// service lock the exam it was fired for may be gone.
func (s *QuizService) handleExpired() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.timer.IsActive() || !s.timer.Expired() {
		s.log.Debug().Msg("ignoring expiry of a discarded countdown")
		return
	}
	s.log.Info().Msg("exam time expired")
	if err := s.finishLocked(context.Background()); err != nil {
		s.log.Error().Err(err).Msg("finish expired exam failed")
	}
}

func (s *QuizService) broadcastLocked() {
	snap := s.snapshotLocked()
	for ch := range s.subscribers {
		select {
		case ch <- snap:
		default:
			// drop the stale snapshot so a slow client cannot block the session
			select {
			case <-ch:
			default:
			}
			ch <- snap
		}
	}
}

func (s *QuizService) snapshotLocked() domain.Snapshot {
	screen := s.nav.Current()
	snap := domain.Snapshot{
		Screen:         screen,
		Mode:           s.state.Mode(),
		BankSize:       len(s.bank),
		Ranges:         s.ranges,
		CurrentIndex:   s.state.CurrentIndex(),
		Total:          s.state.Len(),
		CanGoPrevious:  s.state.CanGoPrevious(),
		IsLastQuestion: s.state.IsLastQuestion(),
		Feedback:       s.feedback,
	}
	if screen == domain.ScreenQuiz {
		if q, ok := s.state.CurrentQuestion(); ok {
			snap.Question = questionView(q)
		}
	}
	if s.state.Mode() == domain.ModeExam && (screen == domain.ScreenQuiz || screen == domain.ScreenResults) {
		timer := s.timer.State()
		snap.Timer = &timer
	}
	if screen == domain.ScreenResults {
		snap.Result = s.result
	}
	return snap
}

func questionView(q domain.Question) *domain.QuestionView {
	options := make([]string, len(q.Options))
	for i, opt := range q.Options {
		options[i] = opt.Text
	}
	return &domain.QuestionView{
		ID:              q.ID,
		Question:        q.Question,
		Options:         options,
		SelectedAnswers: q.SelectedAnswers,
		MultiSelect:     q.IsMultiSelect(),
	}
}
