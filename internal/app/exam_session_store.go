package app

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"psd-quiz-service/internal/domain"
)

// KeyValueStore is the durable backing of the exam session slot
// (in-memory, Redis, Postgres).
type KeyValueStore interface {
	// Get returns the value and whether the key exists.
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	// Delete removes the keys; missing keys are not an error.
	Delete(ctx context.Context, keys ...string) error
}

const (
	startTimeKey    = "exam_session_start_time"
	questionsKey    = "exam_session_questions"
	currentIndexKey = "exam_session_current_index"
)

// ExamSessionStore persists the single in-flight exam session as three
// independently addressable entries.
type ExamSessionStore struct {
	kv     KeyValueStore
	prefix string
}

// NewExamSessionStore builds a store; namespace is prepended to every key
// so several deployments can share one backend.
func NewExamSessionStore(kv KeyValueStore, namespace string) *ExamSessionStore {
	return &ExamSessionStore{kv: kv, prefix: namespace}
}

func (s *ExamSessionStore) startTimeKey() string    { return s.prefix + startTimeKey }
func (s *ExamSessionStore) questionsKey() string    { return s.prefix + questionsKey }
func (s *ExamSessionStore) currentIndexKey() string { return s.prefix + currentIndexKey }

// Save writes all three fields, overwriting any previous session.
func (s *ExamSessionStore) Save(ctx context.Context, session domain.ExamSession) error {
	if err := s.kv.Set(ctx, s.startTimeKey(), strconv.FormatInt(session.StartTime.UnixMilli(), 10)); err != nil {
		return fmt.Errorf("save start time: %w", err)
	}
	if err := s.UpdateQuestions(ctx, session.Questions); err != nil {
		return err
	}
	return s.UpdateCurrentIndex(ctx, session.CurrentIndex)
}

// Load returns the persisted session. ok is false when any field is missing.
// Undecodable or inconsistent data is cleared and reported as absent.
func (s *ExamSessionStore) Load(ctx context.Context) (domain.ExamSession, bool, error) {
	rawStart, okStart, err := s.kv.Get(ctx, s.startTimeKey())
	if err != nil {
		return domain.ExamSession{}, false, fmt.Errorf("load start time: %w", err)
	}
	rawQuestions, okQuestions, err := s.kv.Get(ctx, s.questionsKey())
	if err != nil {
		return domain.ExamSession{}, false, fmt.Errorf("load questions: %w", err)
	}
	rawIndex, okIndex, err := s.kv.Get(ctx, s.currentIndexKey())
	if err != nil {
		return domain.ExamSession{}, false, fmt.Errorf("load current index: %w", err)
	}
	if !okStart || !okQuestions || !okIndex {
		return domain.ExamSession{}, false, nil
	}

	session, decodeErr := decodeSession(rawStart, rawQuestions, rawIndex)
	if decodeErr != nil {
		if err := s.Clear(ctx); err != nil {
			return domain.ExamSession{}, false, err
		}
		return domain.ExamSession{}, false, nil
	}
	return session, true, nil
}

func decodeSession(rawStart, rawQuestions, rawIndex string) (domain.ExamSession, error) {
	startMillis, err := strconv.ParseInt(rawStart, 10, 64)
	if err != nil {
		return domain.ExamSession{}, err
	}
	var questions []domain.Question
	if err := json.Unmarshal([]byte(rawQuestions), &questions); err != nil {
		return domain.ExamSession{}, err
	}
	index, err := strconv.Atoi(rawIndex)
	if err != nil {
		return domain.ExamSession{}, err
	}
	if index < 0 || index >= len(questions) {
		return domain.ExamSession{}, fmt.Errorf("current index %d outside %d questions", index, len(questions))
	}
	for i := range questions {
		if questions[i].SelectedAnswers == nil {
			questions[i].SelectedAnswers = []int{}
		}
	}
	return domain.ExamSession{
		StartTime:    time.UnixMilli(startMillis),
		Questions:    questions,
		CurrentIndex: index,
	}, nil
}

// UpdateQuestions rewrites only the question list.
func (s *ExamSessionStore) UpdateQuestions(ctx context.Context, questions []domain.Question) error {
	if questions == nil {
		questions = []domain.Question{}
	}
	data, err := json.Marshal(questions)
	if err != nil {
		return fmt.Errorf("marshal questions: %w", err)
	}
	if err := s.kv.Set(ctx, s.questionsKey(), string(data)); err != nil {
		return fmt.Errorf("save questions: %w", err)
	}
	return nil
}

// UpdateCurrentIndex rewrites only the current index.
func (s *ExamSessionStore) UpdateCurrentIndex(ctx context.Context, index int) error {
	if err := s.kv.Set(ctx, s.currentIndexKey(), strconv.Itoa(index)); err != nil {
		return fmt.Errorf("save current index: %w", err)
	}
	return nil
}

// Clear removes all three entries. It is safe to call without a session.
func (s *ExamSessionStore) Clear(ctx context.Context) error {
	if err := s.kv.Delete(ctx, s.startTimeKey(), s.questionsKey(), s.currentIndexKey()); err != nil {
		return fmt.Errorf("clear exam session: %w", err)
	}
	return nil
}

// HasActiveSession probes the start time entry only.
func (s *ExamSessionStore) HasActiveSession(ctx context.Context) (bool, error) {
	_, ok, err := s.kv.Get(ctx, s.startTimeKey())
	if err != nil {
		return false, fmt.Errorf("probe exam session: %w", err)
	}
	return ok, nil
}

// StartTime returns the persisted start time, if a parsable one exists.
func (s *ExamSessionStore) StartTime(ctx context.Context) (time.Time, bool, error) {
	raw, ok, err := s.kv.Get(ctx, s.startTimeKey())
	if err != nil {
		return time.Time{}, false, fmt.Errorf("load start time: %w", err)
	}
	if !ok {
		return time.Time{}, false, nil
	}
	millis, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, false, nil
	}
	return time.UnixMilli(millis), true, nil
}
