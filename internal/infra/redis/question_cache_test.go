package redis

import (
	"context"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"psd-quiz-service/internal/domain"
	"psd-quiz-service/internal/infra/memory"
)

func TestQuestionCacheCachesInRedis(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	source := &countingSource{
		QuestionSource: memory.NewStaticQuestionSource(map[string][]domain.Question{
			"psd-i": sampleBank(),
		}),
	}
	cache := NewQuestionCache(newClient(mr), source, time.Minute, zerolog.Nop())

	questions, err := cache.GetQuestions(context.Background(), "psd-i")
	if err != nil {
		t.Fatalf("get questions: %v", err)
	}
	if len(questions) != 1 || questions[0].Options[1].Text != "Product Owner" {
		t.Fatalf("unexpected bank %+v", questions)
	}
	if source.Calls() != 1 {
		t.Fatalf("expected source called once, got %d", source.Calls())
	}
	if !mr.Exists("question_bank:psd-i") {
		t.Fatalf("expected cached bank key")
	}
	if ttl := mr.TTL("question_bank:psd-i"); ttl < time.Minute || ttl > time.Minute+6*time.Second {
		t.Fatalf("expected ttl with at most 10%% jitter, got %v", ttl)
	}

	// Second call should hit cache, source not incremented.
	again, _ := cache.GetQuestions(context.Background(), "psd-i")
	if source.Calls() != 1 {
		t.Fatalf("expected cache hit, source calls=%d", source.Calls())
	}
	if !again[0].Options[1].IsCorrect || len(again[0].SelectedAnswers) != 0 {
		t.Fatalf("cached bank lost data: %+v", again[0])
	}
}

func TestQuestionCacheRecoversFromCorruptEntry(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	if err := mr.Set("question_bank:psd-i", "{not json"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	source := &countingSource{
		QuestionSource: memory.NewStaticQuestionSource(map[string][]domain.Question{"psd-i": sampleBank()}),
	}
	cache := NewQuestionCache(newClient(mr), source, 0, zerolog.Nop())

	questions, err := cache.GetQuestions(context.Background(), "psd-i")
	if err != nil || len(questions) != 1 {
		t.Fatalf("expected reload from source, got %d err=%v", len(questions), err)
	}
	if source.Calls() != 1 {
		t.Fatalf("expected source to be used, got %d calls", source.Calls())
	}
	if ttl := mr.TTL("question_bank:psd-i"); ttl != 0 {
		t.Fatalf("expected no ttl, got %v", ttl)
	}

	if err := cache.Invalidate(context.Background(), "psd-i"); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	if mr.Exists("question_bank:psd-i") {
		t.Fatalf("expected cached bank removed")
	}
}

func TestQuestionCacheSourceError(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	cache := NewQuestionCache(newClient(mr), memory.NewStaticQuestionSource(nil), time.Minute, zerolog.Nop())
	if _, err := cache.GetQuestions(context.Background(), "missing"); err != domain.ErrBankNotFound {
		t.Fatalf("expected ErrBankNotFound, got %v", err)
	}
	if mr.Exists("question_bank:missing") {
		t.Fatalf("failed loads must not be cached")
	}
}

type countingSource struct {
	QuestionSource
	mu    sync.Mutex
	calls int
}

func (s *countingSource) LoadQuestions(ctx context.Context, bankID string) ([]domain.Question, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	return s.QuestionSource.LoadQuestions(ctx, bankID)
}

func (s *countingSource) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func sampleBank() []domain.Question {
	return []domain.Question{
		{
			ID:       0,
			Question: "Who is accountable for maximizing the value of the product?",
			Options: []domain.Option{
				{Text: "Scrum Master", IsCorrect: false},
				{Text: "Product Owner", IsCorrect: true},
			},
			SelectedAnswers: []int{},
		},
	}
}

func newClient(mr *miniredis.Miniredis) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
}
