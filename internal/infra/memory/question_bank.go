package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"psd-quiz-service/internal/domain"
)

// QuestionSource fetches a parsed question bank from its backing store
// (markdown file, database row).
type QuestionSource interface {
	LoadQuestions(ctx context.Context, bankID string) ([]domain.Question, error)
}

// QuestionBank caches parsed banks so the markdown is not re-read and
// re-parsed for every session. A non-positive ttl caches forever.
type QuestionBank struct {
	source QuestionSource
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand

	mu    sync.RWMutex
	cache map[string]cachedBank
}

type cachedBank struct {
	questions []domain.Question
	expiresAt time.Time // zero means no expiry
}

func (c cachedBank) fresh(now time.Time) bool {
	return c.expiresAt.IsZero() || c.expiresAt.After(now)
}

func NewQuestionBank(source QuestionSource, ttl time.Duration) *QuestionBank {
	return &QuestionBank{
		source: source,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedBank),
	}
}

// GetQuestions returns a private copy of the bank; callers may mutate it.
func (b *QuestionBank) GetQuestions(ctx context.Context, bankID string) ([]domain.Question, error) {
	if questions, ok := b.lookup(bankID); ok {
		return domain.CloneQuestions(questions), nil
	}

	result, err, _ := b.sf.Do(bankID, func() (interface{}, error) {
		if questions, ok := b.lookup(bankID); ok {
			return questions, nil
		}
		questions, err := b.source.LoadQuestions(ctx, bankID)
		if err != nil {
			return nil, err
		}

		entry := cachedBank{questions: questions}
		if ttl := b.ttlWithJitter(); ttl > 0 {
			entry.expiresAt = b.clock().Add(ttl)
		}
		b.mu.Lock()
		b.cache[bankID] = entry
		b.mu.Unlock()
		return questions, nil
	})
	if err != nil {
		return nil, err
	}
	return domain.CloneQuestions(result.([]domain.Question)), nil
}

// Invalidate drops a cached bank so the next read reloads it.
func (b *QuestionBank) Invalidate(bankID string) {
	b.mu.Lock()
	delete(b.cache, bankID)
	b.mu.Unlock()
}

func (b *QuestionBank) lookup(bankID string) ([]domain.Question, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	entry, ok := b.cache[bankID]
	if !ok || !entry.fresh(b.clock()) {
		return nil, false
	}
	return entry.questions, true
}

func (b *QuestionBank) ttlWithJitter() time.Duration {
	if b.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(b.ttl) / 10
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ttl + time.Duration(b.rnd.Int63n(jitterMax+1))
}

// StaticQuestionSource serves banks from memory (tests, demos).
type StaticQuestionSource struct {
	banks map[string][]domain.Question
}

func NewStaticQuestionSource(banks map[string][]domain.Question) *StaticQuestionSource {
	return &StaticQuestionSource{banks: banks}
}

func (s *StaticQuestionSource) LoadQuestions(_ context.Context, bankID string) ([]domain.Question, error) {
	if questions, ok := s.banks[bankID]; ok {
		return domain.CloneQuestions(questions), nil
	}
	return nil, domain.ErrBankNotFound
}
