package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"psd-quiz-service/internal/domain"
)

// QuestionSource fetches a parsed question bank from its backing store.
type QuestionSource interface {
	LoadQuestions(ctx context.Context, bankID string) ([]domain.Question, error)
}

// QuestionCache keeps parsed banks in Redis as JSON so restarts and sibling
// instances skip re-parsing. Falls back to the source on a miss.
// Stored as: SET question_bank:{bankID} <json array>
type QuestionCache struct {
	client *redis.Client
	source QuestionSource
	ttl    time.Duration
	log    zerolog.Logger
	sf     singleflight.Group

	rndMu sync.Mutex
	rnd   *rand.Rand
}

func NewQuestionCache(client *redis.Client, source QuestionSource, ttl time.Duration, log zerolog.Logger) *QuestionCache {
	return &QuestionCache{
		client: client,
		source: source,
		ttl:    ttl,
		log:    log.With().Str("component", "question_cache").Logger(),
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *QuestionCache) GetQuestions(ctx context.Context, bankID string) ([]domain.Question, error) {
	if questions, ok := c.lookup(ctx, bankID); ok {
		return questions, nil
	}

	result, err, _ := c.sf.Do(bankID, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if questions, ok := c.lookup(ctx, bankID); ok {
			return questions, nil
		}

		questions, err := c.source.LoadQuestions(ctx, bankID)
		if err != nil {
			return nil, err
		}
		raw, err := json.Marshal(questions)
		if err != nil {
			return nil, fmt.Errorf("encode bank: %w", err)
		}
		if err := c.client.Set(ctx, c.key(bankID), raw, c.ttlWithJitter()).Err(); err != nil {
			// the bank is still usable, only the cache write failed
			c.log.Warn().Err(err).Str("bank", bankID).Msg("cache question bank failed")
		}
		return questions, nil
	})
	if err != nil {
		return nil, err
	}
	return domain.CloneQuestions(result.([]domain.Question)), nil
}

// Invalidate removes a cached bank.
func (c *QuestionCache) Invalidate(ctx context.Context, bankID string) error {
	return c.client.Del(ctx, c.key(bankID)).Err()
}

func (c *QuestionCache) lookup(ctx context.Context, bankID string) ([]domain.Question, bool) {
	raw, err := c.client.Get(ctx, c.key(bankID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.log.Warn().Err(err).Str("bank", bankID).Msg("read cached question bank failed")
		}
		return nil, false
	}
	var questions []domain.Question
	if err := json.Unmarshal(raw, &questions); err != nil {
		c.log.Warn().Err(err).Str("bank", bankID).Msg("discarding undecodable cached bank")
		_ = c.client.Del(ctx, c.key(bankID)).Err()
		return nil, false
	}
	return questions, true
}

func (c *QuestionCache) key(bankID string) string {
	return "question_bank:" + bankID
}

func (c *QuestionCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	jitterMax := int64(c.ttl) / 10
	c.rndMu.Lock()
	defer c.rndMu.Unlock()
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
