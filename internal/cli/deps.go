package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"psd-quiz-service/internal/app"
	"psd-quiz-service/internal/config"
	"psd-quiz-service/internal/infra/markdown"
	"psd-quiz-service/internal/infra/memory"
	"psd-quiz-service/internal/infra/postgres"
	infraredis "psd-quiz-service/internal/infra/redis"
)

// deps are the connections and adapters selected by the config.
type deps struct {
	pool      *pgxpool.Pool
	redis     *redis.Client
	source    memory.QuestionSource
	questions app.QuestionRepository
	kv        app.KeyValueStore
}

func (d *deps) Close() {
	if d.redis != nil {
		_ = d.redis.Close()
	}
	if d.pool != nil {
		d.pool.Close()
	}
}

func needsPostgres(cfg config.Config) bool {
	return cfg.Store.Backend == config.BackendPostgres || cfg.Questions.Source == config.SourcePostgres
}

func openDeps(ctx context.Context, cfg config.Config, log zerolog.Logger) (*deps, error) {
	d := &deps{}

	if needsPostgres(cfg) {
		if err := runMigrations(ctx, cfg.Postgres.URL, log); err != nil {
			return nil, err
		}
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		d.pool = pool
		log.Info().Msg("postgres connected")
	}

	if cfg.Redis.Addr != "" {
		d.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := d.redis.Ping(ctx).Err(); err != nil {
			d.Close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		log.Info().Str("addr", cfg.Redis.Addr).Msg("redis connected")
	}

	switch cfg.Questions.Source {
	case config.SourcePostgres:
		d.source = postgres.NewQuestionSource(d.pool)
	default:
		d.source = markdown.NewFileSource(map[string]string{cfg.Questions.BankID: cfg.Questions.Path})
	}

	// parsed banks are cached; no ttl keeps them for the process lifetime
	bankTTL := config.TTLDuration(cfg.Questions.TTL, 0)
	if d.redis != nil {
		d.questions = infraredis.NewQuestionCache(d.redis, d.source, bankTTL, log)
	} else {
		d.questions = memory.NewQuestionBank(d.source, bankTTL)
	}

	switch cfg.Store.Backend {
	case config.BackendRedis:
		d.kv = infraredis.NewKVStore(d.redis, config.TTLDuration(cfg.Redis.TTL, 24*time.Hour))
	case config.BackendPostgres:
		d.kv = postgres.NewKVStore(d.pool)
	default:
		d.kv = memory.NewKVStore()
	}
	log.Info().
		Str("store", cfg.Store.Backend).
		Str("questions", cfg.Questions.Source).
		Bool("redis_cache", d.redis != nil).
		Msg("backends selected")
	return d, nil
}
