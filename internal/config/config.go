package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"psd-quiz-service/internal/validator"
)

const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"

	SourceFile     = "file"
	SourcePostgres = "postgres"
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Log struct {
		Level  string `yaml:"level" validate:"oneof=trace debug info warn error"`
		Format string `yaml:"format" validate:"oneof=pretty json"`
	} `yaml:"log"`
	Store struct {
		Backend   string `yaml:"backend" validate:"oneof=memory redis postgres"`
		Namespace string `yaml:"namespace"`
	} `yaml:"store"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db" validate:"gte=0"`
		TTL      string `yaml:"ttl" validate:"duration"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Questions struct {
		Source string `yaml:"source" validate:"oneof=file postgres"`
		Path   string `yaml:"path"`
		BankID string `yaml:"bank_id" validate:"required"`
		TTL    string `yaml:"ttl" validate:"duration"`
	} `yaml:"questions"`
	Exam struct {
		QuestionCount  int    `yaml:"question_count" validate:"gte=1"`
		Duration       string `yaml:"duration" validate:"duration"`
		Warning        string `yaml:"warning" validate:"duration"`
		PassPercentage int    `yaml:"pass_percentage" validate:"gte=1,lte=100"`
	} `yaml:"exam"`
}

// Load reads YAML config from path, fills defaults, applies environment
// overrides and validates the result.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.applyDefaults()
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Default returns a config that runs fully in memory.
func Default() Config {
	cfg := Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	setDefault(&c.Server.Port, "8080")
	setDefault(&c.Log.Level, "info")
	setDefault(&c.Log.Format, "pretty")
	setDefault(&c.Store.Backend, BackendMemory)
	setDefault(&c.Questions.Source, SourceFile)
	setDefault(&c.Questions.Path, "data/answers.md")
	setDefault(&c.Questions.BankID, "psd-i")
	setDefault(&c.Exam.Duration, "60m")
	setDefault(&c.Exam.Warning, "5m")
	if c.Exam.QuestionCount == 0 {
		c.Exam.QuestionCount = 80
	}
	if c.Exam.PassPercentage == 0 {
		c.Exam.PassPercentage = 85
	}
}

// applyEnv lets deployments keep connection secrets out of the YAML file.
func (c *Config) applyEnv() {
	overrideFromEnv(&c.Store.Backend, "STORE_BACKEND")
	overrideFromEnv(&c.Redis.Addr, "REDIS_ADDR")
	overrideFromEnv(&c.Redis.Password, "REDIS_PASSWORD")
	overrideFromEnv(&c.Postgres.URL, "POSTGRES_URL")
	overrideFromEnv(&c.Log.Level, "LOG_LEVEL")
	overrideFromEnv(&c.Log.Format, "LOG_FORMAT")
}

// Validate checks field constraints and the backends that depend on each other.
func (c Config) Validate() error {
	if err := validator.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %s", validator.Message(err))
	}
	if c.Store.Backend == BackendRedis && c.Redis.Addr == "" {
		return fmt.Errorf("invalid config: redis.addr is required for the redis store")
	}
	if c.Store.Backend == BackendPostgres && c.Postgres.URL == "" {
		return fmt.Errorf("invalid config: postgres.url is required for the postgres store")
	}
	if c.Questions.Source == SourcePostgres && c.Postgres.URL == "" {
		return fmt.Errorf("invalid config: postgres.url is required for postgres questions")
	}
	if c.Questions.Source == SourceFile && c.Questions.Path == "" {
		return fmt.Errorf("invalid config: questions.path is required for file questions")
	}
	if c.ExamWarning() > c.ExamDuration() {
		return fmt.Errorf("invalid config: exam.warning exceeds exam.duration")
	}
	return nil
}

func (c Config) ExamDuration() time.Duration {
	return TTLDuration(c.Exam.Duration, 60*time.Minute)
}

func (c Config) ExamWarning() time.Duration {
	return TTLDuration(c.Exam.Warning, 5*time.Minute)
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}

func setDefault(field *string, value string) {
	if *field == "" {
		*field = value
	}
}

func overrideFromEnv(field *string, key string) {
	if v := os.Getenv(key); v != "" {
		*field = v
	}
}
