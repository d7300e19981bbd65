package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"psd-quiz-service/internal/domain"
	"psd-quiz-service/internal/infra/markdown"
)

// QuestionSource loads markdown question banks stored in Postgres.
type QuestionSource struct {
	pool *pgxpool.Pool
}

func NewQuestionSource(pool *pgxpool.Pool) *QuestionSource {
	return &QuestionSource{pool: pool}
}

func (s *QuestionSource) LoadQuestions(ctx context.Context, bankID string) ([]domain.Question, error) {
	var content string
	err := s.pool.QueryRow(ctx, `SELECT content FROM question_banks WHERE id=$1`, bankID).Scan(&content)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("load bank %s: %w", bankID, domain.ErrBankNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load bank %s: %w", bankID, err)
	}
	return markdown.Parse(content), nil
}

// SaveBank stores (or replaces) the markdown text of a bank.
func (s *QuestionSource) SaveBank(ctx context.Context, bankID, content string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO question_banks (id, content, updated_at) VALUES ($1, $2, now())
		ON CONFLICT (id) DO UPDATE SET content=EXCLUDED.content, updated_at=EXCLUDED.updated_at`,
		bankID, content)
	if err != nil {
		return fmt.Errorf("save bank %s: %w", bankID, err)
	}
	return nil
}
