package markdown

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"psd-quiz-service/internal/domain"
)

// FileSource loads banks from markdown files on disk, one file per bank id.
type FileSource struct {
	files map[string]string
}

func NewFileSource(files map[string]string) *FileSource {
	return &FileSource{files: files}
}

func (s *FileSource) LoadQuestions(_ context.Context, bankID string) ([]domain.Question, error) {
	path, ok := s.files[bankID]
	if !ok {
		return nil, domain.ErrBankNotFound
	}
	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("read bank %s: %w", path, domain.ErrBankNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read bank %s: %w", path, err)
	}
	return Parse(string(raw)), nil
}
