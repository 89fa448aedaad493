package repository

import (
	"context"

	"github.com/elsanchez/smart-extract/internal/domain"
)

// ExtractionRepository guarda el histórico de extracciones
type ExtractionRepository interface {
	Record(ctx context.Context, ex *domain.Extraction) error
	GetRecent(ctx context.Context, limit int) ([]*domain.Extraction, error)
	Stats(ctx context.Context) (*domain.ExtractionStats, error)
}
