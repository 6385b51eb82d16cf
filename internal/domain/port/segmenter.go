package port

import (
	"context"

	"area-bot/internal/domain/entity"
)

// Segmenter внешняя модель сегментации
type Segmenter interface {
	// Segment возвращает маски объекта под точками, лучшая маска первая
	Segment(ctx context.Context, imagePath string, points []entity.Point) ([]entity.Candidate, error)

	// Generate размечает все объекты на изображении без подсказок
	Generate(ctx context.Context, imagePath string) ([]entity.Candidate, error)
}
