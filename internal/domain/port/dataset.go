package port

import (
	"context"

	"depseg/internal/domain/entity"
)

// Dataset индексируемый набор примеров
type Dataset interface {
	// Task задача, к которой относятся метки
	Task() entity.Task

	// Len возвращает число примеров
	Len() int

	// Get загружает пример с индексом i
	Get(ctx context.Context, i int) (*entity.Sample, error)
}
