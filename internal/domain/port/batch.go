package port

import (
	"context"

	"depseg/internal/domain/entity"
)

// BatchIterator батчи одной эпохи
type BatchIterator interface {
	// Next возвращает следующий батч или io.EOF
	Next() (*entity.Batch, error)

	// Close освобождает фоновые загрузчики
	Close()
}

// BatchLoader источник батчей одной задачи
type BatchLoader interface {
	Task() entity.Task

	// Len число батчей за эпоху
	Len() int

	Iterate(ctx context.Context) BatchIterator
}
