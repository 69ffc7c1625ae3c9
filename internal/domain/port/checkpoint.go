package port

import (
	"context"

	"depseg/internal/domain/entity"
)

// CheckpointStore хранилище чекпоинтов проб-голов
type CheckpointStore interface {
	// Save сохраняет чекпоинт эпохи и возвращает путь к нему
	Save(ctx context.Context, ckpt *entity.Checkpoint) (string, error)

	// Load читает чекпоинт по пути
	Load(ctx context.Context, path string) (*entity.Checkpoint, error)
}
