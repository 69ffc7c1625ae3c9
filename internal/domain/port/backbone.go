package port

import (
	"context"

	"depseg/internal/tensor"
)

// Backbone замороженная предобученная сеть, выдающая общую карту признаков.
// Реализации не отдают свои веса оптимизатору.
type Backbone interface {
	// Name идентификатор бэкбона, сохраняется в чекпоинте
	Name() string

	// FeatureChannels число каналов карты признаков
	FeatureChannels() int

	// Extract возвращает признаки формы (N, FeatureChannels, H, W) для батча (N, 3, H, W)
	Extract(ctx context.Context, images *tensor.Tensor) (*tensor.Tensor, error)

	// Close освобождает ресурсы рантайма
	Close() error
}
