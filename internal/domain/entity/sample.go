package entity

import "depseg/internal/tensor"

// Task задача, к которой относится датасет или батч.
type Task string

const (
	TaskDepth        Task = "depth"
	TaskSegmentation Task = "segmentation"
)

// Sample один пример датасета. Image имеет форму (1, 3, H, W),
// Label (1, 1, H, W): глубина в метрах (0 = нет данных) или id класса.
type Sample struct {
	Path  string
	Image *tensor.Tensor
	Label *tensor.Tensor
}

// Batch несколько примеров, склеенных по оси N.
type Batch struct {
	Task   Task
	Paths  []string
	Images *tensor.Tensor
	Labels *tensor.Tensor
}

// Size возвращает число примеров в батче.
func (b *Batch) Size() int {
	return len(b.Paths)
}
