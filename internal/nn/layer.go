// Package nn содержит слои проб-голов с явными прямым и обратным проходами.
//
// Слои хранят промежуточные значения последнего Forward, поэтому Backward
// должен вызываться после Forward с тем же батчем. Один слой не
// предназначен для одновременного использования из нескольких горутин.
package nn

import (
	"fmt"
	"math"
	"math/rand"

	"depseg/internal/tensor"
)

// ErrShape переэкспортирован для удобства вызывающего кода.
var ErrShape = tensor.ErrShape

// Param обучаемый (или буферный) тензор слоя.
type Param struct {
	Name  string
	Shape []int
	Value []float64
	Grad  []float64
}

func newParam(name string, shape ...int) *Param {
	size := 1
	for _, d := range shape {
		size *= d
	}
	return &Param{
		Name:  name,
		Shape: shape,
		Value: make([]float64, size),
		Grad:  make([]float64, size),
	}
}

// Size возвращает число элементов.
func (p *Param) Size() int {
	return len(p.Value)
}

// ZeroGrad обнуляет накопленный градиент.
func (p *Param) ZeroGrad() {
	for i := range p.Grad {
		p.Grad[i] = 0
	}
}

// Layer общий интерфейс слоя.
type Layer interface {
	// Kind короткое имя типа слоя для сводки модели.
	Kind() string
	// OutShape вычисляет форму выхода без выполнения слоя.
	OutShape(in tensor.Shape) (tensor.Shape, error)
	// Forward выполняет прямой проход. train переключает режим BatchNorm.
	Forward(x *tensor.Tensor, train bool) (*tensor.Tensor, error)
	// Backward принимает градиент по выходу, накапливает градиенты
	// параметров и возвращает градиент по входу.
	Backward(grad *tensor.Tensor) (*tensor.Tensor, error)
	// Params возвращает обучаемые параметры.
	Params() []*Param
	// Buffers возвращает необучаемое состояние (running stats).
	Buffers() []*Param
}

// uniformInit заполняет p значениями из U(-bound, bound), bound = 1/sqrt(fanIn).
func uniformInit(p *Param, fanIn int, rng *rand.Rand) {
	bound := 1 / math.Sqrt(float64(fanIn))
	for i := range p.Value {
		p.Value[i] = (rng.Float64()*2 - 1) * bound
	}
}

func checkChannels(kind string, in tensor.Shape, want int) error {
	if in.C != want {
		return fmt.Errorf("%w: %s expects %d channels, got %s", ErrShape, kind, want, in)
	}
	if in.N < 1 {
		return fmt.Errorf("%w: %s got empty batch %s", ErrShape, kind, in)
	}
	return nil
}
