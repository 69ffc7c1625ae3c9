package backbone

import (
	"context"
	"fmt"
	"math"
	"math/rand"

	"depseg/internal/domain/port"
	"depseg/internal/tensor"
)

// ProjectionName имя бэкбона-проекции в чекпоинтах.
const ProjectionName = "projection"

// Projection фиксированная 1×1 проекция RGB в Channels каналов с tanh.
// Веса задаются seed и никогда не обучаются. Подходит для тестов,
// сводки модели и прогонов без ONNX Runtime.
type Projection struct {
	Channels int
	Weights  []float64 // [Channels, 3]
	Bias     []float64 // [Channels]
}

// NewProjection создаёт проекцию с весами из U(-1, 1).
func NewProjection(channels int, seed int64) *Projection {
	rng := rand.New(rand.NewSource(seed))
	p := &Projection{
		Channels: channels,
		Weights:  make([]float64, channels*3),
		Bias:     make([]float64, channels),
	}
	for i := range p.Weights {
		p.Weights[i] = rng.Float64()*2 - 1
	}
	for i := range p.Bias {
		p.Bias[i] = rng.Float64()*2 - 1
	}
	return p
}

func (p *Projection) Name() string { return ProjectionName }

func (p *Projection) FeatureChannels() int { return p.Channels }

// ParamCount число замороженных весов.
func (p *Projection) ParamCount() int { return len(p.Weights) + len(p.Bias) }

func (p *Projection) Extract(ctx context.Context, images *tensor.Tensor) (*tensor.Tensor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s := images.Shape
	if s.C != 3 {
		return nil, fmt.Errorf("%w: projection expects 3 channels, got %s", tensor.ErrShape, s)
	}
	out := tensor.New(s.N, p.Channels, s.H, s.W)
	for n := 0; n < s.N; n++ {
		r, g, b := images.Plane(n, 0), images.Plane(n, 1), images.Plane(n, 2)
		for c := 0; c < p.Channels; c++ {
			w := p.Weights[c*3 : c*3+3]
			bias := p.Bias[c]
			dst := out.Plane(n, c)
			for i := range dst {
				dst[i] = math.Tanh(w[0]*r[i] + w[1]*g[i] + w[2]*b[i] + bias)
			}
		}
	}
	return out, nil
}

func (p *Projection) Close() error { return nil }

var _ port.Backbone = (*Projection)(nil)
