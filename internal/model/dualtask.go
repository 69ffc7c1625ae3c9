// Package model собирает двухзадачную модель: замороженный бэкбон и две
// проб-головы (регрессия глубины и сегментация).
package model

import (
	"context"
	"errors"
	"fmt"
	"math/rand"

	"depseg/internal/domain/entity"
	"depseg/internal/domain/port"
	"depseg/internal/nn"
	"depseg/internal/tensor"
)

// OutputFill значение, которым заполняются пиксели, не покрытые головами.
const OutputFill = 1.0

// Options параметры сборки модели.
type Options struct {
	Probe      ProbeKind
	ClassCount int
	Seed       int64
}

// DefaultOptions совпадают с обучением на KITTI.
func DefaultOptions() Options {
	return Options{
		Probe:      ProbeConv,
		ClassCount: entity.DefaultClassCount,
		Seed:       1,
	}
}

// Output выходы модели, всегда в разрешении входа.
type Output struct {
	Depth        *tensor.Tensor // (N, 1, H, W)
	Segmentation *tensor.Tensor // (N, ClassCount, H, W)
}

// DualTask бэкбон + голова глубины + голова сегментации.
type DualTask struct {
	Backbone   port.Backbone
	Probe      ProbeKind
	ClassCount int
	RegHead    *nn.Sequential
	SegHead    *nn.Sequential

	regShape tensor.Shape
	segShape tensor.Shape
}

// New создаёт модель с новыми головами.
func New(backbone port.Backbone, opts Options) (*DualTask, error) {
	if backbone == nil {
		return nil, errors.New("backbone is not configured")
	}
	if opts.ClassCount < 1 || opts.ClassCount > 256 {
		return nil, fmt.Errorf("class count %d out of range [1, 256]", opts.ClassCount)
	}
	rng := rand.New(rand.NewSource(opts.Seed))
	in := backbone.FeatureChannels()

	reg, err := NewProbe("reg_head", opts.Probe, in, 1, rng)
	if err != nil {
		return nil, err
	}
	seg, err := NewProbe("seg_head", opts.Probe, in, opts.ClassCount, rng)
	if err != nil {
		return nil, err
	}

	return &DualTask{
		Backbone:   backbone,
		Probe:      opts.Probe,
		ClassCount: opts.ClassCount,
		RegHead:    reg,
		SegHead:    seg,
	}, nil
}

// Forward прогоняет батч (N, 3, H, W). Выходы заполнены OutputFill и
// перезаписаны в левом верхнем углу тем, что выдали головы; лишнее обрезается.
func (m *DualTask) Forward(ctx context.Context, images *tensor.Tensor, train bool) (*Output, error) {
	if images.Shape.C != 3 {
		return nil, fmt.Errorf("%w: expected 3-channel images, got %s", tensor.ErrShape, images.Shape)
	}
	feats, err := m.Backbone.Extract(ctx, images)
	if err != nil {
		return nil, fmt.Errorf("backbone %s: %w", m.Backbone.Name(), err)
	}

	reg, err := m.RegHead.Forward(feats, train)
	if err != nil {
		return nil, err
	}
	seg, err := m.SegHead.Forward(feats, train)
	if err != nil {
		return nil, err
	}
	m.regShape = reg.Shape
	m.segShape = seg.Shape

	s := images.Shape
	depth := tensor.Full(s.N, 1, s.H, s.W, OutputFill)
	if err := tensor.Paste(depth, reg); err != nil {
		return nil, err
	}
	segOut := tensor.Full(s.N, m.ClassCount, s.H, s.W, OutputFill)
	if err := tensor.Paste(segOut, seg); err != nil {
		return nil, err
	}

	return &Output{Depth: depth, Segmentation: segOut}, nil
}

// Backward принимает градиенты по выходам Forward (любой может быть nil)
// и накапливает градиенты голов. В бэкбон градиент не идёт.
func (m *DualTask) Backward(depthGrad, segGrad *tensor.Tensor) error {
	if depthGrad != nil {
		if _, err := m.RegHead.Backward(tensor.Crop(depthGrad, m.regShape.H, m.regShape.W)); err != nil {
			return err
		}
	}
	if segGrad != nil {
		if _, err := m.SegHead.Backward(tensor.Crop(segGrad, m.segShape.H, m.segShape.W)); err != nil {
			return err
		}
	}
	return nil
}

// Trainable возвращает обучаемые параметры: только параметры голов.
func (m *DualTask) Trainable() []*nn.Param {
	return append(m.RegHead.Params(), m.SegHead.Params()...)
}

// Buffers возвращает running stats голов.
func (m *DualTask) Buffers() []*nn.Param {
	return append(m.RegHead.Buffers(), m.SegHead.Buffers()...)
}

// HeadShapes возвращает формы выходов голов до паддинга для входа in.
func (m *DualTask) HeadShapes(in tensor.Shape) (reg, seg tensor.Shape, err error) {
	feat := tensor.Shape{N: in.N, C: m.Backbone.FeatureChannels(), H: in.H, W: in.W}
	if reg, err = m.RegHead.OutShape(feat); err != nil {
		return
	}
	seg, err = m.SegHead.OutShape(feat)
	return
}
