package nn

import (
	"errors"
	"fmt"
	"math"

	"depseg/internal/tensor"
)

const (
	bnEps      = 1e-5
	bnMomentum = 0.1
)

// BatchNorm2d нормирует каждый канал по осям N, H, W.
// В режиме обучения используются статистики батча и обновляются
// скользящие средние, в режиме инференса только скользящие.
type BatchNorm2d struct {
	C           int
	Gamma       *Param
	Beta        *Param
	RunningMean *Param
	RunningVar  *Param

	xhat   *tensor.Tensor
	invStd []float64
	train  bool
}

func NewBatchNorm2d(c int) *BatchNorm2d {
	bn := &BatchNorm2d{
		C:           c,
		Gamma:       newParam("weight", c),
		Beta:        newParam("bias", c),
		RunningMean: newParam("running_mean", c),
		RunningVar:  newParam("running_var", c),
	}
	for i := 0; i < c; i++ {
		bn.Gamma.Value[i] = 1
		bn.RunningVar.Value[i] = 1
	}
	return bn
}

func (b *BatchNorm2d) Kind() string { return "BatchNorm2d" }

func (b *BatchNorm2d) OutShape(in tensor.Shape) (tensor.Shape, error) {
	if err := checkChannels(b.Kind(), in, b.C); err != nil {
		return tensor.Shape{}, err
	}
	return in, nil
}

func (b *BatchNorm2d) Forward(x *tensor.Tensor, train bool) (*tensor.Tensor, error) {
	s, err := b.OutShape(x.Shape)
	if err != nil {
		return nil, err
	}
	m := s.N * s.H * s.W
	if train && m < 2 {
		return nil, fmt.Errorf("%w: %s needs more than one value per channel in training, got %s", ErrShape, b.Kind(), s)
	}

	out := tensor.New(s.N, s.C, s.H, s.W)
	xhat := tensor.New(s.N, s.C, s.H, s.W)
	invStd := make([]float64, s.C)

	for c := 0; c < s.C; c++ {
		var mean, variance float64
		if train {
			for n := 0; n < s.N; n++ {
				for _, v := range x.Plane(n, c) {
					mean += v
				}
			}
			mean /= float64(m)
			for n := 0; n < s.N; n++ {
				for _, v := range x.Plane(n, c) {
					d := v - mean
					variance += d * d
				}
			}
			variance /= float64(m)

			unbiased := variance * float64(m) / float64(m-1)
			b.RunningMean.Value[c] = (1-bnMomentum)*b.RunningMean.Value[c] + bnMomentum*mean
			b.RunningVar.Value[c] = (1-bnMomentum)*b.RunningVar.Value[c] + bnMomentum*unbiased
		} else {
			mean = b.RunningMean.Value[c]
			variance = b.RunningVar.Value[c]
		}

		is := 1 / math.Sqrt(variance+bnEps)
		invStd[c] = is
		g, beta := b.Gamma.Value[c], b.Beta.Value[c]
		for n := 0; n < s.N; n++ {
			src := x.Plane(n, c)
			xh := xhat.Plane(n, c)
			dst := out.Plane(n, c)
			for i, v := range src {
				xh[i] = (v - mean) * is
				dst[i] = g*xh[i] + beta
			}
		}
	}

	b.xhat = xhat
	b.invStd = invStd
	b.train = train
	return out, nil
}

func (b *BatchNorm2d) Backward(grad *tensor.Tensor) (*tensor.Tensor, error) {
	if b.xhat == nil {
		return nil, errors.New("batchnorm2d: backward called before forward")
	}
	s := grad.Shape
	m := float64(s.N * s.H * s.W)
	dx := tensor.New(s.N, s.C, s.H, s.W)

	for c := 0; c < s.C; c++ {
		var sumDy, sumDyXhat float64
		for n := 0; n < s.N; n++ {
			xh := b.xhat.Plane(n, c)
			for i, g := range grad.Plane(n, c) {
				sumDy += g
				sumDyXhat += g * xh[i]
			}
		}
		b.Beta.Grad[c] += sumDy
		b.Gamma.Grad[c] += sumDyXhat

		scale := b.Gamma.Value[c] * b.invStd[c]
		for n := 0; n < s.N; n++ {
			xh := b.xhat.Plane(n, c)
			g := grad.Plane(n, c)
			dst := dx.Plane(n, c)
			for i := range dst {
				if b.train {
					dst[i] = scale / m * (m*g[i] - sumDy - xh[i]*sumDyXhat)
				} else {
					dst[i] = scale * g[i]
				}
			}
		}
	}

	return dx, nil
}

func (b *BatchNorm2d) Params() []*Param  { return []*Param{b.Gamma, b.Beta} }
func (b *BatchNorm2d) Buffers() []*Param { return []*Param{b.RunningMean, b.RunningVar} }
