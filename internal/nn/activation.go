package nn

import (
	"errors"

	"depseg/internal/tensor"
)

// LeakyReLU с наклоном Slope для отрицательных значений.
type LeakyReLU struct {
	Slope float64

	x *tensor.Tensor
}

func NewLeakyReLU() *LeakyReLU {
	return &LeakyReLU{Slope: 0.01}
}

func (l *LeakyReLU) Kind() string { return "LeakyReLU" }

func (l *LeakyReLU) OutShape(in tensor.Shape) (tensor.Shape, error) { return in, nil }

func (l *LeakyReLU) Forward(x *tensor.Tensor, train bool) (*tensor.Tensor, error) {
	out := x.Clone()
	for i, v := range out.Data {
		if v < 0 {
			out.Data[i] = v * l.Slope
		}
	}
	l.x = x
	return out, nil
}

func (l *LeakyReLU) Backward(grad *tensor.Tensor) (*tensor.Tensor, error) {
	if l.x == nil {
		return nil, errors.New("leaky_relu: backward called before forward")
	}
	dx := grad.Clone()
	for i, v := range l.x.Data {
		if v < 0 {
			dx.Data[i] *= l.Slope
		}
	}
	return dx, nil
}

func (l *LeakyReLU) Params() []*Param  { return nil }
func (l *LeakyReLU) Buffers() []*Param { return nil }
