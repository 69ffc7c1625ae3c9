package nn

import (
	"errors"
	"fmt"
	"math/rand"

	"depseg/internal/tensor"
)

// DepthwiseConv2d групповая свёртка с groups == In, шаг 1, без паддинга.
// Выходной канал o читает входной канал o / Multiplier.
type DepthwiseConv2d struct {
	In, Multiplier int
	Kernel         int
	Weight         *Param // [In*Multiplier, 1, K, K]
	Bias           *Param // [In*Multiplier]

	x *tensor.Tensor
}

func NewDepthwiseConv2d(in, multiplier, kernel int, rng *rand.Rand) *DepthwiseConv2d {
	out := in * multiplier
	d := &DepthwiseConv2d{
		In:         in,
		Multiplier: multiplier,
		Kernel:     kernel,
		Weight:     newParam("weight", out, 1, kernel, kernel),
		Bias:       newParam("bias", out),
	}
	fanIn := kernel * kernel
	uniformInit(d.Weight, fanIn, rng)
	uniformInit(d.Bias, fanIn, rng)
	return d
}

func (d *DepthwiseConv2d) Kind() string { return "DepthwiseConv2d" }

func (d *DepthwiseConv2d) OutShape(in tensor.Shape) (tensor.Shape, error) {
	if err := checkChannels(d.Kind(), in, d.In); err != nil {
		return tensor.Shape{}, err
	}
	if in.H < d.Kernel || in.W < d.Kernel {
		return tensor.Shape{}, fmt.Errorf("%w: %s kernel %d larger than input %s", ErrShape, d.Kind(), d.Kernel, in)
	}
	return tensor.Shape{
		N: in.N,
		C: d.In * d.Multiplier,
		H: in.H - d.Kernel + 1,
		W: in.W - d.Kernel + 1,
	}, nil
}

func (d *DepthwiseConv2d) Forward(x *tensor.Tensor, train bool) (*tensor.Tensor, error) {
	s, err := d.OutShape(x.Shape)
	if err != nil {
		return nil, err
	}
	k := d.Kernel
	out := tensor.New(s.N, s.C, s.H, s.W)

	for n := 0; n < s.N; n++ {
		for o := 0; o < s.C; o++ {
			src := x.Plane(n, o/d.Multiplier)
			dst := out.Plane(n, o)
			w := d.Weight.Value[o*k*k : (o+1)*k*k]
			b := d.Bias.Value[o]
			for y := 0; y < s.H; y++ {
				for xx := 0; xx < s.W; xx++ {
					sum := b
					for ky := 0; ky < k; ky++ {
						row := (y+ky)*x.Shape.W + xx
						for kx := 0; kx < k; kx++ {
							sum += w[ky*k+kx] * src[row+kx]
						}
					}
					dst[y*s.W+xx] = sum
				}
			}
		}
	}

	d.x = x
	return out, nil
}

func (d *DepthwiseConv2d) Backward(grad *tensor.Tensor) (*tensor.Tensor, error) {
	if d.x == nil {
		return nil, errors.New("depthwise_conv2d: backward called before forward")
	}
	k := d.Kernel
	in := d.x.Shape
	s := grad.Shape
	dx := tensor.New(in.N, in.C, in.H, in.W)

	for n := 0; n < s.N; n++ {
		for o := 0; o < s.C; o++ {
			src := d.x.Plane(n, o/d.Multiplier)
			dsrc := dx.Plane(n, o/d.Multiplier)
			g := grad.Plane(n, o)
			w := d.Weight.Value[o*k*k : (o+1)*k*k]
			dw := d.Weight.Grad[o*k*k : (o+1)*k*k]
			for y := 0; y < s.H; y++ {
				for xx := 0; xx < s.W; xx++ {
					gv := g[y*s.W+xx]
					if gv == 0 {
						continue
					}
					d.Bias.Grad[o] += gv
					for ky := 0; ky < k; ky++ {
						row := (y+ky)*in.W + xx
						for kx := 0; kx < k; kx++ {
							dw[ky*k+kx] += gv * src[row+kx]
							dsrc[row+kx] += gv * w[ky*k+kx]
						}
					}
				}
			}
		}
	}

	return dx, nil
}

func (d *DepthwiseConv2d) Params() []*Param  { return []*Param{d.Weight, d.Bias} }
func (d *DepthwiseConv2d) Buffers() []*Param { return nil }

// SeparableConv2d depthwise свёртка 3×3 и поточечная 1×1 подряд.
type SeparableConv2d struct {
	Depthwise *DepthwiseConv2d
	Pointwise *Conv2d
}

func NewSeparableConv2d(in, multiplier, out int, rng *rand.Rand) *SeparableConv2d {
	s := &SeparableConv2d{
		Depthwise: NewDepthwiseConv2d(in, multiplier, 3, rng),
		Pointwise: NewConv2d(in*multiplier, out, 1, 1, rng),
	}
	for _, p := range s.Depthwise.Params() {
		p.Name = "depthwise." + p.Name
	}
	for _, p := range s.Pointwise.Params() {
		p.Name = "pointwise." + p.Name
	}
	return s
}

func (s *SeparableConv2d) Kind() string { return "SeparableConv2d" }

func (s *SeparableConv2d) OutShape(in tensor.Shape) (tensor.Shape, error) {
	mid, err := s.Depthwise.OutShape(in)
	if err != nil {
		return tensor.Shape{}, err
	}
	return s.Pointwise.OutShape(mid)
}

func (s *SeparableConv2d) Forward(x *tensor.Tensor, train bool) (*tensor.Tensor, error) {
	mid, err := s.Depthwise.Forward(x, train)
	if err != nil {
		return nil, err
	}
	return s.Pointwise.Forward(mid, train)
}

func (s *SeparableConv2d) Backward(grad *tensor.Tensor) (*tensor.Tensor, error) {
	mid, err := s.Pointwise.Backward(grad)
	if err != nil {
		return nil, err
	}
	return s.Depthwise.Backward(mid)
}

func (s *SeparableConv2d) Params() []*Param {
	return append(s.Depthwise.Params(), s.Pointwise.Params()...)
}

func (s *SeparableConv2d) Buffers() []*Param { return nil }
