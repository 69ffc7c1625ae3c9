package nn

import (
	"errors"
	"fmt"
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"depseg/internal/tensor"
)

// Conv2d свёртка без паддинга с квадратным ядром.
type Conv2d struct {
	In, Out        int
	Kernel, Stride int
	Weight         *Param // [Out, In, K, K]
	Bias           *Param // [Out]

	inShape tensor.Shape
	cols    *mat.Dense
}

// NewConv2d создаёт свёртку и инициализирует веса из rng.
func NewConv2d(in, out, kernel, stride int, rng *rand.Rand) *Conv2d {
	c := &Conv2d{
		In:     in,
		Out:    out,
		Kernel: kernel,
		Stride: stride,
		Weight: newParam("weight", out, in, kernel, kernel),
		Bias:   newParam("bias", out),
	}
	fanIn := in * kernel * kernel
	uniformInit(c.Weight, fanIn, rng)
	uniformInit(c.Bias, fanIn, rng)
	return c
}

func (c *Conv2d) Kind() string { return "Conv2d" }

func (c *Conv2d) OutShape(in tensor.Shape) (tensor.Shape, error) {
	if err := checkChannels(c.Kind(), in, c.In); err != nil {
		return tensor.Shape{}, err
	}
	if in.H < c.Kernel || in.W < c.Kernel {
		return tensor.Shape{}, fmt.Errorf("%w: %s kernel %d larger than input %s", ErrShape, c.Kind(), c.Kernel, in)
	}
	return tensor.Shape{
		N: in.N,
		C: c.Out,
		H: (in.H-c.Kernel)/c.Stride + 1,
		W: (in.W-c.Kernel)/c.Stride + 1,
	}, nil
}

func (c *Conv2d) Forward(x *tensor.Tensor, train bool) (*tensor.Tensor, error) {
	outShape, err := c.OutShape(x.Shape)
	if err != nil {
		return nil, err
	}

	cols := im2col(x, c.Kernel, c.Stride)
	w := mat.NewDense(c.Out, c.In*c.Kernel*c.Kernel, c.Weight.Value)

	var prod mat.Dense
	prod.Mul(cols, w.T())

	out := fromRows(&prod, outShape)
	for n := 0; n < outShape.N; n++ {
		for o := 0; o < outShape.C; o++ {
			b := c.Bias.Value[o]
			plane := out.Plane(n, o)
			for i := range plane {
				plane[i] += b
			}
		}
	}

	c.inShape = x.Shape
	c.cols = cols
	return out, nil
}

func (c *Conv2d) Backward(grad *tensor.Tensor) (*tensor.Tensor, error) {
	if c.cols == nil {
		return nil, errors.New("conv2d: backward called before forward")
	}

	dy := toRows(grad)
	kk := c.In * c.Kernel * c.Kernel

	var dw mat.Dense
	dw.Mul(dy.T(), c.cols)
	wGrad := mat.NewDense(c.Out, kk, c.Weight.Grad)
	wGrad.Add(wGrad, &dw)

	for n := 0; n < grad.Shape.N; n++ {
		for o := 0; o < grad.Shape.C; o++ {
			sum := 0.0
			for _, v := range grad.Plane(n, o) {
				sum += v
			}
			c.Bias.Grad[o] += sum
		}
	}

	w := mat.NewDense(c.Out, kk, c.Weight.Value)
	var dcols mat.Dense
	dcols.Mul(dy, w)

	dx := tensor.New(c.inShape.N, c.inShape.C, c.inShape.H, c.inShape.W)
	col2im(&dcols, dx, c.Kernel, c.Stride)
	return dx, nil
}

func (c *Conv2d) Params() []*Param  { return []*Param{c.Weight, c.Bias} }
func (c *Conv2d) Buffers() []*Param { return nil }
