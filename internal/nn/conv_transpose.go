package nn

import (
	"errors"
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"depseg/internal/tensor"
)

// ConvTranspose2d транспонированная свёртка без паддинга:
// H_out = (H-1)*Stride + Kernel.
type ConvTranspose2d struct {
	In, Out        int
	Kernel, Stride int
	Weight         *Param // [In, Out, K, K]
	Bias           *Param // [Out]

	inShape tensor.Shape
	x       *mat.Dense
}

// NewConvTranspose2d создаёт слой и инициализирует веса из rng.
func NewConvTranspose2d(in, out, kernel, stride int, rng *rand.Rand) *ConvTranspose2d {
	c := &ConvTranspose2d{
		In:     in,
		Out:    out,
		Kernel: kernel,
		Stride: stride,
		Weight: newParam("weight", in, out, kernel, kernel),
		Bias:   newParam("bias", out),
	}
	// fan_in считается по второй оси веса, как у транспонированных свёрток.
	fanIn := out * kernel * kernel
	uniformInit(c.Weight, fanIn, rng)
	uniformInit(c.Bias, fanIn, rng)
	return c
}

func (c *ConvTranspose2d) Kind() string { return "ConvTranspose2d" }

func (c *ConvTranspose2d) OutShape(in tensor.Shape) (tensor.Shape, error) {
	if err := checkChannels(c.Kind(), in, c.In); err != nil {
		return tensor.Shape{}, err
	}
	return tensor.Shape{
		N: in.N,
		C: c.Out,
		H: (in.H-1)*c.Stride + c.Kernel,
		W: (in.W-1)*c.Stride + c.Kernel,
	}, nil
}

func (c *ConvTranspose2d) Forward(x *tensor.Tensor, train bool) (*tensor.Tensor, error) {
	outShape, err := c.OutShape(x.Shape)
	if err != nil {
		return nil, err
	}

	rows := toRows(x)
	w := mat.NewDense(c.In, c.Out*c.Kernel*c.Kernel, c.Weight.Value)

	var z mat.Dense
	z.Mul(rows, w)

	out := tensor.New(outShape.N, outShape.C, outShape.H, outShape.W)
	col2im(&z, out, c.Kernel, c.Stride)
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
	c.x = rows
	return out, nil
}

func (c *ConvTranspose2d) Backward(grad *tensor.Tensor) (*tensor.Tensor, error) {
	if c.x == nil {
		return nil, errors.New("conv_transpose2d: backward called before forward")
	}

	dz := im2col(grad, c.Kernel, c.Stride)
	okk := c.Out * c.Kernel * c.Kernel

	var dw mat.Dense
	dw.Mul(c.x.T(), dz)
	wGrad := mat.NewDense(c.In, okk, c.Weight.Grad)
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

	w := mat.NewDense(c.In, okk, c.Weight.Value)
	var dx mat.Dense
	dx.Mul(dz, w.T())

	return fromRows(&dx, c.inShape), nil
}

func (c *ConvTranspose2d) Params() []*Param  { return []*Param{c.Weight, c.Bias} }
func (c *ConvTranspose2d) Buffers() []*Param { return nil }
