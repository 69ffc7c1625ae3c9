package tensor

import (
	"errors"
	"fmt"
)

// ErrShape возвращается, когда формы тензоров несовместимы.
var ErrShape = errors.New("tensor shape mismatch")

// Shape описывает форму тензора в порядке NCHW.
type Shape struct {
	N, C, H, W int
}

// Size возвращает число элементов.
func (s Shape) Size() int {
	return s.N * s.C * s.H * s.W
}

func (s Shape) String() string {
	return fmt.Sprintf("[%d, %d, %d, %d]", s.N, s.C, s.H, s.W)
}

// Tensor плотный NCHW тензор.
type Tensor struct {
	Shape Shape
	Data  []float64
}

// New создаёт тензор, заполненный нулями.
func New(n, c, h, w int) *Tensor {
	s := Shape{N: n, C: c, H: h, W: w}
	return &Tensor{Shape: s, Data: make([]float64, s.Size())}
}

// Full создаёт тензор, заполненный значением v.
func Full(n, c, h, w int, v float64) *Tensor {
	t := New(n, c, h, w)
	for i := range t.Data {
		t.Data[i] = v
	}
	return t
}

// FromData оборачивает готовый срез. Длина должна совпадать с формой.
func FromData(s Shape, data []float64) (*Tensor, error) {
	if len(data) != s.Size() {
		return nil, fmt.Errorf("%w: %d values for shape %s", ErrShape, len(data), s)
	}
	return &Tensor{Shape: s, Data: data}, nil
}

// Index возвращает позицию элемента (n, c, h, w) в Data.
func (t *Tensor) Index(n, c, h, w int) int {
	return ((n*t.Shape.C+c)*t.Shape.H+h)*t.Shape.W + w
}

func (t *Tensor) At(n, c, h, w int) float64 {
	return t.Data[t.Index(n, c, h, w)]
}

func (t *Tensor) Set(n, c, h, w int, v float64) {
	t.Data[t.Index(n, c, h, w)] = v
}

// Clone возвращает глубокую копию.
func (t *Tensor) Clone() *Tensor {
	data := make([]float64, len(t.Data))
	copy(data, t.Data)
	return &Tensor{Shape: t.Shape, Data: data}
}

// Plane возвращает срез одного канала одного элемента батча.
func (t *Tensor) Plane(n, c int) []float64 {
	hw := t.Shape.H * t.Shape.W
	start := (n*t.Shape.C + c) * hw
	return t.Data[start : start+hw]
}

// Paste копирует src в левый верхний угол dst. Области, выходящие за dst,
// обрезаются, непокрытая часть dst не меняется. N и C должны совпадать.
func Paste(dst, src *Tensor) error {
	if dst.Shape.N != src.Shape.N || dst.Shape.C != src.Shape.C {
		return fmt.Errorf("%w: paste %s into %s", ErrShape, src.Shape, dst.Shape)
	}
	h := minInt(dst.Shape.H, src.Shape.H)
	w := minInt(dst.Shape.W, src.Shape.W)
	for n := 0; n < src.Shape.N; n++ {
		for c := 0; c < src.Shape.C; c++ {
			for y := 0; y < h; y++ {
				si := src.Index(n, c, y, 0)
				di := dst.Index(n, c, y, 0)
				copy(dst.Data[di:di+w], src.Data[si:si+w])
			}
		}
	}
	return nil
}

// Crop вырезает левый верхний угол src формы (h, w). Если src меньше,
// недостающие элементы остаются нулевыми: так градиент не попадает в
// область, которую голова не порождала.
func Crop(src *Tensor, h, w int) *Tensor {
	out := New(src.Shape.N, src.Shape.C, h, w)
	ch := minInt(h, src.Shape.H)
	cw := minInt(w, src.Shape.W)
	for n := 0; n < src.Shape.N; n++ {
		for c := 0; c < src.Shape.C; c++ {
			for y := 0; y < ch; y++ {
				si := src.Index(n, c, y, 0)
				di := out.Index(n, c, y, 0)
				copy(out.Data[di:di+cw], src.Data[si:si+cw])
			}
		}
	}
	return out
}

// Stack склеивает тензоры с N=1 в один батч.
func Stack(items []*Tensor) (*Tensor, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: empty stack", ErrShape)
	}
	first := items[0].Shape
	out := New(len(items), first.C, first.H, first.W)
	per := first.C * first.H * first.W
	for i, it := range items {
		if it.Shape.N != 1 || it.Shape.C != first.C || it.Shape.H != first.H || it.Shape.W != first.W {
			return nil, fmt.Errorf("%w: stack item %d has shape %s, want %s", ErrShape, i, it.Shape, first)
		}
		copy(out.Data[i*per:(i+1)*per], it.Data)
	}
	return out, nil
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
