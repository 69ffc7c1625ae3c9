package entity

import "math"

// DepthMap карта глубины в row-major порядке.
type DepthMap struct {
	Width  int
	Height int
	Values []float32
}

// NewDepthMap создаёт карту, заполненную нулями.
func NewDepthMap(width, height int) *DepthMap {
	return &DepthMap{Width: width, Height: height, Values: make([]float32, width*height)}
}

// At возвращает значение в точке (x, y).
func (d *DepthMap) At(x, y int) float32 {
	return d.Values[y*d.Width+x]
}

// Range возвращает минимум и максимум по конечным значениям.
// ok == false, если конечных значений нет.
func (d *DepthMap) Range() (lo, hi float32, ok bool) {
	lo = float32(math.Inf(1))
	hi = float32(math.Inf(-1))
	for _, v := range d.Values {
		if !IsFinite(v) {
			continue
		}
		ok = true
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return lo, hi, ok
}

// SegmentationMap карта классов в row-major порядке.
type SegmentationMap struct {
	Width      int
	Height     int
	ClassCount int
	Classes    []uint8
}

// NewSegmentationMap создаёт карту, заполненную классом 0.
func NewSegmentationMap(width, height, classCount int) *SegmentationMap {
	return &SegmentationMap{Width: width, Height: height, ClassCount: classCount, Classes: make([]uint8, width*height)}
}

// At возвращает класс в точке (x, y).
func (s *SegmentationMap) At(x, y int) uint8 {
	return s.Classes[y*s.Width+x]
}

// Fraction возвращает долю пикселей класса cls.
func (s *SegmentationMap) Fraction(cls uint8) float64 {
	if len(s.Classes) == 0 {
		return 0
	}
	n := 0
	for _, c := range s.Classes {
		if c == cls {
			n++
		}
	}
	return float64(n) / float64(len(s.Classes))
}

// Prediction результат модели для одного изображения.
type Prediction struct {
	Depth        *DepthMap
	Segmentation *SegmentationMap
}

// IsFinite сообщает, что v не NaN и не ±Inf.
func IsFinite(v float32) bool {
	return !math.IsNaN(float64(v)) && !math.IsInf(float64(v), 0)
}
