package app

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"depseg/internal/tensor"
)

// depthMetrics копит квадраты ошибок по валидным пикселям (метка > 0).
type depthMetrics struct {
	sqErr  float64
	pixels int
	losses []float64
}

func (d *depthMetrics) add(pred, target *tensor.Tensor, loss float64) {
	d.losses = append(d.losses, loss)
	for i, t := range target.Data {
		if t > 0 {
			diff := pred.Data[i] - t
			d.sqErr += diff * diff
			d.pixels++
		}
	}
}

func (d *depthMetrics) loss() float64 { return meanOrZero(d.losses) }

func (d *depthMetrics) rmse() float64 {
	if d.pixels == 0 {
		return 0
	}
	return math.Sqrt(d.sqErr / float64(d.pixels))
}

// segMetrics матрица ошибок: строка истинный класс, столбец предсказанный.
// Метки вне [0, classes) пропускаются.
type segMetrics struct {
	classes   int
	confusion *mat.Dense
	losses    []float64
}

func newSegMetrics(classes int) *segMetrics {
	return &segMetrics{classes: classes, confusion: mat.NewDense(classes, classes, nil)}
}

func (s *segMetrics) add(logits, labels *tensor.Tensor, loss float64) {
	s.losses = append(s.losses, loss)
	sh := logits.Shape
	plane := sh.H * sh.W
	for n := 0; n < sh.N; n++ {
		lab := labels.Plane(n, 0)
		for i := 0; i < plane; i++ {
			truth := int(lab[i])
			if truth < 0 || truth >= s.classes {
				continue
			}
			best, arg := math.Inf(-1), 0
			for c := 0; c < sh.C; c++ {
				if v := logits.Data[(n*sh.C+c)*plane+i]; v > best {
					best, arg = v, c
				}
			}
			s.confusion.Set(truth, arg, s.confusion.At(truth, arg)+1)
		}
	}
}

func (s *segMetrics) loss() float64 { return meanOrZero(s.losses) }

// pixelAccuracy доля верно классифицированных пикселей.
func (s *segMetrics) pixelAccuracy() float64 {
	total := mat.Sum(s.confusion)
	if total == 0 {
		return 0
	}
	return mat.Trace(s.confusion) / total
}

// meanIoU среднее IoU по классам, встречавшимся в разметке или предсказаниях.
func (s *segMetrics) meanIoU() float64 {
	var ious []float64
	row := make([]float64, s.classes)
	col := make([]float64, s.classes)
	for c := 0; c < s.classes; c++ {
		mat.Row(row, c, s.confusion)
		mat.Col(col, c, s.confusion)
		tp := s.confusion.At(c, c)
		union := floats.Sum(row) + floats.Sum(col) - tp
		if union == 0 {
			continue
		}
		ious = append(ious, tp/union)
	}
	return meanOrZero(ious)
}

func meanOrZero(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	return stat.Mean(xs, nil)
}
