package nn

import (
	"fmt"
	"math"

	"depseg/internal/tensor"
)

// IgnoreLabel метка пикселя, не участвующего в функции потерь сегментации.
const IgnoreLabel = 255

// MaskedMSE средний квадрат ошибки по пикселям с target > 0.
// Возвращает потерю и градиент по pred. Если валидных пикселей нет,
// потеря и градиент нулевые.
func MaskedMSE(pred, target *tensor.Tensor) (float64, *tensor.Tensor, error) {
	if pred.Shape != target.Shape {
		return 0, nil, fmt.Errorf("%w: mse pred %s target %s", ErrShape, pred.Shape, target.Shape)
	}
	grad := tensor.New(pred.Shape.N, pred.Shape.C, pred.Shape.H, pred.Shape.W)

	count := 0
	for _, t := range target.Data {
		if t > 0 {
			count++
		}
	}
	if count == 0 {
		return 0, grad, nil
	}

	var loss float64
	inv := 1 / float64(count)
	for i, t := range target.Data {
		if t <= 0 {
			continue
		}
		d := pred.Data[i] - t
		loss += d * d
		grad.Data[i] = 2 * d * inv
	}
	return loss * inv, grad, nil
}

// CrossEntropy softmax кросс-энтропия по каналам. labels имеют форму
// (N, 1, H, W); пиксели с меткой вне [0, C) пропускаются.
func CrossEntropy(logits, labels *tensor.Tensor) (float64, *tensor.Tensor, error) {
	ls, ts := logits.Shape, labels.Shape
	if ts.N != ls.N || ts.C != 1 || ts.H != ls.H || ts.W != ls.W {
		return 0, nil, fmt.Errorf("%w: cross entropy logits %s labels %s", ErrShape, ls, ts)
	}
	grad := tensor.New(ls.N, ls.C, ls.H, ls.W)
	hw := ls.H * ls.W
	probs := make([]float64, ls.C)

	var loss float64
	count := 0
	for n := 0; n < ls.N; n++ {
		lab := labels.Plane(n, 0)
		for i := 0; i < hw; i++ {
			cls := int(lab[i])
			if cls < 0 || cls >= ls.C {
				continue
			}
			count++

			maxV := math.Inf(-1)
			for c := 0; c < ls.C; c++ {
				if v := logits.Data[(n*ls.C+c)*hw+i]; v > maxV {
					maxV = v
				}
			}
			var sum float64
			for c := 0; c < ls.C; c++ {
				probs[c] = math.Exp(logits.Data[(n*ls.C+c)*hw+i] - maxV)
				sum += probs[c]
			}
			loss -= math.Log(probs[cls] / sum)
			for c := 0; c < ls.C; c++ {
				p := probs[c] / sum
				if c == cls {
					p--
				}
				grad.Data[(n*ls.C+c)*hw+i] = p
			}
		}
	}
	if count == 0 {
		return 0, grad, nil
	}

	inv := 1 / float64(count)
	for i := range grad.Data {
		grad.Data[i] *= inv
	}
	return loss * inv, grad, nil
}
