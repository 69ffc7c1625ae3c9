package nn

import (
	"gonum.org/v1/gonum/mat"

	"depseg/internal/tensor"
)

// im2col разворачивает окна k×k с шагом s в строки матрицы.
// Строка r = (n*Ho+oy)*Wo+ox, столбец (c*k+ky)*k+kx.
func im2col(x *tensor.Tensor, k, s int) *mat.Dense {
	ho := (x.Shape.H-k)/s + 1
	wo := (x.Shape.W-k)/s + 1
	cols := x.Shape.C * k * k
	rows := x.Shape.N * ho * wo
	data := make([]float64, rows*cols)

	for n := 0; n < x.Shape.N; n++ {
		for oy := 0; oy < ho; oy++ {
			for ox := 0; ox < wo; ox++ {
				base := ((n*ho+oy)*wo + ox) * cols
				for c := 0; c < x.Shape.C; c++ {
					for ky := 0; ky < k; ky++ {
						src := x.Index(n, c, oy*s+ky, ox*s)
						dst := base + (c*k+ky)*k
						copy(data[dst:dst+k], x.Data[src:src+k])
					}
				}
			}
		}
	}

	return mat.NewDense(rows, cols, data)
}

// col2im обратная к im2col операция: суммирует строки m в dst.
func col2im(m *mat.Dense, dst *tensor.Tensor, k, s int) {
	ho := (dst.Shape.H-k)/s + 1
	wo := (dst.Shape.W-k)/s + 1
	raw := m.RawMatrix()

	for n := 0; n < dst.Shape.N; n++ {
		for oy := 0; oy < ho; oy++ {
			for ox := 0; ox < wo; ox++ {
				base := ((n*ho+oy)*wo + ox) * raw.Stride
				for c := 0; c < dst.Shape.C; c++ {
					for ky := 0; ky < k; ky++ {
						di := dst.Index(n, c, oy*s+ky, ox*s)
						si := base + (c*k+ky)*k
						for kx := 0; kx < k; kx++ {
							dst.Data[di+kx] += raw.Data[si+kx]
						}
					}
				}
			}
		}
	}
}

// toRows переводит NCHW в матрицу (N*H*W)×C.
func toRows(x *tensor.Tensor) *mat.Dense {
	s := x.Shape
	data := make([]float64, s.Size())
	for n := 0; n < s.N; n++ {
		for c := 0; c < s.C; c++ {
			plane := x.Plane(n, c)
			for i, v := range plane {
				data[(n*s.H*s.W+i)*s.C+c] = v
			}
		}
	}
	return mat.NewDense(s.N*s.H*s.W, s.C, data)
}

// fromRows обратная к toRows операция.
func fromRows(m *mat.Dense, s tensor.Shape) *tensor.Tensor {
	out := tensor.New(s.N, s.C, s.H, s.W)
	raw := m.RawMatrix()
	for n := 0; n < s.N; n++ {
		for c := 0; c < s.C; c++ {
			plane := out.Plane(n, c)
			for i := range plane {
				plane[i] = raw.Data[(n*s.H*s.W+i)*raw.Stride+c]
			}
		}
	}
	return out
}
