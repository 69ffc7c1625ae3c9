package render

import (
	"image"
	"image/color"

	"depseg/internal/domain/entity"
)

type anchor struct{ x, y float64 }

// Опорные точки jet, как в matplotlib.
var (
	jetRed   = []anchor{{0, 0}, {0.35, 0}, {0.66, 1}, {0.89, 1}, {1, 0.5}}
	jetGreen = []anchor{{0, 0}, {0.125, 0}, {0.375, 1}, {0.64, 1}, {0.91, 0}, {1, 0}}
	jetBlue  = []anchor{{0, 0.5}, {0.11, 1}, {0.34, 1}, {0.65, 0}, {1, 0}}
)

var jetLUT [256]color.RGBA

func init() {
	// таблица для всех 8-битных уровней
	for i := range jetLUT {
		v := float64(i) / 255
		jetLUT[i] = color.RGBA{
			R: uint8(interp(jetRed, v)*255 + 0.5),
			G: uint8(interp(jetGreen, v)*255 + 0.5),
			B: uint8(interp(jetBlue, v)*255 + 0.5),
			A: 255,
		}
	}
}

func interp(points []anchor, v float64) float64 {
	if v <= points[0].x {
		return points[0].y
	}
	for i := 1; i < len(points); i++ {
		if v <= points[i].x {
			a, b := points[i-1], points[i]
			return a.y + (b.y-a.y)*(v-a.x)/(b.x-a.x)
		}
	}
	return points[len(points)-1].y
}

// Jet возвращает цвет jet для уровня 0..255.
func Jet(level uint8) color.RGBA {
	return jetLUT[level]
}

// normalize переводит конечные значения depth в 0..255 по min/max карты.
// valid[i] == false для NaN/Inf. Постоянная карта даёт нули.
func normalize(depth *entity.DepthMap) (levels []uint8, valid []bool) {
	levels = make([]uint8, len(depth.Values))
	valid = make([]bool, len(depth.Values))

	lo, hi, ok := depth.Range()
	den := hi - lo
	for i, v := range depth.Values {
		if !entity.IsFinite(v) {
			continue
		}
		valid[i] = true
		if !ok || den <= 0 {
			continue
		}
		n := (v - lo) / den
		if n < 0 {
			n = 0
		}
		if n > 1 {
			n = 1
		}
		levels[i] = uint8(n*255 + 0.5)
	}
	return levels, valid
}

// DepthImage раскрашивает карту глубины в jet, NaN рисуются чёрным.
func DepthImage(depth *entity.DepthMap) *image.RGBA {
	levels, valid := normalize(depth)
	img := image.NewRGBA(image.Rect(0, 0, depth.Width, depth.Height))
	for i, lvl := range levels {
		c := color.RGBA{A: 255}
		if valid[i] {
			c = jetLUT[lvl]
		}
		img.Pix[i*4+0] = c.R
		img.Pix[i*4+1] = c.G
		img.Pix[i*4+2] = c.B
		img.Pix[i*4+3] = c.A
	}
	return img
}
