package render

import (
	"image"
	"image/color"

	"github.com/lucasb-eyer/go-colorful"

	"depseg/internal/domain/entity"
)

// Palette цвета классов сегментации. Класс 0 чёрный, остальные
// равномерно распределены по тону в HSV.
type Palette []color.RGBA

// NewPalette строит палитру на classCount классов.
func NewPalette(classCount int) Palette {
	p := make(Palette, classCount)
	if classCount == 0 {
		return p
	}
	p[0] = color.RGBA{A: 255}
	for i := 1; i < classCount; i++ {
		hue := 360 * float64(i-1) / float64(classCount-1)
		// соседние классы отличаются ещё и яркостью
		value := 0.75 + 0.25*float64(i%2)
		r, g, b := colorful.Hsv(hue, 0.85, value).RGB255()
		p[i] = color.RGBA{R: r, G: g, B: b, A: 255}
	}
	return p
}

// Color возвращает цвет класса; классы вне палитры белые.
func (p Palette) Color(cls uint8) color.RGBA {
	if int(cls) >= len(p) {
		return color.RGBA{R: 255, G: 255, B: 255, A: 255}
	}
	return p[cls]
}

// SegmentationImage раскрашивает карту классов.
func SegmentationImage(seg *entity.SegmentationMap) *image.RGBA {
	p := NewPalette(seg.ClassCount)
	img := image.NewRGBA(image.Rect(0, 0, seg.Width, seg.Height))
	for i, cls := range seg.Classes {
		c := p.Color(cls)
		img.Pix[i*4+0] = c.R
		img.Pix[i*4+1] = c.G
		img.Pix[i*4+2] = c.B
		img.Pix[i*4+3] = c.A
	}
	return img
}
