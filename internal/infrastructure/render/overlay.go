package render

import (
	"image"
	"image/draw"

	"depseg/internal/domain/entity"
	"depseg/internal/infrastructure/imageio"
)

// Параметры смешивания: тепловая карта с альфой HeatAlpha на белом фоне,
// поверх неё исходное изображение с альфой ImageAlpha.
const (
	HeatAlpha  = 0.97
	ImageAlpha = 0.6
)

// toRGBA приводит изображение к *image.RGBA с началом в (0, 0).
func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok && rgba.Bounds().Min == (image.Point{}) {
		return rgba
	}
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}

// fit приводит изображение к размеру карты глубины.
func fit(img image.Image, depth *entity.DepthMap) *image.RGBA {
	b := img.Bounds()
	if b.Dx() != depth.Width || b.Dy() != depth.Height {
		return imageio.Resize(img, depth.Width, depth.Height)
	}
	return toRGBA(img)
}

// composite смешивает base с тепловой картой heat (RGB тройки на пиксель).
// Пиксели с valid == false считаются чёрными.
func composite(base *image.RGBA, heat []uint8, valid []bool) *image.RGBA {
	b := base.Bounds()
	w, h := b.Dx(), b.Dy()
	out := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := y*w + x
			src := base.Pix[y*base.Stride+x*4:]
			dst := out.Pix[y*out.Stride+x*4:]
			for c := 0; c < 3; c++ {
				hv := 0.0
				if valid[i] {
					hv = float64(heat[i*3+c])
				}
				under := HeatAlpha*hv + (1-HeatAlpha)*255
				v := ImageAlpha*float64(src[c]) + (1-ImageAlpha)*under
				dst[c] = uint8(v + 0.5)
			}
			dst[3] = 255
		}
	}
	return out
}
