//go:build !gocv
// +build !gocv

package render

import (
	"fmt"
	"image"

	"depseg/internal/domain/entity"
	"depseg/internal/domain/port"
)

// Heatmap рендерер тепловой карты на чистом Go (сборка без тега gocv).
type Heatmap struct{}

// NewHeatmap создаёт рендерер.
func NewHeatmap() *Heatmap {
	return &Heatmap{}
}

// Overlay раскрашивает глубину в jet и смешивает с изображением,
// приведённым к размеру карты.
func (h *Heatmap) Overlay(img image.Image, depth *entity.DepthMap) (image.Image, error) {
	if depth.Width < 1 || depth.Height < 1 {
		return nil, fmt.Errorf("overlay: empty depth map %dx%d", depth.Width, depth.Height)
	}
	base := fit(img, depth)
	levels, valid := normalize(depth)
	heat := make([]uint8, len(levels)*3)
	for i, lvl := range levels {
		c := jetLUT[lvl]
		heat[i*3+0], heat[i*3+1], heat[i*3+2] = c.R, c.G, c.B
	}
	return composite(base, heat, valid), nil
}

var _ port.HeatmapRenderer = (*Heatmap)(nil)
