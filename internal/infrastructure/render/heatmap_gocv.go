//go:build gocv
// +build gocv

package render

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"

	"depseg/internal/domain/entity"
	"depseg/internal/domain/port"
)

// Heatmap рендерер тепловой карты на OpenCV.
type Heatmap struct{}

// NewHeatmap создаёт рендерер.
func NewHeatmap() *Heatmap {
	return &Heatmap{}
}

// Overlay раскрашивает глубину через ApplyColorMap(Jet) и смешивает с изображением.
func (h *Heatmap) Overlay(img image.Image, depth *entity.DepthMap) (image.Image, error) {
	if depth.Width < 1 || depth.Height < 1 {
		return nil, fmt.Errorf("overlay: empty depth map %dx%d", depth.Width, depth.Height)
	}
	base := fit(img, depth)
	levels, valid := normalize(depth)

	u8Mat, err := gocv.NewMatFromBytes(depth.Height, depth.Width, gocv.MatTypeCV8U, levels)
	if err != nil {
		return nil, fmt.Errorf("failed to create depth mat: %w", err)
	}
	defer u8Mat.Close()

	colored := gocv.NewMat()
	defer colored.Close()
	gocv.ApplyColorMap(u8Mat, &colored, gocv.ColormapJet)

	// OpenCV хранит BGR
	bgr := colored.ToBytes()
	heat := make([]uint8, len(levels)*3)
	for i := range levels {
		heat[i*3+0] = bgr[i*3+2]
		heat[i*3+1] = bgr[i*3+1]
		heat[i*3+2] = bgr[i*3+0]
	}
	return composite(base, heat, valid), nil
}

var _ port.HeatmapRenderer = (*Heatmap)(nil)
