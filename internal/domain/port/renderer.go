package port

import (
	"image"

	"depseg/internal/domain/entity"
)

// HeatmapRenderer накладывает тепловую карту глубины на изображение
type HeatmapRenderer interface {
	// Overlay раскрашивает depth (NaN = нет данных) и смешивает с img,
	// приведённым к размеру depth.
	Overlay(img image.Image, depth *entity.DepthMap) (image.Image, error)
}
