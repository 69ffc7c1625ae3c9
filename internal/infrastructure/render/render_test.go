package render

import (
	"image"
	"image/color"
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"depseg/internal/domain/entity"
)

func TestJet_Endpoints(t *testing.T) {
	require.Equal(t, color.RGBA{R: 0, G: 0, B: 128, A: 255}, Jet(0))
	require.Equal(t, color.RGBA{R: 128, G: 0, B: 0, A: 255}, Jet(255))

	mid := Jet(128)
	require.Greater(t, mid.G, uint8(200))
}

func TestOverlay_NaNIsBlackHeat(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 2, 1))
	for i := range img.Pix {
		img.Pix[i] = 100
	}
	depth := entity.NewDepthMap(2, 1)
	depth.Values[0] = float32(math.NaN())
	depth.Values[1] = 3

	out, err := NewHeatmap().Overlay(img, depth)
	require.NoError(t, err)
	rgba := out.(*image.RGBA)

	// 0.6*100 + 0.4*(0.97*0 + 0.03*255)
	want := uint8(math.Round(ImageAlpha*100 + (1-ImageAlpha)*(1-HeatAlpha)*255))
	require.Equal(t, []uint8{want, want, want, 255}, rgba.Pix[0:4])
	require.NotEqual(t, rgba.Pix[0:3], rgba.Pix[4:7])
}

func TestOverlay_ResizesToDepth(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 8, 6))
	out, err := NewHeatmap().Overlay(img, entity.NewDepthMap(4, 3))
	require.NoError(t, err)
	require.Equal(t, image.Rect(0, 0, 4, 3), out.Bounds())

	_, err = NewHeatmap().Overlay(img, entity.NewDepthMap(0, 0))
	require.Error(t, err)
}

func TestDepthImage_Range(t *testing.T) {
	depth := entity.NewDepthMap(3, 1)
	depth.Values[0] = 1
	depth.Values[1] = float32(math.NaN())
	depth.Values[2] = 5

	img := DepthImage(depth)
	require.Equal(t, Jet(0), img.RGBAAt(0, 0))
	require.Equal(t, color.RGBA{A: 255}, img.RGBAAt(1, 0))
	require.Equal(t, Jet(255), img.RGBAAt(2, 0))
}

func TestPalette_DistinctColors(t *testing.T) {
	p := NewPalette(entity.DefaultClassCount)
	require.Len(t, p, entity.DefaultClassCount)
	require.Equal(t, color.RGBA{A: 255}, p.Color(0))
	require.NotEqual(t, p.Color(entity.ClassRoad), p.Color(entity.ClassCar))
	require.Equal(t, color.RGBA{R: 255, G: 255, B: 255, A: 255}, p.Color(200))

	seg := entity.NewSegmentationMap(2, 1, entity.DefaultClassCount)
	seg.Classes[1] = entity.ClassCar
	img := SegmentationImage(seg)
	require.Equal(t, p.Color(entity.ClassCar), img.RGBAAt(1, 0))
}
