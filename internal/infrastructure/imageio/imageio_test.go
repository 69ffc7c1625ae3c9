package imageio

import (
	"image"
	"image/color"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadDepth_Metres(t *testing.T) {
	path := filepath.Join(t.TempDir(), "depth.png")
	img := image.NewGray16(image.Rect(0, 0, 4, 2))
	img.SetGray16(1, 0, color.Gray16{Y: 2560})
	img.SetGray16(3, 1, color.Gray16{Y: 512})
	require.NoError(t, Save(path, img))

	d, err := LoadDepth(path, 4, 2)
	require.NoError(t, err)
	require.Equal(t, 10.0, d.At(0, 0, 0, 1))
	require.Equal(t, 2.0, d.At(0, 0, 1, 3))
	require.Equal(t, 0.0, d.At(0, 0, 0, 0))
}

func TestLoadLabels_PalettedUsesIndices(t *testing.T) {
	path := filepath.Join(t.TempDir(), "labels.png")
	palette := make(color.Palette, 30)
	for i := range palette {
		palette[i] = color.RGBA{R: uint8(i * 8), G: 200, B: 10, A: 255}
	}
	img := image.NewPaletted(image.Rect(0, 0, 2, 2), palette)
	img.SetColorIndex(0, 0, 7)
	img.SetColorIndex(1, 1, 26)
	require.NoError(t, Save(path, img))

	l, err := LoadLabels(path, 4, 4)
	require.NoError(t, err)
	require.Equal(t, 7.0, l.At(0, 0, 0, 0))
	require.Equal(t, 7.0, l.At(0, 0, 1, 1))
	require.Equal(t, 26.0, l.At(0, 0, 3, 3))
	require.Equal(t, 0.0, l.At(0, 0, 0, 3))
}

func TestPreprocess_ShapeAndNormalisation(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 30, 10))
	for i := range img.Pix {
		img.Pix[i] = 255
	}

	out := Preprocess{Width: 16, Height: 5}.Apply(img)
	require.Equal(t, 1, out.Shape.N)
	require.Equal(t, 3, out.Shape.C)
	require.Equal(t, 5, out.Shape.H)
	require.Equal(t, 16, out.Shape.W)
	for c := 0; c < 3; c++ {
		require.InDelta(t, (1-ImageNetMean[c])/ImageNetStd[c], out.At(0, c, 2, 7), 1e-9)
	}
}

func TestEncode_UnsupportedFormat(t *testing.T) {
	_, err := Encode(image.NewRGBA(image.Rect(0, 0, 1, 1)), "bmp")
	require.Error(t, err)

	data, err := Encode(image.NewRGBA(image.Rect(0, 0, 1, 1)), "jpg")
	require.NoError(t, err)
	_, err = Decode(data)
	require.NoError(t, err)
}
