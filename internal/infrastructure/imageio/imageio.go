// Package imageio декодирует изображения и карты меток и превращает их в тензоры.
package imageio

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/draw"

	"depseg/internal/tensor"
)

// Нормализация ImageNet, с которой обучались бэкбоны torchvision.
var (
	ImageNetMean = [3]float64{0.485, 0.456, 0.406}
	ImageNetStd  = [3]float64{0.229, 0.224, 0.225}
)

// Размер входа модели на KITTI.
const (
	DefaultHeight = 200
	DefaultWidth  = 640
)

// DepthScale делитель 16-битных PNG глубины KITTI (значение / 256 = метры).
const DepthScale = 256.0

// Decode декодирует PNG или JPEG.
func Decode(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return img, nil
}

// Load читает изображение с диска.
func Load(path string) (image.Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	img, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return img, nil
}

// Resize масштабирует изображение билинейно.
func Resize(img image.Image, width, height int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.BiLinear.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)
	return dst
}

// Preprocess изменение размера, перевод в [0, 1] и нормализация.
type Preprocess struct {
	Width  int
	Height int
}

// DefaultPreprocess преобразование входа для KITTI.
func DefaultPreprocess() Preprocess {
	return Preprocess{Width: DefaultWidth, Height: DefaultHeight}
}

// Apply возвращает тензор (1, 3, Height, Width).
func (p Preprocess) Apply(img image.Image) *tensor.Tensor {
	return ToTensor(Resize(img, p.Width, p.Height), true)
}

// ToTensor переводит RGBA в тензор (1, 3, H, W) со значениями в [0, 1],
// при normalize дополнительно вычитает среднее и делит на std ImageNet.
func ToTensor(img *image.RGBA, normalize bool) *tensor.Tensor {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	t := tensor.New(1, 3, h, w)
	for y := 0; y < h; y++ {
		row := img.Pix[y*img.Stride : y*img.Stride+w*4]
		for x := 0; x < w; x++ {
			for c := 0; c < 3; c++ {
				v := float64(row[x*4+c]) / 255
				if normalize {
					v = (v - ImageNetMean[c]) / ImageNetStd[c]
				}
				t.Data[(c*h+y)*w+x] = v
			}
		}
	}
	return t
}

// LoadDepth читает 16-битную PNG глубину KITTI, масштабирует ближайшим
// соседом и возвращает метры в тензоре (1, 1, height, width). 0 = нет данных.
func LoadDepth(path string, width, height int) (*tensor.Tensor, error) {
	img, err := Load(path)
	if err != nil {
		return nil, err
	}
	dst := image.NewGray16(image.Rect(0, 0, width, height))
	draw.NearestNeighbor.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)

	t := tensor.New(1, 1, height, width)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			t.Data[y*width+x] = float64(dst.Gray16At(x, y).Y) / DepthScale
		}
	}
	return t, nil
}

// LoadLabels читает 8-битную карту классов (градации серого или палитра)
// и масштабирует её ближайшим соседом в тензор (1, 1, height, width).
func LoadLabels(path string, width, height int) (*tensor.Tensor, error) {
	img, err := Load(path)
	if err != nil {
		return nil, err
	}
	src := labelIndices(img)
	dst := image.NewGray(image.Rect(0, 0, width, height))
	draw.NearestNeighbor.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)

	t := tensor.New(1, 1, height, width)
	for i, v := range dst.Pix[:width*height] {
		t.Data[i] = float64(v)
	}
	return t, nil
}

// labelIndices возвращает изображение, где яркость пикселя равна id класса.
// Для палитровых PNG это индекс палитры, а не цвет.
func labelIndices(img image.Image) image.Image {
	p, ok := img.(*image.Paletted)
	if !ok {
		return img
	}
	b := p.Bounds()
	g := image.NewGray(b)
	for y := 0; y < b.Dy(); y++ {
		copy(g.Pix[y*g.Stride:y*g.Stride+b.Dx()], p.Pix[y*p.Stride:y*p.Stride+b.Dx()])
	}
	return g
}

// Encode кодирует изображение в PNG или JPEG по имени формата.
func Encode(img image.Image, format string) ([]byte, error) {
	var buf bytes.Buffer
	switch strings.ToLower(format) {
	case "jpg", "jpeg":
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
			return nil, err
		}
	case "png", "":
		if err := png.Encode(&buf, img); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported image format %q", format)
	}
	return buf.Bytes(), nil
}

// Save записывает изображение, формат выбирается по расширению.
func Save(path string, img image.Image) error {
	data, err := Encode(img, strings.TrimPrefix(filepath.Ext(path), "."))
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
