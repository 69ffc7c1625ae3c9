package app

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"depseg/internal/domain/entity"
	"depseg/internal/infrastructure/backbone"
	"depseg/internal/infrastructure/imageio"
	"depseg/internal/model"
	"depseg/internal/tensor"
)

const (
	testH       = 9
	testW       = 12
	testClasses = 4
)

var testPre = imageio.Preprocess{Width: testW, Height: testH}

func newTestModel(t *testing.T) (*model.DualTask, *backbone.Projection) {
	t.Helper()
	bb := backbone.NewProjection(backbone.FeatureChannels, 3)
	m, err := model.New(bb, model.Options{Probe: model.ProbeConv, ClassCount: testClasses, Seed: 1})
	require.NoError(t, err)
	return m, bb
}

func testImage(seed int64) *image.RGBA {
	rng := rand.New(rand.NewSource(seed))
	img := image.NewRGBA(image.Rect(0, 0, 2*testW, 2*testH))
	for y := 0; y < 2*testH; y++ {
		for x := 0; x < 2*testW; x++ {
			img.Set(x, y, color.RGBA{R: uint8(rng.Intn(256)), G: uint8(rng.Intn(256)), B: uint8(rng.Intn(256)), A: 255})
		}
	}
	return img
}

// fakeDataset i-й пример: случайный снимок и метка, зависящая от i.
type fakeDataset struct {
	task entity.Task
	n    int
}

func (d *fakeDataset) Task() entity.Task { return d.task }
func (d *fakeDataset) Len() int          { return d.n }
func (d *fakeDataset) Get(ctx context.Context, i int) (*entity.Sample, error) {
	label := tensor.New(1, 1, testH, testW)
	for p := range label.Data {
		if d.task == entity.TaskDepth {
			label.Data[p] = float64(1 + (p+i)%5)
		} else {
			label.Data[p] = float64((p + i) % testClasses)
		}
	}
	return &entity.Sample{
		Path:  fmt.Sprintf("%s/%d.png", d.task, i),
		Image: testPre.Apply(testImage(int64(i))),
		Label: label,
	}, nil
}

func snapshot(params [][]float64) [][]float64 {
	out := make([][]float64, len(params))
	for i, p := range params {
		out[i] = append([]float64(nil), p...)
	}
	return out
}
