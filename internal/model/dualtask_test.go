package model

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"depseg/internal/infrastructure/backbone"
	"depseg/internal/tensor"
)

func newTestModel(t *testing.T, probe ProbeKind, classes int) *DualTask {
	t.Helper()
	m, err := New(backbone.NewProjection(backbone.FeatureChannels, 1), Options{Probe: probe, ClassCount: classes, Seed: 2})
	require.NoError(t, err)
	return m
}

func TestForward_OutputsMatchInputResolution(t *testing.T) {
	cases := []struct {
		name  string
		probe ProbeKind
		h, w  int
	}{
		{"conv exact", ProbeConv, 9, 9},
		{"conv padded", ProbeConv, 20, 31},
		{"conv kitti", ProbeConv, 200, 640},
		{"depthwise", ProbeDepthwise, 12, 13},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m := newTestModel(t, tc.probe, 5)
			img := tensor.Full(1, 3, tc.h, tc.w, 0.3)

			out, err := m.Forward(context.Background(), img, false)
			require.NoError(t, err)
			require.Equal(t, tensor.Shape{N: 1, C: 1, H: tc.h, W: tc.w}, out.Depth.Shape)
			require.Equal(t, tensor.Shape{N: 1, C: 5, H: tc.h, W: tc.w}, out.Segmentation.Shape)
		})
	}
}

func TestForward_SegmentationChannelsEqualClassCount(t *testing.T) {
	m := newTestModel(t, ProbeConv, 35)
	out, err := m.Forward(context.Background(), tensor.Full(2, 3, 18, 18, 0.1), true)
	require.NoError(t, err)
	require.Equal(t, 35, out.Segmentation.Shape.C)
	require.Equal(t, 2, out.Segmentation.Shape.N)
}

func TestForward_UncoveredRegionKeepsFill(t *testing.T) {
	m := newTestModel(t, ProbeConv, 3)
	// 20x31 -> головы выдают 18x27
	reg, seg, err := m.HeadShapes(tensor.Shape{N: 1, C: 3, H: 20, W: 31})
	require.NoError(t, err)
	require.Equal(t, 18, reg.H)
	require.Equal(t, 27, seg.W)

	out, err := m.Forward(context.Background(), tensor.Full(1, 3, 20, 31, 0.2), false)
	require.NoError(t, err)
	require.Equal(t, OutputFill, out.Depth.At(0, 0, 19, 30))
	require.Equal(t, OutputFill, out.Segmentation.At(0, 2, 18, 0))
	require.Equal(t, OutputFill, out.Depth.At(0, 0, 0, 27))
}

func TestForward_RejectsNonRGB(t *testing.T) {
	m := newTestModel(t, ProbeConv, 3)
	_, err := m.Forward(context.Background(), tensor.New(1, 1, 9, 9), false)
	require.ErrorIs(t, err, tensor.ErrShape)
}

func TestForward_TooSmallInput(t *testing.T) {
	m := newTestModel(t, ProbeConv, 3)
	_, err := m.Forward(context.Background(), tensor.New(1, 3, 5, 9), false)
	require.ErrorIs(t, err, tensor.ErrShape)
}

func TestBackward_OnlyProducedRegionReachesHead(t *testing.T) {
	m := newTestModel(t, ProbeConv, 3)
	_, err := m.Forward(context.Background(), tensor.Full(2, 3, 20, 31, 0.2), true)
	require.NoError(t, err)

	for _, p := range m.Trainable() {
		p.ZeroGrad()
	}
	// градиент только в паддинге: головы не должны ничего получить
	grad := tensor.New(2, 1, 20, 31)
	for n := 0; n < 2; n++ {
		for x := 0; x < 31; x++ {
			grad.Set(n, 0, 19, x, 1)
		}
	}
	require.NoError(t, m.Backward(grad, nil))
	for _, p := range m.RegHead.Params() {
		for _, g := range p.Grad {
			require.Zero(t, g)
		}
	}
}

func TestNew_Validation(t *testing.T) {
	_, err := New(nil, DefaultOptions())
	require.Error(t, err)

	_, err = New(backbone.NewProjection(4, 1), Options{Probe: ProbeConv, ClassCount: 0})
	require.Error(t, err)

	_, err = New(backbone.NewProjection(4, 1), Options{Probe: "unet", ClassCount: 3})
	require.Error(t, err)
}

func TestCheckpoint_RoundTrip(t *testing.T) {
	ctx := context.Background()
	src := newTestModel(t, ProbeConv, 4)
	// обновим running stats, чтобы они отличались от начальных
	_, err := src.Forward(ctx, tensor.Full(2, 3, 9, 9, 0.7), true)
	require.NoError(t, err)

	ckpt := src.Checkpoint(3, 9, 9)
	require.Equal(t, 3, ckpt.Epoch)
	require.Equal(t, backbone.ProjectionName, ckpt.Backbone)

	dst, err := FromCheckpoint(backbone.NewProjection(backbone.FeatureChannels, 1), ckpt)
	require.NoError(t, err)

	img := tensor.Full(1, 3, 9, 9, 0.4)
	a, err := src.Forward(ctx, img, false)
	require.NoError(t, err)
	b, err := dst.Forward(ctx, img, false)
	require.NoError(t, err)
	require.Equal(t, a.Depth.Data, b.Depth.Data)
	require.Equal(t, a.Segmentation.Data, b.Segmentation.Data)
}

func TestLoadCheckpoint_Mismatch(t *testing.T) {
	ckpt := newTestModel(t, ProbeConv, 4).Checkpoint(1, 9, 9)

	err := newTestModel(t, ProbeConv, 5).LoadCheckpoint(ckpt)
	require.ErrorIs(t, err, ErrCheckpointMismatch)

	err = newTestModel(t, ProbeDepthwise, 4).LoadCheckpoint(ckpt)
	require.ErrorIs(t, err, ErrCheckpointMismatch)

	ckpt.Tensors = ckpt.Tensors[1:]
	err = newTestModel(t, ProbeConv, 4).LoadCheckpoint(ckpt)
	require.ErrorIs(t, err, ErrCheckpointMismatch)
}

func TestSummarize(t *testing.T) {
	m := newTestModel(t, ProbeConv, 35)
	var buf bytes.Buffer
	require.NoError(t, Summarize(&buf, m, tensor.Shape{N: 8, C: 3, H: 320, W: 320}))

	out := buf.String()
	require.Contains(t, out, "reg_head.9")
	require.Contains(t, out, "ConvTranspose2d")
	require.Contains(t, out, "[8, 35, 320, 320]")
	require.Contains(t, out, "[8, 35, 315, 315]")
	require.Contains(t, out, "Frozen params: 84")
}
