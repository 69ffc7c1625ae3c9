package backbone

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"depseg/internal/tensor"
)

func TestProjection_Extract(t *testing.T) {
	p := NewProjection(FeatureChannels, 3)
	img := tensor.Full(2, 3, 4, 5, 0.5)

	out, err := p.Extract(context.Background(), img)
	require.NoError(t, err)
	require.Equal(t, tensor.Shape{N: 2, C: FeatureChannels, H: 4, W: 5}, out.Shape)
	for _, v := range out.Data {
		require.True(t, v > -1 && v < 1)
	}
	require.Equal(t, FeatureChannels*4, p.ParamCount())
}

func TestProjection_Deterministic(t *testing.T) {
	a := NewProjection(4, 11)
	b := NewProjection(4, 11)
	require.Equal(t, a.Weights, b.Weights)
	require.Equal(t, a.Bias, b.Bias)
}

func TestProjection_RejectsWrongChannels(t *testing.T) {
	p := NewProjection(4, 1)
	_, err := p.Extract(context.Background(), tensor.New(1, 1, 2, 2))
	require.ErrorIs(t, err, tensor.ErrShape)
}

func TestProjection_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewProjection(4, 1).Extract(ctx, tensor.New(1, 3, 2, 2))
	require.ErrorIs(t, err, context.Canceled)
}

func TestOpen(t *testing.T) {
	b, err := Open(Config{Kind: ProjectionName, Seed: 1})
	require.NoError(t, err)
	require.Equal(t, ProjectionName, b.Name())

	_, err = Open(Config{Kind: "resnet"})
	require.Error(t, err)

	_, err = Open(Config{Kind: DeepLabName})
	require.Error(t, err)
}
