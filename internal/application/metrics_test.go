package app

import (
	"testing"

	"github.com/stretchr/testify/require"

	"depseg/internal/tensor"
)

func TestSegMetrics(t *testing.T) {
	// три пикселя: истина 0, 1, ignore; предсказание 0, 0, 1
	logits, err := tensor.FromData(tensor.Shape{N: 1, C: 2, H: 1, W: 3}, []float64{
		5, 5, 0,
		1, 1, 9,
	})
	require.NoError(t, err)
	labels, err := tensor.FromData(tensor.Shape{N: 1, C: 1, H: 1, W: 3}, []float64{0, 1, 255})
	require.NoError(t, err)

	m := newSegMetrics(2)
	m.add(logits, labels, 0.5)
	m.add(logits, labels, 1.5)

	require.InDelta(t, 1.0, m.loss(), 1e-12)
	require.InDelta(t, 0.5, m.pixelAccuracy(), 1e-12)
	// IoU(0) = 2/4, IoU(1) = 0/2
	require.InDelta(t, 0.25, m.meanIoU(), 1e-12)
}

func TestDepthMetrics(t *testing.T) {
	pred := tensor.Full(1, 1, 1, 3, 3)
	target, err := tensor.FromData(tensor.Shape{N: 1, C: 1, H: 1, W: 3}, []float64{0, 2, 5})
	require.NoError(t, err)

	d := &depthMetrics{}
	d.add(pred, target, 2)
	// ошибки 1 и 2 по валидным пикселям
	require.InDelta(t, 1.5811388, d.rmse(), 1e-6)
	require.Equal(t, 2.0, d.loss())

	require.Zero(t, (&depthMetrics{}).rmse())
	require.Zero(t, newSegMetrics(3).pixelAccuracy())
}
