package entity

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDepthMapRange_SkipsNaN(t *testing.T) {
	d := &DepthMap{Width: 2, Height: 2, Values: []float32{float32(math.NaN()), 3, -1, float32(math.Inf(1))}}
	lo, hi, ok := d.Range()
	require.True(t, ok)
	require.Equal(t, float32(-1), lo)
	require.Equal(t, float32(3), hi)

	empty := &DepthMap{Width: 1, Height: 1, Values: []float32{float32(math.NaN())}}
	_, _, ok = empty.Range()
	require.False(t, ok)
}

func TestSegmentationMapFraction(t *testing.T) {
	s := &SegmentationMap{Width: 2, Height: 2, ClassCount: 35, Classes: []uint8{ClassRoad, ClassRoad, ClassCar, 0}}
	require.InDelta(t, 0.5, s.Fraction(ClassRoad), 1e-12)
	require.InDelta(t, 0.25, s.Fraction(ClassCar), 1e-12)
	require.Equal(t, uint8(0), s.At(1, 1))
}

func TestCheckpointLookup(t *testing.T) {
	c := &Checkpoint{Tensors: []NamedTensor{{Name: "a", Values: []float64{1}}}}
	got, ok := c.Lookup("a")
	require.True(t, ok)
	require.Equal(t, []float64{1}, got.Values)
	_, ok = c.Lookup("b")
	require.False(t, ok)
}
