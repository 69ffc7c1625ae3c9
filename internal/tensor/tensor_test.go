package tensor

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPaste_SmallerSourceKeepsFill(t *testing.T) {
	dst := Full(1, 1, 3, 4, 1)
	src := Full(1, 1, 2, 2, 5)

	require.NoError(t, Paste(dst, src))
	require.Equal(t, 5.0, dst.At(0, 0, 1, 1))
	require.Equal(t, 1.0, dst.At(0, 0, 2, 3))
	require.Equal(t, 1.0, dst.At(0, 0, 0, 2))
}

func TestPaste_LargerSourceIsCropped(t *testing.T) {
	dst := New(1, 2, 2, 2)
	src := Full(1, 2, 5, 5, 3)

	require.NoError(t, Paste(dst, src))
	for _, v := range dst.Data {
		require.Equal(t, 3.0, v)
	}
}

func TestPaste_ChannelMismatch(t *testing.T) {
	err := Paste(New(1, 2, 2, 2), New(1, 3, 2, 2))
	require.ErrorIs(t, err, ErrShape)
}

func TestCrop_PadsWithZeros(t *testing.T) {
	src := Full(1, 1, 2, 2, 7)
	out := Crop(src, 3, 3)
	require.Equal(t, Shape{N: 1, C: 1, H: 3, W: 3}, out.Shape)
	require.Equal(t, 7.0, out.At(0, 0, 1, 1))
	require.Equal(t, 0.0, out.At(0, 0, 2, 2))
}

func TestStack(t *testing.T) {
	a := Full(1, 2, 1, 1, 1)
	b := Full(1, 2, 1, 1, 2)

	out, err := Stack([]*Tensor{a, b})
	require.NoError(t, err)
	require.Equal(t, Shape{N: 2, C: 2, H: 1, W: 1}, out.Shape)
	require.Equal(t, []float64{1, 1, 2, 2}, out.Data)

	_, err = Stack([]*Tensor{a, New(1, 3, 1, 1)})
	require.ErrorIs(t, err, ErrShape)
}
