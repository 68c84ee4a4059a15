package quantize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func binarySamples() [][]float32 {
	return [][]float32{
		{1, -1, 1, -1},
		{2, -2, 2, -2},
		{-1, 1, -1, 1},
		{-2, 2, -2, 2},
	}
}

func TestBinary_EncodeBeforeFit_ReturnsError(t *testing.T) {
	b := NewBinary(4)
	_, err := b.Encode([]float32{1, 1, 1, 1})
	assert.ErrorIs(t, err, ErrNotFitted)
}

func TestBinary_FitEncodeDecode(t *testing.T) {
	b := NewBinary(4)
	require.NoError(t, b.Fit(binarySamples()))
	assert.True(t, b.Fitted())
	assert.Equal(t, 1, b.CodeSize())

	code, err := b.Encode([]float32{1, -1, 1, -1})
	require.NoError(t, err)
	assert.Len(t, code, 1)

	decoded, err := b.Decode(code)
	require.NoError(t, err)
	assert.Len(t, decoded, 4)
}

func TestBinary_DimensionMismatch_ReturnsError(t *testing.T) {
	b := NewBinary(4)
	require.NoError(t, b.Fit(binarySamples()))

	_, err := b.Encode([]float32{1, 1})
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestBinary_DistanceToQuery_PreservesOrdering(t *testing.T) {
	b := NewBinary(4)
	require.NoError(t, b.Fit(binarySamples()))

	near := []float32{1, -1, 1, -1}
	far := []float32{-1, 1, -1, 1}
	codeNear, err := b.Encode(near)
	require.NoError(t, err)
	codeFar, err := b.Encode(far)
	require.NoError(t, err)

	query := []float32{1.5, -1.5, 1.5, -1.5}
	distNear, err := b.DistanceToQuery(query, codeNear)
	require.NoError(t, err)
	distFar, err := b.DistanceToQuery(query, codeFar)
	require.NoError(t, err)

	assert.Less(t, distNear, distFar)
}

func TestHammingDistance_CountsDifferingBits(t *testing.T) {
	a := []byte{0b1010}
	b := []byte{0b0110}
	assert.Equal(t, 2, HammingDistance(a, b))
}

func TestHammingDistance_IdenticalCodes_IsZero(t *testing.T) {
	a := []byte{0b1111, 0b0001}
	assert.Equal(t, 0, HammingDistance(a, a))
}
