package quantize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sq8Samples() [][]float32 {
	return [][]float32{
		{0, 0, 0},
		{1, 1, 1},
		{0.5, 0.5, 0.5},
		{-1, -1, -1},
	}
}

func TestSQ8_EncodeBeforeFit_ReturnsError(t *testing.T) {
	s := NewSQ8(3)
	_, err := s.Encode([]float32{0, 0, 0})
	assert.ErrorIs(t, err, ErrNotFitted)
}

func TestSQ8_FitEncodeDecode_RoundTripsApproximately(t *testing.T) {
	s := NewSQ8(3)
	require.NoError(t, s.Fit(sq8Samples()))
	assert.True(t, s.Fitted())

	v := []float32{0.5, 0.5, 0.5}
	code, err := s.Encode(v)
	require.NoError(t, err)
	assert.Len(t, code, 3)

	decoded, err := s.Decode(code)
	require.NoError(t, err)
	for i := range v {
		assert.InDelta(t, v[i], decoded[i], 0.05)
	}
}

func TestSQ8_DimensionMismatch_ReturnsError(t *testing.T) {
	s := NewSQ8(3)
	require.NoError(t, s.Fit(sq8Samples()))

	_, err := s.Encode([]float32{1, 2})
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestSQ8_DistanceToQuery_PreservesOrdering(t *testing.T) {
	s := NewSQ8(3)
	require.NoError(t, s.Fit(sq8Samples()))

	a := []float32{1, 1, 1}
	b := []float32{-1, -1, -1}
	codeA, err := s.Encode(a)
	require.NoError(t, err)
	codeB, err := s.Encode(b)
	require.NoError(t, err)

	query := []float32{0.9, 0.9, 0.9}
	distA, err := s.DistanceToQuery(query, codeA)
	require.NoError(t, err)
	distB, err := s.DistanceToQuery(query, codeB)
	require.NoError(t, err)

	assert.Less(t, distA, distB)
}
