package quantize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vecdbhq/vecdb/internal/vector"
)

func TestNew_NoneReturnsNilCodec(t *testing.T) {
	codec, err := New(8, vector.QuantizationPolicy{Kind: vector.QuantizationNone})
	require.NoError(t, err)
	assert.Nil(t, codec)
}

func TestNew_SQ8ReturnsSQ8Codec(t *testing.T) {
	codec, err := New(8, vector.QuantizationPolicy{Kind: vector.QuantizationSQ8})
	require.NoError(t, err)
	require.NotNil(t, codec)
	_, ok := codec.(*SQ8)
	assert.True(t, ok)
}

func TestNew_PQFillsDefaultSubquantizersAndCentroids(t *testing.T) {
	codec, err := New(16, vector.QuantizationPolicy{Kind: vector.QuantizationPQ})
	require.NoError(t, err)
	pq, ok := codec.(*PQ)
	require.True(t, ok)
	assert.Equal(t, 8, pq.M)
	assert.Equal(t, 256, pq.K)
}

func TestNew_PQHonorsExplicitSubquantizersAndCentroids(t *testing.T) {
	codec, err := New(16, vector.QuantizationPolicy{Kind: vector.QuantizationPQ, Subquantizers: 4, Centroids: 16})
	require.NoError(t, err)
	pq, ok := codec.(*PQ)
	require.True(t, ok)
	assert.Equal(t, 4, pq.M)
	assert.Equal(t, 16, pq.K)
}

func TestNew_BinaryReturnsBinaryCodec(t *testing.T) {
	codec, err := New(8, vector.QuantizationPolicy{Kind: vector.QuantizationBinary})
	require.NoError(t, err)
	_, ok := codec.(*Binary)
	assert.True(t, ok)
}

func TestNew_UnknownPolicy_ReturnsError(t *testing.T) {
	_, err := New(8, vector.QuantizationPolicy{Kind: vector.QuantizationKind("bogus")})
	assert.Error(t, err)
}
