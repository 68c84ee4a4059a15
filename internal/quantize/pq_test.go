package quantize

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pqTrainingSet(n, dim int) [][]float32 {
	samples := make([][]float32, n)
	for i := range samples {
		v := make([]float32, dim)
		for d := range v {
			v[d] = rand.Float32()*2 - 1
		}
		samples[i] = v
	}
	return samples
}

func TestNewPQ_RejectsIndivisibleDimension(t *testing.T) {
	_, err := NewPQ(10, 3, 4)
	assert.Error(t, err)
}

func TestNewPQ_RejectsTooManyCentroids(t *testing.T) {
	_, err := NewPQ(8, 2, 300)
	assert.Error(t, err)
}

func TestPQ_FitEncodeDecode(t *testing.T) {
	pq, err := NewPQ(8, 2, 4)
	require.NoError(t, err)

	samples := pqTrainingSet(200, 8)
	require.NoError(t, pq.Fit(samples))
	assert.True(t, pq.Fitted())

	v := samples[0]
	code, err := pq.Encode(v)
	require.NoError(t, err)
	assert.Len(t, code, 2)

	decoded, err := pq.Decode(code)
	require.NoError(t, err)
	assert.Len(t, decoded, 8)
}

func TestPQ_EncodeBeforeFit_ReturnsError(t *testing.T) {
	pq, err := NewPQ(8, 2, 4)
	require.NoError(t, err)

	_, err = pq.Encode(make([]float32, 8))
	assert.ErrorIs(t, err, ErrNotFitted)
}

func TestPQ_DistanceToQuery_PreservesOrdering(t *testing.T) {
	pq, err := NewPQ(4, 2, 4)
	require.NoError(t, err)

	samples := [][]float32{
		{1, 1, 1, 1},
		{1, 1, 1, 1},
		{1, 1, 1, 1},
		{-1, -1, -1, -1},
		{-1, -1, -1, -1},
		{-1, -1, -1, -1},
	}
	require.NoError(t, pq.Fit(samples))

	codeNear, err := pq.Encode([]float32{0.9, 0.9, 0.9, 0.9})
	require.NoError(t, err)
	codeFar, err := pq.Encode([]float32{-0.9, -0.9, -0.9, -0.9})
	require.NoError(t, err)

	query := []float32{1, 1, 1, 1}
	distNear, err := pq.DistanceToQuery(query, codeNear)
	require.NoError(t, err)
	distFar, err := pq.DistanceToQuery(query, codeFar)
	require.NoError(t, err)

	assert.Less(t, distNear, distFar)
}

func TestPQ_Fit_TooFewSamples_ReturnsError(t *testing.T) {
	pq, err := NewPQ(4, 2, 8)
	require.NoError(t, err)

	err = pq.Fit([][]float32{{1, 1, 1, 1}})
	assert.Error(t, err)
}

func TestPQ_DegenerateCluster_IsSplitNotLeftEmpty(t *testing.T) {
	pq, err := NewPQ(2, 1, 4)
	require.NoError(t, err)

	// All samples identical: k-means++ will struggle to separate 4
	// distinct clusters from a single point, exercising the degenerate
	// centroid path.
	samples := make([][]float32, 10)
	for i := range samples {
		samples[i] = []float32{1, 1}
	}
	require.NoError(t, pq.Fit(samples))

	for _, codebook := range pq.Codebooks {
		assert.Len(t, codebook, 4)
	}
}
