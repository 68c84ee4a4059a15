package distance

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/vecdbhq/vecdb/internal/vector"
)

func TestCosine_IdenticalVectors_ReturnsZero(t *testing.T) {
	a := []float32{1, 2, 3}
	assert.InDelta(t, 0, Cosine(a, a), 1e-6)
}

func TestCosine_OrthogonalVectors_ReturnsOne(t *testing.T) {
	a := []float32{1, 0}
	b := []float32{0, 1}
	assert.InDelta(t, 1, Cosine(a, b), 1e-6)
}

func TestCosine_OppositeVectors_ReturnsTwo(t *testing.T) {
	a := []float32{1, 0}
	b := []float32{-1, 0}
	assert.InDelta(t, 2, Cosine(a, b), 1e-6)
}

func TestCosine_ZeroVector_ReturnsOne(t *testing.T) {
	a := []float32{0, 0}
	b := []float32{1, 1}
	assert.Equal(t, float32(1), Cosine(a, b))
}

func TestEuclidean_IdenticalVectors_ReturnsZero(t *testing.T) {
	a := []float32{1, 2, 3}
	assert.Equal(t, float32(0), Euclidean(a, a))
}

func TestEuclidean_KnownDistance(t *testing.T) {
	a := []float32{0, 0}
	b := []float32{3, 4}
	assert.Equal(t, float32(5), Euclidean(a, b)) // sqrt(3^2+4^2)
}

func TestNegDot_ClosestHasMostNegativeValue(t *testing.T) {
	a := []float32{1, 1}
	same := []float32{1, 1}
	opposite := []float32{-1, -1}

	assert.Less(t, NegDot(a, same), NegDot(a, opposite))
}

func TestForMetric_SelectsCorrectKernel(t *testing.T) {
	a := []float32{1, 0}
	b := []float32{0, 1}

	assert.Equal(t, Cosine(a, b), ForMetric(vector.MetricCosine)(a, b))
	assert.Equal(t, Euclidean(a, b), ForMetric(vector.MetricEuclidean)(a, b))
	assert.Equal(t, NegDot(a, b), ForMetric(vector.MetricDot)(a, b))
}

func TestNormalize_ScalesToUnitLength(t *testing.T) {
	v := []float32{3, 4}
	Normalize(v)

	var sumSquares float32
	for _, f := range v {
		sumSquares += f * f
	}
	assert.InDelta(t, 1, sumSquares, 1e-5)
}

func TestNormalize_ZeroVector_LeftUnchanged(t *testing.T) {
	v := []float32{0, 0, 0}
	Normalize(v)
	assert.Equal(t, []float32{0, 0, 0}, v)
}

func TestToScore_CosineRange(t *testing.T) {
	assert.InDelta(t, 1.0, ToScore(0, vector.MetricCosine), 1e-6)
	assert.InDelta(t, 0.0, ToScore(2, vector.MetricCosine), 1e-6)
}
