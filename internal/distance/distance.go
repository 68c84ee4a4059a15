// Package distance implements the dense-vector distance kernels a
// collection's metric selects, plus score conversion for result ranking.
package distance

import (
	"github.com/chewxy/math32"

	"github.com/vecdbhq/vecdb/internal/vector"
)

// Func computes the distance between two equal-length float32 vectors.
// Smaller is closer; callers must not assume a fixed range across metrics.
type Func func(a, b []float32) float32

// ForMetric returns the distance kernel for m. Callers should validate m
// with Metric.IsValid before calling; an unknown metric falls back to
// cosine distance.
func ForMetric(m vector.Metric) Func {
	switch m {
	case vector.MetricEuclidean:
		return Euclidean
	case vector.MetricDot:
		return NegDot
	default:
		return Cosine
	}
}

// Cosine returns the cosine distance: 1 - cos_similarity(a, b), ranging
// 0 (identical direction) to 2 (opposite direction).
func Cosine(a, b []float32) float32 {
	var dot, magA, magB float32
	for i := range a {
		dot += a[i] * b[i]
		magA += a[i] * a[i]
		magB += b[i] * b[i]
	}
	if magA == 0 || magB == 0 {
		return 1
	}
	sim := dot / (math32.Sqrt(magA) * math32.Sqrt(magB))
	return 1 - sim
}

// Euclidean returns the L2 distance between a and b: sqrt(Σ(aᵢ-bᵢ)²).
func Euclidean(a, b []float32) float32 {
	var sum float32
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math32.Sqrt(sum)
}

// NegDot returns the negated dot product so that, like the other kernels,
// smaller means closer (dot-product "distance" is a similarity that
// increases with closeness, so it must be negated to sort the same way).
func NegDot(a, b []float32) float32 {
	var dot float32
	for i := range a {
		dot += a[i] * b[i]
	}
	return -dot
}

// Normalize scales v in place to unit length under the Euclidean norm.
// A zero vector is left unchanged.
func Normalize(v []float32) {
	var sumSquares float32
	for _, f := range v {
		sumSquares += f * f
	}
	if sumSquares == 0 {
		return
	}
	inv := 1.0 / math32.Sqrt(sumSquares)
	for i := range v {
		v[i] *= inv
	}
}

// ToScore converts a raw distance value into a similarity score in
// roughly [0, 1] for display and for fusion with sparse-search scores.
func ToScore(d float32, m vector.Metric) float32 {
	switch m {
	case vector.MetricEuclidean:
		return 1.0 / (1.0 + d)
	case vector.MetricDot:
		return -d
	default:
		return 1.0 - d/2.0
	}
}
