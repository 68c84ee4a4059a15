package quantize

import (
	"fmt"
	"math/rand"

	"github.com/chewxy/math32"
)

// maxKMeansIterations caps Lloyd's algorithm per the codec's declared
// quality/latency budget; fitting is a one-time cost but must still
// terminate within a bounded wall-clock window.
const maxKMeansIterations = 25

// PQ partitions each vector into M equal-length subvectors and learns K
// centroids per subquantizer via k-means (k-means++ initialization, Lloyd
// iterations capped at maxKMeansIterations). Encoding stores one centroid
// index per subquantizer; decoding concatenates the chosen centroids.
type PQ struct {
	Dimension     int
	M             int // number of subquantizers
	K             int // centroids per subquantizer
	SubDim        int // Dimension / M
	Codebooks     [][][]float32
	fitted        bool
	// DegenerateSubquantizers records subquantizer indices where Fit had
	// to split a collapsed centroid; surfaced to the caller as a
	// non-fatal diagnostic.
	DegenerateSubquantizers []int
}

// NewPQ creates a PQ codec. dimension must be evenly divisible by m, and
// k (centroids) must fit in a single byte.
func NewPQ(dimension, m, k int) (*PQ, error) {
	if dimension%m != 0 {
		return nil, fmt.Errorf("dimension %d must be divisible by m %d", dimension, m)
	}
	if k <= 0 || k > 256 {
		return nil, fmt.Errorf("centroids k must be in (0, 256], got %d", k)
	}
	return &PQ{
		Dimension: dimension,
		M:         m,
		K:         k,
		SubDim:    dimension / m,
		Codebooks: make([][][]float32, m),
	}, nil
}

func (pq *PQ) Fitted() bool  { return pq.fitted }
func (pq *PQ) CodeSize() int { return pq.M }

// MarkFitted sets the fitted flag directly; used when restoring a codec
// whose Codebooks were already populated by a snapshot loader rather than Fit.
func (pq *PQ) MarkFitted() { pq.fitted = true }

// Fit trains each subquantizer's codebook independently via k-means.
func (pq *PQ) Fit(samples [][]float32) error {
	if len(samples) < pq.K {
		return fmt.Errorf("need at least %d training vectors, got %d", pq.K, len(samples))
	}
	if len(samples) > MaxTrainingSample {
		samples = samples[:MaxTrainingSample]
	}

	pq.DegenerateSubquantizers = nil
	for m := 0; m < pq.M; m++ {
		start := m * pq.SubDim
		end := start + pq.SubDim

		subvectors := make([][]float32, len(samples))
		for i, v := range samples {
			if len(v) != pq.Dimension {
				return ErrDimensionMismatch
			}
			subvectors[i] = v[start:end]
		}

		centroids, degenerate := kMeansPlusPlus(subvectors, pq.K, maxKMeansIterations)
		pq.Codebooks[m] = centroids
		if degenerate {
			pq.DegenerateSubquantizers = append(pq.DegenerateSubquantizers, m)
		}
	}

	pq.fitted = true
	return nil
}

// Encode assigns each subvector to its nearest centroid.
func (pq *PQ) Encode(v []float32) ([]byte, error) {
	if !pq.fitted {
		return nil, ErrNotFitted
	}
	if len(v) != pq.Dimension {
		return nil, ErrDimensionMismatch
	}

	codes := make([]byte, pq.M)
	for m := 0; m < pq.M; m++ {
		start := m * pq.SubDim
		sub := v[start : start+pq.SubDim]
		codes[m] = byte(nearestCentroid(sub, pq.Codebooks[m]))
	}
	return codes, nil
}

// Decode reconstructs a vector by concatenating the chosen centroids.
func (pq *PQ) Decode(codes []byte) ([]float32, error) {
	if !pq.fitted {
		return nil, ErrNotFitted
	}
	if len(codes) != pq.M {
		return nil, ErrDimensionMismatch
	}

	v := make([]float32, pq.Dimension)
	for m := 0; m < pq.M; m++ {
		idx := int(codes[m])
		if idx >= pq.K {
			return nil, fmt.Errorf("invalid code %d for subquantizer %d", idx, m)
		}
		copy(v[m*pq.SubDim:(m+1)*pq.SubDim], pq.Codebooks[m][idx])
	}
	return v, nil
}

// DistanceToQuery computes the asymmetric distance between a full-precision
// query and a code: a per-query distance table of shape M x K is built
// once, then the per-subquantizer entries named by code are summed.
func (pq *PQ) DistanceToQuery(query []float32, code []byte) (float32, error) {
	if !pq.fitted {
		return 0, ErrNotFitted
	}
	if len(query) != pq.Dimension || len(code) != pq.M {
		return 0, ErrDimensionMismatch
	}

	table := pq.DistanceTable(query)
	var total float32
	for m := 0; m < pq.M; m++ {
		total += table[m][code[m]]
	}
	return total, nil
}

// DistanceTable precomputes the squared distance from each subvector of
// query to every centroid in the corresponding subquantizer's codebook.
func (pq *PQ) DistanceTable(query []float32) [][]float32 {
	table := make([][]float32, pq.M)
	for m := 0; m < pq.M; m++ {
		start := m * pq.SubDim
		subquery := query[start : start+pq.SubDim]

		table[m] = make([]float32, pq.K)
		for k := 0; k < pq.K; k++ {
			table[m][k] = squaredEuclidean(subquery, pq.Codebooks[m][k])
		}
	}
	return table
}

func squaredEuclidean(a, b []float32) float32 {
	var sum float32
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

func nearestCentroid(v []float32, centroids [][]float32) int {
	best := 0
	bestDist := squaredEuclidean(v, centroids[0])
	for i := 1; i < len(centroids); i++ {
		d := squaredEuclidean(v, centroids[i])
		if d < bestDist {
			bestDist = d
			best = i
		}
	}
	return best
}

// kMeansPlusPlus clusters vectors into k centroids using k-means++
// seeding followed by Lloyd iterations, capped at maxIters. It reports
// whether any centroid collapsed to fewer than 2 assigned points
// and had to be re-seeded by splitting the largest cluster.
func kMeansPlusPlus(vectors [][]float32, k, maxIters int) (centroids [][]float32, degenerate bool) {
	dim := len(vectors[0])
	centroids = seedKMeansPlusPlus(vectors, k)
	assignments := make([]int, len(vectors))

	for iter := 0; iter < maxIters; iter++ {
		changed := false
		for i, v := range vectors {
			idx := nearestCentroid(v, centroids)
			if assignments[i] != idx {
				assignments[i] = idx
				changed = true
			}
		}

		counts := make([]int, k)
		sums := make([][]float32, k)
		for i := range sums {
			sums[i] = make([]float32, dim)
		}
		for i, v := range vectors {
			c := assignments[i]
			counts[c]++
			for d := 0; d < dim; d++ {
				sums[c][d] += v[d]
			}
		}

		for c := 0; c < k; c++ {
			if counts[c] == 0 {
				continue
			}
			for d := 0; d < dim; d++ {
				centroids[c][d] = sums[c][d] / float32(counts[c])
			}
		}

		if !changed && iter > 0 {
			break
		}
	}

	// Degenerate-centroid handling: any cluster with fewer than 2 members
	// is reseeded by splitting the largest cluster's centroid with a
	// small perturbation.
	counts := make([]int, k)
	for _, a := range assignments {
		counts[a]++
	}
	for c := 0; c < k; c++ {
		if counts[c] >= 2 {
			continue
		}
		degenerate = true
		largest := 0
		for i := 1; i < k; i++ {
			if counts[i] > counts[largest] {
				largest = i
			}
		}
		centroids[c] = perturb(centroids[largest], dim)
	}

	return centroids, degenerate
}

// seedKMeansPlusPlus picks the first centroid uniformly at random, then
// each subsequent centroid with probability proportional to its squared
// distance from the nearest already-chosen centroid.
func seedKMeansPlusPlus(vectors [][]float32, k int) [][]float32 {
	dim := len(vectors[0])
	centroids := make([][]float32, 0, k)

	first := vectors[rand.Intn(len(vectors))]
	centroids = append(centroids, cloneVec(first))

	distSq := make([]float32, len(vectors))
	for len(centroids) < k {
		var total float32
		for i, v := range vectors {
			d := squaredEuclidean(v, centroids[len(centroids)-1])
			if len(centroids) == 1 || d < distSq[i] {
				distSq[i] = d
			}
			total += distSq[i]
		}

		if total == 0 {
			// All remaining points coincide with chosen centroids; pick
			// arbitrarily to fill out k.
			centroids = append(centroids, cloneVec(vectors[rand.Intn(len(vectors))]))
			continue
		}

		target := rand.Float32() * total
		var cum float32
		chosen := len(vectors) - 1
		for i, d := range distSq {
			cum += d
			if cum >= target {
				chosen = i
				break
			}
		}
		centroids = append(centroids, cloneVec(vectors[chosen]))
	}

	_ = dim
	return centroids
}

func cloneVec(v []float32) []float32 {
	out := make([]float32, len(v))
	copy(out, v)
	return out
}

// perturb returns a copy of v nudged by a small random offset per
// dimension, used to re-seed a degenerate centroid away from its source.
func perturb(v []float32, dim int) []float32 {
	out := make([]float32, dim)
	for i := 0; i < dim; i++ {
		out[i] = v[i] + (rand.Float32()-0.5)*1e-3*math32.Max(math32.Abs(v[i]), 1)
	}
	return out
}
