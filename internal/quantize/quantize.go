// Package quantize implements the vector quantization codecs a collection
// may apply to trade search fidelity for memory: scalar 8-bit (SQ8),
// product quantization (PQ), and sign-bit binary.
package quantize

import "errors"

// ErrNotFitted is returned by Encode/DistanceToQuery when Fit has not been
// called yet.
var ErrNotFitted = errors.New("quantization codec has not been fitted")

// ErrDimensionMismatch is returned when an input vector's length does not
// match the codec's configured dimension.
var ErrDimensionMismatch = errors.New("vector dimension does not match codec dimension")

// ErrDegenerateCentroid describes a PQ subquantizer whose cluster kept
// fewer than two assigned points during fitting. PQ.Fit does not return it:
// Fit re-seeds such a centroid from the largest cluster, succeeds, and
// lists the subquantizer in PQ.DegenerateSubquantizers.
var ErrDegenerateCentroid = errors.New("product quantization subquantizer collapsed to a degenerate centroid")

// MaxTrainingSample bounds how many vectors Fit will use when the caller
// hands it a larger training set; the collection layer is expected to
// subsample before calling Fit, but codecs enforce the same cap
// defensively.
const MaxTrainingSample = 32768

// Codec is the common interface every quantization scheme implements.
type Codec interface {
	// Fit learns codec parameters (ranges, centroids, thresholds) from a
	// training sample of full-precision vectors.
	Fit(samples [][]float32) error

	// Fitted reports whether Fit has completed successfully.
	Fitted() bool

	// Encode quantizes a full-precision vector into its compact code.
	Encode(v []float32) ([]byte, error)

	// Decode reconstructs an approximate full-precision vector from a code.
	Decode(code []byte) ([]float32, error)

	// DistanceToQuery computes an approximate distance between a
	// full-precision query vector and a stored code, without fully
	// decoding the code where the scheme allows it.
	DistanceToQuery(query []float32, code []byte) (float32, error)

	// CodeSize returns the number of bytes Encode produces.
	CodeSize() int
}
