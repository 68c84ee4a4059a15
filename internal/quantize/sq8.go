package quantize

import "github.com/chewxy/math32"

// SQ8 learns a per-dimension [min, max] range and encodes each component
// as an unsigned 8-bit bucket; decode is a simple affine transform.
type SQ8 struct {
	Dimension int
	Min       []float32
	Max       []float32
	fitted    bool
}

// NewSQ8 creates an SQ8 codec for the given dimension.
func NewSQ8(dimension int) *SQ8 {
	return &SQ8{
		Dimension: dimension,
		Min:       make([]float32, dimension),
		Max:       make([]float32, dimension),
	}
}

func (s *SQ8) Fitted() bool  { return s.fitted }
func (s *SQ8) CodeSize() int { return s.Dimension }

// MarkFitted sets the fitted flag directly; used when restoring a codec
// whose Min/Max were already populated by a snapshot loader rather than Fit.
func (s *SQ8) MarkFitted() { s.fitted = true }

// Fit learns min/max per dimension from samples (capped at
// MaxTrainingSample vectors; the collection layer subsamples ahead of
// this call for larger training sets).
func (s *SQ8) Fit(samples [][]float32) error {
	if len(samples) == 0 {
		return ErrNotFitted
	}
	if len(samples) > MaxTrainingSample {
		samples = samples[:MaxTrainingSample]
	}

	for d := 0; d < s.Dimension; d++ {
		s.Min[d] = samples[0][d]
		s.Max[d] = samples[0][d]
	}
	for _, v := range samples {
		if len(v) != s.Dimension {
			return ErrDimensionMismatch
		}
		for d := 0; d < s.Dimension; d++ {
			if v[d] < s.Min[d] {
				s.Min[d] = v[d]
			}
			if v[d] > s.Max[d] {
				s.Max[d] = v[d]
			}
		}
	}
	// Avoid division by zero for constant dimensions.
	for d := 0; d < s.Dimension; d++ {
		if s.Max[d] == s.Min[d] {
			s.Max[d] += 1e-6
		}
	}

	s.fitted = true
	return nil
}

// Encode quantizes v to one byte per dimension.
func (s *SQ8) Encode(v []float32) ([]byte, error) {
	if !s.fitted {
		return nil, ErrNotFitted
	}
	if len(v) != s.Dimension {
		return nil, ErrDimensionMismatch
	}

	code := make([]byte, s.Dimension)
	for d := 0; d < s.Dimension; d++ {
		code[d] = s.quantizeDim(d, v[d])
	}
	return code, nil
}

func (s *SQ8) quantizeDim(d int, val float32) byte {
	norm := (val - s.Min[d]) / (s.Max[d] - s.Min[d])
	if norm < 0 {
		norm = 0
	} else if norm > 1 {
		norm = 1
	}
	return byte(norm*255.0 + 0.5)
}

// Decode reconstructs an approximate vector via the affine inverse.
func (s *SQ8) Decode(code []byte) ([]float32, error) {
	if !s.fitted {
		return nil, ErrNotFitted
	}
	if len(code) != s.Dimension {
		return nil, ErrDimensionMismatch
	}

	v := make([]float32, s.Dimension)
	for d := 0; d < s.Dimension; d++ {
		norm := float32(code[d]) / 255.0
		v[d] = norm*(s.Max[d]-s.Min[d]) + s.Min[d]
	}
	return v, nil
}

// DistanceToQuery computes the Euclidean distance between query and
// the decoded reconstruction of code. SQ8's affine decode is cheap enough
// that a lookup-free reconstruction is used rather than a precomputed
// per-query table.
func (s *SQ8) DistanceToQuery(query []float32, code []byte) (float32, error) {
	if !s.fitted {
		return 0, ErrNotFitted
	}
	if len(query) != s.Dimension || len(code) != s.Dimension {
		return 0, ErrDimensionMismatch
	}

	var sum float32
	for d := 0; d < s.Dimension; d++ {
		norm := float32(code[d]) / 255.0
		recon := norm*(s.Max[d]-s.Min[d]) + s.Min[d]
		diff := query[d] - recon
		sum += diff * diff
	}
	return math32.Sqrt(sum), nil
}
