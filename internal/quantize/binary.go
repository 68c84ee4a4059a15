package quantize

import "math/bits"

// Binary encodes each dimension by its sign bit after the collection's
// mean has been subtracted: cheapest and lossiest of the three codecs.
// Distance between codes is population count of XOR, divided by dimension.
type Binary struct {
	Dimension int
	Mean      []float32
	fitted    bool
}

// NewBinary creates a binary codec for the given dimension.
func NewBinary(dimension int) *Binary {
	return &Binary{
		Dimension: dimension,
		Mean:      make([]float32, dimension),
	}
}

func (b *Binary) Fitted() bool  { return b.fitted }
func (b *Binary) CodeSize() int { return (b.Dimension + 7) / 8 }

// MarkFitted sets the fitted flag directly; used when restoring a codec
// whose Mean was already populated by a snapshot loader rather than Fit.
func (b *Binary) MarkFitted() { b.fitted = true }

// Fit computes the per-dimension mean used as the sign threshold.
func (b *Binary) Fit(samples [][]float32) error {
	if len(samples) == 0 {
		return ErrNotFitted
	}
	if len(samples) > MaxTrainingSample {
		samples = samples[:MaxTrainingSample]
	}

	sums := make([]float32, b.Dimension)
	for _, v := range samples {
		if len(v) != b.Dimension {
			return ErrDimensionMismatch
		}
		for d := 0; d < b.Dimension; d++ {
			sums[d] += v[d]
		}
	}
	for d := 0; d < b.Dimension; d++ {
		b.Mean[d] = sums[d] / float32(len(samples))
	}

	b.fitted = true
	return nil
}

// Encode sets one bit per dimension: 1 if v[d] > mean[d], else 0.
func (b *Binary) Encode(v []float32) ([]byte, error) {
	if !b.fitted {
		return nil, ErrNotFitted
	}
	if len(v) != b.Dimension {
		return nil, ErrDimensionMismatch
	}

	code := make([]byte, b.CodeSize())
	for d := 0; d < b.Dimension; d++ {
		if v[d] > b.Mean[d] {
			code[d/8] |= 1 << uint(d%8)
		}
	}
	return code, nil
}

// Decode reconstructs an approximate vector using mean +/- 0.5 per the
// sign of each bit; only useful for display, not for ranking.
func (b *Binary) Decode(code []byte) ([]float32, error) {
	if !b.fitted {
		return nil, ErrNotFitted
	}
	if len(code) != b.CodeSize() {
		return nil, ErrDimensionMismatch
	}

	v := make([]float32, b.Dimension)
	for d := 0; d < b.Dimension; d++ {
		set := code[d/8]&(1<<uint(d%8)) != 0
		if set {
			v[d] = b.Mean[d] + 0.5
		} else {
			v[d] = b.Mean[d] - 0.5
		}
	}
	return v, nil
}

// DistanceToQuery encodes query with the same threshold and returns the
// Hamming distance between the two codes, normalized by dimension.
func (b *Binary) DistanceToQuery(query []float32, code []byte) (float32, error) {
	if !b.fitted {
		return 0, ErrNotFitted
	}
	queryCode, err := b.Encode(query)
	if err != nil {
		return 0, err
	}
	if len(code) != len(queryCode) {
		return 0, ErrDimensionMismatch
	}

	return float32(HammingDistance(queryCode, code)) / float32(b.Dimension), nil
}

// HammingDistance returns the number of differing bits between two
// equal-length byte slices.
func HammingDistance(a, b []byte) int {
	dist := 0
	for i := range a {
		dist += bits.OnesCount8(a[i] ^ b[i])
	}
	return dist
}
