package quantize

import (
	"fmt"

	"github.com/vecdbhq/vecdb/internal/vector"
)

// New constructs the Codec named by policy for the given dimension.
// QuantizationNone has no codec and returns (nil, nil).
func New(dimension int, policy vector.QuantizationPolicy) (Codec, error) {
	switch policy.Kind {
	case vector.QuantizationNone, "":
		return nil, nil
	case vector.QuantizationSQ8:
		return NewSQ8(dimension), nil
	case vector.QuantizationPQ:
		m, k := policy.Subquantizers, policy.Centroids
		if m == 0 {
			m = 8
		}
		if k == 0 {
			k = 256
		}
		return NewPQ(dimension, m, k)
	case vector.QuantizationBinary:
		return NewBinary(dimension), nil
	default:
		return nil, fmt.Errorf("unknown quantization policy %q", policy.Kind)
	}
}
