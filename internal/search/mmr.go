package search

import "math"

// DefaultMMRLambda is the default relevance/diversity tradeoff (spec.md §4.10).
const DefaultMMRLambda = 0.7

// MMRCandidate is one item eligible for MMR selection.
type MMRCandidate struct {
	ID        string
	Relevance float64
	Vector    []float32
}

// SimilarityFunc scores how similar two vectors are, higher = more similar.
type SimilarityFunc func(a, b []float32) float64

// MMRSelect greedily selects up to k candidates maximizing
// lambda*relevance - (1-lambda)*max_similarity_to_selected (spec.md §4.10).
// candidates should already be sorted by relevance; ties in the greedy
// score are broken by input order for determinism.
func MMRSelect(candidates []MMRCandidate, lambda float64, k int, sim SimilarityFunc) []MMRCandidate {
	if k <= 0 || k > len(candidates) {
		k = len(candidates)
	}

	remaining := append([]MMRCandidate(nil), candidates...)
	selected := make([]MMRCandidate, 0, k)

	for len(selected) < k && len(remaining) > 0 {
		bestIdx := 0
		bestScore := math.Inf(-1)
		for i, c := range remaining {
			maxSim := 0.0
			for _, s := range selected {
				if v := sim(c.Vector, s.Vector); v > maxSim {
					maxSim = v
				}
			}
			score := lambda*c.Relevance - (1-lambda)*maxSim
			if score > bestScore {
				bestScore = score
				bestIdx = i
			}
		}
		selected = append(selected, remaining[bestIdx])
		remaining = append(remaining[:bestIdx], remaining[bestIdx+1:]...)
	}
	return selected
}

// CosineSimilarity is the default MMR similarity kernel over raw
// (non-unit-normalized) vectors.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
