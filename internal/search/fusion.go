// Package search implements C11: hybrid dense+sparse fusion,
// multi-collection scatter/gather, MMR diversification, and reranking
// hooks — composed on top of C5's per-collection Search/SearchText.
package search

import "sort"

// DefaultRRFConstant is the standard RRF smoothing parameter (k0 = 60,
// per spec.md §4.10 — the same constant used by Azure AI Search,
// OpenSearch, etc.).
const DefaultRRFConstant = 60

// DefaultAlpha is the default weight given to the dense list in
// linear/alpha-blend fusion.
const DefaultAlpha = 0.7

// Algorithm selects a hybrid fusion mode.
type Algorithm string

const (
	AlgorithmRRF    Algorithm = "rrf"
	AlgorithmLinear Algorithm = "linear"
	AlgorithmAlpha  Algorithm = "alpha"
)

// FusionConfig configures Fuse.
type FusionConfig struct {
	Algorithm   Algorithm
	Alpha       float64 // dense weight, linear/alpha modes only
	RRFConstant int     // k0, rrf mode only
}

// ScoredID is one ranked hit from a single-modality search (dense or
// sparse), in the order that search returned it — rank is implicit in
// position, 0-indexed.
type ScoredID struct {
	ID    string
	Score float64
}

// FusedResult is one hybrid-fused hit.
type FusedResult struct {
	ID          string
	Score       float64
	DenseRank   int // 1-indexed, 0 if absent from the dense list
	DenseScore  float64
	SparseRank  int // 1-indexed, 0 if absent from the sparse list
	SparseScore float64
	InBothLists bool
}

// Fuse combines a dense and a sparse ranked list per spec.md §4.10's
// three fusion modes.
func Fuse(dense, sparse []ScoredID, cfg FusionConfig) []FusedResult {
	if cfg.RRFConstant <= 0 {
		cfg.RRFConstant = DefaultRRFConstant
	}
	if cfg.Alpha == 0 {
		cfg.Alpha = DefaultAlpha
	}
	switch cfg.Algorithm {
	case AlgorithmLinear:
		return fuseLinear(dense, sparse, cfg.Alpha)
	case AlgorithmAlpha:
		return fuseAlphaBlend(dense, sparse, cfg.Alpha)
	default:
		return fuseRRF(dense, sparse, cfg.RRFConstant)
	}
}

func buildBase(dense, sparse []ScoredID) map[string]*FusedResult {
	base := make(map[string]*FusedResult, len(dense)+len(sparse))
	for rank, r := range dense {
		res := getOrCreate(base, r.ID)
		res.DenseRank = rank + 1
		res.DenseScore = r.Score
	}
	for rank, r := range sparse {
		res := getOrCreate(base, r.ID)
		res.SparseRank = rank + 1
		res.SparseScore = r.Score
		if res.DenseRank > 0 {
			res.InBothLists = true
		}
	}
	return base
}

func getOrCreate(m map[string]*FusedResult, id string) *FusedResult {
	if r, ok := m[id]; ok {
		return r
	}
	r := &FusedResult{ID: id}
	m[id] = r
	return r
}

// fuseRRF implements score(d) = Σ 1/(k0 + rank_i), missing-list
// contributions use rank = max(len(dense), len(sparse)) + 1.
func fuseRRF(dense, sparse []ScoredID, k int) []FusedResult {
	base := buildBase(dense, sparse)
	missingRank := len(dense)
	if len(sparse) > missingRank {
		missingRank = len(sparse)
	}
	missingRank++

	for _, r := range base {
		denseRank := r.DenseRank
		if denseRank == 0 {
			denseRank = missingRank
		}
		sparseRank := r.SparseRank
		if sparseRank == 0 {
			sparseRank = missingRank
		}
		r.Score = 1/float64(k+denseRank) + 1/float64(k+sparseRank)
	}
	return sortedFused(base)
}

// fuseLinear min-max normalizes each list independently, then combines
// with score = alpha*dense_norm + (1-alpha)*sparse_norm. Absence from a
// list contributes 0 to that list's term.
func fuseLinear(dense, sparse []ScoredID, alpha float64) []FusedResult {
	denseNorm := minMaxNormalize(dense)
	sparseNorm := minMaxNormalize(sparse)

	base := buildBase(dense, sparse)
	for _, r := range base {
		d := denseNorm[r.ID] // zero value if absent
		s := sparseNorm[r.ID]
		r.Score = alpha*d + (1-alpha)*s
	}
	return sortedFused(base)
}

// fuseAlphaBlend behaves like fuseLinear (a hit missing from one list
// contributes 0 for that list, the floor of min-max normalization) except
// that a hit present in both lists receives a +0.01 agreement bonus.
func fuseAlphaBlend(dense, sparse []ScoredID, alpha float64) []FusedResult {
	denseNorm := minMaxNormalize(dense)
	sparseNorm := minMaxNormalize(sparse)

	base := buildBase(dense, sparse)
	for _, r := range base {
		d, dok := denseNorm[r.ID]
		s, sok := sparseNorm[r.ID]
		if !dok {
			d = 0
		}
		if !sok {
			s = 0
		}
		r.Score = alpha*d + (1-alpha)*s
		if r.InBothLists {
			// Reward agreement between both modalities slightly, since
			// alpha-blending (unlike linear fusion) is meant to reflect
			// cross-modal confidence, not just a weighted average.
			r.Score += 0.01
		}
	}
	return sortedFused(base)
}

func minMaxNormalize(list []ScoredID) map[string]float64 {
	out := make(map[string]float64, len(list))
	if len(list) == 0 {
		return out
	}
	min, max := list[0].Score, list[0].Score
	for _, r := range list {
		if r.Score < min {
			min = r.Score
		}
		if r.Score > max {
			max = r.Score
		}
	}
	span := max - min
	for _, r := range list {
		if span == 0 {
			out[r.ID] = 1
			continue
		}
		out[r.ID] = (r.Score - min) / span
	}
	return out
}

func sortedFused(base map[string]*FusedResult) []FusedResult {
	results := make([]FusedResult, 0, len(base))
	for _, r := range base {
		results = append(results, *r)
	}
	sort.Slice(results, func(i, j int) bool { return compareFused(results[i], results[j]) })
	return results
}

// compareFused sorts by score desc, then both-lists membership, then
// dense score, then id — deterministic under ties (spec.md §4.3).
func compareFused(a, b FusedResult) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	if a.InBothLists != b.InBothLists {
		return a.InBothLists
	}
	if a.DenseScore != b.DenseScore {
		return a.DenseScore > b.DenseScore
	}
	return a.ID < b.ID
}
