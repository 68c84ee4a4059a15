// Package search implements C11: hybrid dense+sparse fusion, MMR
// diversification, reranking hooks, and multi-collection scatter/gather
// composed on top of C5's per-collection Search/SearchText.
package search

// Options configures a hybrid/multi-collection search request.
type Options struct {
	// K is the number of results to return after fusion/diversification.
	K int
	// Ef overrides the HNSW search-time candidate list size; 0 uses the
	// collection's configured default.
	Ef int
	// Fusion configures how dense and sparse ranked lists are combined.
	Fusion FusionConfig
	// MMRLambda, when > 0, enables MMR diversification of the fused list
	// before it is returned. 0 disables diversification.
	MMRLambda float64
	// Reranker, when non-nil, is applied to the (possibly diversified)
	// top results as an optional second pass (spec.md §4.10/§4.11).
	Reranker Reranker
	// RerankTopN bounds how many of the top fused results are offered to
	// Reranker; 0 means all of them.
	RerankTopN int
}

// Result is one hybrid-search hit, carrying both collection provenance
// (for multi-collection search) and the fusion bookkeeping a caller may
// want to surface (rank in each modality, whether both modalities found
// it).
type Result struct {
	CollectionName string
	ID             string
	Score          float64
	Payload        map[string]any
	DenseRank      int
	DenseScore     float64
	SparseRank     int
	SparseScore    float64
	InBothLists    bool
}
