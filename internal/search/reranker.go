package search

import "context"

// RerankCandidate is one item offered to a Reranker's second pass.
type RerankCandidate struct {
	ID    string
	Text  string
	Score float64
}

// Reranker is an optional second-pass scorer applied to the top-N of a
// result list (spec.md §4.10). Implementations are treated as black
// boxes over (query, document) pairs — e.g. a cross-encoder call to an
// external inference server — so cross-encoders jointly encoding
// query-document pairs fit behind this interface exactly as they did in
// the teacher's cross-encoder reranker.
type Reranker interface {
	Rerank(ctx context.Context, query string, candidates []RerankCandidate) ([]RerankCandidate, error)
}

// NoOpReranker returns candidates unchanged. Used when reranking is
// disabled or unavailable.
type NoOpReranker struct{}

func (NoOpReranker) Rerank(_ context.Context, _ string, candidates []RerankCandidate) ([]RerankCandidate, error) {
	return candidates, nil
}

var _ Reranker = NoOpReranker{}

// ApplyReranker runs r over candidates and returns its reordering. A nil
// Reranker, or one that errors, falls back to the original ordering —
// per spec.md §4.11's graceful stage-failure rule: "a failing reranker
// falls back to raw similarity."
func ApplyReranker(ctx context.Context, r Reranker, query string, candidates []RerankCandidate) []RerankCandidate {
	if r == nil {
		return candidates
	}
	reranked, err := r.Rerank(ctx, query, candidates)
	if err != nil {
		return candidates
	}
	return reranked
}
