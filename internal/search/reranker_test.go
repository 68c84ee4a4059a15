package search

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type reverseReranker struct{}

func (reverseReranker) Rerank(_ context.Context, _ string, candidates []RerankCandidate) ([]RerankCandidate, error) {
	out := make([]RerankCandidate, len(candidates))
	for i, c := range candidates {
		out[len(candidates)-1-i] = c
	}
	return out, nil
}

type failingReranker struct{}

func (failingReranker) Rerank(_ context.Context, _ string, _ []RerankCandidate) ([]RerankCandidate, error) {
	return nil, errors.New("reranker unavailable")
}

func TestNoOpRerankerReturnsCandidatesUnchanged(t *testing.T) {
	candidates := []RerankCandidate{{ID: "a"}, {ID: "b"}}
	got, err := NoOpReranker{}.Rerank(context.Background(), "q", candidates)
	assert.NoError(t, err)
	assert.Equal(t, candidates, got)
}

func TestApplyRerankerNilFallsBackToOriginalOrder(t *testing.T) {
	candidates := []RerankCandidate{{ID: "a"}, {ID: "b"}}
	got := ApplyReranker(context.Background(), nil, "q", candidates)
	assert.Equal(t, candidates, got)
}

func TestApplyRerankerAppliesSuccessfulReordering(t *testing.T) {
	candidates := []RerankCandidate{{ID: "a"}, {ID: "b"}, {ID: "c"}}
	got := ApplyReranker(context.Background(), reverseReranker{}, "q", candidates)
	assert.Equal(t, []RerankCandidate{{ID: "c"}, {ID: "b"}, {ID: "a"}}, got)
}

func TestApplyRerankerFallsBackToRawSimilarityOnFailure(t *testing.T) {
	candidates := []RerankCandidate{{ID: "a", Score: 0.9}, {ID: "b", Score: 0.5}}
	got := ApplyReranker(context.Background(), failingReranker{}, "q", candidates)
	assert.Equal(t, candidates, got)
}
