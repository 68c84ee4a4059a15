package search

import (
	"context"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/vecdbhq/vecdb/internal/collection"
)

// Search dispatches a dense query to a single collection (spec.md
// §4.10 "Basic search: dispatch to one collection").
func Search(ctx context.Context, c *collection.Collection, queryText string, k, ef int) ([]Result, error) {
	hits, err := c.SearchText(ctx, queryText, k, ef)
	if err != nil {
		return nil, err
	}
	return fromCollectionResults(c.Name(), hits), nil
}

func fromCollectionResults(collectionName string, hits []collection.SearchResult) []Result {
	out := make([]Result, len(hits))
	for i, h := range hits {
		out[i] = Result{
			CollectionName: collectionName,
			ID:             h.ID,
			Score:          float64(h.Score),
			Payload:        h.Payload,
		}
	}
	return out
}

// MultiCollectionSearch fans out a dense query to every named collection
// in parallel, caps each collection's contribution at maxPerCollection,
// and merges by score. Results are keyed by (collection name, id), so
// identical ids in different collections are kept distinct (spec.md
// §4.10).
func MultiCollectionSearch(ctx context.Context, collections []*collection.Collection, queryText string, maxPerCollection int) ([]Result, error) {
	perCollection := make([][]Result, len(collections))

	g, gctx := errgroup.WithContext(ctx)
	for i, c := range collections {
		i, c := i, c
		g.Go(func() error {
			hits, err := c.SearchText(gctx, queryText, maxPerCollection, 0)
			if err != nil {
				return err
			}
			perCollection[i] = fromCollectionResults(c.Name(), hits)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := make([]Result, 0, len(collections)*maxPerCollection)
	for _, rs := range perCollection {
		merged = append(merged, rs...)
	}
	sort.Slice(merged, func(i, j int) bool {
		if merged[i].Score != merged[j].Score {
			return merged[i].Score > merged[j].Score
		}
		if merged[i].CollectionName != merged[j].CollectionName {
			return merged[i].CollectionName < merged[j].CollectionName
		}
		return merged[i].ID < merged[j].ID
	})
	return merged, nil
}

// HybridSearch combines a dense and a sparse search on the same
// collection, fuses them per opts.Fusion, optionally MMR-diversifies,
// and optionally applies a reranker to the top of the list (spec.md
// §4.10). A collection with no sparse embedder configured degrades to a
// dense-only fused list (every hit's SparseRank stays 0).
func HybridSearch(ctx context.Context, c *collection.Collection, queryText string, opts Options) ([]Result, error) {
	k := opts.K
	if k <= 0 {
		k = 10
	}

	denseHits, err := c.SearchText(ctx, queryText, k, opts.Ef)
	if err != nil {
		return nil, err
	}

	var sparseHits []collection.SearchResult
	if sv, err := c.SparseQuery(ctx, queryText); err == nil && len(sv) > 0 {
		sparseHits = c.SparseSearch(sv, k)
	}

	dense := toScoredIDs(denseHits)
	sparse := toScoredIDs(sparseHits)
	fused := Fuse(dense, sparse, opts.Fusion)

	payloads := make(map[string]map[string]any, len(denseHits)+len(sparseHits))
	for _, h := range denseHits {
		payloads[h.ID] = h.Payload
	}
	for _, h := range sparseHits {
		if _, ok := payloads[h.ID]; !ok {
			payloads[h.ID] = h.Payload
		}
	}

	results := make([]Result, len(fused))
	for i, f := range fused {
		results[i] = Result{
			CollectionName: c.Name(),
			ID:             f.ID,
			Score:          f.Score,
			Payload:        payloads[f.ID],
			DenseRank:      f.DenseRank,
			DenseScore:     f.DenseScore,
			SparseRank:     f.SparseRank,
			SparseScore:    f.SparseScore,
			InBothLists:    f.InBothLists,
		}
	}

	if len(results) > k {
		results = results[:k]
	}

	if opts.MMRLambda > 0 {
		results = diversify(c, results, opts.MMRLambda, k)
	}

	if opts.Reranker != nil {
		results = rerankResults(ctx, opts.Reranker, queryText, results, opts.RerankTopN)
	}

	return results, nil
}

func toScoredIDs(hits []collection.SearchResult) []ScoredID {
	out := make([]ScoredID, len(hits))
	for i, h := range hits {
		out[i] = ScoredID{ID: h.ID, Score: float64(h.Score)}
	}
	return out
}

// diversify runs MMR over results, fetching each candidate's stored
// dense vector from c for the similarity kernel. A vector that can no
// longer be fetched (deleted between search and diversification) is
// treated as the zero vector, which CosineSimilarity scores as
// dissimilar to everything.
func diversify(c *collection.Collection, results []Result, lambda float64, k int) []Result {
	candidates := make([]MMRCandidate, len(results))
	byID := make(map[string]Result, len(results))
	for i, r := range results {
		var values []float32
		if v, err := c.Get(r.ID); err == nil {
			values = v.Values
		}
		candidates[i] = MMRCandidate{ID: r.ID, Relevance: r.Score, Vector: values}
		byID[r.ID] = r
	}

	selected := MMRSelect(candidates, lambda, k, CosineSimilarity)
	out := make([]Result, len(selected))
	for i, sel := range selected {
		out[i] = byID[sel.ID]
	}
	return out
}

func rerankResults(ctx context.Context, r Reranker, query string, results []Result, topN int) []Result {
	n := len(results)
	if topN > 0 && topN < n {
		n = topN
	}
	head := results[:n]
	tail := results[n:]

	candidates := make([]RerankCandidate, n)
	for i, res := range head {
		text, _ := res.Payload["content"].(string)
		candidates[i] = RerankCandidate{ID: res.ID, Text: text, Score: res.Score}
	}

	reranked := ApplyReranker(ctx, r, query, candidates)
	byID := make(map[string]Result, n)
	for _, res := range head {
		byID[res.ID] = res
	}

	out := make([]Result, 0, len(results))
	for _, c := range reranked {
		if res, ok := byID[c.ID]; ok {
			res.Score = c.Score
			out = append(out, res)
		}
	}
	out = append(out, tail...)
	return out
}
