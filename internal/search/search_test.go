package search

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vecdbhq/vecdb/internal/collection"
	"github.com/vecdbhq/vecdb/internal/embed"
	"github.com/vecdbhq/vecdb/internal/vector"
)

func newCollectionWithSparse(t *testing.T, name string) *collection.Collection {
	t.Helper()
	dense := embed.NewDenseAdapter(embed.NewStaticEmbedder())
	sparse, err := embed.NewBM25SparseEmbedder()
	require.NoError(t, err)
	require.NoError(t, sparse.Train([]string{
		"the quick brown fox jumps over the lazy dog",
		"vector databases index dense embeddings for similarity search",
		"hybrid search combines dense and sparse retrieval",
	}))
	c, err := collection.New(vector.CollectionAttrs{
		Name:      name,
		Dimension: dense.Dimension(),
		Metric:    vector.MetricCosine,
		M:         8,
	}, 1, collection.WithDenseEmbedder(dense), collection.WithSparseEmbedder(sparse))
	require.NoError(t, err)
	return c
}

func TestSearchDispatchesToOneCollection(t *testing.T) {
	ctx := context.Background()
	c := newCollectionWithSparse(t, "docs")
	_, err := c.InsertText(ctx, "a", "hybrid search combines dense and sparse retrieval", map[string]any{"content": "hybrid search combines dense and sparse retrieval"})
	require.NoError(t, err)

	results, err := Search(ctx, c, "hybrid search", 5, 0)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "docs", results[0].CollectionName)
	assert.Equal(t, "a", results[0].ID)
}

func TestMultiCollectionSearchKeepsCollectionNameDistinct(t *testing.T) {
	ctx := context.Background()
	c1 := newCollectionWithSparse(t, "alpha")
	c2 := newCollectionWithSparse(t, "beta")
	_, err := c1.InsertText(ctx, "shared-id", "vector databases index dense embeddings", map[string]any{"content": "vector databases index dense embeddings"})
	require.NoError(t, err)
	_, err = c2.InsertText(ctx, "shared-id", "vector databases index dense embeddings", map[string]any{"content": "vector databases index dense embeddings"})
	require.NoError(t, err)

	results, err := MultiCollectionSearch(ctx, []*collection.Collection{c1, c2}, "dense embeddings", 5)
	require.NoError(t, err)
	require.Len(t, results, 2)
	names := map[string]bool{results[0].CollectionName: true, results[1].CollectionName: true}
	assert.True(t, names["alpha"])
	assert.True(t, names["beta"])
}

func TestHybridSearchFusesDenseAndSparse(t *testing.T) {
	ctx := context.Background()
	c := newCollectionWithSparse(t, "docs")
	_, err := c.InsertText(ctx, "a", "hybrid search combines dense and sparse retrieval",
		map[string]any{"content": "hybrid search combines dense and sparse retrieval"})
	require.NoError(t, err)
	_, err = c.InsertText(ctx, "b", "the quick brown fox jumps over the lazy dog",
		map[string]any{"content": "the quick brown fox jumps over the lazy dog"})
	require.NoError(t, err)

	results, err := HybridSearch(ctx, c, "hybrid search sparse retrieval", Options{K: 5, Fusion: FusionConfig{Algorithm: AlgorithmRRF}})
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "a", results[0].ID)
}

func TestHybridSearchAppliesRerankerOverTopN(t *testing.T) {
	ctx := context.Background()
	c := newCollectionWithSparse(t, "docs")
	_, err := c.InsertText(ctx, "a", "hybrid search combines dense and sparse retrieval",
		map[string]any{"content": "hybrid search combines dense and sparse retrieval"})
	require.NoError(t, err)
	_, err = c.InsertText(ctx, "b", "vector databases index dense embeddings for similarity search",
		map[string]any{"content": "vector databases index dense embeddings for similarity search"})
	require.NoError(t, err)

	results, err := HybridSearch(ctx, c, "dense embeddings search", Options{
		K:        5,
		Fusion:   FusionConfig{Algorithm: AlgorithmRRF},
		Reranker: reverseReranker{},
	})
	require.NoError(t, err)
	require.Len(t, results, 2)
}

func TestHybridSearchGracefullyDegradesWithoutSparseEmbedder(t *testing.T) {
	ctx := context.Background()
	dense := embed.NewDenseAdapter(embed.NewStaticEmbedder())
	c, err := collection.New(vector.CollectionAttrs{
		Name:      "dense-only",
		Dimension: dense.Dimension(),
		Metric:    vector.MetricCosine,
		M:         8,
	}, 1, collection.WithDenseEmbedder(dense))
	require.NoError(t, err)
	_, err = c.InsertText(ctx, "a", "some content", map[string]any{"content": "some content"})
	require.NoError(t, err)

	results, err := HybridSearch(ctx, c, "some content", Options{K: 5})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, 0, results[0].SparseRank)
}
