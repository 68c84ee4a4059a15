package discovery

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vecdbhq/vecdb/internal/collection"
	"github.com/vecdbhq/vecdb/internal/embed"
	"github.com/vecdbhq/vecdb/internal/vector"
)

type fakeSource struct {
	cols map[string]*collection.Collection
}

func (f *fakeSource) List() []string {
	names := make([]string, 0, len(f.cols))
	for n := range f.cols {
		names = append(names, n)
	}
	return names
}

func (f *fakeSource) Get(name string) (*collection.Collection, error) {
	c, ok := f.cols[name]
	if !ok {
		return nil, assert.AnError
	}
	return c, nil
}

func newTestCollection(t *testing.T, name string) *collection.Collection {
	t.Helper()
	dense := embed.NewDenseAdapter(embed.NewStaticEmbedder())
	c, err := collection.New(vector.CollectionAttrs{
		Name:      name,
		Dimension: dense.Dimension(),
		Metric:    vector.MetricCosine,
		M:         8,
	}, 1, collection.WithDenseEmbedder(dense))
	require.NoError(t, err)
	return c
}

func TestPipelineRunProducesCitedFindings(t *testing.T) {
	ctx := context.Background()

	docs := newTestCollection(t, "docs")
	_, err := docs.InsertText(ctx, "docs#0", "the vector database supports hybrid search across collections.",
		map[string]any{"file_path": "README.md", "chunk_index": 0, "content": "the vector database supports hybrid search across collections."})
	require.NoError(t, err)

	other := newTestCollection(t, "other")
	_, err = other.InsertText(ctx, "other#0", "unrelated content about cooking recipes.",
		map[string]any{"file_path": "notes.txt", "chunk_index": 0, "content": "unrelated content about cooking recipes."})
	require.NoError(t, err)

	src := &fakeSource{cols: map[string]*collection.Collection{"docs": docs, "other": other}}
	p := New(src, VariantExpander{}, nil, DefaultConfig())

	ans, err := p.Run(ctx, "hybrid search", nil)
	require.NoError(t, err)
	assert.False(t, ans.ExpansionFailed)
	assert.True(t, ans.RerankingSkipped)
	assert.NotEmpty(t, ans.ExpandedQueries)
	assert.NotEmpty(t, ans.CollectionsUsed)
}

func TestPipelineFiltersCollectionsByNamePattern(t *testing.T) {
	ctx := context.Background()
	docs := newTestCollection(t, "docs")
	_, err := docs.InsertText(ctx, "docs#0", "some content here", map[string]any{"file_path": "a.txt", "content": "some content here"})
	require.NoError(t, err)
	scratch := newTestCollection(t, "scratch")

	src := &fakeSource{cols: map[string]*collection.Collection{"docs": docs, "scratch": scratch}}
	p := New(src, VariantExpander{}, nil, DefaultConfig())

	ans, err := p.Run(ctx, "content", []string{"doc*"})
	require.NoError(t, err)
	assert.Equal(t, []string{"docs"}, ans.CollectionsUsed)
}

func TestPipelineExpansionFailureFallsBackToOriginalQuery(t *testing.T) {
	ctx := context.Background()
	docs := newTestCollection(t, "docs")
	_, err := docs.InsertText(ctx, "docs#0", "hello world", map[string]any{"file_path": "a.txt", "content": "hello world"})
	require.NoError(t, err)

	src := &fakeSource{cols: map[string]*collection.Collection{"docs": docs}}
	p := New(src, nil, nil, DefaultConfig())

	ans, err := p.Run(ctx, "hello", nil)
	require.NoError(t, err)
	assert.True(t, ans.ExpansionFailed)
	assert.Equal(t, []string{"hello"}, ans.ExpandedQueries)
}

func TestIsOverviewPathMatchesReadmeVariants(t *testing.T) {
	assert.True(t, isOverviewPath("README.md"))
	assert.True(t, isOverviewPath("docs/readme.txt"))
	assert.True(t, isOverviewPath("OVERVIEW.md"))
	assert.False(t, isOverviewPath("internal/foo.go"))
}
