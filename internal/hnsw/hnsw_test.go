package hnsw

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vecdbhq/vecdb/internal/vector"
)

// TestDenseRoundTrip mirrors spec.md §8 scenario 1.
func TestDenseRoundTrip(t *testing.T) {
	g := New(4, 8, 50, 50, vector.MetricCosine, 1)
	require.NoError(t, g.Insert("a", []float32{1, 0, 0, 0}))
	require.NoError(t, g.Insert("b", []float32{0, 1, 0, 0}))
	require.NoError(t, g.Insert("c", []float32{1, 1, 0, 0}))

	results, err := g.Search([]float32{1, 0, 0, 0}, 2, 50)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "a", results[0].ID)
	assert.InDelta(t, 0.0, results[0].Distance, 1e-6)
	assert.Equal(t, "c", results[1].ID)
	assert.InDelta(t, 1-1/1.41421356, results[1].Distance, 1e-3)
}

func TestEmptyGraphSearch(t *testing.T) {
	g := New(4, 8, 50, 50, vector.MetricCosine, 1)
	results, err := g.Search([]float32{1, 0, 0, 0}, 5, 50)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSingleVectorSelfMatch(t *testing.T) {
	g := New(4, 8, 50, 50, vector.MetricEuclidean, 1)
	require.NoError(t, g.Insert("only", []float32{1, 2, 3, 4}))

	results, err := g.Search([]float32{1, 2, 3, 4}, 1, 50)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "only", results[0].ID)
	assert.InDelta(t, 0.0, results[0].Distance, 1e-6)
}

func TestEfBelowKIsRaised(t *testing.T) {
	g := New(4, 8, 50, 50, vector.MetricEuclidean, 1)
	for i, v := range [][]float32{{1, 0, 0, 0}, {0, 1, 0, 0}, {0, 0, 1, 0}} {
		require.NoError(t, g.Insert(string(rune('a'+i)), v))
	}
	results, err := g.Search([]float32{1, 0, 0, 0}, 3, 1)
	require.NoError(t, err)
	assert.Len(t, results, 3)
}

func TestInsertDeleteInsertSameID(t *testing.T) {
	g := New(4, 8, 50, 50, vector.MetricEuclidean, 1)
	require.NoError(t, g.Insert("x", []float32{1, 1, 1, 1}))
	assert.True(t, g.Delete("x"))
	require.NoError(t, g.Insert("x", []float32{2, 2, 2, 2}))

	results, err := g.Search([]float32{2, 2, 2, 2}, 1, 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "x", results[0].ID)
	assert.InDelta(t, 0.0, results[0].Distance, 1e-6)
}

func TestDeleteReassignsEntryPoint(t *testing.T) {
	g := New(4, 8, 50, 50, vector.MetricEuclidean, 7)
	for i := 0; i < 20; i++ {
		v := make([]float32, 4)
		v[i%4] = float32(i + 1)
		require.NoError(t, g.Insert(rune32(i), v))
	}
	require.True(t, g.hasEntry)
	entryID := g.arena[g.entryPoint].id
	g.Delete(entryID)
	require.True(t, g.hasEntry)
	assert.NotEqual(t, entryID, g.arena[g.entryPoint].id)
	assert.Equal(t, 19, g.Len())
}

func TestTombstonedIDExcludedFromSearch(t *testing.T) {
	g := New(4, 8, 50, 50, vector.MetricEuclidean, 1)
	require.NoError(t, g.Insert("a", []float32{1, 0, 0, 0}))
	require.NoError(t, g.Insert("b", []float32{0, 1, 0, 0}))
	g.Delete("a")

	results, err := g.Search([]float32{1, 0, 0, 0}, 2, 50)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "b", results[0].ID)
}

func TestExportImportRoundTrip(t *testing.T) {
	g := New(4, 8, 50, 50, vector.MetricCosine, 3)
	for i, v := range [][]float32{{1, 0, 0, 0}, {0, 1, 0, 0}, {1, 1, 0, 0}, {0, 0, 1, 1}} {
		require.NoError(t, g.Insert(rune32(i), v))
	}

	snap := g.Export()
	restored, err := FromSnapshot(snap, 99)
	require.NoError(t, err)

	want, err := g.Search([]float32{1, 0, 0, 0}, 2, 50)
	require.NoError(t, err)
	got, err := restored.Search([]float32{1, 0, 0, 0}, 2, 50)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestCompactReclaimsTombstones(t *testing.T) {
	g := New(4, 8, 50, 50, vector.MetricEuclidean, 1)
	for i := 0; i < 10; i++ {
		v := make([]float32, 4)
		v[i%4] = float32(i + 1)
		require.NoError(t, g.Insert(rune32(i), v))
	}
	for i := 0; i < 5; i++ {
		g.Delete(rune32(i))
	}
	g.Compact()
	assert.Equal(t, 5, g.Len())
	assert.Equal(t, 5, len(g.arena))
}

func rune32(i int) string {
	return string(rune('a' + i))
}
