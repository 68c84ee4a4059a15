package vectorstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vecdbhq/vecdb/internal/vecerrors"
	"github.com/vecdbhq/vecdb/internal/vector"
)

func TestCreateGetDeleteLifecycle(t *testing.T) {
	dir := t.TempDir()
	vs, err := Open(context.Background(), dir)
	require.NoError(t, err)
	defer vs.Close()

	c, err := vs.CreateCollection(vector.CollectionAttrs{Name: "docs", Dimension: 4}, CollectionOptions{})
	require.NoError(t, err)
	require.NoError(t, c.Insert(&vector.Vector{ID: "a", Values: []float32{1, 0, 0, 0}}))

	got, err := vs.Get("docs")
	require.NoError(t, err)
	assert.Equal(t, 1, got.Count())

	assert.Equal(t, []string{"docs"}, vs.List())

	require.NoError(t, vs.Delete("docs"))
	_, err = vs.Get("docs")
	assert.Equal(t, vecerrors.CodeUnknownCollection, vecerrors.GetCode(err))
}

func TestCreateCollectionRejectsDuplicate(t *testing.T) {
	dir := t.TempDir()
	vs, err := Open(context.Background(), dir)
	require.NoError(t, err)
	defer vs.Close()

	_, err = vs.CreateCollection(vector.CollectionAttrs{Name: "docs", Dimension: 4}, CollectionOptions{})
	require.NoError(t, err)

	_, err = vs.CreateCollection(vector.CollectionAttrs{Name: "docs", Dimension: 4}, CollectionOptions{})
	require.Error(t, err)
	assert.Equal(t, vecerrors.CodeCollectionExists, vecerrors.GetCode(err))
}

func TestCreateCollectionAppliesConfigDefaults(t *testing.T) {
	dir := t.TempDir()
	vs, err := Open(context.Background(), dir)
	require.NoError(t, err)
	defer vs.Close()

	c, err := vs.CreateCollection(vector.CollectionAttrs{Name: "docs"}, CollectionOptions{})
	require.NoError(t, err)

	attrs := c.Attrs()
	assert.Equal(t, vs.cfg.DefaultDimension, attrs.Dimension)
	assert.Equal(t, vs.cfg.HNSW.M, attrs.M)
	assert.Equal(t, vector.Metric(vs.cfg.DefaultMetric), attrs.Metric)
}

func TestOpenRefusesSecondLockOnSameDirectory(t *testing.T) {
	dir := t.TempDir()
	vs, err := Open(context.Background(), dir)
	require.NoError(t, err)
	defer vs.Close()

	_, err = Open(context.Background(), dir)
	require.Error(t, err)
}

func TestCloseThenReopenRestoresCollections(t *testing.T) {
	dir := t.TempDir()
	vs, err := Open(context.Background(), dir)
	require.NoError(t, err)

	c, err := vs.CreateCollection(vector.CollectionAttrs{Name: "docs", Dimension: 4}, CollectionOptions{})
	require.NoError(t, err)
	require.NoError(t, c.Insert(&vector.Vector{ID: "a", Values: []float32{1, 0, 0, 0}}))

	require.NoError(t, vs.Close())

	reopened, err := Open(context.Background(), dir)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.Get("docs")
	require.NoError(t, err)
	assert.Equal(t, 1, got.Count())
}

func TestAutosaveEventuallyPersistsMutations(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "vecdb.yaml"),
		[]byte("autosave:\n  interval_seconds: 1\n"), 0o644))

	vs, err := Open(context.Background(), dir)
	require.NoError(t, err)

	c, err := vs.CreateCollection(vector.CollectionAttrs{Name: "docs", Dimension: 4}, CollectionOptions{})
	require.NoError(t, err)
	require.NoError(t, c.Insert(&vector.Vector{ID: "a", Values: []float32{1, 0, 0, 0}}))

	require.Eventually(t, func() bool {
		arch, err := vs.archiveStore.Load()
		return err == nil && len(arch.Collections) == 1
	}, 2*time.Second, 20*time.Millisecond)

	require.NoError(t, vs.Close())
}
