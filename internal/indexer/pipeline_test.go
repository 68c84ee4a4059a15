package indexer

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vecdbhq/vecdb/internal/collection"
	"github.com/vecdbhq/vecdb/internal/embed"
	"github.com/vecdbhq/vecdb/internal/vector"
	"github.com/vecdbhq/vecdb/internal/watcher"
)

func newTestCollection(t *testing.T) *collection.Collection {
	t.Helper()
	dense := embed.NewDenseAdapter(embed.NewStaticEmbedder())
	c, err := collection.New(vector.CollectionAttrs{
		Name:      "docs",
		Dimension: dense.Dimension(),
		Metric:    vector.MetricCosine,
		M:         8,
	}, 1, collection.WithDenseEmbedder(dense))
	require.NoError(t, err)
	return c
}

func TestPipelineIndexesCreatedFile(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "notes.txt"),
		[]byte("hello world, this is a short note about vector databases."), 0o644))

	c := newTestCollection(t)
	p := New(c, root)

	events := make(chan watcher.FileEvent, 1)
	p.Start(context.Background(), events)
	events <- watcher.FileEvent{Path: "notes.txt", Operation: watcher.OpCreate}
	close(events)
	p.Wait()

	assert.Equal(t, 1, c.Count())
}

func TestPipelineRemovesChunksOnDelete(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("some content to index."), 0o644))

	c := newTestCollection(t)
	p := New(c, root)

	events := make(chan watcher.FileEvent, 2)
	p.Start(context.Background(), events)
	events <- watcher.FileEvent{Path: "notes.txt", Operation: watcher.OpCreate}
	// give the goroutine a moment to process the create before the delete
	time.Sleep(20 * time.Millisecond)
	require.NoError(t, os.Remove(path))
	events <- watcher.FileEvent{Path: "notes.txt", Operation: watcher.OpDelete}
	close(events)
	p.Wait()

	assert.Equal(t, 0, c.Count())
}

func TestPipelineStopIsIdempotentAndBlocksUntilDone(t *testing.T) {
	root := t.TempDir()
	c := newTestCollection(t)
	p := New(c, root)

	events := make(chan watcher.FileEvent)
	p.Start(context.Background(), events)
	p.Stop()
	p.Stop() // must not panic or deadlock
}
