package cmd

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/vecdbhq/vecdb/internal/async"
	"github.com/vecdbhq/vecdb/internal/embed"
	"github.com/vecdbhq/vecdb/internal/indexer"
	"github.com/vecdbhq/vecdb/internal/vector"
	"github.com/vecdbhq/vecdb/internal/vectorstore"
	"github.com/vecdbhq/vecdb/internal/watcher"
)

// watchAndIndex opens (creating if necessary) a collection named after
// path's base directory, attaches a file watcher rooted at path, and
// drives an indexer.Pipeline from its events until ctx is cancelled.
func watchAndIndex(ctx context.Context, vs *vectorstore.VectorStore, path string, progress *async.IndexProgress) error {
	name := collectionNameForPath(path)

	c, err := vs.Get(name)
	if err != nil {
		dense, derr := embed.NewEmbedder(ctx, embed.ProviderStatic, "")
		if derr != nil {
			return derr
		}
		adapter := embed.NewDenseAdapter(dense)
		c, err = vs.CreateCollection(vector.CollectionAttrs{
			Name:      name,
			Dimension: adapter.Dimension(),
			Metric:    vector.MetricCosine,
		}, vectorstore.CollectionOptions{Dense: adapter})
		if err != nil {
			return err
		}
	}

	w, err := watcher.NewHybridWatcher(watcher.Options{})
	if err != nil {
		return err
	}
	defer func() { _ = w.Stop() }()

	events := make(chan watcher.FileEvent, 256)
	defer close(events)
	go flattenBatches(ctx, w.Events(), events)

	pipeline := indexer.New(c, path)
	pipeline.Start(ctx, events)

	progress.SetReady()

	if err := w.Start(ctx, path); err != nil {
		return err
	}
	<-ctx.Done()
	return nil
}

// flattenBatches re-emits each batch HybridWatcher produces as individual
// events on out, matching indexer.Pipeline's single-event consumption.
func flattenBatches(ctx context.Context, in <-chan []watcher.FileEvent, out chan<- watcher.FileEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case batch, ok := <-in:
			if !ok {
				return
			}
			for _, ev := range batch {
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}
}

// collectionNameForPath derives a collection name from a watch path's
// base directory, since vector.CollectionAttrs.Name must be a valid
// identifier rather than an arbitrary filesystem path.
func collectionNameForPath(path string) string {
	base := filepath.Base(filepath.Clean(path))
	base = strings.ToLower(base)
	var b strings.Builder
	for _, r := range base {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	if b.Len() == 0 {
		return "default"
	}
	return b.String()
}
