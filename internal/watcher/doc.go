// Package watcher monitors a directory tree for file changes and feeds
// coalesced batches of them to vecdb's re-embed/re-ingest pipeline.
//
// Two backends are available:
//   - Primary: fsnotify, event-based and low-latency.
//   - Fallback: polling, for filesystems fsnotify can't watch (network
//     mounts, some Docker volume drivers).
//
// Bursts of events for the same path (an editor's save-then-rewrite, or a
// git checkout touching hundreds of files at once) are debounced into a
// single coalesced operation, and paths matching .gitignore-style patterns
// are filtered out before they ever reach the debouncer.
//
// Usage:
//
//	opts := watcher.DefaultOptions()
//	w, err := watcher.NewHybridWatcher(opts)
//	if err != nil {
//	    return err
//	}
//	defer w.Stop()
//
//	if err := w.Start(ctx, "/path/to/source"); err != nil {
//	    return err
//	}
//
//	for event := range w.Events() {
//	    switch event.Operation {
//	    case watcher.OpCreate:
//	        // embed and insert
//	    case watcher.OpModify:
//	        // re-embed and update
//	    case watcher.OpDelete:
//	        // remove from the collection
//	    }
//	}
package watcher
