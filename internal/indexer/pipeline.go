// Package indexer drives the file→chunk→embed→upsert pipeline: it
// consumes internal/watcher file events, splits changed files into
// chunks with internal/chunk, and upserts each chunk into a collection
// as a text insert (embedding happens inside collection.InsertText).
package indexer

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/vecdbhq/vecdb/internal/chunk"
	"github.com/vecdbhq/vecdb/internal/collection"
	"github.com/vecdbhq/vecdb/internal/watcher"
)

// Pipeline indexes one watched root into one collection.
type Pipeline struct {
	collection *collection.Collection
	root       string
	chunkers   []chunk.Chunker // tried in order; the last entry is the catch-all fallback

	mu         sync.Mutex
	fileChunks map[string][]string // relative path -> currently-indexed chunk ids, for stale-chunk cleanup

	stopCh  chan struct{}
	doneCh  chan struct{}
	running bool
	runMu   sync.Mutex
}

// New creates a Pipeline that indexes files under root into c. The
// default chunker set is markdown-aware-then-plain-text, matching the
// watcher's default include extensions.
func New(c *collection.Collection, root string) *Pipeline {
	return &Pipeline{
		collection: c,
		root:       root,
		chunkers:   []chunk.Chunker{chunk.NewMarkdownChunker(), chunk.NewTextChunker()},
		fileChunks: make(map[string][]string),
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
	}
}

// Start consumes events until ctx is cancelled, events closes, or Stop is
// called. Non-blocking; call Wait or Stop to block on completion.
func (p *Pipeline) Start(ctx context.Context, events <-chan watcher.FileEvent) {
	p.runMu.Lock()
	if p.running {
		p.runMu.Unlock()
		return
	}
	p.running = true
	p.runMu.Unlock()

	go p.run(ctx, events)
}

func (p *Pipeline) run(ctx context.Context, events <-chan watcher.FileEvent) {
	defer close(p.doneCh)
	defer func() {
		p.runMu.Lock()
		p.running = false
		p.runMu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stopCh:
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if ev.IsDir {
				continue
			}
			if err := p.handle(ctx, ev); err != nil {
				slog.Warn("indexer failed to process file event",
					slog.String("path", ev.Path), slog.String("op", ev.Operation.String()),
					slog.String("error", err.Error()))
			}
		}
	}
}

// Stop signals the pipeline to stop and waits for it to finish.
func (p *Pipeline) Stop() {
	p.runMu.Lock()
	if !p.running {
		p.runMu.Unlock()
		return
	}
	p.runMu.Unlock()

	close(p.stopCh)
	<-p.doneCh
}

// Wait blocks until the pipeline's event loop returns (context cancelled
// or the event channel closed).
func (p *Pipeline) Wait() {
	<-p.doneCh
}

func (p *Pipeline) handle(ctx context.Context, ev watcher.FileEvent) error {
	switch ev.Operation {
	case watcher.OpDelete:
		p.removeFile(ev.Path)
		return nil
	case watcher.OpRename:
		p.removeFile(ev.OldPath)
		return p.indexFile(ctx, ev.Path)
	default:
		return p.indexFile(ctx, ev.Path)
	}
}

// indexFile re-chunks relPath and upserts every chunk, deleting any chunk
// ids that were indexed for this file last time but no longer appear
// (the file shrank or a boundary shifted).
func (p *Pipeline) indexFile(ctx context.Context, relPath string) error {
	data, err := os.ReadFile(filepath.Join(p.root, relPath))
	if err != nil {
		if os.IsNotExist(err) {
			p.removeFile(relPath)
			return nil
		}
		return err
	}

	chunker := p.chunkerFor(relPath)
	chunks, err := chunker.Chunk(ctx, &chunk.FileInput{Path: relPath, Content: data})
	if err != nil {
		return err
	}

	newIDs := make([]string, 0, len(chunks))
	newSet := make(map[string]struct{}, len(chunks))
	for _, ck := range chunks {
		payload := map[string]any{
			"file_path":    ck.FilePath,
			"chunk_index":  ck.Index,
			"content":      ck.Content,
			"content_type": string(ck.ContentType),
			"start_offset": ck.StartOffset,
			"end_offset":   ck.EndOffset,
		}
		for k, v := range ck.Metadata {
			payload[k] = v
		}
		if _, err := p.collection.InsertText(ctx, ck.ID, ck.Content, payload); err != nil {
			return err
		}
		newIDs = append(newIDs, ck.ID)
		newSet[ck.ID] = struct{}{}
	}

	p.mu.Lock()
	stale := p.fileChunks[relPath]
	p.fileChunks[relPath] = newIDs
	p.mu.Unlock()

	for _, id := range stale {
		if _, ok := newSet[id]; !ok {
			p.collection.Delete(id)
		}
	}
	return nil
}

func (p *Pipeline) removeFile(relPath string) {
	p.mu.Lock()
	ids := p.fileChunks[relPath]
	delete(p.fileChunks, relPath)
	p.mu.Unlock()

	for _, id := range ids {
		p.collection.Delete(id)
	}
}

// chunkerFor picks the first chunker whose SupportedExtensions includes
// relPath's extension; a chunker with no extensions (the text chunker) is
// the catch-all fallback.
func (p *Pipeline) chunkerFor(relPath string) chunk.Chunker {
	ext := strings.ToLower(filepath.Ext(relPath))
	var fallback chunk.Chunker
	for _, c := range p.chunkers {
		exts := c.SupportedExtensions()
		if len(exts) == 0 {
			fallback = c
			continue
		}
		for _, e := range exts {
			if e == ext {
				return c
			}
		}
	}
	if fallback != nil {
		return fallback
	}
	return p.chunkers[len(p.chunkers)-1]
}
