package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sync"
	"time"
)

// eventBacklog and errorBacklog bound the polling watcher's channels so a
// slow consumer causes dropped events/errors rather than an unbounded
// backlog.
const (
	eventBacklog = 100
	errorBacklog = 10
)

// PollingWatcher detects changes by repeatedly snapshotting a directory
// tree's mod times and sizes and diffing against the previous snapshot.
// It exists as a fallback for filesystems where fsnotify doesn't deliver
// events (network mounts, some container volume drivers).
type PollingWatcher struct {
	interval time.Duration
	rootPath string

	mu      sync.RWMutex
	state   map[string]fileSnapshot
	stopped bool

	events chan FileEvent
	errors chan error
	stopCh chan struct{}
}

// fileSnapshot is the subset of file metadata cheap enough to diff on
// every poll tick without reading file contents.
type fileSnapshot struct {
	modTime time.Time
	size    int64
	isDir   bool
}

// NewPollingWatcher returns a PollingWatcher that rescans every interval.
func NewPollingWatcher(interval time.Duration) *PollingWatcher {
	return &PollingWatcher{
		interval: interval,
		state:    make(map[string]fileSnapshot),
		events:   make(chan FileEvent, eventBacklog),
		errors:   make(chan error, errorBacklog),
		stopCh:   make(chan struct{}),
	}
}

// Start scans root to establish a baseline, then polls it every interval
// until ctx is cancelled or Stop is called.
func (p *PollingWatcher) Start(ctx context.Context, root string) error {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("resolve absolute path: %w", err)
	}
	p.rootPath = absRoot

	baseline, err := snapshotTree(p.rootPath)
	if err != nil {
		return fmt.Errorf("perform initial scan: %w", err)
	}
	p.mu.Lock()
	p.state = baseline
	p.mu.Unlock()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = p.Stop()
			return ctx.Err()
		case <-p.stopCh:
			return nil
		case <-ticker.C:
			if err := p.poll(); err != nil {
				select {
				case p.errors <- err:
				default:
				}
			}
		}
	}
}

// Stop halts polling and closes the event/error channels. Safe to call
// more than once.
func (p *PollingWatcher) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped {
		return nil
	}

	p.stopped = true
	close(p.stopCh)
	close(p.events)
	close(p.errors)
	return nil
}

// Events returns the channel of detected file events.
func (p *PollingWatcher) Events() <-chan FileEvent {
	return p.events
}

// Errors returns the channel of scan errors.
func (p *PollingWatcher) Errors() <-chan error {
	return p.errors
}

// snapshotTree walks root and records a fileSnapshot per relative path,
// skipping entries it can't stat rather than aborting the whole walk.
func snapshotTree(root string) (map[string]fileSnapshot, error) {
	tree := make(map[string]fileSnapshot)

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}

		relPath, relErr := filepath.Rel(root, path)
		if relErr != nil || relPath == "." {
			return nil
		}

		info, infoErr := d.Info()
		if infoErr != nil {
			return nil
		}

		tree[relPath] = fileSnapshot{
			modTime: info.ModTime(),
			size:    info.Size(),
			isDir:   d.IsDir(),
		}
		return nil
	})

	return tree, err
}

// poll re-snapshots the tree, diffs it against the last known state, and
// emits a FileEvent for every create, modify, and delete found.
func (p *PollingWatcher) poll() error {
	current, err := snapshotTree(p.rootPath)
	if err != nil {
		return fmt.Errorf("walk directory for changes: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	now := time.Now()
	for relPath, snap := range current {
		prev, existed := p.state[relPath]
		switch {
		case !existed:
			p.emitEvent(FileEvent{Path: relPath, Operation: OpCreate, IsDir: snap.isDir, Timestamp: now})
		case prev.modTime != snap.modTime || prev.size != snap.size:
			p.emitEvent(FileEvent{Path: relPath, Operation: OpModify, IsDir: snap.isDir, Timestamp: now})
		}
	}

	for relPath, snap := range p.state {
		if _, stillExists := current[relPath]; !stillExists {
			p.emitEvent(FileEvent{Path: relPath, Operation: OpDelete, IsDir: snap.isDir, Timestamp: now})
		}
	}

	p.state = current
	return nil
}

// emitEvent sends event to the events channel, dropping it if the buffer
// is full. Callers must hold p.mu.
func (p *PollingWatcher) emitEvent(event FileEvent) {
	if p.stopped {
		return
	}

	select {
	case p.events <- event:
	default:
		slog.Warn("polling watcher buffer full, dropping event",
			slog.String("path", event.Path),
			slog.String("op", event.Operation.String()),
		)
	}
}
