// Package autosave implements C7: the background manager that notices
// mutated collections and periodically hands a read-consistent snapshot
// of them to the compact archive (C6) to commit, with exponential-backoff
// retry on failure and a forced final commit at graceful shutdown.
package autosave

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/vecdbhq/vecdb/internal/collection"
	"github.com/vecdbhq/vecdb/internal/vecerrors"
)

// Registry is the vector store's view onto its open collections, narrowed
// to the one capability auto-save needs: a read-consistent snapshot of
// everything currently open. Implemented by internal/vectorstore (C8).
type Registry interface {
	Snapshots() map[string]collection.Snapshot
}

// Store is the archive persistence capability auto-save drives.
// Implemented by internal/archive.Store.
type Store interface {
	Commit(generation uint64, snapshots map[string]collection.Snapshot) error
}

// Manager maintains a process-wide dirty flag plus a per-collection dirty
// set, and on a fixed cadence commits a new archive generation whenever
// anything is dirty.
type Manager struct {
	registry Registry
	store    Store
	interval time.Duration

	mu         sync.Mutex
	dirty      map[string]struct{}
	generation uint64
	lastErr    error

	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewManager creates a Manager. startGeneration should be the generation
// number the archive store last loaded (0 for a fresh data directory);
// the manager's first commit writes startGeneration+1.
func NewManager(registry Registry, store Store, interval time.Duration, startGeneration uint64) *Manager {
	return &Manager{
		registry:   registry,
		store:      store,
		interval:   interval,
		dirty:      make(map[string]struct{}),
		generation: startGeneration,
	}
}

// MarkChanged implements collection.DirtyNotifier: collections call this
// after every mutation.
func (m *Manager) MarkChanged(collectionName string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dirty[collectionName] = struct{}{}
}

// LastError returns the most recent commit failure, or nil if the last
// attempted commit (if any) succeeded.
func (m *Manager) LastError() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}

// Start begins the background scheduler. It is safe to call Start at
// most once per Manager.
func (m *Manager) Start(ctx context.Context) {
	m.ctx, m.cancel = context.WithCancel(ctx)
	slog.Debug("autosave manager started", slog.Duration("interval", m.interval))

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()
		for {
			select {
			case <-m.ctx.Done():
				return
			case <-ticker.C:
				m.tick()
			}
		}
	}()
}

// Stop cancels the scheduler and forces one final commit of whatever is
// currently dirty, regardless of cadence, before returning. Nothing is
// committed when no collection is dirty. Per spec.md §4.6's
// graceful-shutdown requirement.
func (m *Manager) Stop() {
	m.stopOnce.Do(func() {
		if m.cancel != nil {
			m.cancel()
		}
		m.wg.Wait()

		m.mu.Lock()
		clean := len(m.dirty) == 0
		m.mu.Unlock()
		if clean {
			return
		}
		// The scheduler's context is cancelled by now; the final commit
		// runs on one that is not.
		if m.ctx != nil {
			m.ctx = context.WithoutCancel(m.ctx)
		} else {
			m.ctx = context.Background()
		}

		slog.Debug("autosave manager performing final commit before shutdown")
		if err := m.commit(nil); err != nil {
			slog.Error("autosave final commit failed", slog.String("error", err.Error()))
		}
	})
}

// tick runs one scheduled check: if anything is dirty, commit it.
func (m *Manager) tick() {
	m.mu.Lock()
	if len(m.dirty) == 0 {
		m.mu.Unlock()
		return
	}
	names := make([]string, 0, len(m.dirty))
	for name := range m.dirty {
		names = append(names, name)
	}
	m.mu.Unlock()

	if err := m.commit(names); err != nil {
		slog.Warn("autosave commit failed, will retry next cycle",
			slog.String("error", err.Error()))
	}
}

// commit takes a snapshot of every open collection and hands it to the
// archive store, retrying with exponential backoff on failure. On
// success, clearedNames is removed from the dirty set; a nil clearedNames
// (used by the forced shutdown commit) clears everything currently dirty.
func (m *Manager) commit(clearedNames []string) error {
	snapshot := m.registry.Snapshots()

	m.mu.Lock()
	m.generation++
	generation := m.generation
	m.mu.Unlock()

	err := vecerrors.Retry(m.ctx, vecerrors.AutosaveRetryConfig(), func() error {
		return m.store.Commit(generation, snapshot)
	})

	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		m.lastErr = err
		m.generation-- // the failed generation number is reusable on retry
		return err
	}
	m.lastErr = nil
	if clearedNames == nil {
		m.dirty = make(map[string]struct{})
	} else {
		for _, name := range clearedNames {
			delete(m.dirty, name)
		}
	}

	slog.Info("autosave commit succeeded",
		slog.Uint64("generation", generation),
		slog.Int("collections", len(snapshot)))
	return nil
}
