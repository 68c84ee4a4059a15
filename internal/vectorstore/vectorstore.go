// Package vectorstore implements C8: the process-wide registry that owns
// every open collection for a data directory, the exclusive lock
// preventing two processes from opening the same directory, and the
// open/create/get/delete/close lifecycle every other component (CLI,
// indexer, search, discovery) drives collections through.
package vectorstore

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/gofrs/flock"
	_ "modernc.org/sqlite"

	"github.com/vecdbhq/vecdb/internal/archive"
	"github.com/vecdbhq/vecdb/internal/autosave"
	"github.com/vecdbhq/vecdb/internal/collection"
	"github.com/vecdbhq/vecdb/internal/config"
	"github.com/vecdbhq/vecdb/internal/telemetry"
	"github.com/vecdbhq/vecdb/internal/vecerrors"
	"github.com/vecdbhq/vecdb/internal/vector"
)

// CollectionOptions carries the per-collection embedding providers; both
// are optional, since a collection can accept pre-computed vectors only.
type CollectionOptions struct {
	Dense  collection.DenseEmbedder
	Sparse collection.SparseEmbedder
}

// VectorStore owns every open collection for one data directory.
type VectorStore struct {
	dataDir string
	cfg     *config.Config

	lock *flock.Flock

	archiveStore *archive.Store
	autosave     *autosave.Manager

	telemetryDB *sql.DB
	metrics     *telemetry.QueryMetrics

	mu          sync.RWMutex
	collections map[string]*collection.Collection
	quarantined map[string]string
}

// QuarantinedCollection describes a collection that failed to load (e.g. a
// corrupt HNSW graph with a back-edge to an unknown id) and was skipped
// rather than aborting the whole store, per spec.md §4.3's "the collection
// is quarantined and the rest of the store continues to start."
type QuarantinedCollection struct {
	Name   string
	Reason string
}

// Open acquires an exclusive lock on dataDir, loads its archive (if any),
// reconstructs every collection it contains, and starts the auto-save
// scheduler. Returns vecerrors.ResourceExhausted if the directory is
// already locked by another process.
func Open(ctx context.Context, dataDir string) (*VectorStore, error) {
	cfg, err := config.Load(dataDir)
	if err != nil {
		return nil, vecerrors.IoError("failed to load configuration", err)
	}

	lockPath := filepath.Join(dataDir, ".vecdb.lock")
	fl := flock.New(lockPath)
	locked, err := fl.TryLock()
	if err != nil {
		return nil, vecerrors.IoError("failed to acquire data directory lock", err)
	}
	if !locked {
		return nil, vecerrors.ResourceExhausted(fmt.Sprintf("data directory %s is already open by another process", dataDir))
	}

	archiveStore, err := archive.NewStore(dataDir)
	if err != nil {
		_ = fl.Unlock()
		return nil, err
	}
	archiveStore.WithRetention(
		cfg.Storage.Snapshots.MaxSnapshots,
		time.Duration(cfg.Storage.Snapshots.RetentionDays)*24*time.Hour,
	)

	loaded, err := archiveStore.Load()
	if err != nil {
		_ = fl.Unlock()
		return nil, err
	}

	vs := &VectorStore{
		dataDir:      dataDir,
		cfg:          cfg,
		lock:         fl,
		archiveStore: archiveStore,
		collections:  make(map[string]*collection.Collection),
		quarantined:  make(map[string]string),
	}

	autosaveManager := autosave.NewManager(vs, archiveStore,
		time.Duration(cfg.Autosave.IntervalSeconds)*time.Second, loaded.Generation)
	vs.autosave = autosaveManager

	for name, snap := range loaded.Collections {
		c, err := collection.FromSnapshot(snap, 0, collection.WithNotifier(autosaveManager))
		if err != nil {
			slog.Warn("quarantining collection: failed to reconstruct from snapshot", "collection", name, "error", err)
			vs.quarantined[name] = err.Error()
			continue
		}
		vs.collections[name] = c
	}

	autosaveManager.Start(ctx)

	vs.telemetryDB, vs.metrics = openTelemetry(dataDir)

	return vs, nil
}

// openTelemetry opens the query-metrics store at <dataDir>/telemetry.db.
// Telemetry is a local, best-effort observability concern: a failure here
// never prevents the data directory from opening, it only means queries
// run with metrics recording disabled.
func openTelemetry(dataDir string) (*sql.DB, *telemetry.QueryMetrics) {
	dbPath := filepath.Join(dataDir, "telemetry.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		slog.Warn("telemetry store unavailable", "error", err)
		return nil, telemetry.NewQueryMetrics(nil)
	}
	if err := telemetry.InitTelemetrySchema(db); err != nil {
		slog.Warn("telemetry schema init failed", "error", err)
		_ = db.Close()
		return nil, telemetry.NewQueryMetrics(nil)
	}
	store, err := telemetry.NewSQLiteMetricsStore(db)
	if err != nil {
		slog.Warn("telemetry store init failed", "error", err)
		_ = db.Close()
		return nil, telemetry.NewQueryMetrics(nil)
	}
	return db, telemetry.NewQueryMetricsWithConfig(store, telemetry.DefaultQueryMetricsConfig())
}

// Metrics returns the data directory's query metrics collector, for
// attaching to a discovery.Pipeline via WithMetrics.
func (vs *VectorStore) Metrics() *telemetry.QueryMetrics { return vs.metrics }

// Config returns the data directory's loaded configuration.
func (vs *VectorStore) Config() *config.Config { return vs.cfg }

// CreateCollection creates and registers a new, empty collection. Zero
// fields on attrs (M, EfConstruction, EfSearch, Quantization.Kind,
// Normalization) are filled from the store's configuration defaults.
// Returns vecerrors.CollectionExists if name is already in use.
func (vs *VectorStore) CreateCollection(attrs vector.CollectionAttrs, opts CollectionOptions) (*collection.Collection, error) {
	vs.mu.Lock()
	defer vs.mu.Unlock()

	if _, exists := vs.collections[attrs.Name]; exists {
		return nil, vecerrors.CollectionExists(attrs.Name)
	}
	vs.applyDefaultsLocked(&attrs)

	now := time.Now()
	attrs.CreatedAt = now
	attrs.UpdatedAt = now

	collOpts := []collection.Option{collection.WithNotifier(vs.autosave)}
	if opts.Dense != nil {
		collOpts = append(collOpts, collection.WithDenseEmbedder(opts.Dense))
		attrs.EmbeddingProvider = opts.Dense.ModelID()
	}
	if opts.Sparse != nil {
		collOpts = append(collOpts, collection.WithSparseEmbedder(opts.Sparse))
	}

	c, err := collection.New(attrs, 0, collOpts...)
	if err != nil {
		return nil, err
	}
	vs.collections[attrs.Name] = c
	vs.autosave.MarkChanged(attrs.Name)
	return c, nil
}

func (vs *VectorStore) applyDefaultsLocked(attrs *vector.CollectionAttrs) {
	if attrs.Dimension == 0 {
		attrs.Dimension = vs.cfg.DefaultDimension
	}
	if !attrs.Metric.IsValid() {
		attrs.Metric = vector.Metric(vs.cfg.DefaultMetric)
	}
	if attrs.M == 0 {
		attrs.M = vs.cfg.HNSW.M
	}
	if attrs.EfConstruction == 0 {
		attrs.EfConstruction = vs.cfg.HNSW.EfConstruction
	}
	if attrs.EfSearch == 0 {
		attrs.EfSearch = vs.cfg.HNSW.EfSearch
	}
	if attrs.Quantization.Kind == "" {
		attrs.Quantization.Kind = vector.QuantizationKind(vs.cfg.Quantization.Policy)
		attrs.Quantization.Subquantizers = vs.cfg.Quantization.Subquantizers
		attrs.Quantization.Centroids = vs.cfg.Quantization.Centroids
	}
	if attrs.Normalization == "" {
		attrs.Normalization = vector.NormalizationLevel(vs.cfg.Normalization.Level)
	}
}

// Get returns the named collection, or vecerrors.UnknownCollection.
func (vs *VectorStore) Get(name string) (*collection.Collection, error) {
	vs.mu.RLock()
	defer vs.mu.RUnlock()

	c, ok := vs.collections[name]
	if !ok {
		return nil, vecerrors.UnknownCollection(name)
	}
	return c, nil
}

// Delete removes the named collection from the registry. The next
// auto-save commit writes an archive generation that omits it, so a
// deletion survives a restart even though the deleted collection's own
// state is never explicitly rewritten. Returns vecerrors.UnknownCollection
// if name isn't open.
func (vs *VectorStore) Delete(name string) error {
	vs.mu.Lock()
	defer vs.mu.Unlock()

	if _, ok := vs.collections[name]; !ok {
		return vecerrors.UnknownCollection(name)
	}
	delete(vs.collections, name)
	vs.autosave.MarkChanged(name)
	return nil
}

// List returns every open collection's name, sorted.
func (vs *VectorStore) List() []string {
	vs.mu.RLock()
	defer vs.mu.RUnlock()

	names := make([]string, 0, len(vs.collections))
	for name := range vs.collections {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Quarantined returns every collection that failed to load from the
// archive, sorted by name, along with the reason it was skipped. These
// collections are absent from List/Get/Snapshots and from the next
// auto-save commit, so a quarantined collection is dropped from the
// archive for good unless the data directory is restored from an earlier
// snapshot (see `vecdb snapshot restore`).
func (vs *VectorStore) Quarantined() []QuarantinedCollection {
	vs.mu.RLock()
	defer vs.mu.RUnlock()

	out := make([]QuarantinedCollection, 0, len(vs.quarantined))
	for name, reason := range vs.quarantined {
		out = append(out, QuarantinedCollection{Name: name, Reason: reason})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Snapshots implements autosave.Registry: a read-consistent snapshot of
// every currently open collection.
func (vs *VectorStore) Snapshots() map[string]collection.Snapshot {
	vs.mu.RLock()
	defer vs.mu.RUnlock()

	out := make(map[string]collection.Snapshot, len(vs.collections))
	for name, c := range vs.collections {
		out[name] = c.ExportSnapshot()
	}
	return out
}

// ArchiveStore exposes the underlying archive store so the CLI's storage
// info/verify/migrate/snapshot subcommands can drive it directly.
func (vs *VectorStore) ArchiveStore() *archive.Store { return vs.archiveStore }

// Close stops the auto-save scheduler (forcing one final commit) and
// releases the data directory lock. Safe to call once.
func (vs *VectorStore) Close() error {
	vs.autosave.Stop()
	if vs.metrics != nil {
		_ = vs.metrics.Close()
	}
	if vs.telemetryDB != nil {
		_ = vs.telemetryDB.Close()
	}
	return vs.lock.Unlock()
}
