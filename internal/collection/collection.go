// Package collection implements C5: a collection binds a live vector set
// to its HNSW index, its quantization codec, its embedding providers, and
// its normalization policy, and exposes the atomic per-vector operations
// every other component in the engine calls through.
package collection

import (
	"context"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/vecdbhq/vecdb/internal/distance"
	"github.com/vecdbhq/vecdb/internal/hnsw"
	"github.com/vecdbhq/vecdb/internal/normalize"
	"github.com/vecdbhq/vecdb/internal/quantize"
	"github.com/vecdbhq/vecdb/internal/vecerrors"
	"github.com/vecdbhq/vecdb/internal/vector"
)

// DenseEmbedder turns text into a dense vector. Collections depend on
// this narrow interface rather than internal/embed's concrete types so
// that embedding backends can evolve independently of the storage layer.
type DenseEmbedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimension() int
	ModelID() string
}

// SparseEmbedder turns text into a sparse term-weight vector, e.g. a
// BM25 or TF-IDF provider trained on the collection's own content.
type SparseEmbedder interface {
	EmbedSparse(ctx context.Context, text string) (vector.SparseVector, error)
}

// DirtyNotifier is the hook a collection calls after every mutation so
// C7 (auto-save) knows to persist it. Collections accept this at
// construction per spec.md §4.6/§9 ("no hidden singletons").
type DirtyNotifier interface {
	MarkChanged(collectionName string)
}

// noopNotifier is used when a collection is constructed without a
// registered auto-save manager (e.g. in tests).
type noopNotifier struct{}

func (noopNotifier) MarkChanged(string) {}

// SearchResult is one ranked hit, rescored with the collection's
// full-precision distance kernel.
type SearchResult struct {
	ID       string
	Score    float32
	Distance float32
	Payload  map[string]any
}

// Collection is the unit of storage and search: one HNSW graph, one
// vector array, one optional quantization codec, bound to a single
// dimension and metric.
type Collection struct {
	mu sync.RWMutex

	attrs  vector.CollectionAttrs
	graph  *hnsw.Graph
	codec  quantize.Codec
	codes  map[string][]byte // id -> quantized code, present iff codec != nil && codec.Fitted()
	values map[string]*vector.Vector

	dense    DenseEmbedder
	sparse   SparseEmbedder
	notifier DirtyNotifier
}

// Option configures a Collection at construction.
type Option func(*Collection)

// WithDenseEmbedder attaches the text-insertion dense embedding provider.
func WithDenseEmbedder(e DenseEmbedder) Option { return func(c *Collection) { c.dense = e } }

// WithSparseEmbedder attaches the hybrid-search sparse embedding provider.
func WithSparseEmbedder(e SparseEmbedder) Option { return func(c *Collection) { c.sparse = e } }

// WithNotifier attaches the auto-save dirty-flag hook.
func WithNotifier(n DirtyNotifier) Option { return func(c *Collection) { c.notifier = n } }

// New creates an empty collection from attrs. seed controls the HNSW
// layer-assignment RNG; pass 0 to derive a fresh one from attrs.Name.
func New(attrs vector.CollectionAttrs, seed int64, opts ...Option) (*Collection, error) {
	if attrs.Dimension <= 0 {
		return nil, vecerrors.PolicyViolation("collection dimension must be greater than zero")
	}
	if !attrs.Metric.IsValid() {
		attrs.Metric = vector.MetricCosine
	}
	if seed == 0 {
		seed = freshSeed(attrs.Name)
	}

	codec, err := quantize.New(attrs.Dimension, attrs.Quantization)
	if err != nil {
		return nil, err
	}

	c := &Collection{
		attrs:    attrs,
		graph:    hnsw.New(attrs.Dimension, attrs.M, attrs.EfConstruction, attrs.EfSearch, attrs.Metric, seed),
		codec:    codec,
		codes:    make(map[string][]byte),
		values:   make(map[string]*vector.Vector),
		notifier: noopNotifier{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func freshSeed(name string) int64 {
	h := int64(0)
	for _, r := range name {
		h = h*31 + int64(r)
	}
	if h == 0 {
		h = time.Now().UnixNano()
	}
	return h
}

// Attrs returns a copy of the collection's current attributes.
func (c *Collection) Attrs() vector.CollectionAttrs {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.attrs
}

// Name returns the collection's name.
func (c *Collection) Name() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.attrs.Name
}

// Count returns the number of live vectors.
func (c *Collection) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.values)
}

func (c *Collection) bumpRevisionLocked() {
	c.attrs.Revision++
	c.attrs.UpdatedAt = time.Now()
	c.notifier.MarkChanged(c.attrs.Name)
}

// Insert adds v to the collection. A duplicate id is treated as an
// update (delete-then-insert at the graph level), per spec.md §8
// boundary behaviors.
func (c *Collection) Insert(v *vector.Vector) error {
	return c.upsert(v)
}

// Upsert is an alias for Insert; the collection has no separate
// insert-only mode since duplicate ids are always accepted as updates.
func (c *Collection) Upsert(v *vector.Vector) error {
	return c.upsert(v)
}

func (c *Collection) upsert(v *vector.Vector) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := vector.ValidateVector(c.attrs.Name, v, c.attrs.Dimension); err != nil {
		return err
	}

	stored := v.Clone()
	now := time.Now()
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = now
	}
	stored.UpdatedAt = now

	values := append([]float32(nil), stored.Values...)
	if c.attrs.Metric == vector.MetricCosine {
		distance.Normalize(values)
	}

	if err := c.graph.Insert(stored.ID, values); err != nil {
		return vecerrors.IoError("hnsw insert failed", err)
	}

	if c.codec != nil && c.codec.Fitted() {
		code, err := c.codec.Encode(stored.Values)
		if err == nil {
			c.codes[stored.ID] = code
		}
	}

	c.values[stored.ID] = stored
	c.bumpRevisionLocked()
	return nil
}

// UpdatePayload replaces id's payload without touching the graph,
// acquiring the write lock only long enough to swap the pointer, per
// spec.md §5.
func (c *Collection) UpdatePayload(id string, patch map[string]any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	existing, ok := c.values[id]
	if !ok {
		return vecerrors.New(vecerrors.CodeInvalidIdentifier, "vector not found", nil).WithDetail("id", id)
	}

	merged := make(map[string]any, len(existing.Payload)+len(patch))
	for k, v := range existing.Payload {
		merged[k] = v
	}
	for k, v := range patch {
		merged[k] = v
	}

	updated := existing.Clone()
	updated.Payload = merged
	updated.UpdatedAt = time.Now()
	c.values[id] = updated
	c.bumpRevisionLocked()
	return nil
}

// Delete removes id from the collection. Returns false if id was not
// present.
func (c *Collection) Delete(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.values[id]; !ok {
		return false
	}
	c.graph.Delete(id)
	delete(c.values, id)
	delete(c.codes, id)
	c.bumpRevisionLocked()
	return true
}

// Get returns a copy of the stored vector for id.
func (c *Collection) Get(id string) (*vector.Vector, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	v, ok := c.values[id]
	if !ok {
		return nil, vecerrors.New(vecerrors.CodeInvalidIdentifier, "vector not found", nil).WithDetail("id", id)
	}
	return v.Clone(), nil
}

// Search returns the k nearest vectors to query, ranked by the
// collection's metric-correct distance with id tie-break (spec.md §4.3).
// ef is raised to the collection's EfSearch if smaller, and to k if still
// smaller.
func (c *Collection) Search(query []float32, k, ef int) ([]SearchResult, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if err := vector.ValidateDimension(c.attrs.Name, query, c.attrs.Dimension); err != nil {
		return nil, err
	}
	if err := vector.ValidateFinite(c.attrs.Name, query); err != nil {
		return nil, err
	}

	q := append([]float32(nil), query...)
	if c.attrs.Metric == vector.MetricCosine {
		distance.Normalize(q)
	}

	if ef < c.attrs.EfSearch {
		ef = c.attrs.EfSearch
	}
	raw, err := c.graph.Search(q, k, ef)
	if err != nil {
		return nil, vecerrors.IoError("hnsw search failed", err)
	}

	out := make([]SearchResult, 0, len(raw))
	for _, r := range raw {
		v := c.values[r.ID]
		var payload map[string]any
		if v != nil {
			payload = v.Payload
		}
		out = append(out, SearchResult{
			ID:       r.ID,
			Distance: r.Distance,
			Score:    distance.ToScore(r.Distance, c.attrs.Metric),
			Payload:  payload,
		})
	}
	return out, nil
}

// SearchQuantized brute-forces the quantized codes with the codec's
// approximate distance, then rescales the top 4k candidates with the
// full-precision kernel and returns the best k. It exercises the
// quantization codec's DistanceToQuery path directly (spec.md §4.2/§4.3
// "final k results are rescored with full-precision kernels"), and is
// the path used when the caller explicitly wants quantized-space
// candidate generation rather than HNSW graph traversal — for example to
// validate compression quality against the fitted codec. QuantizationNotFitted
// is returned if no codec is configured or it hasn't been fit yet.
func (c *Collection) SearchQuantized(query []float32, k int) ([]SearchResult, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.codec == nil {
		return nil, vecerrors.QuantizationNotFitted(c.attrs.Name)
	}
	if !c.codec.Fitted() {
		return nil, vecerrors.QuantizationNotFitted(c.attrs.Name)
	}
	if err := vector.ValidateDimension(c.attrs.Name, query, c.attrs.Dimension); err != nil {
		return nil, err
	}

	type scored struct {
		id   string
		dist float32
	}
	pool := make([]scored, 0, len(c.codes))
	for id, code := range c.codes {
		d, err := c.codec.DistanceToQuery(query, code)
		if err != nil {
			continue
		}
		pool = append(pool, scored{id, d})
	}

	candidateWidth := k * 4
	if candidateWidth < k {
		candidateWidth = k
	}
	topN(pool, candidateWidth, func(a, b scored) bool { return a.dist < b.dist })
	if len(pool) > candidateWidth {
		pool = pool[:candidateWidth]
	}

	distFunc := distance.ForMetric(c.attrs.Metric)
	rescored := make([]SearchResult, 0, len(pool))
	for _, p := range pool {
		v, ok := c.values[p.id]
		if !ok {
			continue
		}
		d := distFunc(query, v.Values)
		rescored = append(rescored, SearchResult{
			ID:       p.id,
			Distance: d,
			Score:    distance.ToScore(d, c.attrs.Metric),
			Payload:  v.Payload,
		})
	}
	topNResults(rescored, k)
	if len(rescored) > k {
		rescored = rescored[:k]
	}
	return rescored, nil
}

// FitQuantization trains the collection's codec on up to
// quantize.MaxTrainingSample of its current live vectors. It is a no-op
// if the collection's policy is QuantizationNone.
func (c *Collection) FitQuantization() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.codec == nil {
		return nil
	}

	samples := make([][]float32, 0, len(c.values))
	for _, v := range c.values {
		samples = append(samples, v.Values)
	}
	if len(samples) > quantize.MaxTrainingSample {
		idx := rand.New(rand.NewSource(1)).Perm(len(samples))[:quantize.MaxTrainingSample]
		subsample := make([][]float32, len(idx))
		for i, j := range idx {
			subsample[i] = samples[j]
		}
		samples = subsample
	}
	if err := c.codec.Fit(samples); err != nil {
		return err
	}

	for id, v := range c.values {
		code, err := c.codec.Encode(v.Values)
		if err != nil {
			continue
		}
		c.codes[id] = code
	}
	c.bumpRevisionLocked()
	return nil
}

// InsertText embeds text with the collection's dense (and, if attached,
// sparse) provider after running it through the configured
// normalization level, then inserts the resulting vector. If id is
// empty, one is synthesized deterministically from the text.
func (c *Collection) InsertText(ctx context.Context, id, text string, payload map[string]any) (*vector.Vector, error) {
	dense, normLevel, modelID, sparse, err := c.textInsertConfigLocked(modelIDCheck(id))
	if err != nil {
		return nil, err
	}

	normalized := normalize.Apply(text, normLevel)

	values, err := dense.Embed(ctx, normalized)
	if err != nil {
		return nil, vecerrors.EmbeddingProviderFailure(modelID, err)
	}

	if id == "" {
		id = deterministicID(modelID, normalized)
	}

	v := &vector.Vector{ID: id, Values: values, Payload: payload}
	if sparse != nil {
		sv, err := sparse.EmbedSparse(ctx, normalized)
		if err == nil {
			v.Sparse = sv
		}
	}

	if err := c.Insert(v); err != nil {
		return nil, err
	}
	return v, nil
}

func modelIDCheck(id string) string { return id }

// textInsertConfigLocked snapshots the fields InsertText needs under a
// read lock, and enforces the embedding-model policy: an existing
// collection refuses to accept text from a different model id than the
// one it was created with (spec.md §9 Open Question #2, resolved as
// PolicyViolation).
func (c *Collection) textInsertConfigLocked(_ string) (DenseEmbedder, vector.NormalizationLevel, string, SparseEmbedder, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.dense == nil {
		return nil, "", "", nil, vecerrors.New(vecerrors.CodeEmbeddingProviderFailure, "collection has no embedding provider configured", nil)
	}
	modelID := c.dense.ModelID()
	if c.attrs.EmbeddingProvider != "" && c.attrs.EmbeddingProvider != modelID {
		return nil, "", "", nil, vecerrors.PolicyViolation(
			"embedding model id changed from " + c.attrs.EmbeddingProvider + " to " + modelID + "; re-create the collection to change models")
	}
	return c.dense, c.attrs.Normalization, modelID, c.sparse, nil
}

// SearchText embeds query text the same way InsertText does and
// searches the resulting dense vector.
func (c *Collection) SearchText(ctx context.Context, text string, k, ef int) ([]SearchResult, error) {
	dense, normLevel, modelID, _, err := c.textInsertConfigLocked("")
	if err != nil {
		return nil, err
	}
	normalized := normalize.Apply(text, normLevel)
	values, err := dense.Embed(ctx, normalized)
	if err != nil {
		return nil, vecerrors.EmbeddingProviderFailure(modelID, err)
	}
	return c.Search(values, k, ef)
}

// SparseQuery embeds text with the collection's sparse embedder for
// hybrid search composition. Returns a nil vector, nil error if the
// collection has no sparse embedder configured.
func (c *Collection) SparseQuery(ctx context.Context, text string) (vector.SparseVector, error) {
	c.mu.RLock()
	sparse := c.sparse
	normLevel := c.attrs.Normalization
	c.mu.RUnlock()
	if sparse == nil {
		return nil, nil
	}
	return sparse.EmbedSparse(ctx, normalize.Apply(text, normLevel))
}

// SparseSearch brute-force scores every live vector's sparse companion
// against query by dot product and returns the top k, id tie-broken
// like Search. HNSW indexes only the dense space, so the sparse list a
// hybrid search fuses against comes from this path rather than the
// graph (spec.md §4.10).
func (c *Collection) SparseSearch(query vector.SparseVector, k int) []SearchResult {
	c.mu.RLock()
	defer c.mu.RUnlock()

	type scored struct {
		id      string
		score   float32
		payload map[string]any
	}
	if len(query) == 0 {
		return nil
	}
	all := make([]scored, 0, len(c.values))
	for id, v := range c.values {
		if len(v.Sparse) == 0 {
			continue
		}
		small, big := query, v.Sparse
		if len(v.Sparse) < len(query) {
			small, big = v.Sparse, query
		}
		var dot float32
		for term, w := range small {
			if bw, ok := big[term]; ok {
				dot += w * bw
			}
		}
		if dot <= 0 {
			continue
		}
		all = append(all, scored{id: id, score: dot, payload: v.Payload})
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].score != all[j].score {
			return all[i].score > all[j].score
		}
		return all[i].id < all[j].id
	})
	if k > 0 && k < len(all) {
		all = all[:k]
	}
	out := make([]SearchResult, len(all))
	for i, s := range all {
		out[i] = SearchResult{ID: s.id, Score: s.score, Payload: s.payload}
	}
	return out
}

// Page is one page of Iter's cursor-based enumeration.
type Page struct {
	Vectors []*vector.Vector
	Cursor  string // pass as the next call's `after`; "" means no more pages
}

// Iter returns up to limit live vectors with id lexicographically after
// the cursor, in id order, for stable pagination under concurrent
// mutation.
func (c *Collection) Iter(after string, limit int) Page {
	c.mu.RLock()
	defer c.mu.RUnlock()

	ids := make([]string, 0, len(c.values))
	for id := range c.values {
		if id > after {
			ids = append(ids, id)
		}
	}
	sortStrings(ids)

	if limit <= 0 || limit > len(ids) {
		limit = len(ids)
	}
	page := Page{Vectors: make([]*vector.Vector, 0, limit)}
	for i := 0; i < limit; i++ {
		page.Vectors = append(page.Vectors, c.values[ids[i]].Clone())
	}
	if limit < len(ids) {
		page.Cursor = ids[limit-1]
	}
	return page
}

// Snapshot is the minimal state C7 (auto-save) needs to serialize this
// collection without blocking further writes: the attrs observed at the
// moment serialization began, the exported graph, and the full-precision
// vector/payload set. Callers must take it under a read lock and then
// release the lock before doing the (potentially slow) serialization
// work, per spec.md §5.
type Snapshot struct {
	Attrs  vector.CollectionAttrs
	Graph  hnsw.Snapshot
	Codec  quantize.Codec
	Values map[string]*vector.Vector
}

// ExportSnapshot captures the collection's current state for persistence.
func (c *Collection) ExportSnapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	values := make(map[string]*vector.Vector, len(c.values))
	for id, v := range c.values {
		values[id] = v.Clone()
	}
	return Snapshot{
		Attrs:  c.attrs,
		Graph:  c.graph.Export(),
		Codec:  c.codec,
		Values: values,
	}
}

// FromSnapshot reconstructs a Collection from a previously exported
// Snapshot (typically loaded from a .vecdb archive section).
func FromSnapshot(snap Snapshot, seed int64, opts ...Option) (*Collection, error) {
	graph, err := hnsw.FromSnapshot(snap.Graph, seed)
	if err != nil {
		return nil, vecerrors.ArchiveCorrupt("", err)
	}

	c := &Collection{
		attrs:    snap.Attrs,
		graph:    graph,
		codec:    snap.Codec,
		codes:    make(map[string][]byte),
		values:   snap.Values,
		notifier: noopNotifier{},
	}
	if c.values == nil {
		c.values = make(map[string]*vector.Vector)
	}
	if c.codec != nil && c.codec.Fitted() {
		for id, v := range c.values {
			if code, err := c.codec.Encode(v.Values); err == nil {
				c.codes[id] = code
			}
		}
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}
