// Package hnsw implements a hierarchical navigable small world graph: a
// multi-layer proximity graph supporting logarithmic-time approximate
// nearest-neighbor search over dense vectors.
package hnsw

import (
	"container/heap"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"sync"

	"github.com/bits-and-blooms/bitset"

	"github.com/vecdbhq/vecdb/internal/distance"
	"github.com/vecdbhq/vecdb/internal/vector"
)

// Parameter bounds a collection's HNSW configuration must fall within.
const (
	MinM              = 4
	MaxM              = 64
	MinEfConstruction = 16
	MaxEfConstruction = 800
	MaxEfSearch       = 800

	// maxLevel bounds the probabilistic layer assignment so a single
	// unlucky draw can't grow the arena's per-node neighbor slice count
	// without limit.
	maxLevel = 32
)

// NodeIdx is a dense arena index. Neighbor lists store NodeIdx values
// rather than string ids so adjacency lookups never touch the id map.
type NodeIdx uint32

type node struct {
	id        string
	vector    []float32
	level     int
	neighbors [][]NodeIdx // neighbors[layer]
}

// Result is one ranked hit from Search.
type Result struct {
	ID       string
	Distance float32
}

// Graph is a layered HNSW index over a fixed dimension and metric. The
// zero value is not usable; construct with New.
type Graph struct {
	mu sync.RWMutex

	dimension      int
	m              int
	efConstruction int
	efSearch       int
	levelFactor    float64
	metric         vector.Metric
	distFunc       distance.Func
	rng            *rand.Rand

	arena      []*node
	idIndex    map[string]NodeIdx
	tombstones *bitset.BitSet

	entryPoint NodeIdx
	hasEntry   bool
	topLevel   int
}

// New constructs a graph for the given dimension and metric. Parameters
// outside their declared bounds are clamped rather than rejected, since a
// collection's configuration may be loaded from an older archive whose
// defaults have since moved. seed controls the layer-assignment RNG;
// callers that need deterministic graphs (tests) pass a fixed seed,
// production callers pass a fresh one per collection.
func New(dimension, m, efConstruction, efSearch int, metric vector.Metric, seed int64) *Graph {
	if m < MinM {
		m = MinM
	}
	if m > MaxM {
		m = MaxM
	}
	if efConstruction < MinEfConstruction {
		efConstruction = MinEfConstruction
	}
	if efConstruction > MaxEfConstruction {
		efConstruction = MaxEfConstruction
	}
	if efSearch < m {
		efSearch = m
	}
	if efSearch > MaxEfSearch {
		efSearch = MaxEfSearch
	}

	return &Graph{
		dimension:      dimension,
		m:              m,
		efConstruction: efConstruction,
		efSearch:       efSearch,
		levelFactor:    1.0 / math.Log(float64(m)),
		metric:         metric,
		distFunc:       distance.ForMetric(metric),
		rng:            rand.New(rand.NewSource(seed)),
		idIndex:        make(map[string]NodeIdx),
		tombstones:     bitset.New(0),
	}
}

// Dimension returns the graph's fixed vector width.
func (g *Graph) Dimension() int { return g.dimension }

// Len returns the number of live (non-tombstoned) ids.
func (g *Graph) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.idIndex)
}

// Contains reports whether id is currently live in the graph.
func (g *Graph) Contains(id string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.idIndex[id]
	return ok
}

func (g *Graph) mMax(layer int) int {
	if layer == 0 {
		return g.m * 2
	}
	return g.m
}

// randomLevel draws the probabilistic top layer for a new node:
// level = floor(-ln(U(0,1)) * m_L), m_L = 1/ln(M).
func (g *Graph) randomLevel() int {
	u := g.rng.Float64()
	for u == 0 {
		u = g.rng.Float64()
	}
	level := int(math.Floor(-math.Log(u) * g.levelFactor))
	if level > maxLevel {
		level = maxLevel
	}
	return level
}

// Insert adds id with vec to the graph, or replaces it if id is already
// present. A replace tombstones the prior node immediately; the physical
// slot is reclaimed only by Compact.
func (g *Graph) Insert(id string, vec []float32) error {
	if len(vec) != g.dimension {
		return fmt.Errorf("hnsw: vector dimension %d does not match index dimension %d", len(vec), g.dimension)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if existing, ok := g.idIndex[id]; ok {
		g.tombstoneLocked(existing, id)
	}

	level := g.randomLevel()
	idx := g.allocate(id, vec, level)

	if !g.hasEntry {
		g.entryPoint = idx
		g.hasEntry = true
		g.topLevel = level
		return nil
	}

	curr := g.entryPoint
	for layer := g.topLevel; layer > level; layer-- {
		curr = g.greedyClosest(vec, curr, layer)
	}

	top := level
	if g.topLevel < top {
		top = g.topLevel
	}
	for layer := top; layer >= 0; layer-- {
		candidates := g.searchLayer(vec, []NodeIdx{curr}, g.efConstruction, layer)
		neighbors := g.selectNeighborsHeuristic(vec, candidates, g.mMax(layer))
		g.arena[idx].neighbors[layer] = neighbors

		for _, n := range neighbors {
			g.addConnection(n, idx, layer)
			g.pruneIfOverfull(n, layer)
		}

		if len(candidates) > 0 {
			curr = candidates[0]
		}
	}

	if level > g.topLevel {
		g.topLevel = level
		g.entryPoint = idx
	}

	return nil
}

func (g *Graph) allocate(id string, vec []float32, level int) NodeIdx {
	n := &node{id: id, vector: vec, level: level, neighbors: make([][]NodeIdx, level+1)}
	for l := 0; l <= level; l++ {
		n.neighbors[l] = make([]NodeIdx, 0, g.mMax(l))
	}

	idx := NodeIdx(len(g.arena))
	g.arena = append(g.arena, n)
	g.idIndex[id] = idx
	return idx
}

// greedyClosest descends a single layer from from, repeatedly hopping to
// the closest neighbor until no neighbor improves on the current node.
func (g *Graph) greedyClosest(query []float32, from NodeIdx, layer int) NodeIdx {
	current := from
	currentDist := g.distFunc(query, g.arena[current].vector)

	for {
		improved := false
		if layer < len(g.arena[current].neighbors) {
			for _, n := range g.arena[current].neighbors[layer] {
				if g.tombstones.Test(uint(n)) {
					continue
				}
				d := g.distFunc(query, g.arena[n].vector)
				if d < currentDist {
					current = n
					currentDist = d
					improved = true
				}
			}
		}
		if !improved {
			return current
		}
	}
}

type heapItem struct {
	idx  NodeIdx
	dist float32
}

type minHeap []heapItem

func (h minHeap) Len() int            { return len(h) }
func (h minHeap) Less(i, j int) bool  { return h[i].dist < h[j].dist }
func (h minHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *minHeap) Push(x interface{}) { *h = append(*h, x.(heapItem)) }
func (h *minHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

type maxHeap []heapItem

func (h maxHeap) Len() int            { return len(h) }
func (h maxHeap) Less(i, j int) bool  { return h[i].dist > h[j].dist }
func (h maxHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *maxHeap) Push(x interface{}) { *h = append(*h, x.(heapItem)) }
func (h *maxHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// searchLayer is the core greedy beam search at a single layer: it
// explores from entryPoints, maintaining a bounded (size ef) result set,
// until no remaining candidate can improve on the worst kept result.
// Tombstoned nodes are excluded from both traversal and results. The
// returned slice is ordered closest-first.
func (g *Graph) searchLayer(query []float32, entryPoints []NodeIdx, ef, layer int) []NodeIdx {
	visited := make(map[NodeIdx]bool, ef*2)
	candidates := &minHeap{}
	results := &maxHeap{}

	for _, ep := range entryPoints {
		if g.tombstones.Test(uint(ep)) {
			continue
		}
		d := g.distFunc(query, g.arena[ep].vector)
		heap.Push(candidates, heapItem{ep, d})
		heap.Push(results, heapItem{ep, d})
		visited[ep] = true
	}

	for candidates.Len() > 0 {
		c := (*candidates)[0]
		if results.Len() >= ef && c.dist > (*results)[0].dist {
			break
		}
		heap.Pop(candidates)

		cur := g.arena[c.idx]
		if layer >= len(cur.neighbors) {
			continue
		}
		for _, n := range cur.neighbors[layer] {
			if visited[n] || g.tombstones.Test(uint(n)) {
				continue
			}
			visited[n] = true

			d := g.distFunc(query, g.arena[n].vector)
			if results.Len() < ef || d < (*results)[0].dist {
				heap.Push(candidates, heapItem{n, d})
				heap.Push(results, heapItem{n, d})
				if results.Len() > ef {
					heap.Pop(results)
				}
			}
		}
	}

	out := make([]NodeIdx, results.Len())
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = heap.Pop(results).(heapItem).idx
	}
	return out
}

// selectNeighborsHeuristic picks up to m candidates closest to query,
// subject to a diversity filter: a candidate c is accepted only if no
// already-accepted neighbor n is closer to c than c is to query. Because
// candidates are visited closest-first, every already-accepted n is at
// least as close to query as c, so the filter reduces to "reject c if
// some accepted n is closer to c than query is."
func (g *Graph) selectNeighborsHeuristic(query []float32, candidates []NodeIdx, m int) []NodeIdx {
	type scored struct {
		idx  NodeIdx
		dist float32
	}
	pool := make([]scored, len(candidates))
	for i, c := range candidates {
		pool[i] = scored{c, g.distFunc(query, g.arena[c].vector)}
	}
	sort.Slice(pool, func(i, j int) bool { return pool[i].dist < pool[j].dist })

	selected := make([]NodeIdx, 0, m)
	for _, cand := range pool {
		if len(selected) >= m {
			break
		}
		admit := true
		for _, s := range selected {
			if g.distFunc(g.arena[s].vector, g.arena[cand.idx].vector) < cand.dist {
				admit = false
				break
			}
		}
		if admit {
			selected = append(selected, cand.idx)
		}
	}
	return selected
}

func (g *Graph) addConnection(from, to NodeIdx, layer int) {
	n := g.arena[from]
	if layer >= len(n.neighbors) {
		return
	}
	for _, existing := range n.neighbors[layer] {
		if existing == to {
			return
		}
	}
	n.neighbors[layer] = append(n.neighbors[layer], to)
}

func (g *Graph) pruneIfOverfull(idx NodeIdx, layer int) {
	n := g.arena[idx]
	max := g.mMax(layer)
	if len(n.neighbors[layer]) <= max {
		return
	}
	n.neighbors[layer] = g.selectNeighborsHeuristic(n.vector, n.neighbors[layer], max)
}

// Search returns the k nearest live ids to query. ef is the candidate
// list width at layer 0; it is silently raised to k if smaller. An empty
// graph returns (nil, nil).
func (g *Graph) Search(query []float32, k, ef int) ([]Result, error) {
	if len(query) != g.dimension {
		return nil, fmt.Errorf("hnsw: query dimension %d does not match index dimension %d", len(query), g.dimension)
	}

	g.mu.RLock()
	defer g.mu.RUnlock()

	if !g.hasEntry {
		return nil, nil
	}
	if ef < k {
		ef = k
	}

	curr := g.entryPoint
	for layer := g.topLevel; layer > 0; layer-- {
		curr = g.greedyClosest(query, curr, layer)
	}

	candidates := g.searchLayer(query, []NodeIdx{curr}, ef, 0)

	results := make([]Result, 0, len(candidates))
	for _, idx := range candidates {
		n := g.arena[idx]
		results = append(results, Result{ID: n.id, Distance: g.distFunc(query, n.vector)})
	}
	// searchLayer's heap order is not a total order on ties; re-sort with
	// the id as a deterministic tie-break per spec.md §4.3.
	sort.Slice(results, func(i, j int) bool {
		if results[i].Distance != results[j].Distance {
			return results[i].Distance < results[j].Distance
		}
		return results[i].ID < results[j].ID
	})
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// Vector returns a copy of the stored full-precision vector for a live id.
func (g *Graph) Vector(id string) ([]float32, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	idx, ok := g.idIndex[id]
	if !ok {
		return nil, false
	}
	return append([]float32(nil), g.arena[idx].vector...), true
}

// Ids returns every live id currently in the graph, in arbitrary order.
func (g *Graph) Ids() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]string, 0, len(g.idIndex))
	for id := range g.idIndex {
		out = append(out, id)
	}
	return out
}

// Delete tombstones id: it is excluded from future candidates and
// neighbor pruning, but its edges are not rewired until Compact runs. If
// id was the entry point, the highest-layer live neighbor among its own
// edges becomes the new entry point, or the graph is left with no entry
// point if none of its neighbors are live.
func (g *Graph) Delete(id string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	idx, ok := g.idIndex[id]
	if !ok {
		return false
	}
	g.tombstoneLocked(idx, id)
	return true
}

func (g *Graph) tombstoneLocked(idx NodeIdx, id string) {
	g.tombstones.Set(uint(idx))
	delete(g.idIndex, id)

	if g.hasEntry && g.entryPoint == idx {
		g.reassignEntryPoint(idx)
	}
}

func (g *Graph) reassignEntryPoint(deletedIdx NodeIdx) {
	deleted := g.arena[deletedIdx]

	var best NodeIdx
	bestLevel := -1
	found := false

	for layer := deleted.level; layer >= 0; layer-- {
		for _, n := range deleted.neighbors[layer] {
			if g.tombstones.Test(uint(n)) {
				continue
			}
			if g.arena[n].level > bestLevel {
				bestLevel = g.arena[n].level
				best = n
				found = true
			}
		}
	}

	if !found {
		g.hasEntry = false
		g.topLevel = 0
		return
	}

	g.entryPoint = best
	g.topLevel = bestLevel
}

// Compact rebuilds the arena without tombstoned nodes, remapping every
// neighbor reference. This is the only point at which a tombstoned
// node's slot is physically reclaimed.
func (g *Graph) Compact() {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.tombstones.Count() == 0 {
		return
	}

	remap := make(map[NodeIdx]NodeIdx, len(g.arena))
	newArena := make([]*node, 0, len(g.arena)-int(g.tombstones.Count()))
	for i, n := range g.arena {
		idx := NodeIdx(i)
		if g.tombstones.Test(uint(idx)) {
			continue
		}
		remap[idx] = NodeIdx(len(newArena))
		newArena = append(newArena, n)
	}

	for _, n := range newArena {
		for layer := range n.neighbors {
			kept := n.neighbors[layer][:0]
			for _, old := range n.neighbors[layer] {
				if newIdx, ok := remap[old]; ok {
					kept = append(kept, newIdx)
				}
			}
			n.neighbors[layer] = kept
		}
	}

	g.idIndex = make(map[string]NodeIdx, len(newArena))
	for i, n := range newArena {
		g.idIndex[n.id] = NodeIdx(i)
	}

	if g.hasEntry {
		if newIdx, ok := remap[g.entryPoint]; ok {
			g.entryPoint = newIdx
		} else {
			g.hasEntry = false
		}
	}

	g.arena = newArena
	g.tombstones = bitset.New(uint(len(newArena)))
}

// NodeSnapshot is the serializable form of one arena node: its id, its
// full-precision vector, its top layer, and its per-layer neighbor lists
// addressed by id (not NodeIdx, since the arena layout is not stable
// across save/load).
type NodeSnapshot struct {
	ID        string
	Vector    []float32
	Level     int
	Neighbors [][]string // Neighbors[layer] = neighbor ids
}

// Snapshot is the full exported state of a graph, suitable for writing to
// a compact archive collection section (spec.md §6).
type Snapshot struct {
	Dimension      int
	M              int
	EfConstruction int
	EfSearch       int
	Metric         vector.Metric
	Nodes          []NodeSnapshot
	EntryPointID   string
	HasEntry       bool
	TopLevel       int
}

// Export produces a Snapshot of the live (non-tombstoned) graph state.
// Tombstoned nodes are dropped, matching Compact's semantics, so a
// save/load round trip never resurrects a deleted id.
func (g *Graph) Export() Snapshot {
	g.mu.RLock()
	defer g.mu.RUnlock()

	snap := Snapshot{
		Dimension:      g.dimension,
		M:              g.m,
		EfConstruction: g.efConstruction,
		EfSearch:       g.efSearch,
		Metric:         g.metric,
		HasEntry:       g.hasEntry,
		TopLevel:       g.topLevel,
	}
	if g.hasEntry {
		snap.EntryPointID = g.arena[g.entryPoint].id
	}

	for i, n := range g.arena {
		if g.tombstones.Test(uint(i)) {
			continue
		}
		ns := NodeSnapshot{
			ID:        n.id,
			Vector:    append([]float32(nil), n.vector...),
			Level:     n.level,
			Neighbors: make([][]string, len(n.neighbors)),
		}
		for layer, neighbors := range n.neighbors {
			ids := make([]string, 0, len(neighbors))
			for _, nb := range neighbors {
				if g.tombstones.Test(uint(nb)) {
					continue
				}
				ids = append(ids, g.arena[nb].id)
			}
			ns.Neighbors[layer] = ids
		}
		snap.Nodes = append(snap.Nodes, ns)
	}
	return snap
}

// FromSnapshot rebuilds a graph from a previously Exported Snapshot,
// preserving adjacency exactly (no re-insertion, no re-randomized
// layers) so that save-then-load is identity on graph structure. seed
// re-seeds the RNG used for any future inserts into the restored graph.
func FromSnapshot(snap Snapshot, seed int64) (*Graph, error) {
	g := New(snap.Dimension, snap.M, snap.EfConstruction, snap.EfSearch, snap.Metric, seed)

	idIdx := make(map[string]NodeIdx, len(snap.Nodes))
	for i, ns := range snap.Nodes {
		if len(ns.Vector) != snap.Dimension {
			return nil, fmt.Errorf("hnsw: snapshot node %q has dimension %d, want %d", ns.ID, len(ns.Vector), snap.Dimension)
		}
		idx := NodeIdx(i)
		idIdx[ns.ID] = idx
		g.arena = append(g.arena, &node{
			id:        ns.ID,
			vector:    ns.Vector,
			level:     ns.Level,
			neighbors: make([][]NodeIdx, len(ns.Neighbors)),
		})
		g.idIndex[ns.ID] = idx
	}

	for i, ns := range snap.Nodes {
		for layer, neighborIDs := range ns.Neighbors {
			neighbors := make([]NodeIdx, 0, len(neighborIDs))
			for _, nid := range neighborIDs {
				nidx, ok := idIdx[nid]
				if !ok {
					return nil, fmt.Errorf("hnsw: snapshot node %q references unknown neighbor %q", ns.ID, nid)
				}
				neighbors = append(neighbors, nidx)
			}
			g.arena[i].neighbors[layer] = neighbors
		}
	}

	g.tombstones = bitset.New(uint(len(g.arena)))
	if snap.HasEntry {
		idx, ok := idIdx[snap.EntryPointID]
		if !ok {
			return nil, fmt.Errorf("hnsw: snapshot entry point %q not found among nodes", snap.EntryPointID)
		}
		g.entryPoint = idx
		g.hasEntry = true
		g.topLevel = snap.TopLevel
	}
	return g, nil
}
