// Package discovery implements C12: the nine-stage discovery pipeline
// that sits on top of C11's search composer — filter and rank candidate
// collections, expand the query, scatter/gather across collections,
// diversify, promote overview documents, compress evidence, and emit a
// citation-bearing answer (spec.md §4.11).
package discovery

import (
	"context"
	"path/filepath"
	"sort"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/vecdbhq/vecdb/internal/collection"
	"github.com/vecdbhq/vecdb/internal/search"
	"github.com/vecdbhq/vecdb/internal/telemetry"
)

// CollectionSource resolves collection names and their live handles,
// the narrow slice of *vectorstore.VectorStore discovery needs.
type CollectionSource interface {
	List() []string
	Get(name string) (*collection.Collection, error)
}

// Config tunes the pipeline's per-stage budgets.
type Config struct {
	MaxCollections   int     // stage 2: how many top-scored collections feed stages 4-5
	BroadPerColl     int     // stage 4: max hits per collection in the broad pass
	FocusK           int     // stage 5: hits per collection in the focus pass
	MMRLambda        float64 // stage 6
	FinalK           int     // results returned after stage 6
	READMEBoost      float64 // stage 7: additive bonus for overview documents
	BulletBudget     int     // stage 8: max extracted sentences
	ExpansionCacheSz int
}

// DefaultConfig returns the pipeline's default budgets.
func DefaultConfig() Config {
	return Config{
		MaxCollections:   5,
		BroadPerColl:     20,
		FocusK:           10,
		MMRLambda:        search.DefaultMMRLambda,
		FinalK:           10,
		READMEBoost:      0.05,
		BulletBudget:     6,
		ExpansionCacheSz: 256,
	}
}

// Citation points back to the exact chunk a piece of evidence came from.
type Citation struct {
	CollectionName string
	ChunkID        string
	FilePath       string
	ChunkIndex     int
}

// Finding is one piece of compressed evidence with its citation.
type Finding struct {
	Text     string
	Score    float64
	Citation Citation
}

// Answer is the discovery pipeline's structured, citation-bearing output.
type Answer struct {
	Query            string
	ExpandedQueries  []string
	CollectionsUsed  []string
	Findings         []Finding
	ExpansionFailed  bool
	RerankingSkipped bool
}

// Expander turns a query into a small bundle of variants. A failing (or
// nil) Expander falls back to just the original query (spec.md §4.11:
// "a failing expander falls back to the original query").
type Expander interface {
	Expand(ctx context.Context, query string) ([]string, error)
}

// Pipeline runs the nine discovery stages over a set of collections.
type Pipeline struct {
	source   CollectionSource
	expander Expander
	reranker search.Reranker
	cfg      Config
	cache    *lru.Cache[string, []string]
	metrics  *telemetry.QueryMetrics
}

// New builds a Pipeline. expander and reranker may both be nil; a nil
// expander makes stage 3 fall back to the original query per spec.md
// §4.11. The reranker is stored but Run does not apply it to results:
// Answer.RerankingSkipped only reports whether a reranker was supplied.
func New(source CollectionSource, expander Expander, reranker search.Reranker, cfg Config) *Pipeline {
	if cfg.MaxCollections <= 0 {
		cfg = DefaultConfig()
	}
	cache, _ := lru.New[string, []string](cfg.ExpansionCacheSz)
	return &Pipeline{source: source, expander: expander, reranker: reranker, cfg: cfg, cache: cache}
}

// WithMetrics attaches a query metrics collector; every Run call records a
// telemetry.QueryEvent after stage 9 completes. Passing nil disables
// recording (the default).
func (p *Pipeline) WithMetrics(m *telemetry.QueryMetrics) *Pipeline {
	p.metrics = m
	return p
}

// Run executes all nine stages for query, restricting candidate
// collections to those whose name matches one of namePatterns (glob
// syntax; nil/empty means "all collections").
func (p *Pipeline) Run(ctx context.Context, query string, namePatterns []string) (*Answer, error) {
	start := time.Now()
	// Stage 1: filter candidate collections by name pattern.
	candidates := filterCollectionNames(p.source.List(), namePatterns)

	// Stage 2: score and rank collections by a cheap relevance probe.
	ranked, err := p.rankCollections(ctx, query, candidates)
	if err != nil {
		return nil, err
	}
	top := ranked
	if len(top) > p.cfg.MaxCollections {
		top = top[:p.cfg.MaxCollections]
	}

	cols := make([]*collection.Collection, 0, len(top))
	for _, name := range top {
		c, err := p.source.Get(name)
		if err != nil {
			continue
		}
		cols = append(cols, c)
	}

	// Stage 3: expand the query into variants.
	expanded, expansionFailed := p.expand(ctx, query)

	// Stage 4: broad multi-collection search across every expansion.
	broad := make([]search.Result, 0, len(cols)*p.cfg.BroadPerColl)
	for _, q := range expanded {
		hits, err := search.MultiCollectionSearch(ctx, cols, q, p.cfg.BroadPerColl)
		if err != nil {
			continue
		}
		broad = append(broad, hits...)
	}

	// Stage 5: per-collection focus search using the top collections,
	// against the original query only (the highest-precision signal).
	for _, c := range cols {
		hits, err := search.Search(ctx, c, query, p.cfg.FocusK, 0)
		if err != nil {
			continue
		}
		broad = append(broad, hits...)
	}

	// Stage 6: dedup (by collection+id) and MMR-diversify.
	deduped := dedupResults(broad)
	diversified := p.diversify(cols, deduped)

	// Stage 7: README/overview promotion.
	boosted := promoteOverviews(diversified, p.cfg.READMEBoost)
	sort.Slice(boosted, func(i, j int) bool { return boosted[i].Score > boosted[j].Score })
	if len(boosted) > p.cfg.FinalK {
		boosted = boosted[:p.cfg.FinalK]
	}

	// Stage 8: evidence compression.
	findings := compressEvidence(boosted, p.cfg.BulletBudget)

	// Stage 9: citation-bearing structured output.
	collectionsUsed := make([]string, len(top))
	copy(collectionsUsed, top)

	if p.metrics != nil {
		qt := telemetry.QueryTypeSemantic
		if len(expanded) > 1 {
			qt = telemetry.QueryTypeMixed
		}
		p.metrics.Record(telemetry.QueryEvent{
			Query:       query,
			QueryType:   qt,
			ResultCount: len(findings),
			Latency:     time.Since(start),
			Timestamp:   start,
		})
	}

	return &Answer{
		Query:            query,
		ExpandedQueries:  expanded,
		CollectionsUsed:  collectionsUsed,
		Findings:         findings,
		ExpansionFailed:  expansionFailed,
		RerankingSkipped: p.reranker == nil,
	}, nil
}

func filterCollectionNames(names []string, patterns []string) []string {
	if len(patterns) == 0 {
		return names
	}
	out := make([]string, 0, len(names))
	for _, n := range names {
		for _, pat := range patterns {
			if ok, _ := filepath.Match(pat, n); ok {
				out = append(out, n)
				break
			}
		}
	}
	return out
}

// rankCollections scores each candidate by the top hit score a quick
// probe search returns, so "which collections matter for this query"
// is itself relevance-driven rather than size- or recency-driven.
func (p *Pipeline) rankCollections(ctx context.Context, query string, names []string) ([]string, error) {
	type scored struct {
		name  string
		score float64
	}
	scoredAll := make([]scored, 0, len(names))
	for _, name := range names {
		c, err := p.source.Get(name)
		if err != nil {
			continue
		}
		hits, err := search.Search(ctx, c, query, 1, 0)
		best := 0.0
		if err == nil && len(hits) > 0 {
			best = hits[0].Score
		}
		scoredAll = append(scoredAll, scored{name: name, score: best})
	}
	sort.Slice(scoredAll, func(i, j int) bool {
		if scoredAll[i].score != scoredAll[j].score {
			return scoredAll[i].score > scoredAll[j].score
		}
		return scoredAll[i].name < scoredAll[j].name
	})
	out := make([]string, len(scoredAll))
	for i, s := range scoredAll {
		out[i] = s.name
	}
	return out, nil
}

func (p *Pipeline) expand(ctx context.Context, query string) ([]string, bool) {
	if cached, ok := p.cache.Get(query); ok {
		return cached, false
	}
	if p.expander == nil {
		return []string{query}, true
	}
	variants, err := p.expander.Expand(ctx, query)
	if err != nil || len(variants) == 0 {
		return []string{query}, true
	}
	p.cache.Add(query, variants)
	return variants, false
}

func dedupResults(results []search.Result) []search.Result {
	seen := make(map[string]int, len(results))
	out := make([]search.Result, 0, len(results))
	for _, r := range results {
		key := r.CollectionName + "\x00" + r.ID
		if idx, ok := seen[key]; ok {
			if r.Score > out[idx].Score {
				out[idx] = r
			}
			continue
		}
		seen[key] = len(out)
		out = append(out, r)
	}
	return out
}

func (p *Pipeline) diversify(cols []*collection.Collection, results []search.Result) []search.Result {
	byName := make(map[string]*collection.Collection, len(cols))
	for _, c := range cols {
		byName[c.Name()] = c
	}

	candidates := make([]search.MMRCandidate, len(results))
	byKey := make(map[string]search.Result, len(results))
	for i, r := range results {
		var values []float32
		if c, ok := byName[r.CollectionName]; ok {
			if v, err := c.Get(r.ID); err == nil {
				values = v.Values
			}
		}
		key := r.CollectionName + "\x00" + r.ID
		candidates[i] = search.MMRCandidate{ID: key, Relevance: r.Score, Vector: values}
		byKey[key] = r
	}

	lambda := p.cfg.MMRLambda
	if lambda <= 0 {
		lambda = search.DefaultMMRLambda
	}
	selected := search.MMRSelect(candidates, lambda, p.cfg.FinalK, search.CosineSimilarity)
	out := make([]search.Result, len(selected))
	for i, c := range selected {
		out[i] = byKey[c.ID]
	}
	return out
}

// promoteOverviews gives a bounded score boost to results whose source
// file looks like a README or project overview document (spec.md §4.11
// stage 7).
func promoteOverviews(results []search.Result, boost float64) []search.Result {
	out := make([]search.Result, len(results))
	copy(out, results)
	for i := range out {
		path, _ := out[i].Payload["file_path"].(string)
		if isOverviewPath(path) {
			out[i].Score += boost
		}
	}
	return out
}

func isOverviewPath(path string) bool {
	base := strings.ToLower(filepath.Base(path))
	switch {
	case strings.HasPrefix(base, "readme"):
		return true
	case base == "overview.md", base == "index.md":
		return true
	default:
		return false
	}
}
