package embed

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"sync"

	"github.com/blevesearch/bleve/v2"

	"github.com/vecdbhq/vecdb/internal/vecerrors"
	"github.com/vecdbhq/vecdb/internal/vector"
)

// bm25Document is the document shape indexed into the vocabulary corpus.
type bm25Document struct {
	Content string `json:"content"`
}

// BM25SparseEmbedder implements collection.SparseEmbedder with Okapi BM25
// term weighting over a corpus-wide vocabulary. Document frequency and
// corpus length statistics are tracked in an in-memory Bleve index, which
// doubles as the "trained vocabulary" the spec's hybrid search describes.
// The vocabulary changes only when a caller runs Train again; nothing here
// measures vocabulary drift or retrains on a schedule.
type BM25SparseEmbedder struct {
	mu sync.RWMutex

	idx       bleve.Index
	docCount  int
	totalLen  int
	nextDocID int

	k1 float64
	b  float64
}

// NewBM25SparseEmbedder creates an empty BM25SparseEmbedder with the
// standard k1=1.2, b=0.75 tuning.
func NewBM25SparseEmbedder() (*BM25SparseEmbedder, error) {
	mapping := bleve.NewIndexMapping()
	idx, err := bleve.NewMemOnly(mapping)
	if err != nil {
		return nil, vecerrors.IoError("failed to create bm25 vocabulary index", err)
	}
	return &BM25SparseEmbedder{idx: idx, k1: 1.2, b: 0.75}, nil
}

// Train extends the vocabulary's document-frequency and corpus-length
// statistics with texts. It is safe to call repeatedly as the indexed
// corpus grows.
func (e *BM25SparseEmbedder) Train(texts []string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	batch := e.idx.NewBatch()
	for _, text := range texts {
		id := fmt.Sprintf("doc-%d", e.nextDocID)
		e.nextDocID++
		if err := batch.Index(id, bm25Document{Content: text}); err != nil {
			return vecerrors.IoError("bm25 vocabulary index failed", err)
		}
		e.docCount++
		e.totalLen += len(tokenize(text))
	}
	if batch.Size() == 0 {
		return nil
	}
	if err := e.idx.Batch(batch); err != nil {
		return vecerrors.IoError("bm25 vocabulary batch commit failed", err)
	}
	return nil
}

// EmbedSparse implements collection.SparseEmbedder: it tokenizes text with
// the same tokenizer the dense static embedder uses (lowercased ASCII
// letter/digit runs), then
// scores each term by Okapi BM25 against the trained corpus.
func (e *BM25SparseEmbedder) EmbedSparse(_ context.Context, text string) (vector.SparseVector, error) {
	tokens := tokenize(text)
	if len(tokens) == 0 {
		return vector.SparseVector{}, nil
	}

	tf := make(map[string]int, len(tokens))
	for _, tok := range tokens {
		tf[tok]++
	}

	e.mu.RLock()
	docCount := e.docCount
	avgLen := e.avgDocLenLocked()
	e.mu.RUnlock()
	if docCount == 0 {
		docCount = 1
	}
	docLen := float64(len(tokens))

	out := make(vector.SparseVector, len(tf))
	for term, freq := range tf {
		df, err := e.documentFrequency(term)
		if err != nil {
			continue
		}
		idf := math.Log(1 + (float64(docCount)-float64(df)+0.5)/(float64(df)+0.5))
		numerator := float64(freq) * (e.k1 + 1)
		denominator := float64(freq) + e.k1*(1-e.b+e.b*docLen/avgLen)
		weight := idf * numerator / denominator
		if weight <= 0 {
			continue
		}
		out[hashTerm(term)] = float32(weight)
	}
	return out, nil
}

func (e *BM25SparseEmbedder) avgDocLenLocked() float64 {
	if e.docCount == 0 {
		return 1
	}
	return float64(e.totalLen) / float64(e.docCount)
}

// documentFrequency returns how many trained documents contain term, via
// a zero-size term-query search (bleve's own mechanism for scoped hit
// counts without materializing results).
func (e *BM25SparseEmbedder) documentFrequency(term string) (int, error) {
	e.mu.RLock()
	idx := e.idx
	e.mu.RUnlock()

	req := bleve.NewSearchRequest(bleve.NewTermQuery(term))
	req.Size = 0
	result, err := idx.Search(req)
	if err != nil {
		return 0, err
	}
	return int(result.Total), nil
}

// hashTerm maps a vocabulary term onto the fixed uint32 key space sparse
// vectors use.
func hashTerm(term string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(term))
	return h.Sum32()
}
