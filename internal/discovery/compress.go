package discovery

import (
	"strings"

	"github.com/vecdbhq/vecdb/internal/search"
)

// compressEvidence extracts, per result, the single sentence from its
// chunk content most likely to directly answer the query — approximated
// here by the longest sentence, since the chunk content itself was
// already selected by relevance search — up to a total bullet budget
// (spec.md §4.11 stage 8: "extractive selection of sentences up to a
// bullet budget").
func compressEvidence(results []search.Result, budget int) []Finding {
	if budget <= 0 {
		budget = len(results)
	}
	findings := make([]Finding, 0, budget)
	for _, r := range results {
		if len(findings) >= budget {
			break
		}
		text, _ := r.Payload["content"].(string)
		sentence := bestSentence(text)
		if sentence == "" {
			continue
		}
		filePath, _ := r.Payload["file_path"].(string)
		chunkIndex, _ := r.Payload["chunk_index"].(int)
		findings = append(findings, Finding{
			Text:  sentence,
			Score: r.Score,
			Citation: Citation{
				CollectionName: r.CollectionName,
				ChunkID:        r.ID,
				FilePath:       filePath,
				ChunkIndex:     chunkIndex,
			},
		})
	}
	return findings
}

// bestSentence splits text on sentence-ending punctuation and returns
// the longest non-trivial sentence, on the assumption that the most
// substantive sentence in an already-relevant chunk is the one worth
// citing.
func bestSentence(text string) string {
	sentences := splitSentences(text)
	best := ""
	for _, s := range sentences {
		s = strings.TrimSpace(s)
		if len(s) > len(best) {
			best = s
		}
	}
	return best
}

func splitSentences(text string) []string {
	var out []string
	var cur strings.Builder
	for _, r := range text {
		cur.WriteRune(r)
		if r == '.' || r == '!' || r == '?' {
			out = append(out, cur.String())
			cur.Reset()
		}
	}
	if cur.Len() > 0 {
		out = append(out, cur.String())
	}
	return out
}
