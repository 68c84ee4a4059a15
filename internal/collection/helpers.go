package collection

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
)

// deterministicID synthesizes a stable vector id for text-API inserts
// that don't supply one, per spec.md §3: "identifier ... synthesized
// deterministically from the text when inserted via the text API."
// Keying on the model id too means switching embedding models (which a
// fresh collection is required for, see PolicyViolation above) never
// collides ids across models.
func deterministicID(modelID, text string) string {
	h := sha256.Sum256([]byte(modelID + "\x00" + text))
	return hex.EncodeToString(h[:])[:32]
}

func sortStrings(s []string) { sort.Strings(s) }

// topN reorders pool in place so its first n elements (by less) are the
// smallest n, leaving the rest in arbitrary order. It is a correctness-
// first partial sort (full sort), not a selection algorithm; candidate
// pools here are bounded to a handful of k's worth of items so the
// asymptotic difference doesn't matter.
func topN[T any](pool []T, n int, less func(a, b T) bool) {
	sort.Slice(pool, func(i, j int) bool { return less(pool[i], pool[j]) })
	_ = n
}

func topNResults(results []SearchResult, k int) {
	sort.Slice(results, func(i, j int) bool {
		if results[i].Distance != results[j].Distance {
			return results[i].Distance < results[j].Distance
		}
		return results[i].ID < results[j].ID
	})
	_ = k
}
