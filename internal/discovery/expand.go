package discovery

import (
	"context"
	"strings"
)

// VariantExpander expands a query into the "definition, features,
// architecture" bundle spec.md §4.11 stage 3 names, rather than a
// synonym dictionary: each variant re-aims the same search at a
// different facet of the subject so the broad multi-collection pass in
// stage 4 surfaces complementary evidence instead of near-duplicate
// hits.
type VariantExpander struct{}

// Expand returns the original query plus three re-aimed variants.
func (VariantExpander) Expand(_ context.Context, query string) ([]string, error) {
	q := strings.TrimSpace(query)
	if q == "" {
		return []string{query}, nil
	}
	return []string{
		q,
		"what is " + q,
		q + " features and capabilities",
		q + " architecture and design",
	}, nil
}

var _ Expander = VariantExpander{}
