// Package normalize implements the content-aware text normalization
// levels a collection applies before its text reaches the embedding
// provider (spec.md §4.4).
package normalize

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/vecdbhq/vecdb/internal/vector"
)

var (
	blankRunPattern = regexp.MustCompile(`\n{3,}`)
	// punctRunPattern matches three or more copies of one ASCII punctuation
	// character; RE2 has no backreferences, so each character is listed.
	punctRunPattern = regexp.MustCompile(`!{3,}|"{3,}|#{3,}|\${3,}|%{3,}|&{3,}|'{3,}|\({3,}|\){3,}|\*{3,}|\+{3,}|,{3,}|-{3,}|\.{3,}|/{3,}|:{3,}|;{3,}|<{3,}|={3,}|>{3,}|\?{3,}|@{3,}|\[{3,}|\\{3,}|\]{3,}|\^{3,}|_{3,}|\{{3,}|\|{3,}|\}{3,}|~{3,}|` + "`{3,}")
)

// Apply runs the text through the normalization pipeline for level.
// Each level is a strict superset of the levels below it, so
// Apply(Apply(s, l), l) == Apply(s, l) for every level.
func Apply(text string, level vector.NormalizationLevel) string {
	switch level {
	case vector.NormalizationConservative:
		return conservative(text)
	case vector.NormalizationModerate:
		return moderate(text)
	case vector.NormalizationAggressive:
		return aggressive(text)
	default:
		return text
	}
}

// conservative normalizes line endings, trims trailing whitespace per
// line, and collapses runs of 3+ blank lines into a single blank line.
func conservative(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRight(l, " \t")
	}
	text = strings.Join(lines, "\n")

	return blankRunPattern.ReplaceAllString(text, "\n\n")
}

// moderate additionally lowercases and strips control characters
// (unicode.IsControl) other than newline, tab and carriage return, then
// applies conservative, so whitespace left exposed by a removed control
// character is trimmed in the same pass.
func moderate(text string) string {
	text = strings.ToLower(text)

	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if r == '\n' || r == '\t' || r == '\r' {
			b.WriteRune(r)
			continue
		}
		if unicode.IsControl(r) {
			continue
		}
		b.WriteRune(r)
	}
	return conservative(b.String())
}

// aggressive additionally folds Unicode compatibility forms (NFKC) so
// visually-equivalent characters compare equal, and collapses each run of
// three or more of the same ASCII punctuation character to one. NFKC runs
// first, so characters it expands (such as "…" to "...") are collapsed and
// lowercased in the same pass.
func aggressive(text string) string {
	text = moderate(norm.NFKC.String(text))
	return punctRunPattern.ReplaceAllStringFunc(text, func(run string) string { return run[:1] })
}
