// Package symbols implements canonical-ticker normalisation, the static
// Directory, and the Symbol Resolver's scored-candidate algorithm.
package symbols

import "strings"

// Normalise upper-cases and trims whitespace to produce the canonical
// ticker form used as a cache key and API input. Idempotent:
// Normalise(Normalise(x)) == Normalise(x).
func Normalise(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}

// Variants generates syntactic candidate external symbols from a
// canonical ticker: whitespace collapsed then replaced by "." or "-", and
// a ".US" suffixed form, matching §4.4 step 1's "syntactic variants".
func Variants(canonical string) []string {
	collapsed := strings.Join(strings.Fields(canonical), "")
	variants := []string{
		strings.Join(strings.Fields(canonical), "."),
		strings.Join(strings.Fields(canonical), "-"),
		collapsed + ".US",
	}
	// Deduplicate while preserving order.
	seen := make(map[string]bool, len(variants))
	out := make([]string, 0, len(variants))
	for _, v := range variants {
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

// CSVSymbol derives the CSV Daily-Bar Provider's secondary external symbol:
// lowercase, strip punctuation, append ".us" when no dot is present.
func CSVSymbol(canonical string) string {
	var b strings.Builder
	hasDot := false
	for _, r := range strings.ToLower(canonical) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.':
			hasDot = true
			b.WriteRune(r)
		case r == '-':
			b.WriteRune(r)
		// whitespace and other punctuation are dropped
		default:
		}
	}
	s := b.String()
	if !hasDot {
		s += ".us"
	}
	return s
}
