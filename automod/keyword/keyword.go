package keyword

import (
	"slices"
	"strings"
)

// Helper to check a single token against a list of tokens
func TokenInSet(tok string, set []string) bool {
	return slices.Contains(set, tok)
}

// Returns the first entry of `terms` (in list order, not text order) which appears as a token of `text`.
//
// Multi-word terms match a contiguous run of tokens.
func FirstTermInTokens(text string, terms []string) (string, bool) {
	toks := TokenizeText(text)
	if len(toks) == 0 {
		return "", false
	}
	joined := " " + strings.Join(toks, " ") + " "
	for _, term := range terms {
		termToks := TokenizeText(term)
		if len(termToks) == 0 {
			continue
		}
		if len(termToks) == 1 {
			if TokenInSet(termToks[0], toks) {
				return term, true
			}
			continue
		}
		if strings.Contains(joined, " "+strings.Join(termToks, " ")+" ") {
			return term, true
		}
	}
	return "", false
}

// Canonical form of free-form text, for equality comparisons which should ignore case, punctuation, and diacritics.
func Normalize(text string) string {
	return strings.Join(TokenizeText(text), " ")
}
