// Versioned moderation policy: an ordered list of banned terms plus the strategy used to match them against submitted text.
//
// Order matters. When several terms occur in one submission, the term earliest in the lexicon is the one reported, regardless of where each occurs in the text.
package policy

import (
	"fmt"
	"strings"

	"github.com/tixo-social/tixo/automod/keyword"
)

type MatchStrategy string

const (
	// case-insensitive substring match; "skill" matches the term "kill"
	MatchSubstring MatchStrategy = "substring"
	// whole-token match after case and diacritic folding
	MatchToken MatchStrategy = "token"
)

type Lexicon struct {
	Version  string        `json:"version" yaml:"version"`
	Terms    []string      `json:"terms" yaml:"terms"`
	Strategy MatchStrategy `json:"strategy,omitempty" yaml:"strategy,omitempty"`
}

var defaultTerms = []string{"hate", "kill", "violence", "xxx", "nude", "nsfw", "attack", "stupid", "die"}

// The built-in lexicon, used when no policy file is configured.
func DefaultLexicon() *Lexicon {
	terms := make([]string, len(defaultTerms))
	copy(terms, defaultTerms)
	return &Lexicon{
		Version:  "builtin-1",
		Terms:    terms,
		Strategy: MatchSubstring,
	}
}

// Checks that the lexicon is usable, and canonicalizes terms to lower-case. Empty strategy is treated as substring.
func (l *Lexicon) Validate() error {
	if len(l.Terms) == 0 {
		return fmt.Errorf("policy lexicon has no terms")
	}
	switch l.Strategy {
	case "":
		l.Strategy = MatchSubstring
	case MatchSubstring, MatchToken:
	default:
		return fmt.Errorf("unknown policy match strategy: %q", l.Strategy)
	}
	seen := make(map[string]bool, len(l.Terms))
	for i, t := range l.Terms {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			return fmt.Errorf("policy lexicon term %d is empty", i)
		}
		if seen[t] {
			return fmt.Errorf("duplicate policy lexicon term: %q", t)
		}
		seen[t] = true
		l.Terms[i] = t
	}
	return nil
}

// Returns the first lexicon term (in lexicon order) which occurs in text. The returned term is lower-case.
//
// Terms are compared case-insensitively even if the lexicon was never validated.
func (l *Lexicon) Match(text string) (string, bool) {
	if l.Strategy == MatchToken {
		term, ok := keyword.FirstTermInTokens(text, l.Terms)
		return strings.ToLower(strings.TrimSpace(term)), ok
	}
	lower := strings.ToLower(text)
	for _, t := range l.Terms {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if strings.Contains(lower, t) {
			return t, true
		}
	}
	return "", false
}
