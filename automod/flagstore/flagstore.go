// Private moderation flags on accounts, such as which policy terms an account has tripped and whether it was suspended.
//
// Flags are informational (surfaced to moderators and the trust API); they never drive verdicts. Trust decisions live in the trust ledger.
package flagstore

import (
	"context"
	"sort"
)

type FlagStore interface {
	Get(ctx context.Context, key string) ([]string, error)
	Add(ctx context.Context, key string, flags []string) error
	Remove(ctx context.Context, key string, flags []string) error
}

func dedupeStrings(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		if seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
