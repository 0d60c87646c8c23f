package sources

import (
	"sort"
	"strings"

	"dtmoney/internal/core"
)

// NormalizeQuery is the canonical form used for cache keys. Two queries with
// the same normal form match the same transactions.
func NormalizeQuery(q string) string {
	return strings.ToLower(strings.TrimSpace(q))
}

// FilterAndSort applies the shared search semantics to an in-memory list:
// case-insensitive match on description or category, newest first.
// The input slice is not modified.
func FilterAndSort(all []core.Transaction, query string) []core.Transaction {
	out := make([]core.Transaction, 0, len(all))
	for _, t := range all {
		if t.Matches(query) {
			out = append(out, t)
		}
	}
	SortNewestFirst(out)
	return out
}

// SortNewestFirst orders by CreatedAt descending, keeping insertion order on ties.
func SortNewestFirst(txs []core.Transaction) {
	sort.SliceStable(txs, func(i, j int) bool {
		return txs[i].CreatedAt.After(txs[j].CreatedAt)
	})
}
