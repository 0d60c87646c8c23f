// Package summary derives income, outcome and total from a store's
// current transactions.
package summary

import (
	"sync"

	"dtmoney/internal/core"
	"dtmoney/internal/store"
)

// SnapshotReader is the read side of a transaction store.
type SnapshotReader interface {
	Snapshot() *store.Snapshot
}

// Aggregator memoizes the summary of the current snapshot. The fold runs
// again only when the snapshot pointer changes.
type Aggregator struct {
	source SnapshotReader

	mu       sync.Mutex
	last     *store.Snapshot
	value    core.Summary
	computed int
}

// NewAggregator summarizes whatever source currently publishes.
func NewAggregator(source SnapshotReader) *Aggregator {
	return &Aggregator{source: source, value: core.Summarize(nil)}
}

// Summary returns the summary of the current snapshot.
func (a *Aggregator) Summary() core.Summary {
	_, sum := a.Current()
	return sum
}

// Current returns the current snapshot together with its summary, so callers
// can label the totals with the version they were computed from.
func (a *Aggregator) Current() (*store.Snapshot, core.Summary) {
	snap := a.source.Snapshot()

	a.mu.Lock()
	defer a.mu.Unlock()
	if snap == a.last && a.last != nil {
		return snap, a.value
	}
	a.value = core.Summarize(snap.Transactions)
	a.last = snap
	a.computed++
	return snap, a.value
}

// Recomputations reports how many times the fold has run.
func (a *Aggregator) Recomputations() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.computed
}
