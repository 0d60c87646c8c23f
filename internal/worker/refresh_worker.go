// Package worker reacts to transaction events published by other instances.
package worker

import (
	"context"
	"log/slog"
	"sync/atomic"

	"dtmoney/internal/amqp"
)

// Invalidator drops cached search results.
type Invalidator interface {
	Invalidate()
}

// Refresher re-runs every live session's current search.
type Refresher interface {
	RefreshAll(ctx context.Context) error
}

// RefreshWorker makes sessions on this instance pick up transactions
// created elsewhere.
type RefreshWorker struct {
	origin   string
	cache    Invalidator
	sessions Refresher
	handled  atomic.Int64
	skipped  atomic.Int64
	failed   atomic.Int64
}

// NewRefreshWorker handles events for the instance named origin.
func NewRefreshWorker(origin string, cache Invalidator, sessions Refresher) *RefreshWorker {
	return &RefreshWorker{origin: origin, cache: cache, sessions: sessions}
}

// HandleTransactionCreated ignores this instance's own events; the creating
// session already refreshed. Refreshing is best-effort: sessions that fail to
// reload pick the transaction up on their next search, so failures are
// logged and the event is still acknowledged.
func (w *RefreshWorker) HandleTransactionCreated(ctx context.Context, msg *amqp.TransactionCreatedMessage) error {
	if msg.Origin != "" && msg.Origin == w.origin {
		w.skipped.Add(1)
		slog.DebugContext(ctx, "Skipping own transaction event", "id", msg.ID)
		return nil
	}

	slog.InfoContext(ctx, "Processing transaction created event",
		"id", msg.ID,
		"origin", msg.Origin,
		"created_at", msg.CreatedAt)

	if w.cache != nil {
		w.cache.Invalidate()
	}
	if err := w.sessions.RefreshAll(ctx); err != nil {
		w.failed.Add(1)
		slog.WarnContext(ctx, "Some sessions failed to refresh", "id", msg.ID, "error", err)
	}
	w.handled.Add(1)
	return nil
}

// Stats reports how many events were applied and how many were own echoes.
func (w *RefreshWorker) Stats() (handled, skipped int64) {
	return w.handled.Load(), w.skipped.Load()
}

// Failures reports how many applied events left some session stale.
func (w *RefreshWorker) Failures() int64 {
	return w.failed.Load()
}
