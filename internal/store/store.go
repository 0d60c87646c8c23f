// Package store holds one session's current transaction sequence.
//
// The sequence is published as immutable snapshots. Fetch is the only way to
// replace it; everything else reads. When fetches overlap, the most recently
// started one wins: starting a fetch cancels the one in flight, and a fetch
// that was overtaken never publishes. Refresh is the exception; it queues
// behind the fetch in flight instead of cancelling it.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"dtmoney/internal/core"
	"dtmoney/internal/sources"
)

var (
	// ErrClosed is returned by fetches on a closed store.
	ErrClosed = errors.New("store closed")
	// ErrSuperseded is returned by a fetch that a newer one overtook.
	ErrSuperseded = errors.New("fetch superseded by a newer fetch")
)

// Snapshot is one published version of the sequence. It must not be
// modified after publication; its identity is the pointer.
type Snapshot struct {
	Version      uint64
	Query        string
	Transactions []core.Transaction
	FetchedAt    time.Time
}

// Store is one session's transaction sequence. Its zero value is not usable;
// build it with New.
type Store struct {
	source       sources.TransactionSearcher
	fetchTimeout time.Duration
	now          func() time.Time

	mu          sync.Mutex
	current     *Snapshot
	started     uint64
	cancelFetch context.CancelFunc
	inflight    chan struct{}
	listeners   map[int]func(*Snapshot)
	nextID      int
	closed      bool
}

// Option configures a Store.
type Option func(*Store)

// WithFetchTimeout bounds each fetch. Zero disables the bound.
func WithFetchTimeout(d time.Duration) Option {
	return func(s *Store) { s.fetchTimeout = d }
}

// New returns a store holding an empty version-0 snapshot until the first
// fetch publishes.
func New(source sources.TransactionSearcher, opts ...Option) *Store {
	s := &Store{
		source:       source,
		fetchTimeout: 10 * time.Second,
		now:          time.Now,
		current:      &Snapshot{},
		listeners:    make(map[int]func(*Snapshot)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Snapshot returns the current published snapshot.
func (s *Store) Snapshot() *Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Transactions returns the current sequence. Callers must treat it as read-only.
func (s *Store) Transactions() []core.Transaction {
	return s.Snapshot().Transactions
}

// Fetch replaces the sequence with the source's matches for query.
// On failure the previous snapshot stays in place and the error is returned.
func (s *Store) Fetch(ctx context.Context, query string) error {
	query = strings.TrimSpace(query)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	f := s.beginLocked(ctx, query)
	s.mu.Unlock()

	return s.run(ctx, f)
}

// Refresh re-runs the published query. It never cancels a fetch already in
// flight: it waits for that fetch to settle and then reloads whatever query
// it left published. A fetch started while the refresh runs still
// supersedes it.
func (s *Store) Refresh(ctx context.Context) error {
	for {
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return ErrClosed
		}
		if done := s.inflight; done != nil {
			s.mu.Unlock()
			select {
			case <-done:
				continue
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		f := s.beginLocked(ctx, s.current.Query)
		s.mu.Unlock()

		return s.run(ctx, f)
	}
}

// fetch is one started search and what it needs to settle.
type fetch struct {
	ticket uint64
	query  string
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// beginLocked cancels the fetch in flight and starts the next one.
func (s *Store) beginLocked(ctx context.Context, query string) *fetch {
	if s.cancelFetch != nil {
		s.cancelFetch()
	}
	s.started++

	f := &fetch{ticket: s.started, query: query, done: make(chan struct{})}
	if s.fetchTimeout > 0 {
		f.ctx, f.cancel = context.WithTimeout(ctx, s.fetchTimeout)
	} else {
		f.ctx, f.cancel = context.WithCancel(ctx)
	}
	s.cancelFetch = f.cancel
	s.inflight = f.done
	return f
}

func (s *Store) run(ctx context.Context, f *fetch) error {
	defer f.cancel()
	defer close(f.done)

	items, err := s.source.Search(f.ctx, f.query)

	s.mu.Lock()
	if s.inflight == f.done {
		s.inflight = nil
	}
	if f.ticket != s.started || s.closed {
		closed := s.closed
		s.mu.Unlock()
		if closed {
			return ErrClosed
		}
		slog.DebugContext(ctx, "Discarding superseded fetch", "query", f.query, "error", err)
		return ErrSuperseded
	}
	s.cancelFetch = nil
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("fetch transactions (query=%q): %w", f.query, err)
	}

	snap := &Snapshot{
		Version:      s.current.Version + 1,
		Query:        f.query,
		Transactions: items,
		FetchedAt:    s.now(),
	}
	s.current = snap
	listeners := make([]func(*Snapshot), 0, len(s.listeners))
	for _, fn := range s.listeners {
		listeners = append(listeners, fn)
	}
	s.mu.Unlock()

	slog.DebugContext(ctx, "Transactions replaced", "query", f.query, "version", snap.Version, "count", len(items))
	for _, fn := range listeners {
		fn(snap)
	}
	return nil
}

// Subscribe registers fn to be called after every replacement.
// The returned function unregisters it.
func (s *Store) Subscribe(fn func(*Snapshot)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}

// Close ends the store's lifecycle. An in-flight fetch is cancelled and
// later fetches fail with ErrClosed. Reads keep returning the last snapshot.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.cancelFetch != nil {
		s.cancelFetch()
		s.cancelFetch = nil
	}
	s.listeners = make(map[int]func(*Snapshot))
	return nil
}
