// Package session keeps one transaction store and one summary per browser
// session.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"dtmoney/internal/cache"
	"dtmoney/internal/core"
	"dtmoney/internal/sources"
	"dtmoney/internal/store"
	"dtmoney/internal/summary"
)

// Publisher announces created transactions to other instances.
type Publisher interface {
	PublishTransactionCreated(ctx context.Context, id uuid.UUID, createdAt time.Time) error
}

type Session struct {
	ID        uuid.UUID
	CreatedAt time.Time
	Store     *store.Store
	Summary   *summary.Aggregator

	writer    sources.TransactionWriter
	publisher Publisher
}

// Search replaces the session's transactions with the matches for query.
func (s *Session) Search(ctx context.Context, query string) error {
	return s.Store.Fetch(ctx, query)
}

// Create writes a new transaction and reloads the current search so the
// store picks it up through its normal fetch path.
func (s *Session) Create(ctx context.Context, in core.NewTransaction) (core.Transaction, error) {
	if err := in.Validate(); err != nil {
		return core.Transaction{}, err
	}

	tx, err := s.writer.Create(ctx, in)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("create transaction: %w", err)
	}

	if s.publisher != nil {
		if err := s.publisher.PublishTransactionCreated(ctx, tx.ID, tx.CreatedAt); err != nil {
			slog.WarnContext(ctx, "Failed to publish transaction created event", "id", tx.ID, "error", err)
		}
	}

	if err := s.Store.Refresh(ctx); err != nil {
		return tx, fmt.Errorf("refresh after create: %w", err)
	}
	return tx, nil
}

type Manager struct {
	source    sources.Source
	publisher Publisher
	storeOpts []store.Option
	parallel  int
	now       func() time.Time

	sessions *cache.LRUCache[*Session]
}

type Option func(*Manager)

// WithPublisher announces every created transaction through p.
func WithPublisher(p Publisher) Option {
	return func(m *Manager) { m.publisher = p }
}

// WithStoreOptions applies opts to every session store.
func WithStoreOptions(opts ...store.Option) Option {
	return func(m *Manager) { m.storeOpts = append(m.storeOpts, opts...) }
}

// WithRefreshConcurrency bounds how many sessions RefreshAll reloads at once.
func WithRefreshConcurrency(n int) Option {
	return func(m *Manager) { m.parallel = n }
}

// NewManager keeps at most maxSessions sessions, each idle for at most ttl.
// A session leaving the registry for any reason has its store closed.
func NewManager(source sources.Source, maxSessions int, ttl time.Duration, opts ...Option) *Manager {
	m := &Manager{
		source:   source,
		parallel: 8,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.sessions = cache.NewLRUCache[*Session](maxSessions, ttl,
		cache.WithEvictCallback[*Session](func(id string, s *Session) {
			s.Store.Close()
			slog.Debug("Session ended", "component", "session", "session_id", id)
		}),
	)
	return m
}

// Start opens a session and runs its initial, unfiltered search. A failed
// initial search is logged; the session starts with an empty list.
func (m *Manager) Start(ctx context.Context) *Session {
	st := store.New(m.source, m.storeOpts...)
	s := &Session{
		ID:        uuid.New(),
		CreatedAt: m.now(),
		Store:     st,
		Summary:   summary.NewAggregator(st),
		writer:    m.source,
		publisher: m.publisher,
	}
	m.sessions.Set(s.ID.String(), s)

	if err := st.Fetch(ctx, ""); err != nil {
		slog.WarnContext(ctx, "Initial transaction load failed", "session_id", s.ID, "error", err)
	}
	slog.DebugContext(ctx, "Session started", "session_id", s.ID)
	return s
}

// Get looks up a live session and renews its expiry.
func (m *Manager) Get(id string) (*Session, bool) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, false
	}
	return m.sessions.Touch(id)
}

// End removes the session and closes its store.
func (m *Manager) End(id string) {
	m.sessions.Delete(id)
}

// Len reports how many sessions are live.
func (m *Manager) Len() int {
	return m.sessions.Size()
}

// Sessions exposes the registry so expired sessions can be swept.
func (m *Manager) Sessions() cache.Cleaner {
	return m.sessions
}

// RefreshAll re-runs every live session's current search. One session
// failing does not stop the others; the first error is returned.
func (m *Manager) RefreshAll(ctx context.Context) error {
	var g errgroup.Group
	g.SetLimit(m.parallel)

	for _, id := range m.sessions.Keys() {
		s, ok := m.sessions.Get(id)
		if !ok {
			continue
		}
		g.Go(func() error {
			err := s.Store.Refresh(ctx)
			switch {
			case err == nil, errors.Is(err, store.ErrClosed), errors.Is(err, store.ErrSuperseded):
				return nil
			default:
				return fmt.Errorf("refresh session %s: %w", s.ID, err)
			}
		})
	}
	return g.Wait()
}

// Close ends every session.
func (m *Manager) Close() error {
	m.sessions.Purge()
	return nil
}
