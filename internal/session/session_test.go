package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"dtmoney/internal/core"
	"dtmoney/internal/sources/memory"
	"dtmoney/internal/store"
)

type recordingPublisher struct {
	mu  sync.Mutex
	ids []uuid.UUID
	err error
}

func (p *recordingPublisher) PublishTransactionCreated(ctx context.Context, id uuid.UUID, createdAt time.Time) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ids = append(p.ids, id)
	return p.err
}

func seed() []core.Transaction {
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	return []core.Transaction{
		{ID: uuid.New(), Description: "Salário", Type: core.Income, Category: "Trabalho", Price: decimal.NewFromInt(5000), CreatedAt: base},
		{ID: uuid.New(), Description: "Aluguel", Type: core.Outcome, Category: "Casa", Price: decimal.NewFromInt(1500), CreatedAt: base.Add(time.Hour)},
	}
}

func TestStartLoadsAllTransactions(t *testing.T) {
	m := NewManager(memory.New(seed()), 10, time.Hour)
	defer m.Close()

	s := m.Start(context.Background())
	if got := len(s.Store.Transactions()); got != 2 {
		t.Fatalf("initial transactions = %d, want 2", got)
	}
	sum := s.Summary.Summary()
	if !sum.Total.Equal(decimal.NewFromInt(3500)) {
		t.Errorf("total = %s, want 3500", sum.Total)
	}

	got, ok := m.Get(s.ID.String())
	if !ok || got != s {
		t.Fatal("started session not found")
	}
}

func TestGetRejectsUnknownIDs(t *testing.T) {
	m := NewManager(memory.New(nil), 10, time.Hour)
	for _, id := range []string{"", "not-a-uuid", uuid.NewString()} {
		if _, ok := m.Get(id); ok {
			t.Errorf("Get(%q) found a session", id)
		}
	}
}

func TestEndClosesStore(t *testing.T) {
	m := NewManager(memory.New(seed()), 10, time.Hour)
	s := m.Start(context.Background())

	m.End(s.ID.String())
	if m.Len() != 0 {
		t.Fatalf("Len() = %d after End", m.Len())
	}
	if err := s.Search(context.Background(), ""); !errors.Is(err, store.ErrClosed) {
		t.Fatalf("search on ended session: %v", err)
	}
}

func TestGetNeverRevivesEndedSession(t *testing.T) {
	m := NewManager(memory.New(seed()), 10, time.Hour)
	s := m.Start(context.Background())
	id := s.ID.String()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				m.Get(id)
			}
		}()
	}
	m.End(id)
	wg.Wait()

	if _, ok := m.Get(id); ok {
		t.Fatal("ended session came back")
	}
	if m.Len() != 0 {
		t.Fatalf("Len() = %d after End", m.Len())
	}
}

func TestEvictionClosesOldestStore(t *testing.T) {
	m := NewManager(memory.New(seed()), 1, time.Hour)
	defer m.Close()

	first := m.Start(context.Background())
	m.Start(context.Background())

	if err := first.Search(context.Background(), ""); !errors.Is(err, store.ErrClosed) {
		t.Fatalf("evicted session should be closed, got %v", err)
	}
}

func TestCreateRefreshesAndPublishes(t *testing.T) {
	pub := &recordingPublisher{}
	m := NewManager(memory.New(seed()), 10, time.Hour, WithPublisher(pub))
	defer m.Close()
	s := m.Start(context.Background())

	before := s.Store.Snapshot()
	tx, err := s.Create(context.Background(), core.NewTransaction{
		Description: "Freela",
		Type:        core.Income,
		Category:    "Trabalho",
		Price:       decimal.RequireFromString("250.50"),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if s.Store.Snapshot() == before {
		t.Fatal("create should publish a new snapshot")
	}
	if len(s.Store.Transactions()) != 3 {
		t.Fatalf("transactions after create = %d", len(s.Store.Transactions()))
	}
	if got := s.Summary.Summary().Income; !got.Equal(decimal.RequireFromString("5250.50")) {
		t.Errorf("income = %s", got)
	}
	if len(pub.ids) != 1 || pub.ids[0] != tx.ID {
		t.Errorf("published ids = %v", pub.ids)
	}
}

func TestCreatePublishFailureIsNotFatal(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("broker down")}
	m := NewManager(memory.New(nil), 10, time.Hour, WithPublisher(pub))
	defer m.Close()
	s := m.Start(context.Background())

	_, err := s.Create(context.Background(), core.NewTransaction{
		Description: "Mercado", Type: core.Outcome, Category: "Comida", Price: decimal.NewFromInt(80),
	})
	if err != nil {
		t.Fatalf("create should succeed without the broker: %v", err)
	}
}

func TestCreateValidation(t *testing.T) {
	m := NewManager(memory.New(nil), 10, time.Hour)
	defer m.Close()
	s := m.Start(context.Background())
	before := s.Store.Snapshot()

	_, err := s.Create(context.Background(), core.NewTransaction{Type: core.Income, Category: "x"})
	if !errors.Is(err, core.ErrEmptyDescription) {
		t.Fatalf("expected ErrEmptyDescription, got %v", err)
	}
	if s.Store.Snapshot() != before {
		t.Fatal("invalid input must not touch the store")
	}
}

func TestRefreshAllReloadsEverySession(t *testing.T) {
	src := memory.New(seed())
	m := NewManager(src, 10, time.Hour, WithRefreshConcurrency(2))
	defer m.Close()

	var sessions []*Session
	for i := 0; i < 4; i++ {
		sessions = append(sessions, m.Start(context.Background()))
	}
	if err := sessions[1].Search(context.Background(), "aluguel"); err != nil {
		t.Fatalf("search: %v", err)
	}

	if _, err := src.Create(context.Background(), core.NewTransaction{
		Description: "Aluguel garagem", Type: core.Outcome, Category: "Casa", Price: decimal.NewFromInt(200),
	}); err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := m.RefreshAll(context.Background()); err != nil {
		t.Fatalf("refresh all: %v", err)
	}
	for i, s := range sessions {
		want := 3
		if i == 1 {
			want = 2
		}
		if got := len(s.Store.Transactions()); got != want {
			t.Errorf("session %d: %d transactions, want %d", i, got, want)
		}
	}
}
