package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"dtmoney/internal/core"
	"dtmoney/internal/sources"
)

var _ sources.Source = (*Store)(nil)

// Store keeps transactions in process memory.
type Store struct {
	mu    sync.Mutex
	items []core.Transaction
	now   func() time.Time
}

func New(seed []core.Transaction) *Store {
	return &Store{items: append([]core.Transaction(nil), seed...), now: time.Now}
}

// NewFromFiles seeds the store from <base>/transactions.json. A missing or
// unreadable file falls back to DefaultSeed; malformed records are skipped.
func NewFromFiles(base string) *Store {
	seed, err := readSeed(filepath.Join(base, "transactions.json"))
	if err != nil || len(seed) == 0 {
		return New(DefaultSeed())
	}
	return New(seed)
}

func readSeed(path string) ([]core.Transaction, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Accept both a bare array and json-server's {"transactions": [...]}.
	var records []sources.Record
	if err := json.Unmarshal(b, &records); err != nil {
		var wrapped struct {
			Transactions []sources.Record `json:"transactions"`
		}
		if err2 := json.Unmarshal(b, &wrapped); err2 != nil {
			return nil, fmt.Errorf("decode seed %s: %w", path, err)
		}
		records = wrapped.Transactions
	}

	out := make([]core.Transaction, 0, len(records))
	for _, r := range records {
		tx, err := r.ToCore()
		if err != nil {
			continue
		}
		out = append(out, tx)
	}
	return out, nil
}

// DefaultSeed is used when no seed file is present.
func DefaultSeed() []core.Transaction {
	base := time.Date(2024, 4, 1, 12, 0, 0, 0, time.UTC)
	mk := func(n int, desc string, typ core.TransactionType, cat, price string) core.Transaction {
		return core.Transaction{
			ID:          uuid.NewSHA1(uuid.NameSpaceURL, []byte(fmt.Sprintf("dtmoney-default:%d", n))),
			Description: desc,
			Type:        typ,
			Category:    cat,
			Price:       decimal.RequireFromString(price),
			CreatedAt:   base.AddDate(0, 0, n),
		}
	}
	return []core.Transaction{
		mk(0, "Desenvolvimento de site", core.Income, "Venda", "12000"),
		mk(1, "Hamburguer", core.Outcome, "Alimentação", "59"),
		mk(2, "Aluguel do apartamento", core.Outcome, "Casa", "1200"),
		mk(3, "Computador", core.Income, "Venda", "5400"),
	}
}

// Search returns matching transactions, newest first.
func (s *Store) Search(ctx context.Context, query string) ([]core.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return sources.FilterAndSort(s.items, query), nil
}

// Create stores the transaction and returns it with its assigned identity.
func (s *Store) Create(ctx context.Context, in core.NewTransaction) (core.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return core.Transaction{}, err
	}
	t, err := in.Build(s.now())
	if err != nil {
		return core.Transaction{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append(s.items, t)
	return t, nil
}

// Len reports how many transactions are stored.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}
