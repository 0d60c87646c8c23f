package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"dtmoney/internal/core"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "nested", "dtmoney.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository() error = %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestSQLiteRepository_CreateAndSearch(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	clock := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	repo.now = func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	}

	inputs := []core.NewTransaction{
		{Description: "Salário", Type: core.Income, Category: "Trabalho", Price: decimal.RequireFromString("5000.00")},
		{Description: "ÁGUA e luz", Type: core.Outcome, Category: "Casa", Price: decimal.RequireFromString("180.35")},
		{Description: "Hambúrguer", Type: core.Outcome, Category: "Alimentação", Price: decimal.RequireFromString("59.90")},
	}
	for _, in := range inputs {
		if _, err := repo.Create(ctx, in); err != nil {
			t.Fatalf("Create(%q) error = %v", in.Description, err)
		}
	}

	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{"empty query returns all newest first", "", []string{"Hambúrguer", "ÁGUA e luz", "Salário"}},
		{"matches description case-insensitively", "SALÁRIO", []string{"Salário"}},
		{"folds non-ascii upper case", "água", []string{"ÁGUA e luz"}},
		{"matches category", "casa", []string{"ÁGUA e luz"}},
		{"no match", "viagem", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := repo.Search(ctx, tt.query)
			if err != nil {
				t.Fatalf("Search() error = %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("Search(%q) returned %d rows, want %d", tt.query, len(got), len(tt.want))
			}
			for i, desc := range tt.want {
				if got[i].Description != desc {
					t.Errorf("row %d = %q, want %q", i, got[i].Description, desc)
				}
			}
		})
	}
}

func TestSQLiteRepository_PreservesValues(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	created, err := repo.Create(ctx, core.NewTransaction{
		Description: "  Freela  ",
		Type:        core.Income,
		Category:    "Trabalho",
		Price:       decimal.RequireFromString("1234.5"),
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	got, err := repo.Search(ctx, "")
	if err != nil || len(got) != 1 {
		t.Fatalf("Search() = %v, %v", got, err)
	}
	tx := got[0]
	if tx.ID != created.ID {
		t.Errorf("ID = %s, want %s", tx.ID, created.ID)
	}
	if tx.Description != "Freela" {
		t.Errorf("Description = %q", tx.Description)
	}
	if !tx.Price.Equal(decimal.RequireFromString("1234.50")) {
		t.Errorf("Price = %s", tx.Price)
	}
	if !tx.CreatedAt.Equal(created.CreatedAt) {
		t.Errorf("CreatedAt = %v, want %v", tx.CreatedAt, created.CreatedAt)
	}

	n, err := repo.Count(ctx)
	if err != nil || n != 1 {
		t.Errorf("Count() = %d, %v", n, err)
	}
}

func TestSQLiteRepository_RejectsInvalidInput(t *testing.T) {
	repo := newTestRepo(t)

	_, err := repo.Create(context.Background(), core.NewTransaction{Description: "x", Type: "refund", Category: "y"})
	if err != core.ErrInvalidType {
		t.Fatalf("Create() error = %v, want ErrInvalidType", err)
	}
}

func TestMigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dtmoney.db")
	for i := 0; i < 2; i++ {
		repo, err := NewSQLiteRepository(path)
		if err != nil {
			t.Fatalf("open #%d: %v", i+1, err)
		}
		repo.Close()
	}
}
