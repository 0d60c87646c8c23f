package postgres

import (
	"context"
	"os"
	"testing"

	"github.com/shopspring/decimal"

	"dtmoney/internal/core"
)

// Runs against a real database; set DTMONEY_TEST_DATABASE_URL to enable.
func TestRepository_Integration(t *testing.T) {
	url := os.Getenv("DTMONEY_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("DTMONEY_TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	repo, err := Open(ctx, url)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer repo.Close()

	if _, err := repo.pool.Exec(ctx, `TRUNCATE transactions`); err != nil {
		t.Fatalf("truncate: %v", err)
	}

	created, err := repo.Create(ctx, core.NewTransaction{
		Description: "Conta de LUZ",
		Type:        core.Outcome,
		Category:    "Casa",
		Price:       decimal.RequireFromString("99.9"),
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if _, err := repo.Create(ctx, core.NewTransaction{
		Description: "Salário", Type: core.Income, Category: "Trabalho", Price: decimal.NewFromInt(4000),
	}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	got, err := repo.Search(ctx, "luz")
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(got) != 1 || got[0].ID != created.ID {
		t.Fatalf("Search(luz) = %+v", got)
	}
	if !got[0].Price.Equal(decimal.RequireFromString("99.90")) {
		t.Errorf("price = %s", got[0].Price)
	}

	all, err := repo.Search(ctx, "")
	if err != nil || len(all) != 2 {
		t.Fatalf("Search(\"\") = %d rows, %v", len(all), err)
	}
	if all[0].Description != "Salário" {
		t.Errorf("newest first: got %q", all[0].Description)
	}
}
