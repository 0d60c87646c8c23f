package storage

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"modernc.org/sqlite"

	"dtmoney/internal/core"
	"dtmoney/internal/sources"
)

// createdAtLayout is fixed width so created_at orders correctly as text.
const createdAtLayout = "2006-01-02T15:04:05.000000000Z"

func init() {
	// SQLite's lower() only folds ASCII; search needs the same Unicode
	// folding the other sources use.
	sqlite.MustRegisterDeterministicScalarFunction("casefold", 1,
		func(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
			switch v := args[0].(type) {
			case string:
				return strings.ToLower(v), nil
			case []byte:
				return strings.ToLower(string(v)), nil
			default:
				return v, nil
			}
		})
}

type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
	now     func() time.Time
}

var _ sources.Source = (*SQLiteRepository)(nil)

// NewSQLiteRepository migrates and opens the database at dbPath.
func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{
		db:      db,
		queries: New(db),
		now:     time.Now,
	}, nil
}

// Close closes the database.
func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Search returns matching transactions, newest first.
func (r *SQLiteRepository) Search(ctx context.Context, query string) ([]core.Transaction, error) {
	needle := sources.NormalizeQuery(query)

	var (
		rows []Transaction
		err  error
	)
	if needle == "" {
		rows, err = r.queries.ListTransactions(ctx)
	} else {
		rows, err = r.queries.SearchTransactions(ctx, needle)
	}
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}

	out := make([]core.Transaction, 0, len(rows))
	for _, row := range rows {
		tx, err := row.toCore()
		if err != nil {
			slog.WarnContext(ctx, "Skipping unreadable transaction row", "id", row.ID, "error", err)
			continue
		}
		out = append(out, tx)
	}
	return out, nil
}

func (r *SQLiteRepository) Create(ctx context.Context, in core.NewTransaction) (core.Transaction, error) {
	tx, err := in.Build(r.now())
	if err != nil {
		return core.Transaction{}, err
	}

	_, err = r.queries.CreateTransaction(ctx, CreateTransactionParams{
		ID:          tx.ID.String(),
		Description: tx.Description,
		Type:        tx.Type.String(),
		Category:    tx.Category,
		Price:       tx.Price.StringFixed(2),
		CreatedAt:   tx.CreatedAt.UTC().Format(createdAtLayout),
	})
	if err != nil {
		return core.Transaction{}, fmt.Errorf("insert transaction: %w", err)
	}

	slog.InfoContext(ctx, "Transaction saved to SQLite",
		"id", tx.ID,
		"type", tx.Type,
		"category", tx.Category,
		"price", tx.Price.StringFixed(2))

	return tx, nil
}

// Count returns the number of stored transactions.
func (r *SQLiteRepository) Count(ctx context.Context) (int64, error) {
	n, err := r.queries.CountTransactions(ctx)
	if err != nil {
		return 0, fmt.Errorf("count transactions: %w", err)
	}
	return n, nil
}

func (t Transaction) toCore() (core.Transaction, error) {
	id, err := uuid.Parse(t.ID)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("parse id: %w", err)
	}
	typ, err := core.ParseTransactionType(t.Type)
	if err != nil {
		return core.Transaction{}, err
	}
	price, err := decimal.NewFromString(t.Price)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("parse price: %w", err)
	}
	createdAt, err := time.Parse(createdAtLayout, t.CreatedAt)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("parse created_at: %w", err)
	}
	return core.Transaction{
		ID:          id,
		Description: t.Description,
		Type:        typ,
		Category:    t.Category,
		Price:       price,
		CreatedAt:   createdAt,
	}, nil
}
