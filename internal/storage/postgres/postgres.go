// Package postgres stores transactions in PostgreSQL.
package postgres

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"dtmoney/internal/core"
	"dtmoney/internal/sources"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const selectColumns = `SELECT id, description, type, category, price::text, created_at FROM transactions`

type Repository struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

var _ sources.Source = (*Repository)(nil)

// Open migrates the schema and connects a pool.
func Open(ctx context.Context, databaseURL string) (*Repository, error) {
	if err := RunMigrations(databaseURL); err != nil {
		return nil, err
	}
	pool, err := NewPool(ctx, databaseURL)
	if err != nil {
		return nil, err
	}
	return &Repository{pool: pool, now: time.Now}, nil
}

// NewPool opens and pings a connection pool.
func NewPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 1

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return pool, nil
}

// RunMigrations applies the embedded schema migrations.
func RunMigrations(databaseURL string) error {
	d, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", d, databaseURL)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("run migrations: %w", err)
	}

	version, dirty, _ := m.Version()
	slog.Info("Postgres migrations applied", "version", version, "dirty", dirty)
	return nil
}

// Close releases the pool.
func (r *Repository) Close() error {
	r.pool.Close()
	return nil
}

// Search returns matching transactions, newest first.
func (r *Repository) Search(ctx context.Context, query string) ([]core.Transaction, error) {
	needle := sources.NormalizeQuery(query)

	var (
		rows pgx.Rows
		err  error
	)
	if needle == "" {
		rows, err = r.pool.Query(ctx, selectColumns+` ORDER BY created_at DESC, id`)
	} else {
		rows, err = r.pool.Query(ctx, selectColumns+`
			WHERE strpos(lower(description), $1) > 0 OR strpos(lower(category), $1) > 0
			ORDER BY created_at DESC, id`, needle)
	}
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}

	items, err := pgx.CollectRows(rows, scanTransaction)
	if err != nil {
		return nil, fmt.Errorf("scan transactions: %w", err)
	}
	return items, nil
}

// Create validates and stores a new transaction.
func (r *Repository) Create(ctx context.Context, in core.NewTransaction) (core.Transaction, error) {
	tx, err := in.Build(r.now())
	if err != nil {
		return core.Transaction{}, err
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO transactions (id, description, type, category, price, created_at)
		VALUES ($1, $2, $3, $4, $5::numeric, $6)`,
		tx.ID, tx.Description, tx.Type.String(), tx.Category, tx.Price.StringFixed(2), tx.CreatedAt)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("insert transaction: %w", err)
	}

	slog.InfoContext(ctx, "Transaction saved to Postgres", "id", tx.ID, "type", tx.Type, "price", tx.Price.StringFixed(2))
	return tx, nil
}

func scanTransaction(row pgx.CollectableRow) (core.Transaction, error) {
	var (
		id        uuid.UUID
		desc      string
		typ       string
		category  string
		price     string
		createdAt time.Time
	)
	if err := row.Scan(&id, &desc, &typ, &category, &price, &createdAt); err != nil {
		return core.Transaction{}, err
	}

	t, err := core.ParseTransactionType(typ)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("transaction %s: %w", id, err)
	}
	amount, err := decimal.NewFromString(strings.TrimSpace(price))
	if err != nil {
		return core.Transaction{}, fmt.Errorf("transaction %s: parse price: %w", id, err)
	}
	return core.Transaction{
		ID:          id,
		Description: desc,
		Type:        t,
		Category:    category,
		Price:       amount,
		CreatedAt:   createdAt.UTC(),
	}, nil
}
