package storage

import (
	"context"
)

const createTransaction = `
INSERT INTO transactions (id, description, type, category, price, created_at)
VALUES (?, ?, ?, ?, ?, ?)
RETURNING id, description, type, category, price, created_at
`

type CreateTransactionParams struct {
	ID          string
	Description string
	Type        string
	Category    string
	Price       string
	CreatedAt   string
}

func (q *Queries) CreateTransaction(ctx context.Context, arg CreateTransactionParams) (Transaction, error) {
	row := q.db.QueryRowContext(ctx, createTransaction,
		arg.ID,
		arg.Description,
		arg.Type,
		arg.Category,
		arg.Price,
		arg.CreatedAt,
	)
	var i Transaction
	err := row.Scan(
		&i.ID,
		&i.Description,
		&i.Type,
		&i.Category,
		&i.Price,
		&i.CreatedAt,
	)
	return i, err
}

const listTransactions = `
SELECT id, description, type, category, price, created_at
FROM transactions
ORDER BY created_at DESC, id
`

func (q *Queries) ListTransactions(ctx context.Context) ([]Transaction, error) {
	return q.queryTransactions(ctx, listTransactions)
}

const searchTransactions = `
SELECT id, description, type, category, price, created_at
FROM transactions
WHERE instr(casefold(description), ?1) > 0
   OR instr(casefold(category), ?1) > 0
ORDER BY created_at DESC, id
`

// SearchTransactions expects needle already lower-cased.
func (q *Queries) SearchTransactions(ctx context.Context, needle string) ([]Transaction, error) {
	return q.queryTransactions(ctx, searchTransactions, needle)
}

const countTransactions = `SELECT COUNT(*) FROM transactions`

func (q *Queries) CountTransactions(ctx context.Context) (int64, error) {
	row := q.db.QueryRowContext(ctx, countTransactions)
	var count int64
	err := row.Scan(&count)
	return count, err
}

func (q *Queries) queryTransactions(ctx context.Context, query string, args ...interface{}) ([]Transaction, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Transaction
	for rows.Next() {
		var i Transaction
		if err := rows.Scan(
			&i.ID,
			&i.Description,
			&i.Type,
			&i.Category,
			&i.Price,
			&i.CreatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
