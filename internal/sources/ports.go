package sources

import (
	"context"

	"dtmoney/internal/core"
)

// Ports for outbound adapters.
type (
	// TransactionSearcher returns the transactions matching a free-text query,
	// newest first. An empty query returns every transaction.
	TransactionSearcher interface {
		Search(ctx context.Context, query string) ([]core.Transaction, error)
	}

	// TransactionWriter persists a new transaction and returns it with its
	// assigned ID and creation time.
	TransactionWriter interface {
		Create(ctx context.Context, in core.NewTransaction) (core.Transaction, error)
	}

	// Source is what a configured backend provides.
	Source interface {
		TransactionSearcher
		TransactionWriter
	}
)
