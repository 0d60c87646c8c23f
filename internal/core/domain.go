package core

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	Income  TransactionType = "income"
	Outcome TransactionType = "outcome"
)

const maxDescriptionLen = 200

type (
	TransactionType string

	Transaction struct {
		ID          uuid.UUID
		Description string
		Type        TransactionType
		Category    string
		Price       decimal.Decimal
		CreatedAt   time.Time
	}

	// NewTransaction is the user-supplied part of a Transaction.
	// Writers assign ID and CreatedAt.
	NewTransaction struct {
		Description string
		Type        TransactionType
		Category    string
		Price       decimal.Decimal
	}
)

var (
	ErrEmptyDescription   = errors.New("empty description")
	ErrDescriptionTooLong = errors.New("description too long (max 200 characters)")
	ErrEmptyCategory      = errors.New("empty category")
	ErrInvalidType        = errors.New("invalid transaction type")
	ErrInvalidPrice       = errors.New("invalid price")
)

// ParseTransactionType accepts the canonical names case-insensitively.
func ParseTransactionType(s string) (TransactionType, error) {
	switch TransactionType(strings.ToLower(strings.TrimSpace(s))) {
	case Income:
		return Income, nil
	case Outcome:
		return Outcome, nil
	default:
		return "", ErrInvalidType
	}
}

func (t TransactionType) Valid() bool {
	return t == Income || t == Outcome
}

func (t TransactionType) String() string {
	return string(t)
}

func (n NewTransaction) Validate() error {
	desc := strings.TrimSpace(n.Description)
	if desc == "" {
		return ErrEmptyDescription
	}
	if len(desc) > maxDescriptionLen {
		return ErrDescriptionTooLong
	}
	if !n.Type.Valid() {
		return ErrInvalidType
	}
	if strings.TrimSpace(n.Category) == "" {
		return ErrEmptyCategory
	}
	if n.Price.IsNegative() {
		return ErrInvalidPrice
	}
	return nil
}

// Build turns validated input into a Transaction with a fresh ID.
// A zero now means time.Now().
func (n NewTransaction) Build(now time.Time) (Transaction, error) {
	if err := n.Validate(); err != nil {
		return Transaction{}, err
	}
	if now.IsZero() {
		now = time.Now()
	}
	return Transaction{
		ID:          uuid.New(),
		Description: strings.TrimSpace(n.Description),
		Type:        n.Type,
		Category:    strings.TrimSpace(n.Category),
		Price:       n.Price,
		CreatedAt:   now.UTC(),
	}, nil
}

// Matches reports whether the transaction satisfies a free-text query.
// The query is compared case-insensitively against description and category;
// an empty query matches everything.
func (t Transaction) Matches(query string) bool {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return true
	}
	return strings.Contains(strings.ToLower(t.Description), q) ||
		strings.Contains(strings.ToLower(t.Category), q)
}
