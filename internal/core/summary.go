package core

import "github.com/shopspring/decimal"

// Summary is the derived aggregate of a transaction sequence.
// Total always equals Income minus Outcome.
type Summary struct {
	Income  decimal.Decimal
	Outcome decimal.Decimal
	Total   decimal.Decimal
}

// Summarize folds the sequence left to right in a single pass.
// The empty sequence yields the zero Summary.
func Summarize(transactions []Transaction) Summary {
	acc := Summary{
		Income:  decimal.Zero,
		Outcome: decimal.Zero,
		Total:   decimal.Zero,
	}
	for _, t := range transactions {
		if t.Type == Income {
			acc.Income = acc.Income.Add(t.Price)
			acc.Total = acc.Total.Add(t.Price)
		} else {
			acc.Outcome = acc.Outcome.Add(t.Price)
			acc.Total = acc.Total.Sub(t.Price)
		}
	}
	return acc
}

// Equal compares by value.
func (s Summary) Equal(o Summary) bool {
	return s.Income.Equal(o.Income) && s.Outcome.Equal(o.Outcome) && s.Total.Equal(o.Total)
}
