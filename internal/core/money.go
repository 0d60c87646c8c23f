// Package core provides money parsing and handling utilities.
//
// This file contains functions for parsing prices typed by users and for
// rendering them in the Brazilian real format used by the UI.
package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

// ParsePrice converts a user-typed amount to a decimal rounded to cents.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators. When both
// appear, the last one is the decimal separator and the other is a thousands
// separator. Negative values and garbage are rejected; zero is allowed.
//
// Examples:
//
//	ParsePrice("12.34")    -> 12.34
//	ParsePrice("1.234,56") -> 1234.56
//	ParsePrice("12,345")   -> 12.35 (half-up)
func ParsePrice(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "R$")
	s = strings.TrimSpace(s)
	if s == "" || strings.HasPrefix(s, "-") || strings.HasPrefix(s, "+") {
		return decimal.Zero, ErrInvalidPrice
	}

	lastDot := strings.LastIndex(s, ".")
	lastComma := strings.LastIndex(s, ",")
	switch {
	case lastDot >= 0 && lastComma >= 0:
		if lastComma > lastDot {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case lastComma >= 0:
		if strings.Count(s, ",") > 1 {
			return decimal.Zero, ErrInvalidPrice
		}
		s = strings.Replace(s, ",", ".", 1)
	}

	for _, r := range s {
		if (r < '0' || r > '9') && r != '.' {
			return decimal.Zero, ErrInvalidPrice
		}
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidPrice
	}
	return d.Round(2), nil
}

// FormatBRL renders an amount as "R$ 1.234,56" (negative: "-R$ 1.234,56").
func FormatBRL(d decimal.Decimal) string {
	neg := d.IsNegative()
	fixed := d.Abs().StringFixed(2)
	intPart, frac, _ := strings.Cut(fixed, ".")

	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}

	out := "R$ " + b.String() + "," + frac
	if neg {
		return "-" + out
	}
	return out
}
