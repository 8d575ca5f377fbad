// Package core provides amount parsing and formatting utilities.
//
// This file contains the helpers used by form and CLI input to turn a
// user-typed amount into a decimal value, and to render amounts back.
package core

import (
	"errors"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

var ErrInvalidAmount = errors.New("invalid amount")

// ParseAmount converts a decimal string into an amount.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators. An
// empty string is read as zero, matching the form's default value. The
// sign is preserved since no invariant restricts it.
//
// Examples:
//
//	ParseAmount("3.50")  -> 3.5, nil
//	ParseAmount("3,50")  -> 3.5, nil
//	ParseAmount("")      -> 0, nil
//	ParseAmount("1.2.3") -> 0, ErrInvalidAmount
//	ParseAmount("1e400") -> 0, ErrInvalidAmount
//
// Amounts beyond the float64 range are rejected: clustering and
// spreadsheet cells work in float64.
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, nil
	}
	if strings.Count(s, ",") == 1 && !strings.Contains(s, ".") {
		s = strings.Replace(s, ",", ".", 1)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	if f := d.InexactFloat64(); math.IsInf(f, 0) || math.IsNaN(f) {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}

// FormatAmount renders an amount with two decimals for display.
func FormatAmount(d decimal.Decimal) string {
	return d.StringFixed(2)
}
