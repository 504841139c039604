// Package core provides the plaintext domain model and the money math shared
// by the snapshot, transaction and accounting transforms.
//
// This file contains parsing of decrypted numeric plaintexts and the derived
// metrics (rounding, variation and share-of-total) computed on top of them.
package core

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// ParseAmount parses a decrypted plaintext as a decimal number.
//
// Plaintexts are produced by the encrypting side as the textual form of a
// number ("100", "12.5", "-3.75", "1e3"). Surrounding whitespace is ignored.
// Anything else fails with ErrNonNumericPlaintext.
//
// Examples:
//
//	ParseAmount("100.00") -> 100, nil
//	ParseAmount(" 12.5 ") -> 12.5, nil
//	ParseAmount("abc")    -> 0, ErrNonNumericPlaintext
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, fmt.Errorf("%w: empty plaintext", ErrNonNumericPlaintext)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %d bytes", ErrNonNumericPlaintext, len(s))
	}
	return d, nil
}

// Round2 rounds to two decimal places, half away from zero.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// VariationPct returns the relative change of current versus previous as a
// percentage rounded to two decimals. A zero previous value yields zero so
// the result is always finite.
func VariationPct(current, previous decimal.Decimal) decimal.Decimal {
	if previous.IsZero() {
		return decimal.Zero
	}
	return Round2(current.Sub(previous).Div(previous.Abs()).Mul(hundred))
}

// Percentage returns amount as a share of total, rounded to two decimals.
// It is zero unless total is strictly positive.
func Percentage(amount, total decimal.Decimal) decimal.Decimal {
	if !total.IsPositive() {
		return decimal.Zero
	}
	return Round2(amount.Div(total).Mul(hundred))
}

// Sum adds all values.
func Sum(values ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}
