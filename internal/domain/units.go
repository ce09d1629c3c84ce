package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Fixed-point scales for the two unit kinds the exchange handles.
// Share quantities carry 18 decimal places (token base units); quote
// prices and amounts carry 6 decimal places (micro-units of the quote
// currency). All arithmetic stays on decimal.Decimal — no floats.
const (
	ShareDecimals int32 = 18
	QuoteDecimals int32 = 6
)

// ParseShares parses a share quantity, validating that it carries at
// most 18 decimal places.
func ParseShares(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("invalid share quantity %q", s)
	}
	if !d.Equal(d.Truncate(ShareDecimals)) {
		return decimal.Decimal{}, fmt.Errorf("share quantity must have at most %d decimal places", ShareDecimals)
	}
	return d, nil
}

// ParseQuote parses a quote-currency value (a price or an amount),
// validating that it carries at most 6 decimal places.
func ParseQuote(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("invalid quote value %q", s)
	}
	if !d.Equal(d.Truncate(QuoteDecimals)) {
		return decimal.Decimal{}, fmt.Errorf("quote value must have at most %d decimal places", QuoteDecimals)
	}
	return d, nil
}

// MicroUnits converts a quote amount to its integer micro-unit
// representation (amount × 10^6).
func MicroUnits(quote decimal.Decimal) decimal.Decimal {
	return quote.Shift(QuoteDecimals)
}

// FromMicroUnits converts integer micro-units back to a quote amount.
func FromMicroUnits(micro decimal.Decimal) decimal.Decimal {
	return micro.Shift(-QuoteDecimals)
}
