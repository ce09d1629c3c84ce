package domain

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// FeePolicy is the fee schedule applied to a single request. It is
// resolved once when the request enters the system and passed
// explicitly from there on, so concurrent requests can never observe
// a half-updated schedule.
type FeePolicy struct {
	TradeFeeBps int64 // charged to maker and taker on each fill
	Treasury    common.Address
}

// TradeFee returns the protocol fee for a fill of the given notional,
// truncated to quote precision so the fee never rounds up.
func (p FeePolicy) TradeFee(notional decimal.Decimal) decimal.Decimal {
	return notional.Mul(decimal.NewFromInt(p.TradeFeeBps)).Shift(-4).RoundDown(QuoteDecimals)
}
