package domain

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// Fill records one confirmed execution between a taker and a resting
// maker order. TxRef is the external ledger's transaction reference.
type Fill struct {
	MakerOrderID uint64
	PropertyID   string
	TakerSide    OrderSide
	Quantity     decimal.Decimal
	Price        decimal.Decimal // maker's resting price
	Maker        common.Address
	Taker        common.Address
	MakerFee     decimal.Decimal
	TakerFee     decimal.Decimal
	TxRef        common.Hash
	ExecutedAt   time.Time
}

// Notional returns quantity × price in quote units.
func (f *Fill) Notional() decimal.Decimal {
	return f.Quantity.Mul(f.Price)
}
