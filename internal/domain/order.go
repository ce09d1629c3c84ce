package domain

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// OrderSide indicates whether an order buys or sells property shares.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "buy"
	OrderSideSell OrderSide = "sell"
)

// Opposite returns the matching side for s.
func (s OrderSide) Opposite() OrderSide {
	if s == OrderSideBuy {
		return OrderSideSell
	}
	return OrderSideBuy
}

// OrderStatus represents the lifecycle state of an order.
type OrderStatus string

const (
	OrderStatusOpen            OrderStatus = "open"
	OrderStatusPartiallyFilled OrderStatus = "partially_filled"
	OrderStatusFilled          OrderStatus = "filled"
	OrderStatusCancelled       OrderStatus = "cancelled"
)

// Terminal reports whether the status admits no further fills.
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusFilled || s == OrderStatusCancelled
}

// StatusOf derives the order status from (quantity, filled, cancelled).
// Status is a pure function of these three values: cancelled wins,
// filled == quantity is terminal Filled, any partial fill is
// PartiallyFilled, otherwise Open.
func StatusOf(quantity, filled decimal.Decimal, cancelled bool) OrderStatus {
	if cancelled {
		return OrderStatusCancelled
	}
	if filled.GreaterThanOrEqual(quantity) {
		return OrderStatusFilled
	}
	if filled.IsPositive() {
		return OrderStatusPartiallyFilled
	}
	return OrderStatusOpen
}

// Order represents a buy or sell instruction for fractional property
// shares. The ID is assigned by the external ledger authority and is
// monotonic per property.
type Order struct {
	ID         uint64
	PropertyID string
	Side       OrderSide
	Maker      common.Address
	Quantity   decimal.Decimal // share units, 18 decimal places
	Price      decimal.Decimal // quote units per share, 6 decimal places
	Filled     decimal.Decimal
	Status     OrderStatus
	CreatedAt  time.Time
}

// Remaining returns the unfilled quantity. The 0 ≤ filled ≤ quantity
// invariant makes this non-negative for any confirmed order state.
func (o *Order) Remaining() decimal.Decimal {
	return o.Quantity.Sub(o.Filled)
}

// IndexEntry mirrors one on-chain order in the off-chain ledger index.
// ContractOrderID is the back-reference to the authoritative identifier
// on the external ledger; an entry whose id the ledger has no record of
// is a phantom and must be purged, never matched against.
type IndexEntry struct {
	ContractOrderID uint64
	PropertyID      string
	Side            OrderSide
	Maker           common.Address
	Quantity        decimal.Decimal
	Price           decimal.Decimal
	Filled          decimal.Decimal
	Status          OrderStatus
	CreatedAt       time.Time

	// PendingConfirm marks an entry whose last execution attempt timed
	// out with unknown outcome. Such entries are excluded from matching
	// until a reconciliation pass confirms their true state.
	PendingConfirm bool
}

// Remaining returns the unfilled quantity mirrored by the entry.
func (e *IndexEntry) Remaining() decimal.Decimal {
	return e.Quantity.Sub(e.Filled)
}

// Matchable reports whether the entry may serve as a maker candidate:
// non-terminal status, positive remainder, and a confirmed last state.
func (e *IndexEntry) Matchable() bool {
	return !e.Status.Terminal() && e.Remaining().IsPositive() && !e.PendingConfirm
}
