package domain

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// ActivityType names an audit event kind.
type ActivityType string

const (
	ActivityOrderPlaced      ActivityType = "order.placed"
	ActivityOrderCancelled   ActivityType = "order.cancelled"
	ActivityTradeExecuted    ActivityType = "trade.executed"
	ActivityIndexReconciled  ActivityType = "index.reconciled"
	ActivityRoundDistributed ActivityType = "round.distributed"
	ActivityYieldClaimed     ActivityType = "yield.claimed"
)

// Activity is one append-only audit record. Persistence is best-effort:
// a failed append is logged and never blocks settlement.
type Activity struct {
	ID           string          `json:"id"`
	Type         ActivityType    `json:"type"`
	PropertyID   string          `json:"property_id"`
	Actor        common.Address  `json:"actor"`
	Counterparty common.Address  `json:"counterparty,omitempty"`
	Quantity     decimal.Decimal `json:"quantity"`
	Price        decimal.Decimal `json:"price"`
	Amount       decimal.Decimal `json:"amount"`
	TxRef        common.Hash     `json:"tx_ref,omitempty"`
	At           time.Time       `json:"at"`
}
