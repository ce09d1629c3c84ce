// Package ledger defines the external ledger authority contract: the
// on-chain collaborator that owns order state, share custody, and quote
// custody. The exchange core never mutates balances itself; it requests
// state transitions here and mirrors confirmed outcomes into the
// off-chain index.
package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/dvillela/propex/internal/domain"
)

// Sentinel errors returned by an Authority. The settlement executor
// treats the first four as stale-state rejections (skip the pair); any
// other failure is an infrastructure fault and stops the plan.
var (
	ErrOrderNotFound         = errors.New("ledger: order not found")
	ErrOrderNotOpen          = errors.New("ledger: order cancelled or filled")
	ErrInsufficientRemaining = errors.New("ledger: fill exceeds remaining quantity")
	ErrInsufficientBalance   = errors.New("ledger: insufficient share or quote balance")
	ErrNotMaker              = errors.New("ledger: caller is not the order maker")
	ErrDepositNotFound       = errors.New("ledger: deposit not found")
)

// OrderState is the authoritative on-chain view of one order.
type OrderState struct {
	ID         uint64
	PropertyID string
	Side       domain.OrderSide
	Maker      common.Address
	Quantity   decimal.Decimal
	Price      decimal.Decimal
	Filled     decimal.Decimal
	Cancelled  bool
	CreatedAt  time.Time
}

// Status derives the order's lifecycle state from its on-chain fields.
func (s *OrderState) Status() domain.OrderStatus {
	return domain.StatusOf(s.Quantity, s.Filled, s.Cancelled)
}

// IndexEntry converts the authoritative state into its off-chain mirror
// form. This is the only way entries enter the ledger index.
func (s *OrderState) IndexEntry() domain.IndexEntry {
	return domain.IndexEntry{
		ContractOrderID: s.ID,
		PropertyID:      s.PropertyID,
		Side:            s.Side,
		Maker:           s.Maker,
		Quantity:        s.Quantity,
		Price:           s.Price,
		Filled:          s.Filled,
		Status:          s.Status(),
		CreatedAt:       s.CreatedAt,
	}
}

// ExecutionReceipt confirms one atomic execution: share custody, quote
// custody, and both protocol fees moved in a single transition.
type ExecutionReceipt struct {
	TxRef      common.Hash
	OrderID    uint64
	Quantity   decimal.Decimal
	Price      decimal.Decimal
	Maker      common.Address
	Taker      common.Address
	MakerFee   decimal.Decimal
	TakerFee   decimal.Decimal
	ExecutedAt time.Time
}

// TokenSnapshot is a point-in-time view of token balances resolved at a
// single ledger height. EligibleSupply excludes treasury-held shares.
type TokenSnapshot struct {
	Height         uint64
	EligibleSupply decimal.Decimal
	Balances       map[common.Address]decimal.Decimal
}

// Authority is the external ledger contract surface. Every call must be
// bounded by the caller's context deadline. All calls are safe to retry
// on timeout except ExecuteOrder, which must only be retried after
// GetOrder confirms the prior attempt did not land.
type Authority interface {
	// CreateOrder registers a new resting order and returns its
	// monotonic, authority-assigned id.
	CreateOrder(ctx context.Context, propertyID string, side domain.OrderSide, maker common.Address, quantity, price decimal.Decimal) (uint64, error)

	// ExecuteOrder atomically fills quantity against the identified
	// maker order on behalf of taker: shares and quote move between the
	// parties, protocol fees are debited from both sides, and the maker
	// order's filled amount advances. All-or-nothing.
	ExecuteOrder(ctx context.Context, propertyID string, orderID uint64, taker common.Address, quantity decimal.Decimal) (*ExecutionReceipt, error)

	// CancelOrder cancels an open order; only the maker may cancel.
	CancelOrder(ctx context.Context, propertyID string, orderID uint64, caller common.Address) error

	// GetOrder returns the authoritative state of one order.
	GetOrder(ctx context.Context, propertyID string, orderID uint64) (*OrderState, error)

	// NextOrderID returns the authority's next-order-id counter; every
	// assigned id is strictly below it.
	NextOrderID(ctx context.Context, propertyID string) (uint64, error)

	// BalanceOf returns holder's current share balance for the property.
	BalanceOf(ctx context.Context, propertyID string, holder common.Address) (decimal.Decimal, error)

	// TokenSnapshot resolves all holder balances and the eligible supply
	// at one consistent ledger height.
	TokenSnapshot(ctx context.Context, propertyID string) (*TokenSnapshot, error)

	// VerifyDeposit checks that a yield deposit with the given reference
	// and amount actually landed in the custody address. Each reference
	// backs at most one distribution round.
	VerifyDeposit(ctx context.Context, propertyID string, ref common.Hash, amount decimal.Decimal) error
}
