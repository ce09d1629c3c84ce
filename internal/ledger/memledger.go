package ledger

import (
	"context"
	"crypto/rand"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/dvillela/propex/internal/domain"
)

// MemLedger is an in-process Authority with the full execution
// semantics of the on-chain contract: atomic custody moves, protocol
// fees debited from both sides, per-property monotonic order ids, and
// height-stamped token snapshots. It backs tests and local development;
// production wires a chain-RPC client behind the same interface.
type MemLedger struct {
	mu       sync.Mutex
	fees     domain.FeePolicy
	height   uint64
	props    map[string]*memProperty
	quote    map[common.Address]decimal.Decimal
	deposits map[common.Hash]memDeposit
}

type memProperty struct {
	nextOrderID uint64
	orders      map[uint64]*OrderState
	balances    map[common.Address]decimal.Decimal
}

type memDeposit struct {
	propertyID string
	amount     decimal.Decimal
}

// NewMemLedger creates an empty ledger charging fees per policy.
func NewMemLedger(fees domain.FeePolicy) *MemLedger {
	return &MemLedger{
		fees:     fees,
		props:    make(map[string]*memProperty),
		quote:    make(map[common.Address]decimal.Decimal),
		deposits: make(map[common.Hash]memDeposit),
	}
}

func (l *MemLedger) property(id string) *memProperty {
	p, ok := l.props[id]
	if !ok {
		p = &memProperty{
			nextOrderID: 1,
			orders:      make(map[uint64]*OrderState),
			balances:    make(map[common.Address]decimal.Decimal),
		}
		l.props[id] = p
	}
	return p
}

// MintShares issues shares to holder, growing the property's supply.
// Shares minted to the treasury address are excluded from the eligible
// supply reported by TokenSnapshot.
func (l *MemLedger) MintShares(propertyID string, holder common.Address, quantity decimal.Decimal) {
	l.mu.Lock()
	defer l.mu.Unlock()
	p := l.property(propertyID)
	p.balances[holder] = p.balances[holder].Add(quantity)
	l.height++
}

// FundQuote credits quote currency to holder.
func (l *MemLedger) FundQuote(holder common.Address, amount decimal.Decimal) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.quote[holder] = l.quote[holder].Add(amount)
	l.height++
}

// QuoteBalanceOf returns holder's quote balance.
func (l *MemLedger) QuoteBalanceOf(holder common.Address) decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.quote[holder]
}

// RecordDeposit registers a landed yield deposit under ref.
func (l *MemLedger) RecordDeposit(ref common.Hash, propertyID string, amount decimal.Decimal) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.deposits[ref] = memDeposit{propertyID: propertyID, amount: amount}
	l.height++
}

// CreateOrder registers a resting order after checking the maker can
// cover it at creation time. Balances are not escrowed; execution
// re-checks them, which is where the insufficient-balance race
// surfaces as a per-pair settlement failure.
func (l *MemLedger) CreateOrder(ctx context.Context, propertyID string, side domain.OrderSide, maker common.Address, quantity, price decimal.Decimal) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	p := l.property(propertyID)
	if side == domain.OrderSideSell {
		if p.balances[maker].LessThan(quantity) {
			return 0, ErrInsufficientBalance
		}
	} else {
		if l.quote[maker].LessThan(quantity.Mul(price)) {
			return 0, ErrInsufficientBalance
		}
	}

	id := p.nextOrderID
	p.nextOrderID++
	p.orders[id] = &OrderState{
		ID:         id,
		PropertyID: propertyID,
		Side:       side,
		Maker:      maker,
		Quantity:   quantity,
		Price:      price,
		CreatedAt:  time.Now().UTC(),
	}
	l.height++
	return id, nil
}

// ExecuteOrder fills quantity against the maker order on behalf of
// taker. The transition is all-or-nothing: share custody, quote
// custody, both fees, and the filled amount move together or not at
// all.
func (l *MemLedger) ExecuteOrder(ctx context.Context, propertyID string, orderID uint64, taker common.Address, quantity decimal.Decimal) (*ExecutionReceipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	p := l.property(propertyID)
	o, ok := p.orders[orderID]
	if !ok {
		return nil, ErrOrderNotFound
	}
	if o.Cancelled || o.Filled.GreaterThanOrEqual(o.Quantity) {
		return nil, ErrOrderNotOpen
	}
	if quantity.GreaterThan(o.Quantity.Sub(o.Filled)) {
		return nil, ErrInsufficientRemaining
	}

	notional := quantity.Mul(o.Price)
	makerFee := l.fees.TradeFee(notional)
	takerFee := l.fees.TradeFee(notional)

	var seller, buyer common.Address
	if o.Side == domain.OrderSideSell {
		seller, buyer = o.Maker, taker
	} else {
		seller, buyer = taker, o.Maker
	}

	buyerFee, sellerFee := takerFee, makerFee
	if o.Side == domain.OrderSideBuy {
		buyerFee, sellerFee = makerFee, takerFee
	}

	// Validate everything before mutating anything.
	if p.balances[seller].LessThan(quantity) {
		return nil, ErrInsufficientBalance
	}
	if l.quote[buyer].LessThan(notional.Add(buyerFee)) {
		return nil, ErrInsufficientBalance
	}

	p.balances[seller] = p.balances[seller].Sub(quantity)
	p.balances[buyer] = p.balances[buyer].Add(quantity)
	l.quote[buyer] = l.quote[buyer].Sub(notional.Add(buyerFee))
	l.quote[seller] = l.quote[seller].Add(notional.Sub(sellerFee))
	l.quote[l.fees.Treasury] = l.quote[l.fees.Treasury].Add(makerFee).Add(takerFee)

	o.Filled = o.Filled.Add(quantity)
	l.height++

	var ref common.Hash
	_, _ = rand.Read(ref[:])

	return &ExecutionReceipt{
		TxRef:      ref,
		OrderID:    orderID,
		Quantity:   quantity,
		Price:      o.Price,
		Maker:      o.Maker,
		Taker:      taker,
		MakerFee:   makerFee,
		TakerFee:   takerFee,
		ExecutedAt: time.Now().UTC(),
	}, nil
}

// CancelOrder cancels an open order; only the maker may cancel.
func (l *MemLedger) CancelOrder(ctx context.Context, propertyID string, orderID uint64, caller common.Address) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	p := l.property(propertyID)
	o, ok := p.orders[orderID]
	if !ok {
		return ErrOrderNotFound
	}
	if caller != o.Maker {
		return ErrNotMaker
	}
	if o.Cancelled || o.Filled.GreaterThanOrEqual(o.Quantity) {
		return ErrOrderNotOpen
	}
	o.Cancelled = true
	l.height++
	return nil
}

// GetOrder returns a copy of the authoritative order state.
func (l *MemLedger) GetOrder(ctx context.Context, propertyID string, orderID uint64) (*OrderState, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	o, ok := l.property(propertyID).orders[orderID]
	if !ok {
		return nil, ErrOrderNotFound
	}
	cp := *o
	return &cp, nil
}

// NextOrderID returns the property's next-order-id counter.
func (l *MemLedger) NextOrderID(ctx context.Context, propertyID string) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.property(propertyID).nextOrderID, nil
}

// BalanceOf returns holder's current share balance for the property.
func (l *MemLedger) BalanceOf(ctx context.Context, propertyID string, holder common.Address) (decimal.Decimal, error) {
	if err := ctx.Err(); err != nil {
		return decimal.Decimal{}, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.property(propertyID).balances[holder], nil
}

// TokenSnapshot resolves every holder balance at the current height.
// Treasury holdings are excluded from both the balance map and the
// eligible supply.
func (l *MemLedger) TokenSnapshot(ctx context.Context, propertyID string) (*TokenSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	p := l.property(propertyID)
	snap := &TokenSnapshot{
		Height:   l.height,
		Balances: make(map[common.Address]decimal.Decimal, len(p.balances)),
	}
	for holder, bal := range p.balances {
		if holder == l.fees.Treasury || !bal.IsPositive() {
			continue
		}
		snap.Balances[holder] = bal
		snap.EligibleSupply = snap.EligibleSupply.Add(bal)
	}
	return snap, nil
}

// VerifyDeposit checks that a deposit with the given reference landed
// for the property with exactly the claimed amount.
func (l *MemLedger) VerifyDeposit(ctx context.Context, propertyID string, ref common.Hash, amount decimal.Decimal) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	d, ok := l.deposits[ref]
	if !ok || d.propertyID != propertyID || !d.amount.Equal(amount) {
		return ErrDepositNotFound
	}
	return nil
}

var _ Authority = (*MemLedger)(nil)
