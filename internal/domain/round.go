package domain

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// YieldScale is the fixed scale factor for per-unit yield arithmetic.
// PerUnitYield values are integers in micro-units × YieldScale per
// share, so every holder entitlement is reproducible from the persisted
// per-unit value alone.
var YieldScale = decimal.New(1, 6)

// RoundState is the distribution round lifecycle. Transitions are
// strictly Pending → Snapshotted → Distributed; no state is skipped and
// a Distributed round is never recomputed.
type RoundState string

const (
	RoundStatePending     RoundState = "pending"
	RoundStateSnapshotted RoundState = "snapshotted"
	RoundStateDistributed RoundState = "distributed"
)

// DistributionRound records one rental-income deposit processed into
// per-holder entitlements at a fixed snapshot. Immutable once
// Distributed.
type DistributionRound struct {
	ID             string
	PropertyID     string
	Deposited      decimal.Decimal // quote units
	DepositRef     common.Hash
	EligibleSupply decimal.Decimal // share units at snapshot height
	PerUnitYield   decimal.Decimal // micro-units × YieldScale per share
	Dust           decimal.Decimal // quote units never distributed
	SnapshotHeight uint64
	State          RoundState
	CreatedAt      time.Time
}

// MarkSnapshotted transitions Pending → Snapshotted, freezing the
// eligible supply and the ledger height every balance lookup uses.
func (r *DistributionRound) MarkSnapshotted(height uint64, eligibleSupply decimal.Decimal) error {
	if r.State != RoundStatePending {
		return ErrRoundStateInvalid
	}
	r.SnapshotHeight = height
	r.EligibleSupply = eligibleSupply
	r.State = RoundStateSnapshotted
	return nil
}

// MarkDistributed transitions Snapshotted → Distributed with the
// computed per-unit yield and the undistributed dust.
func (r *DistributionRound) MarkDistributed(perUnit, dust decimal.Decimal) error {
	if r.State != RoundStateSnapshotted {
		return ErrRoundStateInvalid
	}
	r.PerUnitYield = perUnit
	r.Dust = dust
	r.State = RoundStateDistributed
	return nil
}

// PerUnitYield computes floor(deposited_micro × YieldScale / supply)
// with exact integer arithmetic. Returns ErrZeroSupply when no eligible
// shares exist.
func PerUnitYield(deposited, eligibleSupply decimal.Decimal) (decimal.Decimal, error) {
	if !eligibleSupply.IsPositive() {
		return decimal.Decimal{}, ErrZeroSupply
	}
	q, _ := MicroUnits(deposited).Mul(YieldScale).QuoRem(eligibleSupply, 0)
	return q, nil
}

// Entitlement computes a holder's payout for balance b as
// floor(b × perUnit / YieldScale) micro-units, returned in quote units.
// The two-step floor (per-unit first, entitlement second) bounds each
// holder's rounding loss to under one micro-unit.
func Entitlement(perUnit, balance decimal.Decimal) decimal.Decimal {
	micro, _ := balance.Mul(perUnit).QuoRem(YieldScale, 0)
	return FromMicroUnits(micro)
}

// BalanceSnapshot is the holder → share balance view captured
// atomically at distribution time. Immutable once a round references
// it.
type BalanceSnapshot struct {
	RoundID  string
	Height   uint64
	Balances map[common.Address]decimal.Decimal
}

// BalanceOf returns the snapshotted balance for holder, zero when the
// holder is absent from the snapshot.
func (s *BalanceSnapshot) BalanceOf(holder common.Address) decimal.Decimal {
	return s.Balances[holder]
}

// Claim records one holder's payout against a round. At most one claim
// exists per (round, holder).
type Claim struct {
	RoundID   string
	Holder    common.Address
	Amount    decimal.Decimal
	ClaimedAt time.Time
}
