// Package engine computes fill plans. It is a pure read + compute
// step: given a taker order and maker candidates from the ledger
// index, it proposes fills but mutates nothing. The plan is advisory —
// the settlement executor re-validates every pair against the external
// ledger, which is the sole arbiter of truth.
package engine

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/dvillela/propex/internal/domain"
)

// Taker is the newly submitted order attempting to match.
type Taker struct {
	PropertyID string
	Side       domain.OrderSide
	Maker      common.Address
	Quantity   decimal.Decimal
	LimitPrice decimal.Decimal
}

// PlannedFill pairs one resting maker order with an agreed quantity at
// the maker's resting price (maker-price priority).
type PlannedFill struct {
	MakerOrderID uint64
	Maker        common.Address
	Quantity     decimal.Decimal
	Price        decimal.Decimal
}

// Plan is the ordered fill proposal plus the taker's unfilled
// remainder (zero when fully filled).
type Plan struct {
	Fills     []PlannedFill
	Remainder decimal.Decimal
}

// FilledQuantity returns the total quantity the plan proposes to fill.
func (p *Plan) FilledQuantity() decimal.Decimal {
	total := decimal.Decimal{}
	for _, f := range p.Fills {
		total = total.Add(f.Quantity)
	}
	return total
}

// Compatible reports whether a resting order's price is compatible
// with the taker's limit under one symmetric absolute tolerance:
// a buy matches sells priced at or below limit+tolerance, a sell
// matches buys priced at or above limit−tolerance. Prices sourced
// from the chain and from clients carry rounding noise, so the
// tolerance must never be zero in production.
func Compatible(takerSide domain.OrderSide, takerLimit, restingPrice, tolerance decimal.Decimal) bool {
	if takerSide == domain.OrderSideBuy {
		return restingPrice.LessThanOrEqual(takerLimit.Add(tolerance))
	}
	return restingPrice.GreaterThanOrEqual(takerLimit.Sub(tolerance))
}

// MakerBound returns the index query price bound for a taker limit:
// limit+tolerance when hunting sells, limit−tolerance (floored at
// zero) when hunting buys. The index itself stays tolerance-free; the
// policy lives here only.
func MakerBound(takerSide domain.OrderSide, takerLimit, tolerance decimal.Decimal) decimal.Decimal {
	if takerSide == domain.OrderSideBuy {
		return takerLimit.Add(tolerance)
	}
	bound := takerLimit.Sub(tolerance)
	if bound.IsNegative() {
		return decimal.Decimal{}
	}
	return bound
}

// BuildPlan walks the maker candidates — already ordered best price
// first, FIFO within a level — and greedily assigns
// fill = min(taker remaining, maker remaining) until the taker is
// exhausted or the next candidate's price is incompatible.
func BuildPlan(taker Taker, candidates []domain.IndexEntry, tolerance decimal.Decimal) Plan {
	plan := Plan{Remainder: taker.Quantity}

	for i := range candidates {
		c := &candidates[i]
		if !plan.Remainder.IsPositive() {
			break
		}
		if c.Side != taker.Side.Opposite() || !c.Matchable() {
			continue
		}
		// Candidates are sorted best-first, so the first incompatible
		// price ends the walk.
		if !Compatible(taker.Side, taker.LimitPrice, c.Price, tolerance) {
			break
		}
		// Self-matching would settle a holder against themselves.
		if c.Maker == taker.Maker {
			continue
		}

		fill := plan.Remainder
		if rem := c.Remaining(); rem.LessThan(fill) {
			fill = rem
		}
		plan.Fills = append(plan.Fills, PlannedFill{
			MakerOrderID: c.ContractOrderID,
			Maker:        c.Maker,
			Quantity:     fill,
			Price:        c.Price,
		})
		plan.Remainder = plan.Remainder.Sub(fill)
	}

	return plan
}
