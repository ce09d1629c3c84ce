package engine

import (
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/dvillela/propex/internal/domain"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func addr(n byte) common.Address {
	return common.Address{19: n}
}

func entry(id uint64, side domain.OrderSide, maker common.Address, quantity, filled, price string, age time.Duration) domain.IndexEntry {
	q, f := d(quantity), d(filled)
	return domain.IndexEntry{
		ContractOrderID: id,
		PropertyID:      "prop-1",
		Side:            side,
		Maker:           maker,
		Quantity:        q,
		Price:           d(price),
		Filled:          f,
		Status:          domain.StatusOf(q, f, false),
		CreatedAt:       time.Now().Add(-age),
	}
}

func TestCompatible(t *testing.T) {
	tol := d("0.000001")

	tests := []struct {
		name    string
		side    domain.OrderSide
		limit   string
		resting string
		want    bool
	}{
		{"buy matches equal price", domain.OrderSideBuy, "100", "100", true},
		{"buy matches cheaper sell", domain.OrderSideBuy, "100", "99", true},
		{"buy matches within tolerance above", domain.OrderSideBuy, "100", "100.000001", true},
		{"buy rejects beyond tolerance", domain.OrderSideBuy, "100", "100.000002", false},
		{"sell matches equal price", domain.OrderSideSell, "100", "100", true},
		{"sell matches richer buy", domain.OrderSideSell, "100", "101", true},
		{"sell matches within tolerance below", domain.OrderSideSell, "100", "99.999999", true},
		{"sell rejects beyond tolerance", domain.OrderSideSell, "100", "99.999998", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Compatible(tt.side, d(tt.limit), d(tt.resting), tol)
			if got != tt.want {
				t.Errorf("Compatible(%s, %s, %s) = %v, want %v", tt.side, tt.limit, tt.resting, got, tt.want)
			}
		})
	}
}

func TestMakerBound(t *testing.T) {
	tol := d("0.000001")

	if got := MakerBound(domain.OrderSideBuy, d("100"), tol); !got.Equal(d("100.000001")) {
		t.Errorf("buy bound = %s, want 100.000001", got)
	}
	if got := MakerBound(domain.OrderSideSell, d("100"), tol); !got.Equal(d("99.999999")) {
		t.Errorf("sell bound = %s, want 99.999999", got)
	}
	// A sell near zero never produces a negative bound.
	if got := MakerBound(domain.OrderSideSell, d("0"), tol); !got.IsZero() {
		t.Errorf("sell bound at zero = %s, want 0", got)
	}
}

func TestBuildPlanPartialFill(t *testing.T) {
	// One resting sell of 5 at 100; a buy of 8 at 100 fills 5 and
	// leaves a remainder of 3.
	taker := Taker{
		PropertyID: "prop-1",
		Side:       domain.OrderSideBuy,
		Maker:      addr(9),
		Quantity:   d("8"),
		LimitPrice: d("100"),
	}
	candidates := []domain.IndexEntry{
		entry(1, domain.OrderSideSell, addr(1), "5", "0", "100", time.Minute),
	}

	plan := BuildPlan(taker, candidates, d("0"))

	if len(plan.Fills) != 1 {
		t.Fatalf("fills = %d, want 1", len(plan.Fills))
	}
	f := plan.Fills[0]
	if f.MakerOrderID != 1 || !f.Quantity.Equal(d("5")) || !f.Price.Equal(d("100")) {
		t.Errorf("fill = {id=%d qty=%s price=%s}, want {id=1 qty=5 price=100}", f.MakerOrderID, f.Quantity, f.Price)
	}
	if !plan.Remainder.Equal(d("3")) {
		t.Errorf("remainder = %s, want 3", plan.Remainder)
	}
}

func TestBuildPlanFIFOAcrossLevels(t *testing.T) {
	// Two sells at 99 (older first) and one at 100. A buy of 12 at 100
	// consumes them in price-time order.
	taker := Taker{
		PropertyID: "prop-1",
		Side:       domain.OrderSideBuy,
		Maker:      addr(9),
		Quantity:   d("12"),
		LimitPrice: d("100"),
	}
	candidates := []domain.IndexEntry{
		entry(3, domain.OrderSideSell, addr(1), "4", "0", "99", 3*time.Minute),
		entry(5, domain.OrderSideSell, addr(2), "4", "0", "99", time.Minute),
		entry(7, domain.OrderSideSell, addr(3), "10", "0", "100", 2*time.Minute),
	}

	plan := BuildPlan(taker, candidates, d("0"))

	wantIDs := []uint64{3, 5, 7}
	wantQty := []string{"4", "4", "4"}
	if len(plan.Fills) != len(wantIDs) {
		t.Fatalf("fills = %d, want %d", len(plan.Fills), len(wantIDs))
	}
	for i, f := range plan.Fills {
		if f.MakerOrderID != wantIDs[i] || !f.Quantity.Equal(d(wantQty[i])) {
			t.Errorf("fill[%d] = {id=%d qty=%s}, want {id=%d qty=%s}", i, f.MakerOrderID, f.Quantity, wantIDs[i], wantQty[i])
		}
	}
	if !plan.Remainder.IsZero() {
		t.Errorf("remainder = %s, want 0", plan.Remainder)
	}
}

func TestBuildPlanStopsAtIncompatiblePrice(t *testing.T) {
	// Candidates are best-first; the first incompatible price ends the
	// walk even when later entries would have matched at other prices.
	taker := Taker{
		PropertyID: "prop-1",
		Side:       domain.OrderSideBuy,
		Maker:      addr(9),
		Quantity:   d("10"),
		LimitPrice: d("100"),
	}
	candidates := []domain.IndexEntry{
		entry(1, domain.OrderSideSell, addr(1), "2", "0", "100", time.Minute),
		entry(2, domain.OrderSideSell, addr(2), "2", "0", "101", time.Minute),
	}

	plan := BuildPlan(taker, candidates, d("0"))

	if len(plan.Fills) != 1 {
		t.Fatalf("fills = %d, want 1", len(plan.Fills))
	}
	if !plan.Remainder.Equal(d("8")) {
		t.Errorf("remainder = %s, want 8", plan.Remainder)
	}
}

func TestBuildPlanSkipsSelfMatch(t *testing.T) {
	self := addr(9)
	taker := Taker{
		PropertyID: "prop-1",
		Side:       domain.OrderSideBuy,
		Maker:      self,
		Quantity:   d("5"),
		LimitPrice: d("100"),
	}
	candidates := []domain.IndexEntry{
		entry(1, domain.OrderSideSell, self, "5", "0", "99", 2*time.Minute),
		entry(2, domain.OrderSideSell, addr(2), "5", "0", "100", time.Minute),
	}

	plan := BuildPlan(taker, candidates, d("0"))

	if len(plan.Fills) != 1 || plan.Fills[0].MakerOrderID != 2 {
		t.Fatalf("fills = %+v, want one fill against order 2", plan.Fills)
	}
}

func TestBuildPlanSkipsUnmatchable(t *testing.T) {
	pending := entry(1, domain.OrderSideSell, addr(1), "5", "0", "99", 2*time.Minute)
	pending.PendingConfirm = true
	cancelled := entry(2, domain.OrderSideSell, addr(2), "5", "0", "99", time.Minute)
	cancelled.Status = domain.OrderStatusCancelled

	taker := Taker{
		PropertyID: "prop-1",
		Side:       domain.OrderSideBuy,
		Maker:      addr(9),
		Quantity:   d("5"),
		LimitPrice: d("100"),
	}
	candidates := []domain.IndexEntry{
		pending,
		cancelled,
		entry(3, domain.OrderSideSell, addr(3), "5", "0", "100", time.Minute),
	}

	plan := BuildPlan(taker, candidates, d("0"))

	if len(plan.Fills) != 1 || plan.Fills[0].MakerOrderID != 3 {
		t.Fatalf("fills = %+v, want one fill against order 3", plan.Fills)
	}
}

func TestBuildPlanUsesMakerRemaining(t *testing.T) {
	// A partially filled maker contributes only its remainder.
	taker := Taker{
		PropertyID: "prop-1",
		Side:       domain.OrderSideSell,
		Maker:      addr(9),
		Quantity:   d("10"),
		LimitPrice: d("100"),
	}
	candidates := []domain.IndexEntry{
		entry(1, domain.OrderSideBuy, addr(1), "8", "6", "100", time.Minute),
	}

	plan := BuildPlan(taker, candidates, d("0"))

	if len(plan.Fills) != 1 || !plan.Fills[0].Quantity.Equal(d("2")) {
		t.Fatalf("fills = %+v, want one fill of 2", plan.Fills)
	}
	if !plan.Remainder.Equal(d("8")) {
		t.Errorf("remainder = %s, want 8", plan.Remainder)
	}
}

func TestBuildPlanNoCandidates(t *testing.T) {
	taker := Taker{
		PropertyID: "prop-1",
		Side:       domain.OrderSideBuy,
		Maker:      addr(9),
		Quantity:   d("5"),
		LimitPrice: d("100"),
	}

	plan := BuildPlan(taker, nil, d("0"))

	if len(plan.Fills) != 0 {
		t.Errorf("fills = %d, want 0", len(plan.Fills))
	}
	if !plan.Remainder.Equal(d("5")) {
		t.Errorf("remainder = %s, want 5", plan.Remainder)
	}
}
