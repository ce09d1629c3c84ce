package domain

import (
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
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

func TestStatusOf(t *testing.T) {
	tests := []struct {
		name      string
		quantity  string
		filled    string
		cancelled bool
		want      OrderStatus
	}{
		{"open", "10", "0", false, OrderStatusOpen},
		{"partially filled", "10", "3", false, OrderStatusPartiallyFilled},
		{"filled", "10", "10", false, OrderStatusFilled},
		{"cancelled", "10", "0", true, OrderStatusCancelled},
		{"cancelled wins over partial", "10", "3", true, OrderStatusCancelled},
		{"cancelled wins over filled", "10", "10", true, OrderStatusCancelled},
		{"fractional partial", "1.5", "0.000000000000000001", false, OrderStatusPartiallyFilled},
		{"fractional filled", "1.5", "1.5", false, OrderStatusFilled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := StatusOf(d(tt.quantity), d(tt.filled), tt.cancelled)
			if got != tt.want {
				t.Errorf("StatusOf(%s, %s, %v) = %s, want %s", tt.quantity, tt.filled, tt.cancelled, got, tt.want)
			}
		})
	}
}

func TestOrderSideOpposite(t *testing.T) {
	if OrderSideBuy.Opposite() != OrderSideSell {
		t.Errorf("buy opposite = %s, want sell", OrderSideBuy.Opposite())
	}
	if OrderSideSell.Opposite() != OrderSideBuy {
		t.Errorf("sell opposite = %s, want buy", OrderSideSell.Opposite())
	}
}

func TestIndexEntryMatchable(t *testing.T) {
	base := IndexEntry{
		ContractOrderID: 1,
		PropertyID:      "prop-1",
		Side:            OrderSideSell,
		Quantity:        d("10"),
		Filled:          d("0"),
		Status:          OrderStatusOpen,
		CreatedAt:       time.Now(),
	}

	tests := []struct {
		name   string
		mutate func(*IndexEntry)
		want   bool
	}{
		{"open with remainder", func(e *IndexEntry) {}, true},
		{"partially filled", func(e *IndexEntry) {
			e.Filled = d("3")
			e.Status = OrderStatusPartiallyFilled
		}, true},
		{"fully filled", func(e *IndexEntry) {
			e.Filled = d("10")
			e.Status = OrderStatusFilled
		}, false},
		{"cancelled", func(e *IndexEntry) { e.Status = OrderStatusCancelled }, false},
		{"pending confirmation", func(e *IndexEntry) { e.PendingConfirm = true }, false},
		{"zero remainder despite open status", func(e *IndexEntry) { e.Filled = d("10") }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := base
			tt.mutate(&e)
			if got := e.Matchable(); got != tt.want {
				t.Errorf("Matchable() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestOrderRemaining(t *testing.T) {
	o := Order{Quantity: d("10.5"), Filled: d("4.25")}
	if !o.Remaining().Equal(d("6.25")) {
		t.Errorf("Remaining() = %s, want 6.25", o.Remaining())
	}
}
