package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/dvillela/propex/internal/domain"
	"github.com/dvillela/propex/internal/engine"
	"github.com/dvillela/propex/internal/ledger"
	"github.com/dvillela/propex/internal/store"
)

var propertyIDRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,64}$`)

// SubmitOrderRequest represents the input for order submission.
// Quantity and Price arrive as decimal strings so no float ever
// touches a monetary value.
type SubmitOrderRequest struct {
	PropertyID string
	Side       string
	Maker      string // hex address of the submitting holder
	Quantity   string // share units, ≤ 18 decimal places
	Price      string // quote units per share, ≤ 6 decimal places
}

// FailedPair describes one planned fill that did not execute.
type FailedPair struct {
	MakerOrderID uint64
	Quantity     string
	Reason       string
}

// SubmitResult is the exact per-pair outcome of a trade request: the
// fills that succeeded, the pairs that failed, and the unfilled
// remainder — never a bare success/failure for a multi-pair match.
type SubmitResult struct {
	PropertyID string
	Side       domain.OrderSide
	Taker      common.Address
	Requested  decimal.Decimal
	Fills      []domain.Fill
	Failed     []FailedPair
	Remainder  decimal.Decimal
	// Resting is the new open order carrying the remainder, nil when
	// the taker filled completely or resting failed.
	Resting *domain.Order
	// Halted reports that an infrastructure failure stopped the plan;
	// the remainder is not rested because the timed-out pair's true
	// outcome is unknown until reconciliation.
	Halted     bool
	HaltReason string
	RestError  string
}

// OrderService handles order submission, cancellation, and book
// queries. Matching and settlement deliberately run without a shared
// lock: the external ledger's per-pair atomicity is the only true
// serialization point, and the index catches up through confirmed
// upserts and reconciliation.
type OrderService struct {
	ledger     ledger.Authority
	index      *store.IndexStore
	settler    *SettlementExecutor
	reconciler *Reconciler
	activity   *store.ActivityStore
	logger     *slog.Logger
	timeout    time.Duration
	tolerance  decimal.Decimal
}

// NewOrderService creates a new OrderService with the given
// dependencies. tolerance is the absolute price band applied during
// matching.
func NewOrderService(
	auth ledger.Authority,
	index *store.IndexStore,
	settler *SettlementExecutor,
	reconciler *Reconciler,
	activity *store.ActivityStore,
	logger *slog.Logger,
	timeout time.Duration,
	tolerance decimal.Decimal,
) *OrderService {
	return &OrderService{
		ledger:     auth,
		index:      index,
		settler:    settler,
		reconciler: reconciler,
		activity:   activity,
		logger:     logger,
		timeout:    timeout,
		tolerance:  tolerance,
	}
}

// Submit validates the request, matches it against the ledger index,
// settles the plan pair by pair, retries once against fresh state when
// stale entries were detected, and rests any unfilled remainder as a
// new order through the normal creation path.
func (s *OrderService) Submit(ctx context.Context, req SubmitOrderRequest) (*SubmitResult, error) {
	taker, err := s.validate(req)
	if err != nil {
		return nil, err
	}

	result := &SubmitResult{
		PropertyID: taker.PropertyID,
		Side:       taker.Side,
		Taker:      taker.Maker,
		Requested:  taker.Quantity,
	}

	report := s.matchAndSettle(ctx, taker)
	s.collect(result, report)

	// One retry against fresh state when the index had drifted.
	executed := s.executedQuantity(result)
	if report.StaleDetected() && !report.Halted && executed.LessThan(taker.Quantity) {
		if _, rerr := s.reconciler.Reconcile(ctx, taker.PropertyID); rerr != nil {
			s.logger.Warn("reconcile before retry failed",
				slog.String("property_id", taker.PropertyID),
				slog.String("error", rerr.Error()),
			)
		} else {
			retry := taker
			retry.Quantity = taker.Quantity.Sub(executed)
			s.collect(result, s.matchAndSettle(ctx, retry))
		}
	}

	result.Remainder = taker.Quantity.Sub(s.executedQuantity(result))

	if result.Remainder.IsPositive() && !result.Halted {
		s.restRemainder(ctx, taker, result)
	}

	return result, nil
}

// matchAndSettle is one query → plan → execute pass for the given
// taker quantity. No lock spans the two steps; the settlement executor
// re-validates every pair against the live ledger.
func (s *OrderService) matchAndSettle(ctx context.Context, taker engine.Taker) *ExecutionReport {
	bound := engine.MakerBound(taker.Side, taker.LimitPrice, s.tolerance)
	candidates := s.index.QueryOpen(taker.PropertyID, taker.Side.Opposite(), &bound, 0)
	plan := engine.BuildPlan(taker, candidates, s.tolerance)
	return s.settler.Execute(ctx, taker, plan)
}

func (s *OrderService) collect(result *SubmitResult, report *ExecutionReport) {
	for _, o := range report.Outcomes {
		if o.Fill != nil {
			result.Fills = append(result.Fills, *o.Fill)
			continue
		}
		result.Failed = append(result.Failed, FailedPair{
			MakerOrderID: o.MakerOrderID,
			Quantity:     o.Quantity,
			Reason:       o.Err.Error(),
		})
	}
	if report.Halted {
		result.Halted = true
		result.HaltReason = report.HaltErr.Error()
	}
}

func (s *OrderService) executedQuantity(result *SubmitResult) decimal.Decimal {
	total := decimal.Decimal{}
	for _, f := range result.Fills {
		total = total.Add(f.Quantity)
	}
	return total
}

// restRemainder registers the unfilled remainder as a new resting
// order on the ledger and mirrors the confirmed state into the index.
func (s *OrderService) restRemainder(ctx context.Context, taker engine.Taker, result *SubmitResult) {
	cctx, cancel := context.WithTimeout(ctx, s.timeout)
	id, err := s.ledger.CreateOrder(cctx, taker.PropertyID, taker.Side, taker.Maker, result.Remainder, taker.LimitPrice)
	cancel()
	if err != nil {
		result.RestError = err.Error()
		s.logger.Warn("resting remainder failed",
			slog.String("property_id", taker.PropertyID),
			slog.String("error", err.Error()),
		)
		return
	}

	cctx, cancel = context.WithTimeout(ctx, s.timeout)
	state, err := s.ledger.GetOrder(cctx, taker.PropertyID, id)
	cancel()
	if err != nil {
		// Created but unconfirmed: the next reconciliation pass will
		// mirror it.
		result.RestError = fmt.Sprintf("order %d created but not yet mirrored: %v", id, err)
		return
	}

	s.index.Upsert(state.IndexEntry())
	order := domain.Order{
		ID:         state.ID,
		PropertyID: state.PropertyID,
		Side:       state.Side,
		Maker:      state.Maker,
		Quantity:   state.Quantity,
		Price:      state.Price,
		Filled:     state.Filled,
		Status:     state.Status(),
		CreatedAt:  state.CreatedAt,
	}
	result.Resting = &order

	s.audit(domain.Activity{
		Type:       domain.ActivityOrderPlaced,
		PropertyID: taker.PropertyID,
		Actor:      taker.Maker,
		Quantity:   order.Quantity,
		Price:      order.Price,
		At:         order.CreatedAt,
	})
}

// Cancel requests cancellation on the external ledger and promptly
// marks the mirrored entry Cancelled. Matching may still race a
// just-cancelled order; settlement fails closed on that pair.
func (s *OrderService) Cancel(ctx context.Context, propertyID string, orderID uint64, caller string) error {
	if !propertyIDRegex.MatchString(propertyID) {
		return &domain.ValidationError{Message: "property_id must match ^[a-zA-Z0-9_-]{1,64}$"}
	}
	if !common.IsHexAddress(caller) {
		return &domain.ValidationError{Message: "caller must be a valid hex address"}
	}

	cctx, cancel := context.WithTimeout(ctx, s.timeout)
	err := s.ledger.CancelOrder(cctx, propertyID, orderID, common.HexToAddress(caller))
	cancel()
	if err != nil {
		return mapLedgerErr(err)
	}

	s.index.MarkCancelled(propertyID, orderID)
	s.audit(domain.Activity{
		Type:       domain.ActivityOrderCancelled,
		PropertyID: propertyID,
		Actor:      common.HexToAddress(caller),
		At:         time.Now().UTC(),
	})
	return nil
}

// Book returns the matchable entries on one side of a property's book,
// best price first.
func (s *OrderService) Book(propertyID string, side string, limit int) ([]domain.IndexEntry, error) {
	if !propertyIDRegex.MatchString(propertyID) {
		return nil, &domain.ValidationError{Message: "property_id must match ^[a-zA-Z0-9_-]{1,64}$"}
	}
	sd := domain.OrderSide(side)
	if sd != domain.OrderSideBuy && sd != domain.OrderSideSell {
		return nil, &domain.ValidationError{Message: "side must be 'buy' or 'sell'"}
	}
	return s.index.QueryOpen(propertyID, sd, nil, limit), nil
}

func (s *OrderService) validate(req SubmitOrderRequest) (engine.Taker, error) {
	var taker engine.Taker

	if !propertyIDRegex.MatchString(req.PropertyID) {
		return taker, &domain.ValidationError{Message: "property_id must match ^[a-zA-Z0-9_-]{1,64}$"}
	}
	side := domain.OrderSide(req.Side)
	if side != domain.OrderSideBuy && side != domain.OrderSideSell {
		return taker, &domain.ValidationError{Message: "side must be 'buy' or 'sell'"}
	}
	if !common.IsHexAddress(req.Maker) {
		return taker, &domain.ValidationError{Message: "maker must be a valid hex address"}
	}
	quantity, err := domain.ParseShares(req.Quantity)
	if err != nil {
		return taker, &domain.ValidationError{Message: err.Error()}
	}
	if !quantity.IsPositive() {
		return taker, &domain.ValidationError{Message: "quantity must be greater than 0"}
	}
	price, err := domain.ParseQuote(req.Price)
	if err != nil {
		return taker, &domain.ValidationError{Message: err.Error()}
	}
	if price.IsNegative() {
		return taker, &domain.ValidationError{Message: "price must not be negative"}
	}

	return engine.Taker{
		PropertyID: req.PropertyID,
		Side:       side,
		Maker:      common.HexToAddress(req.Maker),
		Quantity:   quantity,
		LimitPrice: price,
	}, nil
}

func (s *OrderService) audit(a domain.Activity) {
	if s.activity == nil {
		return
	}
	if err := s.activity.Append(a); err != nil {
		s.logger.Warn("activity append failed", slog.String("error", err.Error()))
	}
}

// mapLedgerErr translates authority sentinels into domain errors for
// the handler layer.
func mapLedgerErr(err error) error {
	switch {
	case errors.Is(err, ledger.ErrOrderNotFound):
		return domain.ErrOrderNotFound
	case errors.Is(err, ledger.ErrOrderNotOpen):
		return domain.ErrOrderNotOpen
	case errors.Is(err, ledger.ErrNotMaker):
		return domain.ErrNotMaker
	default:
		return err
	}
}
