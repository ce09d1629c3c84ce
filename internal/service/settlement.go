package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/dvillela/propex/internal/domain"
	"github.com/dvillela/propex/internal/engine"
	"github.com/dvillela/propex/internal/ledger"
	"github.com/dvillela/propex/internal/store"
)

// PairOutcome is the result of one planned fill attempt. Exactly one
// of Fill / Err is meaningful; Phantom and Unknown qualify Err.
type PairOutcome struct {
	MakerOrderID uint64
	Quantity     string
	Fill         *domain.Fill
	Err          error
	// Phantom marks a maker id the ledger has no record of; the index
	// entry was purged.
	Phantom bool
	// Unknown marks a timeout: the execution may or may not have
	// landed, and the entry is quarantined until reconciliation.
	Unknown bool
}

// ExecutionReport lists every pair attempted, in plan order. A report
// is never collapsed into a bare success/failure: callers see exactly
// which pairs executed and which did not.
type ExecutionReport struct {
	Outcomes []PairOutcome
	// Halted is set when an infrastructure failure (timeout, transport)
	// stopped the remaining pairs. Already-executed pairs are final.
	Halted  bool
	HaltErr error
}

// Fills returns the confirmed fills in execution order.
func (r *ExecutionReport) Fills() []domain.Fill {
	var out []domain.Fill
	for _, o := range r.Outcomes {
		if o.Fill != nil {
			out = append(out, *o.Fill)
		}
	}
	return out
}

// StaleDetected reports whether any pair failed because the index had
// drifted from the ledger (phantom entry or stale remaining quantity).
// The caller may reconcile and retry once against fresh state.
func (r *ExecutionReport) StaleDetected() bool {
	for _, o := range r.Outcomes {
		if o.Phantom {
			return true
		}
		if o.Err != nil && !o.Unknown {
			return true
		}
	}
	return false
}

// SettlementExecutor turns fill plans into authoritative state
// transitions on the external ledger and keeps the ledger index
// consistent with each confirmed outcome.
type SettlementExecutor struct {
	ledger   ledger.Authority
	index    *store.IndexStore
	activity *store.ActivityStore
	logger   *slog.Logger
	timeout  time.Duration
}

// NewSettlementExecutor creates an executor whose every ledger call is
// bounded by timeout.
func NewSettlementExecutor(
	auth ledger.Authority,
	index *store.IndexStore,
	activity *store.ActivityStore,
	logger *slog.Logger,
	timeout time.Duration,
) *SettlementExecutor {
	return &SettlementExecutor{
		ledger:   auth,
		index:    index,
		activity: activity,
		logger:   logger,
		timeout:  timeout,
	}
}

// rejection reports whether err is a stale-state rejection: the pair
// is skipped and the next one tried. Anything else is an
// infrastructure fault and halts the plan.
func rejection(err error) bool {
	return errors.Is(err, ledger.ErrOrderNotFound) ||
		errors.Is(err, ledger.ErrOrderNotOpen) ||
		errors.Is(err, ledger.ErrInsufficientRemaining) ||
		errors.Is(err, ledger.ErrInsufficientBalance)
}

// Execute attempts every pair of the plan in order. Per pair the
// ledger call is all-or-nothing; no partial-plan rollback exists, so
// executed pairs are final even when later pairs fail. A timeout is an
// unknown outcome: the maker entry is quarantined from matching and
// the remaining pairs are not attempted.
func (e *SettlementExecutor) Execute(ctx context.Context, taker engine.Taker, plan engine.Plan) *ExecutionReport {
	report := &ExecutionReport{}

	for _, pf := range plan.Fills {
		outcome := PairOutcome{MakerOrderID: pf.MakerOrderID, Quantity: pf.Quantity.String()}

		cctx, cancel := context.WithTimeout(ctx, e.timeout)
		receipt, err := e.ledger.ExecuteOrder(cctx, taker.PropertyID, pf.MakerOrderID, taker.Maker, pf.Quantity)
		cancel()

		switch {
		case err == nil:
			fill := domain.Fill{
				MakerOrderID: receipt.OrderID,
				PropertyID:   taker.PropertyID,
				TakerSide:    taker.Side,
				Quantity:     receipt.Quantity,
				Price:        receipt.Price,
				Maker:        receipt.Maker,
				Taker:        receipt.Taker,
				MakerFee:     receipt.MakerFee,
				TakerFee:     receipt.TakerFee,
				TxRef:        receipt.TxRef,
				ExecutedAt:   receipt.ExecutedAt,
			}
			outcome.Fill = &fill
			e.refreshEntry(ctx, taker.PropertyID, pf.MakerOrderID)
			e.audit(domain.Activity{
				Type:         domain.ActivityTradeExecuted,
				PropertyID:   taker.PropertyID,
				Actor:        receipt.Taker,
				Counterparty: receipt.Maker,
				Quantity:     receipt.Quantity,
				Price:        receipt.Price,
				Amount:       fill.Notional(),
				TxRef:        receipt.TxRef,
				At:           receipt.ExecutedAt,
			})

		case errors.Is(err, ledger.ErrOrderNotFound):
			// Phantom: the index claimed an order the ledger has no
			// record of. Purge it so it is never trusted again.
			outcome.Err = err
			outcome.Phantom = true
			e.index.Delete(taker.PropertyID, pf.MakerOrderID)
			e.logger.Warn("phantom order purged during settlement",
				slog.String("property_id", taker.PropertyID),
				slog.Uint64("maker_order_id", pf.MakerOrderID),
			)

		case rejection(err):
			// Stale remaining quantity or a just-cancelled maker. The
			// ledger is the arbiter: skip this pair, try the next.
			outcome.Err = err
			e.refreshEntry(ctx, taker.PropertyID, pf.MakerOrderID)

		default:
			// Timeout or transport failure: outcome unknown. Do not
			// assume success or failure; quarantine the entry and stop.
			outcome.Err = err
			outcome.Unknown = true
			e.index.MarkPending(taker.PropertyID, pf.MakerOrderID)
			report.Outcomes = append(report.Outcomes, outcome)
			report.Halted = true
			report.HaltErr = err
			return report
		}

		report.Outcomes = append(report.Outcomes, outcome)
	}

	return report
}

// refreshEntry mirrors the ledger's current state for one order into
// the index. When the read fails the entry is quarantined instead, so
// matching never proceeds on unconfirmed state.
func (e *SettlementExecutor) refreshEntry(ctx context.Context, propertyID string, orderID uint64) {
	cctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	state, err := e.ledger.GetOrder(cctx, propertyID, orderID)
	switch {
	case err == nil:
		e.index.Upsert(state.IndexEntry())
	case errors.Is(err, ledger.ErrOrderNotFound):
		e.index.Delete(propertyID, orderID)
	default:
		e.index.MarkPending(propertyID, orderID)
	}
}

// audit appends best-effort: a failed write is logged, never surfaced.
func (e *SettlementExecutor) audit(a domain.Activity) {
	if e.activity == nil {
		return
	}
	if err := e.activity.Append(a); err != nil {
		e.logger.Warn("activity append failed", slog.String("error", err.Error()))
	}
}
