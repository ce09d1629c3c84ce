package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/dvillela/propex/internal/ledger"
	"github.com/dvillela/propex/internal/store"
)

// ReconcileReport counts the entries a reconciliation pass kept and
// the phantoms it purged.
type ReconcileReport struct {
	Validated int
	Purged    int
}

// Reconciler re-anchors the ledger index to the external ledger's
// truth. An entry is a phantom — and is purged — when its claimed id
// is at or beyond the authority's next-order-id counter, or when the
// authority reports no order at that id. Every surviving entry is
// refreshed with the authoritative state, which also clears any
// pending-confirmation quarantine.
type Reconciler struct {
	ledger  ledger.Authority
	index   *store.IndexStore
	logger  *slog.Logger
	timeout time.Duration
}

// NewReconciler creates a reconciler whose ledger reads are bounded by
// timeout.
func NewReconciler(auth ledger.Authority, index *store.IndexStore, logger *slog.Logger, timeout time.Duration) *Reconciler {
	return &Reconciler{ledger: auth, index: index, logger: logger, timeout: timeout}
}

// Reconcile validates every index entry for the property against the
// external ledger. All reads complete before any mutation, so a
// failure (authority unreachable) leaves the index unchanged and is
// reported — never assumed clean.
func (r *Reconciler) Reconcile(ctx context.Context, propertyID string) (*ReconcileReport, error) {
	cctx, cancel := context.WithTimeout(ctx, r.timeout)
	next, err := r.ledger.NextOrderID(cctx, propertyID)
	cancel()
	if err != nil {
		return nil, err
	}

	entries := r.index.All(propertyID)

	var purge []uint64
	var refresh []*ledger.OrderState
	for _, e := range entries {
		if e.ContractOrderID >= next {
			purge = append(purge, e.ContractOrderID)
			continue
		}

		cctx, cancel := context.WithTimeout(ctx, r.timeout)
		state, err := r.ledger.GetOrder(cctx, propertyID, e.ContractOrderID)
		cancel()
		switch {
		case errors.Is(err, ledger.ErrOrderNotFound):
			purge = append(purge, e.ContractOrderID)
		case err != nil:
			// Abort with the index untouched.
			return nil, err
		default:
			refresh = append(refresh, state)
		}
	}

	report := &ReconcileReport{}
	for _, id := range purge {
		if r.index.Delete(propertyID, id) {
			report.Purged++
			r.logger.Warn("phantom index entry purged",
				slog.String("property_id", propertyID),
				slog.Uint64("contract_order_id", id),
			)
		}
	}
	for _, state := range refresh {
		r.index.Upsert(state.IndexEntry())
		report.Validated++
	}

	r.logger.Info("index reconciled",
		slog.String("property_id", propertyID),
		slog.Int("validated", report.Validated),
		slog.Int("purged", report.Purged),
	)
	return report, nil
}
