package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dvillela/propex/internal/domain"
	"github.com/dvillela/propex/internal/ledger"
	"github.com/dvillela/propex/internal/store"
)

// OpenRoundRequest represents the input for opening a distribution
// round: a rental-income deposit to split pro-rata across holders.
type OpenRoundRequest struct {
	PropertyID string
	Amount     string // quote units, ≤ 6 decimal places
	DepositRef string // hex transaction reference of the landed deposit
}

// YieldService computes exact per-holder entitlements for rental
// deposits. A round runs Pending → Snapshotted → Distributed in one
// request; integrity failures (deposit missing, zero supply) are fatal
// to the round, which is then never persisted.
type YieldService struct {
	ledger   ledger.Authority
	rounds   *store.RoundStore
	activity *store.ActivityStore
	logger   *slog.Logger
	timeout  time.Duration
}

// NewYieldService creates a new YieldService with the given
// dependencies.
func NewYieldService(
	auth ledger.Authority,
	rounds *store.RoundStore,
	activity *store.ActivityStore,
	logger *slog.Logger,
	timeout time.Duration,
) *YieldService {
	return &YieldService{
		ledger:   auth,
		rounds:   rounds,
		activity: activity,
		logger:   logger,
		timeout:  timeout,
	}
}

// OpenRound verifies the deposit against the external ledger (never
// trusting caller input), snapshots holder balances at one resolved
// height, computes the per-unit yield with the two-step floor formula,
// and persists the round. Dust left by flooring is recorded on the
// round and attributed to the treasury; it is never distributed and
// never rolls into a later round.
func (s *YieldService) OpenRound(ctx context.Context, req OpenRoundRequest) (*domain.DistributionRound, error) {
	if !propertyIDRegex.MatchString(req.PropertyID) {
		return nil, &domain.ValidationError{Message: "property_id must match ^[a-zA-Z0-9_-]{1,64}$"}
	}
	deposited, err := domain.ParseQuote(req.Amount)
	if err != nil {
		return nil, &domain.ValidationError{Message: err.Error()}
	}
	if !deposited.IsPositive() {
		return nil, &domain.ValidationError{Message: "amount must be greater than 0"}
	}
	ref := common.HexToHash(req.DepositRef)
	if ref == (common.Hash{}) {
		return nil, &domain.ValidationError{Message: "deposit_ref must be a non-zero hex hash"}
	}

	cctx, cancel := context.WithTimeout(ctx, s.timeout)
	err = s.ledger.VerifyDeposit(cctx, req.PropertyID, ref, deposited)
	cancel()
	if err != nil {
		if errors.Is(err, ledger.ErrDepositNotFound) {
			return nil, domain.ErrDepositNotFound
		}
		return nil, err
	}

	round := &domain.DistributionRound{
		ID:         uuid.New().String(),
		PropertyID: req.PropertyID,
		Deposited:  deposited,
		DepositRef: ref,
		State:      domain.RoundStatePending,
		CreatedAt:  time.Now().UTC(),
	}

	cctx, cancel = context.WithTimeout(ctx, s.timeout)
	snap, err := s.ledger.TokenSnapshot(cctx, req.PropertyID)
	cancel()
	if err != nil {
		return nil, err
	}
	if !snap.EligibleSupply.IsPositive() {
		return nil, domain.ErrZeroSupply
	}
	if err := round.MarkSnapshotted(snap.Height, snap.EligibleSupply); err != nil {
		return nil, err
	}

	perUnit, err := domain.PerUnitYield(deposited, snap.EligibleSupply)
	if err != nil {
		return nil, err
	}

	// Dust = deposit minus the sum of floored entitlements, tracked
	// explicitly rather than silently dropped.
	distributed := decimal.Decimal{}
	for _, balance := range snap.Balances {
		distributed = distributed.Add(domain.Entitlement(perUnit, balance))
	}
	dust := deposited.Sub(distributed)

	if err := round.MarkDistributed(perUnit, dust); err != nil {
		return nil, err
	}

	snapshot := &domain.BalanceSnapshot{
		RoundID:  round.ID,
		Height:   snap.Height,
		Balances: snap.Balances,
	}
	if err := s.rounds.CreateRound(round, snapshot); err != nil {
		return nil, err
	}

	s.audit(domain.Activity{
		Type:       domain.ActivityRoundDistributed,
		PropertyID: round.PropertyID,
		Quantity:   round.EligibleSupply,
		Amount:     round.Deposited,
		TxRef:      round.DepositRef,
		At:         round.CreatedAt,
	})
	s.logger.Info("distribution round created",
		slog.String("round_id", round.ID),
		slog.String("property_id", round.PropertyID),
		slog.String("deposited", round.Deposited.String()),
		slog.String("per_unit_yield", round.PerUnitYield.String()),
		slog.String("dust", round.Dust.String()),
		slog.Uint64("snapshot_height", round.SnapshotHeight),
	)
	return round, nil
}

// Claim pays out a holder's entitlement for a round exactly once.
// Idempotency is keyed on (round id, holder): the second claim is
// rejected, never double-paid. Unclaimed entitlements stay claimable
// forever.
func (s *YieldService) Claim(ctx context.Context, roundID, holder string) (*domain.Claim, error) {
	if !common.IsHexAddress(holder) {
		return nil, &domain.ValidationError{Message: "holder must be a valid hex address"}
	}
	addr := common.HexToAddress(holder)

	round, err := s.rounds.GetRound(roundID)
	if err != nil {
		return nil, err
	}
	snapshot, err := s.rounds.GetSnapshot(roundID)
	if err != nil {
		return nil, err
	}

	balance := snapshot.BalanceOf(addr)
	amount := domain.Entitlement(round.PerUnitYield, balance)
	if !amount.IsPositive() {
		return nil, domain.ErrNoEntitlement
	}

	claim := &domain.Claim{
		RoundID:   roundID,
		Holder:    addr,
		Amount:    amount,
		ClaimedAt: time.Now().UTC(),
	}
	if err := s.rounds.PutClaim(claim); err != nil {
		return nil, err
	}

	s.audit(domain.Activity{
		Type:       domain.ActivityYieldClaimed,
		PropertyID: round.PropertyID,
		Actor:      addr,
		Amount:     amount,
		At:         claim.ClaimedAt,
	})
	return claim, nil
}

// GetRound retrieves a round by id.
func (s *YieldService) GetRound(roundID string) (*domain.DistributionRound, error) {
	return s.rounds.GetRound(roundID)
}

// Entitlement returns what the holder is (or was) owed for the round,
// independent of claim status.
func (s *YieldService) Entitlement(roundID, holder string) (decimal.Decimal, error) {
	if !common.IsHexAddress(holder) {
		return decimal.Decimal{}, &domain.ValidationError{Message: "holder must be a valid hex address"}
	}
	round, err := s.rounds.GetRound(roundID)
	if err != nil {
		return decimal.Decimal{}, err
	}
	snapshot, err := s.rounds.GetSnapshot(roundID)
	if err != nil {
		return decimal.Decimal{}, err
	}
	return domain.Entitlement(round.PerUnitYield, snapshot.BalanceOf(common.HexToAddress(holder))), nil
}

func (s *YieldService) audit(a domain.Activity) {
	if s.activity == nil {
		return
	}
	if err := s.activity.Append(a); err != nil {
		s.logger.Warn("activity append failed", slog.String("error", err.Error()))
	}
}
