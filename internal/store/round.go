package store

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/dvillela/propex/internal/domain"
)

// RoundStore is a thread-safe store for distribution rounds, their
// frozen balance snapshots, and per-holder claim records. Rounds are
// persisted only once Distributed and never mutated afterwards.
type RoundStore struct {
	mu        sync.RWMutex
	rounds    map[string]*domain.DistributionRound
	byRef     map[common.Hash]string // deposit ref → round id
	snapshots map[string]*domain.BalanceSnapshot
	claims    map[string]map[common.Address]*domain.Claim
}

// NewRoundStore creates an empty RoundStore.
func NewRoundStore() *RoundStore {
	return &RoundStore{
		rounds:    make(map[string]*domain.DistributionRound),
		byRef:     make(map[common.Hash]string),
		snapshots: make(map[string]*domain.BalanceSnapshot),
		claims:    make(map[string]map[common.Address]*domain.Claim),
	}
}

// CreateRound persists a Distributed round together with the snapshot
// it was computed from. A deposit reference backs at most one round;
// reusing one returns ErrDepositUsed.
func (s *RoundStore) CreateRound(round *domain.DistributionRound, snapshot *domain.BalanceSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if round.State != domain.RoundStateDistributed {
		return domain.ErrRoundStateInvalid
	}
	if _, ok := s.byRef[round.DepositRef]; ok {
		return domain.ErrDepositUsed
	}
	s.rounds[round.ID] = round
	s.byRef[round.DepositRef] = round.ID
	s.snapshots[round.ID] = snapshot
	s.claims[round.ID] = make(map[common.Address]*domain.Claim)
	return nil
}

// GetRound retrieves a round by id.
func (s *RoundStore) GetRound(id string) (*domain.DistributionRound, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.rounds[id]
	if !ok {
		return nil, domain.ErrRoundNotFound
	}
	return r, nil
}

// GetSnapshot retrieves the frozen balance snapshot for a round.
func (s *RoundStore) GetSnapshot(roundID string) (*domain.BalanceSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap, ok := s.snapshots[roundID]
	if !ok {
		return nil, domain.ErrRoundNotFound
	}
	return snap, nil
}

// PutClaim records a holder's claim. The insert is atomic on
// (round id, holder): a second claim for the same pair returns
// ErrAlreadyClaimed and leaves the first untouched.
func (s *RoundStore) PutClaim(claim *domain.Claim) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	byHolder, ok := s.claims[claim.RoundID]
	if !ok {
		return domain.ErrRoundNotFound
	}
	if _, dup := byHolder[claim.Holder]; dup {
		return domain.ErrAlreadyClaimed
	}
	byHolder[claim.Holder] = claim
	return nil
}

// GetClaim returns the claim for (round, holder), if any.
func (s *RoundStore) GetClaim(roundID string, holder common.Address) (*domain.Claim, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.claims[roundID][holder]
	return c, ok
}

// ListRounds returns all rounds for a property, unordered.
func (s *RoundStore) ListRounds(propertyID string) []*domain.DistributionRound {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*domain.DistributionRound
	for _, r := range s.rounds {
		if r.PropertyID == propertyID {
			out = append(out, r)
		}
	}
	return out
}
