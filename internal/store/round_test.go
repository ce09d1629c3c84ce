package store

import (
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/dvillela/propex/internal/domain"
)

func distributedRound(id string, ref common.Hash) *domain.DistributionRound {
	return &domain.DistributionRound{
		ID:             id,
		PropertyID:     "prop-1",
		Deposited:      d("10"),
		DepositRef:     ref,
		EligibleSupply: d("3"),
		PerUnitYield:   d("3333333333333"),
		Dust:           d("0.000001"),
		State:          domain.RoundStateDistributed,
		CreatedAt:      time.Now().UTC(),
	}
}

func snapshotFor(roundID string) *domain.BalanceSnapshot {
	return &domain.BalanceSnapshot{
		RoundID: roundID,
		Height:  7,
		Balances: map[common.Address]decimal.Decimal{
			addr(1): d("1"),
			addr(2): d("1"),
			addr(3): d("1"),
		},
	}
}

func TestCreateRoundRejectsNonDistributed(t *testing.T) {
	s := NewRoundStore()
	r := distributedRound("r1", common.Hash{1})
	r.State = domain.RoundStateSnapshotted

	if err := s.CreateRound(r, snapshotFor("r1")); !errors.Is(err, domain.ErrRoundStateInvalid) {
		t.Errorf("CreateRound non-distributed: error = %v, want ErrRoundStateInvalid", err)
	}
}

func TestCreateRoundDepositRefUsedOnce(t *testing.T) {
	s := NewRoundStore()
	ref := common.Hash{1}

	if err := s.CreateRound(distributedRound("r1", ref), snapshotFor("r1")); err != nil {
		t.Fatalf("CreateRound: %v", err)
	}
	if err := s.CreateRound(distributedRound("r2", ref), snapshotFor("r2")); !errors.Is(err, domain.ErrDepositUsed) {
		t.Errorf("CreateRound with reused ref: error = %v, want ErrDepositUsed", err)
	}
}

func TestGetRoundAndSnapshot(t *testing.T) {
	s := NewRoundStore()
	if err := s.CreateRound(distributedRound("r1", common.Hash{1}), snapshotFor("r1")); err != nil {
		t.Fatalf("CreateRound: %v", err)
	}

	r, err := s.GetRound("r1")
	if err != nil || r.ID != "r1" {
		t.Fatalf("GetRound = %+v, %v", r, err)
	}
	snap, err := s.GetSnapshot("r1")
	if err != nil || snap.Height != 7 {
		t.Fatalf("GetSnapshot = %+v, %v", snap, err)
	}

	if _, err := s.GetRound("missing"); !errors.Is(err, domain.ErrRoundNotFound) {
		t.Errorf("GetRound missing: error = %v, want ErrRoundNotFound", err)
	}
	if _, err := s.GetSnapshot("missing"); !errors.Is(err, domain.ErrRoundNotFound) {
		t.Errorf("GetSnapshot missing: error = %v, want ErrRoundNotFound", err)
	}
}

func TestPutClaimOncePerHolder(t *testing.T) {
	s := NewRoundStore()
	if err := s.CreateRound(distributedRound("r1", common.Hash{1}), snapshotFor("r1")); err != nil {
		t.Fatalf("CreateRound: %v", err)
	}

	claim := &domain.Claim{RoundID: "r1", Holder: addr(1), Amount: d("3.333333"), ClaimedAt: time.Now()}
	if err := s.PutClaim(claim); err != nil {
		t.Fatalf("PutClaim: %v", err)
	}

	dup := &domain.Claim{RoundID: "r1", Holder: addr(1), Amount: d("3.333333"), ClaimedAt: time.Now()}
	if err := s.PutClaim(dup); !errors.Is(err, domain.ErrAlreadyClaimed) {
		t.Errorf("second PutClaim: error = %v, want ErrAlreadyClaimed", err)
	}

	// The first claim is untouched.
	got, ok := s.GetClaim("r1", addr(1))
	if !ok || !got.ClaimedAt.Equal(claim.ClaimedAt) {
		t.Errorf("GetClaim = %+v, want the original claim", got)
	}

	// A different holder claims independently.
	if err := s.PutClaim(&domain.Claim{RoundID: "r1", Holder: addr(2), Amount: d("3.333333")}); err != nil {
		t.Errorf("PutClaim other holder: %v", err)
	}
}

func TestPutClaimUnknownRound(t *testing.T) {
	s := NewRoundStore()
	err := s.PutClaim(&domain.Claim{RoundID: "missing", Holder: addr(1)})
	if !errors.Is(err, domain.ErrRoundNotFound) {
		t.Errorf("PutClaim unknown round: error = %v, want ErrRoundNotFound", err)
	}
}

func TestListRounds(t *testing.T) {
	s := NewRoundStore()
	if err := s.CreateRound(distributedRound("r1", common.Hash{1}), snapshotFor("r1")); err != nil {
		t.Fatalf("CreateRound: %v", err)
	}
	other := distributedRound("r2", common.Hash{2})
	other.PropertyID = "prop-2"
	if err := s.CreateRound(other, snapshotFor("r2")); err != nil {
		t.Fatalf("CreateRound: %v", err)
	}

	got := s.ListRounds("prop-1")
	if len(got) != 1 || got[0].ID != "r1" {
		t.Fatalf("ListRounds = %+v, want [r1]", got)
	}
}
