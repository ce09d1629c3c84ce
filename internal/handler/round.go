package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dvillela/propex/internal/domain"
	"github.com/dvillela/propex/internal/service"
)

// RoundHandler handles HTTP requests for yield distribution endpoints.
type RoundHandler struct {
	yieldSvc *service.YieldService
}

// NewRoundHandler creates a new RoundHandler.
func NewRoundHandler(yieldSvc *service.YieldService) *RoundHandler {
	return &RoundHandler{yieldSvc: yieldSvc}
}

// openRoundRequest is the JSON request body for POST /rounds.
type openRoundRequest struct {
	PropertyID string `json:"property_id"`
	Amount     string `json:"amount"`
	DepositRef string `json:"deposit_ref"`
}

// claimRequest is the JSON request body for claiming a round payout.
type claimRequest struct {
	Holder string `json:"holder"`
}

// roundResponse is the JSON representation of a distribution round.
type roundResponse struct {
	RoundID        string `json:"round_id"`
	PropertyID     string `json:"property_id"`
	Deposited      string `json:"deposited"`
	DepositRef     string `json:"deposit_ref"`
	EligibleSupply string `json:"eligible_supply"`
	PerUnitYield   string `json:"per_unit_yield"`
	Dust           string `json:"dust"`
	SnapshotHeight uint64 `json:"snapshot_height"`
	State          string `json:"state"`
	CreatedAt      string `json:"created_at"`
}

// claimResponse is the JSON representation of a recorded claim.
type claimResponse struct {
	RoundID   string `json:"round_id"`
	Holder    string `json:"holder"`
	Amount    string `json:"amount"`
	ClaimedAt string `json:"claimed_at"`
}

// OpenRound handles POST /rounds.
func (h *RoundHandler) OpenRound(w http.ResponseWriter, r *http.Request) {
	var req openRoundRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	round, err := h.yieldSvc.OpenRound(r.Context(), service.OpenRoundRequest{
		PropertyID: req.PropertyID,
		Amount:     req.Amount,
		DepositRef: req.DepositRef,
	})
	if err != nil {
		mapRoundError(w, err)
		return
	}

	WriteJSON(w, http.StatusCreated, buildRoundResponse(round))
}

// GetRound handles GET /rounds/{round_id}.
func (h *RoundHandler) GetRound(w http.ResponseWriter, r *http.Request) {
	round, err := h.yieldSvc.GetRound(chi.URLParam(r, "round_id"))
	if err != nil {
		mapRoundError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, buildRoundResponse(round))
}

// Claim handles POST /rounds/{round_id}/claims.
func (h *RoundHandler) Claim(w http.ResponseWriter, r *http.Request) {
	var req claimRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	claim, err := h.yieldSvc.Claim(r.Context(), chi.URLParam(r, "round_id"), req.Holder)
	if err != nil {
		mapRoundError(w, err)
		return
	}

	WriteJSON(w, http.StatusCreated, claimResponse{
		RoundID:   claim.RoundID,
		Holder:    claim.Holder.Hex(),
		Amount:    claim.Amount.String(),
		ClaimedAt: claim.ClaimedAt.UTC().Format(time.RFC3339),
	})
}

// GetEntitlement handles GET /rounds/{round_id}/entitlements/{holder}.
func (h *RoundHandler) GetEntitlement(w http.ResponseWriter, r *http.Request) {
	roundID := chi.URLParam(r, "round_id")
	amount, err := h.yieldSvc.Entitlement(roundID, chi.URLParam(r, "holder"))
	if err != nil {
		mapRoundError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]string{
		"round_id": roundID,
		"amount":   amount.String(),
	})
}

func buildRoundResponse(round *domain.DistributionRound) roundResponse {
	return roundResponse{
		RoundID:        round.ID,
		PropertyID:     round.PropertyID,
		Deposited:      round.Deposited.String(),
		DepositRef:     round.DepositRef.Hex(),
		EligibleSupply: round.EligibleSupply.String(),
		PerUnitYield:   round.PerUnitYield.String(),
		Dust:           round.Dust.String(),
		SnapshotHeight: round.SnapshotHeight,
		State:          string(round.State),
		CreatedAt:      round.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// mapRoundError maps domain errors to HTTP responses for round endpoints.
func mapRoundError(w http.ResponseWriter, err error) {
	var validationErr *domain.ValidationError
	if errors.As(err, &validationErr) {
		WriteError(w, http.StatusBadRequest, "validation_error", validationErr.Message)
		return
	}

	switch {
	case errors.Is(err, domain.ErrRoundNotFound):
		WriteError(w, http.StatusNotFound, "round_not_found", err.Error())
	case errors.Is(err, domain.ErrDepositNotFound):
		WriteError(w, http.StatusNotFound, "deposit_not_found", err.Error())
	case errors.Is(err, domain.ErrDepositUsed):
		WriteError(w, http.StatusConflict, "deposit_already_used", err.Error())
	case errors.Is(err, domain.ErrAlreadyClaimed):
		WriteError(w, http.StatusConflict, "already_claimed", err.Error())
	case errors.Is(err, domain.ErrNoEntitlement):
		WriteError(w, http.StatusConflict, "no_entitlement", err.Error())
	case errors.Is(err, domain.ErrZeroSupply):
		WriteError(w, http.StatusConflict, "zero_eligible_supply", err.Error())
	default:
		WriteError(w, http.StatusInternalServerError, "internal_error", "An unexpected error occurred")
	}
}
