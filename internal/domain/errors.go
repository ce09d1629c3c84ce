package domain

import "errors"

// Sentinel errors for domain-level error handling.
// The handler layer maps these to HTTP status codes.
var (
	ErrOrderNotFound     = errors.New("order_not_found")
	ErrOrderNotOpen      = errors.New("order_not_open")
	ErrNotMaker          = errors.New("caller_is_not_maker")
	ErrRoundNotFound     = errors.New("round_not_found")
	ErrAlreadyClaimed    = errors.New("round_already_claimed")
	ErrNoEntitlement     = errors.New("holder_has_no_entitlement")
	ErrZeroSupply        = errors.New("eligible_supply_is_zero")
	ErrDepositNotFound   = errors.New("deposit_not_found_on_ledger")
	ErrDepositUsed       = errors.New("deposit_already_backs_a_round")
	ErrRoundStateInvalid = errors.New("round_state_transition_invalid")
)

// ValidationError represents a request validation failure, rejected
// before any external ledger call is made.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}
