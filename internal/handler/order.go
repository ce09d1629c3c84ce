package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dvillela/propex/internal/domain"
	"github.com/dvillela/propex/internal/service"
)

// OrderHandler handles HTTP requests for trade and book endpoints.
type OrderHandler struct {
	orderSvc *service.OrderService
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(orderSvc *service.OrderService) *OrderHandler {
	return &OrderHandler{orderSvc: orderSvc}
}

// submitOrderRequest is the JSON request body for POST /orders.
// Quantity and price are decimal strings; floats never carry money.
type submitOrderRequest struct {
	PropertyID string `json:"property_id"`
	Side       string `json:"side"`
	Maker      string `json:"maker"`
	Quantity   string `json:"quantity"`
	Price      string `json:"price"`
}

// cancelOrderRequest is the JSON request body for order cancellation.
type cancelOrderRequest struct {
	Caller string `json:"caller"`
}

// fillResponse is one executed pair in the submit response.
type fillResponse struct {
	MakerOrderID uint64 `json:"maker_order_id"`
	Quantity     string `json:"quantity"`
	Price        string `json:"price"`
	Maker        string `json:"maker"`
	Taker        string `json:"taker"`
	MakerFee     string `json:"maker_fee"`
	TakerFee     string `json:"taker_fee"`
	TxRef        string `json:"tx_ref"`
	ExecutedAt   string `json:"executed_at"`
}

// failedPairResponse is one planned pair that did not execute.
type failedPairResponse struct {
	MakerOrderID uint64 `json:"maker_order_id"`
	Quantity     string `json:"quantity"`
	Reason       string `json:"reason"`
}

// restingOrderResponse describes the order carrying the unfilled
// remainder.
type restingOrderResponse struct {
	OrderID   uint64 `json:"order_id"`
	Quantity  string `json:"quantity"`
	Price     string `json:"price"`
	Status    string `json:"status"`
	CreatedAt string `json:"created_at"`
}

// submitOrderResponse reports the exact per-pair outcome of a trade
// request. Partial results are first-class: fills, failures, and the
// remainder are all always present.
type submitOrderResponse struct {
	PropertyID string                `json:"property_id"`
	Side       string                `json:"side"`
	Taker      string                `json:"taker"`
	Requested  string                `json:"requested"`
	Fills      []fillResponse        `json:"fills"`
	Failed     []failedPairResponse  `json:"failed"`
	Remainder  string                `json:"remainder"`
	Resting    *restingOrderResponse `json:"resting"`
	Halted     bool                  `json:"halted"`
	HaltReason string                `json:"halt_reason,omitempty"`
	RestError  string                `json:"rest_error,omitempty"`
}

// bookEntryResponse is one resting order on a book side.
type bookEntryResponse struct {
	OrderID   uint64 `json:"order_id"`
	Side      string `json:"side"`
	Maker     string `json:"maker"`
	Quantity  string `json:"quantity"`
	Remaining string `json:"remaining"`
	Price     string `json:"price"`
	CreatedAt string `json:"created_at"`
}

// SubmitOrder handles POST /orders.
func (h *OrderHandler) SubmitOrder(w http.ResponseWriter, r *http.Request) {
	var req submitOrderRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	result, err := h.orderSvc.Submit(r.Context(), service.SubmitOrderRequest{
		PropertyID: req.PropertyID,
		Side:       req.Side,
		Maker:      req.Maker,
		Quantity:   req.Quantity,
		Price:      req.Price,
	})
	if err != nil {
		mapOrderError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, buildSubmitResponse(result))
}

// CancelOrder handles DELETE /properties/{property_id}/orders/{order_id}.
func (h *OrderHandler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	propertyID := chi.URLParam(r, "property_id")
	orderID, err := strconv.ParseUint(chi.URLParam(r, "order_id"), 10, 64)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "validation_error", "order_id must be a positive integer")
		return
	}

	var req cancelOrderRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	if err := h.orderSvc.Cancel(r.Context(), propertyID, orderID, req.Caller); err != nil {
		mapOrderError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

// GetBook handles GET /properties/{property_id}/book.
func (h *OrderHandler) GetBook(w http.ResponseWriter, r *http.Request) {
	propertyID := chi.URLParam(r, "property_id")

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			WriteError(w, http.StatusBadRequest, "validation_error", "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	buys, err := h.orderSvc.Book(propertyID, string(domain.OrderSideBuy), limit)
	if err != nil {
		mapOrderError(w, err)
		return
	}
	sells, err := h.orderSvc.Book(propertyID, string(domain.OrderSideSell), limit)
	if err != nil {
		mapOrderError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"property_id": propertyID,
		"buys":        buildBookEntries(buys),
		"sells":       buildBookEntries(sells),
	})
}

func buildSubmitResponse(result *service.SubmitResult) submitOrderResponse {
	resp := submitOrderResponse{
		PropertyID: result.PropertyID,
		Side:       string(result.Side),
		Taker:      result.Taker.Hex(),
		Requested:  result.Requested.String(),
		Fills:      make([]fillResponse, len(result.Fills)),
		Failed:     make([]failedPairResponse, len(result.Failed)),
		Remainder:  result.Remainder.String(),
		Halted:     result.Halted,
		HaltReason: result.HaltReason,
		RestError:  result.RestError,
	}
	for i, f := range result.Fills {
		resp.Fills[i] = fillResponse{
			MakerOrderID: f.MakerOrderID,
			Quantity:     f.Quantity.String(),
			Price:        f.Price.String(),
			Maker:        f.Maker.Hex(),
			Taker:        f.Taker.Hex(),
			MakerFee:     f.MakerFee.String(),
			TakerFee:     f.TakerFee.String(),
			TxRef:        f.TxRef.Hex(),
			ExecutedAt:   f.ExecutedAt.UTC().Format(time.RFC3339),
		}
	}
	for i, p := range result.Failed {
		resp.Failed[i] = failedPairResponse{
			MakerOrderID: p.MakerOrderID,
			Quantity:     p.Quantity,
			Reason:       p.Reason,
		}
	}
	if result.Resting != nil {
		resp.Resting = &restingOrderResponse{
			OrderID:   result.Resting.ID,
			Quantity:  result.Resting.Quantity.String(),
			Price:     result.Resting.Price.String(),
			Status:    string(result.Resting.Status),
			CreatedAt: result.Resting.CreatedAt.UTC().Format(time.RFC3339),
		}
	}
	return resp
}

func buildBookEntries(entries []domain.IndexEntry) []bookEntryResponse {
	result := make([]bookEntryResponse, len(entries))
	for i := range entries {
		e := &entries[i]
		result[i] = bookEntryResponse{
			OrderID:   e.ContractOrderID,
			Side:      string(e.Side),
			Maker:     e.Maker.Hex(),
			Quantity:  e.Quantity.String(),
			Remaining: e.Remaining().String(),
			Price:     e.Price.String(),
			CreatedAt: e.CreatedAt.UTC().Format(time.RFC3339),
		}
	}
	return result
}

// mapOrderError maps domain errors to HTTP responses for order endpoints.
func mapOrderError(w http.ResponseWriter, err error) {
	var validationErr *domain.ValidationError
	if errors.As(err, &validationErr) {
		WriteError(w, http.StatusBadRequest, "validation_error", validationErr.Message)
		return
	}

	switch {
	case errors.Is(err, domain.ErrOrderNotFound):
		WriteError(w, http.StatusNotFound, "order_not_found", err.Error())
	case errors.Is(err, domain.ErrOrderNotOpen):
		WriteError(w, http.StatusConflict, "order_not_open", err.Error())
	case errors.Is(err, domain.ErrNotMaker):
		WriteError(w, http.StatusForbidden, "not_maker", err.Error())
	default:
		WriteError(w, http.StatusInternalServerError, "internal_error", "An unexpected error occurred")
	}
}
