package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/dvillela/propex/internal/service"
	"github.com/dvillela/propex/internal/store"
)

// IndexHandler handles reconciliation and audit trail endpoints.
type IndexHandler struct {
	reconciler *service.Reconciler
	activity   *store.ActivityStore
}

// NewIndexHandler creates a new IndexHandler.
func NewIndexHandler(reconciler *service.Reconciler, activity *store.ActivityStore) *IndexHandler {
	return &IndexHandler{reconciler: reconciler, activity: activity}
}

// Reconcile handles POST /properties/{property_id}/reconcile.
func (h *IndexHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	report, err := h.reconciler.Reconcile(r.Context(), chi.URLParam(r, "property_id"))
	if err != nil {
		WriteError(w, http.StatusBadGateway, "ledger_unreachable", err.Error())
		return
	}

	WriteJSON(w, http.StatusOK, map[string]int{
		"validated": report.Validated,
		"purged":    report.Purged,
	})
}

// Activity handles GET /activity.
func (h *IndexHandler) Activity(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			WriteError(w, http.StatusBadRequest, "validation_error", "limit must be a positive integer")
			return
		}
		limit = n
	}

	records, err := h.activity.Recent(limit)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "internal_error", "An unexpected error occurred")
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{"activity": records})
}
