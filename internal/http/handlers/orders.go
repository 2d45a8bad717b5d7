package handlers

import (
	"errors"
	"net/http"
	"strings"

	"service-sla-guard/internal/apperr"
	"service-sla-guard/internal/logx"
)

// OrderHandler serves order lookups and manual reassignment.
type OrderHandler struct {
	logger   logx.Logger
	orders   orderUsecase
	reassign reassignUsecase
}

// NewOrderHandler wires the order store and the monitor into HTTP handlers.
func NewOrderHandler(logger logx.Logger, orders orderUsecase, reassign reassignUsecase) *OrderHandler {
	return &OrderHandler{logger: logger, orders: orders, reassign: reassign}
}

// GetByID handles GET /orders/{id}.
func (h *OrderHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, err := idFromURL(r, "order")
	if err != nil {
		writeError(h.logger, w, r, http.StatusBadRequest, err.Error())
		return
	}
	ctx, cancel := withStoreTimeout(r.Context())
	defer cancel()

	o, err := h.orders.GetOrder(ctx, id)
	switch {
	case err != nil:
		writeError(h.logger, w, r, http.StatusServiceUnavailable, "order store unavailable")
	case o == nil:
		writeError(h.logger, w, r, http.StatusNotFound, "order not found")
	default:
		writeJSON(h.logger, w, r, http.StatusOK, toOrderDTO(o))
	}
}

// Reassign handles POST /orders/{id}/reassign.
func (h *OrderHandler) Reassign(w http.ResponseWriter, r *http.Request) {
	id, err := idFromURL(r, "order")
	if err != nil {
		writeError(h.logger, w, r, http.StatusBadRequest, err.Error())
		return
	}
	var req reassignRequest
	if !decodeJSON(h.logger, w, r, &req) {
		return
	}
	if strings.TrimSpace(req.ToDriverID) == "" {
		writeError(h.logger, w, r, http.StatusBadRequest, "to_driver_id is required")
		return
	}

	rec, err := h.reassign.ReassignManually(r.Context(), id, strings.TrimSpace(req.ToDriverID), strings.TrimSpace(req.Reason))
	switch {
	case err == nil:
		writeJSON(h.logger, w, r, http.StatusOK, toReassignmentDTO(rec))
	case errors.Is(err, apperr.ErrInvalid):
		writeError(h.logger, w, r, http.StatusBadRequest, "invalid request")
	case errors.Is(err, apperr.ErrNotFound):
		writeError(h.logger, w, r, http.StatusNotFound, "order not found")
	case errors.Is(err, apperr.ErrStaleOrderState):
		writeError(h.logger, w, r, http.StatusConflict, "order cannot be reassigned in its current state")
	case errors.Is(err, apperr.ErrDriverUnavailable):
		writeError(h.logger, w, r, http.StatusConflict, "driver unavailable")
	case errors.Is(err, apperr.ErrCapacityExceeded):
		writeError(h.logger, w, r, http.StatusConflict, "driver at capacity")
	case errors.Is(err, apperr.ErrPersistence):
		writeError(h.logger, w, r, http.StatusServiceUnavailable, "order store unavailable")
	default:
		writeError(h.logger, w, r, http.StatusInternalServerError, "internal error")
	}
}
