package handlers

import (
	"errors"
	"net/http"

	"service-sla-guard/internal/apperr"
	"service-sla-guard/internal/logx"
	"service-sla-guard/internal/service/monitor"
)

// SLAHandler serves the monitor endpoints.
type SLAHandler struct {
	logger logx.Logger
	uc     cycleUsecase
}

// NewSLAHandler wires the monitor into HTTP handlers.
func NewSLAHandler(logger logx.Logger, uc cycleUsecase) *SLAHandler {
	return &SLAHandler{logger: logger, uc: uc}
}

// RunCycle handles POST /sla/cycles.
func (h *SLAHandler) RunCycle(w http.ResponseWriter, r *http.Request) {
	summary, err := h.uc.RunCycleOnce(r.Context())
	switch {
	case err == nil:
		writeJSON(h.logger, w, r, http.StatusOK, toCycleDTO(summary))
	case errors.Is(err, monitor.ErrCycleInProgress):
		writeError(h.logger, w, r, http.StatusConflict, "cycle in progress")
	case errors.Is(err, apperr.ErrPersistence):
		writeError(h.logger, w, r, http.StatusServiceUnavailable, "order store unavailable")
	default:
		writeError(h.logger, w, r, http.StatusInternalServerError, "internal error")
	}
}

// LastCycle handles GET /sla/cycles/last.
func (h *SLAHandler) LastCycle(w http.ResponseWriter, r *http.Request) {
	summary, ok := h.uc.LastCycle()
	if !ok {
		writeError(h.logger, w, r, http.StatusNotFound, "no cycle completed yet")
		return
	}
	writeJSON(h.logger, w, r, http.StatusOK, toCycleDTO(summary))
}

// Status handles GET /sla/status.
func (h *SLAHandler) Status(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := withStoreTimeout(r.Context())
	defer cancel()

	st, err := h.uc.Status(ctx)
	if err != nil {
		writeError(h.logger, w, r, http.StatusServiceUnavailable, "order store unavailable")
		return
	}
	writeJSON(h.logger, w, r, http.StatusOK, toStatusDTO(st))
}

// Escalations handles GET /sla/escalations.
func (h *SLAHandler) Escalations(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := withStoreTimeout(r.Context())
	defer cancel()

	list, err := h.uc.Escalations(ctx)
	if err != nil {
		writeError(h.logger, w, r, http.StatusServiceUnavailable, "order store unavailable")
		return
	}
	writeJSON(h.logger, w, r, http.StatusOK, toEscalationDTOs(list))
}
