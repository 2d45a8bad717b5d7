package handlers

import (
	"errors"
	"net/http"
	"strings"

	"service-sla-guard/internal/apperr"
	"service-sla-guard/internal/domain"
	"service-sla-guard/internal/logx"
)

// DriverHandler exposes the driver registry.
type DriverHandler struct {
	logger  logx.Logger
	drivers driverReader
	writer  driverWriter
}

// NewDriverHandler returns a DriverHandler that reads from the driver
// registry and writes through the executor.
func NewDriverHandler(logger logx.Logger, drivers driverReader, writer driverWriter) *DriverHandler {
	return &DriverHandler{logger: logger, drivers: drivers, writer: writer}
}

// GetByID handles GET /drivers/{id}.
func (h *DriverHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, err := idFromURL(r, "driver")
	if err != nil {
		writeError(h.logger, w, r, http.StatusBadRequest, err.Error())
		return
	}
	ctx, cancel := withStoreTimeout(r.Context())
	defer cancel()

	d, err := h.drivers.GetDriver(ctx, id)
	switch {
	case err != nil:
		writeError(h.logger, w, r, http.StatusServiceUnavailable, "driver registry unavailable")
	case d == nil:
		writeError(h.logger, w, r, http.StatusNotFound, "driver not found")
	default:
		writeJSON(h.logger, w, r, http.StatusOK, toDriverDTO(d))
	}
}

// Put handles PUT /drivers/{id}. It creates the driver or replaces its
// profile and status; active orders and delivery counters stay with the
// executor. Releasing a driver that still has active orders is a conflict.
func (h *DriverHandler) Put(w http.ResponseWriter, r *http.Request) {
	id, err := idFromURL(r, "driver")
	if err != nil {
		writeError(h.logger, w, r, http.StatusBadRequest, err.Error())
		return
	}
	var req driverRequest
	if !decodeJSON(h.logger, w, r, &req) {
		return
	}
	status := domain.DriverStatus(strings.ToUpper(strings.TrimSpace(string(req.Status))))
	if !status.Valid() {
		writeError(h.logger, w, r, http.StatusBadRequest, "invalid driver status")
		return
	}
	if req.OnTimeRate < 0 || req.OnTimeRate > 1 || req.DailyTargetCount < 0 {
		writeError(h.logger, w, r, http.StatusBadRequest, "on_time_rate must be within [0,1] and daily_target_count non-negative")
		return
	}

	ctx, cancel := withStoreTimeout(r.Context())
	defer cancel()

	d, err := h.writer.UpdateDriver(ctx, &domain.Driver{
		ID:               id,
		Name:             strings.TrimSpace(req.Name),
		Status:           status,
		CurrentLocation:  domain.Location{Lat: req.CurrentLocation.Lat, Lng: req.CurrentLocation.Lng},
		DailyTargetCount: req.DailyTargetCount,
		OnTimeRate:       req.OnTimeRate,
	})
	switch {
	case err == nil:
		writeJSON(h.logger, w, r, http.StatusOK, toDriverDTO(d))
	case errors.Is(err, apperr.ErrConflict):
		writeError(h.logger, w, r, http.StatusConflict, "driver has active orders")
	case errors.Is(err, apperr.ErrInvalid):
		writeError(h.logger, w, r, http.StatusBadRequest, "invalid driver")
	default:
		writeError(h.logger, w, r, http.StatusServiceUnavailable, "driver registry unavailable")
	}
}
