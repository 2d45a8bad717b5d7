package handlers_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"service-sla-guard/internal/domain"
	"service-sla-guard/internal/http/handlers"
	"service-sla-guard/internal/logx"
	"service-sla-guard/internal/repository/memory"
	"service-sla-guard/internal/service/reassign"
)

type failingDrivers struct{ err error }

func (f failingDrivers) GetDriver(context.Context, string) (*domain.Driver, error) { return nil, f.err }
func (f failingDrivers) UpdateDriver(context.Context, *domain.Driver) (*domain.Driver, error) {
	return nil, f.err
}

func newDriverHandler(store *memory.Store) *handlers.DriverHandler {
	return handlers.NewDriverHandler(logx.Nop(), store, reassign.NewExecutor(store, nil, 3, time.Second, logx.Nop()))
}

func TestDriverHandler_PutThenGet(t *testing.T) {
	t.Parallel()

	store := memory.New()
	store.PutDriver(&domain.Driver{ID: "D1", Status: domain.DriverBusy, ActiveOrderIDs: []string{"O1"}, DailyDeliveryCount: 3})
	h := newDriverHandler(store)

	body := `{"name":"Dana","status":"on_break","current_location":{"lat":52.5,"lng":13.4},"daily_target_count":12,"on_time_rate":0.95}`
	req := withID(httptest.NewRequest(http.MethodPut, "/drivers/D1", strings.NewReader(body)), "D1")
	rr := httptest.NewRecorder()
	h.Put(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	var got map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	require.Equal(t, "ON_BREAK", got["status"])
	require.Equal(t, []any{"O1"}, got["active_order_ids"])
	require.EqualValues(t, 3, got["daily_delivery_count"])
	require.EqualValues(t, 12, got["daily_target_count"])

	req = withID(httptest.NewRequest(http.MethodGet, "/drivers/D1", nil), "D1")
	rr = httptest.NewRecorder()
	h.GetByID(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), `"name":"Dana"`)
}

func TestDriverHandler_Put_Validation(t *testing.T) {
	t.Parallel()

	h := newDriverHandler(memory.New())
	cases := map[string]string{
		"unknown status": `{"status":"SLEEPING"}`,
		"rate too high":  `{"status":"AVAILABLE","on_time_rate":1.5}`,
		"negative goal":  `{"status":"AVAILABLE","daily_target_count":-1}`,
		"unknown field":  `{"status":"AVAILABLE","rating":5}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			req := withID(httptest.NewRequest(http.MethodPut, "/drivers/D1", strings.NewReader(body)), "D1")
			rr := httptest.NewRecorder()
			h.Put(rr, req)
			require.Equal(t, http.StatusBadRequest, rr.Code)
		})
	}
}

func TestDriverHandler_GetByID_Errors(t *testing.T) {
	t.Parallel()

	rr := httptest.NewRecorder()
	newDriverHandler(memory.New()).
		GetByID(rr, withID(httptest.NewRequest(http.MethodGet, "/drivers/nope", nil), "nope"))
	require.Equal(t, http.StatusNotFound, rr.Code)

	rr = httptest.NewRecorder()
	handlers.NewDriverHandler(logx.Nop(), failingDrivers{err: errors.New("db down")}, failingDrivers{err: errors.New("db down")}).
		GetByID(rr, withID(httptest.NewRequest(http.MethodGet, "/drivers/D1", nil), "D1"))
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)

	rr = httptest.NewRecorder()
	handlers.NewDriverHandler(logx.Nop(), failingDrivers{err: errors.New("db down")}, failingDrivers{err: errors.New("db down")}).
		Put(rr, withID(httptest.NewRequest(http.MethodPut, "/drivers/D1", strings.NewReader(`{"status":"AVAILABLE"}`)), "D1"))
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestDriverHandler_Put_ConflictWhenReleasingLoadedDriver(t *testing.T) {
	t.Parallel()

	store := memory.New()
	store.PutDriver(&domain.Driver{ID: "D1", Status: domain.DriverBusy, ActiveOrderIDs: []string{"O1"}})
	h := newDriverHandler(store)

	for _, status := range []string{"available", "OFFLINE"} {
		body := `{"status":"` + status + `"}`
		rr := httptest.NewRecorder()
		h.Put(rr, withID(httptest.NewRequest(http.MethodPut, "/drivers/D1", strings.NewReader(body)), "D1"))
		require.Equal(t, http.StatusConflict, rr.Code, status)
	}

	d, err := store.GetDriver(context.Background(), "D1")
	require.NoError(t, err)
	require.Equal(t, domain.DriverBusy, d.Status)
}
