package router_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"service-sla-guard/internal/domain"
	"service-sla-guard/internal/http/handlers"
	"service-sla-guard/internal/http/middleware/ratelimit"
	"service-sla-guard/internal/http/router"
	"service-sla-guard/internal/logx"
	"service-sla-guard/internal/metrics"
	"service-sla-guard/internal/repository/memory"
	"service-sla-guard/internal/service/monitor"
	"service-sla-guard/internal/service/reassign"
)

type fakeMonitor struct{}

func (fakeMonitor) RunCycleOnce(context.Context) (domain.CycleSummary, error) {
	return domain.CycleSummary{Evaluated: 1}, nil
}

func (fakeMonitor) LastCycle() (domain.CycleSummary, bool) { return domain.CycleSummary{}, false }

func (fakeMonitor) Escalations(context.Context) ([]monitor.Escalation, error) { return nil, nil }

func (fakeMonitor) Status(context.Context) (domain.SLAStatus, error) {
	return domain.SLAStatus{State: domain.StatusIdle}, nil
}

func (fakeMonitor) ReassignManually(_ context.Context, orderID, to, reason string) (domain.ReassignmentRecord, error) {
	return domain.ReassignmentRecord{ID: "r1", OrderID: orderID, ToDriverID: to, Reason: reason}, nil
}

func (fakeMonitor) GetOrder(_ context.Context, id string) (*domain.Order, error) {
	if id != "O1" {
		return nil, nil
	}
	return &domain.Order{ID: id, Status: domain.OrderAssigned, CreatedAt: time.Unix(0, 0).UTC()}, nil
}

func newHandler(limit func(http.Handler) http.Handler, m *metrics.HTTP) http.Handler {
	mon := fakeMonitor{}
	drivers := memory.New()
	drivers.PutDriver(&domain.Driver{ID: "D1", Status: domain.DriverAvailable})
	return router.New(router.Deps{
		Logger:  logx.Nop(),
		Base:    handlers.New(logx.Nop()),
		SLA:     handlers.NewSLAHandler(logx.Nop(), mon),
		Orders:  handlers.NewOrderHandler(logx.Nop(), mon, mon),
		Drivers: handlers.NewDriverHandler(logx.Nop(), drivers, reassign.NewExecutor(drivers, nil, 3, time.Second, logx.Nop())),
		Limit:   limit,
		Metrics: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("# metrics")) }),

		HTTPMetrics: m,
	})
}

func TestRouter_Routes(t *testing.T) {
	t.Parallel()

	h := newHandler(nil, nil)

	tests := []struct {
		method string
		path   string
		body   string
		want   int
	}{
		{http.MethodGet, "/ping", "", http.StatusOK},
		{http.MethodHead, "/healthcheck", "", http.StatusNoContent},
		{http.MethodGet, "/metrics", "", http.StatusOK},
		{http.MethodPost, "/sla/cycles", "", http.StatusOK},
		{http.MethodGet, "/sla/cycles/last", "", http.StatusNotFound},
		{http.MethodGet, "/sla/escalations", "", http.StatusOK},
		{http.MethodGet, "/sla/status", "", http.StatusOK},
		{http.MethodGet, "/orders/O1", "", http.StatusOK},
		{http.MethodGet, "/orders/O2", "", http.StatusNotFound},
		{http.MethodPost, "/orders/O1/reassign", `{"to_driver_id":"D2"}`, http.StatusOK},
		{http.MethodGet, "/drivers/D1", "", http.StatusOK},
		{http.MethodGet, "/drivers/D9", "", http.StatusNotFound},
		{http.MethodPut, "/drivers/D2", `{"status":"AVAILABLE"}`, http.StatusOK},
		{http.MethodGet, "/unknown", "", http.StatusNotFound},
		{http.MethodGet, "/sla/cycles", "", http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			t.Parallel()

			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body)))
			require.Equal(t, tt.want, rr.Code)
		})
	}
}

func TestRouter_ManualOperationsAreRateLimited(t *testing.T) {
	t.Parallel()

	limiter := ratelimit.NewKeyedLimiter(nil, ratelimit.Config{Rate: 0.001, Burst: 1})
	h := newHandler(ratelimit.New(logx.Nop(), nil, limiter).Handler(), nil)

	do := func(method, path, body string) int {
		rr := httptest.NewRecorder()
		req := httptest.NewRequest(method, path, strings.NewReader(body))
		req.RemoteAddr = "10.1.1.1:4000"
		h.ServeHTTP(rr, req)
		return rr.Code
	}

	require.Equal(t, http.StatusOK, do(http.MethodPost, "/sla/cycles", ""))
	require.Equal(t, http.StatusTooManyRequests, do(http.MethodPost, "/sla/cycles", ""))
	require.Equal(t, http.StatusTooManyRequests, do(http.MethodPost, "/orders/O1/reassign", `{"to_driver_id":"D2"}`))
	require.Equal(t, http.StatusOK, do(http.MethodGet, "/sla/escalations", ""))
}

func TestRouter_RecordsRequestsByRoute(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m := metrics.NewHTTP()
	require.NoError(t, m.Register(reg))
	h := newHandler(nil, m)

	for _, path := range []string{"/orders/O1", "/orders/O2", "/sla/status", "/nowhere"} {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	expected := `
# HELP http_requests_total Total number of HTTP requests
# TYPE http_requests_total counter
http_requests_total{method="GET",route="/orders/{id}/",status="200"} 1
http_requests_total{method="GET",route="/orders/{id}/",status="404"} 1
http_requests_total{method="GET",route="/sla/status",status="200"} 1
http_requests_total{method="GET",route="unmatched",status="404"} 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "http_requests_total"))
}
