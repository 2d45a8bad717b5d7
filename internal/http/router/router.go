package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"service-sla-guard/internal/http/handlers"
	obs "service-sla-guard/internal/http/middleware"
	"service-sla-guard/internal/logx"
	"service-sla-guard/internal/metrics"
)

// Deps holds everything the router mounts. Limit guards the manual
// operations, Metrics serves /metrics and HTTPMetrics records request
// counts; all three are optional.
type Deps struct {
	Logger      logx.Logger
	Base        *handlers.Handlers
	SLA         *handlers.SLAHandler
	Orders      *handlers.OrderHandler
	Drivers     *handlers.DriverHandler
	Limit       func(http.Handler) http.Handler
	Metrics     http.Handler
	HTTPMetrics *metrics.HTTP
	// Timeout bounds read-only requests. Manual cycles have their own deadline.
	Timeout time.Duration
}

// New constructs a chi-based http.Handler with base middleware and routes.
func New(d Deps) http.Handler {
	if d.Logger == nil {
		d.Logger = logx.Nop()
	}
	if d.Timeout <= 0 {
		d.Timeout = 5 * time.Second
	}
	limit := d.Limit
	if limit == nil {
		limit = func(next http.Handler) http.Handler { return next }
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(obs.Observability(d.Logger, d.HTTPMetrics))
	r.Use(middleware.Recoverer)

	r.Get("/ping", d.Base.Ping)
	r.Method(http.MethodHead, "/healthcheck", http.HandlerFunc(d.Base.HealthcheckHead))
	if d.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", d.Metrics)
	}

	r.Route("/sla", func(r chi.Router) {
		r.With(limit).Post("/cycles", d.SLA.RunCycle)
		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(d.Timeout))
			r.Get("/cycles/last", d.SLA.LastCycle)
			r.Get("/escalations", d.SLA.Escalations)
			r.Get("/status", d.SLA.Status)
		})
	})

	r.Route("/orders/{id}", func(r chi.Router) {
		r.Use(middleware.Timeout(d.Timeout))
		r.Get("/", d.Orders.GetByID)
		r.With(limit).Post("/reassign", d.Orders.Reassign)
	})

	r.Route("/drivers/{id}", func(r chi.Router) {
		r.Use(middleware.Timeout(d.Timeout))
		r.Get("/", d.Drivers.GetByID)
		r.Put("/", d.Drivers.Put)
	})

	r.NotFound(http.HandlerFunc(d.Base.NotFound))

	return r
}
