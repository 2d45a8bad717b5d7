package app

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/dig"

	"service-sla-guard/internal/config"
	"service-sla-guard/internal/http/handlers"
	"service-sla-guard/internal/http/middleware/ratelimit"
	"service-sla-guard/internal/http/pprofserver"
	"service-sla-guard/internal/http/router"
	"service-sla-guard/internal/logx"
	"service-sla-guard/internal/metrics"
	"service-sla-guard/internal/service/monitor"
	"service-sla-guard/internal/service/reassign"
)

type routerIn struct {
	dig.In

	Logger      logx.Logger
	Gatherer    prometheus.Gatherer
	Monitor     *monitor.Monitor
	Store       store
	Executor    *reassign.Executor
	RateLimit   *ratelimit.Middleware
	HTTPMetrics *metrics.HTTP
}

func provideRouter(in routerIn) http.Handler {
	return router.New(router.Deps{
		Logger:  in.Logger,
		Base:    handlers.New(in.Logger),
		SLA:     handlers.NewSLAHandler(in.Logger, in.Monitor),
		Orders:  handlers.NewOrderHandler(in.Logger, in.Store, in.Monitor),
		Drivers: handlers.NewDriverHandler(in.Logger, in.Store, in.Executor),
		Limit:   in.RateLimit.Handler(),
		Metrics: promhttp.HandlerFor(in.Gatherer, promhttp.HandlerOpts{}),

		HTTPMetrics: in.HTTPMetrics,
	})
}

type serversOut struct {
	dig.Out

	Main  *http.Server
	Pprof *http.Server `name:"pprof_server"`
}

func provideServers(cfg *config.Config, mux http.Handler) serversOut {
	return serversOut{
		Main: &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Port),
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      15 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		Pprof: pprofserver.NewServer(cfg.Pprof.Addr, pprofserver.Config{
			User: cfg.Pprof.User,
			Pass: cfg.Pprof.Pass,
		}),
	}
}

func registerHTTP(container *dig.Container) error {
	return provideAll(container,
		newRateLimitClock,
		newRateLimiter,
		newRateLimitMiddleware,
		provideRouter,
		provideServers,
	)
}
