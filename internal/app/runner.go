package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/dig"
	"golang.org/x/sync/errgroup"

	"service-sla-guard/internal/logx"
	"service-sla-guard/internal/notify"
	"service-sla-guard/internal/service/monitor"
	"service-sla-guard/internal/transport/kafka"
)

const (
	shutdownTimeout = 15 * time.Second
	drainTimeout    = 5 * time.Second
)

// Runner runs the monitor service: HTTP API, monitor loop and, with the
// memory store, the lifecycle consumer.
type Runner struct {
	runFn func(*dig.Container) error
}

// NewRunner returns a new Runner
func NewRunner() *Runner {
	return &Runner{runFn: run}
}

// MustRun runs the service and panics on any error other than shutdown.
func (r *Runner) MustRun(container *dig.Container) {
	err := r.runFn(container)
	if err == nil {
		return
	}
	logger := loggerFrom(container)
	switch {
	case errors.Is(err, context.Canceled):
		logger.Info("shutdown requested, exiting")
	case errors.Is(err, context.DeadlineExceeded):
		logger.Warn("startup aborted: startup timeout exceeded")
	default:
		logger.Error("run error", logx.Err(err))
		panic(err)
	}
}

func loggerFrom(container *dig.Container) logx.Logger {
	logger := logx.Nop()
	_ = container.Invoke(func(l logx.Logger) { logger = l })
	return logger
}

type serviceIn struct {
	dig.In

	Ctx        context.Context
	Logger     logx.Logger
	Server     *http.Server
	Pprof      *http.Server `name:"pprof_server" optional:"true"`
	Monitor    *monitor.Monitor
	Dispatcher *notify.Dispatcher
	Consumer   embeddedConsumer
	Producer   *kafka.Producer
	Pool       *pgxpool.Pool
}

func run(container *dig.Container) error {
	return container.Invoke(serviceRun)
}

func serviceRun(in serviceIn) error {
	logger := in.Logger
	servers := []*http.Server{in.Server}
	if in.Pprof != nil {
		servers = append(servers, in.Pprof)
	}

	g, ctx := errgroup.WithContext(in.Ctx)
	for _, srv := range servers {
		g.Go(func() error { return listen(srv, logger) })
	}
	g.Go(func() error { return in.Monitor.Run(ctx) })
	if in.Consumer.Consumer != nil {
		g.Go(func() error { return in.Consumer.Run(ctx) })
	}
	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down sla-guard...")
		for _, srv := range servers {
			gracefulShutdown(srv, logger, shutdownTimeout)
		}
		return nil
	})

	err := g.Wait()
	closeResources(logger, in)
	return err
}

func listen(srv *http.Server, logger logx.Logger) error {
	logger.Info("listening", logx.String("addr", srv.Addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func gracefulShutdown(srv *http.Server, logger logx.Logger, timeout time.Duration) {
	shCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(shCtx); err != nil {
		logger.Error("graceful shutdown error", logx.String("addr", srv.Addr), logx.Err(err))
	}
}

// closeResources stops intake first, then drains queued notifications into
// the sinks before closing them.
func closeResources(logger logx.Logger, in serviceIn) {
	if err := in.Consumer.Close(); err != nil {
		logger.Error("kafka consumer close error", logx.Err(err))
	}
	if in.Dispatcher != nil {
		ctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
		if err := in.Dispatcher.Close(ctx); err != nil {
			logger.Error("notification drain error", logx.Err(err))
		}
		cancel()
	}
	if err := in.Producer.Close(); err != nil {
		logger.Error("kafka producer close error", logx.Err(err))
	}
	if in.Pool != nil {
		in.Pool.Close()
	}
}
