package app

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/dig"

	"service-sla-guard/internal/config"
	"service-sla-guard/internal/logx"
	"service-sla-guard/internal/metrics"
	"service-sla-guard/internal/notify"
	"service-sla-guard/internal/repository"
	"service-sla-guard/internal/routing"
	"service-sla-guard/internal/scoring"
	"service-sla-guard/internal/service/monitor"
	"service-sla-guard/internal/service/orders"
	"service-sla-guard/internal/service/reassign"
	"service-sla-guard/internal/sla"
	"service-sla-guard/internal/transport/kafka"
)

type dbConnectFunc func(ctx context.Context, logger logx.Logger, dsn string, retries int, delay time.Duration) (*pgxpool.Pool, error)

// ContainerBuilder is a dig container builder.
type ContainerBuilder struct {
	dbConnect  dbConnectFunc
	logFatalf  func(string, ...interface{})
	loadConfig func() (*config.Config, error)
	registerer prometheus.Registerer
	gatherer   prometheus.Gatherer
}

// NewContainerBuilder returns a new dig container builder
func NewContainerBuilder() *ContainerBuilder {
	return &ContainerBuilder{
		dbConnect:  connectDbWithRetry,
		logFatalf:  log.Fatalf,
		loadConfig: config.Load,
		registerer: prometheus.DefaultRegisterer,
		gatherer:   prometheus.DefaultGatherer,
	}
}

// WithDBConnect sets the database connection function
func (b *ContainerBuilder) WithDBConnect(fn dbConnectFunc) *ContainerBuilder {
	if fn != nil {
		b.dbConnect = fn
	}
	return b
}

// WithLogFatalf sets the log.Fatalf function
func (b *ContainerBuilder) WithLogFatalf(fn func(string, ...interface{})) *ContainerBuilder {
	if fn != nil {
		b.logFatalf = fn
	}
	return b
}

// WithConfig makes the container use cfg instead of loading it.
func (b *ContainerBuilder) WithConfig(cfg *config.Config) *ContainerBuilder {
	if cfg != nil {
		b.loadConfig = func() (*config.Config, error) { return cfg, nil }
	}
	return b
}

// WithRegistry registers and serves metrics from reg instead of the default registry.
func (b *ContainerBuilder) WithRegistry(reg *prometheus.Registry) *ContainerBuilder {
	if reg != nil {
		b.registerer = reg
		b.gatherer = reg
	}
	return b
}

// MustBuild builds the service container.
func (b *ContainerBuilder) MustBuild(ctx context.Context) *dig.Container {
	container, err := b.build(ctx)
	if err != nil {
		b.logFatalf("failed to build container: %v", err)
	}
	return container
}

// MustBuildWorker builds the lifecycle worker container.
func (b *ContainerBuilder) MustBuildWorker(ctx context.Context) *dig.Container {
	container, err := b.buildWorker(ctx)
	if err != nil {
		b.logFatalf("failed to build worker container: %v", err)
	}
	return container
}

func (b *ContainerBuilder) build(ctx context.Context) (*dig.Container, error) {
	container, err := b.buildWorker(ctx)
	if err != nil {
		return nil, err
	}
	if err := registerNotify(container); err != nil {
		return nil, fmt.Errorf("notify: %w", err)
	}
	if err := registerMonitor(container); err != nil {
		return nil, fmt.Errorf("monitor: %w", err)
	}
	if err := registerHTTP(container); err != nil {
		return nil, fmt.Errorf("http: %w", err)
	}
	return container, nil
}

func (b *ContainerBuilder) buildWorker(ctx context.Context) (*dig.Container, error) {
	container := dig.New()

	if err := registerCore(container, ctx, b); err != nil {
		return nil, fmt.Errorf("core: %w", err)
	}
	if err := registerStore(container, b.dbConnect); err != nil {
		return nil, fmt.Errorf("store: %w", err)
	}
	if err := registerLifecycle(container); err != nil {
		return nil, fmt.Errorf("lifecycle: %w", err)
	}
	return container, nil
}

// MustBuildContainer builds the service container with production defaults.
func MustBuildContainer(ctx context.Context) *dig.Container {
	return NewContainerBuilder().MustBuild(ctx)
}

// MustBuildWorkerContainer builds the worker container with production defaults.
func MustBuildWorkerContainer(ctx context.Context) *dig.Container {
	return NewContainerBuilder().MustBuildWorker(ctx)
}

func provideAll(container *dig.Container, providers ...any) error {
	for _, provider := range providers {
		if err := container.Provide(provider); err != nil {
			return fmt.Errorf("provide %T: %w", provider, err)
		}
	}
	return nil
}

func registerCore(container *dig.Container, ctx context.Context, b *ContainerBuilder) error {
	return provideAll(container,
		func() context.Context { return ctx },
		b.loadConfig,
		NewLogger,
		func() prometheus.Registerer { return b.registerer },
		func() prometheus.Gatherer { return b.gatherer },
		provideMetrics,
	)
}

// registerLifecycle provides the executor and the order event intake. Both
// binaries need them.
func registerLifecycle(container *dig.Container) error {
	return provideAll(container,
		reassign.NewLockSet,
		func(s store, locks *reassign.LockSet, cfg *config.Config, logger logx.Logger) *reassign.Executor {
			return reassign.NewExecutor(s, locks, cfg.Reassign.MaxOrdersPerDriver, cfg.Reassign.OperationTimeout, logger)
		},
		func(exec *reassign.Executor, logger logx.Logger, m *metrics.SLA) *orders.Processor {
			return orders.NewProcessor(exec, logger, m)
		},
		provideConsumer,
		provideEmbeddedConsumer,
	)
}

func registerNotify(container *dig.Container) error {
	return provideAll(container,
		provideProducer,
		provideDispatcher,
	)
}

func registerMonitor(container *dig.Container) error {
	return provideAll(container,
		func(cfg *config.Config) (*sla.Evaluator, error) {
			return sla.NewEvaluator(cfg.Profiles)
		},
		func(cfg *config.Config) (*scoring.Selector, error) {
			return scoring.NewSelector(scoring.Config{
				Weights:                  scoring.Weights(cfg.Weights),
				MaxConcurrentOrders:      cfg.Reassign.MaxOrdersPerDriver,
				MaxConsecutiveDeliveries: cfg.Reassign.MaxConsecutiveDeliveries,
			})
		},
		provideDistancer,
		func() monitor.Clock { return monitor.SystemClock{} },
		provideMonitor,
	)
}

type distancerIn struct {
	dig.In

	Config  *config.Config
	Logger  logx.Logger
	Retries prometheus.Counter `name:"routing_retries_total"`
}

// provideDistancer returns OSRM road distances with retry and a haversine
// fallback, or plain haversine when no routing engine is configured.
func provideDistancer(in distancerIn) routing.Distancer {
	osrm := routing.NewOSRMClient(in.Config.Routing.OSRMURL, in.Config.Routing.Timeout)
	if osrm == nil {
		return routing.Haversine{}
	}
	retrying := routing.NewRetryingDistancer(osrm, in.Logger, in.Retries, routing.RetryConfig{
		MaxAttempts: in.Config.Routing.MaxAttempts,
		BaseDelay:   in.Config.Routing.BaseDelay,
		MaxDelay:    in.Config.Routing.MaxDelay,
	})
	return routing.NewFallback(retrying, in.Logger)
}

type monitorIn struct {
	dig.In

	Config     *config.Config
	Logger     logx.Logger
	Store      store
	Executor   *reassign.Executor
	Evaluator  *sla.Evaluator
	Selector   *scoring.Selector
	Distancer  routing.Distancer
	Dispatcher *notify.Dispatcher
	Metrics    *metrics.SLA
	Clock      monitor.Clock
}

func provideMonitor(in monitorIn) (*monitor.Monitor, error) {
	m := in.Config.Monitor
	return monitor.New(monitor.Config{
		PollingInterval:     m.PollingInterval,
		CycleTimeout:        m.CycleTimeout,
		RecheckInterval:     m.RecheckInterval,
		ReassignCooldown:    m.ReassignCooldown,
		BatchSize:           m.BatchSize,
		Workers:             m.Workers,
		CandidateLimit:      m.CandidateLimit,
		ReplacementAttempts: m.ReplacementAttempts,
	}, monitor.Deps{
		Orders:    in.Store,
		Drivers:   in.Store,
		Executor:  in.Executor,
		Evaluator: in.Evaluator,
		Selector:  in.Selector,
		Distancer: in.Distancer,
		Notifier:  in.Dispatcher,
		Auditor:   in.Dispatcher,
		Observer:  in.Metrics,
		Clock:     in.Clock,
		Logger:    in.Logger.With(logx.String("component", "monitor")),
	}, uuid.NewString)
}

type dispatcherIn struct {
	dig.In

	Config   *config.Config
	Logger   logx.Logger
	Metrics  *metrics.SLA
	Producer *kafka.Producer
	Audit    *repository.AuditRepo
}

// provideDispatcher fans notifications out to the log and Kafka, and audit
// records to the log, the audit table and Kafka, behind one async queue.
func provideDispatcher(in dispatcherIn) *notify.Dispatcher {
	logSink := notify.NewLogNotifier(in.Logger)
	notifiers := notify.Fanout{logSink}
	audits := notify.AuditFanout{logSink}
	if in.Audit != nil {
		audits = append(audits, in.Audit)
	}
	if in.Producer != nil {
		notifiers = append(notifiers, in.Producer)
		audits = append(audits, in.Producer)
	}

	cfg := notify.DefaultConfig()
	cfg.QueueSize = in.Config.Notify.QueueSize
	cfg.Workers = in.Config.Notify.Workers
	cfg.SendTimeout = in.Config.Notify.SendTimeout
	return notify.NewDispatcher(notifiers, audits, cfg, in.Logger, in.Metrics)
}

func provideProducer(cfg *config.Config, logger logx.Logger) (*kafka.Producer, error) {
	if !cfg.Kafka.Enabled() {
		return nil, nil
	}
	p, err := kafka.NewProducer(logger, cfg.Kafka.Brokers, cfg.Kafka.NotificationsTopic, cfg.Kafka.AuditTopic)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return p, nil
}
