package app

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/dig"

	"service-sla-guard/internal/config"
	"service-sla-guard/internal/domain"
	"service-sla-guard/internal/logx"
	"service-sla-guard/internal/ports/reassigntx"
	"service-sla-guard/internal/repository"
	"service-sla-guard/internal/repository/memory"
	"service-sla-guard/internal/service/monitor"
)

// store is the order store and driver registry shared by the monitor, the
// executor and the HTTP API.
type store interface {
	monitor.OrderStore
	monitor.DriverRegistry
	reassigntx.Runner
	GetDriver(ctx context.Context, id string) (*domain.Driver, error)
}

var (
	_ store = (*repository.Store)(nil)
	_ store = (*memory.Store)(nil)
)

func registerStore(container *dig.Container, dbConnect dbConnectFunc) error {
	providePool := func(ctx context.Context, cfg *config.Config, logger logx.Logger) (*pgxpool.Pool, error) {
		if cfg.Store == config.StoreMemory {
			logger.Warn("using in-memory store, state is lost on restart")
			return nil, nil
		}
		pool, err := dbConnect(ctx, logger, cfg.DB.DSN(), 10, time.Second)
		if err != nil {
			return nil, err
		}
		if err := repository.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
		return pool, nil
	}
	provideStore := func(pool *pgxpool.Pool) store {
		if pool == nil {
			return memory.New()
		}
		return repository.NewStore(pool)
	}
	provideAuditRepo := func(pool *pgxpool.Pool) *repository.AuditRepo {
		if pool == nil {
			return nil
		}
		return repository.NewAuditRepo(pool)
	}
	return provideAll(container, providePool, provideStore, provideAuditRepo)
}
