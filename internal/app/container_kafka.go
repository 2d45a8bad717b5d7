package app

import (
	"context"
	"errors"
	"fmt"

	"service-sla-guard/internal/apperr"
	"service-sla-guard/internal/config"
	"service-sla-guard/internal/logx"
	"service-sla-guard/internal/service/orders"
	"service-sla-guard/internal/transport/kafka"
)

// embeddedConsumer is the lifecycle consumer run inside the service
// process. It is only set with the memory store, where no separate worker
// can share the state.
type embeddedConsumer struct {
	*kafka.Consumer
}

func provideConsumer(cfg *config.Config, logger logx.Logger, p *orders.Processor) (*kafka.Consumer, error) {
	return newOrdersConsumer(cfg, logger, p)
}

func provideEmbeddedConsumer(cfg *config.Config, logger logx.Logger, p *orders.Processor) (embeddedConsumer, error) {
	if cfg.Store != config.StoreMemory {
		return embeddedConsumer{}, nil
	}
	c, err := newOrdersConsumer(cfg, logger, p)
	if err != nil {
		return embeddedConsumer{}, err
	}
	return embeddedConsumer{Consumer: c}, nil
}

func newOrdersConsumer(cfg *config.Config, logger logx.Logger, p *orders.Processor) (*kafka.Consumer, error) {
	if !cfg.Kafka.Enabled() {
		return nil, nil
	}
	c, err := kafka.NewConsumer(logger, cfg.Kafka.Brokers, cfg.Kafka.GroupID, cfg.Kafka.OrdersTopic, handleOrderEvent(p))
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	return c, nil
}

// handleOrderEvent retries only store outages. Any other failure will not
// go away on redelivery.
func handleOrderEvent(p *orders.Processor) kafka.HandleFunc {
	return func(ctx context.Context, event orders.Event) error {
		err := p.Handle(ctx, event)
		if err == nil || errors.Is(err, apperr.ErrPersistence) || ctx.Err() != nil {
			return err
		}
		return kafka.Permanent(err)
	}
}
