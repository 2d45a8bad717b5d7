package orders

import (
	"context"
	"errors"
	"time"

	"service-sla-guard/internal/apperr"
	"service-sla-guard/internal/logx"
)

// Processor applies order lifecycle events through the reassignment
// executor, so they serialize with the monitor on the same order lock.
// Duplicate and out-of-order events are acknowledged without effect.
type Processor struct {
	exec    LifecyclePort
	now     func() time.Time
	logger  logx.Logger
	obs     Observer
	factory *actionFactory
}

// NewProcessor creates a Processor. obs may be nil.
func NewProcessor(exec LifecyclePort, logger logx.Logger, obs Observer) *Processor {
	p := &Processor{
		exec:   exec,
		now:    func() time.Time { return time.Now().UTC() },
		logger: logger,
		obs:    obs,
	}
	p.factory = newActionFactory(p.onAssigned, p.onInTransit, p.onCompleted, p.onCancelled)
	return p
}

// Handle processes a single Event. Errors are returned only when the event
// should be redelivered.
func (p *Processor) Handle(ctx context.Context, e Event) error {
	fn, status, ok := p.factory.get(e.Status)
	if !ok {
		p.logger.Debug("order event ignored", logx.String("order_id", e.OrderID), logx.String("status", e.Status))
		return nil
	}
	err := fn(ctx, e)
	if p.obs != nil {
		p.obs.LifecycleEvent(status, err == nil)
	}
	return err
}

func (p *Processor) onAssigned(ctx context.Context, e Event) error {
	err := p.exec.Register(ctx, e.Order())
	switch {
	case errors.Is(err, apperr.ErrConflict):
		return nil
	case errors.Is(err, apperr.ErrInvalid):
		p.logger.Warn("invalid order event dropped", logx.String("order_id", e.OrderID), logx.Err(err))
		return nil
	}
	return err
}

func (p *Processor) onInTransit(ctx context.Context, e Event) error {
	_, err := p.exec.MarkInTransit(ctx, e.OrderID, p.now())
	return p.settle(e, err)
}

func (p *Processor) onCompleted(ctx context.Context, e Event) error {
	_, err := p.exec.Complete(ctx, e.OrderID)
	return p.settle(e, err)
}

func (p *Processor) onCancelled(ctx context.Context, e Event) error {
	_, err := p.exec.Cancel(ctx, e.OrderID)
	return p.settle(e, err)
}

// settle drops events that no longer apply to the order.
func (p *Processor) settle(e Event, err error) error {
	if errors.Is(err, apperr.ErrNotFound) || errors.Is(err, apperr.ErrConflict) {
		p.logger.Debug("order event not applicable",
			logx.String("order_id", e.OrderID),
			logx.String("status", e.Status),
			logx.Err(err),
		)
		return nil
	}
	return err
}
