//go:generate mockgen -source=contracts.go -destination=orders_mocks_test.go -package=orders_test

package orders

import (
	"context"
	"time"

	"service-sla-guard/internal/domain"
)

// LifecyclePort abstracts the executor operations driven by order events.
type LifecyclePort interface {
	Register(ctx context.Context, o *domain.Order) error
	MarkInTransit(ctx context.Context, orderID string, now time.Time) (domain.TransitionResult, error)
	Complete(ctx context.Context, orderID string) (domain.TransitionResult, error)
	Cancel(ctx context.Context, orderID string) (domain.TransitionResult, error)
}

// Observer receives processed event outcomes.
type Observer interface {
	LifecycleEvent(event string, ok bool)
}
