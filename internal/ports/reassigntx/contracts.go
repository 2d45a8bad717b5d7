package reassigntx

import (
	"context"

	"service-sla-guard/internal/domain"
)

// Repository is the transaction-scoped view of the order store and driver
// registry. Rows returned by the *ForUpdate methods stay locked until the
// transaction ends.
type Repository interface {
	// GetOrderForUpdate returns nil, nil when the order does not exist.
	GetOrderForUpdate(ctx context.Context, id string) (*domain.Order, error)
	// GetDriversForUpdate locks the given drivers in ascending id order.
	// Missing drivers are absent from the result.
	GetDriversForUpdate(ctx context.Context, ids ...string) (map[string]*domain.Driver, error)
	// InsertOrder returns apperr.ErrConflict when the id is taken.
	InsertOrder(ctx context.Context, o *domain.Order) error
	SaveOrder(ctx context.Context, o *domain.Order) error
	SaveDriver(ctx context.Context, d *domain.Driver) error
	// UpsertDriver inserts the driver or replaces every field of it.
	UpsertDriver(ctx context.Context, d *domain.Driver) error
	AppendHistory(ctx context.Context, orderID string, e domain.ReassignmentEntry) error
}

// Runner is a transaction runner. fn's writes are committed together when
// it returns nil and discarded otherwise.
type Runner interface {
	WithTx(ctx context.Context, fn func(tx Repository) error) error
}
