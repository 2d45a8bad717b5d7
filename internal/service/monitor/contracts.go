//go:generate mockgen -source=contracts.go -destination=mocks_test.go -package=monitor_test

package monitor

import (
	"context"
	"time"

	"service-sla-guard/internal/domain"
)

// OrderStore reads orders for evaluation.
type OrderStore interface {
	GetOrder(ctx context.Context, id string) (*domain.Order, error)
	ListOrders(ctx context.Context, statuses []domain.OrderStatus, limit int) ([]*domain.Order, error)
}

// DriverRegistry lists reassignment candidates.
type DriverRegistry interface {
	ListAvailableDrivers(ctx context.Context, near *domain.Location, limit int) ([]*domain.Driver, error)
}

// Executor applies status changes and reassignments.
type Executor interface {
	Reassign(ctx context.Context, orderID, fromDriverID, toDriverID, reason string, now time.Time) (domain.ReassignmentRecord, error)
	MarkAtRisk(ctx context.Context, orderID string, now time.Time) (domain.TransitionResult, error)
	MarkBreached(ctx context.Context, orderID string, now time.Time) (domain.TransitionResult, error)
}

// Notifier emits a notification. Implementations must not block.
type Notifier interface {
	Notify(ctx context.Context, n domain.Notification) error
}

// Auditor appends a committed reassignment to the audit trail. Implementations must not block.
type Auditor interface {
	RecordAudit(ctx context.Context, rec domain.ReassignmentRecord) error
}

// Observer receives cycle outcomes.
type Observer interface {
	CycleCompleted(s domain.CycleSummary)
	CycleAborted(d time.Duration)
	CycleSkipped()
	Transition(to domain.OrderStatus)
	Reassignment(outcome string)
	Escalation()
}

// Clock tells the time.
type Clock interface {
	Now() time.Time
}
