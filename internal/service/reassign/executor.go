package reassign

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"service-sla-guard/internal/apperr"
	"service-sla-guard/internal/domain"
	"service-sla-guard/internal/logx"
	"service-sla-guard/internal/ports/reassigntx"
)

// reassignableStatuses are the order statuses a hand-off may start from.
var reassignableStatuses = []domain.OrderStatus{
	domain.OrderAssigned, domain.OrderInTransit, domain.OrderAtRisk, domain.OrderReassigned,
}

// Executor is the only writer of order and driver records. Every mutation
// runs under the order's lock and inside one store transaction, so a
// failed precondition leaves no partial state.
type Executor struct {
	tx               reassigntx.Runner
	locks            *LockSet
	maxOrders        int
	operationTimeout time.Duration
	logger           logx.Logger
	newID            func() string
}

// NewExecutor creates an Executor. maxOrders bounds a driver's active orders.
func NewExecutor(tx reassigntx.Runner, locks *LockSet, maxOrders int, timeout time.Duration, logger logx.Logger) *Executor {
	if locks == nil {
		locks = NewLockSet()
	}
	if maxOrders <= 0 {
		maxOrders = 1
	}
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &Executor{
		tx:               tx,
		locks:            locks,
		maxOrders:        maxOrders,
		operationTimeout: timeout,
		logger:           logger,
		newID:            func() string { return uuid.NewString() },
	}
}

// withLock runs fn while holding key, bounded by the operation timeout.
// Orders are keyed by their id, drivers by driverKey.
func (e *Executor) withLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, e.operationTimeout)
	defer cancel()

	unlock, err := e.locks.Lock(ctx, key)
	if err != nil {
		return fmt.Errorf("lock %s: %w", key, err)
	}
	defer unlock()
	return fn(ctx)
}

func driverKey(id string) string { return "driver:" + id }

// Reassign hands orderID from fromDriverID to toDriverID.
func (e *Executor) Reassign(
	ctx context.Context,
	orderID, fromDriverID, toDriverID, reason string,
	now time.Time,
) (domain.ReassignmentRecord, error) {
	orderID = strings.TrimSpace(orderID)
	toDriverID = strings.TrimSpace(toDriverID)
	if orderID == "" || toDriverID == "" {
		return domain.ReassignmentRecord{}, apperr.ErrInvalid
	}

	var rec domain.ReassignmentRecord
	err := e.withLock(ctx, orderID, func(ctx context.Context) error {
		return e.tx.WithTx(ctx, func(tx reassigntx.Repository) error {
			order, err := tx.GetOrderForUpdate(ctx, orderID)
			if err != nil {
				return err
			}
			if order == nil {
				return fmt.Errorf("order %s: %w", orderID, apperr.ErrNotFound)
			}
			if order.AssignedDriverID != fromDriverID || !slices.Contains(reassignableStatuses, order.Status) {
				return apperr.Reassignment(apperr.ErrStaleOrderState, orderID, fromDriverID,
					fmt.Sprintf("order is %s with driver %q", order.Status, order.AssignedDriverID))
			}
			if toDriverID == fromDriverID {
				return apperr.Reassignment(apperr.ErrDriverUnavailable, orderID, toDriverID, "already assigned")
			}

			ids := []string{toDriverID}
			if fromDriverID != "" {
				ids = append(ids, fromDriverID)
			}
			drivers, err := tx.GetDriversForUpdate(ctx, ids...)
			if err != nil {
				return err
			}

			to, ok := drivers[toDriverID]
			if !ok || to.Status != domain.DriverAvailable {
				return apperr.Reassignment(apperr.ErrDriverUnavailable, orderID, toDriverID, "")
			}
			if to.Load() >= e.maxOrders {
				return apperr.Reassignment(apperr.ErrCapacityExceeded, orderID, toDriverID,
					fmt.Sprintf("%d active orders", to.Load()))
			}

			rec = domain.ReassignmentRecord{
				ID:             e.newID(),
				OrderID:        orderID,
				ServiceClass:   order.ServiceClass,
				FromDriverID:   fromDriverID,
				ToDriverID:     toDriverID,
				Reason:         reason,
				PreviousStatus: order.Status,
			}

			if from, ok := drivers[fromDriverID]; ok {
				from.RemoveOrder(orderID)
				if from.Load() == 0 && from.Status == domain.DriverBusy {
					from.Status = domain.DriverAvailable
				}
				if err := tx.SaveDriver(ctx, from); err != nil {
					return err
				}
				rec.FromDriverStatus = from.Status
			}

			to.AddOrder(orderID)
			to.Status = domain.DriverBusy
			if err := tx.SaveDriver(ctx, to); err != nil {
				return err
			}

			entry := domain.ReassignmentEntry{
				FromDriverID: fromDriverID,
				ToDriverID:   toDriverID,
				Reason:       reason,
				Timestamp:    historyTimestamp(order, now),
			}
			if err := tx.AppendHistory(ctx, orderID, entry); err != nil {
				return err
			}
			order.ReassignmentHistory = append(order.ReassignmentHistory, entry)

			order.AssignedDriverID = toDriverID
			order.Status = domain.OrderReassigned
			order.AtRiskSince = nil
			if err := tx.SaveOrder(ctx, order); err != nil {
				return err
			}

			rec.Timestamp = entry.Timestamp
			rec.HistoryIndex = len(order.ReassignmentHistory) - 1
			return nil
		})
	})
	if err != nil {
		return domain.ReassignmentRecord{}, err
	}

	e.logger.Info("order reassigned",
		logx.String("event", "order_reassigned"),
		logx.String("order_id", rec.OrderID),
		logx.String("from_driver_id", rec.FromDriverID),
		logx.String("to_driver_id", rec.ToDriverID),
		logx.String("reason", rec.Reason),
		logx.Int("history_index", rec.HistoryIndex),
	)
	return rec, nil
}

// History entries must be strictly increasing even if the clock steps back.
func historyTimestamp(o *domain.Order, now time.Time) time.Time {
	now = now.UTC().Truncate(time.Microsecond)
	if last, ok := o.LastReassignment(); ok && !now.After(last.Timestamp) {
		return last.Timestamp.Add(time.Microsecond)
	}
	return now
}

// Transition moves orderID to status to if its current status is one of from.
// It returns apperr.ErrConflict when the order is in any other status.
func (e *Executor) Transition(
	ctx context.Context,
	orderID string,
	from []domain.OrderStatus,
	to domain.OrderStatus,
	now time.Time,
) (domain.TransitionResult, error) {
	var res domain.TransitionResult
	err := e.withLock(ctx, orderID, func(ctx context.Context) error {
		return e.tx.WithTx(ctx, func(tx reassigntx.Repository) error {
			order, err := tx.GetOrderForUpdate(ctx, orderID)
			if err != nil {
				return err
			}
			if order == nil {
				return fmt.Errorf("order %s: %w", orderID, apperr.ErrNotFound)
			}
			if !slices.Contains(from, order.Status) {
				return fmt.Errorf("order %s is %s, want one of %v: %w", orderID, order.Status, from, apperr.ErrConflict)
			}
			if to.RequiresDriver() && !order.HasDriver() {
				return fmt.Errorf("order %s has no driver for %s: %w", orderID, to, apperr.ErrConflict)
			}

			res = domain.TransitionResult{OrderID: orderID, From: order.Status, To: to, DriverID: order.AssignedDriverID}
			if to == domain.OrderAtRisk {
				t := now.UTC()
				order.AtRiskSince = &t
			}
			order.Status = to
			return tx.SaveOrder(ctx, order)
		})
	})
	return res, err
}

// MarkAtRisk flags a monitored order as at risk.
func (e *Executor) MarkAtRisk(ctx context.Context, orderID string, now time.Time) (domain.TransitionResult, error) {
	return e.Transition(ctx, orderID,
		[]domain.OrderStatus{domain.OrderAssigned, domain.OrderInTransit, domain.OrderReassigned},
		domain.OrderAtRisk, now)
}

// MarkBreached moves a monitored order to the terminal BREACHED status.
func (e *Executor) MarkBreached(ctx context.Context, orderID string, now time.Time) (domain.TransitionResult, error) {
	return e.Transition(ctx, orderID, domain.MonitoredStatuses, domain.OrderBreached, now)
}

// MarkInTransit records that the driver picked the order up.
func (e *Executor) MarkInTransit(ctx context.Context, orderID string, now time.Time) (domain.TransitionResult, error) {
	return e.Transition(ctx, orderID,
		[]domain.OrderStatus{domain.OrderAssigned, domain.OrderReassigned},
		domain.OrderInTransit, now)
}

// Complete closes a delivered order and releases its driver.
func (e *Executor) Complete(ctx context.Context, orderID string) (domain.TransitionResult, error) {
	return e.finish(ctx, orderID, domain.OrderCompleted)
}

// Cancel closes a cancelled order and releases its driver.
func (e *Executor) Cancel(ctx context.Context, orderID string) (domain.TransitionResult, error) {
	return e.finish(ctx, orderID, domain.OrderCancelled)
}

func (e *Executor) finish(ctx context.Context, orderID string, to domain.OrderStatus) (domain.TransitionResult, error) {
	var res domain.TransitionResult
	err := e.withLock(ctx, orderID, func(ctx context.Context) error {
		return e.tx.WithTx(ctx, func(tx reassigntx.Repository) error {
			order, err := tx.GetOrderForUpdate(ctx, orderID)
			if err != nil {
				return err
			}
			if order == nil {
				return fmt.Errorf("order %s: %w", orderID, apperr.ErrNotFound)
			}
			// a breached order can still be delivered late
			if order.Status == domain.OrderCompleted || order.Status == domain.OrderCancelled {
				return fmt.Errorf("order %s already %s: %w", orderID, order.Status, apperr.ErrConflict)
			}

			res = domain.TransitionResult{OrderID: orderID, From: order.Status, To: to, DriverID: order.AssignedDriverID}

			if order.HasDriver() {
				drivers, err := tx.GetDriversForUpdate(ctx, order.AssignedDriverID)
				if err != nil {
					return err
				}
				if d, ok := drivers[order.AssignedDriverID]; ok {
					d.RemoveOrder(orderID)
					if to == domain.OrderCompleted {
						d.DailyDeliveryCount++
						d.ConsecutiveDeliveries++
					}
					if d.Load() == 0 && d.Status == domain.DriverBusy {
						d.Status = domain.DriverAvailable
					}
					if err := tx.SaveDriver(ctx, d); err != nil {
						return err
					}
				}
			}

			order.Status = to
			order.AtRiskSince = nil
			return tx.SaveOrder(ctx, order)
		})
	})
	return res, err
}

// Register records a newly assigned order and adds it to its driver's
// active set. An order without a driver is stored as PENDING.
func (e *Executor) Register(ctx context.Context, o *domain.Order) error {
	if o == nil || strings.TrimSpace(o.ID) == "" || o.CreatedAt.IsZero() {
		return apperr.ErrInvalid
	}
	order := o.Clone()
	order.ReassignmentHistory = nil
	order.AtRiskSince = nil
	if order.HasDriver() {
		order.Status = domain.OrderAssigned
	} else {
		order.Status = domain.OrderPending
	}

	return e.withLock(ctx, order.ID, func(ctx context.Context) error {
		return e.tx.WithTx(ctx, func(tx reassigntx.Repository) error {
			if order.HasDriver() {
				drivers, err := tx.GetDriversForUpdate(ctx, order.AssignedDriverID)
				if err != nil {
					return err
				}
				d, ok := drivers[order.AssignedDriverID]
				if !ok {
					return fmt.Errorf("driver %s: %w", order.AssignedDriverID, apperr.ErrNotFound)
				}
				d.AddOrder(order.ID)
				if d.Status == domain.DriverAvailable {
					d.Status = domain.DriverBusy
				}
				if err := tx.SaveDriver(ctx, d); err != nil {
					return err
				}
			}
			return tx.InsertOrder(ctx, order)
		})
	})
}

// UpdateDriver creates a driver or replaces its profile and status. The
// active order set and delivery counters of an existing driver are kept.
// A driver with active orders may only be BUSY or ON_BREAK.
func (e *Executor) UpdateDriver(ctx context.Context, d *domain.Driver) (*domain.Driver, error) {
	if d == nil || strings.TrimSpace(d.ID) == "" || !d.Status.Valid() {
		return nil, apperr.ErrInvalid
	}
	next := d.Clone()
	next.ID = strings.TrimSpace(next.ID)

	err := e.withLock(ctx, driverKey(next.ID), func(ctx context.Context) error {
		return e.tx.WithTx(ctx, func(tx reassigntx.Repository) error {
			drivers, err := tx.GetDriversForUpdate(ctx, next.ID)
			if err != nil {
				return err
			}
			next.ActiveOrderIDs = nil
			next.DailyDeliveryCount = 0
			next.ConsecutiveDeliveries = 0
			if cur, ok := drivers[next.ID]; ok {
				next.ActiveOrderIDs = slices.Clone(cur.ActiveOrderIDs)
				next.DailyDeliveryCount = cur.DailyDeliveryCount
				next.ConsecutiveDeliveries = cur.ConsecutiveDeliveries
			}
			if next.Load() > 0 && next.Status != domain.DriverBusy && next.Status != domain.DriverOnBreak {
				return fmt.Errorf("driver %s has %d active orders, cannot be %s: %w",
					next.ID, next.Load(), next.Status, apperr.ErrConflict)
			}
			return tx.UpsertDriver(ctx, next)
		})
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("driver updated",
		logx.String("event", "driver_updated"),
		logx.String("driver_id", next.ID),
		logx.String("status", string(next.Status)),
		logx.Int("active_orders", next.Load()),
	)
	return next, nil
}
