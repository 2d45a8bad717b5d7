package repository

import (
	"context"
	"fmt"
	"slices"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"service-sla-guard/internal/apperr"
	"service-sla-guard/internal/domain"
	"service-sla-guard/internal/ports/reassigntx"
)

const orderColumns = `id, service_class, created_at, status, COALESCE(assigned_driver_id, ''),
        pickup_lat, pickup_lng, delivery_lat, delivery_lng, at_risk_since`

const driverColumns = `id, name, status, lat, lng, active_order_ids,
        daily_delivery_count, daily_target_count, on_time_rate, consecutive_deliveries`

// querier is satisfied by both the pool and a transaction.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store is the PostgreSQL order store and driver registry.
type Store struct {
	db *pgxpool.Pool
}

// NewStore creates a new Store.
func NewStore(db *pgxpool.Pool) *Store { return &Store{db: db} }

var _ reassigntx.Runner = (*Store)(nil)

func scanOrder(row pgx.Row) (*domain.Order, error) {
	var o domain.Order
	err := row.Scan(&o.ID, &o.ServiceClass, &o.CreatedAt, &o.Status, &o.AssignedDriverID,
		&o.PickupLocation.Lat, &o.PickupLocation.Lng,
		&o.DeliveryLocation.Lat, &o.DeliveryLocation.Lng, &o.AtRiskSince)
	if err != nil {
		return nil, err
	}
	o.CreatedAt = o.CreatedAt.UTC()
	if o.AtRiskSince != nil {
		t := o.AtRiskSince.UTC()
		o.AtRiskSince = &t
	}
	return &o, nil
}

func scanDriver(row pgx.Row) (*domain.Driver, error) {
	var d domain.Driver
	err := row.Scan(&d.ID, &d.Name, &d.Status, &d.CurrentLocation.Lat, &d.CurrentLocation.Lng,
		&d.ActiveOrderIDs, &d.DailyDeliveryCount, &d.DailyTargetCount, &d.OnTimeRate, &d.ConsecutiveDeliveries)
	if err != nil {
		return nil, err
	}
	if len(d.ActiveOrderIDs) == 0 {
		d.ActiveOrderIDs = nil
	}
	return &d, nil
}

// loadHistory fills the reassignment history of every order in place.
func loadHistory(ctx context.Context, q querier, orders ...*domain.Order) error {
	if len(orders) == 0 {
		return nil
	}
	byID := make(map[string]*domain.Order, len(orders))
	ids := make([]string, 0, len(orders))
	for _, o := range orders {
		byID[o.ID] = o
		ids = append(ids, o.ID)
	}

	rows, err := q.Query(ctx, `
        SELECT order_id, from_driver_id, to_driver_id, reason, created_at
        FROM order_reassignments
        WHERE order_id = ANY($1)
        ORDER BY order_id, seq
    `, ids)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			orderID string
			e       domain.ReassignmentEntry
		)
		if err := rows.Scan(&orderID, &e.FromDriverID, &e.ToDriverID, &e.Reason, &e.Timestamp); err != nil {
			return err
		}
		e.Timestamp = e.Timestamp.UTC()
		if o, ok := byID[orderID]; ok {
			o.ReassignmentHistory = append(o.ReassignmentHistory, e)
		}
	}
	return rows.Err()
}

// GetOrder returns the order with its history or nil when it does not exist.
func (s *Store) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	o, err := scanOrder(s.db.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, apperr.Persistence("get order "+id, err)
	}
	if err := loadHistory(ctx, s.db, o); err != nil {
		return nil, apperr.Persistence("get order history "+id, err)
	}
	return o, nil
}

// GetDriver returns the driver or nil when it does not exist.
func (s *Store) GetDriver(ctx context.Context, id string) (*domain.Driver, error) {
	d, err := scanDriver(s.db.QueryRow(ctx, `SELECT `+driverColumns+` FROM drivers WHERE id = $1`, id))
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, apperr.Persistence("get driver "+id, err)
	}
	return d, nil
}

// ListOrders returns orders whose status is in statuses, oldest first.
// limit <= 0 means no limit.
func (s *Store) ListOrders(ctx context.Context, statuses []domain.OrderStatus, limit int) ([]*domain.Order, error) {
	names := make([]string, 0, len(statuses))
	for _, st := range statuses {
		names = append(names, string(st))
	}

	q := `SELECT ` + orderColumns + ` FROM orders WHERE status = ANY($1) ORDER BY created_at, id`
	args := []any{names}
	if limit > 0 {
		q += " LIMIT $2"
		args = append(args, limit)
	}

	rows, err := s.db.Query(ctx, q, args...)
	if err != nil {
		return nil, apperr.Persistence("list orders", err)
	}
	defer rows.Close()

	out := make([]*domain.Order, 0, max(limit, 0))
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, apperr.Persistence("scan order", err)
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Persistence("list orders", err)
	}
	if err := loadHistory(ctx, s.db, out...); err != nil {
		return nil, apperr.Persistence("list order history", err)
	}
	return out, nil
}

// ListAvailableDrivers returns AVAILABLE drivers. With near set they are
// ordered by planar distance to it, otherwise by id. limit <= 0 means no limit.
func (s *Store) ListAvailableDrivers(ctx context.Context, near *domain.Location, limit int) ([]*domain.Driver, error) {
	q := `SELECT ` + driverColumns + ` FROM drivers WHERE status = $1`
	args := []any{string(domain.DriverAvailable)}
	if near != nil {
		q += ` ORDER BY (lat - $2) * (lat - $2) + (lng - $3) * (lng - $3), id`
		args = append(args, near.Lat, near.Lng)
	} else {
		q += ` ORDER BY id`
	}
	if limit > 0 {
		q += fmt.Sprintf(" LIMIT $%d", len(args)+1)
		args = append(args, limit)
	}

	rows, err := s.db.Query(ctx, q, args...)
	if err != nil {
		return nil, apperr.Persistence("list available drivers", err)
	}
	defer rows.Close()

	out := make([]*domain.Driver, 0, max(limit, 0))
	for rows.Next() {
		d, err := scanDriver(rows)
		if err != nil {
			return nil, apperr.Persistence("scan driver", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Persistence("list available drivers", err)
	}
	return out, nil
}

func activeIDs(d *domain.Driver) []string {
	if d.ActiveOrderIDs == nil {
		return []string{}
	}
	return d.ActiveOrderIDs
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// txAttempts bounds how often WithTx reruns fn after a serialization
// failure or deadlock.
const txAttempts = 3

// WithTx opens a transaction and executes fn within it. fn may run more
// than once.
func (s *Store) WithTx(ctx context.Context, fn func(tx reassigntx.Repository) error) error {
	var err error
	for attempt := 1; attempt <= txAttempts; attempt++ {
		err = s.withTx(ctx, fn)
		if !IsSerialization(err) || ctx.Err() != nil {
			return err
		}
	}
	return err
}

func (s *Store) withTx(ctx context.Context, fn func(tx reassigntx.Repository) error) (err error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return apperr.Persistence("begin tx", err)
	}

	defer func() {
		if p := recover(); p != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				panic(rbErr)
			}
			panic(p)
		}
	}()

	if err := fn(&TxRepo{tx: tx}); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			return apperr.Persistence("rollback tx", fmt.Errorf("%w (original error: %s)", rbErr, err.Error()))
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return apperr.Persistence("commit tx", err)
	}
	return nil
}

// TxRepo is the transaction-scoped repository handed to WithTx callbacks.
type TxRepo struct {
	tx pgx.Tx
}

var _ reassigntx.Repository = (*TxRepo)(nil)

// GetOrderForUpdate locks the order row and loads its history.
func (r *TxRepo) GetOrderForUpdate(ctx context.Context, id string) (*domain.Order, error) {
	o, err := scanOrder(r.tx.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, apperr.Persistence("lock order "+id, err)
	}
	if err := loadHistory(ctx, r.tx, o); err != nil {
		return nil, apperr.Persistence("load order history "+id, err)
	}
	return o, nil
}

// GetDriversForUpdate locks the driver rows in ascending id order.
func (r *TxRepo) GetDriversForUpdate(ctx context.Context, ids ...string) (map[string]*domain.Driver, error) {
	sorted := slices.Clone(ids)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)

	rows, err := r.tx.Query(ctx, `
        SELECT `+driverColumns+`
        FROM drivers
        WHERE id = ANY($1)
        ORDER BY id
        FOR UPDATE
    `, sorted)
	if err != nil {
		return nil, apperr.Persistence("lock drivers", err)
	}
	defer rows.Close()

	out := make(map[string]*domain.Driver, len(sorted))
	for rows.Next() {
		d, err := scanDriver(rows)
		if err != nil {
			return nil, apperr.Persistence("scan driver", err)
		}
		out[d.ID] = d
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Persistence("lock drivers", err)
	}
	return out, nil
}

// InsertOrder inserts a new order row.
func (r *TxRepo) InsertOrder(ctx context.Context, o *domain.Order) error {
	_, err := r.tx.Exec(ctx, `
        INSERT INTO orders (id, service_class, created_at, status, assigned_driver_id,
            pickup_lat, pickup_lng, delivery_lat, delivery_lng, at_risk_since)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
    `, o.ID, string(o.ServiceClass), o.CreatedAt, string(o.Status), nullable(o.AssignedDriverID),
		o.PickupLocation.Lat, o.PickupLocation.Lng, o.DeliveryLocation.Lat, o.DeliveryLocation.Lng, o.AtRiskSince)
	if err != nil {
		if IsDuplicate(err) {
			return fmt.Errorf("order %s: %w", o.ID, apperr.ErrConflict)
		}
		return apperr.Persistence("insert order "+o.ID, err)
	}
	return nil
}

// SaveOrder updates the mutable order columns. History is written only by AppendHistory.
func (r *TxRepo) SaveOrder(ctx context.Context, o *domain.Order) error {
	ct, err := r.tx.Exec(ctx, `
        UPDATE orders
        SET status = $2, assigned_driver_id = $3, at_risk_since = $4, updated_at = now()
        WHERE id = $1
    `, o.ID, string(o.Status), nullable(o.AssignedDriverID), o.AtRiskSince)
	if err != nil {
		return apperr.Persistence("update order "+o.ID, err)
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("order %s: %w", o.ID, apperr.ErrNotFound)
	}
	return nil
}

// SaveDriver updates the mutable driver columns.
func (r *TxRepo) SaveDriver(ctx context.Context, d *domain.Driver) error {
	ct, err := r.tx.Exec(ctx, `
        UPDATE drivers
        SET status = $2, active_order_ids = $3, daily_delivery_count = $4,
            consecutive_deliveries = $5, updated_at = now()
        WHERE id = $1
    `, d.ID, string(d.Status), activeIDs(d), d.DailyDeliveryCount, d.ConsecutiveDeliveries)
	if err != nil {
		return apperr.Persistence("update driver "+d.ID, err)
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("driver %s: %w", d.ID, apperr.ErrNotFound)
	}
	return nil
}

// UpsertDriver inserts the driver row or overwrites every column of an
// existing one.
func (r *TxRepo) UpsertDriver(ctx context.Context, d *domain.Driver) error {
	_, err := r.tx.Exec(ctx, `
        INSERT INTO drivers (id, name, status, lat, lng, active_order_ids,
            daily_delivery_count, daily_target_count, on_time_rate, consecutive_deliveries)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
        ON CONFLICT (id) DO UPDATE SET
            name = EXCLUDED.name,
            status = EXCLUDED.status,
            lat = EXCLUDED.lat,
            lng = EXCLUDED.lng,
            active_order_ids = EXCLUDED.active_order_ids,
            daily_delivery_count = EXCLUDED.daily_delivery_count,
            daily_target_count = EXCLUDED.daily_target_count,
            on_time_rate = EXCLUDED.on_time_rate,
            consecutive_deliveries = EXCLUDED.consecutive_deliveries,
            updated_at = now()
    `, d.ID, d.Name, string(d.Status), d.CurrentLocation.Lat, d.CurrentLocation.Lng, activeIDs(d),
		d.DailyDeliveryCount, d.DailyTargetCount, d.OnTimeRate, d.ConsecutiveDeliveries)
	if err != nil {
		return apperr.Persistence("upsert driver "+d.ID, err)
	}
	return nil
}

// AppendHistory adds e as the next history entry of the order.
func (r *TxRepo) AppendHistory(ctx context.Context, orderID string, e domain.ReassignmentEntry) error {
	_, err := r.tx.Exec(ctx, `
        INSERT INTO order_reassignments (order_id, seq, from_driver_id, to_driver_id, reason, created_at)
        VALUES ($1,
            (SELECT COALESCE(MAX(seq), -1) + 1 FROM order_reassignments WHERE order_id = $1),
            $2, $3, $4, $5)
    `, orderID, e.FromDriverID, e.ToDriverID, e.Reason, e.Timestamp)
	if err != nil {
		return apperr.Persistence("append history "+orderID, err)
	}
	return nil
}
