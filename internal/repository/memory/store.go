// Package memory is an in-process order store and driver registry. It
// implements the same transactional contract as the PostgreSQL repository
// and backs the service when STORE_DRIVER=memory and in tests.
package memory

import (
	"context"
	"slices"
	"sort"
	"sync"

	"service-sla-guard/internal/apperr"
	"service-sla-guard/internal/domain"
	"service-sla-guard/internal/ports/reassigntx"
	"service-sla-guard/internal/routing"
)

// Store keeps orders and drivers in maps. Transactions hold the write lock
// for their whole duration and stage writes until commit.
type Store struct {
	mu      sync.RWMutex
	orders  map[string]*domain.Order
	drivers map[string]*domain.Driver

	// failWith, when set, makes every call fail; used to simulate an outage.
	failWith error
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		orders:  make(map[string]*domain.Order),
		drivers: make(map[string]*domain.Driver),
	}
}

// SetUnavailable makes every following call fail with err (nil heals the store).
func (s *Store) SetUnavailable(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failWith = err
}

func (s *Store) check(op string) error {
	if s.failWith != nil {
		return apperr.Persistence(op, s.failWith)
	}
	return nil
}

// PutOrder inserts or replaces an order, history included.
func (s *Store) PutOrder(o *domain.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders[o.ID] = o.Clone()
}

// PutDriver inserts or replaces a driver.
func (s *Store) PutDriver(d *domain.Driver) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.drivers[d.ID] = d.Clone()
}

// GetOrder returns a copy of the order or nil when it does not exist.
func (s *Store) GetOrder(_ context.Context, id string) (*domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check("get order"); err != nil {
		return nil, err
	}
	return s.orders[id].Clone(), nil
}

// GetDriver returns a copy of the driver or nil when it does not exist.
func (s *Store) GetDriver(_ context.Context, id string) (*domain.Driver, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check("get driver"); err != nil {
		return nil, err
	}
	return s.drivers[id].Clone(), nil
}

// ListOrders returns orders whose status is in statuses, ordered by
// creation time then id. limit <= 0 means no limit.
func (s *Store) ListOrders(_ context.Context, statuses []domain.OrderStatus, limit int) ([]*domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check("list orders"); err != nil {
		return nil, err
	}

	out := make([]*domain.Order, 0)
	for _, o := range s.orders {
		if slices.Contains(statuses, o.Status) {
			out = append(out, o.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ListAvailableDrivers returns AVAILABLE drivers. With near set they are
// ordered by straight-line distance, otherwise by id. limit <= 0 means no limit.
func (s *Store) ListAvailableDrivers(_ context.Context, near *domain.Location, limit int) ([]*domain.Driver, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check("list available drivers"); err != nil {
		return nil, err
	}

	out := make([]*domain.Driver, 0)
	for _, d := range s.drivers {
		if d.Status == domain.DriverAvailable {
			out = append(out, d.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if near != nil {
			di := routing.HaversineMeters(out[i].CurrentLocation, *near)
			dj := routing.HaversineMeters(out[j].CurrentLocation, *near)
			if di != dj {
				return di < dj
			}
		}
		return out[i].ID < out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// WithTx runs fn against staged copies and commits them if fn returns nil.
func (s *Store) WithTx(ctx context.Context, fn func(tx reassigntx.Repository) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("begin tx"); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	tx := &txRepo{
		s:       s,
		orders:  make(map[string]*domain.Order),
		drivers: make(map[string]*domain.Driver),
		history: make(map[string][]domain.ReassignmentEntry),
	}
	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	for id, o := range tx.orders {
		cur, ok := s.orders[id]
		next := o.Clone()
		if ok {
			next.ReassignmentHistory = slices.Clone(cur.ReassignmentHistory)
		} else {
			next.ReassignmentHistory = nil
		}
		s.orders[id] = next
	}
	for id, entries := range tx.history {
		if o, ok := s.orders[id]; ok {
			o.ReassignmentHistory = append(o.ReassignmentHistory, entries...)
		}
	}
	for id, d := range tx.drivers {
		s.drivers[id] = d.Clone()
	}
	return nil
}

type txRepo struct {
	s       *Store
	orders  map[string]*domain.Order
	drivers map[string]*domain.Driver
	history map[string][]domain.ReassignmentEntry
}

var _ reassigntx.Repository = (*txRepo)(nil)

func (t *txRepo) GetOrderForUpdate(_ context.Context, id string) (*domain.Order, error) {
	if o, ok := t.orders[id]; ok {
		cp := o.Clone()
		cp.ReassignmentHistory = append(t.committedHistory(id), t.history[id]...)
		return cp, nil
	}
	o, ok := t.s.orders[id]
	if !ok {
		return nil, nil
	}
	cp := o.Clone()
	cp.ReassignmentHistory = append(cp.ReassignmentHistory, t.history[id]...)
	return cp, nil
}

func (t *txRepo) committedHistory(id string) []domain.ReassignmentEntry {
	if o, ok := t.s.orders[id]; ok {
		return slices.Clone(o.ReassignmentHistory)
	}
	return nil
}

func (t *txRepo) GetDriversForUpdate(_ context.Context, ids ...string) (map[string]*domain.Driver, error) {
	out := make(map[string]*domain.Driver, len(ids))
	for _, id := range ids {
		if d, ok := t.drivers[id]; ok {
			out[id] = d.Clone()
			continue
		}
		if d, ok := t.s.drivers[id]; ok {
			out[id] = d.Clone()
		}
	}
	return out, nil
}

func (t *txRepo) InsertOrder(_ context.Context, o *domain.Order) error {
	if _, ok := t.s.orders[o.ID]; ok {
		return apperr.ErrConflict
	}
	if _, ok := t.orders[o.ID]; ok {
		return apperr.ErrConflict
	}
	t.orders[o.ID] = o.Clone()
	return nil
}

// SaveOrder stages every field except the history, which only grows
// through AppendHistory.
func (t *txRepo) SaveOrder(_ context.Context, o *domain.Order) error {
	if _, ok := t.s.orders[o.ID]; !ok {
		if _, staged := t.orders[o.ID]; !staged {
			return apperr.ErrNotFound
		}
	}
	t.orders[o.ID] = o.Clone()
	return nil
}

func (t *txRepo) SaveDriver(_ context.Context, d *domain.Driver) error {
	if _, ok := t.s.drivers[d.ID]; !ok {
		return apperr.ErrNotFound
	}
	t.drivers[d.ID] = d.Clone()
	return nil
}

func (t *txRepo) UpsertDriver(_ context.Context, d *domain.Driver) error {
	t.drivers[d.ID] = d.Clone()
	return nil
}

func (t *txRepo) AppendHistory(_ context.Context, orderID string, e domain.ReassignmentEntry) error {
	_, committed := t.s.orders[orderID]
	_, staged := t.orders[orderID]
	if !committed && !staged {
		return apperr.ErrNotFound
	}
	t.history[orderID] = append(t.history[orderID], e)
	return nil
}
