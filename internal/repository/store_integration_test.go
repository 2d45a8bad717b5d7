//go:build integration

package repository_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/suite"

	"service-sla-guard/internal/apperr"
	"service-sla-guard/internal/domain"
	"service-sla-guard/internal/logx"
	"service-sla-guard/internal/ports/reassigntx"
	"service-sla-guard/internal/repository"
	"service-sla-guard/internal/service/reassign"
)

type StoreSuite struct {
	suite.Suite
	pool  *pgxpool.Pool
	store *repository.Store
	audit *repository.AuditRepo
	exec  *reassign.Executor
	now   time.Time
}

func (s *StoreSuite) SetupSuite() {
	s.Require().NotNil(tcPool, "tcPool must be initialized in TestMain")

	s.pool = tcPool
	s.store = repository.NewStore(tcPool)
	s.audit = repository.NewAuditRepo(tcPool)
	s.exec = reassign.NewExecutor(s.store, nil, 3, 5*time.Second, logx.Nop())
	s.now = time.Date(2025, 3, 1, 12, 55, 0, 0, time.UTC)
}

func (s *StoreSuite) SetupTest() {
	ctx := context.Background()
	_, err := s.pool.Exec(ctx, `TRUNCATE order_reassignments, orders, drivers, reassignment_audit CASCADE`)
	s.Require().NoError(err)

	for _, d := range []*domain.Driver{
		{ID: "D-old", Status: domain.DriverBusy, CurrentLocation: domain.Location{Lat: 55.70, Lng: 37.50}},
		{ID: "D1", Status: domain.DriverAvailable, CurrentLocation: domain.Location{Lat: 55.75, Lng: 37.61}, OnTimeRate: 0.9},
		{ID: "D2", Status: domain.DriverAvailable, CurrentLocation: domain.Location{Lat: 55.80, Lng: 37.70}, OnTimeRate: 0.8},
	} {
		_, err := s.exec.UpdateDriver(ctx, d)
		s.Require().NoError(err)
	}
	s.Require().NoError(s.exec.Register(ctx, &domain.Order{
		ID:               "O1",
		ServiceClass:     domain.ServiceExpress,
		CreatedAt:        s.now.Add(-55 * time.Minute),
		AssignedDriverID: "D-old",
		PickupLocation:   domain.Location{Lat: 55.75, Lng: 37.61},
		DeliveryLocation: domain.Location{Lat: 55.76, Lng: 37.64},
	}))
}

func (s *StoreSuite) TestRegisterAndRead() {
	ctx := context.Background()

	o, err := s.store.GetOrder(ctx, "O1")
	s.Require().NoError(err)
	s.Require().NotNil(o)
	s.Equal(domain.OrderAssigned, o.Status)
	s.Equal("D-old", o.AssignedDriverID)
	s.Equal(s.now.Add(-55*time.Minute), o.CreatedAt)
	s.Empty(o.ReassignmentHistory)

	d, err := s.store.GetDriver(ctx, "D-old")
	s.Require().NoError(err)
	s.Equal([]string{"O1"}, d.ActiveOrderIDs)

	missing, err := s.store.GetOrder(ctx, "nope")
	s.Require().NoError(err)
	s.Nil(missing)

	err = s.exec.Register(ctx, &domain.Order{ID: "O1", ServiceClass: domain.ServiceExpress, CreatedAt: s.now})
	s.ErrorIs(err, apperr.ErrConflict)
}

func (s *StoreSuite) TestListOrdersAndDrivers() {
	ctx := context.Background()

	orders, err := s.store.ListOrders(ctx, domain.MonitoredStatuses, 10)
	s.Require().NoError(err)
	s.Require().Len(orders, 1)
	s.Equal("O1", orders[0].ID)

	orders, err = s.store.ListOrders(ctx, []domain.OrderStatus{domain.OrderCompleted}, 0)
	s.Require().NoError(err)
	s.Empty(orders)

	drivers, err := s.store.ListAvailableDrivers(ctx, &domain.Location{Lat: 55.75, Lng: 37.61}, 0)
	s.Require().NoError(err)
	s.Require().Len(drivers, 2)
	s.Equal("D1", drivers[0].ID)
	s.Equal("D2", drivers[1].ID)
}

func (s *StoreSuite) TestReassignCommitsEverything() {
	ctx := context.Background()

	_, err := s.exec.MarkAtRisk(ctx, "O1", s.now)
	s.Require().NoError(err)

	rec, err := s.exec.Reassign(ctx, "O1", "D-old", "D1", "sla_critical", s.now)
	s.Require().NoError(err)
	s.Equal(0, rec.HistoryIndex)

	o, err := s.store.GetOrder(ctx, "O1")
	s.Require().NoError(err)
	s.Equal(domain.OrderReassigned, o.Status)
	s.Equal("D1", o.AssignedDriverID)
	s.Nil(o.AtRiskSince)
	s.Require().Len(o.ReassignmentHistory, 1)
	s.Equal(domain.ReassignmentEntry{FromDriverID: "D-old", ToDriverID: "D1", Reason: "sla_critical", Timestamp: s.now}, o.ReassignmentHistory[0])

	from, err := s.store.GetDriver(ctx, "D-old")
	s.Require().NoError(err)
	s.Empty(from.ActiveOrderIDs)
	s.Equal(domain.DriverAvailable, from.Status)

	to, err := s.store.GetDriver(ctx, "D1")
	s.Require().NoError(err)
	s.Equal([]string{"O1"}, to.ActiveOrderIDs)
	s.Equal(domain.DriverBusy, to.Status)

	s.Require().NoError(s.audit.RecordAudit(ctx, rec))
	s.Require().NoError(s.audit.RecordAudit(ctx, rec))
	records, err := s.audit.ListAudit(ctx, "O1")
	s.Require().NoError(err)
	s.Require().Len(records, 1)
	s.Equal(rec.ToDriverID, records[0].ToDriverID)
}

func (s *StoreSuite) TestFailedPreconditionRollsBack() {
	ctx := context.Background()

	_, err := s.exec.UpdateDriver(ctx, &domain.Driver{ID: "D1", Status: domain.DriverOffline})
	s.Require().NoError(err)
	before, err := s.store.GetOrder(ctx, "O1")
	s.Require().NoError(err)

	_, err = s.exec.Reassign(ctx, "O1", "D-old", "D1", "r", s.now)
	s.ErrorIs(err, apperr.ErrDriverUnavailable)

	after, err := s.store.GetOrder(ctx, "O1")
	s.Require().NoError(err)
	s.Equal(before, after)

	from, err := s.store.GetDriver(ctx, "D-old")
	s.Require().NoError(err)
	s.Equal([]string{"O1"}, from.ActiveOrderIDs)
}

func (s *StoreSuite) TestWriteErrorInsideTxRollsBack() {
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.store.WithTx(ctx, func(tx reassigntx.Repository) error {
		o, err := tx.GetOrderForUpdate(ctx, "O1")
		s.Require().NoError(err)
		o.Status = domain.OrderBreached
		s.Require().NoError(tx.SaveOrder(ctx, o))
		s.Require().NoError(tx.AppendHistory(ctx, "O1", domain.ReassignmentEntry{ToDriverID: "D1", Reason: "x", Timestamp: s.now}))
		return boom
	})
	s.ErrorIs(err, boom)

	o, err := s.store.GetOrder(ctx, "O1")
	s.Require().NoError(err)
	s.Equal(domain.OrderAssigned, o.Status)
	s.Empty(o.ReassignmentHistory)
}

func (s *StoreSuite) TestHistoryRowsAreAppendOnly() {
	ctx := context.Background()

	_, err := s.exec.Reassign(ctx, "O1", "D-old", "D1", "r", s.now)
	s.Require().NoError(err)

	_, err = s.pool.Exec(ctx, `UPDATE order_reassignments SET reason = 'rewritten'`)
	s.Error(err)
	_, err = s.pool.Exec(ctx, `DELETE FROM order_reassignments`)
	s.Error(err)
}

func (s *StoreSuite) TestConcurrentReassignAcrossExecutors() {
	ctx := context.Background()

	// two executors with separate lock sets: only row locks protect the order
	a := reassign.NewExecutor(s.store, nil, 3, 5*time.Second, logx.Nop())
	b := reassign.NewExecutor(s.store, nil, 3, 5*time.Second, logx.Nop())

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, run := range []func() error{
		func() error { _, err := a.Reassign(ctx, "O1", "D-old", "D1", "race", s.now); return err },
		func() error { _, err := b.Reassign(ctx, "O1", "D-old", "D2", "race", s.now); return err },
	} {
		wg.Add(1)
		go func(i int, run func() error) {
			defer wg.Done()
			errs[i] = run()
		}(i, run)
	}
	wg.Wait()

	var ok, stale int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, apperr.ErrStaleOrderState):
			stale++
		}
	}
	s.Equal(1, ok)
	s.Equal(1, stale)

	o, err := s.store.GetOrder(ctx, "O1")
	s.Require().NoError(err)
	s.Len(o.ReassignmentHistory, 1)
}

func (s *StoreSuite) TestAuditIDsAreUUIDs() {
	rec := domain.ReassignmentRecord{ID: uuid.NewString(), OrderID: "O1", Timestamp: s.now}
	s.Require().NoError(s.audit.RecordAudit(context.Background(), rec))
}

func TestStoreSuite(t *testing.T) {
	suite.Run(t, new(StoreSuite))
}
