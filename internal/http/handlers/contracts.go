package handlers

import (
	"context"

	"service-sla-guard/internal/domain"
	"service-sla-guard/internal/service/monitor"
)

type cycleUsecase interface {
	RunCycleOnce(ctx context.Context) (domain.CycleSummary, error)
	LastCycle() (domain.CycleSummary, bool)
	Escalations(ctx context.Context) ([]monitor.Escalation, error)
	Status(ctx context.Context) (domain.SLAStatus, error)
}

type orderUsecase interface {
	GetOrder(ctx context.Context, id string) (*domain.Order, error)
}

type reassignUsecase interface {
	ReassignManually(ctx context.Context, orderID, toDriverID, reason string) (domain.ReassignmentRecord, error)
}

type driverReader interface {
	GetDriver(ctx context.Context, id string) (*domain.Driver, error)
}

type driverWriter interface {
	UpdateDriver(ctx context.Context, d *domain.Driver) (*domain.Driver, error)
}
