package orders

import (
	"time"

	"service-sla-guard/internal/domain"
)

// Event is a single order lifecycle event. The order snapshot fields are
// only read for "assigned" events.
type Event struct {
	OrderID          string
	Status           string
	CreatedAt        time.Time
	ServiceClass     domain.ServiceClass
	DriverID         string
	PickupLocation   domain.Location
	DeliveryLocation domain.Location
}

// Order builds the order an "assigned" event describes.
func (e Event) Order() *domain.Order {
	return &domain.Order{
		ID:               e.OrderID,
		ServiceClass:     e.ServiceClass,
		CreatedAt:        e.CreatedAt.UTC(),
		AssignedDriverID: e.DriverID,
		PickupLocation:   e.PickupLocation,
		DeliveryLocation: e.DeliveryLocation,
	}
}
