package kafka

import (
	"strings"
	"time"

	"service-sla-guard/internal/domain"
	"service-sla-guard/internal/service/orders"
)

// LocationDTO is a point on the wire.
type LocationDTO struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// EventDTO is a data transfer object for orders.Event
type EventDTO struct {
	OrderID          string       `json:"order_id"`
	Status           string       `json:"status"`
	CreatedAt        time.Time    `json:"created_at"`
	ServiceClass     string       `json:"service_class,omitempty"`
	DriverID         string       `json:"driver_id,omitempty"`
	PickupLocation   *LocationDTO `json:"pickup_location,omitempty"`
	DeliveryLocation *LocationDTO `json:"delivery_location,omitempty"`
}

// ToDomain converts EventDTO to orders.Event
func ToDomain(dto EventDTO) orders.Event {
	return orders.Event{
		OrderID:          strings.TrimSpace(dto.OrderID),
		Status:           strings.TrimSpace(dto.Status),
		CreatedAt:        dto.CreatedAt,
		ServiceClass:     domain.ServiceClass(strings.ToUpper(strings.TrimSpace(dto.ServiceClass))),
		DriverID:         strings.TrimSpace(dto.DriverID),
		PickupLocation:   dto.PickupLocation.toDomain(),
		DeliveryLocation: dto.DeliveryLocation.toDomain(),
	}
}

func (l *LocationDTO) toDomain() domain.Location {
	if l == nil {
		return domain.Location{}
	}
	return domain.Location{Lat: l.Lat, Lng: l.Lng}
}
