package domain

import (
	"slices"
	"time"
)

type (
	// OrderStatus represents the status of an order.
	OrderStatus string
	// ServiceClass selects an SLA profile.
	ServiceClass string
)

// Location is a WGS84 coordinate pair.
type Location struct {
	Lat float64 `json:"lat" yaml:"lat"`
	Lng float64 `json:"lng" yaml:"lng"`
}

// ReassignmentEntry is one hand-off in an order's history.
type ReassignmentEntry struct {
	FromDriverID string    `json:"from_driver_id"`
	ToDriverID   string    `json:"to_driver_id"`
	Reason       string    `json:"reason"`
	Timestamp    time.Time `json:"timestamp"`
}

// Order represents a delivery order monitored against its SLA.
type Order struct {
	ID                  string
	ServiceClass        ServiceClass
	CreatedAt           time.Time
	Status              OrderStatus
	AssignedDriverID    string
	PickupLocation      Location
	DeliveryLocation    Location
	AtRiskSince         *time.Time
	ReassignmentHistory []ReassignmentEntry
}

// HasDriver reports whether the order has a responsible driver.
func (o *Order) HasDriver() bool { return o.AssignedDriverID != "" }

// LastReassignment returns the most recent history entry, if any.
func (o *Order) LastReassignment() (ReassignmentEntry, bool) {
	if len(o.ReassignmentHistory) == 0 {
		return ReassignmentEntry{}, false
	}
	return o.ReassignmentHistory[len(o.ReassignmentHistory)-1], true
}

// Clone returns a deep copy of the order.
func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	cp := *o
	if o.AtRiskSince != nil {
		t := *o.AtRiskSince
		cp.AtRiskSince = &t
	}
	cp.ReassignmentHistory = slices.Clone(o.ReassignmentHistory)
	return &cp
}
