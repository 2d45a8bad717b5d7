package domain

import "slices"

// DriverStatus represents the status of a driver.
type DriverStatus string

// Driver represents a fleet driver as seen by the reassignment engine.
type Driver struct {
	ID                    string
	Name                  string
	Status                DriverStatus
	CurrentLocation       Location
	ActiveOrderIDs        []string
	DailyDeliveryCount    int
	DailyTargetCount      int
	OnTimeRate            float64
	ConsecutiveDeliveries int
}

// Load returns the number of orders the driver currently serves.
func (d *Driver) Load() int { return len(d.ActiveOrderIDs) }

// Serves reports whether orderID is in the driver's active set.
func (d *Driver) Serves(orderID string) bool {
	return slices.Contains(d.ActiveOrderIDs, orderID)
}

// AddOrder puts orderID into the active set. Duplicates are ignored.
func (d *Driver) AddOrder(orderID string) {
	if d.Serves(orderID) {
		return
	}
	d.ActiveOrderIDs = append(d.ActiveOrderIDs, orderID)
}

// RemoveOrder drops orderID from the active set and reports whether it was present.
func (d *Driver) RemoveOrder(orderID string) bool {
	i := slices.Index(d.ActiveOrderIDs, orderID)
	if i < 0 {
		return false
	}
	d.ActiveOrderIDs = slices.Delete(d.ActiveOrderIDs, i, i+1)
	return true
}

// Clone returns a deep copy of the driver.
func (d *Driver) Clone() *Driver {
	if d == nil {
		return nil
	}
	cp := *d
	cp.ActiveOrderIDs = slices.Clone(d.ActiveOrderIDs)
	return &cp
}
