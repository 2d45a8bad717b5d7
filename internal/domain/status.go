package domain

// List of possible order statuses
const (
	OrderPending    OrderStatus = "PENDING"
	OrderAssigned   OrderStatus = "ASSIGNED"
	OrderInTransit  OrderStatus = "IN_TRANSIT"
	OrderAtRisk     OrderStatus = "AT_RISK"
	OrderReassigned OrderStatus = "REASSIGNED"
	OrderCompleted  OrderStatus = "COMPLETED"
	OrderBreached   OrderStatus = "BREACHED"
	OrderCancelled  OrderStatus = "CANCELLED"
)

// List of possible driver statuses
const (
	DriverOffline   DriverStatus = "OFFLINE"
	DriverAvailable DriverStatus = "AVAILABLE"
	DriverBusy      DriverStatus = "BUSY"
	DriverReturning DriverStatus = "RETURNING"
	DriverOnBreak   DriverStatus = "ON_BREAK"
)

// List of built-in service classes
const (
	ServiceExpress  ServiceClass = "EXPRESS"
	ServiceStandard ServiceClass = "STANDARD"
)

var allowedOrderStatuses = [...]OrderStatus{
	OrderPending, OrderAssigned, OrderInTransit, OrderAtRisk,
	OrderReassigned, OrderCompleted, OrderBreached, OrderCancelled,
}

var allowedDriverStatuses = [...]DriverStatus{
	DriverOffline, DriverAvailable, DriverBusy, DriverReturning, DriverOnBreak,
}

// MonitoredStatuses are the statuses the monitor loop fetches every cycle.
var MonitoredStatuses = []OrderStatus{
	OrderAssigned, OrderInTransit, OrderAtRisk, OrderReassigned,
}

// Valid checks if the OrderStatus is valid
func (s OrderStatus) Valid() bool {
	for _, v := range allowedOrderStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// Valid checks if the DriverStatus is valid
func (s DriverStatus) Valid() bool {
	for _, v := range allowedDriverStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// Terminal reports whether no further SLA processing happens for the status.
func (s OrderStatus) Terminal() bool {
	switch s {
	case OrderCompleted, OrderBreached, OrderCancelled:
		return true
	default:
		return false
	}
}

// RequiresDriver reports whether an order in this status must have an assigned driver.
func (s OrderStatus) RequiresDriver() bool {
	switch s {
	case OrderAssigned, OrderInTransit, OrderAtRisk:
		return true
	default:
		return false
	}
}
