package domain

import "time"

// ReassignmentRecord summarizes a committed hand-off for the audit sink.
type ReassignmentRecord struct {
	ID               string       `json:"id"`
	OrderID          string       `json:"order_id"`
	ServiceClass     ServiceClass `json:"service_class"`
	FromDriverID     string       `json:"from_driver_id"`
	ToDriverID       string       `json:"to_driver_id"`
	Reason           string       `json:"reason"`
	Timestamp        time.Time    `json:"timestamp"`
	HistoryIndex     int          `json:"history_index"`
	PreviousStatus   OrderStatus  `json:"previous_status"`
	FromDriverStatus DriverStatus `json:"from_driver_status"`
}

// TransitionResult describes a status change applied to an order.
type TransitionResult struct {
	OrderID  string
	From     OrderStatus
	To       OrderStatus
	DriverID string
}
