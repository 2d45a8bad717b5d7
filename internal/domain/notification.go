package domain

import "time"

// NotificationKind identifies what an outgoing alert is about.
type NotificationKind string

// List of notification kinds
const (
	NotifyWarning    NotificationKind = "WARNING"
	NotifyReassigned NotificationKind = "REASSIGNED"
	NotifyEscalation NotificationKind = "ESCALATION"
	NotifyBreach     NotificationKind = "BREACH"
)

// Recipient identifies who a notification is addressed to.
type Recipient string

// List of recipients
const (
	RecipientDriver   Recipient = "driver"
	RecipientCustomer Recipient = "customer"
	RecipientOps      Recipient = "ops"
)

// Notification is a single alert handed to the notification sink.
type Notification struct {
	ID        string           `json:"id"`
	Kind      NotificationKind `json:"kind"`
	Recipient Recipient        `json:"recipient"`
	OrderID   string           `json:"order_id"`
	DriverID  string           `json:"driver_id,omitempty"`
	Tier      string           `json:"tier,omitempty"`
	Message   string           `json:"message"`
	Penalty   float64          `json:"penalty,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
}
