package handlers

import (
	"time"

	"service-sla-guard/internal/domain"
)

type locationDTO struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type historyEntryDTO struct {
	FromDriverID string    `json:"from_driver_id,omitempty"`
	ToDriverID   string    `json:"to_driver_id"`
	Reason       string    `json:"reason"`
	Timestamp    time.Time `json:"timestamp"`
}

type orderDTO struct {
	ID                  string              `json:"id"`
	ServiceClass        domain.ServiceClass `json:"service_class"`
	Status              domain.OrderStatus  `json:"status"`
	CreatedAt           time.Time           `json:"created_at"`
	AssignedDriverID    string              `json:"assigned_driver_id,omitempty"`
	PickupLocation      locationDTO         `json:"pickup_location"`
	DeliveryLocation    locationDTO         `json:"delivery_location"`
	AtRiskSince         *time.Time          `json:"at_risk_since,omitempty"`
	ReassignmentHistory []historyEntryDTO   `json:"reassignment_history"`
}

type cycleDTO struct {
	StartedAt     time.Time `json:"started_at"`
	DurationMS    int64     `json:"duration_ms"`
	Evaluated     int       `json:"orders_evaluated"`
	AtRisk        int       `json:"at_risk"`
	Reassignments int       `json:"reassignments"`
	Escalations   int       `json:"escalations"`
	Breaches      int       `json:"breaches"`
	Failures      int       `json:"failures"`
	DeadlineHit   bool      `json:"deadline_hit"`
}

type statusDTO struct {
	Status              string         `json:"status"`
	ActiveDeliveries    int            `json:"active_deliveries"`
	AtRisk              int            `json:"at_risk"`
	Breached            int            `json:"breached"`
	ByTier              map[string]int `json:"by_tier"`
	Unevaluable         int            `json:"unevaluable,omitempty"`
	AvgElapsedMinutes   float64        `json:"avg_elapsed_minutes"`
	MinRemainingMinutes float64        `json:"min_remaining_minutes"`
	Timestamp           time.Time      `json:"timestamp"`
}

type escalationDTO struct {
	Order         orderDTO   `json:"order"`
	Reason        string     `json:"reason,omitempty"`
	Attempts      int        `json:"attempts"`
	EscalatedAt   *time.Time `json:"escalated_at,omitempty"`
	LastAttemptAt *time.Time `json:"last_attempt_at,omitempty"`
}

type reassignRequest struct {
	ToDriverID string `json:"to_driver_id"`
	Reason     string `json:"reason,omitempty"`
}

type reassignmentDTO struct {
	ID           string    `json:"id"`
	OrderID      string    `json:"order_id"`
	FromDriverID string    `json:"from_driver_id,omitempty"`
	ToDriverID   string    `json:"to_driver_id"`
	Reason       string    `json:"reason"`
	Timestamp    time.Time `json:"timestamp"`
	HistoryIndex int       `json:"history_index"`
}

type driverDTO struct {
	ID                    string              `json:"id"`
	Name                  string              `json:"name,omitempty"`
	Status                domain.DriverStatus `json:"status"`
	CurrentLocation       locationDTO         `json:"current_location"`
	ActiveOrderIDs        []string            `json:"active_order_ids"`
	DailyDeliveryCount    int                 `json:"daily_delivery_count"`
	DailyTargetCount      int                 `json:"daily_target_count"`
	OnTimeRate            float64             `json:"on_time_rate"`
	ConsecutiveDeliveries int                 `json:"consecutive_deliveries"`
}

type driverRequest struct {
	Name             string              `json:"name,omitempty"`
	Status           domain.DriverStatus `json:"status"`
	CurrentLocation  locationDTO         `json:"current_location"`
	DailyTargetCount int                 `json:"daily_target_count"`
	OnTimeRate       float64             `json:"on_time_rate"`
}
