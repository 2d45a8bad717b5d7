package domain

import "time"

// CycleSummary records the outcome of one monitor cycle.
type CycleSummary struct {
	StartedAt     time.Time     `json:"started_at"`
	Duration      time.Duration `json:"duration"`
	Evaluated     int           `json:"orders_evaluated"`
	AtRisk        int           `json:"at_risk"`
	Reassignments int           `json:"reassignments"`
	Escalations   int           `json:"escalations"`
	Breaches      int           `json:"breaches"`
	Failures      int           `json:"failures"`
	DeadlineHit   bool          `json:"deadline_hit"`
}

// Monitor states reported by SLAStatus.
const (
	StatusIdle   = "idle"
	StatusActive = "active"
)

// SLAStatus is a point-in-time view of every monitored order.
type SLAStatus struct {
	State               string
	Active              int
	AtRisk              int
	Breached            int
	ByTier              map[string]int
	Unevaluable         int
	AvgElapsedMinutes   float64
	MinRemainingMinutes float64
	Timestamp           time.Time
}
