package domain

// RiskTier classifies how close an order is to breaching its SLA.
type RiskTier int

// Risk tiers in escalation order.
const (
	TierSafe RiskTier = iota
	TierWarning
	TierCritical
	TierBreached
)

func (t RiskTier) String() string {
	switch t {
	case TierSafe:
		return "SAFE"
	case TierWarning:
		return "WARNING"
	case TierCritical:
		return "CRITICAL"
	case TierBreached:
		return "BREACHED"
	default:
		return "UNKNOWN"
	}
}

// SLAProfile holds the SLA configuration of one service class.
type SLAProfile struct {
	DeadlineMinutes  float64 `yaml:"deadline_minutes" json:"deadline_minutes"`
	PenaltyPerMinute float64 `yaml:"penalty_per_minute" json:"penalty_per_minute"`
	WarningRatio     float64 `yaml:"warning_ratio" json:"warning_ratio"`
	CriticalRatio    float64 `yaml:"critical_ratio" json:"critical_ratio"`
}

// Default threshold ratios applied when a profile leaves them unset.
const (
	DefaultWarningRatio  = 0.75
	DefaultCriticalRatio = 0.90
)

// WithDefaults fills zero threshold ratios with the defaults.
func (p SLAProfile) WithDefaults() SLAProfile {
	if p.WarningRatio == 0 {
		p.WarningRatio = DefaultWarningRatio
	}
	if p.CriticalRatio == 0 {
		p.CriticalRatio = DefaultCriticalRatio
	}
	return p
}

// Valid reports whether the profile can be used for evaluation.
func (p SLAProfile) Valid() bool {
	return p.DeadlineMinutes > 0 &&
		p.PenaltyPerMinute >= 0 &&
		p.WarningRatio > 0 &&
		p.WarningRatio < p.CriticalRatio &&
		p.CriticalRatio < 1
}
