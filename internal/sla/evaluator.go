// Package sla evaluates orders against their service-class deadlines.
package sla

import (
	"fmt"
	"math"
	"strings"
	"time"

	"service-sla-guard/internal/apperr"
	"service-sla-guard/internal/domain"
)

// DefaultProfiles are used when no profile file is configured.
func DefaultProfiles() map[domain.ServiceClass]domain.SLAProfile {
	return map[domain.ServiceClass]domain.SLAProfile{
		domain.ServiceExpress: {
			DeadlineMinutes:  60,
			PenaltyPerMinute: 5,
			WarningRatio:     domain.DefaultWarningRatio,
			CriticalRatio:    domain.DefaultCriticalRatio,
		},
		domain.ServiceStandard: {
			DeadlineMinutes:  240,
			PenaltyPerMinute: 1,
			WarningRatio:     domain.DefaultWarningRatio,
			CriticalRatio:    domain.DefaultCriticalRatio,
		},
	}
}

// Evaluator maps orders to risk tiers. It holds no mutable state and is
// safe for concurrent use.
type Evaluator struct {
	profiles map[domain.ServiceClass]domain.SLAProfile
}

// NewEvaluator validates the profiles and fills unset threshold ratios.
func NewEvaluator(profiles map[domain.ServiceClass]domain.SLAProfile) (*Evaluator, error) {
	if len(profiles) == 0 {
		return nil, fmt.Errorf("sla: no service class profiles: %w", apperr.ErrInvalid)
	}
	out := make(map[domain.ServiceClass]domain.SLAProfile, len(profiles))
	for class, p := range profiles {
		key := normalizeClass(class)
		if key == "" {
			return nil, fmt.Errorf("sla: empty service class name: %w", apperr.ErrInvalid)
		}
		p = p.WithDefaults()
		if !p.Valid() {
			return nil, fmt.Errorf("sla: invalid profile for %s: %w", key, apperr.ErrInvalid)
		}
		out[key] = p
	}
	return &Evaluator{profiles: out}, nil
}

// Profile returns the profile configured for the class.
func (e *Evaluator) Profile(class domain.ServiceClass) (domain.SLAProfile, bool) {
	p, ok := e.profiles[normalizeClass(class)]
	return p, ok
}

// Deadline returns createdAt + deadlineMinutes of the order's class.
func (e *Evaluator) Deadline(o *domain.Order) (time.Time, error) {
	p, err := e.profileFor(o)
	if err != nil {
		return time.Time{}, err
	}
	return o.CreatedAt.Add(minutes(p.DeadlineMinutes)), nil
}

// ElapsedRatio returns (now - createdAt) / deadlineMinutes.
func (e *Evaluator) ElapsedRatio(o *domain.Order, now time.Time) (float64, error) {
	p, err := e.profileFor(o)
	if err != nil {
		return 0, err
	}
	return now.Sub(o.CreatedAt).Minutes() / p.DeadlineMinutes, nil
}

// Evaluate returns the order's risk tier at now.
func (e *Evaluator) Evaluate(o *domain.Order, now time.Time) (domain.RiskTier, error) {
	p, err := e.profileFor(o)
	if err != nil {
		return domain.TierSafe, err
	}
	ratio := now.Sub(o.CreatedAt).Minutes() / p.DeadlineMinutes
	return Classify(ratio, p), nil
}

// Penalty estimates the accrued penalty: minutes past the deadline times
// the class's per-minute penalty. Zero before the deadline.
func (e *Evaluator) Penalty(o *domain.Order, now time.Time) (float64, error) {
	p, err := e.profileFor(o)
	if err != nil {
		return 0, err
	}
	late := now.Sub(o.CreatedAt.Add(minutes(p.DeadlineMinutes))).Minutes()
	if late <= 0 {
		return 0, nil
	}
	return math.Round(late*p.PenaltyPerMinute*100) / 100, nil
}

// Classify maps an elapsed ratio onto a tier. Lower bounds are inclusive.
func Classify(ratio float64, p domain.SLAProfile) domain.RiskTier {
	switch {
	case ratio >= 1:
		return domain.TierBreached
	case ratio >= p.CriticalRatio:
		return domain.TierCritical
	case ratio >= p.WarningRatio:
		return domain.TierWarning
	default:
		return domain.TierSafe
	}
}

func (e *Evaluator) profileFor(o *domain.Order) (domain.SLAProfile, error) {
	if o == nil {
		return domain.SLAProfile{}, fmt.Errorf("nil order: %w", apperr.ErrEvaluation)
	}
	if strings.TrimSpace(o.ID) == "" {
		return domain.SLAProfile{}, fmt.Errorf("order without id: %w", apperr.ErrEvaluation)
	}
	if o.CreatedAt.IsZero() {
		return domain.SLAProfile{}, fmt.Errorf("order %s: missing created_at: %w", o.ID, apperr.ErrEvaluation)
	}
	p, ok := e.profiles[normalizeClass(o.ServiceClass)]
	if !ok {
		return domain.SLAProfile{}, fmt.Errorf("order %s: unknown service class %q: %w",
			o.ID, o.ServiceClass, apperr.ErrEvaluation)
	}
	return p, nil
}

func normalizeClass(c domain.ServiceClass) domain.ServiceClass {
	return domain.ServiceClass(strings.ToUpper(strings.TrimSpace(string(c))))
}

func minutes(m float64) time.Duration {
	return time.Duration(m * float64(time.Minute))
}
