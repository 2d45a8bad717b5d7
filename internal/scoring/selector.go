// Package scoring ranks replacement drivers for an at-risk order.
package scoring

import (
	"fmt"
	"math"
	"sort"
	"time"

	"service-sla-guard/internal/apperr"
	"service-sla-guard/internal/domain"
	"service-sla-guard/internal/routing"
)

// scores closer than this are treated as equal so ties resolve by id
const tieEpsilon = 1e-9

// Weights are the factors of the weighted driver score.
type Weights struct {
	Distance    float64
	Performance float64
	Load        float64
	TargetGap   float64
}

// DefaultWeights returns 0.4 / 0.3 / 0.2 / 0.1.
func DefaultWeights() Weights {
	return Weights{Distance: 0.4, Performance: 0.3, Load: 0.2, TargetGap: 0.1}
}

// Config configures a Selector.
type Config struct {
	Weights             Weights
	MaxConcurrentOrders int
	// MaxConsecutiveDeliveries excludes drivers due a mandatory break. Zero disables the check.
	MaxConsecutiveDeliveries int
}

// Candidate is a driver with its distance to the order's pickup point.
type Candidate struct {
	Driver         *domain.Driver
	DistanceMeters float64
}

// Breakdown holds the normalized sub-scores and the weighted total.
type Breakdown struct {
	Distance    float64 `json:"distance"`
	Performance float64 `json:"performance"`
	Load        float64 `json:"load"`
	TargetGap   float64 `json:"target_gap"`
	Total       float64 `json:"total"`
}

// Scored is one ranked candidate.
type Scored struct {
	Driver *domain.Driver
	Score  Breakdown
}

// Decision is the result of a successful selection.
type Decision struct {
	Driver      *domain.Driver
	Score       Breakdown
	PoolSize    int
	EvaluatedAt time.Time
	// Ranked is the whole eligible pool, best first.
	Ranked []Scored
}

// Selector scores candidates. It is read-only and safe for concurrent use.
type Selector struct {
	cfg Config
}

// NewSelector validates cfg.
func NewSelector(cfg Config) (*Selector, error) {
	w := cfg.Weights
	if w.Distance < 0 || w.Performance < 0 || w.Load < 0 || w.TargetGap < 0 {
		return nil, fmt.Errorf("scoring: negative weight: %w", apperr.ErrInvalid)
	}
	if w.Distance+w.Performance+w.Load+w.TargetGap <= 0 {
		return nil, fmt.Errorf("scoring: weights sum to zero: %w", apperr.ErrInvalid)
	}
	if cfg.MaxConcurrentOrders <= 0 {
		return nil, fmt.Errorf("scoring: max concurrent orders must be positive: %w", apperr.ErrInvalid)
	}
	if cfg.MaxConsecutiveDeliveries < 0 {
		return nil, fmt.Errorf("scoring: negative consecutive delivery limit: %w", apperr.ErrInvalid)
	}
	return &Selector{cfg: cfg}, nil
}

// Eligible reports whether d may take over o.
func (s *Selector) Eligible(o *domain.Order, d *domain.Driver) bool {
	if d == nil || d.Status != domain.DriverAvailable {
		return false
	}
	if d.ID == o.AssignedDriverID || d.Serves(o.ID) {
		return false
	}
	if d.Load() >= s.cfg.MaxConcurrentOrders {
		return false
	}
	if s.cfg.MaxConsecutiveDeliveries > 0 && d.ConsecutiveDeliveries >= s.cfg.MaxConsecutiveDeliveries {
		return false
	}
	return true
}

// Filter returns the drivers that may take over o, preserving order.
func (s *Selector) Filter(o *domain.Order, drivers []*domain.Driver) []*domain.Driver {
	out := make([]*domain.Driver, 0, len(drivers))
	for _, d := range drivers {
		if s.Eligible(o, d) {
			out = append(out, d)
		}
	}
	return out
}

// Rank scores the eligible candidates and sorts them best first,
// ties broken by lowest driver id.
func (s *Selector) Rank(o *domain.Order, candidates []Candidate) []Scored {
	pool := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		if s.Eligible(o, c.Driver) {
			pool = append(pool, c)
		}
	}
	if len(pool) == 0 {
		return nil
	}

	var maxDist float64
	maxGap := 0
	for _, c := range pool {
		maxDist = math.Max(maxDist, sanitizeDistance(c.DistanceMeters))
		if g := targetGap(c.Driver); g > maxGap {
			maxGap = g
		}
	}

	out := make([]Scored, 0, len(pool))
	for _, c := range pool {
		out = append(out, Scored{Driver: c.Driver, Score: s.score(c, maxDist, maxGap)})
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if math.Abs(a.Score.Total-b.Score.Total) > tieEpsilon {
			return a.Score.Total > b.Score.Total
		}
		return a.Driver.ID < b.Driver.ID
	})
	return out
}

// Select picks the best candidate. ok is false when no candidate passes filtering.
func (s *Selector) Select(o *domain.Order, candidates []Candidate, now time.Time) (Decision, bool) {
	ranked := s.Rank(o, candidates)
	if len(ranked) == 0 {
		return Decision{}, false
	}
	return Decision{
		Driver:      ranked[0].Driver,
		Score:       ranked[0].Score,
		PoolSize:    len(ranked),
		EvaluatedAt: now,
		Ranked:      ranked,
	}, true
}

// SelectReplacement scores drivers by straight-line distance to the pickup point.
func (s *Selector) SelectReplacement(o *domain.Order, drivers []*domain.Driver, now time.Time) (Decision, bool) {
	candidates := make([]Candidate, 0, len(drivers))
	for _, d := range drivers {
		if d == nil {
			continue
		}
		candidates = append(candidates, Candidate{
			Driver:         d,
			DistanceMeters: routing.HaversineMeters(d.CurrentLocation, o.PickupLocation),
		})
	}
	return s.Select(o, candidates, now)
}

func (s *Selector) score(c Candidate, maxDist float64, maxGap int) Breakdown {
	b := Breakdown{
		Distance:    distanceScore(sanitizeDistance(c.DistanceMeters), maxDist),
		Performance: clamp01(c.Driver.OnTimeRate),
		Load:        clamp01(1 - float64(c.Driver.Load())/float64(s.cfg.MaxConcurrentOrders)),
		TargetGap:   gapScore(targetGap(c.Driver), maxGap),
	}
	w := s.cfg.Weights
	b.Total = w.Distance*b.Distance +
		w.Performance*b.Performance +
		w.Load*b.Load +
		w.TargetGap*b.TargetGap
	return b
}

// The farthest candidate scores 0, a candidate at the pickup point scores 1.
func distanceScore(d, maxDist float64) float64 {
	if maxDist <= 0 {
		return 1
	}
	return clamp01(1 - d/maxDist)
}

func gapScore(gap, maxGap int) float64 {
	if maxGap <= 0 {
		return 0
	}
	return clamp01(float64(gap) / float64(maxGap))
}

func targetGap(d *domain.Driver) int {
	if gap := d.DailyTargetCount - d.DailyDeliveryCount; gap > 0 {
		return gap
	}
	return 0
}

// unknown distances rank as far away as possible
func sanitizeDistance(d float64) float64 {
	if math.IsNaN(d) || math.IsInf(d, 1) {
		return math.MaxFloat64 / 2
	}
	if d < 0 {
		return 0
	}
	return d
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
