// Package monitor runs the periodic SLA cycle: it evaluates every in-flight
// order, flags at-risk orders, reassigns critical ones and escalates what it
// cannot fix.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"service-sla-guard/internal/apperr"
	"service-sla-guard/internal/domain"
	"service-sla-guard/internal/logx"
	"service-sla-guard/internal/routing"
	"service-sla-guard/internal/scoring"
	"service-sla-guard/internal/sla"
)

// ErrCycleInProgress is returned by RunCycleOnce while another cycle runs.
var ErrCycleInProgress = errors.New("monitor: cycle in progress")

// Reasons recorded in reassignment history.
const (
	ReasonCritical = "sla_critical"
	ReasonRecheck  = "sla_at_risk_recheck"
	ReasonManual   = "manual"
)

// Config tunes the monitor loop.
type Config struct {
	PollingInterval time.Duration
	// CycleTimeout is the soft deadline of one cycle. Orders not started
	// before it are left for the next cycle.
	CycleTimeout time.Duration
	// RecheckInterval is how long an order stays AT_RISK before a
	// WARNING-tier reassignment. Escalation notices for one order are sent
	// at most once per interval.
	RecheckInterval time.Duration
	// ReassignCooldown is how long a REASSIGNED order is left alone before
	// it is evaluated for escalation again. Zero re-evaluates it every cycle.
	ReassignCooldown time.Duration
	BatchSize        int
	Workers          int
	CandidateLimit   int
	// ReplacementAttempts is how many ranked drivers are tried in turn when
	// the best one was taken by a concurrent writer.
	ReplacementAttempts int
}

// DefaultConfig returns the production settings.
func DefaultConfig() Config {
	return Config{
		PollingInterval:     10 * time.Second,
		CycleTimeout:        8 * time.Second,
		RecheckInterval:     2 * time.Minute,
		BatchSize:           500,
		Workers:             8,
		CandidateLimit:      50,
		ReplacementAttempts: 3,
	}
}

// Deps are the collaborators of a Monitor.
type Deps struct {
	Orders    OrderStore
	Drivers   DriverRegistry
	Executor  Executor
	Evaluator *sla.Evaluator
	Selector  *scoring.Selector
	Distancer routing.Distancer
	Notifier  Notifier
	Auditor   Auditor
	Observer  Observer
	Clock     Clock
	Logger    logx.Logger
}

// Escalation is an AT_RISK order waiting for operations.
type Escalation struct {
	Order         *domain.Order `json:"-"`
	Reason        string        `json:"reason"`
	EscalatedAt   time.Time     `json:"escalated_at"`
	Attempts      int           `json:"attempts"`
	LastAttemptAt time.Time     `json:"last_attempt_at"`
}

type escalationState struct {
	reason        string
	notifiedAt    time.Time
	firstAt       time.Time
	attempts      int
	lastAttemptAt time.Time
}

// Monitor evaluates in-flight orders against their SLA.
type Monitor struct {
	cfg Config
	d   Deps

	running atomic.Bool

	mu          sync.RWMutex
	last        *domain.CycleSummary
	escalations map[string]*escalationState

	newID func() string
}

// New validates deps and returns a Monitor.
func New(cfg Config, d Deps, newID func() string) (*Monitor, error) {
	if d.Orders == nil || d.Drivers == nil || d.Executor == nil || d.Evaluator == nil || d.Selector == nil {
		return nil, fmt.Errorf("monitor: missing dependency: %w", apperr.ErrInvalid)
	}
	def := DefaultConfig()
	if cfg.PollingInterval <= 0 {
		cfg.PollingInterval = def.PollingInterval
	}
	if cfg.CycleTimeout <= 0 {
		cfg.CycleTimeout = def.CycleTimeout
	}
	if cfg.RecheckInterval < 0 {
		cfg.RecheckInterval = def.RecheckInterval
	}
	if cfg.ReassignCooldown < 0 {
		cfg.ReassignCooldown = def.ReassignCooldown
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}
	if cfg.CandidateLimit <= 0 {
		cfg.CandidateLimit = def.CandidateLimit
	}
	if cfg.ReplacementAttempts <= 0 {
		cfg.ReplacementAttempts = def.ReplacementAttempts
	}
	if d.Distancer == nil {
		d.Distancer = routing.Haversine{}
	}
	if d.Notifier == nil {
		d.Notifier = nopSink{}
	}
	if d.Auditor == nil {
		d.Auditor = nopSink{}
	}
	if d.Observer == nil {
		d.Observer = nopObserver{}
	}
	if d.Clock == nil {
		d.Clock = SystemClock{}
	}
	if d.Logger == nil {
		d.Logger = logx.Nop()
	}
	if newID == nil {
		return nil, fmt.Errorf("monitor: missing id generator: %w", apperr.ErrInvalid)
	}
	return &Monitor{cfg: cfg, d: d, escalations: make(map[string]*escalationState), newID: newID}, nil
}

// Run starts a cycle every polling interval until ctx is done. A tick that
// fires while the previous cycle is still running is skipped.
func (m *Monitor) Run(ctx context.Context) error {
	m.d.Logger.Info("monitor started", logx.Duration("interval", m.cfg.PollingInterval))
	ticker := time.NewTicker(m.cfg.PollingInterval)
	defer ticker.Stop()

	var wg sync.WaitGroup
	defer wg.Wait()

	tick := func() {
		if !m.running.CompareAndSwap(false, true) {
			m.d.Observer.CycleSkipped()
			m.d.Logger.Warn("cycle skipped", logx.String("event", "cycle_skipped"))
			return
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer m.running.Store(false)
			if _, err := m.runCycle(ctx); err != nil && ctx.Err() == nil {
				m.d.Logger.Error("cycle aborted", logx.Err(err))
			}
		}()
	}

	tick()
	for {
		select {
		case <-ctx.Done():
			m.d.Logger.Info("monitor stopped")
			return ctx.Err()
		case <-ticker.C:
			tick()
		}
	}
}

// RunCycleOnce runs a single cycle on demand with the same logic as the
// scheduled loop.
func (m *Monitor) RunCycleOnce(ctx context.Context) (domain.CycleSummary, error) {
	if !m.running.CompareAndSwap(false, true) {
		return domain.CycleSummary{}, ErrCycleInProgress
	}
	defer m.running.Store(false)
	return m.runCycle(ctx)
}

// LastCycle returns the summary of the most recent completed cycle.
func (m *Monitor) LastCycle() (domain.CycleSummary, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.last == nil {
		return domain.CycleSummary{}, false
	}
	return *m.last, true
}

// Escalations returns the AT_RISK orders, oldest first, with what the
// monitor knows about failed attempts on them.
func (m *Monitor) Escalations(ctx context.Context) ([]Escalation, error) {
	orders, err := m.d.Orders.ListOrders(ctx, []domain.OrderStatus{domain.OrderAtRisk}, 0)
	if err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Escalation, 0, len(orders))
	for _, o := range orders {
		e := Escalation{Order: o}
		if st, ok := m.escalations[o.ID]; ok {
			e.Reason = st.reason
			e.EscalatedAt = st.firstAt
			e.Attempts = st.attempts
			e.LastAttemptAt = st.lastAttemptAt
		}
		out = append(out, e)
	}
	return out, nil
}

// Status evaluates every monitored order at the current time without
// changing anything.
func (m *Monitor) Status(ctx context.Context) (domain.SLAStatus, error) {
	now := m.d.Clock.Now()
	st := domain.SLAStatus{State: domain.StatusIdle, ByTier: map[string]int{}, Timestamp: now}

	orders, err := m.d.Orders.ListOrders(ctx, domain.MonitoredStatuses, 0)
	if err != nil {
		return st, err
	}

	var elapsed float64
	var counted int
	for _, o := range orders {
		tier, err := m.d.Evaluator.Evaluate(o, now)
		if err != nil {
			st.Unevaluable++
			continue
		}
		deadline, err := m.d.Evaluator.Deadline(o)
		if err != nil {
			st.Unevaluable++
			continue
		}
		counted++
		st.ByTier[tier.String()]++
		switch tier {
		case domain.TierWarning, domain.TierCritical:
			st.AtRisk++
		case domain.TierBreached:
			st.Breached++
		}
		elapsed += now.Sub(o.CreatedAt).Minutes()
		remaining := deadline.Sub(now).Minutes()
		if counted == 1 || remaining < st.MinRemainingMinutes {
			st.MinRemainingMinutes = remaining
		}
	}
	st.Active = len(orders)
	if counted > 0 {
		st.State = domain.StatusActive
		st.AvgElapsedMinutes = math.Round(elapsed/float64(counted)*100) / 100
		st.MinRemainingMinutes = math.Round(st.MinRemainingMinutes*100) / 100
	}
	return st, nil
}

// outcome is what processing one order did.
type outcome struct {
	atRisk     bool
	reassigned bool
	escalated  bool
	breached   bool
	failed     bool
	// stale: another writer changed the order first
	stale bool
	// skipped: not started before the cycle deadline
	skipped bool
}

func (m *Monitor) runCycle(ctx context.Context) (domain.CycleSummary, error) {
	now := m.d.Clock.Now()
	started := time.Now()
	summary := domain.CycleSummary{StartedAt: now}

	orders, err := m.d.Orders.ListOrders(ctx, domain.MonitoredStatuses, m.cfg.BatchSize)
	if err != nil {
		m.d.Observer.CycleAborted(time.Since(started))
		return summary, fmt.Errorf("list orders: %w", err)
	}

	// The deadline stops new orders from starting. Orders already started
	// run on ctx.
	deadline, cancel := context.WithTimeout(ctx, m.cfg.CycleTimeout)
	defer cancel()

	results := make([]outcome, len(orders))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.cfg.Workers)
	late := func() bool { return deadline.Err() != nil || gctx.Err() != nil }

	for i, o := range orders {
		if late() {
			for j := i; j < len(orders); j++ {
				results[j].skipped = true
			}
			break
		}
		g.Go(func() error {
			if late() {
				results[i].skipped = true
				return nil
			}
			res, err := m.processOrder(gctx, o, now)
			results[i] = res
			if errors.Is(err, apperr.ErrPersistence) {
				return err
			}
			return nil
		})
	}
	err = g.Wait()

	for _, r := range results {
		if r.skipped {
			summary.DeadlineHit = true
			continue
		}
		summary.Evaluated++
		if r.atRisk {
			summary.AtRisk++
		}
		if r.reassigned {
			summary.Reassignments++
		}
		if r.escalated {
			summary.Escalations++
		}
		if r.breached {
			summary.Breaches++
		}
		if r.failed {
			summary.Failures++
		}
	}
	summary.Duration = time.Since(started)
	if errors.Is(deadline.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		summary.DeadlineHit = true
	}

	if err != nil {
		m.d.Observer.CycleAborted(summary.Duration)
		return summary, err
	}

	m.pruneEscalations(orders)
	m.mu.Lock()
	m.last = &summary
	m.mu.Unlock()
	m.d.Observer.CycleCompleted(summary)
	m.d.Logger.Info("cycle completed",
		logx.String("event", "cycle_completed"),
		logx.Duration("duration", summary.Duration),
		logx.Int("evaluated", summary.Evaluated),
		logx.Int("at_risk", summary.AtRisk),
		logx.Int("reassignments", summary.Reassignments),
		logx.Int("escalations", summary.Escalations),
		logx.Int("breaches", summary.Breaches),
		logx.Int("failures", summary.Failures),
		logx.Bool("deadline_hit", summary.DeadlineHit),
	)
	return summary, nil
}

func (m *Monitor) processOrder(ctx context.Context, o *domain.Order, now time.Time) (outcome, error) {
	var res outcome
	log := m.d.Logger.With(logx.String("order_id", o.ID))

	tier, err := m.d.Evaluator.Evaluate(o, now)
	if err != nil {
		res.failed = true
		log.Warn("order evaluation failed", logx.Err(err))
		return res, nil
	}

	switch tier {
	case domain.TierSafe:
		res.atRisk = o.Status == domain.OrderAtRisk
		return res, nil

	case domain.TierBreached:
		return m.breach(ctx, log, o, now)

	case domain.TierWarning:
		switch o.Status {
		case domain.OrderAssigned, domain.OrderInTransit:
			return m.warn(ctx, log, o, tier, now)
		case domain.OrderAtRisk:
			res.atRisk = true
			if !m.elapsed(o.AtRiskSince, now) {
				return res, nil
			}
			return m.reassign(ctx, log, o, ReasonRecheck, now)
		case domain.OrderReassigned:
			if !m.cooledDown(o, now) {
				return res, nil
			}
			return m.warn(ctx, log, o, tier, now)
		}

	case domain.TierCritical:
		switch o.Status {
		case domain.OrderAssigned, domain.OrderInTransit:
		case domain.OrderAtRisk:
			return m.reassign(ctx, log, o, ReasonCritical, now)
		case domain.OrderReassigned:
			if !m.cooledDown(o, now) {
				return res, nil
			}
		default:
			return res, nil
		}
		marked, err := m.warn(ctx, log, o, tier, now)
		if err != nil || marked.failed || marked.stale {
			return marked, err
		}
		o.Status = domain.OrderAtRisk
		next, err := m.reassign(ctx, log, o, ReasonCritical, now)
		next.atRisk = true
		return next, err
	}
	return res, nil
}

// elapsed reports whether the recheck interval has passed since t.
func (m *Monitor) elapsed(t *time.Time, now time.Time) bool {
	return t == nil || !now.Before(t.Add(m.cfg.RecheckInterval))
}

// cooledDown reports whether a REASSIGNED order may be escalated again.
func (m *Monitor) cooledDown(o *domain.Order, now time.Time) bool {
	last, ok := o.LastReassignment()
	if !ok || m.cfg.ReassignCooldown == 0 {
		return true
	}
	return !now.Before(last.Timestamp.Add(m.cfg.ReassignCooldown))
}

// warn marks the order AT_RISK. A WARNING-tier order also gets a warning
// notification; a CRITICAL one goes straight on to reassignment.
func (m *Monitor) warn(ctx context.Context, log logx.Logger, o *domain.Order, tier domain.RiskTier, now time.Time) (outcome, error) {
	var res outcome
	if _, err := m.d.Executor.MarkAtRisk(ctx, o.ID, now); err != nil {
		return m.writeFailed(log, "mark at risk", err)
	}
	res.atRisk = true
	m.d.Observer.Transition(domain.OrderAtRisk)
	log.Info("order at risk",
		logx.String("event", "order_at_risk"),
		logx.String("tier", tier.String()),
		logx.String("driver_id", o.AssignedDriverID),
	)
	if tier == domain.TierWarning {
		m.notify(ctx, log, domain.Notification{
			Kind:      domain.NotifyWarning,
			Recipient: domain.RecipientDriver,
			OrderID:   o.ID,
			DriverID:  o.AssignedDriverID,
			Tier:      tier.String(),
			Message:   "Order is at risk of missing its delivery deadline",
			CreatedAt: now,
		})
	}
	return res, nil
}

func (m *Monitor) breach(ctx context.Context, log logx.Logger, o *domain.Order, now time.Time) (outcome, error) {
	var res outcome
	if _, err := m.d.Executor.MarkBreached(ctx, o.ID, now); err != nil {
		return m.writeFailed(log, "mark breached", err)
	}
	res.breached = true
	m.d.Observer.Transition(domain.OrderBreached)
	m.clearEscalation(o.ID)

	penalty, err := m.d.Evaluator.Penalty(o, now)
	if err != nil {
		log.Warn("penalty estimate failed", logx.Err(err))
	}
	log.Warn("order breached",
		logx.String("event", "order_breached"),
		logx.String("driver_id", o.AssignedDriverID),
		logx.Float64("penalty", penalty),
	)
	m.notify(ctx, log, domain.Notification{
		Kind:      domain.NotifyBreach,
		Recipient: domain.RecipientCustomer,
		OrderID:   o.ID,
		DriverID:  o.AssignedDriverID,
		Tier:      domain.TierBreached.String(),
		Message:   "Delivery deadline has been missed",
		Penalty:   penalty,
		CreatedAt: now,
	})
	return res, nil
}

func (m *Monitor) reassign(ctx context.Context, log logx.Logger, o *domain.Order, reason string, now time.Time) (outcome, error) {
	res := outcome{atRisk: true}

	drivers, err := m.d.Drivers.ListAvailableDrivers(ctx, &o.PickupLocation, m.cfg.CandidateLimit)
	if err != nil {
		res.failed = true
		log.Error("list drivers failed", logx.Err(err))
		return res, err
	}
	decision, ok := m.selectDriver(ctx, log, o, m.d.Selector.Filter(o, drivers), now)
	if !ok {
		m.d.Observer.Reassignment("no_candidate")
		res.escalated = true
		m.escalate(ctx, log, o, apperr.ErrNoCandidate, now)
		return res, nil
	}

	ranked := decision.Ranked
	var lastErr error
	for i, pick := range ranked {
		if i == m.cfg.ReplacementAttempts {
			break
		}
		rec, err := m.d.Executor.Reassign(ctx, o.ID, o.AssignedDriverID, pick.Driver.ID, reason, now)
		if err == nil {
			m.d.Observer.Reassignment("success")
			m.d.Observer.Transition(domain.OrderReassigned)
			m.clearEscalation(o.ID)
			res.reassigned = true
			log.Debug("replacement selected",
				logx.String("to_driver_id", pick.Driver.ID),
				logx.Float64("score", pick.Score.Total),
				logx.Int("rank", i+1),
				logx.Int("pool_size", len(ranked)),
			)
			m.announce(ctx, log, rec, reasonTier(reason), now)
			return res, nil
		}
		lastErr = err

		if !apperr.IsReassignment(err) {
			// the order may still be AT_RISK with nobody working on it
			m.d.Observer.Reassignment("error")
			out, werr := m.writeFailed(log, "reassign", err)
			if out.stale {
				return out, nil
			}
			out.atRisk = true
			out.escalated = true
			m.escalate(ctx, log, o, err, now)
			return out, werr
		}
		m.d.Observer.Reassignment(reassignOutcome(err))
		if !errors.Is(err, apperr.ErrDriverUnavailable) && !errors.Is(err, apperr.ErrCapacityExceeded) {
			break
		}
		log.Debug("candidate taken, trying next",
			logx.String("to_driver_id", pick.Driver.ID),
			logx.Err(err),
		)
	}

	res.escalated = true
	m.escalate(ctx, log, o, lastErr, now)
	return res, nil
}

// ReassignManually hands an order to a driver chosen by an operator. It
// goes through the same executor and emits the same notifications and
// audit record as an automatic reassignment.
func (m *Monitor) ReassignManually(ctx context.Context, orderID, toDriverID, reason string) (domain.ReassignmentRecord, error) {
	o, err := m.d.Orders.GetOrder(ctx, orderID)
	if err != nil {
		return domain.ReassignmentRecord{}, err
	}
	if o == nil {
		return domain.ReassignmentRecord{}, fmt.Errorf("order %s: %w", orderID, apperr.ErrNotFound)
	}
	if strings.TrimSpace(reason) == "" {
		reason = ReasonManual
	}

	now := m.d.Clock.Now()
	log := m.d.Logger.With(logx.String("order_id", o.ID), logx.String("reason", reason))

	rec, err := m.d.Executor.Reassign(ctx, o.ID, o.AssignedDriverID, toDriverID, reason, now)
	if err != nil {
		if apperr.IsReassignment(err) {
			m.d.Observer.Reassignment(reassignOutcome(err))
		}
		log.Warn("manual reassignment rejected", logx.Err(err))
		return domain.ReassignmentRecord{}, err
	}

	m.d.Observer.Reassignment("manual")
	m.d.Observer.Transition(domain.OrderReassigned)
	m.clearEscalation(o.ID)
	m.announce(ctx, log, rec, "", now)
	return rec, nil
}

// announce notifies the previous driver (if any), the new driver and
// operations, then hands the record to the audit sink.
func (m *Monitor) announce(ctx context.Context, log logx.Logger, rec domain.ReassignmentRecord, tier string, now time.Time) {
	base := domain.Notification{
		Kind:      domain.NotifyReassigned,
		OrderID:   rec.OrderID,
		Tier:      tier,
		CreatedAt: now,
	}
	old := base
	old.Recipient, old.DriverID, old.Message = domain.RecipientDriver, rec.FromDriverID, "Order has been handed over to another driver"
	next := base
	next.Recipient, next.DriverID, next.Message = domain.RecipientDriver, rec.ToDriverID, "Order has been assigned to you"
	ops := base
	ops.Recipient, ops.DriverID, ops.Message = domain.RecipientOps, rec.ToDriverID, "Order reassigned to keep its delivery deadline"
	if rec.FromDriverID != "" {
		m.notify(ctx, log, old)
	}
	m.notify(ctx, log, next)
	m.notify(ctx, log, ops)

	if err := m.d.Auditor.RecordAudit(ctx, rec); err != nil {
		log.Error("audit enqueue failed", logx.String("event", "audit_failed"), logx.Err(err))
	}
}

func reasonTier(reason string) string {
	if reason == ReasonRecheck {
		return domain.TierWarning.String()
	}
	return domain.TierCritical.String()
}

func reassignOutcome(err error) string {
	switch {
	case errors.Is(err, apperr.ErrStaleOrderState):
		return "stale"
	case errors.Is(err, apperr.ErrDriverUnavailable):
		return "unavailable"
	case errors.Is(err, apperr.ErrCapacityExceeded):
		return "capacity"
	default:
		return "error"
	}
}

// selectDriver ranks drivers by road distance to the pickup point. A routing
// failure falls back to straight-line distances.
func (m *Monitor) selectDriver(ctx context.Context, log logx.Logger, o *domain.Order, drivers []*domain.Driver, now time.Time) (scoring.Decision, bool) {
	if len(drivers) == 0 {
		return scoring.Decision{}, false
	}
	origins := make([]domain.Location, 0, len(drivers))
	for _, d := range drivers {
		origins = append(origins, d.CurrentLocation)
	}
	dist, err := m.d.Distancer.Distances(ctx, origins, o.PickupLocation)
	if err != nil || len(dist) != len(drivers) {
		log.Warn("routing failed, using straight-line distance", logx.Err(err))
		return m.d.Selector.SelectReplacement(o, drivers, now)
	}
	candidates := make([]scoring.Candidate, 0, len(drivers))
	for i, d := range drivers {
		candidates = append(candidates, scoring.Candidate{Driver: d, DistanceMeters: dist[i]})
	}
	return m.d.Selector.Select(o, candidates, now)
}

// escalate hands the order to operations. The ops notification is sent once
// per recheck interval; every attempt is logged and counted.
func (m *Monitor) escalate(ctx context.Context, log logx.Logger, o *domain.Order, cause error, now time.Time) {
	reason := "no driver available"
	if !errors.Is(cause, apperr.ErrNoCandidate) {
		reason = "reassignment failed"
	}

	m.mu.Lock()
	st, ok := m.escalations[o.ID]
	if !ok {
		st = &escalationState{firstAt: now}
		m.escalations[o.ID] = st
	}
	st.reason = reason
	st.attempts++
	st.lastAttemptAt = now
	send := st.notifiedAt.IsZero() || !now.Before(st.notifiedAt.Add(m.cfg.RecheckInterval))
	if send {
		st.notifiedAt = now
	}
	attempts := st.attempts
	m.mu.Unlock()

	m.d.Observer.Escalation()
	log.Warn("reassignment escalated",
		logx.String("event", "reassignment_escalated"),
		logx.String("reason", reason),
		logx.Int("attempts", attempts),
		logx.Err(cause),
	)
	if send {
		m.notify(ctx, log, domain.Notification{
			Kind:      domain.NotifyEscalation,
			Recipient: domain.RecipientOps,
			OrderID:   o.ID,
			DriverID:  o.AssignedDriverID,
			Message:   reason,
			CreatedAt: now,
		})
	}
}

func (m *Monitor) clearEscalation(orderID string) {
	m.mu.Lock()
	delete(m.escalations, orderID)
	m.mu.Unlock()
}

// pruneEscalations forgets orders that left AT_RISK outside the monitor.
func (m *Monitor) pruneEscalations(batch []*domain.Order) {
	atRisk := make(map[string]struct{}, len(batch))
	for _, o := range batch {
		atRisk[o.ID] = struct{}{}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(batch) >= m.cfg.BatchSize {
		// a full batch may not contain every monitored order
		return
	}
	for id := range m.escalations {
		if _, ok := atRisk[id]; !ok {
			delete(m.escalations, id)
		}
	}
}

func (m *Monitor) notify(ctx context.Context, log logx.Logger, n domain.Notification) {
	n.ID = m.newID()
	if err := m.d.Notifier.Notify(ctx, n); err != nil {
		log.Warn("notification failed",
			logx.String("event", "notification_failed"),
			logx.String("kind", string(n.Kind)),
			logx.Err(err),
		)
	}
}

// writeFailed classifies an executor error. A status conflict means another
// writer moved the order first, which is not a failure.
func (m *Monitor) writeFailed(log logx.Logger, op string, err error) (outcome, error) {
	if errors.Is(err, apperr.ErrConflict) || errors.Is(err, apperr.ErrNotFound) {
		log.Debug(op+" skipped", logx.Err(err))
		return outcome{stale: true}, nil
	}
	log.Error(op+" failed", logx.Err(err))
	if errors.Is(err, apperr.ErrPersistence) {
		return outcome{failed: true}, err
	}
	return outcome{failed: true}, nil
}

type nopSink struct{}

func (nopSink) Notify(context.Context, domain.Notification) error            { return nil }
func (nopSink) RecordAudit(context.Context, domain.ReassignmentRecord) error { return nil }

type nopObserver struct{}

func (nopObserver) CycleCompleted(domain.CycleSummary) {}
func (nopObserver) CycleAborted(time.Duration)         {}
func (nopObserver) CycleSkipped()                      {}
func (nopObserver) Transition(domain.OrderStatus)      {}
func (nopObserver) Reassignment(string)                {}
func (nopObserver) Escalation()                        {}
