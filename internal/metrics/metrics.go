package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"service-sla-guard/internal/domain"
)

// NewRateLimitExceededTotal returns a Prometheus counter for the number of rejected HTTP requests due to rate limiting
func NewRateLimitExceededTotal() prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{
		Name: "rate_limit_exceeded_total",
		Help: "Total number of rejected HTTP requests due to rate limiting",
	})
}

// NewRoutingRetriesTotal returns a Prometheus counter for the number of retried routing engine calls
func NewRoutingRetriesTotal() prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{
		Name: "routing_retries_total",
		Help: "Total number of retry attempts performed against the routing engine",
	})
}

// SLA groups the collectors of the monitor, the executor side effects and
// the lifecycle intake. All methods are safe on a nil receiver.
type SLA struct {
	cycles          *prometheus.CounterVec
	cyclesSkipped   prometheus.Counter
	cycleDuration   prometheus.Histogram
	ordersEvaluated prometheus.Counter
	transitions     *prometheus.CounterVec
	reassignments   *prometheus.CounterVec
	escalations     prometheus.Counter
	notifications   *prometheus.CounterVec
	audits          *prometheus.CounterVec
	lifecycle       *prometheus.CounterVec
}

// NewSLA creates unregistered SLA collectors.
func NewSLA() *SLA {
	return &SLA{
		cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sla_cycles_total",
			Help: "Monitor cycles by result",
		}, []string{"result"}),
		cyclesSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sla_cycles_skipped_total",
			Help: "Scheduled monitor cycles skipped because the previous one was still running",
		}),
		cycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "sla_cycle_duration_seconds",
			Help:    "Duration of monitor cycles",
			Buckets: prometheus.DefBuckets,
		}),
		ordersEvaluated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sla_orders_evaluated_total",
			Help: "Orders evaluated by the monitor",
		}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sla_order_transitions_total",
			Help: "Order status transitions applied by the engine",
		}, []string{"to"}),
		reassignments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sla_reassignments_total",
			Help: "Reassignment attempts by outcome",
		}, []string{"outcome"}),
		escalations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sla_escalations_total",
			Help: "Orders escalated to operations",
		}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sla_notifications_total",
			Help: "Notifications by kind and result",
		}, []string{"kind", "result"}),
		audits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sla_audit_records_total",
			Help: "Audit records by result",
		}, []string{"result"}),
		lifecycle: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sla_lifecycle_events_total",
			Help: "Order lifecycle events consumed by type and result",
		}, []string{"event", "result"}),
	}
}

// Collectors returns every collector for registration.
func (m *SLA) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.cycles, m.cyclesSkipped, m.cycleDuration, m.ordersEvaluated, m.transitions,
		m.reassignments, m.escalations, m.notifications, m.audits, m.lifecycle,
	}
}

// Register registers every collector with reg.
func (m *SLA) Register(reg prometheus.Registerer) error {
	for _, c := range m.Collectors() {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

func result(ok bool) string {
	if ok {
		return "ok"
	}
	return "error"
}

// CycleCompleted records a finished cycle.
func (m *SLA) CycleCompleted(s domain.CycleSummary) {
	if m == nil {
		return
	}
	label := "completed"
	if s.DeadlineHit {
		label = "deadline"
	}
	m.cycles.WithLabelValues(label).Inc()
	m.cycleDuration.Observe(s.Duration.Seconds())
	m.ordersEvaluated.Add(float64(s.Evaluated))
}

// CycleAborted records a cycle aborted by a store failure.
func (m *SLA) CycleAborted(d time.Duration) {
	if m == nil {
		return
	}
	m.cycles.WithLabelValues("aborted").Inc()
	m.cycleDuration.Observe(d.Seconds())
}

// CycleSkipped records a scheduled cycle that did not run.
func (m *SLA) CycleSkipped() {
	if m == nil {
		return
	}
	m.cyclesSkipped.Inc()
}

// Transition records an order status change.
func (m *SLA) Transition(to domain.OrderStatus) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(string(to)).Inc()
}

// Reassignment records a reassignment attempt outcome.
func (m *SLA) Reassignment(outcome string) {
	if m == nil {
		return
	}
	m.reassignments.WithLabelValues(outcome).Inc()
}

// Escalation records an order handed to operations.
func (m *SLA) Escalation() {
	if m == nil {
		return
	}
	m.escalations.Inc()
}

// Notification records a delivered or failed notification.
func (m *SLA) Notification(kind domain.NotificationKind, ok bool) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(string(kind), result(ok)).Inc()
}

// Audit records a written or failed audit record.
func (m *SLA) Audit(ok bool) {
	if m == nil {
		return
	}
	m.audits.WithLabelValues(result(ok)).Inc()
}

// LifecycleEvent records a consumed lifecycle event.
func (m *SLA) LifecycleEvent(event string, ok bool) {
	if m == nil {
		return
	}
	m.lifecycle.WithLabelValues(event, result(ok)).Inc()
}
