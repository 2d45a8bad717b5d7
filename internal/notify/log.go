package notify

import (
	"context"

	"service-sla-guard/internal/domain"
	"service-sla-guard/internal/logx"
)

// LogNotifier writes notifications and audit records to the log. It is the
// sink used when no broker is configured.
type LogNotifier struct {
	logger logx.Logger
}

// NewLogNotifier creates a LogNotifier.
func NewLogNotifier(logger logx.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Notify logs n.
func (l *LogNotifier) Notify(_ context.Context, n domain.Notification) error {
	l.logger.Info("notification",
		logx.String("id", n.ID),
		logx.String("kind", string(n.Kind)),
		logx.String("recipient", string(n.Recipient)),
		logx.String("order_id", n.OrderID),
		logx.String("driver_id", n.DriverID),
		logx.String("message", n.Message),
	)
	return nil
}

// RecordAudit logs rec.
func (l *LogNotifier) RecordAudit(_ context.Context, rec domain.ReassignmentRecord) error {
	l.logger.Info("audit",
		logx.String("id", rec.ID),
		logx.String("order_id", rec.OrderID),
		logx.String("from_driver_id", rec.FromDriverID),
		logx.String("to_driver_id", rec.ToDriverID),
		logx.String("reason", rec.Reason),
		logx.Int("history_index", rec.HistoryIndex),
	)
	return nil
}

// Fanout sends every notification to all notifiers and returns the first error.
type Fanout []Notifier

// Notify calls every notifier in order.
func (f Fanout) Notify(ctx context.Context, n domain.Notification) error {
	var first error
	for _, nt := range f {
		if err := nt.Notify(ctx, n); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// AuditFanout writes every record to all sinks and returns the first error.
type AuditFanout []AuditSink

// RecordAudit calls every sink in order.
func (f AuditFanout) RecordAudit(ctx context.Context, rec domain.ReassignmentRecord) error {
	var first error
	for _, s := range f {
		if err := s.RecordAudit(ctx, rec); err != nil && first == nil {
			first = err
		}
	}
	return first
}
