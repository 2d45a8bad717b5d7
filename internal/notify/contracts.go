//go:generate mockgen -source=contracts.go -destination=mocks_test.go -package=notify_test

package notify

import (
	"context"

	"service-sla-guard/internal/domain"
)

// Notifier delivers a notification to its channel.
type Notifier interface {
	Notify(ctx context.Context, n domain.Notification) error
}

// AuditSink appends a reassignment record to the audit trail.
type AuditSink interface {
	RecordAudit(ctx context.Context, rec domain.ReassignmentRecord) error
}

// Observer receives delivery outcomes.
type Observer interface {
	Notification(kind domain.NotificationKind, ok bool)
	Audit(ok bool)
}
