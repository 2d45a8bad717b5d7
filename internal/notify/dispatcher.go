package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"service-sla-guard/internal/apperr"
	"service-sla-guard/internal/domain"
	"service-sla-guard/internal/logx"
)

// ErrClosed is returned when enqueueing on a closed Dispatcher.
var ErrClosed = errors.New("dispatcher closed")

// Config tunes the Dispatcher.
type Config struct {
	QueueSize   int
	Workers     int
	SendTimeout time.Duration
	// AuditAttempts includes the first try.
	AuditAttempts  int
	AuditBaseDelay time.Duration
	AuditMaxDelay  time.Duration
}

// DefaultConfig returns the production Dispatcher settings.
func DefaultConfig() Config {
	return Config{
		QueueSize:      1024,
		Workers:        4,
		SendTimeout:    5 * time.Second,
		AuditAttempts:  5,
		AuditBaseDelay: 200 * time.Millisecond,
		AuditMaxDelay:  5 * time.Second,
	}
}

type job struct {
	notification *domain.Notification
	audit        *domain.ReassignmentRecord
}

// Dispatcher decouples side effects from the caller: Notify and RecordAudit
// only enqueue, workers deliver. A failed notification is logged and
// dropped; a failed audit write is retried with capped backoff first.
type Dispatcher struct {
	notifier Notifier
	audit    AuditSink
	cfg      Config
	logger   logx.Logger
	obs      Observer

	mu     sync.RWMutex
	closed bool
	queue  chan job
	wg     sync.WaitGroup
	stop   chan struct{}
}

// NewDispatcher creates a Dispatcher and starts its workers.
func NewDispatcher(n Notifier, a AuditSink, cfg Config, logger logx.Logger, obs Observer) *Dispatcher {
	def := DefaultConfig()
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = def.QueueSize
	}
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = def.SendTimeout
	}
	if cfg.AuditAttempts <= 0 {
		cfg.AuditAttempts = 1
	}
	if obs == nil {
		obs = nopObserver{}
	}

	d := &Dispatcher{
		notifier: n,
		audit:    a,
		cfg:      cfg,
		logger:   logger,
		obs:      obs,
		queue:    make(chan job, cfg.QueueSize),
		stop:     make(chan struct{}),
	}
	for i := 0; i < cfg.Workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}
	return d
}

// Notify enqueues n. It never blocks; a full queue drops the notification.
func (d *Dispatcher) Notify(_ context.Context, n domain.Notification) error {
	if err := d.enqueue(job{notification: &n}); err != nil {
		d.obs.Notification(n.Kind, false)
		d.logger.Warn("notification dropped",
			logx.String("event", "notification_failed"),
			logx.String("kind", string(n.Kind)),
			logx.String("order_id", n.OrderID),
			logx.Err(err),
		)
		return fmt.Errorf("%w: %w", apperr.ErrNotification, err)
	}
	return nil
}

// RecordAudit enqueues rec. It never blocks; a full queue drops the record.
func (d *Dispatcher) RecordAudit(_ context.Context, rec domain.ReassignmentRecord) error {
	if err := d.enqueue(job{audit: &rec}); err != nil {
		d.obs.Audit(false)
		d.logger.Error("audit record dropped",
			logx.String("event", "audit_failed"),
			logx.String("order_id", rec.OrderID),
			logx.String("record_id", rec.ID),
			logx.Err(err),
		)
		return fmt.Errorf("%w: %w", apperr.ErrAudit, err)
	}
	return nil
}

func (d *Dispatcher) enqueue(j job) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrClosed
	}
	select {
	case d.queue <- j:
		return nil
	default:
		return errors.New("queue full")
	}
}

// Close stops accepting work and waits for queued jobs until ctx is done.
// Jobs still queued when ctx expires are discarded.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		close(d.stop)
		<-done
		return ctx.Err()
	}
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for j := range d.queue {
		select {
		case <-d.stop:
			continue
		default:
		}
		switch {
		case j.notification != nil:
			d.deliver(*j.notification)
		case j.audit != nil:
			d.record(*j.audit)
		}
	}
}

func (d *Dispatcher) deliver(n domain.Notification) {
	ctx, cancel := context.WithTimeout(context.Background(), d.cfg.SendTimeout)
	defer cancel()

	err := d.notifier.Notify(ctx, n)
	d.obs.Notification(n.Kind, err == nil)
	if err != nil {
		d.logger.Warn("notification failed",
			logx.String("event", "notification_failed"),
			logx.String("kind", string(n.Kind)),
			logx.String("recipient", string(n.Recipient)),
			logx.String("order_id", n.OrderID),
			logx.Err(err),
		)
	}
}

func (d *Dispatcher) record(rec domain.ReassignmentRecord) {
	var err error
	for attempt := 1; attempt <= d.cfg.AuditAttempts; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), d.cfg.SendTimeout)
		err = d.audit.RecordAudit(ctx, rec)
		cancel()
		if err == nil {
			d.obs.Audit(true)
			return
		}
		if attempt == d.cfg.AuditAttempts {
			break
		}
		d.logger.Warn("audit write failed, retrying",
			logx.String("order_id", rec.OrderID),
			logx.Int("attempt", attempt),
			logx.Err(err),
		)
		if !d.sleep(backoff(d.cfg.AuditBaseDelay, d.cfg.AuditMaxDelay, attempt)) {
			break
		}
	}
	d.obs.Audit(false)
	d.logger.Error("audit write failed",
		logx.String("event", "audit_failed"),
		logx.String("order_id", rec.OrderID),
		logx.String("record_id", rec.ID),
		logx.Err(err),
	)
}

func (d *Dispatcher) sleep(delay time.Duration) bool {
	if delay <= 0 {
		return true
	}
	t := time.NewTimer(delay)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-d.stop:
		return false
	}
}

func backoff(base, maxDelay time.Duration, attempt int) time.Duration {
	if base <= 0 {
		return 0
	}
	delay := base << (attempt - 1)
	if maxDelay > 0 && (delay > maxDelay || delay <= 0) {
		return maxDelay
	}
	return delay
}

type nopObserver struct{}

func (nopObserver) Notification(domain.NotificationKind, bool) {}
func (nopObserver) Audit(bool)                                 {}
