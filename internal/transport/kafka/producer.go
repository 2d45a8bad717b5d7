package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/IBM/sarama"

	"service-sla-guard/internal/apperr"
	"service-sla-guard/internal/domain"
	"service-sla-guard/internal/logx"
)

var newSyncProducer = sarama.NewSyncProducer

// Producer publishes notifications and audit records as JSON, keyed by
// order id so every message about one order lands on one partition.
type Producer struct {
	producer           sarama.SyncProducer
	notificationsTopic string
	auditTopic         string
	logger             logx.Logger
}

// NewProducer creates a Producer. It returns nil without error when no
// brokers or no topics are configured.
func NewProducer(logger logx.Logger, brokers []string, notificationsTopic, auditTopic string) (*Producer, error) {
	notificationsTopic = strings.TrimSpace(notificationsTopic)
	auditTopic = strings.TrimSpace(auditTopic)
	if len(brokers) == 0 || (notificationsTopic == "" && auditTopic == "") {
		return nil, nil
	}

	cfg := sarama.NewConfig()
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Return.Successes = true
	cfg.Producer.Retry.Max = 3
	cfg.Producer.Idempotent = true
	cfg.Net.MaxOpenRequests = 1

	p, err := newSyncProducer(brokers, cfg)
	if err != nil {
		return nil, err
	}
	return newProducer(p, logger, notificationsTopic, auditTopic), nil
}

func newProducer(p sarama.SyncProducer, logger logx.Logger, notificationsTopic, auditTopic string) *Producer {
	return &Producer{
		producer:           p,
		notificationsTopic: notificationsTopic,
		auditTopic:         auditTopic,
		logger:             logger.With(logx.String("component", "kafka_producer")),
	}
}

// Notify publishes n to the notifications topic. Without that topic it is a no-op.
func (p *Producer) Notify(ctx context.Context, n domain.Notification) error {
	if p.notificationsTopic == "" {
		return nil
	}
	if err := p.send(ctx, p.notificationsTopic, n.OrderID, n); err != nil {
		return fmt.Errorf("%w: %w", apperr.ErrNotification, err)
	}
	return nil
}

// RecordAudit publishes rec to the audit topic. Without that topic it is a no-op.
func (p *Producer) RecordAudit(ctx context.Context, rec domain.ReassignmentRecord) error {
	if p.auditTopic == "" {
		return nil
	}
	if err := p.send(ctx, p.auditTopic, rec.OrderID, rec); err != nil {
		return fmt.Errorf("%w: %w", apperr.ErrAudit, err)
	}
	return nil
}

func (p *Producer) send(ctx context.Context, topic, key string, v any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	partition, offset, err := p.producer.SendMessage(&sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.ByteEncoder(b),
	})
	if err != nil {
		return fmt.Errorf("send to %s: %w", topic, err)
	}
	p.logger.Debug("kafka message published",
		logx.String("topic", topic),
		logx.String("order_id", key),
		logx.Int("partition", int(partition)),
		logx.Int64("offset", offset),
	)
	return nil
}

// Close flushes and closes the underlying producer.
func (p *Producer) Close() error {
	if p == nil {
		return nil
	}
	return p.producer.Close()
}
