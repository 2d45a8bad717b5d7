package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/require"

	"service-sla-guard/internal/apperr"
	"service-sla-guard/internal/domain"
	testlog "service-sla-guard/internal/testutil"
)

func TestNewProducer_SkipsWhenNoKafkaConfig(t *testing.T) {
	t.Parallel()

	log := testlog.New().Logger()

	got, err := NewProducer(log, nil, "notifications", "audit")
	require.NoError(t, err)
	require.Nil(t, got)

	got, err = NewProducer(log, []string{"b:9092"}, " ", "")
	require.NoError(t, err)
	require.Nil(t, got)
}

//nolint:paralleltest // swaps the package-level constructor
func TestNewProducer_ReturnsErrorWhenSaramaFails(t *testing.T) {
	orig := newSyncProducer
	t.Cleanup(func() { newSyncProducer = orig })

	sentinel := errors.New("no brokers")
	newSyncProducer = func(_ []string, cfg *sarama.Config) (sarama.SyncProducer, error) {
		require.True(t, cfg.Producer.Return.Successes)
		return nil, sentinel
	}

	got, err := NewProducer(testlog.New().Logger(), []string{"b:9092"}, "notifications", "")
	require.ErrorIs(t, err, sentinel)
	require.Nil(t, got)
}

func TestProducer_Notify_PublishesJSON(t *testing.T) {
	t.Parallel()

	cfg := mocks.NewTestConfig()
	cfg.Producer.Return.Successes = true
	sp := mocks.NewSyncProducer(t, cfg)

	n := domain.Notification{
		ID:        "n1",
		Kind:      domain.NotifyBreach,
		Recipient: domain.RecipientCustomer,
		OrderID:   "O1",
		Penalty:   12.5,
		CreatedAt: time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC),
	}
	sp.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		var got domain.Notification
		if err := json.Unmarshal(val, &got); err != nil {
			return err
		}
		if got.ID != n.ID || got.Kind != n.Kind || got.Penalty != n.Penalty {
			return errors.New("unexpected payload")
		}
		return nil
	})

	p := newProducer(sp, testlog.New().Logger(), "notifications", "audit")
	require.NoError(t, p.Notify(context.Background(), n))
	require.NoError(t, p.Close())
}

func TestProducer_RecordAudit_FailureIsAuditError(t *testing.T) {
	t.Parallel()

	cfg := mocks.NewTestConfig()
	cfg.Producer.Return.Successes = true
	sp := mocks.NewSyncProducer(t, cfg)
	sp.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	p := newProducer(sp, testlog.New().Logger(), "notifications", "audit")
	err := p.RecordAudit(context.Background(), domain.ReassignmentRecord{ID: "a1", OrderID: "O1"})
	require.ErrorIs(t, err, apperr.ErrAudit)
	require.ErrorIs(t, err, sarama.ErrOutOfBrokers)
	require.NoError(t, p.Close())
}

func TestProducer_MissingTopicIsNoop(t *testing.T) {
	t.Parallel()

	cfg := mocks.NewTestConfig()
	sp := mocks.NewSyncProducer(t, cfg)

	p := newProducer(sp, testlog.New().Logger(), "", "")
	require.NoError(t, p.Notify(context.Background(), domain.Notification{OrderID: "O1"}))
	require.NoError(t, p.RecordAudit(context.Background(), domain.ReassignmentRecord{OrderID: "O1"}))
	require.NoError(t, p.Close())
}

func TestProducer_CanceledContext(t *testing.T) {
	t.Parallel()

	cfg := mocks.NewTestConfig()
	sp := mocks.NewSyncProducer(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := newProducer(sp, testlog.New().Logger(), "notifications", "audit")
	err := p.Notify(ctx, domain.Notification{OrderID: "O1"})
	require.ErrorIs(t, err, apperr.ErrNotification)
	require.ErrorIs(t, err, context.Canceled)
	require.NoError(t, p.Close())
}
