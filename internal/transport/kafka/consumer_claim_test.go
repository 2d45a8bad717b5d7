package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/stretchr/testify/require"

	"service-sla-guard/internal/domain"
	"service-sla-guard/internal/service/orders"
	testlog "service-sla-guard/internal/testutil"
)

type fakeSession struct {
	ctx context.Context

	mu     sync.Mutex
	marked int
}

func (s *fakeSession) Context() context.Context { return s.ctx }

func (s *fakeSession) MarkMessage(*sarama.ConsumerMessage, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.marked++
}

func (s *fakeSession) MarkOffset(string, int32, int64, string)  {}
func (s *fakeSession) Commit()                                  {}
func (s *fakeSession) ResetOffset(string, int32, int64, string) {}
func (s *fakeSession) Claims() map[string][]int32               { return nil }
func (s *fakeSession) MemberID() string                         { return "" }
func (s *fakeSession) GenerationID() int32                      { return 0 }

func (s *fakeSession) MarkedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.marked
}

type fakeClaim struct {
	ch chan *sarama.ConsumerMessage
}

func (c fakeClaim) Topic() string              { return "t" }
func (c fakeClaim) Partition() int32           { return 0 }
func (c fakeClaim) InitialOffset() int64       { return 0 }
func (c fakeClaim) HighWaterMarkOffset() int64 { return 0 }
func (c fakeClaim) Messages() <-chan *sarama.ConsumerMessage {
	return c.ch
}

func TestConsumeClaim_BadJSON_Skips(t *testing.T) {
	t.Parallel()

	rec := testlog.New()
	c := &Consumer{
		logger: rec.Logger(),
		handler: func(context.Context, orders.Event) error {
			t.Fatal("handler must not be called")
			return nil
		},
	}
	h := &groupHandler{c: c}

	sess := &fakeSession{ctx: context.Background()}
	msgCh := make(chan *sarama.ConsumerMessage, 1)
	msgCh <- &sarama.ConsumerMessage{Value: []byte("not-json")}
	close(msgCh)

	err := h.ConsumeClaim(sess, fakeClaim{ch: msgCh})
	require.NoError(t, err)
	require.Equal(t, 1, sess.MarkedCount())

	e, ok := rec.Find("kafka bad json")
	require.True(t, ok)
	require.Equal(t, "warn", e.Level)
	offset, ok := e.Field("offset")
	require.True(t, ok)
	require.EqualValues(t, 0, offset)
}

func TestConsumeClaim_EmptyOrderID_Skips(t *testing.T) {
	t.Parallel()

	rec := testlog.New()
	calls := 0

	c := &Consumer{
		logger: rec.Logger(),
		handler: func(context.Context, orders.Event) error {
			calls++
			return nil
		},
	}
	h := &groupHandler{c: c}

	dto := EventDTO{
		OrderID: "   ",
		Status:  "created",
	}
	b, _ := json.Marshal(dto)

	sess := &fakeSession{ctx: context.Background()}
	msgCh := make(chan *sarama.ConsumerMessage, 1)
	msgCh <- &sarama.ConsumerMessage{Value: b}
	close(msgCh)

	err := h.ConsumeClaim(sess, fakeClaim{ch: msgCh})
	require.NoError(t, err)
	require.Equal(t, 1, sess.MarkedCount())
	require.Equal(t, 0, calls)

	require.True(t, rec.Has("kafka empty order_id"))
}

func TestConsumeClaim_HandlerError_RetriesThenSkips(t *testing.T) {
	t.Parallel()

	rec := testlog.New()
	sentinel := errors.New("boom")
	calls := 0

	c := &Consumer{
		logger:   rec.Logger(),
		attempts: 3,
		handler: func(context.Context, orders.Event) error {
			calls++
			return sentinel
		},
	}
	h := &groupHandler{c: c}

	dto := EventDTO{OrderID: "o1", Status: "created", CreatedAt: time.Now().UTC()}
	b, _ := json.Marshal(dto)

	sess := &fakeSession{ctx: context.Background()}
	msgCh := make(chan *sarama.ConsumerMessage, 1)
	msgCh <- &sarama.ConsumerMessage{Value: b}
	close(msgCh)

	err := h.ConsumeClaim(sess, fakeClaim{ch: msgCh})
	require.NoError(t, err)
	require.Equal(t, 3, calls)
	require.Equal(t, 1, sess.MarkedCount())
	require.True(t, rec.Has("kafka handle failed, skipping message"))
}

func TestConsumeClaim_TransientErrorRecovers(t *testing.T) {
	t.Parallel()

	calls := 0
	c := &Consumer{
		logger:   testlog.New().Logger(),
		attempts: 3,
		handler: func(context.Context, orders.Event) error {
			calls++
			if calls == 1 {
				return errors.New("temporary")
			}
			return nil
		},
	}
	h := &groupHandler{c: c}

	b, _ := json.Marshal(EventDTO{OrderID: "o1", Status: "completed"})
	sess := &fakeSession{ctx: context.Background()}
	msgCh := make(chan *sarama.ConsumerMessage, 1)
	msgCh <- &sarama.ConsumerMessage{Value: b}
	close(msgCh)

	require.NoError(t, h.ConsumeClaim(sess, fakeClaim{ch: msgCh}))
	require.Equal(t, 2, calls)
	require.Equal(t, 1, sess.MarkedCount())
}

func TestConsumeClaim_PermanentError_NotRetried(t *testing.T) {
	t.Parallel()

	rec := testlog.New()
	calls := 0
	c := &Consumer{
		logger:   rec.Logger(),
		attempts: 5,
		handler: func(context.Context, orders.Event) error {
			calls++
			return Permanent(errors.New("unknown driver"))
		},
	}
	h := &groupHandler{c: c}

	b, _ := json.Marshal(EventDTO{OrderID: "o1", Status: "assigned"})
	sess := &fakeSession{ctx: context.Background()}
	msgCh := make(chan *sarama.ConsumerMessage, 1)
	msgCh <- &sarama.ConsumerMessage{Value: b}
	close(msgCh)

	require.NoError(t, h.ConsumeClaim(sess, fakeClaim{ch: msgCh}))
	require.Equal(t, 1, calls)
	require.Equal(t, 1, sess.MarkedCount())
	require.True(t, rec.Has("kafka permanent error, skipping message"))
}

func TestConsumeClaim_SessionClosed_LeavesOffset(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	c := &Consumer{
		logger:   testlog.New().Logger(),
		attempts: 3,
		handler: func(context.Context, orders.Event) error {
			cancel()
			return errors.New("store down")
		},
	}
	h := &groupHandler{c: c}

	b, _ := json.Marshal(EventDTO{OrderID: "o1", Status: "completed"})
	sess := &fakeSession{ctx: ctx}
	msgCh := make(chan *sarama.ConsumerMessage, 1)
	msgCh <- &sarama.ConsumerMessage{Value: b}
	close(msgCh)

	require.NoError(t, h.ConsumeClaim(sess, fakeClaim{ch: msgCh}))
	require.Equal(t, 0, sess.MarkedCount())
}

func TestConsumeClaim_Success_Marks(t *testing.T) {
	t.Parallel()

	rec := testlog.New()
	calls := 0

	c := &Consumer{
		logger: rec.Logger(),
		handler: func(_ context.Context, ev orders.Event) error {
			calls++
			require.Equal(t, "o1", ev.OrderID)
			require.Equal(t, domain.ServiceExpress, ev.ServiceClass)
			require.Equal(t, "D1", ev.DriverID)
			return nil
		},
	}
	h := &groupHandler{c: c}

	b := []byte(`{"order_id":"o1","status":"assigned","service_class":"express","driver_id":"D1"}`)

	sess := &fakeSession{ctx: context.Background()}
	msgCh := make(chan *sarama.ConsumerMessage, 1)
	msgCh <- &sarama.ConsumerMessage{Value: b}
	close(msgCh)

	err := h.ConsumeClaim(sess, fakeClaim{ch: msgCh})
	require.NoError(t, err)
	require.Equal(t, 1, calls)
	require.Equal(t, 1, sess.MarkedCount())
}
