package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/museo-app/marketplace/internal/notification/domain"
	"github.com/museo-app/marketplace/pkg/idempotency"
)

type fakeReader struct {
	mu        sync.Mutex
	msgs      []kafka.Message
	committed []int64
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.msgs) == 0 {
		return kafka.Message{}, io.EOF
	}
	m := r.msgs[0]
	r.msgs = r.msgs[1:]
	return m, nil
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error { return nil }

type recorder struct {
	delivered []domain.Notification
	err       error
	// failures makes the first calls for a dedupe key fail.
	failures map[string]int
	calls    int
}

func (r *recorder) Deliver(_ context.Context, n domain.Notification) error {
	r.calls++
	if r.err != nil {
		return r.err
	}
	if r.failures[n.DedupeKey] > 0 {
		r.failures[n.DedupeKey]--
		return errors.New("db down")
	}
	if err := n.Validate(); err != nil {
		return err
	}
	r.delivered = append(r.delivered, n)
	return nil
}

func message(t *testing.T, offset int64, n domain.Notification) kafka.Message {
	t.Helper()
	b, err := json.Marshal(n)
	require.NoError(t, err)
	return kafka.Message{
		Topic:  "notifications",
		Offset: offset,
		Value:  b,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(n.Type)},
			{Key: "dedupe_key", Value: []byte(n.DedupeKey)},
		},
	}
}

func newIdem(t *testing.T) (*idempotency.Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return idempotency.NewStore(rdb, time.Minute), mr
}

func newConsumer(reader Reader, svc Deliverer, idem *idempotency.Store) *Consumer {
	c := NewConsumer(slog.New(slog.NewTextHandler(io.Discard, nil)), reader, svc, idem)
	c.firstRetry = time.Millisecond
	c.maxRetry = 5 * time.Millisecond
	return c
}

var cancelled = domain.Notification{
	Type:      "order_cancelled",
	Title:     "Your order was cancelled",
	Body:      "Order O1 has been cancelled.",
	Recipient: "buyer",
	DedupeKey: "order_cancelled:O1",
}

func TestConsumerDeliversOnceAndCommits(t *testing.T) {
	idem, _ := newIdem(t)
	reader := &fakeReader{msgs: []kafka.Message{
		message(t, 1, cancelled),
		message(t, 2, cancelled),
		{Topic: "notifications", Offset: 3, Value: []byte("not json")},
	}}
	rec := &recorder{}
	c := newConsumer(reader, rec, idem)

	err := c.Run(context.Background())
	assert.ErrorIs(t, err, io.EOF)

	require.Len(t, rec.delivered, 1)
	assert.Equal(t, "buyer", rec.delivered[0].Recipient)
	assert.Equal(t, []int64{1, 2, 3}, reader.committed)
}

func TestConsumerRetriesFailedDeliveryBeforeMovingOn(t *testing.T) {
	idem, _ := newIdem(t)
	refunded := cancelled
	refunded.Type = "refund_processed"
	refunded.DedupeKey = "refund_processed:O1"
	reader := &fakeReader{msgs: []kafka.Message{message(t, 1, cancelled), message(t, 2, refunded)}}
	rec := &recorder{failures: map[string]int{"order_cancelled:O1": 2}}
	c := newConsumer(reader, rec, idem)

	err := c.Run(context.Background())
	assert.ErrorIs(t, err, io.EOF)

	require.Len(t, rec.delivered, 2)
	assert.Equal(t, "order_cancelled:O1", rec.delivered[0].DedupeKey)
	assert.Equal(t, "refund_processed:O1", rec.delivered[1].DedupeKey)
	assert.Equal(t, 4, rec.calls)
	assert.Equal(t, []int64{1, 2}, reader.committed)
}

func TestConsumerStopsWithoutCommittingOnShutdown(t *testing.T) {
	idem, mr := newIdem(t)
	reader := &fakeReader{msgs: []kafka.Message{message(t, 7, cancelled), message(t, 8, cancelled)}}
	rec := &recorder{err: errors.New("db down")}
	c := newConsumer(reader, rec, idem)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	require.NoError(t, c.Run(ctx))

	assert.Empty(t, reader.committed)
	assert.Len(t, reader.msgs, 1)
	assert.Greater(t, rec.calls, 1)
	assert.False(t, mr.Exists("idem:notification:order_cancelled:O1"))
}

func TestConsumerRetriesWhenIdempotencyStoreIsDown(t *testing.T) {
	idem, mr := newIdem(t)
	mr.SetError("LOADING redis is starting")
	reader := &fakeReader{msgs: []kafka.Message{message(t, 3, cancelled)}}
	rec := &recorder{}
	c := newConsumer(reader, rec, idem)

	go func() {
		time.Sleep(20 * time.Millisecond)
		mr.SetError("")
	}()
	err := c.Run(context.Background())
	assert.ErrorIs(t, err, io.EOF)

	require.Len(t, rec.delivered, 1)
	assert.Equal(t, []int64{3}, reader.committed)
}

func TestConsumerDropsMalformed(t *testing.T) {
	idem, _ := newIdem(t)
	bad := cancelled
	bad.Recipient = ""
	reader := &fakeReader{msgs: []kafka.Message{message(t, 4, bad)}}
	c := newConsumer(reader, &recorder{}, idem)

	_ = c.Run(context.Background())

	assert.Equal(t, []int64{4}, reader.committed)
}
