package outbox

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	mu      sync.Mutex
	pending []Event
	sent    []int64
	failed  map[int64]string
}

func (s *memStore) LockBatch(_ context.Context, _ string, batchSize int, _ time.Duration) ([]Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := min(batchSize, len(s.pending))
	batch := s.pending[:n]
	s.pending = s.pending[n:]
	return batch, nil
}

func (s *memStore) MarkSent(_ context.Context, ids []int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, ids...)
	return nil
}

func (s *memStore) MarkFailed(_ context.Context, id int64, msg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failed[id] = msg
	return nil
}

type recordingProducer struct {
	mu     sync.Mutex
	msgs   []kafka.Message
	failOn string
}

func (p *recordingProducer) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, m := range msgs {
		if string(m.Key) == p.failOn {
			return errors.New("leader not available")
		}
	}
	p.msgs = append(p.msgs, msgs...)
	return nil
}

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestRelayTick(t *testing.T) {
	store := &memStore{
		failed: map[int64]string{},
		pending: []Event{
			{ID: 1, AggregateType: "order", AggregateID: "O1", Type: "order_cancelled", Payload: []byte(`{}`), Traceparent: "00-abc-def-01"},
			{ID: 2, AggregateType: "order", AggregateID: "O2", Type: "order_cancelled", Payload: []byte(`{}`)},
		},
	}
	prod := &recordingProducer{failOn: "O2"}
	relay := NewRelay(quiet(), store, NewDispatcher(quiet(), prod, "notifications"), "test-relay")

	relay.tick(context.Background())

	assert.Equal(t, []int64{1}, store.sent)
	assert.Equal(t, "leader not available", store.failed[2])

	require.Len(t, prod.msgs, 1)
	msg := prod.msgs[0]
	assert.Equal(t, "notifications", msg.Topic)
	assert.Equal(t, "O1", string(msg.Key))

	headers := map[string]string{}
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	assert.Equal(t, "order_cancelled", headers["event_type"])
	assert.Equal(t, "order", headers["aggregate_type"])
	assert.Equal(t, "00-abc-def-01", headers["traceparent"])
}

func TestRelayRunStopsOnCancel(t *testing.T) {
	store := &memStore{failed: map[int64]string{}}
	relay := NewRelay(quiet(), store, NewDispatcher(quiet(), &recordingProducer{}, "t"), "r", WithInterval(time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- relay.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("relay did not stop")
	}
}
