package application

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/museo-app/marketplace/internal/notification/domain"
)

type fakeRepo struct {
	mu   sync.Mutex
	rows map[string]domain.Notification
	err  error
}

func (r *fakeRepo) Insert(_ context.Context, n domain.Notification) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return false, r.err
	}
	if _, ok := r.rows[n.DedupeKey]; ok {
		return false, nil
	}
	r.rows[n.DedupeKey] = n
	return true, nil
}

func newService(repo *fakeRepo) *Service {
	return NewService(slog.New(slog.NewTextHandler(io.Discard, nil)), repo)
}

func refundNotice() domain.Notification {
	return domain.Notification{
		Type:      "order_refund_initiated",
		Title:     "Your refund is being processed",
		Body:      "We initiated a refund for your order O1.",
		Recipient: "buyer",
		DedupeKey: "order_refund_initiated:O1",
	}
}

func TestDeliver(t *testing.T) {
	repo := &fakeRepo{rows: map[string]domain.Notification{}}
	svc := newService(repo)

	require.NoError(t, svc.Deliver(context.Background(), refundNotice()))
	require.NoError(t, svc.Deliver(context.Background(), refundNotice()))

	require.Len(t, repo.rows, 1)
	got := repo.rows["order_refund_initiated:O1"]
	_, err := uuid.Parse(got.ID)
	assert.NoError(t, err)
	assert.False(t, got.CreatedAt.IsZero())
	assert.NotNil(t, got.Data)
}

func TestDeliverRejectsMalformed(t *testing.T) {
	svc := newService(&fakeRepo{rows: map[string]domain.Notification{}})

	n := refundNotice()
	n.Recipient = ""
	assert.ErrorIs(t, svc.Deliver(context.Background(), n), domain.ErrMalformed)

	n = refundNotice()
	n.DedupeKey = ""
	assert.ErrorIs(t, svc.Deliver(context.Background(), n), domain.ErrMalformed)
}

func TestDeliverStoreError(t *testing.T) {
	boom := errors.New("db down")
	svc := newService(&fakeRepo{rows: map[string]domain.Notification{}, err: boom})
	assert.ErrorIs(t, svc.Deliver(context.Background(), refundNotice()), boom)
}
