package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderCancellable(t *testing.T) {
	tests := []struct {
		status Status
		want   error
	}{
		{StatusPending, nil},
		{StatusCancelled, ErrAlreadyCancelled},
		{StatusShipped, ErrInvalidState},
		{StatusDelivered, ErrInvalidState},
	}
	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			err := Order{Status: tt.status}.Cancellable()
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestCancelPatch(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	paid := Order{OrderID: "o1", PaymentStatus: PaymentPaid, Status: StatusPending}
	p := paid.CancelPatch(now)
	require.NotNil(t, p.PaymentStatus)
	assert.Equal(t, PaymentRefunded, *p.PaymentStatus)

	got := paid.Apply(p)
	assert.Equal(t, StatusCancelled, got.Status)
	assert.Equal(t, PaymentRefunded, got.PaymentStatus)
	require.NotNil(t, got.CancelledAt)
	assert.Equal(t, now, *got.CancelledAt)
	assert.Equal(t, now, got.UpdatedAt)

	unpaid := Order{OrderID: "o2", PaymentStatus: PaymentUnpaid, Status: StatusPending}
	p = unpaid.CancelPatch(now)
	assert.Nil(t, p.PaymentStatus)
	assert.Equal(t, PaymentUnpaid, unpaid.Apply(p).PaymentStatus)
}

func TestSoldBy(t *testing.T) {
	items := []LineItem{{SellerProfileID: "s1"}, {SellerProfileID: "s2"}}
	assert.True(t, SoldBy(items, "s2"))
	assert.False(t, SoldBy(items, "s3"))
	assert.False(t, SoldBy(items, ""))
	assert.False(t, SoldBy(nil, "s1"))
}

func TestIsBuyer(t *testing.T) {
	o := Order{UserID: "u1"}
	assert.True(t, o.IsBuyer("u1"))
	assert.False(t, o.IsBuyer("u2"))
	assert.False(t, Order{}.IsBuyer(""))
}
