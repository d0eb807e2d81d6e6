package domain

import "errors"

type RefundStatus string

const (
	RefundPending   RefundStatus = "PENDING"
	RefundSucceeded RefundStatus = "SUCCEEDED"
	RefundFailed    RefundStatus = "FAILED"
)

// Refund is the gateway's record of money returned to the buyer.
// Amount is in centavos.
type Refund struct {
	ID     string       `json:"id"`
	Amount int64        `json:"amount"`
	Status RefundStatus `json:"status"`
}

// RefundRequest asks the gateway to return Amount centavos for the payment
// identified by PaymentReference. Requests carrying the same IdempotencyKey
// resolve to the same refund.
type RefundRequest struct {
	PaymentReference string
	Amount           int64
	Reason           string
	IdempotencyKey   string
}

var ErrRefundRejected = errors.New("refund rejected by gateway")

// RefundKey derives the idempotency key used for every refund of an order.
func RefundKey(orderID string) string {
	return "refund-" + orderID
}
