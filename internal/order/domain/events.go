package domain

const (
	EventOrderRefundInitiated = "order_refund_initiated"
	EventOrderCancelled       = "order_cancelled"
)

// Notice is a user-facing notification about an order. DedupeKey lets the
// delivery side drop repeats of the same notice.
type Notice struct {
	Type      string         `json:"type"`
	Title     string         `json:"title"`
	Body      string         `json:"body"`
	Recipient string         `json:"recipient"`
	DedupeKey string         `json:"dedupeKey"`
	Data      map[string]any `json:"data,omitempty"`
}
