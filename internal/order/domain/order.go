package domain

import "time"

type Status string

const (
	StatusPending   Status = "pending"
	StatusShipped   Status = "shipped"
	StatusDelivered Status = "delivered"
	StatusCancelled Status = "cancelled"
)

type PaymentStatus string

const (
	PaymentUnpaid   PaymentStatus = "unpaid"
	PaymentPaid     PaymentStatus = "paid"
	PaymentRefunded PaymentStatus = "refunded"
)

// Order is a marketplace checkout. TotalCents is in PHP centavos.
type Order struct {
	OrderID       string        `json:"orderId"`
	UserID        string        `json:"userId"`
	TotalCents    int64         `json:"totalAmount"`
	PaymentStatus PaymentStatus `json:"paymentStatus"`
	Status        Status        `json:"status"`
	PaymentLinkID *string       `json:"paymentLinkId,omitempty"`
	CancelledAt   *time.Time    `json:"cancelledAt,omitempty"`
	CreatedAt     time.Time     `json:"createdAt"`
	UpdatedAt     time.Time     `json:"updatedAt"`
}

type LineItem struct {
	OrderID           string  `json:"orderId"`
	SellerProfileID   string  `json:"sellerProfileId"`
	MarketplaceItemID *string `json:"marketplaceItemId,omitempty"`
	Quantity          int     `json:"quantity"`
}

type SellerProfile struct {
	SellerProfileID string `json:"sellerProfileId"`
	UserID          string `json:"userId"`
}

// OrderPatch is the set of columns written when an order is cancelled.
// A nil PaymentStatus leaves the stored value untouched.
type OrderPatch struct {
	Status        Status
	PaymentStatus *PaymentStatus
	CancelledAt   time.Time
	UpdatedAt     time.Time
}

// OpenStatuses are the fulfillment states an order may still be cancelled from.
var OpenStatuses = []Status{StatusPending}

func (o Order) IsBuyer(userID string) bool {
	return userID != "" && o.UserID == userID
}

func (o Order) HasPaymentLink() bool {
	return o.PaymentLinkID != nil && *o.PaymentLinkID != ""
}

// Cancellable reports whether the order may still transition to cancelled.
func (o Order) Cancellable() error {
	switch o.Status {
	case StatusCancelled:
		return ErrAlreadyCancelled
	case StatusShipped, StatusDelivered:
		return ErrInvalidState
	}
	return nil
}

// CancelPatch builds the final write for a cancellation happening at now.
func (o Order) CancelPatch(now time.Time) OrderPatch {
	p := OrderPatch{
		Status:      StatusCancelled,
		CancelledAt: now,
		UpdatedAt:   now,
	}
	if o.PaymentStatus == PaymentPaid {
		refunded := PaymentRefunded
		p.PaymentStatus = &refunded
	}
	return p
}

// Apply returns a copy of o with the patch written over it.
func (o Order) Apply(p OrderPatch) Order {
	o.Status = p.Status
	if p.PaymentStatus != nil {
		o.PaymentStatus = *p.PaymentStatus
	}
	cancelled := p.CancelledAt
	o.CancelledAt = &cancelled
	o.UpdatedAt = p.UpdatedAt
	return o
}

// SoldBy reports whether any of the line items belongs to the seller profile.
func SoldBy(items []LineItem, sellerProfileID string) bool {
	if sellerProfileID == "" {
		return false
	}
	for _, it := range items {
		if it.SellerProfileID == sellerProfileID {
			return true
		}
	}
	return false
}
