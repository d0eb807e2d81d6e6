package application

import (
	"context"

	inventoryDomain "github.com/museo-app/marketplace/internal/inventory/domain"
	"github.com/museo-app/marketplace/internal/order/domain"
	paymentDomain "github.com/museo-app/marketplace/internal/payment/domain"
)

// OrderStore is the persistence boundary for orders. Lookups return nil, nil
// when the row does not exist so callers can tell absence from failure.
type OrderStore interface {
	GetOrder(ctx context.Context, id string) (*domain.Order, error)
	GetLineItems(ctx context.Context, orderID string) ([]domain.LineItem, error)
	GetSellerProfile(ctx context.Context, userID string) (*domain.SellerProfile, error)
	// UpdateOrderIf applies patch only while the order's status is one of
	// from. It returns nil, nil when no row matched.
	UpdateOrderIf(ctx context.Context, id string, patch domain.OrderPatch, from []domain.Status) (*domain.Order, error)
}

type Inventory interface {
	Restock(ctx context.Context, items []domain.LineItem) inventoryDomain.RestockReport
}

type PaymentGateway interface {
	CreateRefund(ctx context.Context, req paymentDomain.RefundRequest) (paymentDomain.Refund, error)
	CancelPaymentLink(ctx context.Context, reference string) error
}

type NotificationPublisher interface {
	Publish(ctx context.Context, n domain.Notice) error
}

// Locker serializes work on a key across processes. The returned func
// releases the lock.
type Locker interface {
	Lock(ctx context.Context, key string) (func(context.Context) error, error)
}
