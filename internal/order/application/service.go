package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/museo-app/marketplace/internal/order/domain"
)

const defaultNoticeTimeout = 5 * time.Second

type Service struct {
	log       *slog.Logger
	store     OrderStore
	inventory Inventory
	payments  PaymentGateway
	locker    Locker
	notices   *notifier
	now       func() time.Time
}

type Option func(*Service)

// WithClock replaces the wall clock used for cancellation timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithNoticeTimeout bounds each background notification batch.
func WithNoticeTimeout(d time.Duration) Option {
	return func(s *Service) { s.notices.timeout = d }
}

func NewService(log *slog.Logger, store OrderStore, inventory Inventory, payments PaymentGateway, publisher NotificationPublisher, locker Locker, opts ...Option) *Service {
	s := &Service{
		log:       log,
		store:     store,
		inventory: inventory,
		payments:  payments,
		locker:    locker,
		notices:   &notifier{log: log, pub: publisher, timeout: defaultNoticeTimeout},
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Close blocks until notifications already dispatched have finished.
func (s *Service) Close() {
	s.notices.wait()
}

type role string

const (
	roleBuyer  role = "buyer"
	roleSeller role = "seller"
)

// loadAuthorized fetches the order and its line items and checks that the
// requester is its buyer or sells one of its items.
func (s *Service) loadAuthorized(ctx context.Context, requesterID, orderID string) (domain.Order, []domain.LineItem, role, error) {
	order, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		return domain.Order{}, nil, "", fmt.Errorf("%w: load order: %v", domain.ErrInternal, err)
	}
	if order == nil {
		return domain.Order{}, nil, "", domain.ErrNotFound
	}

	items, err := s.store.GetLineItems(ctx, orderID)
	if err != nil {
		return domain.Order{}, nil, "", fmt.Errorf("%w: load order items: %v", domain.ErrInternal, err)
	}

	if order.IsBuyer(requesterID) {
		return *order, items, roleBuyer, nil
	}

	profile, err := s.store.GetSellerProfile(ctx, requesterID)
	if err != nil {
		return domain.Order{}, nil, "", fmt.Errorf("%w: load seller profile: %v", domain.ErrInternal, err)
	}
	if profile != nil && domain.SoldBy(items, profile.SellerProfileID) {
		return *order, items, roleSeller, nil
	}
	return domain.Order{}, nil, "", domain.ErrForbidden
}

type OrderView struct {
	Order domain.Order      `json:"order"`
	Items []domain.LineItem `json:"items"`
}

// GetOrder returns the order with its line items to its buyer or sellers.
func (s *Service) GetOrder(ctx context.Context, requesterID, orderID string) (OrderView, error) {
	if requesterID == "" {
		return OrderView{}, domain.ErrUnauthenticated
	}
	order, items, _, err := s.loadAuthorized(ctx, requesterID, orderID)
	if err != nil {
		return OrderView{}, err
	}
	if items == nil {
		items = []domain.LineItem{}
	}
	return OrderView{Order: order, Items: items}, nil
}
