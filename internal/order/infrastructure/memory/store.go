// Package memory holds process-local implementations of the order ports,
// used for local runs without Postgres and in tests.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"

	inventoryDomain "github.com/museo-app/marketplace/internal/inventory/domain"
	"github.com/museo-app/marketplace/internal/order/domain"
)

type Store struct {
	mu       sync.RWMutex
	orders   map[string]domain.Order
	items    map[string][]domain.LineItem
	sellers  map[string]domain.SellerProfile
	listings map[string]inventoryDomain.MarketplaceItem
}

func NewStore() *Store {
	return &Store{
		orders:   make(map[string]domain.Order),
		items:    make(map[string][]domain.LineItem),
		sellers:  make(map[string]domain.SellerProfile),
		listings: make(map[string]inventoryDomain.MarketplaceItem),
	}
}

func (s *Store) PutOrder(o domain.Order, items ...domain.LineItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders[o.OrderID] = o
	for i := range items {
		items[i].OrderID = o.OrderID
	}
	s.items[o.OrderID] = slices.Clone(items)
}

func (s *Store) PutSellerProfile(p domain.SellerProfile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sellers[p.UserID] = p
}

func (s *Store) PutMarketplaceItem(m inventoryDomain.MarketplaceItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listings[m.MarketItemID] = m
}

func (s *Store) GetOrder(_ context.Context, id string) (*domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, nil
	}
	return &o, nil
}

func (s *Store) GetLineItems(_ context.Context, orderID string) ([]domain.LineItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.items[orderID]), nil
}

func (s *Store) GetSellerProfile(_ context.Context, userID string) (*domain.SellerProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.sellers[userID]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (s *Store) UpdateOrderIf(_ context.Context, id string, patch domain.OrderPatch, from []domain.Status) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok || !slices.Contains(from, o.Status) {
		return nil, nil
	}
	o = o.Apply(patch)
	s.orders[id] = o
	return &o, nil
}

func (s *Store) GetMarketplaceItem(_ context.Context, id string) (*inventoryDomain.MarketplaceItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.listings[id]
	if !ok {
		return nil, nil
	}
	return &m, nil
}

func (s *Store) UpdateMarketplaceItem(_ context.Context, id string, p inventoryDomain.ItemPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.listings[id]
	if !ok {
		return fmt.Errorf("marketplace item %s not found", id)
	}
	s.listings[id] = m.Apply(p)
	return nil
}
