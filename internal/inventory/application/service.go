package application

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	inventoryDomain "github.com/museo-app/marketplace/internal/inventory/domain"
	"github.com/museo-app/marketplace/internal/order/domain"
)

const defaultParallelism = 4

type Service struct {
	log         *slog.Logger
	repo        ItemRepository
	parallelism int
	now         func() time.Time
}

func NewService(log *slog.Logger, repo ItemRepository) *Service {
	return &Service{
		log:         log,
		repo:        repo,
		parallelism: defaultParallelism,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Restock puts the quantities of the given line items back on their
// marketplace items. Lines without an item are ignored. A failure on one
// item is logged and skipped so the others are still restored.
func (s *Service) Restock(ctx context.Context, items []domain.LineItem) inventoryDomain.RestockReport {
	var (
		mu     sync.Mutex
		report inventoryDomain.RestockReport
	)

	// Lines sharing an item are merged so each item is written once.
	var (
		order   []string
		qty     = map[string]int{}
		orderID string
	)
	for _, it := range items {
		if it.MarketplaceItemID == nil || *it.MarketplaceItemID == "" {
			continue
		}
		id := *it.MarketplaceItemID
		if _, ok := qty[id]; !ok {
			order = append(order, id)
		}
		qty[id] += it.Quantity
		orderID = it.OrderID
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.parallelism)

	for _, id := range order {
		g.Go(func() error {
			res := s.restockOne(gctx, orderID, id, qty[id])
			mu.Lock()
			if res == inventoryDomain.Restored {
				report.Restored++
			} else {
				report.Skipped++
			}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return report
}

func (s *Service) restockOne(ctx context.Context, orderID, itemID string, qty int) inventoryDomain.RestockResult {
	item, err := s.repo.GetMarketplaceItem(ctx, itemID)
	if err != nil {
		s.log.Warn("restock lookup failed", "order_id", orderID, "item_id", itemID, "err", err)
		return inventoryDomain.Skipped
	}
	if item == nil {
		s.log.Warn("restock item missing", "order_id", orderID, "item_id", itemID)
		return inventoryDomain.Skipped
	}

	if err := s.repo.UpdateMarketplaceItem(ctx, itemID, inventoryDomain.Restock(qty, s.now())); err != nil {
		s.log.Warn("restock update failed", "order_id", orderID, "item_id", itemID, "err", err)
		return inventoryDomain.Skipped
	}
	s.log.Info("stock restored", "order_id", orderID, "item_id", itemID, "quantity", qty)
	return inventoryDomain.Restored
}
