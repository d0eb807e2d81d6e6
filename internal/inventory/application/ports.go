package application

import (
	"context"

	"github.com/museo-app/marketplace/internal/inventory/domain"
)

// ItemRepository reads and writes marketplace items. GetMarketplaceItem
// returns nil, nil when the item does not exist.
type ItemRepository interface {
	GetMarketplaceItem(ctx context.Context, id string) (*domain.MarketplaceItem, error)
	UpdateMarketplaceItem(ctx context.Context, id string, patch domain.ItemPatch) error
}
