package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/museo-app/marketplace/internal/inventory/domain"
)

type Repository struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewRepository(log *slog.Logger, pool *pgxpool.Pool) *Repository {
	return &Repository{
		log:  log,
		pool: pool,
	}
}

func (r *Repository) GetMarketplaceItem(ctx context.Context, id string) (*domain.MarketplaceItem, error) {
	var m domain.MarketplaceItem
	err := r.pool.QueryRow(ctx, `SELECT market_item_id, quantity, is_available, updated_at FROM marketplace_items WHERE market_item_id=$1`, id).
		Scan(&m.MarketItemID, &m.Quantity, &m.IsAvailable, &m.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// UpdateMarketplaceItem increments the quantity in place rather than writing
// back a value read earlier.
func (r *Repository) UpdateMarketplaceItem(ctx context.Context, id string, p domain.ItemPatch) error {
	ct, err := r.pool.Exec(ctx, `UPDATE marketplace_items SET quantity=quantity+$2, is_available=$3, updated_at=$4 WHERE market_item_id=$1`,
		id, p.Added, p.IsAvailable, p.UpdatedAt)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("marketplace item %s not found", id)
	}
	return nil
}
