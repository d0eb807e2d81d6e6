package postgres

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/museo-app/marketplace/internal/order/domain"
)

type Repository struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewRepository(log *slog.Logger, pool *pgxpool.Pool) *Repository {
	return &Repository{log: log, pool: pool}
}

const orderColumns = `order_id, user_id, total_amount_cents, payment_status, status, payment_link_id, cancelled_at, created_at, updated_at`

func scanOrder(row pgx.Row) (*domain.Order, error) {
	var (
		o             domain.Order
		status        string
		paymentStatus string
	)
	err := row.Scan(&o.OrderID, &o.UserID, &o.TotalCents, &paymentStatus, &status, &o.PaymentLinkID, &o.CancelledAt, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	o.Status = domain.Status(status)
	o.PaymentStatus = domain.PaymentStatus(paymentStatus)
	return &o, nil
}

func (r *Repository) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	return scanOrder(r.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE order_id=$1`, id))
}

func (r *Repository) GetLineItems(ctx context.Context, orderID string) ([]domain.LineItem, error) {
	rows, err := r.pool.Query(ctx, `SELECT seller_profile_id, marketplace_item_id, quantity FROM order_items WHERE order_id=$1 ORDER BY id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []domain.LineItem
	for rows.Next() {
		it := domain.LineItem{OrderID: orderID}
		if err := rows.Scan(&it.SellerProfileID, &it.MarketplaceItemID, &it.Quantity); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (r *Repository) GetSellerProfile(ctx context.Context, userID string) (*domain.SellerProfile, error) {
	var p domain.SellerProfile
	err := r.pool.QueryRow(ctx, `SELECT seller_profile_id, user_id FROM seller_profiles WHERE user_id=$1`, userID).
		Scan(&p.SellerProfileID, &p.UserID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// UpdateOrderIf writes the patch only while the row's status is in from,
// so two cancellations racing on the same order cannot both win.
func (r *Repository) UpdateOrderIf(ctx context.Context, id string, patch domain.OrderPatch, from []domain.Status) (*domain.Order, error) {
	allowed := make([]string, 0, len(from))
	for _, s := range from {
		allowed = append(allowed, string(s))
	}
	var paymentStatus *string
	if patch.PaymentStatus != nil {
		ps := string(*patch.PaymentStatus)
		paymentStatus = &ps
	}

	return scanOrder(r.pool.QueryRow(ctx, `
		UPDATE orders
		SET status=$2,
		    payment_status=COALESCE($3::text, payment_status),
		    cancelled_at=$4,
		    updated_at=$5
		WHERE order_id=$1 AND status = ANY($6)
		RETURNING `+orderColumns,
		id, string(patch.Status), paymentStatus, patch.CancelledAt, patch.UpdatedAt, allowed))
}
