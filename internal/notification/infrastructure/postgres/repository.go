package postgres

import (
	"context"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/museo-app/marketplace/internal/notification/domain"
)

type Repository struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewRepository(log *slog.Logger, pool *pgxpool.Pool) *Repository {
	return &Repository{log: log, pool: pool}
}

func (r *Repository) Insert(ctx context.Context, n domain.Notification) (bool, error) {
	ct, err := r.pool.Exec(ctx, `INSERT INTO notifications (id, type, title, body, recipient, data, dedupe_key, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		ON CONFLICT (dedupe_key) DO NOTHING`,
		n.ID, n.Type, n.Title, n.Body, n.Recipient, n.Data, n.DedupeKey, n.CreatedAt)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() == 1, nil
}
