package application

import (
	"context"

	"github.com/museo-app/marketplace/internal/notification/domain"
)

type Repository interface {
	// Insert stores n unless a notification with the same dedupe key
	// exists, and reports whether a row was written.
	Insert(ctx context.Context, n domain.Notification) (bool, error)
}
