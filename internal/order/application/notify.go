package application

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/museo-app/marketplace/internal/order/domain"
)

// notifier publishes notices off the request path. Its failures are logged
// and never reach the caller.
type notifier struct {
	log     *slog.Logger
	pub     NotificationPublisher
	timeout time.Duration
	wg      sync.WaitGroup
}

func (n *notifier) dispatch(ctx context.Context, notices ...domain.Notice) {
	if n.pub == nil || len(notices) == 0 {
		return
	}
	// Keeps trace values but outlives the request.
	base := context.WithoutCancel(ctx)

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		ctx, cancel := context.WithTimeout(base, n.timeout)
		defer cancel()

		for _, nt := range notices {
			if err := n.pub.Publish(ctx, nt); err != nil {
				n.log.Warn("notification publish failed", "type", nt.Type, "recipient", nt.Recipient, "err", err)
			}
		}
	}()
}

func (n *notifier) wait() {
	n.wg.Wait()
}
