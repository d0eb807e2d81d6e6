package memory

import (
	"context"
	"log/slog"
	"slices"
	"sync"

	"github.com/museo-app/marketplace/internal/order/domain"
)

// Publisher keeps notices in memory and logs them.
type Publisher struct {
	log     *slog.Logger
	mu      sync.Mutex
	notices []domain.Notice
}

func NewPublisher(log *slog.Logger) *Publisher {
	return &Publisher{log: log}
}

func (p *Publisher) Publish(_ context.Context, n domain.Notice) error {
	p.mu.Lock()
	p.notices = append(p.notices, n)
	p.mu.Unlock()
	p.log.Info("notice published", "type", n.Type, "recipient", n.Recipient)
	return nil
}

func (p *Publisher) Notices() []domain.Notice {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.notices)
}
