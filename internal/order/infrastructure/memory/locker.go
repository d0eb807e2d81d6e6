package memory

import (
	"context"
	"sync"
)

// Locker is a per-key mutex that gives up when ctx is done. Keys are never
// evicted.
type Locker struct {
	mu   sync.Mutex
	keys map[string]chan struct{}
}

func NewLocker() *Locker {
	return &Locker{keys: make(map[string]chan struct{})}
}

func (l *Locker) Lock(ctx context.Context, key string) (func(context.Context) error, error) {
	l.mu.Lock()
	ch, ok := l.keys[key]
	if !ok {
		ch = make(chan struct{}, 1)
		l.keys[key] = ch
	}
	l.mu.Unlock()

	select {
	case ch <- struct{}{}:
		var once sync.Once
		return func(context.Context) error {
			once.Do(func() { <-ch })
			return nil
		}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
