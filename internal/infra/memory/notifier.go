package memory

import (
	"context"
	"sync"
)

// Notifier fans leaderboard change events out to in-process subscribers.
// Pending events coalesce: a subscriber that has not drained its channel
// sees one event however many were published.
type Notifier struct {
	mu          sync.Mutex
	subscribers map[chan struct{}]struct{}
}

func NewNotifier() *Notifier {
	return &Notifier{subscribers: make(map[chan struct{}]struct{})}
}

func (n *Notifier) Publish(context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	for ch := range n.subscribers {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
	return nil
}

func (n *Notifier) Subscribe(ctx context.Context) (<-chan struct{}, error) {
	ch := make(chan struct{}, 1)
	n.mu.Lock()
	n.subscribers[ch] = struct{}{}
	n.mu.Unlock()

	go func() {
		<-ctx.Done()
		n.mu.Lock()
		delete(n.subscribers, ch)
		close(ch)
		n.mu.Unlock()
	}()
	return ch, nil
}
