package app

import (
	"context"
	"sync"

	"hello-world-api/internal/domain"

	"go.uber.org/zap"
)

// DefaultLeaderboardSize is how many users Top returns when unconfigured.
const DefaultLeaderboardSize = 10

// Notifier carries "points changed" events between processes. Events carry
// no payload; subscribers reload standings from the store.
type Notifier interface {
	Publish(ctx context.Context) error
	// Subscribe delivers events until ctx is done, then closes the channel.
	Subscribe(ctx context.Context) (<-chan struct{}, error)
}

// Leaderboard serves the points ranking and streams it to live subscribers.
type Leaderboard struct {
	users    UserRepository
	size     int
	notifier Notifier
	log      *zap.Logger

	mu          sync.Mutex
	subscribers map[chan []*domain.User]struct{}
}

func NewLeaderboard(users UserRepository, size int, notifier Notifier, log *zap.Logger) *Leaderboard {
	if size <= 0 {
		size = DefaultLeaderboardSize
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Leaderboard{
		users:       users,
		size:        size,
		notifier:    notifier,
		log:         log,
		subscribers: make(map[chan []*domain.User]struct{}),
	}
}

// Top returns users by points descending, ties broken by earliest signup id.
func (l *Leaderboard) Top(ctx context.Context) ([]*domain.User, error) {
	users, err := l.users.Find(ctx, OrderBy("points", true), OrderBy("id", false), Limit(l.size))
	if err != nil {
		return nil, domain.Internal("load leaderboard", err)
	}
	return users, nil
}

// Subscribe returns a channel that first receives the current standings and
// then every refresh. The caller must invoke cancel to release it.
func (l *Leaderboard) Subscribe(ctx context.Context) (<-chan []*domain.User, func(), error) {
	initial, err := l.Top(ctx)
	if err != nil {
		return nil, nil, err
	}

	ch := make(chan []*domain.User, 8)
	ch <- initial

	l.mu.Lock()
	l.subscribers[ch] = struct{}{}
	l.mu.Unlock()

	cancel := func() {
		l.mu.Lock()
		if _, ok := l.subscribers[ch]; ok {
			delete(l.subscribers, ch)
			close(ch)
		}
		l.mu.Unlock()
	}
	return ch, cancel, nil
}

// Run reloads the standings on every notifier event and fans them out until
// ctx is done.
func (l *Leaderboard) Run(ctx context.Context) error {
	events, err := l.notifier.Subscribe(ctx)
	if err != nil {
		return err
	}
	for range events {
		top, err := l.Top(ctx)
		if err != nil {
			l.log.Warn("refresh leaderboard", zap.Error(err))
			continue
		}
		l.broadcast(top)
	}
	return ctx.Err()
}

// Subscribers reports how many live subscriptions are open.
func (l *Leaderboard) Subscribers() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.subscribers)
}

func (l *Leaderboard) broadcast(top []*domain.User) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for ch := range l.subscribers {
		select {
		case ch <- top:
		default:
			// Slow subscriber: replace its oldest pending snapshot.
			select {
			case <-ch:
			default:
			}
			ch <- top
		}
	}
}
