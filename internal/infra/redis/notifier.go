package redis

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// LeaderboardChannel carries "points changed" events between instances.
const LeaderboardChannel = "leaderboard:changed"

// Notifier routes leaderboard change events through Redis pub/sub so every
// instance's hub refreshes, not only the one that handled the submission.
type Notifier struct {
	client  *redis.Client
	channel string
}

func NewNotifier(client *redis.Client) *Notifier {
	return &Notifier{client: client, channel: LeaderboardChannel}
}

func (n *Notifier) Publish(ctx context.Context) error {
	return n.client.Publish(ctx, n.channel, "1").Err()
}

// Subscribe returns a channel that receives one value per message and is
// closed when ctx ends. Pending events coalesce like the in-memory notifier.
func (n *Notifier) Subscribe(ctx context.Context) (<-chan struct{}, error) {
	sub := n.client.Subscribe(ctx, n.channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, err
	}

	out := make(chan struct{}, 1)
	go func() {
		defer close(out)
		defer sub.Close()
		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-msgs:
				if !ok {
					return
				}
				select {
				case out <- struct{}{}:
				default:
				}
			}
		}
	}()
	return out, nil
}
