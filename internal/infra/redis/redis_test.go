package redis

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestLoginLimiterFixedWindow(t *testing.T) {
	mr, client := newClient(t)
	limiter := NewLoginLimiter(client, 2, time.Minute)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		ok, err := limiter.Allow(ctx, "10.0.0.1")
		if err != nil || !ok {
			t.Fatalf("attempt %d: expected allowed, got ok=%v err=%v", i, ok, err)
		}
	}
	if ok, _ := limiter.Allow(ctx, "10.0.0.1"); ok {
		t.Fatalf("expected third attempt to be throttled")
	}
	if ttl := mr.TTL("login:attempts:10.0.0.1"); ttl <= 0 || ttl > time.Minute {
		t.Fatalf("expected window expiry on counter, got %v", ttl)
	}

	mr.FastForward(time.Minute + time.Second)
	if ok, _ := limiter.Allow(ctx, "10.0.0.1"); !ok {
		t.Fatalf("expected counter reset after window")
	}
}

func TestNotifierPublishesAcrossSubscribers(t *testing.T) {
	_, client := newClient(t)
	publisher := NewNotifier(client)
	listener := NewNotifier(client)
	ctx, cancel := context.WithCancel(context.Background())

	events, err := listener.Subscribe(ctx)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if err := publisher.Publish(context.Background()); err != nil {
		t.Fatalf("publish: %v", err)
	}

	select {
	case <-events:
	case <-time.After(2 * time.Second):
		t.Fatalf("expected event from %s", LeaderboardChannel)
	}

	cancel()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-events:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatalf("expected channel closed after cancel")
		}
	}
}
