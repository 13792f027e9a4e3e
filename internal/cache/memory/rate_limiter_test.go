package memory

import (
	"context"
	"testing"
	"time"
)

func TestRateLimiterSlidingWindow(t *testing.T) {
	rl := NewRateLimiter()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if ok, _ := rl.Allow(ctx, "k", 3, time.Second); !ok {
			t.Fatalf("request %d denied", i)
		}
	}
	if ok, _ := rl.Allow(ctx, "k", 3, time.Second); ok {
		t.Fatal("fourth request admitted inside the window")
	}
	if ok, _ := rl.Allow(ctx, "other", 3, time.Second); !ok {
		t.Fatal("keys share a window")
	}

	now = now.Add(1001 * time.Millisecond)
	if ok, _ := rl.Allow(ctx, "k", 3, time.Second); !ok {
		t.Fatal("request denied after the window slid")
	}
}

func TestRateLimiterWaitHonoursContext(t *testing.T) {
	rl := NewRateLimiter()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	if err := rl.Wait(ctx, "k", 1, time.Hour); err != nil {
		t.Fatalf("first wait: %v", err)
	}
	if err := rl.Wait(ctx, "k", 1, time.Hour); err == nil {
		t.Fatal("second wait returned before the deadline")
	}
}
