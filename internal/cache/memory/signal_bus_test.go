package memory

import (
	"context"
	"testing"
	"time"
)

func TestPublishMatchesPatterns(t *testing.T) {
	b := NewSignalBus(0)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	exact, _ := b.Subscribe(ctx, "venuebot:alerts")
	all, _ := b.Subscribe(ctx, "venuebot:*")

	if err := b.Publish(ctx, "venuebot:alerts", []byte("a")); err != nil {
		t.Fatal(err)
	}
	_ = b.Publish(ctx, "venuebot:ticks", []byte("t"))

	if got := string(<-exact); got != "a" {
		t.Fatalf("exact got %s", got)
	}
	if got := string(<-all); got != "a" {
		t.Fatalf("pattern first got %s", got)
	}
	if got := string(<-all); got != "t" {
		t.Fatalf("pattern second got %s", got)
	}
	select {
	case m := <-exact:
		t.Fatalf("exact subscriber received %s", m)
	default:
	}
}

func TestSubscriptionClosesOnCancel(t *testing.T) {
	b := NewSignalBus(0)
	ctx, cancel := context.WithCancel(context.Background())
	ch, _ := b.Subscribe(ctx, "x")
	cancel()

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("unexpected message")
		}
	case <-time.After(time.Second):
		t.Fatal("channel not closed")
	}
	// Publishing after close must not panic.
	_ = b.Publish(context.Background(), "x", []byte("late"))
}

func TestStreamTrimAndRead(t *testing.T) {
	b := NewSignalBus(3)
	ctx := context.Background()
	for _, p := range []string{"1", "2", "3", "4", "5"} {
		if err := b.StreamAppend(ctx, "s", []byte(p)); err != nil {
			t.Fatal(err)
		}
	}

	all, err := b.StreamRead(ctx, "s", "0", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 || string(all[0].Payload) != "3" {
		t.Fatalf("entries = %+v", all)
	}

	next, _ := b.StreamRead(ctx, "s", all[0].ID, 1)
	if len(next) != 1 || string(next[0].Payload) != "4" {
		t.Fatalf("after %s: %+v", all[0].ID, next)
	}
	if none, _ := b.StreamRead(ctx, "missing", "0", 10); none != nil {
		t.Fatalf("missing stream = %+v", none)
	}
}
