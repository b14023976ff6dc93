package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
)

func TestKey(t *testing.T) {
	tests := []struct {
		prefix string
		parts  []string
		want   string
	}{
		{"scribe", []string{"record", "🚀"}, "scribe:record:🚀"},
		{"", []string{"record", "🚀"}, "record:🚀"},
		{"scribe", []string{"", "events"}, "scribe:events"},
	}
	for _, tt := range tests {
		if got := Key(tt.prefix, tt.parts...); got != tt.want {
			t.Errorf("Key(%q, %v) = %q, want %q", tt.prefix, tt.parts, got, tt.want)
		}
	}
}

func TestNewClientFromURL(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := NewClientFromURL(context.Background(), "redis://"+mr.Addr()+"/0")
	if err != nil {
		t.Fatalf("NewClientFromURL: %v", err)
	}
	defer client.Close()

	if _, err := NewClientFromURL(context.Background(), ""); err == nil {
		t.Fatal("expected error for empty url")
	}
	if _, err := NewClientFromURL(context.Background(), "http://nope"); err == nil {
		t.Fatal("expected error for bad scheme")
	}
}

type changed struct {
	Label string `json:"label"`
}

func TestTypedPubSubRoundTrip(t *testing.T) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	defer client.Close()

	ps := NewTypedPubSub[changed](client, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ready := make(chan struct{})
	got := make(chan changed, 1)
	go func() {
		_ = ps.Subscribe(ctx, "scribe:records", ready, func(msg changed) { got <- msg })
	}()

	select {
	case <-ready:
	case <-time.After(time.Second):
		t.Fatal("subscription not ready")
	}

	if err := ps.Publish(ctx, "scribe:records", changed{Label: "🚀"}); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	select {
	case msg := <-got:
		if msg.Label != "🚀" {
			t.Fatalf("unexpected message %+v", msg)
		}
	case <-time.After(time.Second):
		t.Fatal("message not delivered")
	}
}
