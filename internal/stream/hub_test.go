package stream

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestHubBroadcast(t *testing.T) {
	hub := NewHub(nil)
	client := hub.Register("device-1")
	defer hub.Unregister(client)

	payload := []byte("hello")
	hub.Broadcast("device-1", payload)

	select {
	case msg := <-client.Send:
		if string(msg) != "hello" {
			t.Fatalf("unexpected message")
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatalf("timeout waiting for message")
	}
}

func TestHubHelpers(t *testing.T) {
	ch := redisChannel("abc")
	if ch != "explore:abc:feed" {
		t.Fatalf("unexpected channel %q", ch)
	}
	if deviceIDFromChannel(ch) != "abc" {
		t.Fatalf("unexpected device id")
	}
	if deviceIDFromChannel("bad") != "" {
		t.Fatalf("expected empty device id")
	}
}

func TestUnregisterCloses(t *testing.T) {
	hub := NewHub(nil)
	client := hub.Register("device-2")
	hub.Unregister(client)
	_, ok := <-client.Send
	if ok {
		t.Fatalf("expected channel closed")
	}
}

func TestHubRedisBroadcast(t *testing.T) {
	s := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	defer client.Close()

	hub := NewHub(client)
	ws := hub.Register("device-redis")
	defer hub.Unregister(ws)

	waitForPatternSubscription(t, client)

	hub.Broadcast("device-redis", []byte("ping"))

	select {
	case msg := <-ws.Send:
		if string(msg) != "ping" {
			t.Fatalf("unexpected message")
		}
	case <-time.After(time.Second):
		t.Fatalf("timeout waiting for bridged fan-out")
	}

	// The bridge is the only delivery path; a second copy means the
	// broadcast also fanned out locally before publishing.
	select {
	case msg := <-ws.Send:
		t.Fatalf("duplicate delivery: %q", msg)
	case <-time.After(100 * time.Millisecond):
	}
}

func waitForPatternSubscription(t *testing.T, client *redis.Client) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		n, err := client.PubSubNumPat(context.Background()).Result()
		if err == nil && n > 0 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("pattern subscription never established")
}

func TestBroadcastDuringUnregister(t *testing.T) {
	hub := NewHub(nil)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 500; i++ {
			c := hub.Register("device-4")
			hub.Unregister(c)
		}
	}()

	// Sends hold the read lock, so none can land on a closed channel.
	for i := 0; i < 500; i++ {
		hub.Broadcast("device-4", []byte("x"))
	}
	<-done
}

func TestBroadcastDropsWhenFull(t *testing.T) {
	hub := NewHub(nil)
	client := hub.Register("device-3")
	defer hub.Unregister(client)

	for i := 0; i < 100; i++ {
		hub.Broadcast("device-3", []byte("x"))
	}
	// Buffer is 64; the rest are dropped rather than blocking the sender.
	if len(client.Send) != 64 {
		t.Fatalf("expected full buffer, got %d", len(client.Send))
	}
}
