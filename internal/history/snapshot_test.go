package history

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"backend-fogtrek/internal/stats"
)

func TestSnapshotRoundTrip(t *testing.T) {
	s := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	defer client.Close()

	cache := NewSnapshotCache(client)

	st := stats.State{Initialized: true}
	st.Total.DistanceM = 1234.5
	st.Total.ActiveTimeMs = 60000
	st.CurrentSession.SessionID = "session-1"

	if err := cache.Save(context.Background(), "device-1", st); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, ok, err := cache.Load(context.Background(), "device-1")
	if err != nil || !ok {
		t.Fatalf("load: %v ok=%v", err, ok)
	}
	if loaded.Total.DistanceM != 1234.5 || loaded.CurrentSession.SessionID != "session-1" {
		t.Fatalf("round trip mismatch: %+v", loaded)
	}
}

func TestSnapshotMissing(t *testing.T) {
	s := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	defer client.Close()

	cache := NewSnapshotCache(client)
	_, ok, err := cache.Load(context.Background(), "device-none")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if ok {
		t.Fatalf("expected miss")
	}
}

func TestSnapshotDelete(t *testing.T) {
	s := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	defer client.Close()

	cache := NewSnapshotCache(client)
	if err := cache.Save(context.Background(), "device-1", stats.State{Initialized: true}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := cache.Delete(context.Background(), "device-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	_, ok, _ := cache.Load(context.Background(), "device-1")
	if ok {
		t.Fatalf("expected snapshot gone")
	}
}

func TestSnapshotNilClient(t *testing.T) {
	cache := NewSnapshotCache(nil)
	if err := cache.Save(context.Background(), "device-1", stats.State{}); err != nil {
		t.Fatalf("nil client save: %v", err)
	}
	_, ok, err := cache.Load(context.Background(), "device-1")
	if err != nil || ok {
		t.Fatalf("nil client load: %v ok=%v", err, ok)
	}
	if err := cache.Delete(context.Background(), "device-1"); err != nil {
		t.Fatalf("nil client delete: %v", err)
	}
}
