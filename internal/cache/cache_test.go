package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/jo-hoe/goinfer/internal/detect"
)

func newTestCache(t *testing.T) (Cache, *miniredis.Miniredis) {
	t.Helper()
	server := miniredis.RunT(t)
	c := NewRedis(server.Addr(), time.Minute)
	t.Cleanup(func() {
		_ = c.Close()
	})
	return c, server
}

func TestRoundTrip(t *testing.T) {
	c, _ := newTestCache(t)

	detections := []detect.Detection{
		{Box: detect.Box{X1: 1, Y1: 2, X2: 3, Y2: 4}, Score: 0.8, Label: 2, Color: "green"},
	}
	key := Key([]byte("image-bytes"))

	if _, hit, err := c.Get(context.Background(), key); err != nil || hit {
		t.Fatalf("expected clean miss, got hit=%v err=%v", hit, err)
	}

	if err := c.Set(context.Background(), key, detections); err != nil {
		t.Fatalf("Set error: %v", err)
	}

	got, hit, err := c.Get(context.Background(), key)
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if !hit {
		t.Fatalf("expected hit after Set")
	}
	if len(got) != 1 || got[0].Color != "green" || got[0].Score != 0.8 {
		t.Errorf("round trip mismatch: %+v", got)
	}
}

func TestEntriesExpire(t *testing.T) {
	c, server := newTestCache(t)

	key := Key([]byte("short-lived"))
	if err := c.Set(context.Background(), key, nil); err != nil {
		t.Fatalf("Set error: %v", err)
	}

	server.FastForward(2 * time.Minute)

	if _, hit, err := c.Get(context.Background(), key); err != nil || hit {
		t.Errorf("expected miss after expiry, got hit=%v err=%v", hit, err)
	}
}

func TestCorruptEntryIsAMiss(t *testing.T) {
	c, server := newTestCache(t)

	key := Key([]byte("corrupt"))
	if err := server.Set(key, "{not json"); err != nil {
		t.Fatalf("failed to seed corrupt entry: %v", err)
	}

	_, hit, err := c.Get(context.Background(), key)
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if hit {
		t.Errorf("corrupt entry reported as hit")
	}
}

func TestKey_IsContentDerived(t *testing.T) {
	a := Key([]byte("same"))
	b := Key([]byte("same"))
	other := Key([]byte("different"))

	if a != b {
		t.Errorf("identical content produced different keys")
	}
	if a == other {
		t.Errorf("different content produced identical keys")
	}
}

func TestDisabledCache(t *testing.T) {
	c := NewDisabled()
	if err := c.Set(context.Background(), "k", nil); err != nil {
		t.Fatalf("Set error: %v", err)
	}
	if _, hit, err := c.Get(context.Background(), "k"); err != nil || hit {
		t.Errorf("disabled cache must never hit, got hit=%v err=%v", hit, err)
	}
	if err := c.Close(); err != nil {
		t.Errorf("Close error: %v", err)
	}
}
