package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Eddie-Kan/research-archive-website-sub001/internal/db"
)

func TestHashRoundTrip(t *testing.T) {
	s := New()
	ctx := context.Background()

	if err := s.HSet(ctx, "h", map[string]string{"a": "1"}); err != nil {
		t.Fatal(err)
	}
	_ = s.HSet(ctx, "h", map[string]string{"b": "2"})

	m, err := s.HGetAll(ctx, "h")
	if err != nil {
		t.Fatal(err)
	}
	if m["a"] != "1" || m["b"] != "2" {
		t.Errorf("got %v", m)
	}

	m["a"] = "mutated"
	again, _ := s.HGetAll(ctx, "h")
	if again["a"] != "1" {
		t.Error("HGetAll must return a copy")
	}
}

func TestMulti(t *testing.T) {
	s := New()
	ctx := context.Background()
	_ = s.HSet(ctx, "k1", map[string]string{"f": "a"})
	_ = s.HSet(ctx, "k2", map[string]string{"f": "b"})
	got, _ := s.HGetAllMulti(ctx, []string{"k1", "zz", "k2"})
	if got[0]["f"] != "a" || len(got[1]) != 0 || got[2]["f"] != "b" {
		t.Errorf("got %v", got)
	}
}

func TestTTL(t *testing.T) {
	s := New()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }
	ctx := context.Background()

	_ = s.SetWithTTL(ctx, "k", []byte("v"), time.Minute)
	if _, err := s.Get(ctx, "k"); err != nil {
		t.Fatalf("fresh value: %v", err)
	}

	now = now.Add(time.Minute)
	if _, err := s.Get(ctx, "k"); !errors.Is(err, db.ErrKeyNotFound) {
		t.Errorf("expected expiry, got %v", err)
	}
	keys, _ := s.Scan(ctx, "*")
	if len(keys) != 0 {
		t.Errorf("expired key scanned: %v", keys)
	}
}

func TestSweepReclaimsExpired(t *testing.T) {
	s := New()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }
	ctx := context.Background()

	_ = s.SetWithTTL(ctx, "old", []byte("v"), time.Second)
	now = now.Add(time.Hour)
	for i := 0; i < sweepEvery; i++ {
		_ = s.Set(ctx, "k", []byte("v"))
	}
	if _, ok := s.values["old"]; ok {
		t.Error("expired entry not reclaimed")
	}
}

func TestScanAndDel(t *testing.T) {
	s := New()
	ctx := context.Background()
	_ = s.HSet(ctx, "archive:emb:v1:a", map[string]string{"f": "v"})
	_ = s.HSet(ctx, "archive:emb:v2:a", map[string]string{"f": "v"})
	_ = s.Set(ctx, "other", []byte("v"))

	keys, err := s.Scan(ctx, "archive:emb:*:a")
	if err != nil {
		t.Fatal(err)
	}
	if len(keys) != 2 || keys[0] != "archive:emb:v1:a" || keys[1] != "archive:emb:v2:a" {
		t.Fatalf("got %v", keys)
	}

	if err := s.Del(ctx, keys...); err != nil {
		t.Fatal(err)
	}
	left, _ := s.Scan(ctx, "*")
	if len(left) != 1 || left[0] != "other" {
		t.Errorf("got %v", left)
	}
}

func TestScan_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := New().Scan(ctx, "*"); !errors.Is(err, context.Canceled) {
		t.Errorf("expected canceled, got %v", err)
	}
}

func TestClosed(t *testing.T) {
	s := New()
	s.Close()
	ctx := context.Background()
	if err := s.Ping(ctx); !errors.Is(err, db.ErrClosed) {
		t.Errorf("Ping: %v", err)
	}
	if err := s.Set(ctx, "k", nil); !errors.Is(err, db.ErrClosed) {
		t.Errorf("Set: %v", err)
	}
}
