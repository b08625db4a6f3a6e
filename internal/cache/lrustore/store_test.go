package lrustore

import (
	"context"
	"testing"
	"time"
)

func TestMSetMGetDel(t *testing.T) {
	s := New(8, 0)
	ctx := context.Background()

	if err := s.MSet(ctx, map[string][]byte{"a": []byte("1"), "b": []byte("2")}, 0); err != nil {
		t.Fatalf("MSet: %v", err)
	}
	got, err := s.MGet(ctx, []string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("MGet: %v", err)
	}
	if len(got) != 2 || string(got["a"]) != "1" || string(got["b"]) != "2" {
		t.Fatalf("unexpected values: %v", got)
	}
	if err := s.Del(ctx, "a", "missing"); err != nil {
		t.Fatalf("Del: %v", err)
	}
	got, _ = s.MGet(ctx, []string{"a", "b"})
	if _, ok := got["a"]; ok || len(got) != 1 {
		t.Fatalf("a should be gone: %v", got)
	}
}

func TestMSet_CopiesValue(t *testing.T) {
	s := New(2, 0)
	v := []byte("x")
	_ = s.MSet(context.Background(), map[string][]byte{"k": v}, 0)
	v[0] = 'y'
	got, _ := s.MGet(context.Background(), []string{"k"})
	if string(got["k"]) != "x" {
		t.Fatalf("stored value aliased caller slice: %q", got["k"])
	}
}

func TestEvictsLeastRecentlyUsed(t *testing.T) {
	s := New(2, 0)
	ctx := context.Background()
	_ = s.MSet(ctx, map[string][]byte{"a": []byte("1")}, 0)
	_ = s.MSet(ctx, map[string][]byte{"b": []byte("2")}, 0)
	_, _ = s.MGet(ctx, []string{"a"}) // a is now most recent
	_ = s.MSet(ctx, map[string][]byte{"c": []byte("3")}, 0)

	got, _ := s.MGet(ctx, []string{"a", "b", "c"})
	if _, ok := got["b"]; ok {
		t.Fatalf("b should have been evicted: %v", got)
	}
	if len(got) != 2 || s.Len() != 2 {
		t.Fatalf("got=%v len=%d", got, s.Len())
	}
}

func TestPerWriteTTL(t *testing.T) {
	s := New(4, 0)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }
	ctx := context.Background()

	_ = s.MSet(ctx, map[string][]byte{"short": []byte("1")}, time.Second)
	_ = s.MSet(ctx, map[string][]byte{"forever": []byte("2")}, 0)

	now = now.Add(2 * time.Second)
	got, _ := s.MGet(ctx, []string{"short", "forever"})
	if _, ok := got["short"]; ok {
		t.Fatalf("short should have expired: %v", got)
	}
	if string(got["forever"]) != "2" {
		t.Fatalf("forever missing: %v", got)
	}
}

func TestCanceledContext(t *testing.T) {
	s := New(2, 0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.MGet(ctx, []string{"k"}); err == nil {
		t.Fatalf("expected error on MGet")
	}
	if err := s.MSet(ctx, map[string][]byte{"k": nil}, 0); err == nil {
		t.Fatalf("expected error on MSet")
	}
	if err := s.Del(ctx, "k"); err == nil {
		t.Fatalf("expected error on Del")
	}
}
