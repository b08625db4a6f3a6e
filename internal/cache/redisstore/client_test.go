package redisstore

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"

	"github.com/mohammed-shakir/knownlayers/internal/cache/keys"
)

// creates new client connected to miniredis for testing
func newMini(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	t.Cleanup(cancel)

	rc, err := New(ctx, mr.Addr())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = rc.Close() })
	return rc, mr
}

func TestMSetMGetDel_HappyPath_AndMGetFiltersMissing(t *testing.T) {
	rc, _ := newMini(t)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	err := rc.MSet(ctx, map[string][]byte{"k1": []byte("v1"), "k2": []byte("v2")}, 5*time.Minute)
	if err != nil {
		t.Fatalf("MSet: %v", err)
	}

	got, err := rc.MGet(ctx, []string{"k1", "k2", "missing"})
	if err != nil {
		t.Fatalf("MGet: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("MGet size=%d want 2", len(got))
	}
	if string(got["k1"]) != "v1" || string(got["k2"]) != "v2" {
		t.Fatalf("unexpected values: %+v", got)
	}

	if err := rc.Del(ctx, "k1"); err != nil {
		t.Fatalf("Del: %v", err)
	}
	got, err = rc.MGet(ctx, []string{"k1", "k2"})
	if err != nil {
		t.Fatalf("MGet: %v", err)
	}
	if _, ok := got["k1"]; ok || len(got) != 1 {
		t.Fatalf("k1 should be gone; got=%v", got)
	}
}

func TestEmptyInputs_AreNoops(t *testing.T) {
	rc, _ := newMini(t)
	ctx := context.Background()

	got, err := rc.MGet(ctx, nil)
	if err != nil || len(got) != 0 {
		t.Fatalf("MGet(nil)=%v,%v", got, err)
	}
	if err := rc.MSet(ctx, nil, time.Minute); err != nil {
		t.Fatalf("MSet(nil): %v", err)
	}
	if err := rc.Del(ctx); err != nil {
		t.Fatalf("Del(): %v", err)
	}
}

func TestTTLExpiry_MGetFiltersExpired(t *testing.T) {
	rc, mr := newMini(t)
	ctx := context.Background()

	if err := rc.MSet(ctx, map[string][]byte{"ttl-key": []byte("v")}, 2*time.Second); err != nil {
		t.Fatalf("MSet: %v", err)
	}
	got, err := rc.MGet(ctx, []string{"ttl-key"})
	if err != nil || string(got["ttl-key"]) != "v" {
		t.Fatalf("pre expiry got=%v err=%v", got, err)
	}

	mr.FastForward(3 * time.Second)

	got, err = rc.MGet(ctx, []string{"ttl-key"})
	if err != nil {
		t.Fatalf("MGet: %v", err)
	}
	if _, ok := got["ttl-key"]; ok {
		t.Fatalf("expected ttl-key to be absent after expiry; got=%v", got)
	}
}

func TestContextCanceled_IsRespected(t *testing.T) {
	rc, _ := newMini(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := rc.MSet(ctx, map[string][]byte{"k": []byte("v")}, time.Second); err == nil {
		t.Fatalf("expected error on MSet with canceled context")
	}
	if _, err := rc.MGet(ctx, []string{"k"}); err == nil {
		t.Fatalf("expected error on MGet with canceled context")
	}
	if err := rc.Del(ctx, "k"); err == nil {
		t.Fatalf("expected error on Del with canceled context")
	}
}

func TestNew_Errors(t *testing.T) {
	if _, err := New(context.Background(), ""); err == nil {
		t.Fatalf("expected error for empty address")
	}
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	addr := mr.Addr()
	mr.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if _, err := New(ctx, addr, WithTimeouts(100*time.Millisecond, 100*time.Millisecond)); err == nil {
		t.Fatalf("expected ping error for closed server")
	}
}

func TestPurgeStale_KeepsCurrentVersion(t *testing.T) {
	rc, mr := newMini(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	kv := map[string][]byte{
		keys.RecordKey("v1", "a"): []byte("old"),
		keys.RecordKey("v1", "b"): []byte("old"),
		keys.RecordKey("v2", "a"): []byte("new"),
		"unrelated":               []byte("x"),
	}
	if err := rc.MSet(ctx, kv, 0); err != nil {
		t.Fatalf("MSet: %v", err)
	}

	n, err := rc.PurgeStale(ctx, "v2")
	if err != nil {
		t.Fatalf("PurgeStale: %v", err)
	}
	if n != 2 {
		t.Fatalf("removed=%d want 2", n)
	}
	if mr.Exists(keys.RecordKey("v1", "a")) || mr.Exists(keys.RecordKey("v1", "b")) {
		t.Fatalf("stale entries survived")
	}
	if !mr.Exists(keys.RecordKey("v2", "a")) || !mr.Exists("unrelated") {
		t.Fatalf("current or foreign keys removed")
	}

	n, err = rc.PurgeStale(ctx, "v2")
	if err != nil || n != 0 {
		t.Fatalf("second purge removed=%d err=%v want 0,nil", n, err)
	}
}

func TestWithDB_SelectsDatabase(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	rc, err := New(ctx, mr.Addr(), WithDB(3), WithPoolSize(2))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer func() { _ = rc.Close() }()

	if err := rc.MSet(ctx, map[string][]byte{"k": []byte("v")}, 0); err != nil {
		t.Fatalf("MSet: %v", err)
	}
	if got, err := mr.DB(3).Get("k"); err != nil || got != "v" {
		t.Fatalf("db 3 k=%q err=%v want v", got, err)
	}
	if mr.Exists("k") {
		t.Fatalf("key written to db 0")
	}
}
