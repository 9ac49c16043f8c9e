package cache

import (
	"testing"
	"time"
)

func newTestStore(maxSize int) *Store {
	// Janitor disabled; tests exercise lazy expiry and call sweep
	// directly.
	return New(StoreOptions{MaxSize: maxSize, SweepInterval: -1})
}

func TestStore_SetAndGet(t *testing.T) {
	s := newTestStore(0)
	defer s.Close()

	if err := s.Set("key1", []byte("value1"), time.Minute); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	val, err := s.Get("key1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(val) != "value1" {
		t.Fatalf("expected 'value1', got '%s'", string(val))
	}
}

func TestStore_GetMissing(t *testing.T) {
	s := newTestStore(0)
	defer s.Close()

	if _, err := s.Get("nonexistent"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got: %v", err)
	}
}

func TestStore_Expiry(t *testing.T) {
	s := newTestStore(0)
	defer s.Close()

	if err := s.Set("expiring", []byte("value"), 10*time.Millisecond); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	val, err := s.Get("expiring")
	if err != nil {
		t.Fatalf("Get failed immediately after set: %v", err)
	}
	if string(val) != "value" {
		t.Fatalf("expected 'value', got '%s'", string(val))
	}

	time.Sleep(20 * time.Millisecond)

	if _, err := s.Get("expiring"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound after expiry, got: %v", err)
	}
}

func TestStore_NoTTLNeverExpires(t *testing.T) {
	s := newTestStore(0)
	defer s.Close()

	s.Set("forever", []byte("v"), 0)

	ttl, err := s.TTL("forever")
	if err != nil {
		t.Fatalf("TTL failed: %v", err)
	}
	if ttl != TTLNone {
		t.Fatalf("expected TTLNone, got %d", ttl)
	}
	if _, err := s.Get("forever"); err != nil {
		t.Fatalf("Get failed: %v", err)
	}
}

func TestStore_FIFOEviction(t *testing.T) {
	s := newTestStore(2)
	defer s.Close()

	s.Set("a", []byte("1"), 0)
	s.Set("b", []byte("2"), 0)

	// Reading "a" must not protect it: eviction is insertion-order,
	// not recency.
	s.Get("a")

	s.Set("c", []byte("3"), 0)

	if _, err := s.Get("a"); err != ErrNotFound {
		t.Fatalf("expected oldest key 'a' evicted, got: %v", err)
	}
	if v, err := s.Get("b"); err != nil || string(v) != "2" {
		t.Fatalf("expected 'b' to survive, got %q, %v", v, err)
	}
	if v, err := s.Get("c"); err != nil || string(v) != "3" {
		t.Fatalf("expected 'c' present, got %q, %v", v, err)
	}
}

func TestStore_OverwriteKeepsInsertionOrder(t *testing.T) {
	s := newTestStore(2)
	defer s.Close()

	s.Set("a", []byte("1"), 0)
	s.Set("b", []byte("2"), 0)
	s.Set("a", []byte("1b"), 0) // overwrite, not a new insertion
	s.Set("c", []byte("3"), 0)

	// "a" is still the oldest insertion and goes first.
	if _, err := s.Get("a"); err != ErrNotFound {
		t.Fatalf("expected 'a' evicted, got: %v", err)
	}
	if _, err := s.Get("b"); err != nil {
		t.Fatalf("expected 'b' to survive: %v", err)
	}
}

func TestStore_Del(t *testing.T) {
	s := newTestStore(0)
	defer s.Close()

	s.Set("del-key", []byte("value"), time.Minute)

	n, err := s.Del("del-key")
	if err != nil || n != 1 {
		t.Fatalf("expected 1 removed, got %d, %v", n, err)
	}
	n, err = s.Del("del-key")
	if err != nil || n != 0 {
		t.Fatalf("expected 0 removed on second delete, got %d, %v", n, err)
	}
}

func TestStore_DelMultiple(t *testing.T) {
	s := newTestStore(0)
	defer s.Close()

	s.Set("x1", []byte("1"), 0)
	s.Set("x2", []byte("2"), 0)

	n, err := s.DelMultiple([]string{"x1", "x2", "missing"})
	if err != nil || n != 2 {
		t.Fatalf("expected 2 removed, got %d, %v", n, err)
	}
}

func TestStore_Exists(t *testing.T) {
	s := newTestStore(0)
	defer s.Close()

	if ok, _ := s.Exists("missing"); ok {
		t.Fatal("expected missing key to not exist")
	}
	s.Set("present", []byte("v"), time.Minute)
	if ok, _ := s.Exists("present"); !ok {
		t.Fatal("expected present key to exist")
	}
}

func TestStore_Expire(t *testing.T) {
	s := newTestStore(0)
	defer s.Close()

	if ok, _ := s.Expire("missing", time.Minute); ok {
		t.Fatal("Expire on missing key should return false")
	}

	s.Set("k", []byte("v"), 0)
	if ok, _ := s.Expire("k", 30*time.Second); !ok {
		t.Fatal("Expire on live key should return true")
	}
	ttl, _ := s.TTL("k")
	if ttl < 28 || ttl > 30 {
		t.Fatalf("expected TTL ~30s, got %d", ttl)
	}
}

func TestStore_TTLSentinels(t *testing.T) {
	s := newTestStore(0)
	defer s.Close()

	if ttl, _ := s.TTL("missing"); ttl != TTLMissing {
		t.Fatalf("expected TTLMissing for absent key, got %d", ttl)
	}

	s.Set("short", []byte("v"), 10*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	if ttl, _ := s.TTL("short"); ttl != TTLMissing {
		t.Fatalf("expected TTLMissing for expired key, got %d", ttl)
	}
}

func TestStore_IncrDecr(t *testing.T) {
	s := newTestStore(0)
	defer s.Close()

	n, err := s.Incr("counter")
	if err != nil || n != 1 {
		t.Fatalf("Incr on absent key: expected 1, got %d, %v", n, err)
	}
	n, _ = s.Incr("counter")
	if n != 2 {
		t.Fatalf("expected 2, got %d", n)
	}

	n, _ = s.Decr("counter")
	if n != 1 {
		t.Fatalf("expected 1, got %d", n)
	}
	s.Decr("counter")
	n, _ = s.Decr("counter")
	if n != 0 {
		t.Fatalf("Decr must floor at 0, got %d", n)
	}
	n, _ = s.Decr("counter")
	if n != 0 {
		t.Fatalf("Decr at 0 must stay 0, got %d", n)
	}
}

func TestStore_IncrPreservesTTL(t *testing.T) {
	s := newTestStore(0)
	defer s.Close()

	s.Set("windowed", []byte("1"), time.Minute)
	s.Incr("windowed")

	ttl, _ := s.TTL("windowed")
	if ttl < 58 || ttl > 60 {
		t.Fatalf("expected TTL preserved near 60s, got %d", ttl)
	}
}

func TestStore_IncrNonInteger(t *testing.T) {
	s := newTestStore(0)
	defer s.Close()

	s.Set("text", []byte("hello"), 0)
	if _, err := s.Incr("text"); err != ErrNotInteger {
		t.Fatalf("expected ErrNotInteger, got %v", err)
	}
}

func TestStore_Keys(t *testing.T) {
	s := newTestStore(0)
	defer s.Close()

	s.Set("leaderboard:overall:all", []byte("a"), 0)
	s.Set("leaderboard:project:p1:week", []byte("b"), 0)
	s.Set("userrank:u1", []byte("c"), 0)
	s.Set("leaderboard:stale", []byte("d"), 10*time.Millisecond)

	time.Sleep(20 * time.Millisecond)

	keys, err := s.Keys("leaderboard:*")
	if err != nil {
		t.Fatalf("Keys failed: %v", err)
	}
	if len(keys) != 2 {
		t.Fatalf("expected 2 unexpired matches, got %d: %v", len(keys), keys)
	}
	for _, k := range keys {
		if k == "leaderboard:stale" {
			t.Fatal("expired key returned by Keys")
		}
	}
}

func TestStore_Sweep(t *testing.T) {
	s := newTestStore(0)
	defer s.Close()

	s.Set("gone", []byte("v"), 10*time.Millisecond)
	s.Set("stays", []byte("v"), 0)

	time.Sleep(20 * time.Millisecond)
	s.sweep()

	if st := s.Stats(); st.Size != 1 {
		t.Fatalf("expected 1 entry after sweep, got %d", st.Size)
	}
}

func TestStore_Stats(t *testing.T) {
	s := newTestStore(5)
	defer s.Close()

	s.Set("k1", []byte("v1"), 0)
	s.Set("k2", []byte("v2"), 0)

	st := s.Stats()
	if st.Size != 2 {
		t.Fatalf("expected size 2, got %d", st.Size)
	}
	if st.MaxSize != 5 {
		t.Fatalf("expected max size 5, got %d", st.MaxSize)
	}
	if st.ApproxMemory <= 0 {
		t.Fatalf("expected positive memory estimate, got %d", st.ApproxMemory)
	}
}

func TestStore_Close(t *testing.T) {
	s := newTestStore(0)
	s.Set("k", []byte("v"), 0)

	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if _, err := s.Get("k"); err != ErrClosed {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
	if err := s.Set("k", []byte("v"), 0); err != ErrClosed {
		t.Fatalf("expected ErrClosed on Set, got %v", err)
	}
	// Double close is a no-op.
	if err := s.Close(); err != nil {
		t.Fatalf("second Close failed: %v", err)
	}
}

func TestStore_EvictionHook(t *testing.T) {
	s := newTestStore(1)
	defer s.Close()

	var reasons []string
	s.OnEvict(func(reason string) { reasons = append(reasons, reason) })

	s.Set("a", []byte("1"), 0)
	s.Set("b", []byte("2"), 0) // capacity eviction of "a"

	if len(reasons) != 1 || reasons[0] != "capacity" {
		t.Fatalf("expected one capacity eviction, got %v", reasons)
	}
}
