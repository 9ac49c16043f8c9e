package auth

import (
	"context"
	"testing"
	"time"

	"github.com/skillforge/skillforge/internal/cache"
)

func newRevocationFixture(t *testing.T) (*RevocationStore, *cache.Store) {
	t.Helper()
	s := cache.New(cache.StoreOptions{SweepInterval: -1})
	t.Cleanup(func() { _ = s.Close() })
	return NewRevocationStore(s), s
}

func TestRevocation_BlacklistAndCheck(t *testing.T) {
	rs, _ := newRevocationFixture(t)
	ctx := context.Background()

	if rs.IsBlacklisted(ctx, "token-a") {
		t.Fatal("fresh token should not be blacklisted")
	}

	if err := rs.Blacklist(ctx, "token-a", "user-1", 2*time.Hour); err != nil {
		t.Fatalf("blacklist: %v", err)
	}
	if !rs.IsBlacklisted(ctx, "token-a") {
		t.Fatal("blacklisted token should be reported revoked")
	}
	if rs.IsBlacklisted(ctx, "token-b") {
		t.Fatal("other tokens must be unaffected")
	}
}

func TestRevocation_TTLFloor(t *testing.T) {
	rs, s := newRevocationFixture(t)
	ctx := context.Background()

	// A nearly expired token still stays blacklisted for the minimum.
	if err := rs.Blacklist(ctx, "token-a", "user-1", time.Second); err != nil {
		t.Fatalf("blacklist: %v", err)
	}
	ttl, err := s.TTL(revocationPrefix + "token-a")
	if err != nil {
		t.Fatalf("ttl: %v", err)
	}
	if ttl < int64((MinRevocationTTL - time.Minute).Seconds()) {
		t.Fatalf("expected TTL floored near %v, got %v", MinRevocationTTL, ttl)
	}

	if err := rs.Blacklist(ctx, "token-b", "user-1", 5*time.Hour); err != nil {
		t.Fatalf("blacklist: %v", err)
	}
	ttl, err = s.TTL(revocationPrefix + "token-b")
	if err != nil {
		t.Fatalf("ttl: %v", err)
	}
	if ttl <= int64(MinRevocationTTL.Seconds()) {
		t.Fatalf("expected TTL above the floor to be kept, got %v", ttl)
	}
}

func TestRevocation_FailsOpenOnStoreError(t *testing.T) {
	rs, s := newRevocationFixture(t)
	ctx := context.Background()

	if err := rs.Blacklist(ctx, "token-a", "user-1", 2*time.Hour); err != nil {
		t.Fatalf("blacklist: %v", err)
	}
	_ = s.Close()

	if rs.IsBlacklisted(ctx, "token-a") {
		t.Fatal("store fault must fail open to not-revoked")
	}
}

func TestRevocation_BlacklistAll(t *testing.T) {
	rs, s := newRevocationFixture(t)
	ctx := context.Background()

	for _, tok := range []string{"a1", "a2", "a3"} {
		if err := rs.Blacklist(ctx, tok, "user-a", 2*time.Hour); err != nil {
			t.Fatalf("blacklist %s: %v", tok, err)
		}
	}
	if err := rs.Blacklist(ctx, "b1", "user-b", 2*time.Hour); err != nil {
		t.Fatalf("blacklist b1: %v", err)
	}

	n, err := rs.BlacklistAll(ctx, "user-a")
	if err != nil {
		t.Fatalf("blacklist all: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected 3 entries dropped, got %d", n)
	}

	// user-a's entries are gone, user-b's survives.
	for _, tok := range []string{"a1", "a2", "a3"} {
		if rs.IsBlacklisted(ctx, tok) {
			t.Fatalf("entry for %s should have been dropped", tok)
		}
	}
	if !rs.IsBlacklisted(ctx, "b1") {
		t.Fatal("other users' entries must survive")
	}

	// Keys outside the revocation namespace are never touched.
	if err := s.Set("leaderboard:overall:all", []byte("x"), 0); err != nil {
		t.Fatalf("set: %v", err)
	}
	if _, err := rs.BlacklistAll(ctx, "user-b"); err != nil {
		t.Fatalf("blacklist all: %v", err)
	}
	if ok, _ := s.Exists("leaderboard:overall:all"); !ok {
		t.Fatal("unrelated keys must not be deleted")
	}
}

func TestRevocation_BlacklistAllNoMatches(t *testing.T) {
	rs, _ := newRevocationFixture(t)

	n, err := rs.BlacklistAll(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("blacklist all: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected 0, got %d", n)
	}
}
