package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/skillforge/skillforge/internal/cache"
)

func testPolicies(max int, window time.Duration) Policies {
	return Policies{
		Anonymous:     map[Class]Policy{ClassRead: {Max: max, Window: window}},
		Authenticated: map[Class]Policy{ClassRead: {Max: max * 2, Window: window}},
		Fallback:      Policy{Max: max, Window: window},
	}
}

func TestLimiter_AdmitsUntilMax(t *testing.T) {
	s := cache.New(cache.StoreOptions{SweepInterval: -1})
	defer s.Close()
	l := New(s, testPolicies(5, time.Minute))
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		result, err := l.Allow(ctx, "ip:10.0.0.1", ClassRead, false)
		if err != nil {
			t.Fatalf("request %d: unexpected rejection: %v", i, err)
		}
		if !result.Allowed {
			t.Fatalf("request %d should be admitted", i)
		}
		if result.Limit != 5 {
			t.Fatalf("expected limit 5, got %d", result.Limit)
		}
	}

	result, err := l.Allow(ctx, "ip:10.0.0.1", ClassRead, false)
	if result.Allowed {
		t.Fatal("6th request must be rejected")
	}
	var rejected *Error
	if !errors.As(err, &rejected) {
		t.Fatalf("expected *Error, got %v", err)
	}
	if rejected.Remaining != 0 {
		t.Fatalf("expected remaining 0, got %d", rejected.Remaining)
	}
	if rejected.RetryAfter < 0 || rejected.RetryAfter > time.Minute {
		t.Fatalf("retryAfter out of window bounds: %s", rejected.RetryAfter)
	}
	if rejected.Limit != 5 {
		t.Fatalf("expected limit 5 on rejection, got %d", rejected.Limit)
	}
}

func TestLimiter_RemainingCountsDown(t *testing.T) {
	s := cache.New(cache.StoreOptions{SweepInterval: -1})
	defer s.Close()
	l := New(s, testPolicies(3, time.Minute))
	ctx := context.Background()

	want := []int{2, 1, 0}
	for i, expect := range want {
		result, err := l.Allow(ctx, "ip:1.2.3.4", ClassRead, false)
		if err != nil {
			t.Fatalf("request %d rejected: %v", i+1, err)
		}
		if result.Remaining != expect {
			t.Fatalf("request %d: expected remaining %d, got %d", i+1, expect, result.Remaining)
		}
	}
}

func TestLimiter_WindowResets(t *testing.T) {
	s := cache.New(cache.StoreOptions{SweepInterval: -1})
	defer s.Close()
	l := New(s, testPolicies(1, 20*time.Millisecond))
	ctx := context.Background()

	if result, _ := l.Allow(ctx, "ip:9.9.9.9", ClassRead, false); !result.Allowed {
		t.Fatal("first request must be admitted")
	}
	if result, _ := l.Allow(ctx, "ip:9.9.9.9", ClassRead, false); result.Allowed {
		t.Fatal("second request in window must be rejected")
	}

	time.Sleep(30 * time.Millisecond)

	if result, _ := l.Allow(ctx, "ip:9.9.9.9", ClassRead, false); !result.Allowed {
		t.Fatal("request after window elapsed must start a fresh window")
	}
}

func TestLimiter_IdentifiersAreIndependent(t *testing.T) {
	s := cache.New(cache.StoreOptions{SweepInterval: -1})
	defer s.Close()
	l := New(s, testPolicies(1, time.Minute))
	ctx := context.Background()

	l.Allow(ctx, "ip:a", ClassRead, false)
	if result, _ := l.Allow(ctx, "ip:b", ClassRead, false); !result.Allowed {
		t.Fatal("another identifier must have its own window")
	}
}

func TestLimiter_AuthenticatedGetsHigherBudget(t *testing.T) {
	s := cache.New(cache.StoreOptions{SweepInterval: -1})
	defer s.Close()
	l := New(s, testPolicies(1, time.Minute))
	ctx := context.Background()

	// Anonymous budget is 1, authenticated is 2.
	l.Allow(ctx, "user:u1", ClassRead, true)
	if result, _ := l.Allow(ctx, "user:u1", ClassRead, true); !result.Allowed {
		t.Fatal("authenticated caller should have the larger budget")
	}
	if result, _ := l.Allow(ctx, "user:u1", ClassRead, true); result.Allowed {
		t.Fatal("authenticated budget exhausted")
	}
}

func TestLimiter_FailsOpenOnStoreError(t *testing.T) {
	s := cache.New(cache.StoreOptions{SweepInterval: -1})
	l := New(s, testPolicies(1, time.Minute))
	ctx := context.Background()

	s.Close()

	result, err := l.Allow(ctx, "ip:x", ClassRead, false)
	if err != nil {
		t.Fatalf("fail-open must not reject: %v", err)
	}
	if !result.Allowed {
		t.Fatal("store fault must admit the request")
	}
}

func TestPolicies_Lookup(t *testing.T) {
	p := PoliciesForEnv("production")

	anon := p.Lookup(ClassAuthLogin, false)
	if anon.Max != 5 || anon.Window != 15*time.Minute {
		t.Fatalf("unexpected anonymous login policy: %+v", anon)
	}

	authed := p.Lookup(ClassAuthLogin, true)
	if authed.Max <= anon.Max {
		t.Fatal("authenticated budget should exceed anonymous")
	}

	// Unknown class falls back.
	fb := p.Lookup(Class("unknown"), false)
	if fb != p.Fallback {
		t.Fatalf("expected fallback policy, got %+v", fb)
	}
}

func TestPolicies_DevLooserThanProd(t *testing.T) {
	dev := PoliciesForEnv("development")
	prod := PoliciesForEnv("production")

	for _, class := range []Class{ClassPasswordReset, ClassUpload, ClassWrite, ClassRead} {
		if dev.Lookup(class, false).Max < prod.Lookup(class, false).Max {
			t.Fatalf("development %s budget should not be tighter than production", class)
		}
	}
}
