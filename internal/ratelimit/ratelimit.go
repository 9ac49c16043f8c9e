// Package ratelimit implements fixed-window request admission on top
// of the in-process cache store. Each (identifier, endpoint class)
// pair owns one counter whose TTL is the window length; when the
// window elapses the counter vanishes and the next request starts a
// fresh window at 1.
//
// The limiter fails open: a counter store fault admits the request
// and is logged, never surfaced. Rate limiting must not be the reason
// real traffic is dropped during an internal fault.
package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/skillforge/skillforge/internal/cache"
	"github.com/skillforge/skillforge/internal/logging"
	"github.com/skillforge/skillforge/internal/metrics"
)

// Error is the rejection reported when a caller exhausts its window
// budget. It carries everything the transport needs for the 429
// response.
type Error struct {
	Class      Class
	RetryAfter time.Duration
	Limit      int
	Remaining  int
	ResetTime  time.Time
}

func (e *Error) Error() string {
	return fmt.Sprintf("rate limit exceeded for %s: retry after %s", e.Class, e.RetryAfter)
}

// Result describes an admission decision.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	Reset     time.Time
	Window    time.Duration
}

// Limiter decides request admission using fixed-window counters.
type Limiter struct {
	store    *cache.Store
	policies Policies
}

// New creates a limiter over store with the given policy table.
func New(store *cache.Store, policies Policies) *Limiter {
	return &Limiter{store: store, policies: policies}
}

func counterKey(identifier string, class Class) string {
	return "ratelimit:" + identifier + ":" + string(class)
}

// Allow decides admission for one request. On rejection the returned
// error is a *Error carrying retry metadata; the Result headers are
// valid in both cases. Store faults admit the request.
func (l *Limiter) Allow(ctx context.Context, identifier string, class Class, authenticated bool) (Result, error) {
	pol := l.policies.Lookup(class, authenticated)
	key := counterKey(identifier, class)
	now := time.Now()

	failOpen := func(err error) Result {
		logging.Op().Warn("rate limit check failed, admitting request",
			"identifier", identifier, "class", class, "error", err)
		metrics.RecordRateLimit(string(class), "fail_open")
		return Result{
			Allowed:   true,
			Limit:     pol.Max,
			Remaining: pol.Max - 1,
			Reset:     now.Add(pol.Window),
			Window:    pol.Window,
		}
	}

	raw, err := l.store.Get(key)
	switch err {
	case nil:
	case cache.ErrNotFound:
		// First request of a fresh window.
		if err := l.store.Set(key, []byte("1"), pol.Window); err != nil {
			return failOpen(err), nil
		}
		metrics.RecordRateLimit(string(class), "admit")
		return Result{
			Allowed:   true,
			Limit:     pol.Max,
			Remaining: clampRemaining(pol.Max, 0),
			Reset:     now.Add(pol.Window),
			Window:    pol.Window,
		}, nil
	default:
		return failOpen(err), nil
	}

	count, perr := parseCount(raw)
	if perr != nil {
		return failOpen(perr), nil
	}

	if count >= pol.Max {
		remainingTTL, terr := l.store.TTL(key)
		if terr != nil || remainingTTL < 0 {
			remainingTTL = 0
		}
		retryAfter := pol.Window - time.Duration(remainingTTL)*time.Second
		if retryAfter < 0 {
			retryAfter = 0
		}
		reset := now.Add(pol.Window)
		metrics.RecordRateLimit(string(class), "reject")
		return Result{
				Allowed:   false,
				Limit:     pol.Max,
				Remaining: 0,
				Reset:     reset,
				Window:    pol.Window,
			}, &Error{
				Class:      class,
				RetryAfter: retryAfter,
				Limit:      pol.Max,
				Remaining:  0,
				ResetTime:  reset,
			}
	}

	if _, err := l.store.Incr(key); err != nil {
		return failOpen(err), nil
	}
	metrics.RecordRateLimit(string(class), "admit")
	return Result{
		Allowed:   true,
		Limit:     pol.Max,
		Remaining: clampRemaining(pol.Max, count),
		Reset:     now.Add(pol.Window),
		Window:    pol.Window,
	}, nil
}

// clampRemaining computes max - preCount - 1, floored at 0.
func clampRemaining(max, preCount int) int {
	remaining := max - preCount - 1
	if remaining < 0 {
		return 0
	}
	return remaining
}

func parseCount(raw []byte) (int, error) {
	n, err := strconv.Atoi(string(raw))
	if err != nil {
		return 0, fmt.Errorf("parse counter: %w", err)
	}
	return n, nil
}
