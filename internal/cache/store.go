// Package cache implements the in-process key-value store that backs
// the response cache, the rate limiter counters, and the token
// revocation list. Values are byte slices with optional per-key TTL;
// capacity is bounded with FIFO (insertion-order) eviction.
//
// Expiration is dual: reads lazily treat entries past their deadline
// as absent, and a janitor goroutine periodically purges them so
// write-once keys cannot grow memory unbounded.
package cache

import (
	"container/list"
	"errors"
	"path"
	"strconv"
	"sync"
	"time"
)

// ErrNotFound is returned when a key does not exist or has expired.
var ErrNotFound = errors.New("cache: key not found")

// ErrClosed is returned by all operations after Close.
var ErrClosed = errors.New("cache: store is closed")

// ErrNotInteger is returned by Incr/Decr when the stored value is not
// an integer.
var ErrNotInteger = errors.New("cache: value is not an integer")

const (
	// DefaultMaxSize bounds the number of live entries.
	DefaultMaxSize = 10000

	// DefaultSweepInterval is how often the janitor purges expired
	// entries.
	DefaultSweepInterval = 5 * time.Minute

	// entryOverhead approximates per-entry bookkeeping bytes (map
	// bucket, list element, entry struct) for Stats.ApproxMemory.
	entryOverhead = 96
)

// TTLNone and TTLMissing are the sentinel results of TTL.
const (
	TTLNone    int64 = -1 // key exists and never expires
	TTLMissing int64 = -2 // key absent or expired
)

// StoreOptions configures a Store.
type StoreOptions struct {
	// MaxSize is the entry capacity. Zero means DefaultMaxSize.
	MaxSize int

	// SweepInterval is the janitor period. Zero means
	// DefaultSweepInterval; negative disables the janitor entirely
	// (lazy expiration only).
	SweepInterval time.Duration
}

type entry struct {
	value     []byte
	expiresAt time.Time // zero means no expiry
	elem      *list.Element
}

func (e *entry) expiredAt(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// Store is a bounded, expiring key-value store. All methods are safe
// for concurrent use; each operation holds the store lock for its full
// duration, so read-modify-write primitives like Incr never interleave.
type Store struct {
	mu      sync.Mutex
	entries map[string]*entry
	order   *list.List // insertion order, front = oldest; values are keys
	maxSize int
	memory  int64
	closed  bool
	stop    chan struct{}

	onEvict func(reason string) // optional instrumentation hook
}

// Stats is a point-in-time snapshot of store occupancy.
type Stats struct {
	Size         int   `json:"size"`
	MaxSize      int   `json:"max_size"`
	ApproxMemory int64 `json:"approx_memory_bytes"`
}

// New creates a Store and starts its janitor goroutine. Callers own
// the Store and must Close it to release the janitor.
func New(opts StoreOptions) *Store {
	maxSize := opts.MaxSize
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	sweep := opts.SweepInterval
	if sweep == 0 {
		sweep = DefaultSweepInterval
	}

	s := &Store{
		entries: make(map[string]*entry),
		order:   list.New(),
		maxSize: maxSize,
		stop:    make(chan struct{}),
	}
	if sweep > 0 {
		go s.sweepLoop(sweep)
	}
	return s
}

// OnEvict registers a hook invoked with "expired" or "capacity"
// whenever an entry is removed without an explicit delete. Used for
// metrics; must be set before the store is shared.
func (s *Store) OnEvict(fn func(reason string)) {
	s.mu.Lock()
	s.onEvict = fn
	s.mu.Unlock()
}

// Get returns the value for key, or ErrNotFound if the key is absent
// or expired. An expired entry is purged on access.
func (s *Store) Get(key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}

	e, ok := s.liveEntry(key)
	if !ok {
		return nil, ErrNotFound
	}
	cp := make([]byte, len(e.value))
	copy(cp, e.value)
	return cp, nil
}

// Set stores value under key. A ttl of zero means the entry never
// expires. Inserting a new key at capacity evicts the single
// oldest-inserted entry; overwriting an existing key keeps its
// original insertion position.
func (s *Store) Set(key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = time.Now().Add(ttl)
	}

	cp := make([]byte, len(value))
	copy(cp, value)

	if e, ok := s.entries[key]; ok {
		s.memory += int64(len(cp) - len(e.value))
		e.value = cp
		e.expiresAt = expiresAt
		return nil
	}

	if len(s.entries) >= s.maxSize {
		s.evictOldest()
	}

	e := &entry{value: cp, expiresAt: expiresAt}
	e.elem = s.order.PushBack(key)
	s.entries[key] = e
	s.memory += int64(len(key)+len(cp)) + entryOverhead
	return nil
}

// Del removes key and reports how many entries were removed (0 or 1).
func (s *Store) Del(key string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrClosed
	}
	if _, ok := s.entries[key]; !ok {
		return 0, nil
	}
	s.removeLocked(key)
	return 1, nil
}

// DelMultiple removes every key in keys and returns the number of
// entries actually removed.
func (s *Store) DelMultiple(keys []string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrClosed
	}
	removed := 0
	for _, key := range keys {
		if _, ok := s.entries[key]; ok {
			s.removeLocked(key)
			removed++
		}
	}
	return removed, nil
}

// Exists reports whether key is present and unexpired.
func (s *Store) Exists(key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false, ErrClosed
	}
	_, ok := s.liveEntry(key)
	return ok, nil
}

// Expire sets a new TTL on an existing key. It returns false if the
// key is absent or already expired.
func (s *Store) Expire(key string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false, ErrClosed
	}
	e, ok := s.liveEntry(key)
	if !ok {
		return false, nil
	}
	if ttl > 0 {
		e.expiresAt = time.Now().Add(ttl)
	} else {
		e.expiresAt = time.Time{}
	}
	return true, nil
}

// TTL returns the remaining lifetime of key in whole seconds, TTLNone
// (-1) for a key with no expiry, or TTLMissing (-2) for an absent or
// expired key.
func (s *Store) TTL(key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return TTLMissing, ErrClosed
	}
	e, ok := s.liveEntry(key)
	if !ok {
		return TTLMissing, nil
	}
	if e.expiresAt.IsZero() {
		return TTLNone, nil
	}
	secs := int64(time.Until(e.expiresAt).Seconds())
	if secs < 0 {
		secs = 0
	}
	return secs, nil
}

// Incr increments the integer value stored at key and returns the new
// value. A missing or expired key starts from 0. The key's existing
// TTL, if any, is preserved.
func (s *Store) Incr(key string) (int64, error) {
	return s.addLocked(key, 1)
}

// Decr decrements the integer value stored at key, flooring at 0, and
// returns the new value.
func (s *Store) Decr(key string) (int64, error) {
	return s.addLocked(key, -1)
}

func (s *Store) addLocked(key string, delta int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrClosed
	}

	e, ok := s.liveEntry(key)
	if !ok {
		// Counter resets: a fresh window starts at 0 with no expiry
		// until the caller sets one.
		n := delta
		if n < 0 {
			n = 0
		}
		val := []byte(strconv.FormatInt(n, 10))
		if len(s.entries) >= s.maxSize {
			s.evictOldest()
		}
		ne := &entry{value: val}
		ne.elem = s.order.PushBack(key)
		s.entries[key] = ne
		s.memory += int64(len(key)+len(val)) + entryOverhead
		return n, nil
	}

	cur, err := strconv.ParseInt(string(e.value), 10, 64)
	if err != nil {
		return 0, ErrNotInteger
	}
	cur += delta
	if cur < 0 {
		cur = 0
	}
	val := []byte(strconv.FormatInt(cur, 10))
	s.memory += int64(len(val) - len(e.value))
	e.value = val
	return cur, nil
}

// Keys returns all unexpired keys matching pattern. Patterns use
// path.Match syntax; in practice callers use the "*" wildcard, e.g.
// "leaderboard:*".
func (s *Store) Keys(pattern string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}

	now := time.Now()
	var keys []string
	for key, e := range s.entries {
		if e.expiredAt(now) {
			continue
		}
		ok, err := path.Match(pattern, key)
		if err != nil {
			return nil, err
		}
		if ok {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

// Stats returns current occupancy. Size counts physical entries, so it
// may briefly include expired-but-unswept keys.
func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{
		Size:         len(s.entries),
		MaxSize:      s.maxSize,
		ApproxMemory: s.memory,
	}
}

// Close stops the janitor and releases all entries. Subsequent
// operations return ErrClosed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	close(s.stop)
	s.entries = nil
	s.order.Init()
	s.memory = 0
	return nil
}

// liveEntry returns the entry for key if present and unexpired,
// purging it if the deadline has passed. Callers must hold s.mu.
func (s *Store) liveEntry(key string) (*entry, bool) {
	e, ok := s.entries[key]
	if !ok {
		return nil, false
	}
	if e.expiredAt(time.Now()) {
		s.removeLocked(key)
		if s.onEvict != nil {
			s.onEvict("expired")
		}
		return nil, false
	}
	return e, true
}

// evictOldest removes the oldest-inserted entry to make room for a new
// key. Callers must hold s.mu.
func (s *Store) evictOldest() {
	front := s.order.Front()
	if front == nil {
		return
	}
	s.removeLocked(front.Value.(string))
	if s.onEvict != nil {
		s.onEvict("capacity")
	}
}

func (s *Store) removeLocked(key string) {
	e, ok := s.entries[key]
	if !ok {
		return
	}
	s.order.Remove(e.elem)
	delete(s.entries, key)
	s.memory -= int64(len(key)+len(e.value)) + entryOverhead
}

func (s *Store) sweepLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

// sweep purges every expired entry regardless of read traffic.
func (s *Store) sweep() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	now := time.Now()
	for key, e := range s.entries {
		if e.expiredAt(now) {
			s.removeLocked(key)
			if s.onEvict != nil {
				s.onEvict("expired")
			}
		}
	}
}
