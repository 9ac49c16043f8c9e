package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/skillforge/skillforge/internal/logging"
	"github.com/skillforge/skillforge/internal/metrics"
)

// DefaultTTL is applied by the Facade when Options.TTL is zero.
const DefaultTTL = time.Hour

// Options controls Facade key namespacing and encoding.
type Options struct {
	// TTL for stored values. Zero means DefaultTTL.
	TTL time.Duration

	// KeyPrefix namespaces keys as "prefix:key" when non-empty.
	KeyPrefix string

	// Raw disables JSON serialization; values must be string or
	// []byte. The zero value (serialize) is what nearly every caller
	// wants.
	Raw bool
}

// Facade is the cache-aside layer over Store used by read-heavy
// paths. It namespaces keys, JSON-encodes values, deduplicates
// concurrent misses per key, and fails open when the store itself
// errors: the caller's factory runs directly and the result is
// returned uncached.
type Facade struct {
	store *Store
	group singleflight.Group
}

// NewFacade wraps store.
func NewFacade(store *Store) *Facade {
	return &Facade{store: store}
}

// Store exposes the underlying store for components that need the
// primitive counter and TTL operations.
func (f *Facade) Store() *Store {
	return f.store
}

func (f *Facade) fullKey(key string, opts Options) string {
	if opts.KeyPrefix == "" {
		return key
	}
	return opts.KeyPrefix + ":" + key
}

// Get loads the value for key into dest (a pointer when serializing).
// It returns false on a miss. Store errors fail open to a miss.
func (f *Facade) Get(ctx context.Context, key string, dest any, opts Options) (bool, error) {
	full := f.fullKey(key, opts)
	raw, err := f.store.Get(full)
	if err == ErrNotFound {
		metrics.RecordCacheMiss()
		return false, nil
	}
	if err != nil {
		metrics.RecordCacheMiss()
		logging.Op().Warn("cache get failed, treating as miss", "key", full, "error", err)
		return false, nil
	}
	if err := decode(raw, dest, opts); err != nil {
		// Stale encoding counts as a miss; drop the entry so the next
		// write replaces it.
		metrics.RecordCacheMiss()
		logging.Op().Warn("cache decode failed, dropping entry", "key", full, "error", err)
		_, _ = f.store.Del(full)
		return false, nil
	}
	metrics.RecordCacheHit()
	return true, nil
}

// Set stores value under key with the configured TTL. Store errors are
// logged, never propagated.
func (f *Facade) Set(ctx context.Context, key string, value any, opts Options) error {
	full := f.fullKey(key, opts)
	raw, err := encode(value, opts)
	if err != nil {
		return err
	}
	ttl := opts.TTL
	if ttl == 0 {
		ttl = DefaultTTL
	}
	if err := f.store.Set(full, raw, ttl); err != nil {
		logging.Op().Warn("cache set failed", "key", full, "error", err)
	}
	return nil
}

// Del removes key.
func (f *Facade) Del(ctx context.Context, key string, opts Options) {
	full := f.fullKey(key, opts)
	if _, err := f.store.Del(full); err != nil {
		logging.Op().Warn("cache delete failed", "key", full, "error", err)
	}
}

// DelPattern removes every key matching pattern (after prefixing) and
// returns the number removed. Used for bulk invalidation after writes.
func (f *Facade) DelPattern(ctx context.Context, pattern string, opts Options) int {
	full := f.fullKey(pattern, opts)
	keys, err := f.store.Keys(full)
	if err != nil {
		logging.Op().Warn("cache pattern scan failed", "pattern", full, "error", err)
		return 0
	}
	removed, err := f.store.DelMultiple(keys)
	if err != nil {
		logging.Op().Warn("cache pattern delete failed", "pattern", full, "error", err)
		return 0
	}
	return removed
}

// GetOrSet returns the cached value for key, or invokes factory on a
// miss and caches its result. Concurrent misses for the same key are
// collapsed into a single factory call. Factory errors propagate to
// the caller unmodified; store errors fail open to a direct factory
// call whose result is returned uncached.
func GetOrSet[T any](ctx context.Context, f *Facade, key string, factory func(context.Context) (T, error), opts Options) (T, error) {
	var cached T
	if found, _ := f.Get(ctx, key, &cached, opts); found {
		return cached, nil
	}

	full := f.fullKey(key, opts)
	v, err, _ := f.group.Do(full, func() (any, error) {
		// Re-check under the flight: a concurrent caller may have
		// populated the key while we waited.
		var again T
		if found, _ := f.Get(ctx, key, &again, opts); found {
			return again, nil
		}
		val, err := factory(ctx)
		if err != nil {
			return nil, err
		}
		_ = f.Set(ctx, key, val, opts)
		return val, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	out, ok := v.(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf("cache: unexpected type %T for key %s", v, full)
	}
	return out, nil
}

func encode(value any, opts Options) ([]byte, error) {
	if !opts.Raw {
		return json.Marshal(value)
	}
	switch v := value.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return nil, fmt.Errorf("cache: raw mode requires string or []byte, got %T", value)
	}
}

func decode(raw []byte, dest any, opts Options) error {
	if !opts.Raw {
		return json.Unmarshal(raw, dest)
	}
	switch d := dest.(type) {
	case *[]byte:
		*d = raw
		return nil
	case *string:
		*d = string(raw)
		return nil
	default:
		return fmt.Errorf("cache: raw mode requires *string or *[]byte, got %T", dest)
	}
}
