package auth

import (
	"context"
	"time"

	"github.com/skillforge/skillforge/internal/cache"
	"github.com/skillforge/skillforge/internal/logging"
	"github.com/skillforge/skillforge/internal/metrics"
)

const (
	revocationPrefix = "revocation:"

	// MinRevocationTTL keeps near-expiry tokens blacklistable for a
	// meaningful duration.
	MinRevocationTTL = time.Hour
)

// RevocationStore is the blacklist of revoked tokens. Entries live in
// the shared cache store keyed by token value and hold the owning user
// id, so logout-everywhere can find all of a user's tokens.
//
// IsBlacklisted fails open to "not revoked" on a store fault. That is
// a deliberate availability-over-enforcement tradeoff; compensating
// controls (short token lifetimes) are expected at the issuer.
type RevocationStore struct {
	store *cache.Store
}

// NewRevocationStore creates a revocation store over the shared cache.
func NewRevocationStore(store *cache.Store) *RevocationStore {
	return &RevocationStore{store: store}
}

// Blacklist marks token revoked for ttl, floored at MinRevocationTTL.
// Callers pass the token's remaining lifetime as ttl.
func (s *RevocationStore) Blacklist(ctx context.Context, token, userID string, ttl time.Duration) error {
	if ttl < MinRevocationTTL {
		ttl = MinRevocationTTL
	}
	return s.store.Set(revocationPrefix+token, []byte(userID), ttl)
}

// IsBlacklisted reports whether token has been revoked.
func (s *RevocationStore) IsBlacklisted(ctx context.Context, token string) bool {
	revoked, err := s.store.Exists(revocationPrefix + token)
	if err != nil {
		logging.Op().Warn("revocation check failed, treating token as valid", "error", err)
		metrics.RecordRevocationCheck("fail_open")
		return false
	}
	if revoked {
		metrics.RecordRevocationCheck("revoked")
	} else {
		metrics.RecordRevocationCheck("valid")
	}
	return revoked
}

// BlacklistAll removes every blacklist entry owned by userID and
// returns how many were dropped. It walks the full revocation
// namespace, so cost is O(n) in the number of blacklisted tokens
// system-wide; acceptable while blacklist cardinality stays small.
func (s *RevocationStore) BlacklistAll(ctx context.Context, userID string) (int, error) {
	keys, err := s.store.Keys(revocationPrefix + "*")
	if err != nil {
		return 0, err
	}

	var matched []string
	for _, key := range keys {
		owner, err := s.store.Get(key)
		if err != nil {
			continue
		}
		if string(owner) == userID {
			matched = append(matched, key)
		}
	}
	return s.store.DelMultiple(matched)
}
