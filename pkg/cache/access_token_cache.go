// Package cache bounds repeated validation work for access tokens seen
// more than once within their lifetime (spec §4.13).
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/cuioss/cui-jwt-sub016/pkg/token"
)

// DefaultCapacity is the default LRU entry bound.
const DefaultCapacity = 500

// DefaultExpirySkew is subtracted from a token's exp claim so entries are
// evicted slightly before they would actually fail claim validation.
const DefaultExpirySkew = 10 * time.Second

type entry struct {
	content token.AccessTokenContent
	expiry  time.Time
}

// AccessTokenCache is a bounded, thread-safe cache of validated access
// tokens keyed by the SHA-256 of the raw token string (spec §4.13).
// A capacity of 0 disables caching: every lookup misses and Put is a
// no-op.
type AccessTokenCache struct {
	lru      *lru.Cache[string, entry]
	skew     time.Duration
	now      func() time.Time
	disabled bool
}

// Option configures an AccessTokenCache at construction.
type Option func(*AccessTokenCache)

// WithExpirySkew overrides the default expiry skew.
func WithExpirySkew(d time.Duration) Option {
	return func(c *AccessTokenCache) { c.skew = d }
}

// WithClock overrides the time source; intended for tests.
func WithClock(now func() time.Time) Option {
	return func(c *AccessTokenCache) { c.now = now }
}

// New builds an AccessTokenCache with the given capacity. Capacity 0
// disables caching entirely (spec §4.13: "cache may be disabled").
func New(capacity int, opts ...Option) (*AccessTokenCache, error) {
	c := &AccessTokenCache{skew: DefaultExpirySkew, now: func() time.Time { return time.Now().UTC() }}
	for _, opt := range opts {
		opt(c)
	}

	if capacity <= 0 {
		c.disabled = true
		return c, nil
	}

	l, err := lru.New[string, entry](capacity)
	if err != nil {
		return nil, err
	}
	c.lru = l
	return c, nil
}

// Get returns the cached content for raw, if present and not within
// skew of its expiry. A stale hit is evicted and reported as a miss.
func (c *AccessTokenCache) Get(raw string) (token.AccessTokenContent, bool) {
	if c.disabled {
		return token.AccessTokenContent{}, false
	}

	key := hashToken(raw)
	e, ok := c.lru.Get(key)
	if !ok {
		return token.AccessTokenContent{}, false
	}

	if !c.now().Before(e.expiry) {
		c.lru.Remove(key)
		return token.AccessTokenContent{}, false
	}

	return e.content, true
}

// Put inserts content under raw's hash, expiring at exp minus the
// configured skew. A zero exp means the entry is considered already
// expired and is not inserted.
func (c *AccessTokenCache) Put(raw string, content token.AccessTokenContent, exp time.Time) {
	if c.disabled {
		return
	}
	expiry := exp.Add(-c.skew)
	if !expiry.After(c.now()) {
		return
	}
	c.lru.Add(hashToken(raw), entry{content: content, expiry: expiry})
}

// Len reports the current number of live (not necessarily unexpired)
// entries.
func (c *AccessTokenCache) Len() int {
	if c.disabled {
		return 0
	}
	return c.lru.Len()
}

// Purge clears all entries.
func (c *AccessTokenCache) Purge() {
	if c.disabled {
		return
	}
	c.lru.Purge()
}

func hashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
