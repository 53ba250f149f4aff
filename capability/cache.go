package capability

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Cached memoizes positive and negative answers of an inner [Provider] for ttl.
// Errors are never cached.
type Cached struct {
	inner Provider
	lru   *expirable.LRU[string, bool]
}

// NewCached wraps inner with an LRU of size entries that expire after ttl.
func NewCached(inner Provider, size int, ttl time.Duration) *Cached {
	return &Cached{
		inner: inner,
		lru:   expirable.NewLRU[string, bool](size, nil, ttl),
	}
}

func cacheKey(principalID, capability string) string {
	return principalID + "\x00" + capability
}

// HasCapability implements [Provider].
func (c *Cached) HasCapability(ctx context.Context, principalID, capability string) (bool, error) {
	key := cacheKey(principalID, capability)
	if v, ok := c.lru.Get(key); ok {
		return v, nil
	}
	v, err := c.inner.HasCapability(ctx, principalID, capability)
	if err != nil {
		return false, err
	}
	c.lru.Add(key, v)
	return v, nil
}

// Forget drops the cached answer for one principal and capability.
func (c *Cached) Forget(principalID, capability string) {
	c.lru.Remove(cacheKey(principalID, capability))
}

// Purge drops every cached answer.
func (c *Cached) Purge() {
	c.lru.Purge()
}

// Len returns the number of cached answers.
func (c *Cached) Len() int {
	return c.lru.Len()
}
