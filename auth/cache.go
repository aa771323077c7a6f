package auth

import (
	"context"
	"sync"
	"time"
)

// CachedVerifier remembers users that passed verification for a TTL, so
// authenticated requests do not hit the database every time. Failed checks
// are never cached.
type CachedVerifier struct {
	inner UserVerifier
	ttl   time.Duration
	now   func() time.Time

	mu      sync.RWMutex
	expires map[string]time.Time
}

func NewCachedVerifier(inner UserVerifier, ttl time.Duration) *CachedVerifier {
	return &CachedVerifier{inner: inner, ttl: ttl, now: time.Now, expires: make(map[string]time.Time)}
}

// Verify reports whether userID is still valid.
func (c *CachedVerifier) Verify(ctx context.Context, userID string) bool {
	c.mu.RLock()
	exp, ok := c.expires[userID]
	c.mu.RUnlock()
	if ok && c.now().Before(exp) {
		return true
	}

	if !c.inner(ctx, userID) {
		c.Invalidate(userID)
		return false
	}
	c.mu.Lock()
	c.expires[userID] = c.now().Add(c.ttl)
	c.mu.Unlock()
	return true
}

// Invalidate forgets userID, e.g. after the user was removed.
func (c *CachedVerifier) Invalidate(userID string) {
	c.mu.Lock()
	delete(c.expires, userID)
	c.mu.Unlock()
}
